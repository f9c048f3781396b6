package service

import (
	"math"
	"sort"

	"finsaathi-ai-api/internal/domain/entity"
)

// DefaultAnomalyZ 异常判定阈值
const DefaultAnomalyZ = 2.0

// Anomaly 异常支出
type Anomaly struct {
	Transaction *entity.Transaction
	ZScore      float64
}

// DetectAnomalies 对支出金额做 z-score，|z| >= threshold 视为异常，按 z 降序。
// 样本少于 5 条时不判定。
func DetectAnomalies(txns []*entity.Transaction, threshold float64) []Anomaly {
	if threshold <= 0 {
		threshold = DefaultAnomalyZ
	}
	debits := make([]*entity.Transaction, 0, len(txns))
	for _, t := range txns {
		if t != nil && t.Type == entity.TransactionDebit {
			debits = append(debits, t)
		}
	}
	if len(debits) < 5 {
		return nil
	}

	var sum float64
	for _, t := range debits {
		sum += t.Amount
	}
	mean := sum / float64(len(debits))
	var sq float64
	for _, t := range debits {
		d := t.Amount - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(debits)))
	if std == 0 {
		return nil
	}

	var out []Anomaly
	for _, t := range debits {
		z := (t.Amount - mean) / std
		if math.Abs(z) >= threshold {
			out = append(out, Anomaly{Transaction: t, ZScore: Round2(z)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZScore > out[j].ZScore })
	return out
}

// ForecastNextMonth 取最近最多 3 个月支出的平均值
func ForecastNextMonth(monthly []float64) float64 {
	if len(monthly) == 0 {
		return 0
	}
	start := len(monthly) - 3
	if start < 0 {
		start = 0
	}
	recent := monthly[start:]
	var sum float64
	for _, v := range recent {
		sum += v
	}
	return Round2(sum / float64(len(recent)))
}
