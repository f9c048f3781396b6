package persona

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/internal/domain/repository"
	"finsaathi-ai-api/internal/domain/service"
	"finsaathi-ai-api/pkg/logger"
)

const commonExpenseTopN = 3

// CohortAggregator 查询顾问名下客户并聚合，输出不含任何单个客户字段
type CohortAggregator struct {
	repo repository.CohortRepository
}

func NewCohortAggregator(repo repository.CohortRepository) *CohortAggregator {
	return &CohortAggregator{repo: repo}
}

// Summarize 实现 tools.CohortSummarizer
func (a *CohortAggregator) Summarize(ctx context.Context, advisorID string) (*entity.CohortSummary, error) {
	advisorID = strings.TrimSpace(advisorID)
	if advisorID == "" {
		return nil, fmt.Errorf("advisor id is required")
	}
	if a == nil || a.repo == nil {
		return nil, fmt.Errorf("cohort repository not configured")
	}
	snaps, err := a.repo.ListClientSnapshots(ctx, advisorID)
	if err != nil {
		return nil, err
	}
	summary, dropped := AggregateCohort(advisorID, snaps)
	if dropped > 0 {
		logger.Error(ctx, "cohort query returned clients of another advisor", nil,
			"advisor_id", advisorID,
			"dropped", dropped,
		)
	}
	return summary, nil
}

// AggregateCohort 只聚合 AdvisorID 匹配的快照，返回被丢弃的数量
func AggregateCohort(advisorID string, snaps []*entity.ClientSnapshot) (*entity.CohortSummary, int) {
	summary := &entity.CohortSummary{
		RiskMix:          map[string]int{},
		HealthBands:      map[string]int{},
		CommonExpenseTop: []string{},
	}

	var (
		dropped      int
		healthSum    float64
		incomeSum    float64
		savingsRates []float64
		activeGoals  int
		onTrackGoals int
		expenseFreq  = map[string]int{}
	)
	for _, s := range snaps {
		if s == nil {
			continue
		}
		if s.AdvisorID != advisorID {
			dropped++
			continue
		}
		summary.ClientCount++
		healthSum += float64(s.HealthScore)
		incomeSum += s.MonthlyIncome
		savingsRates = append(savingsRates, s.SavingsRatePct)
		activeGoals += s.ActiveGoals
		onTrackGoals += s.GoalsOnTrack

		risk := string(s.RiskProfile)
		if risk == "" {
			risk = "unknown"
		}
		summary.RiskMix[risk]++

		band := service.HealthBand(s.HealthScore)
		summary.HealthBands[band]++
		if band == service.BandNeedsAttention {
			summary.NeedsAttention++
		}
		if c := strings.TrimSpace(s.TopExpenseCategory); c != "" {
			expenseFreq[strings.ToLower(c)]++
		}
	}
	if summary.ClientCount == 0 {
		return summary, dropped
	}

	n := float64(summary.ClientCount)
	summary.AvgHealthScore = service.Round2(healthSum / n)
	summary.AvgMonthlyIncome = service.Round2(incomeSum / n)
	summary.MedianSavingsRatePct = service.Round2(median(savingsRates))
	if activeGoals > 0 {
		summary.GoalsOnTrackPct = service.Round2(float64(onTrackGoals) / float64(activeGoals) * 100)
	}
	summary.CommonExpenseTop = topKeys(expenseFreq, commonExpenseTopN)
	return summary, dropped
}

func median(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	s := append([]float64(nil), vs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// topKeys 频次降序，同频按字母序
func topKeys(freq map[string]int, n int) []string {
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
