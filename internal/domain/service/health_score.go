// Package service 提供与存储无关的领域计算
package service

import (
	"math"

	"finsaathi-ai-api/internal/domain/entity"
)

const (
	pointsPerDimension = 25
	targetSavingsPct   = 30.0
	targetEmergencyMon = 6.0
)

// HealthInput 健康分计算输入，Cashflow 为 Months 个月的汇总
type HealthInput struct {
	Profile  *entity.UserProfile
	Cashflow *entity.CashflowSummary
	Months   int
	Budgets  []entity.BudgetStatus
	Goals    []*entity.Goal
}

// ComputeHealthScore 四个维度各 0-25 分：储蓄率、预算执行、目标进度、应急金月数。
func ComputeHealthScore(in HealthInput) entity.HealthScore {
	months := in.Months
	if months <= 0 {
		months = 3
	}

	var income, expense float64
	if in.Cashflow != nil {
		income = in.Cashflow.TotalIncome
		expense = in.Cashflow.TotalExpense
	}
	if income <= 0 && in.Profile != nil {
		income = in.Profile.MonthlyIncome * float64(months)
	}

	var hs entity.HealthScore

	if income > 0 {
		hs.SavingsRatePct = Round2((income - expense) / income * 100)
	}
	hs.SavingsRate = scale(hs.SavingsRatePct, targetSavingsPct)

	if len(in.Budgets) == 0 {
		hs.BudgetAdherence = pointsPerDimension / 2
	} else {
		within := 0
		for _, b := range in.Budgets {
			if b.Spent <= b.Limit {
				within++
			}
		}
		hs.BudgetAdherence = int(math.Round(float64(within) / float64(len(in.Budgets)) * pointsPerDimension))
	}

	active := 0
	var progress float64
	for _, g := range in.Goals {
		if g == nil || g.Status == entity.GoalPaused {
			continue
		}
		active++
		progress += g.ProgressPct()
	}
	if active == 0 {
		hs.GoalProgress = 10
	} else {
		hs.GoalProgress = scale(progress/float64(active), 100)
	}

	monthlyExpense := expense / float64(months)
	if in.Profile != nil && monthlyExpense > 0 {
		hs.EmergencyMonths = Round2(in.Profile.EmergencyFund / monthlyExpense)
	} else if in.Profile != nil && in.Profile.EmergencyFund > 0 {
		hs.EmergencyMonths = targetEmergencyMon
	}
	hs.EmergencyFund = scale(hs.EmergencyMonths, targetEmergencyMon)

	hs.Total = hs.SavingsRate + hs.BudgetAdherence + hs.GoalProgress + hs.EmergencyFund
	hs.Band = HealthBand(hs.Total)
	return hs
}

// 健康分分段
const (
	BandExcellent      = "excellent"
	BandGood           = "good"
	BandFair           = "fair"
	BandNeedsAttention = "needs_attention"
)

// HealthBand 分段
func HealthBand(total int) string {
	switch {
	case total >= 75:
		return BandExcellent
	case total >= 55:
		return BandGood
	case total >= 35:
		return BandFair
	default:
		return BandNeedsAttention
	}
}

func scale(value, target float64) int {
	if value <= 0 || target <= 0 {
		return 0
	}
	p := value / target * pointsPerDimension
	if p > pointsPerDimension {
		p = pointsPerDimension
	}
	return int(math.Round(p))
}

// Round2 保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
