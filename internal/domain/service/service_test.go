package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsaathi-ai-api/internal/domain/entity"
)

func TestComputeHealthScore(t *testing.T) {
	in := HealthInput{
		Profile:  &entity.UserProfile{MonthlyIncome: 100000, EmergencyFund: 420000},
		Cashflow: &entity.CashflowSummary{TotalIncome: 300000, TotalExpense: 210000},
		Months:   3,
		Budgets: []entity.BudgetStatus{
			{Category: "food", Limit: 10000, Spent: 8000},
			{Category: "travel", Limit: 5000, Spent: 7000},
		},
		Goals: []*entity.Goal{
			{TargetAmount: 100000, CurrentAmount: 50000, Status: entity.GoalActive},
		},
	}

	hs := ComputeHealthScore(in)
	assert.Equal(t, 30.0, hs.SavingsRatePct)
	assert.Equal(t, 25, hs.SavingsRate)
	assert.Equal(t, 13, hs.BudgetAdherence)
	assert.Equal(t, 13, hs.GoalProgress)
	assert.Equal(t, 6.0, hs.EmergencyMonths)
	assert.Equal(t, 25, hs.EmergencyFund)
	assert.Equal(t, 76, hs.Total)
	assert.Equal(t, "excellent", hs.Band)
}

func TestComputeHealthScore_NoData(t *testing.T) {
	hs := ComputeHealthScore(HealthInput{})
	assert.Equal(t, 0, hs.SavingsRate)
	assert.Equal(t, 12, hs.BudgetAdherence)
	assert.Equal(t, 10, hs.GoalProgress)
	assert.Equal(t, 22, hs.Total)
	assert.Equal(t, "needs_attention", hs.Band)
}

func TestDetectAnomalies(t *testing.T) {
	var txns []*entity.Transaction
	for i := 0; i < 10; i++ {
		txns = append(txns, &entity.Transaction{ID: "t", Amount: 1000, Type: entity.TransactionDebit})
	}
	spike := &entity.Transaction{ID: "spike", Amount: 20000, Type: entity.TransactionDebit}
	txns = append(txns, spike, &entity.Transaction{ID: "salary", Amount: 90000, Type: entity.TransactionCredit})

	got := DetectAnomalies(txns, 0)
	require.Len(t, got, 1)
	assert.Equal(t, "spike", got[0].Transaction.ID)
	assert.Greater(t, got[0].ZScore, 2.0)

	assert.Nil(t, DetectAnomalies(txns[:3], 2))
}

func TestForecastNextMonth(t *testing.T) {
	assert.Equal(t, 0.0, ForecastNextMonth(nil))
	assert.Equal(t, 200.0, ForecastNextMonth([]float64{500, 100, 200, 300}))
	assert.Equal(t, 150.0, ForecastNextMonth([]float64{100, 200}))
}

func TestLLMContext(t *testing.T) {
	ctx := WithLLMCall(context.Background(), "tools", "openai")
	assert.Equal(t, "tools", LLMOperation(ctx))
	assert.Equal(t, "openai", LLMProvider(ctx))

	assert.Equal(t, "unknown", LLMOperation(context.Background()))
	assert.Equal(t, "unknown", LLMProvider(WithLLMCall(context.Background(), "title", "  ")))
}

func TestMonthsBetween(t *testing.T) {
	from := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, MonthsBetween(from, from.AddDate(0, 0, -1)))
	assert.Equal(t, 0, MonthsBetween(from, time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, MonthsBetween(from, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 12, MonthsBetween(from, time.Date(2027, 3, 20, 0, 0, 0, 0, time.UTC)))
}

func TestGoalOnTrack(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	deadline := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	done := &entity.Goal{TargetAmount: 1000, CurrentAmount: 1000}
	assert.True(t, GoalOnTrack(done, now, 0))

	// 剩余 60000，6 个月，需要每月 10000
	g := &entity.Goal{TargetAmount: 100000, CurrentAmount: 40000, Deadline: &deadline}
	assert.True(t, GoalOnTrack(g, now, 10000))
	assert.False(t, GoalOnTrack(g, now, 9999))

	late := &entity.Goal{TargetAmount: 100000, CurrentAmount: 40000, Deadline: &past}
	assert.False(t, GoalOnTrack(late, now, 1e9))

	open := &entity.Goal{TargetAmount: 100000}
	assert.False(t, GoalOnTrack(open, now, 1e9))
	open.CurrentAmount = 1
	assert.True(t, GoalOnTrack(open, now, 0))
	assert.False(t, GoalOnTrack(nil, now, 0))
}
