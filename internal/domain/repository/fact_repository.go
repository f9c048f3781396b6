package repository

import (
	"context"
	"time"

	"finsaathi-ai-api/internal/domain/entity"
)

// TransactionFilter 交易查询条件
type TransactionFilter struct {
	From  time.Time
	To    time.Time
	Type  entity.TransactionType
	Limit int
}

// FactRepository 单个用户的只读财务事实
type FactRepository interface {
	GetProfile(ctx context.Context, userID string) (*entity.UserProfile, error)
	ListTransactions(ctx context.Context, userID string, filter TransactionFilter) ([]*entity.Transaction, error)
	SummarizeCashflow(ctx context.Context, userID string, from, to time.Time) (*entity.CashflowSummary, error)
	// MonthlyExpenses 返回最近 months 个自然月的支出合计，按时间正序
	MonthlyExpenses(ctx context.Context, userID string, months int) ([]float64, error)
	ListBudgetStatus(ctx context.Context, userID, month string) ([]entity.BudgetStatus, error)
	ListGoals(ctx context.Context, userID string) ([]*entity.Goal, error)
	GetLearningProgress(ctx context.Context, userID string) (*entity.LearningProgress, error)
}

// ReferenceRepository 与用户无关的参考数据
type ReferenceRepository interface {
	ListMarketQuotes(ctx context.Context, symbols []string) ([]*entity.MarketQuote, error)
	SearchSchemes(ctx context.Context, query, category string, limit int) ([]*entity.Scheme, error)
}

// CohortRepository 顾问客户群查询
type CohortRepository interface {
	// ListClientSnapshots 只返回 advisor_id 等于 advisorID 的客户
	ListClientSnapshots(ctx context.Context, advisorID string) ([]*entity.ClientSnapshot, error)
	// IsAssigned 客户是否归属该顾问
	IsAssigned(ctx context.Context, advisorID, clientID string) (bool, error)
}
