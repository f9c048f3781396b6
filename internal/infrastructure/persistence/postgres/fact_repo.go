package postgres

import (
	"context"
	"fmt"
	"time"

	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/internal/domain/repository"
)

const topCategoryLimit = 5

// FactRepository 用户财务事实（只读）
type FactRepository struct {
	client *Client
	now    func() time.Time
}

func NewFactRepository(client *Client) *FactRepository {
	return &FactRepository{client: client, now: time.Now}
}

func (r *FactRepository) GetProfile(ctx context.Context, userID string) (*entity.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "postgres.FactRepository.GetProfile")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var profile entity.UserProfile
	if err := db.First(&profile, "id = ?", userID).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return &profile, nil
}

func (r *FactRepository) ListTransactions(ctx context.Context, userID string, filter repository.TransactionFilter) ([]*entity.Transaction, error) {
	ctx, span := tracer.Start(ctx, "postgres.FactRepository.ListTransactions")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Where("user_id = ?", userID)
	if !filter.From.IsZero() {
		query = query.Where("date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("date <= ?", filter.To)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var txns []*entity.Transaction
	if err := query.Order("date DESC").Find(&txns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

func (r *FactRepository) SummarizeCashflow(ctx context.Context, userID string, from, to time.Time) (*entity.CashflowSummary, error) {
	ctx, span := tracer.Start(ctx, "postgres.FactRepository.SummarizeCashflow")
	defer span.End()

	db := getDB(ctx, r.client.db)
	summary := &entity.CashflowSummary{From: from, To: to, TopCategories: []entity.CategoryTotal{}}

	var totals []struct {
		Type  entity.TransactionType
		Total float64
		Count int
	}
	if err := db.Model(&entity.Transaction{}).
		Select("type, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("user_id = ? AND date >= ? AND date <= ?", userID, from, to).
		Group("type").
		Scan(&totals).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to summarize cashflow: %w", err)
	}
	for _, t := range totals {
		switch t.Type {
		case entity.TransactionCredit:
			summary.TotalIncome = t.Total
		case entity.TransactionDebit:
			summary.TotalExpense = t.Total
		}
		summary.TransactionCount += t.Count
	}

	if err := db.Model(&entity.Transaction{}).
		Select("category, SUM(amount) AS total, COUNT(*) AS count").
		Where("user_id = ? AND type = ? AND date >= ? AND date <= ?", userID, entity.TransactionDebit, from, to).
		Group("category").
		Order("total DESC").
		Limit(topCategoryLimit).
		Scan(&summary.TopCategories).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to summarize categories: %w", err)
	}
	return summary, nil
}

// MonthlyExpenses 统计当前月之前的 months 个完整自然月
func (r *FactRepository) MonthlyExpenses(ctx context.Context, userID string, months int) ([]float64, error) {
	ctx, span := tracer.Start(ctx, "postgres.FactRepository.MonthlyExpenses")
	defer span.End()

	if months <= 0 {
		return []float64{}, nil
	}
	keys, from, to := monthWindow(r.now(), months)

	db := getDB(ctx, r.client.db)
	var rows []struct {
		Month string
		Total float64
	}
	if err := db.Model(&entity.Transaction{}).
		Select("to_char(date_trunc('month', date), 'YYYY-MM') AS month, SUM(amount) AS total").
		Where("user_id = ? AND type = ? AND date >= ? AND date < ?", userID, entity.TransactionDebit, from, to).
		Group("month").
		Scan(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to aggregate monthly expenses: %w", err)
	}

	byMonth := make(map[string]float64, len(rows))
	for _, row := range rows {
		byMonth[row.Month] = row.Total
	}
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = byMonth[k]
	}
	return out, nil
}

// monthWindow 返回 now 所在月之前 months 个月的键（正序）与 [from, to) 区间
func monthWindow(now time.Time, months int) ([]string, time.Time, time.Time) {
	to := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	from := to.AddDate(0, -months, 0)
	keys := make([]string, 0, months)
	for m := from; m.Before(to); m = m.AddDate(0, 1, 0) {
		keys = append(keys, m.Format("2006-01"))
	}
	return keys, from, to
}

// ListBudgetStatus 预算与当月支出按分类关联
func (r *FactRepository) ListBudgetStatus(ctx context.Context, userID, month string) ([]entity.BudgetStatus, error) {
	ctx, span := tracer.Start(ctx, "postgres.FactRepository.ListBudgetStatus")
	defer span.End()

	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("invalid budget month %q: %w", month, err)
	}
	end := start.AddDate(0, 1, 0)

	db := getDB(ctx, r.client.db)
	statuses := []entity.BudgetStatus{}
	if err := db.Table("budgets AS b").
		Select("b.category AS category, b.monthly_limit AS \"limit\", COALESCE(SUM(t.amount), 0) AS spent").
		Joins("LEFT JOIN transactions t ON t.user_id = b.user_id AND t.category = b.category AND t.type = ? AND t.date >= ? AND t.date < ?",
			entity.TransactionDebit, start, end).
		Where("b.user_id = ? AND b.month = ?", userID, month).
		Group("b.category, b.monthly_limit").
		Order("b.category").
		Scan(&statuses).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list budget status: %w", err)
	}
	return statuses, nil
}

func (r *FactRepository) ListGoals(ctx context.Context, userID string) ([]*entity.Goal, error) {
	ctx, span := tracer.Start(ctx, "postgres.FactRepository.ListGoals")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var goals []*entity.Goal
	if err := db.Where("user_id = ?", userID).
		Order("deadline ASC NULLS LAST").
		Find(&goals).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	return goals, nil
}

func (r *FactRepository) GetLearningProgress(ctx context.Context, userID string) (*entity.LearningProgress, error) {
	ctx, span := tracer.Start(ctx, "postgres.FactRepository.GetLearningProgress")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var progress entity.LearningProgress
	if err := db.First(&progress, "user_id = ?", userID).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get learning progress: %w", err)
	}
	return &progress, nil
}
