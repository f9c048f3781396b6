package postgres

import (
	"context"
	"fmt"

	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/internal/domain/repository"
	"finsaathi-ai-api/internal/domain/service"
)

const cohortWindowDays = 90

// CohortRepository 顾问客户群快照。
// 每个快照复用 FactRepository 的单用户查询，查询条件始终带 advisor_id。
type CohortRepository struct {
	client *Client
	facts  *FactRepository
	tx     repository.Transactor
}

func NewCohortRepository(client *Client, facts *FactRepository, tx repository.Transactor) *CohortRepository {
	return &CohortRepository{client: client, facts: facts, tx: tx}
}

func (r *CohortRepository) ListClientSnapshots(ctx context.Context, advisorID string) ([]*entity.ClientSnapshot, error) {
	ctx, span := tracer.Start(ctx, "postgres.CohortRepository.ListClientSnapshots")
	defer span.End()

	if advisorID == "" {
		return []*entity.ClientSnapshot{}, nil
	}

	var snaps []*entity.ClientSnapshot
	// 所有客户基于同一快照聚合
	err := r.tx.WithSnapshot(ctx, func(txCtx context.Context) error {
		db := getDB(txCtx, r.client.db)

		var profiles []*entity.UserProfile
		if err := db.Where("advisor_id = ?", advisorID).Order("id").Find(&profiles).Error; err != nil {
			return fmt.Errorf("failed to list cohort clients: %w", err)
		}

		snaps = make([]*entity.ClientSnapshot, 0, len(profiles))
		for _, p := range profiles {
			snap, err := r.snapshot(txCtx, advisorID, p)
			if err != nil {
				return err
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return snaps, nil
}

func (r *CohortRepository) snapshot(ctx context.Context, advisorID string, p *entity.UserProfile) (*entity.ClientSnapshot, error) {
	now := r.facts.now()
	cashflow, err := r.facts.SummarizeCashflow(ctx, p.ID, now.AddDate(0, 0, -cohortWindowDays), now)
	if err != nil {
		return nil, err
	}
	budgets, err := r.facts.ListBudgetStatus(ctx, p.ID, now.Format("2006-01"))
	if err != nil {
		return nil, err
	}
	goals, err := r.facts.ListGoals(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	hs := service.ComputeHealthScore(service.HealthInput{
		Profile:  p,
		Cashflow: cashflow,
		Months:   cohortWindowDays / 30,
		Budgets:  budgets,
		Goals:    goals,
	})

	snap := &entity.ClientSnapshot{
		ClientID:       p.ID,
		AdvisorID:      advisorID,
		Name:           p.Name,
		MonthlyIncome:  p.MonthlyIncome,
		SavingsRatePct: hs.SavingsRatePct,
		RiskProfile:    p.RiskProfile,
		HealthScore:    hs.Total,
	}
	monthlySavings := cashflow.Net() / float64(cohortWindowDays/30)
	for _, g := range goals {
		if g.Status != entity.GoalActive {
			continue
		}
		snap.ActiveGoals++
		if service.GoalOnTrack(g, now, monthlySavings) {
			snap.GoalsOnTrack++
		}
	}
	if len(cashflow.TopCategories) > 0 {
		snap.TopExpenseCategory = cashflow.TopCategories[0].Category
	}
	return snap, nil
}

func (r *CohortRepository) IsAssigned(ctx context.Context, advisorID, clientID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.CohortRepository.IsAssigned")
	defer span.End()

	if advisorID == "" || clientID == "" {
		return false, nil
	}

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.UserProfile{}).
		Where("id = ? AND advisor_id = ?", clientID, advisorID).
		Count(&count).Error; err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check advisor assignment: %w", err)
	}
	return count > 0, nil
}
