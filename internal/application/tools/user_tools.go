package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/internal/domain/repository"
	"finsaathi-ai-api/internal/domain/service"
)

const (
	insightWindowDays = 90
	healthWindowDays  = 90
)

func (d *Dispatcher) requireOwner(scope Scope) (string, error) {
	owner := strings.TrimSpace(scope.OwnerID)
	if owner == "" {
		return "", &toolError{Tag: ErrTagNotPermitted, Err: fmt.Errorf("no subject user in scope")}
	}
	if d.facts == nil {
		return "", unavailable(fmt.Errorf("fact repository not configured"))
	}
	return owner, nil
}

type profileData struct {
	Name             string  `json:"name"`
	Age              int     `json:"age"`
	City             string  `json:"city,omitempty"`
	Occupation       string  `json:"occupation,omitempty"`
	MonthlyIncomeINR float64 `json:"monthly_income_inr"`
	EmergencyFundINR float64 `json:"emergency_fund_inr"`
	RiskProfile      string  `json:"risk_profile"`
}

func (d *Dispatcher) userProfile(ctx context.Context, scope Scope) (any, error) {
	owner, err := d.requireOwner(scope)
	if err != nil {
		return nil, err
	}
	p, err := d.facts.GetProfile(ctx, owner)
	if err != nil {
		return nil, unavailable(err)
	}
	if p == nil {
		return nil, unavailable(errNoProfile)
	}
	return profileData{
		Name:             p.Name,
		Age:              p.Age,
		City:             p.City,
		Occupation:       p.Occupation,
		MonthlyIncomeINR: service.Round2(p.MonthlyIncome),
		EmergencyFundINR: service.Round2(p.EmergencyFund),
		RiskProfile:      string(p.RiskProfile),
	}, nil
}

type categoryData struct {
	Category string  `json:"category"`
	TotalINR float64 `json:"total_inr"`
	Count    int     `json:"count"`
}

type txnData struct {
	Date      string  `json:"date"`
	AmountINR float64 `json:"amount_inr"`
	Type      string  `json:"type"`
	Category  string  `json:"category"`
	Merchant  string  `json:"merchant,omitempty"`
}

type transactionsData struct {
	PeriodDays       int            `json:"period_days"`
	TotalIncomeINR   float64        `json:"total_income_inr"`
	TotalExpenseINR  float64        `json:"total_expense_inr"`
	NetINR           float64        `json:"net_inr"`
	TransactionCount int            `json:"transaction_count"`
	TopCategories    []categoryData `json:"top_categories"`
	Latest           []txnData      `json:"latest"`
}

func (d *Dispatcher) recentTransactions(ctx context.Context, scope Scope, args arguments) (any, error) {
	owner, err := d.requireOwner(scope)
	if err != nil {
		return nil, err
	}
	days := args.Int("days", 30, 1, 90)
	limit := args.Int("limit", 10, 1, 25)
	var txType entity.TransactionType
	switch args.String("type") {
	case "", "all":
	case "credit":
		txType = entity.TransactionCredit
	case "debit":
		txType = entity.TransactionDebit
	default:
		return nil, invalidArgs("type must be all, credit or debit")
	}

	to := d.now()
	from := to.AddDate(0, 0, -days)

	summary, err := d.facts.SummarizeCashflow(ctx, owner, from, to)
	if err != nil {
		return nil, unavailable(err)
	}
	txns, err := d.facts.ListTransactions(ctx, owner, repository.TransactionFilter{From: from, To: to, Type: txType, Limit: limit})
	if err != nil {
		return nil, unavailable(err)
	}

	out := transactionsData{
		PeriodDays:       days,
		TotalIncomeINR:   service.Round2(summary.TotalIncome),
		TotalExpenseINR:  service.Round2(summary.TotalExpense),
		NetINR:           service.Round2(summary.Net()),
		TransactionCount: summary.TransactionCount,
		TopCategories:    make([]categoryData, 0, len(summary.TopCategories)),
		Latest:           make([]txnData, 0, len(txns)),
	}
	for _, c := range summary.TopCategories {
		out.TopCategories = append(out.TopCategories, categoryData{Category: c.Category, TotalINR: service.Round2(c.Total), Count: c.Count})
	}
	for _, t := range txns {
		out.Latest = append(out.Latest, txnData{
			Date:      t.Date.Format("2006-01-02"),
			AmountINR: service.Round2(t.Amount),
			Type:      string(t.Type),
			Category:  t.Category,
			Merchant:  t.Merchant,
		})
	}
	return out, nil
}

type budgetLine struct {
	Category     string  `json:"category"`
	LimitINR     float64 `json:"limit_inr"`
	SpentINR     float64 `json:"spent_inr"`
	RemainingINR float64 `json:"remaining_inr"`
	UsedPct      float64 `json:"used_pct"`
	OverBudget   bool    `json:"over_budget"`
}

type budgetData struct {
	Month           string       `json:"month"`
	TotalLimitINR   float64      `json:"total_limit_inr"`
	TotalSpentINR   float64      `json:"total_spent_inr"`
	OverBudgetCount int          `json:"over_budget_count"`
	Budgets         []budgetLine `json:"budgets"`
}

func (d *Dispatcher) budgetStatus(ctx context.Context, scope Scope, args arguments) (any, error) {
	owner, err := d.requireOwner(scope)
	if err != nil {
		return nil, err
	}
	month := args.String("month")
	if month == "" {
		month = d.now().Format("2006-01")
	} else if _, perr := time.Parse("2006-01", month); perr != nil {
		return nil, invalidArgs("month must be YYYY-MM")
	}

	items, err := d.facts.ListBudgetStatus(ctx, owner, month)
	if err != nil {
		return nil, unavailable(err)
	}
	out := budgetData{Month: month, Budgets: make([]budgetLine, 0, len(items))}
	var limit, spent float64
	for _, b := range items {
		limit += b.Limit
		spent += b.Spent
		over := b.Spent > b.Limit
		if over {
			out.OverBudgetCount++
		}
		out.Budgets = append(out.Budgets, budgetLine{
			Category:     b.Category,
			LimitINR:     service.Round2(b.Limit),
			SpentINR:     service.Round2(b.Spent),
			RemainingINR: service.Round2(b.Remaining()),
			UsedPct:      service.Round2(b.UsedPct()),
			OverBudget:   over,
		})
	}
	out.TotalLimitINR = service.Round2(limit)
	out.TotalSpentINR = service.Round2(spent)
	return out, nil
}

type goalLine struct {
	Name               string  `json:"name"`
	Status             string  `json:"status"`
	TargetINR          float64 `json:"target_inr"`
	SavedINR           float64 `json:"saved_inr"`
	ProgressPct        float64 `json:"progress_pct"`
	MonthsLeft         *int    `json:"months_left,omitempty"`
	RequiredMonthlyINR float64 `json:"required_monthly_inr,omitempty"`
}

type goalsData struct {
	ActiveCount    int        `json:"active_count"`
	CompletedCount int        `json:"completed_count"`
	TotalTargetINR float64    `json:"total_target_inr"`
	TotalSavedINR  float64    `json:"total_saved_inr"`
	Goals          []goalLine `json:"goals"`
}

func (d *Dispatcher) goals(ctx context.Context, scope Scope) (any, error) {
	owner, err := d.requireOwner(scope)
	if err != nil {
		return nil, err
	}
	goals, err := d.facts.ListGoals(ctx, owner)
	if err != nil {
		return nil, unavailable(err)
	}
	now := d.now()
	out := goalsData{Goals: make([]goalLine, 0, len(goals))}
	var target, saved float64
	for _, g := range goals {
		target += g.TargetAmount
		saved += g.CurrentAmount
		switch g.Status {
		case entity.GoalCompleted:
			out.CompletedCount++
		case entity.GoalActive:
			out.ActiveCount++
		}
		line := goalLine{
			Name:        g.Name,
			Status:      string(g.Status),
			TargetINR:   service.Round2(g.TargetAmount),
			SavedINR:    service.Round2(g.CurrentAmount),
			ProgressPct: service.Round2(g.ProgressPct()),
		}
		if g.Deadline != nil && g.Status == entity.GoalActive {
			months := service.MonthsBetween(now, *g.Deadline)
			line.MonthsLeft = &months
			remaining := math.Max(0, g.TargetAmount-g.CurrentAmount)
			if months > 0 {
				line.RequiredMonthlyINR = service.Round2(remaining / float64(months))
			} else {
				line.RequiredMonthlyINR = service.Round2(remaining)
			}
		}
		out.Goals = append(out.Goals, line)
	}
	out.TotalTargetINR = service.Round2(target)
	out.TotalSavedINR = service.Round2(saved)
	return out, nil
}

func (d *Dispatcher) healthScore(ctx context.Context, scope Scope) (any, error) {
	owner, err := d.requireOwner(scope)
	if err != nil {
		return nil, err
	}
	in, err := d.healthInput(ctx, owner)
	if err != nil {
		return nil, err
	}
	return service.ComputeHealthScore(in), nil
}

func (d *Dispatcher) healthInput(ctx context.Context, owner string) (service.HealthInput, error) {
	now := d.now()
	profile, err := d.facts.GetProfile(ctx, owner)
	if err != nil {
		return service.HealthInput{}, unavailable(err)
	}
	cashflow, err := d.facts.SummarizeCashflow(ctx, owner, now.AddDate(0, 0, -healthWindowDays), now)
	if err != nil {
		return service.HealthInput{}, unavailable(err)
	}
	budgets, err := d.facts.ListBudgetStatus(ctx, owner, now.Format("2006-01"))
	if err != nil {
		return service.HealthInput{}, unavailable(err)
	}
	goals, err := d.facts.ListGoals(ctx, owner)
	if err != nil {
		return service.HealthInput{}, unavailable(err)
	}
	return service.HealthInput{
		Profile:  profile,
		Cashflow: cashflow,
		Months:   healthWindowDays / 30,
		Budgets:  budgets,
		Goals:    goals,
	}, nil
}

type anomalyLine struct {
	Date      string  `json:"date"`
	AmountINR float64 `json:"amount_inr"`
	Category  string  `json:"category"`
	Merchant  string  `json:"merchant,omitempty"`
	ZScore    float64 `json:"z_score"`
}

type insightsData struct {
	WindowDays           int           `json:"window_days"`
	Anomalies            []anomalyLine `json:"anomalies"`
	MonthlyExpenseINR    []float64     `json:"monthly_expense_inr"`
	AvgMonthlyExpenseINR float64       `json:"avg_monthly_expense_inr"`
	ForecastNextMonthINR float64       `json:"forecast_next_month_inr"`
	ForecastMethod       string        `json:"forecast_method"`
}

func (d *Dispatcher) spendingInsights(ctx context.Context, scope Scope) (any, error) {
	owner, err := d.requireOwner(scope)
	if err != nil {
		return nil, err
	}
	now := d.now()
	txns, err := d.facts.ListTransactions(ctx, owner, repository.TransactionFilter{
		From: now.AddDate(0, 0, -insightWindowDays),
		To:   now,
		Type: entity.TransactionDebit,
	})
	if err != nil {
		return nil, unavailable(err)
	}
	monthly, err := d.facts.MonthlyExpenses(ctx, owner, 6)
	if err != nil {
		return nil, unavailable(err)
	}

	out := insightsData{
		WindowDays:        insightWindowDays,
		Anomalies:         []anomalyLine{},
		MonthlyExpenseINR: make([]float64, 0, len(monthly)),
		ForecastMethod:    "average_of_last_3_months",
	}
	for _, a := range service.DetectAnomalies(txns, service.DefaultAnomalyZ) {
		out.Anomalies = append(out.Anomalies, anomalyLine{
			Date:      a.Transaction.Date.Format("2006-01-02"),
			AmountINR: service.Round2(a.Transaction.Amount),
			Category:  a.Transaction.Category,
			Merchant:  a.Transaction.Merchant,
			ZScore:    a.ZScore,
		})
	}
	var sum float64
	for _, m := range monthly {
		sum += m
		out.MonthlyExpenseINR = append(out.MonthlyExpenseINR, service.Round2(m))
	}
	if len(monthly) > 0 {
		out.AvgMonthlyExpenseINR = service.Round2(sum / float64(len(monthly)))
	}
	out.ForecastNextMonthINR = service.ForecastNextMonth(monthly)
	return out, nil
}

type learningData struct {
	LessonsCompleted int     `json:"lessons_completed"`
	TotalLessons     int     `json:"total_lessons"`
	CompletionPct    float64 `json:"completion_pct"`
	LastLesson       string  `json:"last_lesson,omitempty"`
}

func (d *Dispatcher) learningProgress(ctx context.Context, scope Scope) (any, error) {
	owner, err := d.requireOwner(scope)
	if err != nil {
		return nil, err
	}
	lp, err := d.facts.GetLearningProgress(ctx, owner)
	if err != nil {
		return nil, unavailable(err)
	}
	out := learningData{
		LessonsCompleted: lp.LessonsCompleted,
		TotalLessons:     lp.TotalLessons,
		LastLesson:       lp.LastLessonTitle,
	}
	if lp.TotalLessons > 0 {
		out.CompletionPct = service.Round2(float64(lp.LessonsCompleted) / float64(lp.TotalLessons) * 100)
	}
	return out, nil
}
