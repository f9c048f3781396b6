package entity

import (
	"time"
)

// RiskProfile 风险偏好
type RiskProfile string

const (
	RiskConservative RiskProfile = "conservative"
	RiskModerate     RiskProfile = "moderate"
	RiskAggressive   RiskProfile = "aggressive"
)

// UserProfile 用户画像
type UserProfile struct {
	ID                string      `json:"id" gorm:"type:varchar(64);primaryKey"`
	Name              string      `json:"name" gorm:"type:varchar(128)"`
	Age               int         `json:"age"`
	City              string      `json:"city" gorm:"type:varchar(64)"`
	Occupation        string      `json:"occupation" gorm:"type:varchar(64)"`
	MonthlyIncome     float64     `json:"monthly_income"`
	EmergencyFund     float64     `json:"emergency_fund"`
	RiskProfile       RiskProfile `json:"risk_profile" gorm:"type:varchar(16)"`
	PreferredLanguage string      `json:"preferred_language" gorm:"type:varchar(8)"`
	AdvisorID         *string     `json:"advisor_id,omitempty" gorm:"type:varchar(64);index"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// TransactionType 交易方向
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// Transaction 交易记录
type Transaction struct {
	ID          string          `json:"id" gorm:"type:varchar(64);primaryKey"`
	UserID      string          `json:"user_id" gorm:"type:varchar(64);index"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"type" gorm:"type:varchar(8)"`
	Category    string          `json:"category" gorm:"type:varchar(32)"`
	Merchant    string          `json:"merchant,omitempty" gorm:"type:varchar(128)"`
	Description string          `json:"description,omitempty" gorm:"type:text"`
	Date        time.Time       `json:"date" gorm:"index"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// CategoryTotal 分类汇总
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// CashflowSummary 时间区间内的现金流汇总
type CashflowSummary struct {
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	TotalIncome      float64         `json:"total_income"`
	TotalExpense     float64         `json:"total_expense"`
	TransactionCount int             `json:"transaction_count"`
	TopCategories    []CategoryTotal `json:"top_categories"`
}

// Net 净现金流
func (s *CashflowSummary) Net() float64 {
	return s.TotalIncome - s.TotalExpense
}

// Budget 月度预算
type Budget struct {
	ID           string  `json:"id" gorm:"type:varchar(64);primaryKey"`
	UserID       string  `json:"user_id" gorm:"type:varchar(64);index"`
	Category     string  `json:"category" gorm:"type:varchar(32)"`
	MonthlyLimit float64 `json:"monthly_limit"`
	Month        string  `json:"month" gorm:"type:char(7);index"` // YYYY-MM
}

func (Budget) TableName() string {
	return "budgets"
}

// BudgetStatus 预算执行情况
type BudgetStatus struct {
	Category string  `json:"category"`
	Limit    float64 `json:"limit"`
	Spent    float64 `json:"spent"`
}

// Remaining 剩余额度，超支为负
func (b BudgetStatus) Remaining() float64 {
	return b.Limit - b.Spent
}

// UsedPct 已使用百分比
func (b BudgetStatus) UsedPct() float64 {
	if b.Limit <= 0 {
		return 0
	}
	return b.Spent / b.Limit * 100
}

// GoalStatus 目标状态
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
)

// Goal 储蓄目标
type Goal struct {
	ID            string     `json:"id" gorm:"type:varchar(64);primaryKey"`
	UserID        string     `json:"user_id" gorm:"type:varchar(64);index"`
	Name          string     `json:"name" gorm:"type:varchar(128)"`
	TargetAmount  float64    `json:"target_amount"`
	CurrentAmount float64    `json:"current_amount"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	Status        GoalStatus `json:"status" gorm:"type:varchar(16)"`
}

func (Goal) TableName() string {
	return "goals"
}

// ProgressPct 完成百分比
func (g *Goal) ProgressPct() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	p := g.CurrentAmount / g.TargetAmount * 100
	if p > 100 {
		return 100
	}
	return p
}

// MarketQuote 行情快照
type MarketQuote struct {
	Symbol    string    `json:"symbol" gorm:"type:varchar(32);primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(128)"`
	Price     float64   `json:"price"`
	ChangePct float64   `json:"change_pct"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MarketQuote) TableName() string {
	return "market_quotes"
}

// Scheme 政府/机构理财计划
type Scheme struct {
	ID           string  `json:"id" gorm:"type:varchar(64);primaryKey"`
	Name         string  `json:"name" gorm:"type:varchar(128)"`
	Category     string  `json:"category" gorm:"type:varchar(32)"`
	Description  string  `json:"description" gorm:"type:text"`
	Eligibility  string  `json:"eligibility" gorm:"type:text"`
	InterestRate float64 `json:"interest_rate"`
	LockInYears  int     `json:"lock_in_years"`
}

func (Scheme) TableName() string {
	return "schemes"
}

// LearningProgress 学习进度
type LearningProgress struct {
	UserID           string     `json:"user_id" gorm:"type:varchar(64);primaryKey"`
	LessonsCompleted int        `json:"lessons_completed"`
	TotalLessons     int        `json:"total_lessons"`
	LastLessonTitle  string     `json:"last_lesson_title" gorm:"type:varchar(128)"`
	LastActivityAt   *time.Time `json:"last_activity_at,omitempty"`
}

func (LearningProgress) TableName() string {
	return "learning_progress"
}

// HealthScore 财务健康分，四个维度各 0-25
type HealthScore struct {
	Total           int     `json:"total"`
	SavingsRate     int     `json:"savings_rate_points"`
	BudgetAdherence int     `json:"budget_adherence_points"`
	GoalProgress    int     `json:"goal_progress_points"`
	EmergencyFund   int     `json:"emergency_fund_points"`
	SavingsRatePct  float64 `json:"savings_rate_pct"`
	EmergencyMonths float64 `json:"emergency_fund_months"`
	Band            string  `json:"band"`
}
