package entity

// ClientSnapshot 单个客户的指标快照，仅在聚合查询内部使用
type ClientSnapshot struct {
	ClientID           string
	AdvisorID          string
	Name               string
	MonthlyIncome      float64
	SavingsRatePct     float64
	RiskProfile        RiskProfile
	HealthScore        int
	ActiveGoals        int
	GoalsOnTrack       int
	TopExpenseCategory string
}

// CohortSummary 顾问名下客户群的聚合视图。
// 只包含聚合字段，不含任何单个客户的标识或原始数据。
type CohortSummary struct {
	ClientCount          int            `json:"client_count"`
	AvgHealthScore       float64        `json:"avg_health_score"`
	MedianSavingsRatePct float64        `json:"median_savings_rate_pct"`
	AvgMonthlyIncome     float64        `json:"avg_monthly_income"`
	RiskMix              map[string]int `json:"risk_mix"`
	HealthBands          map[string]int `json:"health_bands"`
	CommonExpenseTop     []string       `json:"common_expense_categories"`
	GoalsOnTrackPct      float64        `json:"goals_on_track_pct"`
	NeedsAttention       int            `json:"clients_needing_attention"`
}
