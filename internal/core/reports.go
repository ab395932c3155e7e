package core

// Analytics report payloads as served by the remote API. The cache treats
// them as opaque values; these types exist for the CLI and service layer.

type DailyBudget struct {
	DailyBudget               float64 `json:"daily_budget"`
	DailyBudgetWithMultiplier float64 `json:"daily_budget_with_multiplier"`
	MonthlyIncome             float64 `json:"monthly_income"`
	GoalContributions         float64 `json:"goal_contributions"`
	AvailableForSpending      float64 `json:"available_for_spending"`
	CurrentAmount             float64 `json:"current_amount"`
	DaysRemainingInMonth      int     `json:"days_remaining_in_month"`
	DaysInMonth               int     `json:"days_in_month"`
	IsPreferredDay            bool    `json:"is_preferred_day"`
	Multiplier                float64 `json:"multiplier"`
	DaysUntilDeadline         int     `json:"days_until_deadline"`
	TotalAvailableByDeadline  float64 `json:"total_available_by_deadline"`
	MoneyNeededPerDay         float64 `json:"money_needed_per_day"`
	TotalNeeded               float64 `json:"total_needed"`
	DaysRemaining             int     `json:"days_remaining"`
	Shortfall                 float64 `json:"shortfall"`
	EarliestDeadline          Date    `json:"earliest_deadline,omitempty"`
}

type DailyReport struct {
	Date              Date               `json:"date"`
	TotalIncome       float64            `json:"total_income"`
	TotalExpenses     float64            `json:"total_expenses"`
	NetChange         float64            `json:"net_change"`
	DailyBudget       float64            `json:"daily_budget"`
	BudgetRemaining   float64            `json:"budget_remaining"`
	CategoryBreakdown map[string]float64 `json:"category_breakdown"`
	TransactionCount  int                `json:"transaction_count"`
	Insights          []string           `json:"insights"`
}

type MonthlyReport struct {
	Year              int                          `json:"year"`
	Month             int                          `json:"month"`
	TotalIncome       float64                      `json:"total_income"`
	TotalExpenses     float64                      `json:"total_expenses"`
	NetChange         float64                      `json:"net_change"`
	CategoryBreakdown map[string]float64           `json:"category_breakdown"`
	Insights          []string                     `json:"insights"`
	DailyBreakdown    map[string]DailyIncomeExpense `json:"daily_breakdown"`
}

type DailyIncomeExpense struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
}

type CategoryBreakdown struct {
	StartDate           Date               `json:"start_date"`
	EndDate             Date               `json:"end_date"`
	TotalExpenses       float64            `json:"total_expenses"`
	CategoryTotals      map[string]float64 `json:"category_totals"`
	CategoryPercentages map[string]float64 `json:"category_percentages"`
	TransactionCount    int                `json:"transaction_count"`
	Insights            []string           `json:"insights"`
}

type GoalProgress struct {
	Goals           []GoalProgressItem `json:"goals"`
	TotalGoals      int                `json:"total_goals"`
	OverallProgress float64            `json:"overall_progress"`
}

type GoalProgressItem struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	TargetAmount       float64 `json:"target_amount"`
	Deadline           Date    `json:"deadline"`
	CurrentAmount      float64 `json:"current_amount"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// OCR and AI payloads.

type OCRItem struct {
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Date        Date            `json:"date"`
	Type        TransactionType `json:"type"`
	Category    ExpenseCategory `json:"category,omitempty"`
	Merchant    string          `json:"merchant,omitempty"`
	Confidence  float64         `json:"confidence"`
}

type OCRResult struct {
	Transactions         []OCRItem `json:"transactions"`
	TotalAmount          float64   `json:"total_amount"`
	DocumentType         string    `json:"document_type"`
	ProcessingConfidence float64   `json:"processing_confidence"`
	RawText              string    `json:"raw_text,omitempty"`
	Warnings             []string  `json:"warnings"`
}

type BulkCreateResult struct {
	CreatedCount   int      `json:"created_count"`
	FailedCount    int      `json:"failed_count"`
	TransactionIDs []string `json:"transaction_ids"`
	Errors         []string `json:"errors"`
}

type AIQueryResult struct {
	Response    string   `json:"response"`
	DataSources []string `json:"data_sources"`
	Suggestions []string `json:"suggestions"`
	Confidence  float64  `json:"confidence"`
}

type AIAnalysis struct {
	Summary         string           `json:"summary"`
	ConfidenceScore float64          `json:"confidence_score"`
	Recommendations []Recommendation `json:"recommendations"`
	Insights        []Insight        `json:"insights"`
}

type Recommendation struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Type             string   `json:"type"`
	Priority         string   `json:"priority"`
	PotentialSavings float64  `json:"potential_savings,omitempty"`
	ActionItems      []string `json:"action_items"`
	CategoryFocus    string   `json:"category_focus,omitempty"`
}

type Insight struct {
	InsightType    string  `json:"insight_type"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	MetricValue    float64 `json:"metric_value,omitempty"`
	MetricUnit     string  `json:"metric_unit,omitempty"`
	TrendDirection string  `json:"trend_direction,omitempty"`
	Severity       string  `json:"severity,omitempty"`
}
