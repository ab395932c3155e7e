package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Expense categories accepted by the remote API.
const (
	FoodDining     ExpenseCategory = "FOOD_DINING"
	Groceries      ExpenseCategory = "GROCERIES"
	Transportation ExpenseCategory = "TRANSPORTATION"
	Shopping       ExpenseCategory = "SHOPPING"
	Entertainment  ExpenseCategory = "ENTERTAINMENT"
	BillsUtilities ExpenseCategory = "BILLS_UTILITIES"
	Healthcare     ExpenseCategory = "HEALTHCARE"
	Education      ExpenseCategory = "EDUCATION"
	Travel         ExpenseCategory = "TRAVEL"
	Fitness        ExpenseCategory = "FITNESS"
	PersonalCare   ExpenseCategory = "PERSONAL_CARE"
	GiftsDonations ExpenseCategory = "GIFTS_DONATIONS"
	Business       ExpenseCategory = "BUSINESS"
	Miscellaneous  ExpenseCategory = "MISCELLANEOUS"
)

type (
	TransactionType string

	ExpenseCategory string

	// Date is a calendar day without a time component, wired to the
	// API's "2006-01-02" JSON encoding.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          uuid.UUID       `json:"id"`
		UserID      uuid.UUID       `json:"user_id"`
		Amount      decimal.Decimal `json:"amount"`
		Type        TransactionType `json:"type"`
		Category    ExpenseCategory `json:"category,omitempty"`
		Description string          `json:"description,omitempty"`
		Date        Date            `json:"date"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}

	// TransactionDraft is a transaction as entered locally, before submission.
	TransactionDraft struct {
		Amount      decimal.Decimal `json:"amount"`
		Type        TransactionType `json:"type"`
		Category    ExpenseCategory `json:"category,omitempty"`
		Description string          `json:"description,omitempty"`
		Date        Date            `json:"date"`
	}

	TransactionList struct {
		Transactions []Transaction `json:"transactions"`
		Total        int           `json:"total"`
		Page         int           `json:"page"`
		PerPage      int           `json:"per_page"`
		TotalPages   int           `json:"total_pages"`
	}

	Goal struct {
		ID           uuid.UUID       `json:"id"`
		UserID       uuid.UUID       `json:"user_id"`
		Title        string          `json:"title"`
		TargetAmount decimal.Decimal `json:"target_amount"`
		Deadline     Date            `json:"deadline"`
		CreatedAt    time.Time       `json:"created_at"`
		UpdatedAt    time.Time       `json:"updated_at"`
	}

	GoalDraft struct {
		Title        string          `json:"title"`
		TargetAmount decimal.Decimal `json:"target_amount"`
		Deadline     Date            `json:"deadline"`
	}

	GoalList struct {
		Goals []Goal `json:"goals"`
		Total int    `json:"total"`
	}

	UserProfile struct {
		ID                    uuid.UUID       `json:"id"`
		Email                 string          `json:"email"`
		Name                  string          `json:"name"`
		AvatarURL             string          `json:"avatar_url,omitempty"`
		MonthlyIncome         decimal.Decimal `json:"monthly_income"`
		PreferredSpendingDays []string        `json:"preferred_spending_days"`
		DailyBudgetMultiplier decimal.Decimal `json:"daily_budget_multiplier"`
		CurrentAmount         decimal.Decimal `json:"current_amount"`
		TotalGoals            int             `json:"total_goals"`
		TotalTransactions     int             `json:"total_transactions"`
		CreatedAt             time.Time       `json:"created_at"`
	}

	// ProfileUpdate carries only the fields being changed; nil means untouched.
	ProfileUpdate struct {
		Name                  *string          `json:"name,omitempty"`
		MonthlyIncome         *decimal.Decimal `json:"monthly_income,omitempty"`
		PreferredSpendingDays []string         `json:"preferred_spending_days,omitempty"`
		DailyBudgetMultiplier *decimal.Decimal `json:"daily_budget_multiplier,omitempty"`
		CurrentAmount         *decimal.Decimal `json:"current_amount,omitempty"`
	}
)

var (
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInvalidType        = errors.New("transaction type must be income or expense")
	ErrCategoryRequired   = errors.New("category is required for expense transactions")
	ErrCategoryForbidden  = errors.New("category must not be set for income transactions")
	ErrUnknownCategory    = errors.New("unknown expense category")
	ErrEmptyTitle         = errors.New("title cannot be empty")
	ErrTitleTooLong       = errors.New("title exceeds 255 characters")
	ErrDeadlineNotFuture  = errors.New("deadline must be in the future")
	ErrNegativeIncome     = errors.New("monthly income cannot be negative")
	ErrInvalidMultiplier  = errors.New("daily budget multiplier must be between 0.1 and 10")
	ErrInvalidWeekday     = errors.New("invalid weekday name")
	ErrDescriptionTooLong = errors.New("description exceeds 500 characters")
	ErrZeroDate           = errors.New("date cannot be zero")
)

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// After reports whether d is strictly after other, comparing days only.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (c ExpenseCategory) IsValid() bool {
	switch c {
	case FoodDining, Groceries, Transportation, Shopping, Entertainment,
		BillsUtilities, Healthcare, Education, Travel, Fitness,
		PersonalCare, GiftsDonations, Business, Miscellaneous:
		return true
	default:
		return false
	}
}

// Categories returns all known expense categories in display order.
func Categories() []ExpenseCategory {
	return []ExpenseCategory{
		FoodDining, Groceries, Transportation, Shopping, Entertainment,
		BillsUtilities, Healthcare, Education, Travel, Fitness,
		PersonalCare, GiftsDonations, Business, Miscellaneous,
	}
}

// Validate checks a draft before it is submitted to the API.
// Validation failures block submission and never reach the HTTP layer.
func (t TransactionDraft) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if t.Type == Expense && t.Category == "" {
		return ErrCategoryRequired
	}
	if t.Type == Income && t.Category != "" {
		return ErrCategoryForbidden
	}
	if t.Category != "" && !t.Category.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, t.Category)
	}
	if len(t.Description) > 500 {
		return ErrDescriptionTooLong
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (g GoalDraft) Validate() error {
	title := strings.TrimSpace(g.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(g.Title) > 255 {
		return ErrTitleTooLong
	}
	if !g.TargetAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if g.Deadline.IsZero() {
		return ErrZeroDate
	}
	if !g.Deadline.After(Today()) {
		return ErrDeadlineNotFuture
	}
	return nil
}

var weekdays = map[string]struct{}{
	"Monday": {}, "Tuesday": {}, "Wednesday": {}, "Thursday": {},
	"Friday": {}, "Saturday": {}, "Sunday": {},
}

func (u ProfileUpdate) Validate() error {
	if u.MonthlyIncome != nil && u.MonthlyIncome.IsNegative() {
		return ErrNegativeIncome
	}
	if u.DailyBudgetMultiplier != nil {
		m := *u.DailyBudgetMultiplier
		if m.LessThan(decimal.RequireFromString("0.1")) || m.GreaterThan(decimal.NewFromInt(10)) {
			return ErrInvalidMultiplier
		}
	}
	for _, day := range u.PreferredSpendingDays {
		if _, ok := weekdays[day]; !ok {
			return fmt.Errorf("%w: %s", ErrInvalidWeekday, day)
		}
	}
	return nil
}
