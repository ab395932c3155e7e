package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTransactionDraft_Validate(t *testing.T) {
	today := Today()

	tests := []struct {
		name    string
		draft   TransactionDraft
		wantErr error
	}{
		{
			name: "valid expense",
			draft: TransactionDraft{
				Amount:   amount("500"),
				Type:     Expense,
				Category: Groceries,
				Date:     today,
			},
		},
		{
			name: "valid income without category",
			draft: TransactionDraft{
				Amount: amount("2500.50"),
				Type:   Income,
				Date:   today,
			},
		},
		{
			name: "zero amount",
			draft: TransactionDraft{
				Amount:   decimal.Zero,
				Type:     Expense,
				Category: Groceries,
				Date:     today,
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "negative amount",
			draft: TransactionDraft{
				Amount:   amount("-12.30"),
				Type:     Expense,
				Category: Groceries,
				Date:     today,
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "unknown type",
			draft: TransactionDraft{
				Amount: amount("10"),
				Type:   "transfer",
				Date:   today,
			},
			wantErr: ErrInvalidType,
		},
		{
			name: "expense without category",
			draft: TransactionDraft{
				Amount: amount("10"),
				Type:   Expense,
				Date:   today,
			},
			wantErr: ErrCategoryRequired,
		},
		{
			name: "income with category",
			draft: TransactionDraft{
				Amount:   amount("10"),
				Type:     Income,
				Category: Groceries,
				Date:     today,
			},
			wantErr: ErrCategoryForbidden,
		},
		{
			name: "unknown category",
			draft: TransactionDraft{
				Amount:   amount("10"),
				Type:     Expense,
				Category: "CRYPTO",
				Date:     today,
			},
			wantErr: ErrUnknownCategory,
		},
		{
			name: "missing date",
			draft: TransactionDraft{
				Amount:   amount("10"),
				Type:     Expense,
				Category: Groceries,
			},
			wantErr: ErrZeroDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGoalDraft_Validate(t *testing.T) {
	future := Date{Time: time.Now().AddDate(0, 1, 0)}
	past := Date{Time: time.Now().AddDate(0, -1, 0)}

	tests := []struct {
		name    string
		draft   GoalDraft
		wantErr error
	}{
		{
			name:  "valid goal",
			draft: GoalDraft{Title: "Vacation", TargetAmount: amount("3000"), Deadline: future},
		},
		{
			name:    "empty title",
			draft:   GoalDraft{Title: "   ", TargetAmount: amount("3000"), Deadline: future},
			wantErr: ErrEmptyTitle,
		},
		{
			name:    "non-positive target",
			draft:   GoalDraft{Title: "Vacation", TargetAmount: decimal.Zero, Deadline: future},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "deadline in the past",
			draft:   GoalDraft{Title: "Vacation", TargetAmount: amount("3000"), Deadline: past},
			wantErr: ErrDeadlineNotFuture,
		},
		{
			name:    "deadline today",
			draft:   GoalDraft{Title: "Vacation", TargetAmount: amount("3000"), Deadline: Today()},
			wantErr: ErrDeadlineNotFuture,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProfileUpdate_Validate(t *testing.T) {
	negative := amount("-1")
	tooHigh := amount("10.5")
	ok := amount("1.5")
	income := amount("50000")

	tests := []struct {
		name    string
		update  ProfileUpdate
		wantErr error
	}{
		{
			name:   "valid full update",
			update: ProfileUpdate{MonthlyIncome: &income, DailyBudgetMultiplier: &ok, PreferredSpendingDays: []string{"Friday", "Saturday"}},
		},
		{
			name:   "empty update",
			update: ProfileUpdate{},
		},
		{
			name:    "negative income",
			update:  ProfileUpdate{MonthlyIncome: &negative},
			wantErr: ErrNegativeIncome,
		},
		{
			name:    "multiplier out of range",
			update:  ProfileUpdate{DailyBudgetMultiplier: &tooHigh},
			wantErr: ErrInvalidMultiplier,
		},
		{
			name:    "bad weekday",
			update:  ProfileUpdate{PreferredSpendingDays: []string{"Funday"}},
			wantErr: ErrInvalidWeekday,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDate_JSONRoundTrip(t *testing.T) {
	d := NewDate(2025, time.March, 9)

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2025-03-09"` {
		t.Errorf("marshal = %s, want \"2025-03-09\"", data)
	}

	var parsed Date
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !parsed.Equal(d.Time) {
		t.Errorf("round trip = %v, want %v", parsed, d)
	}
}

func TestDate_UnmarshalEmpty(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`""`), &d); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if !d.IsZero() {
		t.Errorf("expected zero date, got %v", d)
	}
}
