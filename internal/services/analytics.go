package services

import (
	"context"
	"net/url"
	"strconv"

	"fintrack/internal/api"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Analytics serves the derived reports. Read-only: every method is a cached
// fetch and nothing here ever invalidates. Freshness comes from the
// mutation fan-out and the periodic refresh in the worker.
type Analytics struct {
	api    *api.Client
	store  *cache.Store
	logger *log.Logger
}

func NewAnalytics(apiClient *api.Client, store *cache.Store, logger *log.Logger) *Analytics {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentApp)
	}
	return &Analytics{api: apiClient, store: store, logger: logger}
}

func fetchReport[T any](ctx context.Context, s *Analytics, key cache.Key) (T, error) {
	return cache.FetchAs(ctx, s.store, key, func(ctx context.Context) (T, error) {
		var out T
		err := s.api.Get(ctx, key.String(), &out)
		return out, err
	})
}

func (s *Analytics) DailyBudget(ctx context.Context) (core.DailyBudget, error) {
	return fetchReport[core.DailyBudget](ctx, s, cache.AnalyticsKey(cache.ReportDailyBudget))
}

// DailyReport returns the report for date, or for today when date is zero.
func (s *Analytics) DailyReport(ctx context.Context, date core.Date) (core.DailyReport, error) {
	q := url.Values{}
	if !date.IsZero() {
		q.Set("report_date", date.String())
	}
	return fetchReport[core.DailyReport](ctx, s, cache.AnalyticsQueryKey(cache.ReportDailyReport, q))
}

// MonthlyReport returns the report for year/month, or the current month
// when year is zero.
func (s *Analytics) MonthlyReport(ctx context.Context, year, month int) (core.MonthlyReport, error) {
	q := url.Values{}
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
		q.Set("month", strconv.Itoa(month))
	}
	return fetchReport[core.MonthlyReport](ctx, s, cache.AnalyticsQueryKey(cache.ReportMonthlyReport, q))
}

// CategoryBreakdown covers [start, end], defaulting server-side to the
// current month when both are zero.
func (s *Analytics) CategoryBreakdown(ctx context.Context, start, end core.Date) (core.CategoryBreakdown, error) {
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start_date", start.String())
	}
	if !end.IsZero() {
		q.Set("end_date", end.String())
	}
	return fetchReport[core.CategoryBreakdown](ctx, s, cache.AnalyticsQueryKey(cache.ReportCategoryBreakdown, q))
}

func (s *Analytics) GoalProgress(ctx context.Context) (core.GoalProgress, error) {
	return fetchReport[core.GoalProgress](ctx, s, cache.AnalyticsKey(cache.ReportGoalProgress))
}
