package cache

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind partitions the cache-key space. Each kind corresponds to one family
// of API resources; prefix invalidation operates on kinds instead of
// parsing strings.
type Kind string

const (
	KindTransactions Kind = "transactions"
	KindAnalytics    Kind = "analytics"
	KindGoals        Kind = "goals"
	KindProfile      Kind = "profile"
)

// Report names one analytics endpoint.
type Report string

const (
	ReportDailyBudget       Report = "daily-budget"
	ReportDailyReport       Report = "daily-report"
	ReportMonthlyReport     Report = "monthly-report"
	ReportCategoryBreakdown Report = "category-breakdown"
	ReportGoalProgress      Report = "goal-progress"
)

// Key identifies one unit of cached server-derived data. Its canonical
// string form is the API request path (plus query), which keeps the key
// vocabulary aligned with the remote endpoints.
type Key struct {
	kind Kind
	path string
}

func (k Key) Kind() Kind     { return k.kind }
func (k Key) String() string { return k.path }
func (k Key) IsZero() bool   { return k.path == "" }

func TransactionsKey() Key {
	return Key{kind: KindTransactions, path: "/transactions"}
}

// TransactionsQueryKey caches one page/filter combination of the
// transaction list. Encode sorts parameters, so equal filters always map to
// the same key.
func TransactionsQueryKey(query url.Values) Key {
	if len(query) == 0 {
		return TransactionsKey()
	}
	return Key{kind: KindTransactions, path: "/transactions?" + query.Encode()}
}

func GoalsKey() Key {
	return Key{kind: KindGoals, path: "/goals"}
}

func ProfileKey() Key {
	return Key{kind: KindProfile, path: "/user/profile"}
}

func AnalyticsKey(report Report) Key {
	return Key{kind: KindAnalytics, path: "/analytics/" + string(report)}
}

// AnalyticsQueryKey caches a parameterized report (e.g. a daily report for
// a specific date).
func AnalyticsQueryKey(report Report, query url.Values) Key {
	if len(query) == 0 {
		return AnalyticsKey(report)
	}
	return Key{kind: KindAnalytics, path: "/analytics/" + string(report) + "?" + query.Encode()}
}

// ParseKey reconstructs a Key from its canonical string form. Used when
// warming the store from persisted snapshots.
func ParseKey(s string) (Key, error) {
	switch {
	case s == "/user/profile":
		return ProfileKey(), nil
	case s == "/transactions" || strings.HasPrefix(s, "/transactions?"):
		return Key{kind: KindTransactions, path: s}, nil
	case s == "/goals":
		return GoalsKey(), nil
	case strings.HasPrefix(s, "/analytics/"):
		return Key{kind: KindAnalytics, path: s}, nil
	default:
		return Key{}, fmt.Errorf("unrecognized cache key %q", s)
	}
}

// Selector picks cache keys for invalidation: one exact key, every
// parameterized variant of one report, or every key of a kind.
type Selector struct {
	kind   Kind
	exact  string // empty unless exact
	report Report // empty unless report-wide
}

// Exactly selects the single given key.
func Exactly(k Key) Selector {
	return Selector{kind: k.kind, exact: k.path}
}

// AllOfReport selects a report's base key and every parameterized variant
// of it, so a dated daily report goes stale together with today's.
func AllOfReport(report Report) Selector {
	return Selector{kind: KindAnalytics, report: report}
}

// AllOfKind selects every currently-known key of the given kind.
func AllOfKind(kind Kind) Selector {
	return Selector{kind: kind}
}

func (s Selector) Matches(k Key) bool {
	switch {
	case s.exact != "":
		return s.exact == k.path
	case s.report != "":
		base := "/analytics/" + string(s.report)
		return k.path == base || strings.HasPrefix(k.path, base+"?")
	default:
		return s.kind == k.kind
	}
}

func (s Selector) IsExact() bool { return s.exact != "" }

func (s Selector) String() string {
	switch {
	case s.exact != "":
		return "exact:" + s.exact
	case s.report != "":
		return "report:" + string(s.report)
	default:
		return "kind:" + string(s.kind)
	}
}
