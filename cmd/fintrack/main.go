package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"fintrack/internal/api"
	"fintrack/internal/auth"
	"fintrack/internal/bus"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/invalidation"
	"fintrack/internal/log"
	"fintrack/internal/ratelimit"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

const usage = `fintrack - personal finance tracker

Usage:
  fintrack tx list [-page N] [-per-page N] [-type income|expense] [-category C] [-search Q]
  fintrack tx add -amount A -type income|expense [-category C] [-desc D] [-date YYYY-MM-DD]
  fintrack tx delete -id UUID
  fintrack tx categorize -desc D [-amount A]
  fintrack goal list
  fintrack goal add -title T -target A -deadline YYYY-MM-DD
  fintrack goal delete -id UUID
  fintrack budget
  fintrack report daily [-date YYYY-MM-DD]
  fintrack report monthly [-year Y -month M]
  fintrack breakdown [-start YYYY-MM-DD] [-end YYYY-MM-DD]
  fintrack progress
  fintrack profile show
  fintrack profile set [-name N] [-income A] [-multiplier M] [-days Mon,Tue,...]
  fintrack ai ask -q QUESTION
  fintrack ai analyze
  fintrack ocr -file PATH [-import]
  fintrack me
  fintrack logout
`

// app bundles everything a subcommand needs.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	store  *cache.Store
	snap   *storage.SnapshotRepository
	busCli *bus.Client

	transactions *services.Transactions
	goals        *services.Goals
	profile      *services.Profile
	analytics    *services.Analytics
	session      *services.Session
	ai           *services.AI
}

func main() {
	// .env is for local development only; missing files are fine
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentCLI)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", log.FieldError, err)
		os.Exit(1)
	}
	defer cleanup()

	if err := a.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app, func(), error) {
	tokens := auth.NewTokenStore(cfg.TokenPath)

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		CleanupInterval:   time.Minute,
	})

	client, err := api.NewClient(cfg.APIBaseURL,
		api.WithTokenSource(tokens),
		api.WithLimiter(limiter),
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		api.WithLogger(logger.WithComponent(log.ComponentAPI)))
	if err != nil {
		limiter.Stop()
		return nil, nil, fmt.Errorf("create API client: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	var storeOpts []cache.StoreOption
	storeOpts = append(storeOpts, cache.WithLogger(logger.WithComponent(log.ComponentCache)))
	if cfg.CacheBackend == "sqlite" {
		snap, err := storage.NewSnapshotRepository(cfg.SQLiteCachePath, logger.WithComponent(log.ComponentStorage))
		if err != nil {
			limiter.Stop()
			return nil, nil, fmt.Errorf("open snapshot repository: %w", err)
		}
		a.snap = snap
		storeOpts = append(storeOpts, cache.WithSnapshotter(snap))
	}

	a.store = cache.NewStore(storeOpts...)
	if err := a.store.Warm(ctx); err != nil {
		logger.Warn("cache warm failed, starting cold", log.FieldError, err)
	}

	coordOpts := []invalidation.Option{
		invalidation.WithLogger(logger.WithComponent(log.ComponentInvalidation)),
	}
	if cfg.BusEnabled() {
		busCli, err := bus.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			uuid.NewString(), logger.WithComponent(log.ComponentBus))
		if err != nil {
			// the CLI stays usable without cross-process invalidation
			logger.Warn("invalidation bus unavailable", log.FieldError, err)
		} else {
			a.busCli = busCli
			coordOpts = append(coordOpts, invalidation.WithPublisher(busCli))
		}
	}

	coord := invalidation.NewCoordinator(a.store, coordOpts...)

	a.transactions = services.NewTransactions(client, a.store, coord, logger)
	a.goals = services.NewGoals(client, a.store, coord, logger)
	a.profile = services.NewProfile(client, a.store, coord, logger)
	a.analytics = services.NewAnalytics(client, a.store, logger)
	a.session = services.NewSession(client, a.store, tokens, logger.WithComponent(log.ComponentSession))
	a.ai = services.NewAI(client, logger)

	cleanup := func() {
		a.store.Close()
		limiter.Stop()
		if a.busCli != nil {
			a.busCli.Close()
		}
		if a.snap != nil {
			a.snap.Close()
		}
	}
	return a, cleanup, nil
}

func (a *app) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "tx":
		return a.runTx(ctx, args[1:])
	case "goal":
		return a.runGoal(ctx, args[1:])
	case "budget":
		return a.runBudget(ctx)
	case "report":
		return a.runReport(ctx, args[1:])
	case "breakdown":
		return a.runBreakdown(ctx, args[1:])
	case "progress":
		return a.runProgress(ctx)
	case "profile":
		return a.runProfile(ctx, args[1:])
	case "ai":
		return a.runAI(ctx, args[1:])
	case "ocr":
		return a.runOCR(ctx, args[1:])
	case "me":
		return a.runMe(ctx)
	case "logout":
		return a.session.Logout(ctx)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q (run 'fintrack help')", args[0])
	}
}

func parseDate(s string) (core.Date, error) {
	var d core.Date
	if s == "" {
		return d, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return d, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return core.NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (a *app) runTx(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("tx needs a subcommand: list, add, delete, categorize")
	}
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("tx list", flag.ExitOnError)
		page := fs.Int("page", 1, "page number")
		perPage := fs.Int("per-page", 20, "items per page")
		txType := fs.String("type", "", "income or expense")
		category := fs.String("category", "", "expense category")
		search := fs.String("search", "", "search in descriptions")
		fs.Parse(args[1:])

		list, err := a.transactions.List(ctx, services.TransactionFilters{
			Page:     *page,
			PerPage:  *perPage,
			Type:     core.TransactionType(*txType),
			Category: core.ExpenseCategory(*category),
			Search:   *search,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tTYPE\tCATEGORY\tAMOUNT\tDESCRIPTION\tID")
		for _, tx := range list.Transactions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				tx.Date, tx.Type, tx.Category, tx.Amount, tx.Description, tx.ID)
		}
		w.Flush()
		fmt.Printf("page %d/%d, %d total\n", list.Page, list.TotalPages, list.Total)
		return nil

	case "add":
		fs := flag.NewFlagSet("tx add", flag.ExitOnError)
		amount := fs.String("amount", "", "amount (required)")
		txType := fs.String("type", "", "income or expense (required)")
		category := fs.String("category", "", "expense category")
		desc := fs.String("desc", "", "description")
		date := fs.String("date", "", "YYYY-MM-DD (default: today)")
		fs.Parse(args[1:])

		amt, err := decimal.NewFromString(*amount)
		if err != nil {
			return fmt.Errorf("invalid amount %q", *amount)
		}
		day, err := parseDate(*date)
		if err != nil {
			return err
		}
		if day.IsZero() {
			day = core.Today()
		}

		created, err := a.transactions.Create(ctx, core.TransactionDraft{
			Amount:      amt,
			Type:        core.TransactionType(*txType),
			Category:    core.ExpenseCategory(*category),
			Description: *desc,
			Date:        day,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created transaction %s\n", created.ID)
		return nil

	case "delete":
		fs := flag.NewFlagSet("tx delete", flag.ExitOnError)
		id := fs.String("id", "", "transaction ID (required)")
		fs.Parse(args[1:])

		parsed, err := uuid.Parse(*id)
		if err != nil {
			return fmt.Errorf("invalid transaction ID %q", *id)
		}
		if err := a.transactions.Delete(ctx, parsed); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil

	case "categorize":
		fs := flag.NewFlagSet("tx categorize", flag.ExitOnError)
		desc := fs.String("desc", "", "description (required)")
		amount := fs.String("amount", "", "amount (optional, improves the guess)")
		fs.Parse(args[1:])

		suggestion, err := a.transactions.Categorize(ctx, *desc, *amount)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s confidence)\n", suggestion.Category, suggestion.Confidence)
		return nil

	default:
		return fmt.Errorf("unknown tx subcommand %q", args[0])
	}
}

func (a *app) runGoal(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("goal needs a subcommand: list, add, delete")
	}
	switch args[0] {
	case "list":
		list, err := a.goals.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TITLE\tTARGET\tDEADLINE\tID")
		for _, g := range list.Goals {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Title, g.TargetAmount, g.Deadline, g.ID)
		}
		w.Flush()
		return nil

	case "add":
		fs := flag.NewFlagSet("goal add", flag.ExitOnError)
		title := fs.String("title", "", "goal title (required)")
		target := fs.String("target", "", "target amount (required)")
		deadline := fs.String("deadline", "", "YYYY-MM-DD (required)")
		fs.Parse(args[1:])

		amt, err := decimal.NewFromString(*target)
		if err != nil {
			return fmt.Errorf("invalid target amount %q", *target)
		}
		day, err := parseDate(*deadline)
		if err != nil {
			return err
		}

		created, err := a.goals.Create(ctx, core.GoalDraft{
			Title:        *title,
			TargetAmount: amt,
			Deadline:     day,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created goal %s\n", created.ID)
		return nil

	case "delete":
		fs := flag.NewFlagSet("goal delete", flag.ExitOnError)
		id := fs.String("id", "", "goal ID (required)")
		fs.Parse(args[1:])

		parsed, err := uuid.Parse(*id)
		if err != nil {
			return fmt.Errorf("invalid goal ID %q", *id)
		}
		if err := a.goals.Delete(ctx, parsed); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil

	default:
		return fmt.Errorf("unknown goal subcommand %q", args[0])
	}
}

func (a *app) runBudget(ctx context.Context) error {
	budget, err := a.analytics.DailyBudget(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("daily budget: %.2f", budget.DailyBudget)
	if budget.Multiplier != 1 && budget.Multiplier != 0 {
		fmt.Printf(" (x%.1f today: %.2f)", budget.Multiplier, budget.DailyBudgetWithMultiplier)
	}
	fmt.Println()
	fmt.Printf("available for spending: %.2f over %d remaining days\n",
		budget.AvailableForSpending, budget.DaysRemainingInMonth)
	if budget.Shortfall > 0 {
		fmt.Printf("shortfall towards goals: %.2f\n", budget.Shortfall)
	}
	return nil
}

func (a *app) runReport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("report needs a subcommand: daily, monthly")
	}
	switch args[0] {
	case "daily":
		fs := flag.NewFlagSet("report daily", flag.ExitOnError)
		date := fs.String("date", "", "YYYY-MM-DD (default: today)")
		fs.Parse(args[1:])

		day, err := parseDate(*date)
		if err != nil {
			return err
		}
		report, err := a.analytics.DailyReport(ctx, day)
		if err != nil {
			return err
		}
		fmt.Printf("%s: income %.2f, expenses %.2f, net %.2f (%d transactions)\n",
			report.Date, report.TotalIncome, report.TotalExpenses, report.NetChange, report.TransactionCount)
		fmt.Printf("budget %.2f, remaining %.2f\n", report.DailyBudget, report.BudgetRemaining)
		for _, insight := range report.Insights {
			fmt.Println("  -", insight)
		}
		return nil

	case "monthly":
		fs := flag.NewFlagSet("report monthly", flag.ExitOnError)
		year := fs.Int("year", 0, "year (default: current)")
		month := fs.Int("month", 0, "month 1-12")
		fs.Parse(args[1:])

		if *year != 0 && (*month < 1 || *month > 12) {
			return fmt.Errorf("month must be 1-12 when year is given")
		}
		report, err := a.analytics.MonthlyReport(ctx, *year, *month)
		if err != nil {
			return err
		}
		fmt.Printf("%04d-%02d: income %.2f, expenses %.2f, net %.2f\n",
			report.Year, report.Month, report.TotalIncome, report.TotalExpenses, report.NetChange)
		for category, total := range report.CategoryBreakdown {
			fmt.Printf("  %s: %.2f\n", category, total)
		}
		return nil

	default:
		return fmt.Errorf("unknown report subcommand %q", args[0])
	}
}

func (a *app) runBreakdown(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("breakdown", flag.ExitOnError)
	start := fs.String("start", "", "YYYY-MM-DD")
	end := fs.String("end", "", "YYYY-MM-DD")
	fs.Parse(args)

	startDay, err := parseDate(*start)
	if err != nil {
		return err
	}
	endDay, err := parseDate(*end)
	if err != nil {
		return err
	}

	breakdown, err := a.analytics.CategoryBreakdown(ctx, startDay, endDay)
	if err != nil {
		return err
	}
	fmt.Printf("%s to %s: %.2f total across %d transactions\n",
		breakdown.StartDate, breakdown.EndDate, breakdown.TotalExpenses, breakdown.TransactionCount)
	for category, total := range breakdown.CategoryTotals {
		fmt.Printf("  %s: %.2f (%.1f%%)\n", category, total, breakdown.CategoryPercentages[category])
	}
	return nil
}

func (a *app) runProgress(ctx context.Context) error {
	progress, err := a.analytics.GoalProgress(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("overall progress: %.1f%% across %d goals\n", progress.OverallProgress, progress.TotalGoals)
	for _, g := range progress.Goals {
		fmt.Printf("  %s: %.2f / %.2f (%.1f%%), due %s\n",
			g.Title, g.CurrentAmount, g.TargetAmount, g.ProgressPercentage, g.Deadline)
	}
	return nil
}

func (a *app) runProfile(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("profile needs a subcommand: show, set")
	}
	switch args[0] {
	case "show":
		profile, err := a.profile.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s>\n", profile.Name, profile.Email)
		fmt.Printf("balance: %s, monthly income: %s\n", profile.CurrentAmount, profile.MonthlyIncome)
		fmt.Printf("budget multiplier: %s on %v\n", profile.DailyBudgetMultiplier, profile.PreferredSpendingDays)
		fmt.Printf("%d transactions, %d goals\n", profile.TotalTransactions, profile.TotalGoals)
		return nil

	case "set":
		fs := flag.NewFlagSet("profile set", flag.ExitOnError)
		name := fs.String("name", "", "display name")
		income := fs.String("income", "", "monthly income")
		multiplier := fs.String("multiplier", "", "daily budget multiplier")
		days := fs.String("days", "", "comma-separated preferred spending days")
		balance := fs.String("balance", "", "current amount")
		fs.Parse(args[1:])

		var patch core.ProfileUpdate
		if *name != "" {
			patch.Name = name
		}
		if *income != "" {
			amt, err := decimal.NewFromString(*income)
			if err != nil {
				return fmt.Errorf("invalid income %q", *income)
			}
			patch.MonthlyIncome = &amt
		}
		if *multiplier != "" {
			m, err := decimal.NewFromString(*multiplier)
			if err != nil {
				return fmt.Errorf("invalid multiplier %q", *multiplier)
			}
			patch.DailyBudgetMultiplier = &m
		}
		if *balance != "" {
			amt, err := decimal.NewFromString(*balance)
			if err != nil {
				return fmt.Errorf("invalid balance %q", *balance)
			}
			patch.CurrentAmount = &amt
		}
		if *days != "" {
			patch.PreferredSpendingDays = splitDays(*days)
		}

		if _, err := a.profile.Update(ctx, patch); err != nil {
			return err
		}
		fmt.Println("profile updated")
		return nil

	default:
		return fmt.Errorf("unknown profile subcommand %q", args[0])
	}
}

func splitDays(s string) []string {
	var days []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if day := s[start:i]; day != "" {
				days = append(days, day)
			}
			start = i + 1
		}
	}
	return days
}

func (a *app) runAI(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("ai needs a subcommand: ask, analyze")
	}
	switch args[0] {
	case "ask":
		fs := flag.NewFlagSet("ai ask", flag.ExitOnError)
		q := fs.String("q", "", "question (required)")
		fs.Parse(args[1:])

		result, err := a.ai.Query(ctx, *q)
		if err != nil {
			return err
		}
		fmt.Println(result.Response)
		for _, s := range result.Suggestions {
			fmt.Println("  -", s)
		}
		return nil

	case "analyze":
		analysis, err := a.ai.Analyze(ctx)
		if err != nil {
			return err
		}
		fmt.Println(analysis.Summary)
		for _, rec := range analysis.Recommendations {
			fmt.Printf("  [%s] %s: %s\n", rec.Priority, rec.Title, rec.Description)
		}
		return nil

	default:
		return fmt.Errorf("unknown ai subcommand %q", args[0])
	}
}

func (a *app) runOCR(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ocr", flag.ExitOnError)
	path := fs.String("file", "", "receipt image path (required)")
	doImport := fs.Bool("import", false, "import extracted transactions without review")
	fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-file is required")
	}
	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open receipt: %w", err)
	}
	defer f.Close()

	result, err := a.ai.ProcessOCR(ctx, f.Name(), f)
	if err != nil {
		return err
	}

	fmt.Printf("extracted %d transactions (%.0f%% confidence, %s)\n",
		len(result.Transactions), result.ProcessingConfidence*100, result.DocumentType)
	for i, item := range result.Transactions {
		fmt.Printf("  %d. %s %s %.2f %s\n", i+1, item.Date, item.Category, item.Amount, item.Description)
	}
	for _, warning := range result.Warnings {
		fmt.Println("  warning:", warning)
	}

	if !*doImport || len(result.Transactions) == 0 {
		if len(result.Transactions) > 0 {
			fmt.Println("re-run with -import to create these transactions")
		}
		return nil
	}

	imported, err := a.transactions.BulkCreate(ctx, result.Transactions)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d, failed %d\n", imported.CreatedCount, imported.FailedCount)
	for _, e := range imported.Errors {
		fmt.Println("  error:", e)
	}
	return nil
}

func (a *app) runMe(ctx context.Context) error {
	if !a.session.LoggedIn() {
		return fmt.Errorf("not logged in (run fintrack-login first)")
	}
	me, err := a.session.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\n", me.Name, me.Email)
	fmt.Printf("member since %s\n", me.CreatedAt.Format("2006-01-02"))
	return nil
}
