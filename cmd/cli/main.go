package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/smart-finance/internal/app"
	"github.com/dvloznov/smart-finance/internal/config"
	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/logger"
	"github.com/dvloznov/smart-finance/internal/pipeline"
	"github.com/dvloznov/smart-finance/internal/report"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "help", "-h", "--help":
		printUsage()
		return
	case "parse", "add", "list", "sync", "rate", "monobank", "report":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	switch cmd {
	case "parse":
		runParse(cfg, log)
	case "add":
		runAdd(cfg, log)
	case "list":
		runList(cfg, log)
	case "sync":
		runSync(cfg, log)
	case "rate":
		runRate(cfg, log)
	case "monobank":
		runMonobank(cfg, log)
	case "report":
		runReport(cfg, log)
	}
}

func printUsage() {
	fmt.Println("Smart Finance CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse     Parse a free-text message without storing it")
	fmt.Println("  add       Parse a message and store the transaction")
	fmt.Println("  list      List stored transactions")
	fmt.Println("  sync      Import the Monobank statement")
	fmt.Println("  rate      Show or set the USD rate")
	fmt.Println("  monobank  Save the Monobank token and account")
	fmt.Println("  report    Show a monthly report")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// setup builds the dependencies and returns a context carrying the logger.
func setup(cfg *config.Config, log zerolog.Logger, offline bool, timeout time.Duration) (context.Context, func(), *app.Deps) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = logger.WithContext(ctx, log)

	deps, err := app.Build(ctx, cfg, log, app.Options{Offline: offline})
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to initialize dependencies")
	}

	return ctx, func() {
		if err := deps.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close dependencies")
		}
		cancel()
	}, deps
}

func runParse(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	offline := fs.Bool("offline", false, "Use the local rules instead of the model")
	user := fs.String("user", "", "User whose categories guide the model")
	fs.Parse(os.Args[2:])

	text := strings.Join(fs.Args(), " ")
	if text == "" {
		log.Fatal().Msg("Usage: cli parse [-offline] [-user ID] TEXT")
	}

	ctx, done, deps := setup(cfg, log, *offline, time.Minute)
	defer done()

	var existing []domain.Transaction
	if *user != "" {
		res, err := deps.Store.List(ctx, *user)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list transactions")
		}
		existing = res.Transactions
	}

	parsed, err := deps.Pipeline.Parse(ctx, text, existing)
	if err != nil {
		log.Fatal().Err(err).Msg(domain.UserMessage(err))
	}
	if parsed == nil {
		color.Yellow("Nothing recognized, try rephrasing.")
		return
	}

	fmt.Println("\n=== Parsed ===")
	fmt.Printf("Amount:      %.2f %s\n", parsed.Amount, parsed.Currency)
	fmt.Printf("Type:        %s\n", typeLabel(parsed.Type))
	fmt.Printf("Category:    %s\n", parsed.Category)
	fmt.Printf("Description: %s\n", parsed.Description)
	fmt.Printf("Date:        %s\n", parsed.Date)
}

func runAdd(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	offline := fs.Bool("offline", false, "Use the local rules instead of the model")
	fs.Parse(os.Args[2:])

	text := strings.Join(fs.Args(), " ")
	if *user == "" || text == "" {
		log.Fatal().Msg("Usage: cli add -user ID TEXT")
	}

	ctx, done, deps := setup(cfg, log, *offline, time.Minute)
	defer done()

	res, err := deps.Pipeline.AddFromText(ctx, *user, text)
	if err != nil {
		log.Fatal().Err(err).Msg(domain.UserMessage(err))
	}

	printTransactions([]domain.Transaction{res.Transaction})
	printPersistence(res.Persistence.LocalOnly, res.Persistence.Reason)
}

func runList(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	limit := fs.Int("limit", 20, "Maximum rows to show, 0 for all")
	fs.Parse(os.Args[2:])

	if *user == "" {
		log.Fatal().Msg("Usage: cli list -user ID")
	}

	ctx, done, deps := setup(cfg, log, true, time.Minute)
	defer done()

	res, err := deps.Store.List(ctx, *user)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}

	txs := res.Transactions
	if *limit > 0 && len(txs) > *limit {
		txs = txs[:*limit]
	}
	fmt.Printf("\n=== Transactions (%d of %d) ===\n", len(txs), len(res.Transactions))
	printTransactions(txs)
	printPersistence(res.Persistence.LocalOnly, res.Persistence.Reason)
}

func runSync(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	token := fs.String("token", "", "Monobank token (defaults to the saved one)")
	account := fs.String("account", "", "Account ID (defaults to the saved one)")
	days := fs.Int("days", cfg.Sync.Days, "How many days back to import")
	fs.Parse(os.Args[2:])

	if *user == "" {
		log.Fatal().Msg("Usage: cli sync -user ID [-token T] [-account A] [-days N]")
	}

	ctx, done, deps := setup(cfg, log, true, 5*time.Minute)
	defer done()

	log.Info().Str("user_id", *user).Int("days", *days).Msg("Starting sync")

	res, err := deps.Pipeline.Sync(ctx, *user, pipeline.SyncRequest{Token: *token, AccountID: *account, Days: *days})
	if err != nil {
		log.Fatal().Err(err).Msg(domain.UserMessage(err))
	}

	color.Green("Imported %d new transactions (%d relabeled), %d total.", len(res.Added), res.Relabeled, res.Count)
	if len(res.Added) > 0 {
		printTransactions(res.Added)
	}
	printPersistence(res.Persistence.LocalOnly, res.Persistence.Reason)
}

func runRate(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("rate", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	fs.Parse(os.Args[2:])

	if *user == "" {
		log.Fatal().Msg("Usage: cli rate -user ID [VALUE]")
	}

	ctx, done, deps := setup(cfg, log, true, time.Minute)
	defer done()

	if fs.NArg() == 0 {
		rate, err := deps.Settings.Rate(ctx, *user)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load rate")
		}
		fmt.Printf("USD rate: %.2f\n", rate)
		return
	}

	rate, err := deps.Settings.SetRate(ctx, *user, fs.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg(domain.UserMessage(err))
	}
	color.Green("USD rate set to %.2f", rate)
}

func runMonobank(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("monobank", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	token := fs.String("token", "", "Monobank personal token")
	account := fs.String("account", "", "Account ID, empty for the default account")
	autoSync := fs.Bool("auto-sync", false, "Include this user in scheduled syncs")
	fs.Parse(os.Args[2:])

	if *user == "" || *token == "" {
		log.Fatal().Msg("Usage: cli monobank -user ID -token T [-account A] [-auto-sync]")
	}

	ctx, done, deps := setup(cfg, log, true, time.Minute)
	defer done()

	if err := deps.Settings.SetMonobank(ctx, *user, *token, *account, *autoSync); err != nil {
		log.Fatal().Err(err).Msg(domain.UserMessage(err))
	}
	color.Green("Monobank settings saved.")
}

func runReport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	month := fs.String("month", time.Now().Format(report.MonthLayout), "Month in YYYY-MM form")
	csvPath := fs.String("csv", "", "Also write the month's transactions to this CSV file")
	send := fs.Bool("send", false, "Deliver the report through the notifier")
	archived := fs.String("archived", "", "Download the archived CSV of the month to this file")
	fs.Parse(os.Args[2:])

	if *user == "" {
		log.Fatal().Msg("Usage: cli report -user ID [-month YYYY-MM] [-csv FILE] [-send] [-archived FILE]")
	}

	ctx, done, deps := setup(cfg, log, true, 2*time.Minute)
	defer done()

	if *archived != "" {
		data, err := deps.Reports.Archived(ctx, *user, *month)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to download archived report")
		}
		if err := os.WriteFile(*archived, data, 0o644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write archived report")
		}
		fmt.Printf("Archived report written to %s\n", *archived)
		return
	}

	m, err := deps.Reports.Monthly(ctx, *user, *month)
	if err != nil {
		log.Fatal().Err(err).Msg(domain.UserMessage(err))
	}

	fmt.Printf("\n=== Report %s (%d transactions) ===\n", m.Month, m.Count)
	color.Green("Income:  %.2f %s", m.Totals.Income, domain.BaseCurrency)
	color.Red("Expense: %.2f %s", m.Totals.Expense, domain.BaseCurrency)
	fmt.Printf("Balance: %.2f %s\n", m.Totals.Balance, domain.BaseCurrency)

	if len(m.Breakdown) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Category", "Amount", "Share"})
		for _, row := range m.Breakdown {
			table.Append([]string{row.Category, fmt.Sprintf("%.2f", row.Amount), fmt.Sprintf("%.1f%%", row.Percent)})
		}
		table.Render()
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CSV file")
		}
		defer f.Close()
		if err := report.WriteCSV(f, m.Transactions); err != nil {
			log.Fatal().Err(err).Msg("Failed to write CSV")
		}
		fmt.Printf("CSV written to %s\n", *csvPath)
	}

	if *send {
		if err := deps.Reports.SendMonthly(ctx, *user, *month); err != nil {
			log.Fatal().Err(err).Msg("Failed to send report")
		}
		color.Green("Report sent.")
	}
}

func printTransactions(txs []domain.Transaction) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Date", "Type", "Amount", "Original", "Category", "Description"})
	for _, tx := range txs {
		original := ""
		if tx.OriginalAmount != nil {
			original = fmt.Sprintf("%.2f %s", *tx.OriginalAmount, tx.OriginalCurrency)
		}
		table.Append([]string{
			tx.Date,
			typeLabel(tx.Type),
			fmt.Sprintf("%.2f", tx.Amount),
			original,
			tx.Category,
			tx.Description,
		})
	}
	table.Render()
}

func printPersistence(localOnly bool, reason string) {
	if !localOnly {
		return
	}
	if reason == "" {
		reason = "remote store not configured"
	}
	color.Yellow("Saved locally only: %s", reason)
}

func typeLabel(t domain.TransactionType) string {
	if t == domain.Income {
		return color.GreenString(string(t))
	}
	return color.RedString(string(t))
}
