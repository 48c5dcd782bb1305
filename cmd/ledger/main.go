// Command ledger ingests bank and card statements into the ledger.
//
// Usage:
//
//	ledger migrate
//	ledger analyze -file statement.csv
//	ledger import -file statement.csv -account "Operating" -type checking
//	ledger vendors -search "starbucks"
//	ledger serve
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ingestservice "github.com/FACorreiaa/statement-ledger/internal/domain/ingest/service"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ledger/pkg/config"
	"github.com/FACorreiaa/statement-ledger/pkg/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: ledger <migrate|analyze|import|vendors|serve> [flags]")
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Observability.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if command == "migrate" {
		return runMigrate(cfg, os.Args[2:])
	}

	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	switch command {
	case "analyze":
		return runAnalyze(ctx, deps, os.Args[2:])
	case "import":
		return runImport(ctx, deps, os.Args[2:])
	case "vendors":
		return runVendors(deps, os.Args[2:])
	case "serve":
		return runServe(ctx, deps)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runMigrate(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dir := fs.String("dir", "migrations", "migrations directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.Migrate(cfg.Database.DSN(), *dir)
}

func runAnalyze(ctx context.Context, deps *Dependencies, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	file := fs.String("file", "", "statement file to analyze")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}

	analysis, err := deps.IngestService.Analyze(ctx, data)
	if err != nil {
		return err
	}

	fmt.Printf("format:      %s\n", analysis.Format)
	if analysis.Header != nil {
		fmt.Printf("delimiter:   %q\n", analysis.Header.Delimiter)
		fmt.Printf("header row:  %d\n", analysis.Header.HeaderRow)
		fmt.Printf("headers:     %v\n", analysis.Header.Headers)
		fmt.Printf("fingerprint: %s\n", analysis.Header.Fingerprint)
		fmt.Printf("european:    %t\n", analysis.Header.Dialect.IsEuropeanFormat)
	}
	if analysis.MappingFound {
		fmt.Printf("known layout: %s\n", analysis.Mapping.BankName)
	}
	return nil
}

func runImport(ctx context.Context, deps *Dependencies, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "statement file to import")
	accountName := fs.String("account", "", "account name")
	accountType := fs.String("type", "checking", "account type: checking, savings, credit_card, line_of_credit")
	currency := fs.String("currency", "USD", "account currency")
	confirmed := fs.Bool("confirmed", false, "account type is confirmed, skip liability detection")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" || *accountName == "" {
		return fmt.Errorf("-file and -account are required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}

	account := ledger.BankAccount{
		ID:            uuid.New(),
		Name:          *accountName,
		Type:          ledger.AccountType(*accountType),
		Currency:      *currency,
		TypeConfirmed: *confirmed,
	}

	result, err := deps.IngestService.Import(ctx, ingestservice.ImportRequest{
		Account:        account,
		Filename:       filepath.Base(*file),
		FileData:       data,
		SkipDuplicates: deps.Config.Ingest.SkipDuplicates,
	})
	if err != nil {
		return err
	}

	fmt.Printf("job:          %s\n", result.JobID)
	fmt.Printf("transactions: %d\n", len(result.Transactions))
	fmt.Printf("dropped:      %d\n", result.Diagnostics.RowsDropped)
	fmt.Printf("duplicates:   %d\n", result.Diagnostics.DuplicatesSkipped)
	fmt.Printf("resolved:     %d\n", result.Resolution.Resolved)
	fmt.Printf("suspense:     %d\n", result.Resolution.Suspense)
	fmt.Printf("debits:       %s\n", result.Insights.FormattedDebits())
	fmt.Printf("credits:      %s\n", result.Insights.FormattedCredits())
	for _, re := range result.Diagnostics.RowErrors {
		fmt.Printf("  line %d: %s %s (%q)\n", re.Line, re.Field, re.Message, re.Raw)
	}
	return nil
}

// runServe starts the maintenance scheduler and the metrics endpoint and
// blocks until interrupted.
func runServe(ctx context.Context, deps *Dependencies) error {
	if err := deps.Scheduler.Start(); err != nil {
		return err
	}
	defer deps.Scheduler.Stop()

	if deps.Metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", deps.Config.Observability.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				deps.Logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		deps.Logger.Info("metrics listening", slog.Int("port", deps.Config.Observability.MetricsPort))
	}

	<-ctx.Done()
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
