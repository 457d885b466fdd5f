package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasman/usajobs-digest/internal/config"
	"github.com/tasman/usajobs-digest/internal/errs"
	"github.com/tasman/usajobs-digest/internal/ingestion"
	"github.com/tasman/usajobs-digest/internal/logger"
	"github.com/tasman/usajobs-digest/internal/models"
	"github.com/tasman/usajobs-digest/internal/notify"
	"github.com/tasman/usajobs-digest/internal/report"
	"github.com/tasman/usajobs-digest/internal/storage"
	"github.com/tasman/usajobs-digest/internal/usajobs"
)

func main() {
	var (
		titles       []string
		keywords     []string
		recipient    string
		dbPath       string
		reportPath   string
		criteriaFile string
		jsonLogs     bool
	)

	rootCmd := &cobra.Command{
		Use:   "usajobs-digest",
		Short: "Pull new USAJobs postings, store them, and email a digest report",
		Long: `usajobs-digest performs one batch run: it fetches job postings
published since the last ingested date, appends the new ones to the local
store, computes the aggregate report, and emails it to the recipient.
Intended to be invoked once daily by an external scheduler.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Initialize(jsonLogs); err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if criteriaFile != "" {
				if err := cfg.LoadCriteriaFile(criteriaFile); err != nil {
					return err
				}
			}
			if len(titles) > 0 {
				cfg.Search.Titles = titles
			}
			if len(keywords) > 0 {
				cfg.Search.Keywords = keywords
			}
			if recipient != "" {
				cfg.Mail.Recipient = recipient
			}
			if dbPath != "" {
				cfg.Storage.Path = dbPath
			}
			if reportPath != "" {
				cfg.Report.Path = reportPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return run(cmd.Context(), cfg)
		},
	}

	rootCmd.Flags().StringArrayVar(&titles, "title", nil, "position title to search for (repeatable)")
	rootCmd.Flags().StringArrayVar(&keywords, "keyword", nil, "free-text keyword to search for (repeatable)")
	rootCmd.Flags().StringVar(&recipient, "recipient", "", "report recipient email address")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "sqlite database file path")
	rootCmd.Flags().StringVar(&reportPath, "report", "", "report artifact path")
	rootCmd.Flags().StringVar(&criteriaFile, "criteria", "", "YAML file with search titles and keywords")
	rootCmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "emit JSON log lines")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Log.Errorw("run failed", "stage", errs.Stage(err), "error", err)
		fmt.Fprintf(os.Stderr, "usajobs-digest: %s stage failed: %v\n", errs.Stage(err), err)
		os.Exit(1)
	}
}

// run wires the pipeline and executes its three stages in order. Any stage
// failure aborts the rest; nothing needs rolling back since ingestion is
// idempotent and the report render is atomic.
func run(ctx context.Context, cfg *config.Config) error {
	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	criteria := models.SearchCriteria{
		Titles:   cfg.Search.Titles,
		Keywords: cfg.Search.Keywords,
	}

	fetcher := usajobs.NewClient(cfg.API)
	ingestor := ingestion.NewService(criteria, fetcher, store)
	reporter := report.NewService(store, cfg.Report)
	notifier := notify.NewService(cfg.Mail)

	inserted, err := ingestor.Run(ctx)
	if err != nil {
		return err
	}

	result, err := reporter.Generate(ctx)
	if err != nil {
		return err
	}
	body, err := reporter.Render(result)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Job postings digest: %d new postings", inserted)
	if err := notifier.Send(cfg.Mail.Recipient, subject, body, reporter.Path()); err != nil {
		return err
	}

	logger.Log.Infow("run complete", "inserted", inserted, "recipient", cfg.Mail.Recipient)
	return nil
}
