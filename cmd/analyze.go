// File: cmd/analyze.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
	"github.com/fdmtools/printdoctor-cli/internal/analysis"
	"github.com/fdmtools/printdoctor-cli/internal/config"
	"github.com/fdmtools/printdoctor-cli/internal/observability"
	"github.com/fdmtools/printdoctor-cli/internal/pipeline"
	"github.com/fdmtools/printdoctor-cli/internal/reporting"
	"github.com/fdmtools/printdoctor-cli/internal/storage"
	"github.com/fdmtools/printdoctor-cli/internal/store"
)

// newAnalyzeCmd creates and configures the `analyze` command.
func newAnalyzeCmd() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.gcode>",
		Short: "Analyze a G-code file for print quality issues",
		Long: `Parses the file locally (layers, segments, slicer metadata), submits it to
the analysis service, waits for the background job, and assembles a scored
report. When the remote analysis fails or times out, the report still
carries the locally reconstructed data.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so they override config file and environment
			// values with the right precedence.
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := appConfig
			cfg.Analyze = config.AnalyzeConfig{
				File:   args[0],
				Output: viper.GetString("output"),
				Format: viper.GetString("format"),
				Save:   viper.GetBool("save"),
				UserID: viper.GetString("user"),
			}

			return runAnalyze(ctx, logger, cfg)
		},
	}

	analyzeCmd.Flags().StringP("output", "o", "", "Output file path for the report. If unset, the report is printed to stdout.")
	analyzeCmd.Flags().StringP("format", "f", "text", "Report format ('text' or 'json').")
	analyzeCmd.Flags().Bool("save", false, "Persist the report and archive the raw file.")
	analyzeCmd.Flags().String("user", "local", "User ID to attribute the saved report to.")

	return analyzeCmd
}

// runAnalyze contains the core, testable logic of the analyze command.
func runAnalyze(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	client := analysis.NewClient(cfg.Analysis, logger)
	p := pipeline.New(cfg, pipeline.ClientSubmitter{Client: client}, logger)

	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	p.OnJob(func(job pipeline.Job) {
		go watchProgress(progressCtx, logger, job)
	})

	outcome, err := p.Run(ctx, cfg.Analyze.File)
	if err != nil {
		return err
	}
	stopProgress()

	rep := outcome.Report
	if outcome.AnalysisErr != nil {
		logger.Warn("Remote analysis incomplete; report carries local data only",
			zap.Error(outcome.AnalysisErr))
	}

	if cfg.Analyze.Save {
		if err := saveReport(ctx, logger, cfg, rep, outcome); err != nil {
			// Persistence failure never invalidates the assembled report.
			logger.Warn("Failed to persist report; continuing with output", zap.Error(err))
		}
	}

	reporter, err := reporting.New(cfg.Analyze.Format, cfg.Analyze.Output)
	if err != nil {
		return err
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Warn("Failed to close reporter cleanly", zap.Error(err))
		}
	}()

	if err := reporter.Write(rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if cfg.Analyze.Output != "" {
		logger.Info("Report written", zap.String("path", cfg.Analyze.Output))
	}
	return nil
}

// watchProgress streams job snapshots into the log until the job is
// terminal or the command ends.
func watchProgress(ctx context.Context, logger *zap.Logger, job pipeline.Job) {
	if job.Snapshot().Status.Terminal() {
		return
	}
	ch, unsubscribe := job.Subscribe()
	defer unsubscribe()

	for {
		select {
		case snap, ok := <-ch:
			if !ok || snap.Status.Terminal() {
				return
			}
			logger.Info("Analysis progress",
				zap.String("status", string(snap.Status)),
				zap.Int("progress", snap.Progress))
		case <-ctx.Done():
			return
		}
	}
}

// saveReport archives the raw file and persists the report row. On
// success the report's Saved acknowledgment is set in place.
func saveReport(ctx context.Context, logger *zap.Logger, cfg *config.Config, rep *schemas.Report, outcome *pipeline.Outcome) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is not configured (PRINTDOCTOR_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	dbStore, err := store.New(ctx, pool, logger)
	if err != nil {
		return err
	}

	opts := store.SaveOptions{RawResult: outcome.RawResult}

	content, err := os.ReadFile(cfg.Analyze.File)
	if err != nil {
		return fmt.Errorf("failed to re-read %s for archival: %w", cfg.Analyze.File, err)
	}
	blobs := storage.NewBlobStore(cfg.Storage.Dir, logger)
	upload, err := blobs.UploadRawFile(ctx, cfg.Analyze.UserID, filepath.Base(cfg.Analyze.File), content)
	if err != nil {
		// The report row is still worth keeping without the archive.
		logger.Warn("Failed to archive raw file", zap.Error(err))
	} else {
		opts.FileRef = upload.FileRef
		opts.StoragePath = upload.StoragePath
	}

	id, err := dbStore.SaveReport(ctx, cfg.Analyze.UserID, rep.FileName, rep, opts)
	if err != nil {
		return err
	}

	rep.Saved = true
	rep.SavedID = id
	return nil
}
