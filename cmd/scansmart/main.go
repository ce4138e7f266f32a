package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/scansmart/internal/app"
	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/permission"
)

var (
	verbose  bool
	jsonLogs bool
	cfg      *common.Config
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scansmart",
	Short: "Scan an image, extract its text and export it as a document",
	Long: `scansmart captures a photo or picks an image from the gallery directory,
recognizes its text with Tesseract and exports the text as a PDF, HTML or XLSX
document. Configuration comes from the environment and an optional .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = common.LoadConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger = app.NewLogger(level, jsonLogs)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log as JSON to stdout")
}

// bootstrap builds the application with a terminal prompt for "prompt" access policies.
func bootstrap(ctx context.Context) (*app.App, error) {
	return app.Build(ctx, cfg, permission.NewPromptGate(os.Stdin, os.Stderr), logger)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
