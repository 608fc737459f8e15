package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"leadflow/internal/database"
	"leadflow/internal/services"
	"leadflow/pkg/config"
	"leadflow/pkg/logger"
	"leadflow/pkg/scoring"

	"github.com/spf13/cobra"
)

var (
	demo         bool
	sweepTimeout time.Duration

	rootCmd = &cobra.Command{
		Use:   "leadctl",
		Short: "Operational commands for leadflow",
	}

	scoreCmd = &cobra.Command{
		Use:   "score [responses-file]",
		Short: "Score a set of quiz responses without storing anything",
		Long: `score reads {"responses":[...]} from a file, or from standard input when the
argument is "-" or omitted, and prints the score, tier and follow-up action.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			input, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			out, err := scoreResponses(input, demo)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Permanently delete soft-deleted rows older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			db, err := database.Open(cfg.Database, cfg.Server.Mode)
			if err != nil {
				return err
			}
			defer database.Close(db)

			ctx, cancel := context.WithTimeout(cmd.Context(), sweepTimeout)
			defer cancel()
			report, err := services.NewRetentionService(db, cfg.Retention, log, nil).Sweep(ctx)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
)

// scoreOutput 评分结果与对应的处理动作
type scoreOutput struct {
	scoring.Result
	Action scoring.Action `json:"action"`
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func scoreResponses(input []byte, useDemo bool) (*scoreOutput, error) {
	var payload struct {
		Responses []scoring.Response `json:"responses"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return nil, fmt.Errorf("invalid responses: %w", err)
	}
	if len(payload.Responses) == 0 {
		return nil, fmt.Errorf("invalid responses: at least one response is required")
	}

	engine := scoring.Production
	if useDemo {
		engine = scoring.Demo
	}
	result := engine.Score(payload.Responses)
	return &scoreOutput{Result: result, Action: scoring.ActionFor(result.Tier)}, nil
}

func init() {
	scoreCmd.Flags().BoolVar(&demo, "demo", false, "use the demo question set thresholds")
	sweepCmd.Flags().DurationVar(&sweepTimeout, "timeout", 30*time.Minute, "maximum duration of the sweep")
	rootCmd.AddCommand(scoreCmd, sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
