package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taxline/taxline/internal/app"
	"github.com/taxline/taxline/internal/config"
	"github.com/taxline/taxline/internal/pipeline"
	"github.com/taxline/taxline/internal/route"
)

var askUserID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().StringVar(&askUserID, "user", "cli", "user id to record the conversation under")
	rootCmd.AddCommand(askCmd)
}

func runAsk(ctx context.Context, question string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := newLogger(false)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	resp, err := a.Pipeline.Process(ctx, pipeline.QueryRequest{
		Query:  question,
		UserID: askUserID,
	})
	if err != nil {
		return fmt.Errorf("processing query: %w", err)
	}

	fmt.Println(resp.ResponseText)
	fmt.Println()
	fmt.Printf("intent: %s  complexity: %d/5  confidence: %.2f  route: %s\n",
		resp.Intent, resp.ComplexityScore, resp.Confidence, resp.RouteDecision)

	if resp.RouteDecision == route.DecisionHuman {
		if resp.Expert != nil {
			fmt.Printf("assigned specialist: %s (match %.2f)\n",
				resp.Expert.Expert.Name, resp.Expert.FinalScore)
		} else {
			fmt.Println("escalated; no specialist currently available")
		}
	}

	if len(resp.Sources) > 0 {
		fmt.Println("\nsources:")
		for _, s := range resp.Sources {
			if s.Chapter != "" {
				fmt.Printf("  [%d] %s (%s)\n", s.Number, s.Title, s.Chapter)
			} else {
				fmt.Printf("  [%d] %s\n", s.Number, s.Title)
			}
		}
	}

	return nil
}
