package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/matching"
	"github.com/spigell/bidradar/internal/plan"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank open announcements by semantic relevance to a free-text query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		search(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Int("limit", 20, "how many open announcements to score")
	searchCmd.Flags().Int("concurrency", 4, "parallel relevance requests")
	searchCmd.Flags().Bool("dry-run", false, "use an in-memory store seeded from the config")
}

func search(cmd *cobra.Command, query string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	st, closeStore, err := openStorage(ctx, config, dryRun, logger)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer closeStore()

	candidates, err := st.ListOpen(ctx, time.Now())
	if err != nil {
		logger.Fatal("loading open announcements", zap.Error(err))
	}
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	engine := matching.NewEngine(
		newRelevanceScorer(ctx, config.AI, logger),
		plan.NewLimiter(st, config.Plans),
		logger,
		matching.WithRankConcurrency(concurrency),
	)

	logger.Info("ranking announcements", zap.String("query", query), zap.Int("candidates", len(candidates)))

	ranked, err := engine.Rank(ctx, query, candidates)
	if err != nil {
		logger.Fatal("ranking announcements", zap.Error(err))
	}

	out, _ := json.MarshalIndent(ranked, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
}
