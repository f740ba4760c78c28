package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Run: func(cmd *cobra.Command, _ []string) {
		migrate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("seed", false, "upsert the subscribers listed in the config")
}

func migrate(cmd *cobra.Command) {
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

	pg, err := store.Open(ctx, config.Database, logger)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err), zap.String("hint", "set database.dsn or DATABASE_URL"))
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		logger.Fatal("applying schema", zap.Error(err))
	}
	logger.Info("schema is up to date")

	if seed, _ := cmd.Flags().GetBool("seed"); !seed {
		return
	}

	saved, err := pg.SaveSubscribers(ctx, config.Subscribers)
	if err != nil {
		logger.Fatal("seeding subscribers", zap.Error(err))
	}
	logger.Info("seeded subscribers", zap.Int("count", saved))
}
