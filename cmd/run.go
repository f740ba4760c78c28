package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/ingest"
	"github.com/spigell/bidradar/internal/secrets"
	"github.com/spigell/bidradar/internal/source"
	"github.com/spigell/bidradar/internal/source/feed"
	"github.com/spigell/bidradar/internal/source/g2b"
	"github.com/spigell/bidradar/internal/source/onbid"
)

const (
	SourceG2B   = "g2b"
	SourceOnbid = "onbid"
	SourceFeed  = "feed"
	SourceAll   = "all"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion pass per selected source",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("source", "s", SourceAll, "source to ingest: g2b, onbid, feed or all")
	runCmd.Flags().Bool("dry-run", false, "use an in-memory store seeded from the config instead of the database")
	runCmd.Flags().Bool("no-notify", false, "do not send notifications")

	viper.BindPFlag("dry-run", runCmd.Flags().Lookup("dry-run"))
}

func run(cmd *cobra.Command) {
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

	logger.Info("starting the bidradar", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	selected, _ := cmd.Flags().GetString("source")
	adapters, err := buildAdapters(selected, config, logger)
	if err != nil {
		logger.Fatal("preparing sources", zap.Error(err))
	}

	st, closeStore, err := openStorage(ctx, config, viper.GetBool("dry-run"), logger)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer closeStore()

	var notifier ingest.Notifier
	if noNotify, _ := cmd.Flags().GetBool("no-notify"); !noNotify {
		dispatcher, err := newNotifier(config.Notify, logger)
		if err != nil {
			logger.Fatal("preparing notifications", zap.Error(err))
		}
		notifier = dispatcher
	}

	ingestCfg := config.Ingest
	ingestCfg.IncludeKeywords = config.Keywords.Include
	ingestCfg.ExcludeKeywords = config.Keywords.Exclude
	ingestCfg.ExcludedAgencies = config.Keywords.Agencies

	summarizer := newSummarizer(ctx, config.AI, logger)

	failed := 0
	for _, adapter := range adapters {
		orchestrator, err := ingest.New(ingest.Deps{
			Source:     adapter,
			Store:      st,
			Summarizer: summarizer,
			Notifier:   notifier,
			Logger:     logger,
		}, ingestCfg)
		if err != nil {
			logger.Fatal("preparing ingestion", zap.Error(err))
		}

		summary, err := orchestrator.Run(ctx)
		if err != nil {
			failed++
		}

		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}

	if failed > 0 {
		logger.Fatal("exiting", zap.Int("failed sources", failed), zap.Int("sources", len(adapters)))
	}
}

func buildAdapters(selected string, config *Config, logger *zap.Logger) ([]source.Adapter, error) {
	selected = strings.ToLower(strings.TrimSpace(selected))

	var names []string
	switch selected {
	case SourceAll, "":
		names = []string{SourceG2B, SourceOnbid, SourceFeed}
	case SourceG2B, SourceOnbid, SourceFeed:
		names = []string{selected}
	default:
		return nil, fmt.Errorf("unknown source %q", selected)
	}

	adapters := make([]source.Adapter, 0, len(names))
	for _, name := range names {
		switch name {
		case SourceG2B:
			apiKey, err := secrets.Load(secrets.Source{
				Name: "g2b api key",
				File: config.Sources.G2B.APIKeyFile,
				Env:  "G2B_API_KEY",
			})
			if err != nil {
				if selected == SourceAll || selected == "" {
					logger.Warn("skipping g2b source", zap.Error(err))
					continue
				}
				return nil, fmt.Errorf("%w (set sources.g2b.api-key-file or G2B_API_KEY_FILE)", err)
			}
			adapters = append(adapters, g2b.New(config.Sources.G2B.Config, apiKey, logger))
		case SourceOnbid:
			adapter, err := onbid.New(config.Sources.Onbid, logger)
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, adapter)
		case SourceFeed:
			if len(config.Sources.Feed.URLs) == 0 {
				if selected == SourceFeed {
					return nil, fmt.Errorf("no feeds configured under sources.feed.urls")
				}
				continue
			}
			adapters = append(adapters, feed.New(config.Sources.Feed, logger))
		}
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no usable sources for %q", selected)
	}
	return adapters, nil
}
