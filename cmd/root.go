package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/ai"
	"github.com/spigell/bidradar/internal/ai/gemini"
	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/ingest"
	"github.com/spigell/bidradar/internal/logger"
	"github.com/spigell/bidradar/internal/notify"
	"github.com/spigell/bidradar/internal/plan"
	"github.com/spigell/bidradar/internal/secrets"
	"github.com/spigell/bidradar/internal/source/feed"
	"github.com/spigell/bidradar/internal/source/g2b"
	"github.com/spigell/bidradar/internal/source/onbid"
	"github.com/spigell/bidradar/internal/store"
	"github.com/spigell/bidradar/internal/subscriber"
)

const (
	app = "bidradar"
)

type Config struct {
	Sources  SourcesConfig  `mapstructure:"sources"`
	Keywords KeywordsConfig `mapstructure:"keywords"`
	Ingest   ingest.Config  `mapstructure:"ingest"`
	Database store.Config   `mapstructure:"database"`
	AI       *AIConfig      `mapstructure:"ai"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Plans    plan.Limits    `mapstructure:"plans"`
	// Subscribers are seeded by `migrate --seed` and used as-is in dry runs.
	Subscribers []*subscriber.Subscriber `mapstructure:"subscribers"`
}

type SourcesConfig struct {
	G2B   G2BConfig    `mapstructure:"g2b"`
	Onbid onbid.Config `mapstructure:"onbid"`
	Feed  feed.Config  `mapstructure:"feed"`
}

type G2BConfig struct {
	g2b.Config `mapstructure:",squash"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type KeywordsConfig struct {
	Include  []string `mapstructure:"include"`
	Exclude  []string `mapstructure:"exclude"`
	Agencies []string `mapstructure:"agencies"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type NotifyConfig struct {
	Slack SlackConfig `mapstructure:"slack"`
	Email EmailConfig `mapstructure:"email"`
}

type SlackConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type EmailConfig struct {
	notify.EmailConfig `mapstructure:",squash"`
	PasswordFile       string `mapstructure:"password-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "bidradar collects public bid announcements and matches them against subscriber profiles",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"sources.g2b.api-key-file":   "G2B_API_KEY_FILE",
		"ai.gemini.api-key-file":     "GEMINI_API_KEY_FILE",
		"database.dsn":               "DATABASE_URL",
		"notify.email.password-file": "SMTP_PASSWORD_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is bidradar.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Without a config file every component runs on its defaults.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	return config, nil
}

func newLogger() *zap.Logger {
	l, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug")})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

// storage is everything the commands need from a store.
type storage interface {
	ingest.Store
	ListOpen(ctx context.Context, now time.Time) ([]*announcement.Announcement, error)
	Subscriber(ctx context.Context, id string) (*subscriber.Subscriber, error)
	Tier(ctx context.Context, id string) (plan.Tier, error)
	SaveSubscribers(ctx context.Context, subs []*subscriber.Subscriber) (int, error)
}

// openStorage connects to Postgres, or returns an in-memory store seeded with the
// configured subscribers when memory is set.
func openStorage(ctx context.Context, config *Config, memory bool, logger *zap.Logger) (storage, func(), error) {
	if memory {
		mem := store.NewMemory()
		if _, err := mem.SaveSubscribers(ctx, config.Subscribers); err != nil {
			return nil, nil, fmt.Errorf("seed subscribers: %w", err)
		}
		logger.Info("using in-memory store", zap.Int("subscribers", len(config.Subscribers)))
		return mem, func() {}, nil
	}

	pg, err := store.Open(ctx, config.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w (set database.dsn or DATABASE_URL)", err)
	}
	return pg, pg.Close, nil
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Generator, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("ai is disabled")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, logger)
	if err != nil {
		return nil, err
	}
	generator.SetMaxLogLength(cfg.Gemini.MaxLogLength)

	return generator, nil
}

// newSummarizer returns nil when ai is not configured, so runs skip summarization.
func newSummarizer(ctx context.Context, cfg *AIConfig, logger *zap.Logger) ai.Summarizer {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	generator, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		logger.Warn("skipping ai summarization", zap.Error(err))
		return nil
	}
	return gemini.NewSummarizer(generator, logger)
}

func newRelevanceScorer(ctx context.Context, cfg *AIConfig, logger *zap.Logger) ai.RelevanceScorer {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	generator, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		logger.Warn("semantic scoring unavailable", zap.Error(err))
		return nil
	}
	return gemini.NewRelevanceScorer(generator, logger)
}

func newNotifier(cfg NotifyConfig, logger *zap.Logger) (*notify.Dispatcher, error) {
	channels := []notify.Channel{notify.NewSlack(cfg.Slack.Timeout)}

	if cfg.Email.Enabled {
		password, err := secrets.Load(secrets.Source{
			Name:  "smtp password",
			File:  cfg.Email.PasswordFile,
			Env:   "SMTP_PASSWORD",
			Value: cfg.Email.SMTPPass,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set notify.email.password-file or SMTP_PASSWORD_FILE)", err)
		}
		emailCfg := cfg.Email.EmailConfig
		emailCfg.SMTPPass = password

		email, err := notify.NewEmail(emailCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("email channel: %w", err)
		}
		channels = append(channels, email)
	}

	return notify.NewDispatcher(logger, channels...), nil
}
