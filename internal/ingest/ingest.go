// Package ingest runs one bounded ingestion pass: fetch, filter, persist, summarize
// and notify, reporting every per-item outcome in a Summary.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/bidradar/internal/ai"
	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/filtering"
	"github.com/spigell/bidradar/internal/importance"
	"github.com/spigell/bidradar/internal/ledger"
	"github.com/spigell/bidradar/internal/logger"
	"github.com/spigell/bidradar/internal/source"
	"github.com/spigell/bidradar/internal/subscriber"
)

const (
	DefaultBudget            = 50 * time.Second
	DefaultAIBudget          = 40 * time.Second
	DefaultFetchTimeout      = 30 * time.Second
	DefaultAITimeout         = 15 * time.Second
	DefaultNotifyTimeout     = 10 * time.Second
	DefaultStoreTimeout      = 5 * time.Second
	DefaultNotifyConcurrency = 4

	// MinAIImportance is the lowest importance that is worth an LLM call.
	MinAIImportance = 2

	maxErrorLength = 50
)

// Store is the persistence the orchestrator needs.
type Store interface {
	InsertIfAbsent(ctx context.Context, a *announcement.Announcement) (bool, error)
	Update(ctx context.Context, a *announcement.Announcement) error
	ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
	ActiveSubscribers(ctx context.Context) ([]*subscriber.Subscriber, error)
	Keywords(ctx context.Context) (include, exclude []string, err error)
}

// Notifier delivers a keyword match to one subscriber.
type Notifier interface {
	NotifyMatch(ctx context.Context, sub *subscriber.Subscriber, a *announcement.Announcement, matched []string) error
}

// Config tunes budgets, timeouts and the static filter sets.
type Config struct {
	Budget            time.Duration `mapstructure:"budget"`
	AIBudget          time.Duration `mapstructure:"ai-budget"`
	FetchTimeout      time.Duration `mapstructure:"fetch-timeout"`
	AITimeout         time.Duration `mapstructure:"ai-timeout"`
	NotifyTimeout     time.Duration `mapstructure:"notify-timeout"`
	StoreTimeout      time.Duration `mapstructure:"store-timeout"`
	NotifyConcurrency int           `mapstructure:"notify-concurrency"`
	// Lookback is how far back the source is asked for announcements.
	Lookback time.Duration `mapstructure:"lookback"`
	// SkipExpired drops announcements whose deadline already passed before they are stored.
	SkipExpired bool `mapstructure:"skip-expired"`

	IncludeKeywords  []string `mapstructure:"-"`
	ExcludeKeywords  []string `mapstructure:"-"`
	ExcludedAgencies []string `mapstructure:"-"`
}

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.AIBudget <= 0 {
		c.AIBudget = DefaultAIBudget
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.AITimeout <= 0 {
		c.AITimeout = DefaultAITimeout
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = DefaultNotifyTimeout
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.NotifyConcurrency <= 0 {
		c.NotifyConcurrency = DefaultNotifyConcurrency
	}
	if len(c.IncludeKeywords) == 0 {
		c.IncludeKeywords = filtering.DefaultIncludeKeywords()
	}
	if len(c.ExcludeKeywords) == 0 {
		c.ExcludeKeywords = filtering.DefaultExcludeKeywords
	}
	return c
}

// Deps are the collaborators of one orchestrator.
type Deps struct {
	Source     source.Adapter
	Store      Store
	Summarizer ai.Summarizer
	Notifier   Notifier
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// NewRunID defaults to random UUIDs.
	NewRunID func() string
}

// Orchestrator drives ingestion runs for a single source.
type Orchestrator struct {
	source     source.Adapter
	store      Store
	ledger     *ledger.Ledger
	summarizer ai.Summarizer
	notifier   Notifier
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
	newRunID   func() string
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Source == nil {
		return nil, errors.New("source adapter is required")
	}
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewRunID == nil {
		deps.NewRunID = func() string { return uuid.NewString() }
	}

	return &Orchestrator{
		source:     deps.Source,
		store:      deps.Store,
		ledger:     ledger.New(deps.Store, deps.Logger),
		summarizer: deps.Summarizer,
		notifier:   deps.Notifier,
		cfg:        cfg.withDefaults(),
		logger:     deps.Logger,
		now:        deps.Clock,
		newRunID:   deps.NewRunID,
	}, nil
}

// Run executes one ingestion pass. Only run-level failures (fetch, keyword load,
// ledger) return an error; per-item failures are recorded in the summary.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := o.now()
	elapsed := func() time.Duration { return o.now().Sub(start) }

	run := &runState{
		summary: &Summary{
			RunID:     o.newRunID(),
			Source:    string(o.source.Name()),
			StartedAt: start,
		},
	}
	log := logger.WithRunFields(o.logger, run.summary.RunID, run.summary.Source)
	log.Info("ingestion started", zap.Duration("budget", o.cfg.Budget))

	finish := func(err error) (*Summary, error) {
		run.summary.Elapsed = elapsed()
		if err != nil {
			run.summary.Err = err.Error()
			log.Error("ingestion failed", zap.Error(err), zap.Duration("elapsed", run.summary.Elapsed))
			return run.summary, err
		}
		log.Info("ingestion finished",
			zap.Int("fetched", run.summary.Fetched),
			zap.Int("new", run.summary.New),
			zap.Int("duplicates", run.summary.Duplicates),
			zap.Int("notified", run.summary.Notified),
			zap.Int("processed", run.summary.Processed),
			zap.Int("skipped", run.summary.Skipped),
			zap.Bool("timed_out", run.summary.TimedOut),
			zap.Int("errors", len(run.summary.Errors)),
			zap.Duration("elapsed", run.summary.Elapsed),
		)
		return run.summary, nil
	}

	include, exclude, err := o.keywords(ctx)
	if err != nil {
		return finish(err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	var since time.Time
	if o.cfg.Lookback > 0 {
		since = start.Add(-o.cfg.Lookback)
	}
	items, err := o.source.Fetch(fetchCtx, since)
	cancel()
	if err != nil {
		return finish(fmt.Errorf("fetch %s: %w", run.summary.Source, err))
	}
	run.summary.Fetched = len(items)

	steps := []filtering.Filter{
		filtering.NewKeywords(include, exclude),
		filtering.NewAgencies(o.cfg.ExcludedAgencies),
		filtering.NewOpenDeadline(),
		filtering.NewDedup(o.ledger),
	}
	if !o.cfg.SkipExpired {
		filtering.DisableByName(steps, filtering.StepOpenDeadline, "expired announcements are kept")
	}
	deps := filtering.Deps{Logger: log, Now: o.now, StoreTimeout: o.cfg.StoreTimeout}
	batch, reports, err := filtering.Run(ctx, deps, steps, announcement.New(items...))
	run.summary.Steps = reports
	if err != nil {
		return finish(fmt.Errorf("filter announcements: %w", err))
	}
	if report, ok := filtering.Find(reports, filtering.StepKeywords); ok {
		run.summary.Accepted = report.Left
	}
	if report, ok := filtering.Find(reports, filtering.StepDedup); ok {
		run.summary.Duplicates += report.Dropped
	}

	subscribers := o.subscribers(ctx, run, log)

	for i, a := range batch.Items {
		if elapsed() >= o.cfg.Budget {
			run.summary.TimedOut = true
			run.summary.Skipped = len(batch.Items) - i
			log.Warn("time budget exhausted, stopping early",
				zap.Duration("elapsed", elapsed()),
				zap.Int("processed", run.summary.Processed),
				zap.Int("skipped", run.summary.Skipped),
			)
			break
		}

		result := o.process(ctx, run, log, a, subscribers, elapsed)
		run.summary.Items = append(run.summary.Items, result)
		run.summary.Processed++
	}

	return finish(nil)
}

func (o *Orchestrator) keywords(ctx context.Context) ([]string, []string, error) {
	storeCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()

	dynamicInclude, dynamicExclude, err := o.store.Keywords(storeCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("load keywords: %w", err)
	}
	return filtering.EffectiveKeywords(o.cfg.IncludeKeywords, dynamicInclude),
		filtering.EffectiveKeywords(o.cfg.ExcludeKeywords, dynamicExclude), nil
}

func (o *Orchestrator) subscribers(ctx context.Context, run *runState, log *zap.Logger) []*subscriber.Subscriber {
	if o.notifier == nil {
		return nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()

	subs, err := o.store.ActiveSubscribers(storeCtx)
	if err != nil {
		log.Error("loading subscribers failed, notifications disabled for this run", zap.Error(err))
		run.addError("subscribers", "", err)
		return nil
	}
	return subs
}

func (o *Orchestrator) process(ctx context.Context, run *runState, log *zap.Logger, a *announcement.Announcement, subs []*subscriber.Subscriber, elapsed func() time.Duration) ItemResult {
	log = log.With(zap.String(logger.FieldURL, a.URL))
	a.Importance = importance.Score(a)
	result := ItemResult{URL: a.URL, Importance: a.Importance}

	storeCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	inserted, err := o.store.InsertIfAbsent(storeCtx, a)
	cancel()
	if err != nil {
		log.Error("persisting announcement failed", zap.Error(err))
		result.Status = StatusFailed
		result.Errors = append(result.Errors, run.addError("insert", a.URL, err))
		return result
	}
	if !inserted {
		run.summary.Duplicates++
		result.Status = StatusDuplicate
		return result
	}
	run.summary.New++
	result.Status = StatusSaved

	if o.summarizer != nil && a.Importance >= MinAIImportance {
		if elapsed() < o.cfg.AIBudget {
			if err := o.summarize(ctx, log, a); err != nil {
				result.Errors = append(result.Errors, run.addError("summarize", a.URL, err))
			} else {
				result.Analyzed = true
				run.summary.Analyzed++
			}
		} else {
			log.Debug("skipping summary, ai budget exhausted", zap.Duration("elapsed", elapsed()))
		}
	}

	notified, errs := o.notify(ctx, log, a, subs)
	result.Notified = notified
	run.summary.Notified += notified
	for _, err := range errs {
		result.Errors = append(result.Errors, run.addError("notify", a.URL, err))
	}

	return result
}

func (o *Orchestrator) summarize(ctx context.Context, log *zap.Logger, a *announcement.Announcement) error {
	aiCtx, cancel := context.WithTimeout(ctx, o.cfg.AITimeout)
	analysis, err := o.summarizer.Summarize(aiCtx, a.Text())
	cancel()
	if err != nil {
		log.Warn("summarizing announcement failed", zap.Error(err))
		return err
	}

	analysis.Apply(a)

	storeCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()
	if err := o.store.Update(storeCtx, a); err != nil {
		log.Error("storing summary failed", zap.Error(err))
		return err
	}

	log.Debug("announcement summarized",
		zap.String("region", a.Region),
		zap.Strings("licenses", a.RequiredLicenses),
		zap.Float64("min_performance", a.MinPerformance),
	)
	return nil
}

// notify sends a to every subscriber whose profile keywords appear in it.
func (o *Orchestrator) notify(ctx context.Context, log *zap.Logger, a *announcement.Announcement, subs []*subscriber.Subscriber) (int, []error) {
	if o.notifier == nil || len(subs) == 0 {
		return 0, nil
	}

	var (
		mu       sync.Mutex
		notified int
		errs     []error
	)

	text := a.Text()
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.NotifyConcurrency)
	for _, sub := range subs {
		matched := filtering.MatchKeywords(text, sub.Profile.Keywords)
		if len(matched) == 0 {
			continue
		}

		g.Go(func() error {
			notifyCtx, cancel := context.WithTimeout(ctx, o.cfg.NotifyTimeout)
			defer cancel()

			err := o.notifier.NotifyMatch(notifyCtx, sub, a, matched)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("notifying subscriber failed", zap.String(logger.FieldSubscriber, sub.ID), zap.Error(err))
				errs = append(errs, fmt.Errorf("subscriber %s: %w", sub.ID, err))
				return nil
			}
			notified++
			return nil
		})
	}
	_ = g.Wait()

	return notified, errs
}

type runState struct {
	mu      sync.Mutex
	summary *Summary
}

// addError records a truncated error line in the summary and returns it.
func (r *runState) addError(stage, url string, err error) string {
	msg := err.Error()
	if runes := []rune(msg); len(runes) > maxErrorLength {
		msg = string(runes[:maxErrorLength])
	}
	line := stage + ": " + msg
	if url = strings.TrimSpace(url); url != "" {
		line = fmt.Sprintf("%s %s: %s", stage, url, msg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Errors = append(r.summary.Errors, line)
	return line
}
