package matching

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/bidradar/internal/ai"
	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/logger"
	"github.com/spigell/bidradar/internal/subscriber"
)

const (
	ErrClientNotInitialized = "client not initialized"
	ErrJSONParse            = "JSON Parse Error"

	DefaultPageSize  = 20
	MaxPageSize      = 100
	DefaultListTTL   = 3 * time.Minute
	defaultRankLimit = 4
)

// Sort orders accepted by ListMatched.
const (
	SortPosted     = "posted"
	SortDeadline   = "deadline"
	SortPrice      = "price"
	SortImportance = "importance"
	SortRelevance  = "relevance"
)

// PlanLimiter caps result sets per subscriber.
type PlanLimiter interface {
	PlanLimit(ctx context.Context, subscriberID string) (int, error)
}

// SemanticMatchResult is a relevance score in [0, 1]. A non-empty Error means the
// score carries no evidence and must not be read as a rejection.
type SemanticMatchResult struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Match is one plan-visible announcement with its soft score.
type Match struct {
	Announcement *announcement.Announcement `json:"announcement"`
	Soft         SoftMatchResult            `json:"soft_match"`
}

// Ranked is an announcement with its semantic score.
type Ranked struct {
	Announcement *announcement.Announcement `json:"announcement"`
	Semantic     SemanticMatchResult        `json:"semantic_match"`
}

// ListRequest selects a page of hard-matched announcements for one subscriber.
type ListRequest struct {
	SubscriberID string
	Profile      *subscriber.Profile
	Candidates   []*announcement.Announcement
	Page         int
	PageSize     int
	SortBy       string
}

// Page is a slice of the plan-limited match list.
type Page struct {
	Items      []Match `json:"items"`
	Matched    int     `json:"matched"`
	Limit      int     `json:"limit"`
	Available  int     `json:"available"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
}

// Engine evaluates announcements against subscriber profiles.
type Engine struct {
	scorer      ai.RelevanceScorer
	limiter     PlanLimiter
	cache       *cache.Cache
	logger      *zap.Logger
	concurrency int
}

type Option func(*Engine)

// WithListTTL sets how long matched lists are reused per subscriber.
func WithListTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.cache = cache.New(ttl, 2*ttl)
		}
	}
}

// WithRankConcurrency bounds parallel relevance calls in Rank.
func WithRankConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func NewEngine(scorer ai.RelevanceScorer, limiter PlanLimiter, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		scorer:      scorer,
		limiter:     limiter,
		cache:       cache.New(DefaultListTTL, 2*DefaultListTTL),
		logger:      log,
		concurrency: defaultRankLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Semantic asks the relevance scorer for a score. Failures are reported in the result.
func (e *Engine) Semantic(ctx context.Context, query string, a *announcement.Announcement) SemanticMatchResult {
	if e == nil || e.scorer == nil {
		return SemanticMatchResult{Error: ErrClientNotInitialized}
	}

	relevance, err := e.scorer.ScoreRelevance(ctx, query, a)
	if err != nil {
		e.logger.Warn("semantic match failed", zap.String(logger.FieldURL, a.URL), zap.Error(err))
		if errors.Is(err, ai.ErrParse) {
			return SemanticMatchResult{Reasoning: err.Error(), Error: ErrJSONParse}
		}
		return SemanticMatchResult{Error: err.Error()}
	}

	score := relevance.Score
	if math.IsNaN(score) {
		score = 0
	}
	return SemanticMatchResult{
		Score:     math.Max(0, math.Min(score, 1)),
		Reasoning: relevance.Reasoning,
	}
}

// Rank scores items against query and returns them best first.
func (e *Engine) Rank(ctx context.Context, query string, items []*announcement.Announcement) ([]Ranked, error) {
	ranked := make([]Ranked, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, a := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ranked[i] = Ranked{Announcement: a, Semantic: e.Semantic(gctx, query, a)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rank announcements: %w", err)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Semantic.Score > ranked[j].Semantic.Score
	})
	return ranked, nil
}

// ListMatched hard-matches the candidates, caps the list at the subscriber's plan limit
// and returns the requested page. Pages past the cap are empty.
func (e *Engine) ListMatched(ctx context.Context, req ListRequest) (*Page, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)

	limit, err := e.planLimit(ctx, req.SubscriberID)
	if err != nil {
		return nil, err
	}

	matched := e.matched(req)
	limited := matched
	if len(limited) > limit {
		limited = limited[:limit]
	}

	result := &Page{
		Items:      []Match{},
		Matched:    len(matched),
		Limit:      limit,
		Available:  len(limited),
		Page:       page,
		PageSize:   size,
		TotalPages: (len(limited) + size - 1) / size,
	}

	start := (page - 1) * size
	if start >= limit || start >= len(limited) {
		return result, nil
	}
	end := min(start+size, len(limited))
	result.Items = append(result.Items, limited[start:end]...)
	return result, nil
}

func (e *Engine) planLimit(ctx context.Context, subscriberID string) (int, error) {
	if e.limiter == nil {
		return 0, errors.New("plan limiter is not configured")
	}
	limit, err := e.limiter.PlanLimit(ctx, subscriberID)
	if err != nil {
		return 0, fmt.Errorf("plan limit: %w", err)
	}
	return max(limit, 0), nil
}

// matched returns all hard matches in the requested order, reusing a cached list when
// the same subscriber asks for the same candidates again.
func (e *Engine) matched(req ListRequest) []Match {
	key := listCacheKey(req)
	if cached, ok := e.cache.Get(key); ok {
		if matches, ok := cached.([]Match); ok {
			return matches
		}
	}

	matches := make([]Match, 0, len(req.Candidates))
	for _, a := range req.Candidates {
		if a == nil {
			continue
		}
		if !HardMatch(a, req.Profile).Matched {
			continue
		}
		matches = append(matches, Match{Announcement: a, Soft: SoftMatch(a, req.Profile)})
	}
	sortMatches(matches, req.SortBy)

	e.cache.SetDefault(key, matches)
	e.logger.Debug("matched list computed",
		zap.String(logger.FieldSubscriber, req.SubscriberID),
		zap.Int("candidates", len(req.Candidates)),
		zap.Int("matched", len(matches)),
	)
	return matches
}

func sortMatches(matches []Match, sortBy string) {
	var less func(a, b *announcement.Announcement, sa, sb int) bool
	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case SortDeadline:
		less = func(a, b *announcement.Announcement, _, _ int) bool {
			switch {
			case a.Deadline == nil:
				return false
			case b.Deadline == nil:
				return true
			default:
				return a.Deadline.Before(*b.Deadline)
			}
		}
	case SortPrice:
		less = func(a, b *announcement.Announcement, _, _ int) bool { return a.Price > b.Price }
	case SortImportance:
		less = func(a, b *announcement.Announcement, _, _ int) bool { return a.Importance > b.Importance }
	case SortRelevance:
		less = func(_, _ *announcement.Announcement, sa, sb int) bool { return sa > sb }
	default:
		less = func(a, b *announcement.Announcement, _, _ int) bool { return a.Posted.After(b.Posted) }
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return less(matches[i].Announcement, matches[j].Announcement, matches[i].Soft.Score, matches[j].Soft.Score)
	})
}

func listCacheKey(req ListRequest) string {
	h := fnv.New64a()
	if p := req.Profile; p != nil {
		fmt.Fprintf(h, "%s|%v|%v|%.0f|", p.Region, p.Licenses, p.Keywords, p.MaxPerformance())
	}
	for _, a := range req.Candidates {
		if a == nil {
			continue
		}
		// Every field the gates, scores and sort orders read is part of the key.
		fmt.Fprintf(h, "%s|%s|%v|%.0f|%d|%t|%.0f|%d|%s|%s|",
			a.URL, a.Region, a.RequiredLicenses, a.MinPerformance, a.Importance, a.Processed,
			a.Price, a.Posted.UnixNano(), deadlineKey(a.Deadline), a.Title)
		_, _ = h.Write([]byte(a.Body))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%s|%s|%x", req.SubscriberID, strings.ToLower(req.SortBy), h.Sum64())
}

func deadlineKey(deadline *time.Time) string {
	if deadline == nil {
		return "-"
	}
	return strconv.FormatInt(deadline.UnixNano(), 10)
}
