// Package onbid scrapes lease and concession tenders from the Onbid public asset auction site.
package onbid

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/source"
)

const (
	baseURL         = "https://www.onbid.co.kr"
	listPath        = "/op/bda/bidrslt/collateralRealEstateBidResultList.do"
	userAgent       = "Mozilla/5.0 (compatible; bidradar/1.0)"
	defaultMaxPages = 5
	defaultTimeout  = 30 * time.Second
	periodLayout    = "2006-01-02"
)

// DefaultSearchWords are the lease targets searched on every run.
var DefaultSearchWords = []string{"식당 임대", "카페 임대", "매점 임대", "구내식당 입찰", "클럽하우스 임대"}

type Config struct {
	BaseURL      string        `mapstructure:"base-url"`
	ListPath     string        `mapstructure:"list-path"`
	MaxPages     int           `mapstructure:"max-pages"`
	SearchWords  []string      `mapstructure:"search-words"`
	FetchDetails bool          `mapstructure:"fetch-details"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Adapter is the HTML scrape source.
type Adapter struct {
	HTTPClient *http.Client
	UserAgent  string

	base         *url.URL
	listPath     string
	maxPages     int
	searchWords  []string
	fetchDetails bool
	logger       *zap.Logger
	now          func() time.Time
}

func New(cfg Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rawBase := cfg.BaseURL
	if rawBase == "" {
		rawBase = baseURL
	}
	base, err := url.Parse(rawBase)
	if err != nil {
		return nil, fmt.Errorf("parse onbid base url: %w", err)
	}

	a := &Adapter{
		HTTPClient:   &http.Client{Timeout: defaultTimeout},
		UserAgent:    userAgent,
		base:         base,
		listPath:     listPath,
		maxPages:     defaultMaxPages,
		searchWords:  DefaultSearchWords,
		fetchDetails: cfg.FetchDetails,
		logger:       logger,
		now:          time.Now,
	}
	if cfg.ListPath != "" {
		a.listPath = cfg.ListPath
	}
	if cfg.MaxPages > 0 {
		a.maxPages = cfg.MaxPages
	}
	if len(cfg.SearchWords) > 0 {
		a.searchWords = cfg.SearchWords
	}
	if cfg.Timeout > 0 {
		a.HTTPClient.Timeout = cfg.Timeout
	}

	return a, nil
}

func (a *Adapter) Name() announcement.Source { return announcement.SourceOnbid }

// Fetch walks the result pages of every search word. Pagination of a word stops
// early at the first page without rows.
func (a *Adapter) Fetch(ctx context.Context, since time.Time) ([]*announcement.Announcement, error) {
	now := a.now()
	if since.IsZero() {
		since = now.AddDate(0, 0, -7)
	}

	var (
		result []*announcement.Announcement
		seen   = make(map[string]struct{})
	)

	for _, word := range a.searchWords {
		for page := 1; page <= a.maxPages; page++ {
			rows, err := a.fetchPage(ctx, word, page, since, now)
			if err != nil {
				return nil, source.Unavailable(a.Name(), fmt.Errorf("search %q page %d: %w", word, page, err))
			}

			a.logger.Debug("parsed onbid page",
				zap.String("search_word", word),
				zap.Int("page", page),
				zap.Int("rows", len(rows)),
			)

			if len(rows) == 0 {
				break
			}

			for _, item := range rows {
				if _, ok := seen[item.URL]; ok {
					continue
				}
				seen[item.URL] = struct{}{}
				result = append(result, item)
			}
		}
	}

	if a.fetchDetails {
		for _, item := range result {
			a.enrich(ctx, item)
		}
	}

	a.logger.Info("fetched onbid announcements", zap.Int("announcements", len(result)))

	return result, nil
}

func (a *Adapter) fetchPage(ctx context.Context, word string, page int, since, now time.Time) ([]*announcement.Announcement, error) {
	form := url.Values{}
	form.Set("searchWord", word)
	form.Set("pageIndex", strconv.Itoa(page))
	form.Set("searchBgnDe", since.In(source.KST).Format(periodLayout))
	form.Set("searchEndDe", now.In(source.KST).Format(periodLayout))

	endpoint := a.base.ResolveReference(&url.URL{Path: a.listPath})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", a.UserAgent)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	return a.parseList(resp.Body, now)
}

// enrich fills body and attachments from the detail page. Failures keep the row as is.
func (a *Adapter) enrich(ctx context.Context, item *announcement.Announcement) {
	detail, err := a.FetchDetail(ctx, item.URL)
	if err != nil {
		a.logger.Warn("fetching onbid detail failed", zap.String("url", item.URL), zap.Error(err))
		return
	}
	if detail.Content != "" {
		item.Body = detail.Content
	}
	item.Attachments = detail.Attachments
}

func (a *Adapter) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return a.base.ResolveReference(ref).String()
}
