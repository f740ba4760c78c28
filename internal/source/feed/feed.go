// Package feed reads procurement notices published as RSS or Atom feeds.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/source"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	URLs    []string      `mapstructure:"urls"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Adapter struct {
	Client *http.Client
	Feeds  []string

	logger *zap.Logger
	now    func() time.Time
}

func New(cfg Config, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Adapter{
		Client: &http.Client{Timeout: timeout},
		Feeds:  cfg.URLs,
		logger: logger,
		now:    time.Now,
	}
}

func (a *Adapter) Name() announcement.Source { return announcement.SourceFeed }

// Fetch reads every configured feed. A single broken feed is logged and skipped;
// the fetch fails only when no feed could be read.
func (a *Adapter) Fetch(ctx context.Context, since time.Time) ([]*announcement.Announcement, error) {
	if len(a.Feeds) == 0 {
		return nil, source.Unavailable(a.Name(), errors.New("no feeds configured"))
	}

	parser := gofeed.NewParser()
	now := a.now()

	var (
		result []*announcement.Announcement
		errs   []error
	)

	for _, feedURL := range a.Feeds {
		feed, err := a.parse(ctx, parser, feedURL)
		if err != nil {
			a.logger.Warn("reading feed failed", zap.String("feed", feedURL), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", feedURL, err))
			continue
		}

		for _, it := range feed.Items {
			item := toAnnouncement(feed, it, now)
			if item == nil {
				continue
			}
			if !since.IsZero() && item.Posted.Before(since) {
				continue
			}
			result = append(result, item)
		}
	}

	if len(errs) == len(a.Feeds) {
		return nil, source.Unavailable(a.Name(), errors.Join(errs...))
	}

	a.logger.Info("fetched feed announcements",
		zap.Int("feeds", len(a.Feeds)),
		zap.Int("failed_feeds", len(errs)),
		zap.Int("announcements", len(result)),
	)

	return result, nil
}

func (a *Adapter) parse(ctx context.Context, parser *gofeed.Parser, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	return parser.Parse(resp.Body)
}

func toAnnouncement(feed *gofeed.Feed, it *gofeed.Item, now time.Time) *announcement.Announcement {
	link := strings.TrimSpace(it.Link)
	title := strings.TrimSpace(it.Title)
	if link == "" || title == "" {
		return nil
	}

	posted := now
	if it.PublishedParsed != nil {
		posted = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		posted = *it.UpdatedParsed
	}

	body := it.Content
	if strings.TrimSpace(body) == "" {
		body = it.Description
	}

	agency := strings.TrimSpace(feed.Title)
	if len(it.Authors) > 0 && it.Authors[0] != nil && strings.TrimSpace(it.Authors[0].Name) != "" {
		agency = strings.TrimSpace(it.Authors[0].Name)
	}

	return &announcement.Announcement{
		Title:  title,
		Body:   stripHTML(body),
		Agency: agency,
		Posted: posted,
		Source: announcement.SourceFeed,
		URL:    link,
	}
}

// stripHTML returns the visible text of an HTML fragment.
func stripHTML(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
