package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/plan"
	"github.com/spigell/bidradar/internal/subscriber"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

const announcementColumns = `url, title, body, agency, source, posted_at, deadline_at, price, status,
	attachments, matched_keywords, importance, region, required_licenses, min_performance,
	processed, ai_summary, ai_keywords`

// Config configures the Postgres connection pool.
type Config struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max-conns"`
	// SimpleProtocol disables prepared statements, required behind pgbouncer in transaction mode.
	SimpleProtocol bool `mapstructure:"simple-protocol"`
}

// Postgres persists announcements and subscribers in PostgreSQL.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects a pool and verifies connectivity.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Postgres, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("database dsn is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	poolCfg.MaxConns = int32(maxConns)
	if cfg.SimpleProtocol {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Debug("database pool opened", zap.Int("max_conns", maxConns), zap.Bool("simple_protocol", cfg.SimpleProtocol))

	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Migrate creates the tables when they are missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InsertIfAbsent stores a new announcement. It returns false without error when the URL
// already exists.
func (p *Postgres) InsertIfAbsent(ctx context.Context, a *announcement.Announcement) (bool, error) {
	_, err := p.pool.Exec(ctx, `INSERT INTO bid_announcements (`+announcementColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		announcementArgs(a)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("insert announcement %q: %w", a.URL, err)
	}
	return true, nil
}

// ExistingURLs returns the subset of urls that are already stored.
func (p *Postgres) ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(urls) == 0 {
		return existing, nil
	}

	rows, err := p.pool.Query(ctx, `SELECT url FROM bid_announcements WHERE url = ANY($1)`, urls)
	if err != nil {
		return nil, fmt.Errorf("query existing urls: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan existing url: %w", err)
		}
		existing[url] = struct{}{}
	}
	return existing, rows.Err()
}

// Update rewrites the mutable fields of a stored announcement.
func (p *Postgres) Update(ctx context.Context, a *announcement.Announcement) error {
	tag, err := p.pool.Exec(ctx, `UPDATE bid_announcements SET
		importance = $2, matched_keywords = $3, region = $4, required_licenses = $5,
		min_performance = $6, processed = $7, ai_summary = $8, ai_keywords = $9
		WHERE url = $1`,
		a.URL, a.Importance, nonNil(a.MatchedKeywords), a.Region, nonNil(a.RequiredLicenses),
		a.MinPerformance, a.Processed, a.AISummary, nonNil(a.AIKeywords))
	if err != nil {
		return fmt.Errorf("update announcement %q: %w", a.URL, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update announcement %q: %w", a.URL, ErrNotFound)
	}
	return nil
}

// ListOpen returns announcements whose deadline is unknown or not yet passed, earliest first.
func (p *Postgres) ListOpen(ctx context.Context, now time.Time) ([]*announcement.Announcement, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+announcementColumns+` FROM bid_announcements
		WHERE deadline_at IS NULL OR deadline_at >= $1
		ORDER BY deadline_at ASC NULLS LAST, posted_at DESC`, now)
	if err != nil {
		return nil, fmt.Errorf("query open announcements: %w", err)
	}
	defer rows.Close()

	var items []*announcement.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// ActiveSubscribers loads every active subscriber together with performances and profile keywords.
func (p *Postgres) ActiveSubscribers(ctx context.Context) ([]*subscriber.Subscriber, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, email, company_name, active, tier, region, licenses,
		slack_webhook_url, slack_enabled, email_enabled
		FROM subscribers WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	subs, err := pgx.CollectRows(rows, scanSubscriber)
	if err != nil {
		return nil, fmt.Errorf("scan subscribers: %w", err)
	}
	if err := p.loadProfiles(ctx, subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Subscriber loads a single subscriber by id.
func (p *Postgres) Subscriber(ctx context.Context, id string) (*subscriber.Subscriber, error) {
	row, err := p.pool.Query(ctx, `SELECT id, email, company_name, active, tier, region, licenses,
		slack_webhook_url, slack_enabled, email_enabled
		FROM subscribers WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query subscriber %q: %w", id, err)
	}
	sub, err := pgx.CollectOneRow(row, scanSubscriber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("subscriber %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscriber %q: %w", id, err)
	}
	if err := p.loadProfiles(ctx, []*subscriber.Subscriber{sub}); err != nil {
		return nil, err
	}
	return sub, nil
}

// Tier implements plan.TierLookup.
func (p *Postgres) Tier(ctx context.Context, id string) (plan.Tier, error) {
	var tier string
	err := p.pool.QueryRow(ctx, `SELECT tier FROM subscribers WHERE id = $1`, id).Scan(&tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("subscriber %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query tier of %q: %w", id, err)
	}
	return plan.ParseTier(tier), nil
}

// Keywords returns the active include and exclude keywords of active subscribers.
func (p *Postgres) Keywords(ctx context.Context) ([]string, []string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT k.keyword, k.exclude
		FROM subscriber_keywords k JOIN subscribers s ON s.id = k.subscriber_id
		WHERE k.active AND s.active ORDER BY k.keyword`)
	if err != nil {
		return nil, nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	var include, exclude []string
	for rows.Next() {
		var (
			keyword   string
			isExclude bool
		)
		if err := rows.Scan(&keyword, &isExclude); err != nil {
			return nil, nil, fmt.Errorf("scan keyword: %w", err)
		}
		if isExclude {
			exclude = append(exclude, keyword)
		} else {
			include = append(include, keyword)
		}
	}
	return include, exclude, rows.Err()
}

// SaveSubscribers upserts subscribers and replaces their performances and keywords.
func (p *Postgres) SaveSubscribers(ctx context.Context, subs []*subscriber.Subscriber) (int, error) {
	if len(subs) == 0 {
		return 0, nil
	}

	b := &pgx.Batch{}
	count := 0
	for _, sub := range subs {
		if sub == nil || strings.TrimSpace(sub.ID) == "" {
			continue
		}
		b.Queue(`INSERT INTO subscribers (id, email, company_name, active, tier, region, licenses,
			slack_webhook_url, slack_enabled, email_enabled)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, company_name = EXCLUDED.company_name,
			active = EXCLUDED.active, tier = EXCLUDED.tier, region = EXCLUDED.region,
			licenses = EXCLUDED.licenses, slack_webhook_url = EXCLUDED.slack_webhook_url,
			slack_enabled = EXCLUDED.slack_enabled, email_enabled = EXCLUDED.email_enabled`,
			sub.ID, sub.Email, sub.CompanyName, sub.Active, string(plan.ParseTier(string(sub.Tier))),
			sub.Profile.Region, nonNil(sub.Profile.Licenses), sub.Channels.SlackWebhookURL,
			sub.Channels.SlackEnabled, sub.Channels.EmailEnabled)
		b.Queue(`DELETE FROM subscriber_performances WHERE subscriber_id = $1`, sub.ID)
		b.Queue(`DELETE FROM subscriber_keywords WHERE subscriber_id = $1`, sub.ID)
		for _, perf := range sub.Profile.Performances {
			b.Queue(`INSERT INTO subscriber_performances (subscriber_id, amount, completed_at) VALUES ($1,$2,$3)`,
				sub.ID, perf.Amount, perf.CompletedAt)
		}
		for _, keyword := range sub.Profile.Keywords {
			if strings.TrimSpace(keyword) == "" {
				continue
			}
			b.Queue(`INSERT INTO subscriber_keywords (subscriber_id, keyword) VALUES ($1,$2)
				ON CONFLICT DO NOTHING`, sub.ID, strings.TrimSpace(keyword))
		}
		count++
	}

	br := p.pool.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("save subscribers: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("save subscribers: %w", err)
	}
	return count, nil
}

func (p *Postgres) loadProfiles(ctx context.Context, subs []*subscriber.Subscriber) error {
	if len(subs) == 0 {
		return nil
	}

	byID := make(map[string]*subscriber.Subscriber, len(subs))
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		byID[sub.ID] = sub
		ids = append(ids, sub.ID)
	}

	b := &pgx.Batch{}
	b.Queue(`SELECT subscriber_id, amount, completed_at FROM subscriber_performances
		WHERE subscriber_id = ANY($1)`, ids)
	b.Queue(`SELECT subscriber_id, keyword FROM subscriber_keywords
		WHERE subscriber_id = ANY($1) AND active AND NOT exclude ORDER BY keyword`, ids)

	br := p.pool.SendBatch(ctx, b)
	defer br.Close()

	rows, err := br.Query()
	if err != nil {
		return fmt.Errorf("query performances: %w", err)
	}
	for rows.Next() {
		var (
			id   string
			perf subscriber.Performance
		)
		if err := rows.Scan(&id, &perf.Amount, &perf.CompletedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan performance: %w", err)
		}
		if sub, ok := byID[id]; ok {
			sub.Profile.Performances = append(sub.Profile.Performances, perf)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read performances: %w", err)
	}

	rows, err = br.Query()
	if err != nil {
		return fmt.Errorf("query subscriber keywords: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, keyword string
		if err := rows.Scan(&id, &keyword); err != nil {
			return fmt.Errorf("scan subscriber keyword: %w", err)
		}
		if sub, ok := byID[id]; ok {
			sub.Profile.Keywords = append(sub.Profile.Keywords, keyword)
		}
	}
	return rows.Err()
}

func scanSubscriber(row pgx.CollectableRow) (*subscriber.Subscriber, error) {
	var (
		sub  subscriber.Subscriber
		tier string
	)
	err := row.Scan(&sub.ID, &sub.Email, &sub.CompanyName, &sub.Active, &tier, &sub.Profile.Region,
		&sub.Profile.Licenses, &sub.Channels.SlackWebhookURL, &sub.Channels.SlackEnabled, &sub.Channels.EmailEnabled)
	if err != nil {
		return nil, err
	}
	sub.Tier = plan.ParseTier(tier)
	return &sub, nil
}

func scanAnnouncement(row pgx.Row) (*announcement.Announcement, error) {
	var (
		a      announcement.Announcement
		source string
	)
	err := row.Scan(&a.URL, &a.Title, &a.Body, &a.Agency, &source, &a.Posted, &a.Deadline, &a.Price,
		&a.Status, &a.Attachments, &a.MatchedKeywords, &a.Importance, &a.Region, &a.RequiredLicenses,
		&a.MinPerformance, &a.Processed, &a.AISummary, &a.AIKeywords)
	if err != nil {
		return nil, fmt.Errorf("scan announcement: %w", err)
	}
	a.Source = announcement.Source(source)
	return &a, nil
}

func announcementArgs(a *announcement.Announcement) []any {
	return []any{
		a.URL, a.Title, a.Body, a.Agency, string(a.Source), a.Posted, a.Deadline, a.Price, a.Status,
		nonNil(a.Attachments), nonNil(a.MatchedKeywords), a.Importance, a.Region, nonNil(a.RequiredLicenses),
		a.MinPerformance, a.Processed, a.AISummary, nonNil(a.AIKeywords),
	}
}

// nonNil keeps NOT NULL array columns satisfied.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
