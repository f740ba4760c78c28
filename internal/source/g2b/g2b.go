// Package g2b fetches bid announcements from the public procurement (나라장터) open API.
package g2b

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/source"
)

const (
	apiURL    = "https://apis.data.go.kr/1230000/ad/BidPublicInfoService/getBidPblancListInfoServc"
	userAgent = "spigell/bidradar"
	// Max value for numOfRows accepted by the API.
	defaultRowsPerPage = 100
	defaultMaxPages    = 10
	defaultTimeout     = 30 * time.Second

	queryTimeLayout = "200601021504"
)

// Layouts observed in bidNtceDt/bidClseDt across API versions.
var timeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04", queryTimeLayout, "20060102150405", "2006-01-02"}

type Config struct {
	APIURL      string        `mapstructure:"api-url"`
	RowsPerPage int           `mapstructure:"rows-per-page"`
	MaxPages    int           `mapstructure:"max-pages"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Adapter is the structured JSON API source.
type Adapter struct {
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string

	apiKey      string
	rowsPerPage int
	maxPages    int
	logger      *zap.Logger
	now         func() time.Time
}

func New(cfg Config, apiKey string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Adapter{
		HTTPClient:  &http.Client{Timeout: defaultTimeout},
		UserAgent:   userAgent,
		APIURL:      apiURL,
		apiKey:      apiKey,
		rowsPerPage: defaultRowsPerPage,
		maxPages:    defaultMaxPages,
		logger:      logger,
		now:         time.Now,
	}

	if cfg.APIURL != "" {
		a.APIURL = cfg.APIURL
	}
	if cfg.RowsPerPage > 0 {
		a.rowsPerPage = cfg.RowsPerPage
	}
	if cfg.MaxPages > 0 {
		a.maxPages = cfg.MaxPages
	}
	if cfg.Timeout > 0 {
		a.HTTPClient.Timeout = cfg.Timeout
	}

	return a
}

func (a *Adapter) Name() announcement.Source { return announcement.SourceG2B }

// Fetch returns announcements posted since the given time.
func (a *Adapter) Fetch(ctx context.Context, since time.Time) ([]*announcement.Announcement, error) {
	now := a.now()

	items, err := a.GetItems(ctx, a.query(since, now))
	if err != nil {
		return nil, source.Unavailable(a.Name(), err)
	}

	announcements := make([]*announcement.Announcement, 0, len(items))
	for i, raw := range items {
		notice, err := decodeNotice(raw)
		if err != nil {
			a.logger.Warn("skipping malformed g2b notice", zap.Int("index", i), zap.Error(err))
			continue
		}
		item, ok := notice.toAnnouncement(now)
		if !ok {
			a.logger.Warn("skipping g2b notice without url",
				zap.String("bid_no", notice.BidNo),
				zap.String("title", notice.Title),
			)
			continue
		}
		announcements = append(announcements, item)
	}

	a.logger.Info("fetched g2b announcements",
		zap.Int("items", len(items)),
		zap.Int("announcements", len(announcements)),
	)

	return announcements, nil
}

func (a *Adapter) query(since, now time.Time) url.Values {
	q := url.Values{}
	q.Set("serviceKey", a.apiKey)
	q.Set("numOfRows", strconv.Itoa(a.rowsPerPage))
	q.Set("pageNo", "1")
	q.Set("inqryDiv", "1")
	q.Set("type", "json")
	if since.IsZero() {
		since = now.Add(-24 * time.Hour)
	}
	q.Set("inqryBgnDt", since.In(source.KST).Format(queryTimeLayout))
	q.Set("inqryEndDt", now.In(source.KST).Format(queryTimeLayout))
	return q
}

// decodeNotice decodes one raw item. A row of the wrong shape fails alone.
func decodeNotice(raw Item) (*Notice, error) {
	notice := &Notice{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           notice,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode notice: %w", err)
	}
	return notice, nil
}

// Notice is a single item of the bid notice list.
type Notice struct {
	BidNo        string `json:"bidNtceNo"`
	Title        string `json:"bidNtceNm"`
	Detail       string `json:"bidNtceDtl"`
	Agency       string `json:"ntceInsttNm"`
	DemandAgency string `json:"dminsttNm"`
	Posted       string `json:"bidNtceDt"`
	Deadline     string `json:"bidClseDt"`
	URL          string `json:"bidNtceUrl"`
	DetailURL    string `json:"bidNtceDtlUrl"`
	Price        string `json:"presmptPrce"`
}

func (n *Notice) toAnnouncement(now time.Time) (*announcement.Announcement, bool) {
	link := strings.TrimSpace(n.URL)
	if link == "" {
		link = strings.TrimSpace(n.DetailURL)
	}
	if link == "" {
		return nil, false
	}

	agency := strings.TrimSpace(n.Agency)
	if agency == "" {
		agency = strings.TrimSpace(n.DemandAgency)
	}

	posted, ok := source.ParseTime(n.Posted, source.KST, timeLayouts...)
	if !ok {
		posted = now
	}

	item := &announcement.Announcement{
		Title:  strings.TrimSpace(n.Title),
		Body:   strings.TrimSpace(n.Detail),
		Agency: agency,
		Posted: posted,
		Source: announcement.SourceG2B,
		URL:    link,
		Price:  source.ParsePrice(n.Price),
	}

	if deadline, ok := source.ParseTime(n.Deadline, source.KST, timeLayouts...); ok {
		item.Deadline = &deadline
	}

	return item, true
}
