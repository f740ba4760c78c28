package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/bidradar/internal/subscriber"
	"github.com/spigell/bidradar/internal/utils"
)

const defaultSlackTimeout = 10 * time.Second

// Slack posts alerts to incoming webhooks.
type Slack struct {
	HTTPClient *http.Client
}

func NewSlack(timeout time.Duration) *Slack {
	if timeout <= 0 {
		timeout = defaultSlackTimeout
	}
	return &Slack{HTTPClient: &http.Client{Timeout: timeout}}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Enabled(sub *subscriber.Subscriber) bool {
	return sub.Channels.SlackEnabled && strings.TrimSpace(sub.Channels.SlackWebhookURL) != ""
}

func (s *Slack) Send(ctx context.Context, m Match) error {
	payload, err := json.Marshal(map[string]string{"text": slackText(m)})
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Subscriber.Channels.SlackWebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, utils.TruncateForLog(string(body), 200))
	}
	return nil
}

func slackText(m Match) string {
	a := m.Announcement
	var sb strings.Builder
	sb.WriteString("🔔 *키워드 매칭 알림*\n")
	fmt.Fprintf(&sb, "*공고명:* %s\n", a.Title)
	if a.Agency != "" {
		fmt.Fprintf(&sb, "*발주처:* %s\n", a.Agency)
	}
	fmt.Fprintf(&sb, "*키워드:* `%s`\n", strings.Join(m.Keywords, ", "))
	fmt.Fprintf(&sb, "*마감일:* %s\n", formatDeadline(a.Deadline))
	fmt.Fprintf(&sb, "*추정가:* %s\n", formatPrice(a.Price))
	fmt.Fprintf(&sb, "<%s|공고 보기>", a.URL)
	return sb.String()
}
