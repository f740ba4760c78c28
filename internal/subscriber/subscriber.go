package subscriber

import (
	"time"

	"github.com/spigell/bidradar/internal/plan"
)

// Performance is a single completed contract the subscriber can cite as prior performance.
type Performance struct {
	Amount      float64    `json:"amount" mapstructure:"amount"`
	CompletedAt *time.Time `json:"completed_at,omitempty" mapstructure:"completed-at"`
}

// Profile holds the constraints and interests used by the matching engine.
// It is read-only to the engine.
type Profile struct {
	Region       string        `json:"region,omitempty" mapstructure:"region"`
	Licenses     []string      `json:"licenses,omitempty" mapstructure:"licenses"`
	Performances []Performance `json:"performances,omitempty" mapstructure:"performances"`
	Keywords     []string      `json:"keywords,omitempty" mapstructure:"keywords"`
}

// MaxPerformance returns the largest held performance amount, or 0 when there are none.
func (p *Profile) MaxPerformance() float64 {
	if p == nil {
		return 0
	}
	var maxAmount float64
	for _, record := range p.Performances {
		if record.Amount > maxAmount {
			maxAmount = record.Amount
		}
	}
	return maxAmount
}

// Channels describes where a subscriber wants to receive match notifications.
type Channels struct {
	SlackWebhookURL string `json:"slack_webhook_url,omitempty" mapstructure:"slack-webhook-url"`
	SlackEnabled    bool   `json:"slack_enabled" mapstructure:"slack-enabled"`
	EmailEnabled    bool   `json:"email_enabled" mapstructure:"email-enabled"`
}

type Subscriber struct {
	ID          string    `json:"id" mapstructure:"id"`
	Email       string    `json:"email,omitempty" mapstructure:"email"`
	CompanyName string    `json:"company_name,omitempty" mapstructure:"company-name"`
	Active      bool      `json:"active" mapstructure:"active"`
	Tier        plan.Tier `json:"tier" mapstructure:"tier"`
	Channels    Channels  `json:"channels" mapstructure:"channels"`
	Profile     Profile   `json:"profile" mapstructure:"profile"`
}
