/*
Package notify delivers keyword match alerts to subscribers over Slack and email.
*/
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/logger"
	"github.com/spigell/bidradar/internal/subscriber"
)

const (
	dateLayout = "2006-01-02 15:04"
	undecided  = "미정"
)

var pricePrinter = message.NewPrinter(language.Korean)

// Match is what a subscriber is told about one announcement.
type Match struct {
	Subscriber   *subscriber.Subscriber
	Announcement *announcement.Announcement
	Keywords     []string
}

// Channel is one delivery route.
type Channel interface {
	Name() string
	Enabled(sub *subscriber.Subscriber) bool
	Send(ctx context.Context, m Match) error
}

// Dispatcher fans a match out to every channel the subscriber enabled.
type Dispatcher struct {
	channels []Channel
	logger   *zap.Logger
}

func NewDispatcher(log *zap.Logger, channels ...Channel) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{channels: channels, logger: log}
}

// NotifyMatch tries every enabled channel and returns the combined failures.
func (d *Dispatcher) NotifyMatch(ctx context.Context, sub *subscriber.Subscriber, a *announcement.Announcement, matched []string) error {
	if sub == nil || a == nil {
		return nil
	}

	m := Match{Subscriber: sub, Announcement: a, Keywords: matched}
	log := d.logger.With(zap.String(logger.FieldSubscriber, sub.ID), zap.String(logger.FieldURL, a.URL))

	var errs error
	for _, ch := range d.channels {
		if !ch.Enabled(sub) {
			continue
		}
		if err := ch.Send(ctx, m); err != nil {
			log.Warn("notification failed", zap.String("channel", ch.Name()), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		log.Debug("notification sent", zap.String("channel", ch.Name()))
	}
	return errs
}

func formatPrice(price float64) string {
	if price <= 0 {
		return undecided
	}
	return pricePrinter.Sprintf("%d원", int64(price))
}

func formatDeadline(deadline *time.Time) string {
	if deadline == nil {
		return undecided
	}
	return deadline.Format(dateLayout)
}

func recipientName(sub *subscriber.Subscriber) string {
	if name := strings.TrimSpace(sub.CompanyName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(sub.Email, "@"); ok && local != "" {
		return local
	}
	return sub.Email
}
