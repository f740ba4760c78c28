package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/announcement"
)

// StepOpenDeadline is the name of the expired deadline step.
const StepOpenDeadline = "open_deadline"

type openDeadlineFilter struct {
	toggle
}

// NewOpenDeadline creates a filter that removes announcements whose deadline already passed.
// Announcements without a deadline are kept.
func NewOpenDeadline() Filter {
	return &openDeadlineFilter{}
}

func (f *openDeadlineFilter) Name() string { return StepOpenDeadline }

func (f *openDeadlineFilter) Validate() error { return nil }

func (f *openDeadlineFilter) Apply(_ context.Context, deps Deps, batch *announcement.Announcements) (*announcement.Announcements, Step, error) {
	initial := batch.Len()
	now := deps.now()

	excluded := batch.Exclude(func(a *announcement.Announcement) bool {
		return a.Expired(now)
	})
	if len(excluded) > 0 {
		deps.Logger.Info("excluding announcements with a closed deadline",
			zap.Strings("excluded_announcements", excluded),
			zap.Int("announcements_left", batch.Len()),
		)
	}

	return batch, Step{Initial: initial, Dropped: len(excluded), Left: batch.Len()}, nil
}

func (f *openDeadlineFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
