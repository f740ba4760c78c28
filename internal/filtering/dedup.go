package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/announcement"
)

// StepDedup is the name of the deduplication step.
const StepDedup = "dedup"

// Ledger reports which announcement URLs were never persisted.
type Ledger interface {
	FilterNew(ctx context.Context, urls []string) (map[string]struct{}, error)
}

type dedupFilter struct {
	toggle
	ledger Ledger
}

// NewDedup creates a filter that removes announcements already known to the ledger
// and repeated URLs inside the batch.
func NewDedup(ledger Ledger) Filter {
	return &dedupFilter{ledger: ledger}
}

func (f *dedupFilter) Name() string { return StepDedup }

func (f *dedupFilter) Validate() error {
	if f.ledger == nil {
		return fmt.Errorf("dedup ledger is required")
	}
	return nil
}

func (f *dedupFilter) Apply(ctx context.Context, deps Deps, batch *announcement.Announcements) (*announcement.Announcements, Step, error) {
	initial := batch.Len()

	// Keys must match the ledger, which compares trimmed URLs.
	for _, a := range batch.Items {
		a.URL = strings.TrimSpace(a.URL)
	}

	storeCtx, cancel := deps.storeContext(ctx)
	fresh, err := f.ledger.FilterNew(storeCtx, batch.URLs())
	cancel()
	if err != nil {
		return batch, Step{}, err
	}

	kept := make(map[string]struct{}, len(fresh))
	excluded := batch.Exclude(func(a *announcement.Announcement) bool {
		if _, ok := fresh[a.URL]; !ok {
			return true
		}
		if _, ok := kept[a.URL]; ok {
			return true
		}
		kept[a.URL] = struct{}{}
		return false
	})

	if len(excluded) > 0 {
		deps.Logger.Info("excluding already known announcements",
			zap.Int("duplicates", len(excluded)),
			zap.Int("announcements_left", batch.Len()),
		)
	}

	return batch, Step{Initial: initial, Dropped: len(excluded), Left: batch.Len()}, nil
}

func (f *dedupFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"ledger": strconv.FormatBool(f.ledger != nil)},
	}
}
