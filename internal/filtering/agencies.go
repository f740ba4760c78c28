package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/utils"
)

type agenciesFilter struct {
	toggle
	agencies []string
}

// NewAgencies creates a filter that removes announcements issued by the configured agencies.
func NewAgencies(agencies []string) Filter {
	return &agenciesFilter{agencies: agencies}
}

func (f *agenciesFilter) Name() string { return "agencies" }

func (f *agenciesFilter) Validate() error { return nil }

func (f *agenciesFilter) Apply(_ context.Context, deps Deps, batch *announcement.Announcements) (*announcement.Announcements, Step, error) {
	initial := batch.Len()
	if len(f.agencies) == 0 {
		return batch, Step{Initial: initial, Left: initial}, nil
	}

	blocked := make(map[string]struct{}, len(f.agencies))
	for _, agency := range f.agencies {
		if key := utils.NormalizeText(agency); key != "" {
			blocked[key] = struct{}{}
		}
	}

	excluded := batch.Exclude(func(a *announcement.Announcement) bool {
		_, ok := blocked[utils.NormalizeText(a.Agency)]
		return ok
	})
	if len(excluded) > 0 {
		deps.Logger.Info("excluding announcements by agencies",
			zap.Strings("excluded_agencies", f.agencies),
			zap.Strings("excluded_announcements", excluded),
			zap.Int("announcements_left", batch.Len()),
		)
	}

	return batch, Step{Initial: initial, Dropped: len(excluded), Left: batch.Len()}, nil
}

func (f *agenciesFilter) Status() Status {
	details := map[string]string{}
	if len(f.agencies) > 0 {
		details["agencies"] = strings.Join(f.agencies, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
