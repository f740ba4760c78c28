package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/bidradar/internal/announcement"
)

// ErrUnavailable marks a fetch that failed on transport or parsing. It is fatal to an ingestion run.
var ErrUnavailable = errors.New("source unavailable")

// Adapter turns one upstream source into normalized announcements. Adapters never persist.
type Adapter interface {
	Name() announcement.Source
	Fetch(ctx context.Context, since time.Time) ([]*announcement.Announcement, error)
}

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(name announcement.Source, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, name, err)
}

// ParsePrice converts a price text such as "150,000,000원" into a number.
// Missing or non-numeric values yield 0.
func ParsePrice(raw string) float64 {
	var digits strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			digits.WriteRune(r)
		}
	}
	value, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return 0
	}
	return value
}

// ParseTime tries each layout in order in loc and reports whether any matched.
func ParseTime(raw string, loc *time.Location, layouts ...string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// KST is the timezone every Korean procurement source reports in.
var KST = time.FixedZone("KST", 9*60*60)
