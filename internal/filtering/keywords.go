package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/utils"
)

// StepKeywords is the name of the keyword filtering step.
const StepKeywords = "keywords"

var (
	// ConcessionKeywords cover cafeteria, concession and facility operation tenders.
	ConcessionKeywords = []string{"구내식당", "사용수익허가", "위탁운영", "식음료", "클럽하우스", "장례식장", "급식", "식당운영", "카페운영"}
	// FlowerKeywords cover wreath and event flower supply tenders.
	FlowerKeywords = []string{"화환", "연간단가", "취임식", "행사", "꽃", "근조", "경조사"}
	// DefaultExcludeKeywords veto construction and demolition work.
	DefaultExcludeKeywords = []string{"폐기물", "단순공사", "설계용역", "철거", "해체"}
)

// DefaultIncludeKeywords returns the built-in include set.
func DefaultIncludeKeywords() []string {
	keywords := make([]string, 0, len(ConcessionKeywords)+len(FlowerKeywords))
	keywords = append(keywords, ConcessionKeywords...)
	return append(keywords, FlowerKeywords...)
}

// EffectiveKeywords unions the built-in set with a dynamically loaded one.
// Order is kept (built-in first), blanks and repeats are dropped.
func EffectiveKeywords(static, dynamic []string) []string {
	result := make([]string, 0, len(static)+len(dynamic))
	seen := make(map[string]struct{}, len(static)+len(dynamic))
	for _, list := range [][]string{static, dynamic} {
		for _, keyword := range list {
			keyword = strings.TrimSpace(keyword)
			if keyword == "" {
				continue
			}
			key := utils.NormalizeText(keyword)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, keyword)
		}
	}
	return result
}

// MatchKeywords returns the keywords found in text, in keyword order.
// Matching is a case-insensitive substring search over normalized text.
func MatchKeywords(text string, keywords []string) []string {
	normalized := utils.NormalizeText(text)
	var matched []string
	seen := make(map[string]struct{}, len(keywords))
	for _, keyword := range keywords {
		key := utils.NormalizeText(keyword)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		if strings.Contains(normalized, key) {
			seen[key] = struct{}{}
			matched = append(matched, keyword)
		}
	}
	return matched
}

// ShouldNotify decides whether a is worth notifying about. Any exclude hit vetoes the
// announcement. Otherwise it is accepted when at least one include keyword is present,
// and every include hit is recorded in a.MatchedKeywords.
func ShouldNotify(a *announcement.Announcement, exclude, include []string) bool {
	if a == nil {
		return false
	}

	text := a.Text()
	if len(MatchKeywords(text, exclude)) > 0 {
		a.MatchedKeywords = nil
		return false
	}

	a.MatchedKeywords = MatchKeywords(text, include)
	return len(a.MatchedKeywords) > 0
}

type keywordsFilter struct {
	toggle
	include []string
	exclude []string
}

// NewKeywords creates the step that keeps only notify-worthy announcements.
func NewKeywords(include, exclude []string) Filter {
	return &keywordsFilter{include: include, exclude: exclude}
}

func (f *keywordsFilter) Name() string { return StepKeywords }

func (f *keywordsFilter) Validate() error {
	if len(f.include) == 0 {
		return fmt.Errorf("at least one include keyword is required")
	}
	return nil
}

func (f *keywordsFilter) Apply(_ context.Context, deps Deps, batch *announcement.Announcements) (*announcement.Announcements, Step, error) {
	initial := batch.Len()
	excluded := batch.Exclude(func(a *announcement.Announcement) bool {
		return !ShouldNotify(a, f.exclude, f.include)
	})

	if len(excluded) > 0 {
		deps.Logger.Debug("excluding announcements without keyword match",
			zap.Strings("excluded_announcements", excluded),
			zap.Int("announcements_left", batch.Len()),
		)
	}

	return batch, Step{Initial: initial, Dropped: len(excluded), Left: batch.Len()}, nil
}

func (f *keywordsFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{
			"include": fmt.Sprint(len(f.include)),
			"exclude": fmt.Sprint(len(f.exclude)),
		},
	}
}
