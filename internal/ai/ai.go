package ai

import (
	"context"
	"errors"

	"github.com/spigell/bidradar/internal/announcement"
)

// ErrParse marks a model response that could not be decoded as the expected JSON.
var ErrParse = errors.New("JSON Parse Error")

// Analysis is the structured result of summarizing an announcement.
type Analysis struct {
	Summary             string
	Keywords            []string
	RegionCode          string
	LicenseRequirements []string
	MinPerformance      float64
	Raw                 string
}

// Summarizer turns free announcement text into an Analysis.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*Analysis, error)
}

// Relevance is a semantic relevance judgement in [0, 1].
type Relevance struct {
	Score     float64
	Reasoning string
	Raw       string
}

// RelevanceScorer judges how well an announcement satisfies a free-text query.
type RelevanceScorer interface {
	ScoreRelevance(ctx context.Context, query string, a *announcement.Announcement) (*Relevance, error)
}

// Apply copies the analysis onto a and marks it processed.
func (an *Analysis) Apply(a *announcement.Announcement) {
	if an == nil || a == nil {
		return
	}
	a.AISummary = an.Summary
	a.AIKeywords = append([]string(nil), an.Keywords...)
	a.Region = announcement.NormalizeRegion(an.RegionCode)
	a.RequiredLicenses = append([]string(nil), an.LicenseRequirements...)
	if an.MinPerformance > 0 {
		a.MinPerformance = an.MinPerformance
	} else {
		a.MinPerformance = 0
	}
	a.Processed = true
}
