package announcement

import (
	"strings"
	"time"
)

// Source identifies the upstream system an announcement was harvested from.
type Source string

const (
	SourceG2B   Source = "G2B"
	SourceOnbid Source = "Onbid"
	SourceFeed  Source = "RSS"
)

// RegionNational marks announcements open to bidders from any region.
const RegionNational = "national"

// Announcement is the normalized bid announcement every source adapter produces.
// URL is the natural key: dedup and persistence rely on it exclusively.
type Announcement struct {
	Title            string     `json:"title"`
	Body             string     `json:"body,omitempty"`
	Agency           string     `json:"agency,omitempty"`
	Posted           time.Time  `json:"posted"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	Source           Source     `json:"source"`
	URL              string     `json:"url"`
	Price            float64    `json:"price,omitempty"`
	Status           string     `json:"status,omitempty"`
	Attachments      []string   `json:"attachments,omitempty"`
	MatchedKeywords  []string   `json:"matched_keywords,omitempty"`
	Importance       int        `json:"importance"`
	Region           string     `json:"region,omitempty"`
	RequiredLicenses []string   `json:"required_licenses,omitempty"`
	MinPerformance   float64    `json:"min_performance,omitempty"`
	Processed        bool       `json:"processed"`
	AISummary        string     `json:"ai_summary,omitempty"`
	AIKeywords       []string   `json:"ai_keywords,omitempty"`
}

// Text returns the title and body joined the way keyword matching expects.
func (a *Announcement) Text() string {
	if a == nil {
		return ""
	}
	return a.Title + " " + a.Body
}

// IsNational reports whether the announcement carries no regional restriction.
func (a *Announcement) IsNational() bool {
	return IsNationalRegion(a.Region)
}

// Expired reports whether the deadline is known and already passed at now.
func (a *Announcement) Expired(now time.Time) bool {
	return a.Deadline != nil && a.Deadline.Before(now)
}

// NormalizeRegion maps the LLM "00" code and free-form national markers to RegionNational
// and trims everything else.
func NormalizeRegion(code string) string {
	code = strings.TrimSpace(code)
	switch strings.ToLower(code) {
	case "00", RegionNational, "전국":
		return RegionNational
	}
	return code
}

// IsNationalRegion reports whether code is empty or the national sentinel.
func IsNationalRegion(code string) bool {
	code = strings.TrimSpace(code)
	return code == "" || NormalizeRegion(code) == RegionNational
}
