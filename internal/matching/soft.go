package matching

import (
	"fmt"
	"strings"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/importance"
	"github.com/spigell/bidradar/internal/subscriber"
	"github.com/spigell/bidradar/internal/utils"
)

const (
	titleKeywordPoints = 20
	bodyKeywordPoints  = 5
	regionPoints       = 10
	importancePoints   = 5

	MinSoftScore = 0
	MaxSoftScore = 100
)

// SoftMatchResult is an additive ranking score with the factors that produced it.
type SoftMatchResult struct {
	Score     int      `json:"score"`
	Breakdown []string `json:"breakdown,omitempty"`
}

// SoftMatch scores how interesting a for the profile is. The region bonus is
// independent of the hard-match region gate.
func SoftMatch(a *announcement.Announcement, p *subscriber.Profile) SoftMatchResult {
	if p == nil {
		p = &subscriber.Profile{}
	}

	title := utils.NormalizeText(a.Title)
	body := utils.NormalizeText(a.Body)

	var (
		score     int
		breakdown []string
		seen      = make(map[string]struct{}, len(p.Keywords))
	)
	for _, keyword := range p.Keywords {
		needle := utils.NormalizeText(keyword)
		if needle == "" {
			continue
		}
		if _, ok := seen[needle]; ok {
			continue
		}
		seen[needle] = struct{}{}

		switch {
		case strings.Contains(title, needle):
			score += titleKeywordPoints
			breakdown = append(breakdown, fmt.Sprintf("keyword %q in title +%d", keyword, titleKeywordPoints))
		case strings.Contains(body, needle):
			score += bodyKeywordPoints
			breakdown = append(breakdown, fmt.Sprintf("keyword %q in body +%d", keyword, bodyKeywordPoints))
		}
	}

	region := strings.TrimSpace(a.Region)
	if region != "" && region == strings.TrimSpace(p.Region) {
		score += regionPoints
		breakdown = append(breakdown, fmt.Sprintf("region %s +%d", region, regionPoints))
	}

	weight := a.Importance
	if weight < importance.Min {
		weight = importance.Min
	}
	score += weight * importancePoints
	breakdown = append(breakdown, fmt.Sprintf("importance %d +%d", weight, weight*importancePoints))

	return SoftMatchResult{Score: clamp(score, MinSoftScore, MaxSoftScore), Breakdown: breakdown}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
