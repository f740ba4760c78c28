// Package importance ranks announcements into a 1-3 priority tier that gates
// AI summarization and feeds sorting.
package importance

import (
	"strings"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/utils"
)

const (
	Min = 1
	Max = 3

	// PriceThreshold is the estimated price (KRW) that earns the price bonus.
	PriceThreshold = 100_000_000
	// KeywordThreshold is the matched keyword count that earns the keyword bonus.
	KeywordThreshold = 3
)

// HighValueKeywords earn the title bonus.
var HighValueKeywords = []string{"구내식당", "위탁운영", "장례식장", "클럽하우스"}

// Score returns the importance of a, always within [Min, Max].
func Score(a *announcement.Announcement) int {
	if a == nil {
		return Min
	}

	score := Min

	title := utils.NormalizeText(a.Title)
	for _, keyword := range HighValueKeywords {
		if strings.Contains(title, utils.NormalizeText(keyword)) {
			score++
			break
		}
	}

	if a.Price >= PriceThreshold {
		score++
	}

	if len(a.MatchedKeywords) >= KeywordThreshold {
		score++
	}

	return min(score, Max)
}
