package matching

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/subscriber"
)

var amountPrinter = message.NewPrinter(language.Korean)

// HardMatchResult is the eligibility verdict with one reason per failed predicate.
type HardMatchResult struct {
	Matched bool     `json:"matched"`
	Reasons []string `json:"reasons,omitempty"`
}

// HardMatch checks region, license and performance constraints in that order.
func HardMatch(a *announcement.Announcement, p *subscriber.Profile) HardMatchResult {
	if p == nil {
		p = &subscriber.Profile{}
	}

	var reasons []string
	if reason, ok := matchRegion(a.Region, p.Region); !ok {
		reasons = append(reasons, reason)
	}
	if reason, ok := matchLicenses(a.RequiredLicenses, p.Licenses); !ok {
		reasons = append(reasons, reason)
	}
	if reason, ok := matchPerformance(a.MinPerformance, p.MaxPerformance()); !ok {
		reasons = append(reasons, reason)
	}

	return HardMatchResult{Matched: len(reasons) == 0, Reasons: reasons}
}

func matchRegion(required, held string) (string, bool) {
	if announcement.IsNationalRegion(required) {
		return "", true
	}
	required = strings.TrimSpace(required)
	held = strings.TrimSpace(held)
	if required == held {
		return "", true
	}
	return fmt.Sprintf("region mismatch: announcement requires %s, profile is %s",
		announcement.DescribeRegion(required), announcement.DescribeRegion(held)), false
}

func matchLicenses(required, held []string) (string, bool) {
	var missing []string
	for _, req := range required {
		req = strings.TrimSpace(req)
		if req == "" {
			continue
		}
		if !holdsLicense(req, held) {
			missing = append(missing, req)
		}
	}
	if len(missing) == 0 {
		return "", true
	}
	return "missing licenses: " + strings.Join(missing, ", "), false
}

// holdsLicense accepts containment in either direction, so "조경공사업" satisfies
// "조경공사업 면허" and the other way round.
func holdsLicense(required string, held []string) bool {
	req := strings.ToLower(required)
	for _, license := range held {
		license = strings.ToLower(strings.TrimSpace(license))
		if license == "" {
			continue
		}
		if strings.Contains(license, req) || strings.Contains(req, license) {
			return true
		}
	}
	return false
}

func matchPerformance(required, held float64) (string, bool) {
	if required <= 0 || held >= required {
		return "", true
	}
	return fmt.Sprintf("insufficient performance: required %s vs held %s",
		formatAmount(required), formatAmount(held)), false
}

func formatAmount(v float64) string {
	return amountPrinter.Sprintf("%d", int64(v))
}
