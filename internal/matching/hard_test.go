package matching

import (
	"strings"
	"testing"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/subscriber"
)

func TestHardMatch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		bid         *announcement.Announcement
		profile     *subscriber.Profile
		wantMatched bool
		wantReasons []string
	}{
		{
			name:        "no constraints",
			bid:         &announcement.Announcement{},
			profile:     &subscriber.Profile{},
			wantMatched: true,
		},
		{
			name:        "national region passes any profile",
			bid:         &announcement.Announcement{Region: announcement.RegionNational},
			profile:     &subscriber.Profile{Region: "11"},
			wantMatched: true,
		},
		{
			name:        "llm national code passes",
			bid:         &announcement.Announcement{Region: "00"},
			profile:     &subscriber.Profile{Region: "26"},
			wantMatched: true,
		},
		{
			name:        "same region passes",
			bid:         &announcement.Announcement{Region: "41"},
			profile:     &subscriber.Profile{Region: "41"},
			wantMatched: true,
		},
		{
			name:        "region mismatch names both codes",
			bid:         &announcement.Announcement{Region: "41"},
			profile:     &subscriber.Profile{Region: "11"},
			wantReasons: []string{"region mismatch: announcement requires 41 (경기도), profile is 11 (서울특별시)"},
		},
		{
			name:        "profile without region fails concrete bid region",
			bid:         &announcement.Announcement{Region: "48"},
			profile:     &subscriber.Profile{},
			wantReasons: []string{"region mismatch: announcement requires 48 (경상남도), profile is none"},
		},
		{
			name:        "license superstring requirement passes",
			bid:         &announcement.Announcement{RequiredLicenses: []string{"조경공사업 면허"}},
			profile:     &subscriber.Profile{Licenses: []string{"조경공사업"}},
			wantMatched: true,
		},
		{
			name:        "license held under longer official name passes",
			bid:         &announcement.Announcement{RequiredLicenses: []string{"정보통신공사업"}},
			profile:     &subscriber.Profile{Licenses: []string{"정보통신공사업 (1종)"}},
			wantMatched: true,
		},
		{
			name:        "blank held license is ignored",
			bid:         &announcement.Announcement{RequiredLicenses: []string{"전기공사업"}},
			profile:     &subscriber.Profile{Licenses: []string{" "}},
			wantReasons: []string{"missing licenses: 전기공사업"},
		},
		{
			name: "every missing license is named",
			bid: &announcement.Announcement{RequiredLicenses: []string{
				"식품접객업", "전기공사업", "소방시설공사업",
			}},
			profile:     &subscriber.Profile{Licenses: []string{"일반음식점 식품접객업"}},
			wantReasons: []string{"missing licenses: 전기공사업, 소방시설공사업"},
		},
		{
			name:        "no performance records against requirement",
			bid:         &announcement.Announcement{MinPerformance: 500_000_000},
			profile:     &subscriber.Profile{},
			wantReasons: []string{"insufficient performance: required 500,000,000 vs held 0"},
		},
		{
			name:    "largest single record counts",
			bid:     &announcement.Announcement{MinPerformance: 300_000_000},
			profile: &subscriber.Profile{Performances: []subscriber.Performance{{Amount: 200_000_000}, {Amount: 200_000_000}}},
			wantReasons: []string{
				"insufficient performance: required 300,000,000 vs held 200,000,000",
			},
		},
		{
			name:        "performance meets requirement",
			bid:         &announcement.Announcement{MinPerformance: 300_000_000},
			profile:     &subscriber.Profile{Performances: []subscriber.Performance{{Amount: 100}, {Amount: 300_000_000}}},
			wantMatched: true,
		},
		{
			name: "reasons follow region license performance order",
			bid: &announcement.Announcement{
				Region:           "26",
				RequiredLicenses: []string{"건축공사업"},
				MinPerformance:   1_000_000_000,
			},
			profile: &subscriber.Profile{Region: "11"},
			wantReasons: []string{
				"region mismatch: announcement requires 26 (부산광역시), profile is 11 (서울특별시)",
				"missing licenses: 건축공사업",
				"insufficient performance: required 1,000,000,000 vs held 0",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := HardMatch(tc.bid, tc.profile)
			if result.Matched != tc.wantMatched {
				t.Fatalf("expected matched=%v, got %v (%v)", tc.wantMatched, result.Matched, result.Reasons)
			}
			if strings.Join(result.Reasons, "|") != strings.Join(tc.wantReasons, "|") {
				t.Fatalf("unexpected reasons:\n got %q\nwant %q", result.Reasons, tc.wantReasons)
			}
		})
	}
}

func TestHardMatchNilProfile(t *testing.T) {
	t.Parallel()

	result := HardMatch(&announcement.Announcement{RequiredLicenses: []string{"조경공사업"}}, nil)
	if result.Matched || len(result.Reasons) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}
