package announcement

import (
	"testing"
	"time"
)

func TestReportByAgencyIncludesAIResults(t *testing.T) {
	deadline := time.Date(2026, 1, 30, 18, 0, 0, 0, time.UTC)
	batch := New(&Announcement{
		Title:      "구내식당 위탁운영",
		Agency:     "한국도로공사",
		URL:        "https://example.com/1",
		Source:     SourceG2B,
		Price:      200000000,
		Deadline:   &deadline,
		Importance: 3,
		Region:     "41",
		AISummary:  "구내식당 운영 위탁",
	})

	report := batch.ReportByAgency()
	entries, ok := report["한국도로공사"]
	if !ok {
		t.Fatalf("expected agency key in report")
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry["price"] != "200000000" {
		t.Fatalf("unexpected price: %q", entry["price"])
	}
	if entry["importance"] != "3" {
		t.Fatalf("unexpected importance: %q", entry["importance"])
	}
	if entry["region"] != "41 (경기도)" {
		t.Fatalf("unexpected region: %q", entry["region"])
	}
	if entry["deadline"] != "2026-01-30 18:00:00" {
		t.Fatalf("unexpected deadline: %q", entry["deadline"])
	}
	if entry["ai_summary"] != "구내식당 운영 위탁" {
		t.Fatalf("unexpected ai_summary: %q", entry["ai_summary"])
	}
}

func TestExcludePreservesOrder(t *testing.T) {
	batch := New(
		&Announcement{URL: "a"},
		&Announcement{URL: "b"},
		&Announcement{URL: "c"},
		&Announcement{URL: "d"},
	)

	dropped := batch.Exclude(func(a *Announcement) bool {
		return a.URL == "b" || a.URL == "d"
	})

	if len(dropped) != 2 || dropped[0] != "b" || dropped[1] != "d" {
		t.Fatalf("unexpected dropped urls: %v", dropped)
	}

	urls := batch.URLs()
	if len(urls) != 2 || urls[0] != "a" || urls[1] != "c" {
		t.Fatalf("unexpected remaining urls: %v", urls)
	}
}

func TestNormalizeRegion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		expect string
	}{
		{input: "00", expect: RegionNational},
		{input: " national ", expect: RegionNational},
		{input: "전국", expect: RegionNational},
		{input: " 11 ", expect: "11"},
		{input: "", expect: ""},
	}

	for _, tt := range tests {
		if got := NormalizeRegion(tt.input); got != tt.expect {
			t.Fatalf("NormalizeRegion(%q) = %q, want %q", tt.input, got, tt.expect)
		}
	}

	if !IsNationalRegion("") || !IsNationalRegion("00") || IsNationalRegion("41") {
		t.Fatalf("unexpected national region detection")
	}
}
