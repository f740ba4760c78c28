package filtering

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/bidradar/internal/announcement"
)

type stubLedger struct {
	calls       int
	existing    map[string]struct{}
	err         error
	seen        []string
	hadDeadline bool
}

func (s *stubLedger) FilterNew(ctx context.Context, urls []string) (map[string]struct{}, error) {
	s.calls++
	s.seen = append(s.seen, urls...)
	_, s.hadDeadline = ctx.Deadline()
	if s.err != nil {
		return nil, s.err
	}
	fresh := make(map[string]struct{})
	for _, url := range urls {
		if _, ok := s.existing[url]; !ok {
			fresh[url] = struct{}{}
		}
	}
	return fresh, nil
}

func TestRunPipeline(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(48 * time.Hour)

	batch := announcement.New(
		&announcement.Announcement{URL: "u1", Title: "구내식당 위탁운영", Agency: "한국전력", Deadline: &future},
		&announcement.Announcement{URL: "u2", Title: "청사 철거 공사 구내식당"},
		&announcement.Announcement{URL: "u3", Title: "근조 화환 구매", Agency: "차단기관"},
		&announcement.Announcement{URL: "u4", Title: "카페운영 사업자", Deadline: &past},
		&announcement.Announcement{URL: "u5", Title: "장례식장 식음료"},
		&announcement.Announcement{URL: "u1", Title: "구내식당 위탁운영"},
		&announcement.Announcement{URL: "u6", Title: "급식 위탁"},
	)

	ledger := &stubLedger{existing: map[string]struct{}{"u6": {}}}
	steps := []Filter{
		NewKeywords(DefaultIncludeKeywords(), DefaultExcludeKeywords),
		NewAgencies([]string{"차단기관"}),
		NewOpenDeadline(),
		NewDedup(ledger),
	}

	out, reports, err := Run(context.Background(), Deps{Logger: zap.New(core), Now: func() time.Time { return now }}, steps, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	urls := out.URLs()
	if len(urls) != 2 || urls[0] != "u1" || urls[1] != "u5" {
		t.Fatalf("unexpected surviving urls: %v", urls)
	}

	if ledger.calls != 1 {
		t.Fatalf("expected one ledger call, got %d", ledger.calls)
	}

	expect := map[string]Step{
		StepKeywords:     {Initial: 7, Dropped: 1, Left: 6},
		"agencies":       {Initial: 6, Dropped: 1, Left: 5},
		StepOpenDeadline: {Initial: 5, Dropped: 1, Left: 4},
		StepDedup:        {Initial: 4, Dropped: 2, Left: 2},
	}
	for name, step := range expect {
		report, ok := Find(reports, name)
		if !ok {
			t.Fatalf("missing report for %s", name)
		}
		if report.Step != step {
			t.Fatalf("%s: expected %+v, got %+v", name, step, report.Step)
		}
	}

	if got := len(observed.FilterMessage("filter step").All()); got != 4 {
		t.Fatalf("expected 4 filter step logs, got %d", got)
	}
}

func TestRunSkipsDisabledAndStopsOnError(t *testing.T) {
	boom := errors.New("ledger down")
	steps := []Filter{
		NewOpenDeadline(),
		NewDedup(&stubLedger{err: boom}),
	}
	DisableByName(steps, StepOpenDeadline, "not needed")

	_, reports, err := Run(context.Background(), Deps{}, steps, announcement.New(&announcement.Announcement{URL: "u1"}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected ledger error, got %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected no completed reports, got %v", reports)
	}

	statuses := Describe(steps)
	if statuses[0].Enabled || statuses[0].Reason != "not needed" {
		t.Fatalf("unexpected status of disabled step: %+v", statuses[0])
	}
}

func TestRunValidatesBeforeApplying(t *testing.T) {
	_, _, err := Run(context.Background(), Deps{}, []Filter{NewDedup(nil)}, announcement.New())
	if err == nil {
		t.Fatal("expected validation error for missing ledger")
	}
}

func TestDedupComparesTrimmedURLs(t *testing.T) {
	ledger := &stubLedger{existing: map[string]struct{}{"https://bid.example/1": {}}}
	batch := announcement.New(
		&announcement.Announcement{URL: " https://bid.example/1 "},
		&announcement.Announcement{URL: "https://bid.example/2\n"},
		&announcement.Announcement{URL: "https://bid.example/2"},
	)

	out, reports, err := Run(context.Background(), Deps{}, []Filter{NewDedup(ledger)}, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	urls := out.URLs()
	if len(urls) != 1 || urls[0] != "https://bid.example/2" {
		t.Fatalf("unexpected surviving urls: %q", urls)
	}
	for _, url := range ledger.seen {
		if url != strings.TrimSpace(url) {
			t.Fatalf("ledger received untrimmed url %q", url)
		}
	}
	if report, _ := Find(reports, StepDedup); report.Step.Dropped != 2 {
		t.Fatalf("expected 2 drops, got %+v", report.Step)
	}
}

func TestDedupBoundsLedgerCall(t *testing.T) {
	cases := []struct {
		name         string
		storeTimeout time.Duration
		wantDeadline bool
	}{
		{name: "with store timeout", storeTimeout: time.Second, wantDeadline: true},
		{name: "without store timeout"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := &stubLedger{}
			deps := Deps{StoreTimeout: tc.storeTimeout}
			batch := announcement.New(&announcement.Announcement{URL: "u1"})

			if _, _, err := Run(context.Background(), deps, []Filter{NewDedup(ledger)}, batch); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ledger.hadDeadline != tc.wantDeadline {
				t.Fatalf("expected deadline=%v, got %v", tc.wantDeadline, ledger.hadDeadline)
			}
		})
	}
}
