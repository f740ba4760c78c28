package plan

import (
	"context"
	"errors"
	"testing"
)

type stubLookup struct {
	tiers map[string]Tier
	err   error
}

func (s stubLookup) Tier(_ context.Context, id string) (Tier, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.tiers[id], nil
}

func TestPlanLimit(t *testing.T) {
	t.Parallel()

	lookup := stubLookup{tiers: map[string]Tier{
		"free-user":  TierFree,
		"basic-user": TierBasic,
		"pro-user":   TierPro,
		"odd-user":   Tier("enterprise"),
	}}
	limiter := NewLimiter(lookup, nil)

	tests := []struct {
		id     string
		expect int
	}{
		{id: "free-user", expect: 3},
		{id: "basic-user", expect: 50},
		{id: "pro-user", expect: Unlimited},
		{id: "odd-user", expect: 3},
		{id: "missing", expect: 3},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			got, err := limiter.PlanLimit(context.Background(), tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %d, got %d", tt.expect, got)
			}
		})
	}
}

func TestPlanLimitOverridesAndErrors(t *testing.T) {
	limiter := NewLimiter(stubLookup{tiers: map[string]Tier{"u": TierBasic}}, Limits{TierBasic: 20, TierFree: 0})
	got, err := limiter.PlanLimit(context.Background(), "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 20 {
		t.Fatalf("expected overridden basic cap 20, got %d", got)
	}
	if limiter.Limit(TierFree) != 3 {
		t.Fatalf("expected non-positive override to keep the default free cap")
	}

	boom := errors.New("db down")
	failing := NewLimiter(stubLookup{err: boom}, nil)
	if _, err := failing.PlanLimit(context.Background(), "u"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped lookup error, got %v", err)
	}
}
