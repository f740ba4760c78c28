package plan

import (
	"context"
	"fmt"
	"strings"
)

// Tier is a subscription plan tier.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// Unlimited is the cap used for tiers without a practical result limit.
const Unlimited = 9999

// Limits are the per-tier caps on hard-matched results.
type Limits map[Tier]int

// DefaultLimits returns the built-in caps.
func DefaultLimits() Limits {
	return Limits{
		TierFree:  3,
		TierBasic: 50,
		TierPro:   Unlimited,
	}
}

// ParseTier normalizes a tier name; unknown names fall back to the free tier.
func ParseTier(name string) Tier {
	switch tier := Tier(strings.ToLower(strings.TrimSpace(name))); tier {
	case TierFree, TierBasic, TierPro:
		return tier
	default:
		return TierFree
	}
}

// TierLookup resolves the active tier of a subscriber.
type TierLookup interface {
	Tier(ctx context.Context, subscriberID string) (Tier, error)
}

// Limiter caps result sets by the subscriber's plan.
type Limiter struct {
	lookup TierLookup
	limits Limits
}

// NewLimiter builds a limiter. Missing entries in overrides keep the default caps.
func NewLimiter(lookup TierLookup, overrides Limits) *Limiter {
	limits := DefaultLimits()
	for tier, limit := range overrides {
		if limit > 0 {
			limits[ParseTier(string(tier))] = limit
		}
	}
	return &Limiter{lookup: lookup, limits: limits}
}

// PlanLimit returns the result cap for the subscriber.
func (l *Limiter) PlanLimit(ctx context.Context, subscriberID string) (int, error) {
	if l.lookup == nil {
		return l.limits[TierFree], nil
	}
	tier, err := l.lookup.Tier(ctx, subscriberID)
	if err != nil {
		return 0, fmt.Errorf("lookup tier of subscriber %s: %w", subscriberID, err)
	}
	return l.Limit(tier), nil
}

// Limit returns the cap of a tier, falling back to the free cap.
func (l *Limiter) Limit(tier Tier) int {
	if limit, ok := l.limits[ParseTier(string(tier))]; ok {
		return limit
	}
	return l.limits[TierFree]
}
