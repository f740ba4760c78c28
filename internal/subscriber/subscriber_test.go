package subscriber

import "testing"

func TestMaxPerformance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile *Profile
		expect  float64
	}{
		{name: "nil profile", profile: nil, expect: 0},
		{name: "no records", profile: &Profile{}, expect: 0},
		{
			name: "largest wins",
			profile: &Profile{Performances: []Performance{
				{Amount: 300000000},
				{Amount: 800000000},
				{Amount: 120000000},
			}},
			expect: 800000000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.profile.MaxPerformance(); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}
