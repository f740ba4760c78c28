package source

import (
	"errors"
	"testing"
	"time"
)

func TestParsePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		expect float64
	}{
		{input: "150,000,000원", expect: 150000000},
		{input: " 2500000 ", expect: 2500000},
		{input: "1234.5", expect: 1234.5},
		{input: "금액미상", expect: 0},
		{input: "", expect: 0},
		{input: "1.2.3", expect: 0},
	}

	for _, tt := range tests {
		if got := ParsePrice(tt.input); got != tt.expect {
			t.Fatalf("ParsePrice(%q) = %v, want %v", tt.input, got, tt.expect)
		}
	}
}

func TestParseTime(t *testing.T) {
	got, ok := ParseTime("202601201530", KST, "2006-01-02 15:04:05", "200601021504")
	if !ok {
		t.Fatal("expected compact layout to parse")
	}
	if !got.Equal(time.Date(2026, 1, 20, 15, 30, 0, 0, KST)) {
		t.Fatalf("unexpected time: %v", got)
	}

	if _, ok := ParseTime("not a date", KST, "200601021504"); ok {
		t.Fatal("expected unparsable input to fail soft")
	}
	if _, ok := ParseTime("  ", KST, "200601021504"); ok {
		t.Fatal("expected blank input to fail soft")
	}
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("connection reset")
	err := Unavailable("G2B", cause)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("expected both sentinel and cause, got %v", err)
	}
}
