package ledger

import (
	"context"
	"errors"
	"testing"
)

type countingChecker struct {
	calls    int
	received []string
	existing map[string]struct{}
	err      error
}

func (c *countingChecker) ExistingURLs(_ context.Context, urls []string) (map[string]struct{}, error) {
	c.calls++
	c.received = append(c.received, urls...)
	if c.err != nil {
		return nil, c.err
	}
	return c.existing, nil
}

func TestFilterNewUsesSingleBatchedCheck(t *testing.T) {
	checker := &countingChecker{existing: map[string]struct{}{"https://a": {}}}
	l := New(checker, nil)

	fresh, err := l.FilterNew(context.Background(), []string{"https://a", "https://b", " ", "https://b", "https://c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if checker.calls != 1 {
		t.Fatalf("expected exactly one existence check, got %d", checker.calls)
	}
	if len(checker.received) != 3 {
		t.Fatalf("expected blank and repeated urls to be dropped before the check, got %v", checker.received)
	}

	if len(fresh) != 2 {
		t.Fatalf("expected 2 new urls, got %v", fresh)
	}
	for _, url := range []string{"https://b", "https://c"} {
		if _, ok := fresh[url]; !ok {
			t.Fatalf("expected %s to be new", url)
		}
	}
}

func TestFilterNewSkipsEmptyBatch(t *testing.T) {
	checker := &countingChecker{}
	fresh, err := New(checker, nil).FilterNew(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh) != 0 || checker.calls != 0 {
		t.Fatalf("expected no check for an empty batch, calls=%d", checker.calls)
	}
}

func TestFilterNewWrapsCheckerError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := New(&countingChecker{err: boom}, nil).FilterNew(context.Background(), []string{"https://a"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped checker error, got %v", err)
	}
}
