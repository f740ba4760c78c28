package ledger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// URLChecker reports which of the given URLs are already persisted.
type URLChecker interface {
	ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
}

// Ledger separates never-seen announcement URLs from already persisted ones.
type Ledger struct {
	checker URLChecker
	logger  *zap.Logger
}

func New(checker URLChecker, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{checker: checker, logger: logger}
}

// FilterNew returns the subset of urls that are not persisted yet. It issues
// exactly one existence query per call regardless of the batch size.
func (l *Ledger) FilterNew(ctx context.Context, urls []string) (map[string]struct{}, error) {
	candidates := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		candidates = append(candidates, url)
	}

	fresh := make(map[string]struct{}, len(candidates))
	if len(candidates) == 0 {
		return fresh, nil
	}

	existing, err := l.checker.ExistingURLs(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("check existing urls: %w", err)
	}

	for _, url := range candidates {
		if _, ok := existing[url]; !ok {
			fresh[url] = struct{}{}
		}
	}

	l.logger.Debug("dedup ledger checked",
		zap.Int("candidates", len(candidates)),
		zap.Int("existing", len(existing)),
		zap.Int("new", len(fresh)),
	)

	return fresh, nil
}
