package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/plan"
	"github.com/spigell/bidradar/internal/subscriber"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Memory is a process-local store used by dry runs and tests.
type Memory struct {
	mu            sync.RWMutex
	announcements map[string]*announcement.Announcement
	order         []string
	subscribers   map[string]*subscriber.Subscriber
	exclude       []string
}

func NewMemory() *Memory {
	return &Memory{
		announcements: make(map[string]*announcement.Announcement),
		subscribers:   make(map[string]*subscriber.Subscriber),
	}
}

func (m *Memory) InsertIfAbsent(_ context.Context, a *announcement.Announcement) (bool, error) {
	if a == nil || strings.TrimSpace(a.URL) == "" {
		return false, errors.New("announcement without url")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.announcements[a.URL]; ok {
		return false, nil
	}
	m.announcements[a.URL] = cloneAnnouncement(a)
	m.order = append(m.order, a.URL)
	return true, nil
}

func (m *Memory) ExistingURLs(_ context.Context, urls []string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	existing := make(map[string]struct{})
	for _, url := range urls {
		if _, ok := m.announcements[url]; ok {
			existing[url] = struct{}{}
		}
	}
	return existing, nil
}

func (m *Memory) Update(_ context.Context, a *announcement.Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.announcements[a.URL]; !ok {
		return fmt.Errorf("update announcement %q: %w", a.URL, ErrNotFound)
	}
	m.announcements[a.URL] = cloneAnnouncement(a)
	return nil
}

// Get returns a copy of the stored announcement.
func (m *Memory) Get(url string) (*announcement.Announcement, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.announcements[url]
	if !ok {
		return nil, false
	}
	return cloneAnnouncement(a), true
}

// Len returns the number of stored announcements.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.announcements)
}

func (m *Memory) ListOpen(_ context.Context, now time.Time) ([]*announcement.Announcement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []*announcement.Announcement
	for _, url := range m.order {
		a := m.announcements[url]
		if a.Expired(now) {
			continue
		}
		items = append(items, cloneAnnouncement(a))
	}
	sort.SliceStable(items, func(i, j int) bool {
		left, right := items[i].Deadline, items[j].Deadline
		switch {
		case left == nil:
			return false
		case right == nil:
			return true
		default:
			return left.Before(*right)
		}
	})
	return items, nil
}

// SaveSubscribers replaces subscribers by id.
func (m *Memory) SaveSubscribers(_ context.Context, subs []*subscriber.Subscriber) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, sub := range subs {
		if sub == nil || strings.TrimSpace(sub.ID) == "" {
			continue
		}
		copied := *sub
		copied.Tier = plan.ParseTier(string(sub.Tier))
		m.subscribers[sub.ID] = &copied
		count++
	}
	return count, nil
}

// SetExcludeKeywords sets the dynamic exclude keywords returned by Keywords.
func (m *Memory) SetExcludeKeywords(keywords []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exclude = append([]string(nil), keywords...)
}

func (m *Memory) ActiveSubscribers(_ context.Context) ([]*subscriber.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]*subscriber.Subscriber, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		if !sub.Active {
			continue
		}
		copied := *sub
		subs = append(subs, &copied)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (m *Memory) Subscriber(_ context.Context, id string) (*subscriber.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subscribers[id]
	if !ok {
		return nil, fmt.Errorf("subscriber %q: %w", id, ErrNotFound)
	}
	copied := *sub
	return &copied, nil
}

func (m *Memory) Tier(ctx context.Context, id string) (plan.Tier, error) {
	sub, err := m.Subscriber(ctx, id)
	if err != nil {
		return "", err
	}
	return sub.Tier, nil
}

// Keywords returns the profile keywords of active subscribers and the configured excludes.
func (m *Memory) Keywords(_ context.Context) ([]string, []string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var include []string
	for _, sub := range m.subscribers {
		if !sub.Active {
			continue
		}
		for _, keyword := range sub.Profile.Keywords {
			keyword = strings.TrimSpace(keyword)
			if keyword == "" {
				continue
			}
			if _, ok := seen[keyword]; ok {
				continue
			}
			seen[keyword] = struct{}{}
			include = append(include, keyword)
		}
	}
	sort.Strings(include)
	return include, append([]string(nil), m.exclude...), nil
}

func cloneAnnouncement(a *announcement.Announcement) *announcement.Announcement {
	copied := *a
	copied.Attachments = append([]string(nil), a.Attachments...)
	copied.MatchedKeywords = append([]string(nil), a.MatchedKeywords...)
	copied.RequiredLicenses = append([]string(nil), a.RequiredLicenses...)
	copied.AIKeywords = append([]string(nil), a.AIKeywords...)
	if a.Deadline != nil {
		deadline := *a.Deadline
		copied.Deadline = &deadline
	}
	return &copied
}
