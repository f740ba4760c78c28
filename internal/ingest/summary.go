package ingest

import (
	"time"

	"github.com/spigell/bidradar/internal/filtering"
)

// ItemStatus is the persistence outcome of one announcement.
type ItemStatus string

const (
	StatusSaved     ItemStatus = "saved"
	StatusDuplicate ItemStatus = "duplicate"
	StatusFailed    ItemStatus = "failed"
)

// ItemResult is what happened to one announcement during a run.
type ItemResult struct {
	URL        string     `json:"url"`
	Status     ItemStatus `json:"status"`
	Importance int        `json:"importance"`
	Analyzed   bool       `json:"analyzed"`
	Notified   int        `json:"notified"`
	Errors     []string   `json:"errors,omitempty"`
}

// Summary reports one ingestion run.
type Summary struct {
	RunID      string             `json:"run_id"`
	Source     string             `json:"source"`
	StartedAt  time.Time          `json:"started_at"`
	Fetched    int                `json:"fetched"`
	Accepted   int                `json:"accepted"`
	New        int                `json:"new"`
	Duplicates int                `json:"duplicates"`
	Notified   int                `json:"notified"`
	Analyzed   int                `json:"analyzed"`
	Processed  int                `json:"processed"`
	Skipped    int                `json:"skipped"`
	TimedOut   bool               `json:"timed_out"`
	Errors     []string           `json:"errors,omitempty"`
	Elapsed    time.Duration      `json:"elapsed"`
	Steps      []filtering.Report `json:"steps,omitempty"`
	Items      []ItemResult       `json:"items,omitempty"`
	Err        string             `json:"error,omitempty"`
}

// Failed reports whether the run aborted.
func (s *Summary) Failed() bool {
	return s.Err != ""
}
