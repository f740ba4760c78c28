package announcement

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Announcements is an ordered batch of announcements flowing through the pipeline.
type Announcements struct {
	Items []*Announcement
}

func New(items ...*Announcement) *Announcements {
	return &Announcements{Items: items}
}

func (a *Announcements) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Items)
}

// URLs returns the URLs of the batch in order.
func (a *Announcements) URLs() []string {
	urls := make([]string, 0, a.Len())
	for _, item := range a.Items {
		urls = append(urls, item.URL)
	}
	return urls
}

func (a *Announcements) FindByURL(url string) *Announcement {
	for _, item := range a.Items {
		if item.URL == url {
			return item
		}
	}
	return nil
}

// Exclude drops every announcement for which drop returns true, preserving order,
// and returns the URLs of the dropped items.
func (a *Announcements) Exclude(drop func(*Announcement) bool) []string {
	var excluded []string
	kept := a.Items[:0]
	for _, item := range a.Items {
		if drop(item) {
			excluded = append(excluded, item.URL)
			continue
		}
		kept = append(kept, item)
	}
	// Clear the tail so dropped pointers can be collected.
	for i := len(kept); i < len(a.Items); i++ {
		a.Items[i] = nil
	}
	a.Items = kept
	return excluded
}

func (a *Announcements) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "announcements_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ReportByAgency groups the batch by issuing agency.
func (a *Announcements) ReportByAgency() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, item := range a.Items {
		key := item.Agency
		if key == "" {
			key = "unknown agency"
		}
		entry := map[string]string{
			"title":      item.Title,
			"url":        item.URL,
			"source":     string(item.Source),
			"importance": strconv.Itoa(item.Importance),
		}
		if item.Price > 0 {
			entry["price"] = fmt.Sprintf("%.0f", item.Price)
		}
		if item.Deadline != nil {
			entry["deadline"] = item.Deadline.Format(time.DateTime)
		}
		if item.Region != "" {
			entry["region"] = DescribeRegion(item.Region)
		}
		if item.AISummary != "" {
			entry["ai_summary"] = item.AISummary
		}
		report[key] = append(report[key], entry)
	}
	return report
}
