package onbid

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/source"
)

const minCells = 5

// Result table columns, 1-based.
const (
	cellTitle = iota + 2
	cellAgency
	cellPeriod
	cellPrice
	cellStatus
)

type row struct {
	cells int
	href  string
	item  announcement.Announcement
}

type cellProcessorFunc func(n *html.Node, tdIndex int, r *row)

func (a *Adapter) parseList(body io.Reader, now time.Time) ([]*announcement.Announcement, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var items []*announcement.Announcement
	traverseRows(doc, a.processCell, func(r *row) {
		if r.cells < minCells || r.href == "" || r.item.Title == "" {
			a.logger.Warn("skipping malformed onbid row",
				zap.Int("cells", r.cells),
				zap.String("title", r.item.Title),
			)
			return
		}

		link := a.resolve(r.href)
		if link == "" {
			a.logger.Warn("skipping onbid row with invalid link", zap.String("href", r.href))
			return
		}

		item := r.item
		item.URL = link
		item.Source = announcement.SourceOnbid
		if item.Posted.IsZero() {
			item.Posted = now
		}
		items = append(items, &item)
	})

	return items, nil
}

func (a *Adapter) processCell(n *html.Node, tdIndex int, r *row) {
	text := cleanText(extractText(n))
	switch tdIndex {
	case cellTitle:
		if link := findElement(n, "a"); link != nil {
			r.href = attr(link, "href")
			r.item.Title = cleanText(extractText(link))
		}
	case cellAgency:
		r.item.Agency = text
	case cellPeriod:
		posted, deadline := parsePeriod(text)
		if posted != nil {
			r.item.Posted = *posted
		}
		r.item.Deadline = deadline
	case cellPrice:
		r.item.Price = source.ParsePrice(text)
	case cellStatus:
		r.item.Status = text
	}
}

// parsePeriod splits "2026-01-20 ~ 2026-01-30" into its bounds; unparsable parts are nil.
func parsePeriod(text string) (*time.Time, *time.Time) {
	start, end, ok := strings.Cut(text, "~")
	if !ok {
		return nil, nil
	}

	var posted, deadline *time.Time
	if t, ok := source.ParseTime(start, source.KST, "2006-01-02 15:04", periodLayout); ok {
		posted = &t
	}
	if t, ok := source.ParseTime(end, source.KST, "2006-01-02 15:04", periodLayout); ok {
		deadline = &t
	}
	return posted, deadline
}

func traverseRows(doc *html.Node, processor cellProcessorFunc, collect func(*row)) {
	var f func(*html.Node, bool)
	f = func(n *html.Node, inTableBody bool) {
		if n.Type == html.ElementNode && n.Data == "tbody" {
			inTableBody = true
		}

		if inTableBody && n.Type == html.ElementNode && n.Data == "tr" {
			current := &row{}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "td" {
					current.cells++
					processor(c, current.cells, current)
				}
			}
			collect(current)
			return
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c, inTableBody)
		}
	}

	f(doc, false)
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(extractText(c))
	}
	return sb.String()
}

func findElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
