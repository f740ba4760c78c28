package onbid

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// Detail is the content of an announcement detail page.
type Detail struct {
	Content     string
	Attachments []string
}

// FetchDetail loads the detail page of an announcement. A page without a content
// block yields an empty Content rather than an error.
func (a *Adapter) FetchDetail(ctx context.Context, link string) (*Detail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.UserAgent)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	detail := &Detail{
		Content: cleanText(doc.Find("div.cont_box").First().Text()),
	}
	doc.Find("a.file_link").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			if resolved := a.resolve(href); resolved != "" {
				detail.Attachments = append(detail.Attachments, resolved)
			}
		}
	})

	return detail, nil
}
