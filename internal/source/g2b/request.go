package g2b

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	resultOK        = "00"
)

// Item is a raw notice as returned by the API.
type Item = map[string]any

type itemResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items      any `json:"items"`
			NumOfRows  int `json:"numOfRows"`
			PageNo     int `json:"pageNo"`
			TotalCount int `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
}

// GetItems requests the list endpoint and returns the items of every page up to the page limit.
func (a *Adapter) GetItems(ctx context.Context, q url.Values) ([]Item, error) {
	var items []Item

	for page := 1; ; page++ {
		q.Set("pageNo", strconv.Itoa(page))

		response, err := a.getPage(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		pageItems := response.items()
		items = append(items, pageItems...)

		total := response.Response.Body.TotalCount
		a.logger.Debug("got response from g2b",
			zap.Int("page", page),
			zap.Int("items", len(pageItems)),
			zap.Int("total", total),
		)

		if len(pageItems) == 0 || page*a.rowsPerPage >= total {
			break
		}
		if page >= a.maxPages {
			a.logger.Info("g2b page limit reached",
				zap.Int("max_pages", a.maxPages),
				zap.Int("total", total),
				zap.Int("fetched", len(items)),
			)
			break
		}
	}

	return items, nil
}

func (a *Adapter) getPage(ctx context.Context, q url.Values) (*itemResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.APIURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", a.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.URL.RawQuery = q.Encode()

	a.logger.Debug("make request", zap.String("url", req.URL.Path), zap.String("page", q.Get("pageNo")))
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return parseItemResponse(resp)
}

func parseItemResponse(resp *http.Response) (*itemResponse, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}

	var response itemResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if code := response.Response.Header.ResultCode; code != resultOK {
		return nil, fmt.Errorf("api result %s: %s", code, response.Response.Header.ResultMsg)
	}

	return &response, nil
}

// items normalizes the shapes the API uses for the item list: an array, an
// object wrapping "item" (array or single object), or an empty string.
func (r *itemResponse) items() []Item {
	raw := r.Response.Body.Items
	if wrapper, ok := raw.(map[string]any); ok {
		raw = wrapper["item"]
	}

	switch v := raw.(type) {
	case []any:
		items := make([]Item, 0, len(v))
		for _, entry := range v {
			if item, ok := entry.(map[string]any); ok {
				items = append(items, item)
			}
		}
		return items
	case map[string]any:
		return []Item{v}
	default:
		return nil
	}
}
