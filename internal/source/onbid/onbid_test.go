package onbid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/bidradar/internal/source"
)

const listPage = `<html><body><table class="tb_type01"><thead><tr><th>No</th></tr></thead><tbody>
<tr><td>too few</td></tr>
<tr>
  <td>1</td>
  <td><a href="/detail/101"> 구내식당 임대 </a></td>
  <td>한국철도공사</td>
  <td>2026-01-20 ~ 2026-01-30</td>
  <td>150,000,000원</td>
  <td>입찰진행중</td>
</tr>
<tr>
  <td>2</td>
  <td>링크 없는 행</td>
  <td>기관</td>
  <td>2026-01-20 ~ 2026-01-25</td>
  <td>1,000,000원</td>
</tr>
<tr>
  <td>3</td>
  <td><a href="/detail/102">카페 임대</a></td>
  <td>국립공원공단</td>
  <td>기간 미정</td>
  <td>금액미상</td>
</tr>
</tbody></table></body></html>`

const emptyPage = `<html><body><table><tbody></tbody></table></body></html>`

const detailPage = `<html><body>
<div class="cont_box"> 상세 내용입니다 </div>
<a class="file_link" href="/files/doc.pdf">첨부1.pdf</a>
<a class="file_link" href="/files/doc2.hwp">첨부2.hwp</a>
</body></html>`

func newTestAdapter(t *testing.T, handler http.HandlerFunc, cfg Config, logger *zap.Logger) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	a, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	a.now = func() time.Time { return time.Date(2026, 1, 21, 9, 0, 0, 0, source.KST) }
	return a
}

func TestFetchParsesRowsAndStopsOnEmptyPage(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	var pages []string

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("searchWord") != "식당 임대" {
			t.Errorf("unexpected search word %q", r.PostForm.Get("searchWord"))
		}
		page := r.PostForm.Get("pageIndex")
		pages = append(pages, page)
		if page == "1" {
			fmt.Fprint(w, listPage)
			return
		}
		fmt.Fprint(w, emptyPage)
	}, Config{MaxPages: 5, SearchWords: []string{"식당 임대"}}, zap.New(core))

	items, err := a.Fetch(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pages) != 2 {
		t.Fatalf("expected pagination to stop after the first empty page, got pages %v", pages)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 parsed rows, got %d", len(items))
	}

	first := items[0]
	if first.Title != "구내식당 임대" || first.Agency != "한국철도공사" || first.Status != "입찰진행중" {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if !strings.HasSuffix(first.URL, "/detail/101") || !strings.HasPrefix(first.URL, "http") {
		t.Fatalf("expected absolute detail url, got %q", first.URL)
	}
	if first.Price != 150000000 {
		t.Fatalf("unexpected price: %v", first.Price)
	}
	if first.Deadline == nil || first.Deadline.Day() != 30 {
		t.Fatalf("unexpected deadline: %v", first.Deadline)
	}
	if first.Posted.Day() != 20 {
		t.Fatalf("unexpected posted: %v", first.Posted)
	}

	second := items[1]
	if second.Price != 0 || second.Deadline != nil {
		t.Fatalf("expected defaults for unparsable cells, got %+v", second)
	}
	if !second.Posted.Equal(a.now()) {
		t.Fatalf("expected posted to fall back to fetch time, got %v", second.Posted)
	}

	if got := len(observed.FilterMessage("skipping malformed onbid row").All()); got != 2 {
		t.Fatalf("expected 2 skipped rows to be logged, got %d", got)
	}
}

func TestFetchRespectsMaxPages(t *testing.T) {
	calls := 0
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, listPage)
	}, Config{MaxPages: 2, SearchWords: []string{"카페 임대"}}, nil)

	items, err := a.Fetch(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 page requests, got %d", calls)
	}
	if len(items) != 2 {
		t.Fatalf("expected repeated rows to be collapsed by url, got %d", len(items))
	}
}

func TestFetchFailsOnBadStatus(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, Config{SearchWords: []string{"매점 임대"}}, nil)

	if _, err := a.Fetch(context.Background(), time.Time{}); !errors.Is(err, source.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFetchDetail(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/detail/1":
			fmt.Fprint(w, detailPage)
		case "/detail/empty":
			fmt.Fprint(w, `<html><body><p>no content</p></body></html>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, Config{}, nil)

	detail, err := a.FetchDetail(context.Background(), a.resolve("/detail/1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Content != "상세 내용입니다" {
		t.Fatalf("unexpected content: %q", detail.Content)
	}
	if len(detail.Attachments) != 2 || !strings.HasSuffix(detail.Attachments[1], "/files/doc2.hwp") {
		t.Fatalf("unexpected attachments: %v", detail.Attachments)
	}

	empty, err := a.FetchDetail(context.Background(), a.resolve("/detail/empty"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.Content != "" || len(empty.Attachments) != 0 {
		t.Fatalf("expected empty detail, got %+v", empty)
	}

	if _, err := a.FetchDetail(context.Background(), a.resolve("/detail/missing")); err == nil {
		t.Fatal("expected error for missing detail page")
	}
}

func TestFetchEnrichesWithDetails(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			_ = r.ParseForm()
			if r.PostForm.Get("pageIndex") == "1" {
				fmt.Fprint(w, listPage)
				return
			}
			fmt.Fprint(w, emptyPage)
		case r.URL.Path == "/detail/101":
			fmt.Fprint(w, detailPage)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}, Config{SearchWords: []string{"식당 임대"}, FetchDetails: true}, nil)

	items, err := a.Fetch(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items[0].Body != "상세 내용입니다" || len(items[0].Attachments) != 2 {
		t.Fatalf("expected first row to be enriched, got %+v", items[0])
	}
	if items[1].Body != "" {
		t.Fatalf("expected failed detail fetch to keep the row untouched, got %+v", items[1])
	}
}
