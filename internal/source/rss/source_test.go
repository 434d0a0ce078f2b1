package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/fread/internal/model"
	"github.com/abelbrown/fread/internal/source"
)

func rssFeed(title string, n int, hour int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>` + title + `</title>`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<item><title>%s %d</title><link>http://example.com/%s/%d</link>`+
			`<description>&lt;p&gt;Body %d&lt;/p&gt;</description>`+
			`<pubDate>Mon, 01 Jan 2024 %02d:%02d:00 GMT</pubDate></item>`, title, i, title, i, i, hour, 59-i)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func serve(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetchConvertsItems(t *testing.T) {
	srv, _ := serve(t, rssFeed("Tech", 2, 12))
	s := New(5*time.Second)

	items, err := s.Fetch(context.Background(), Feed{Name: "Tech Feed", URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Tech 0" {
		t.Errorf("expected 'Tech 0', got %q", first.Title)
	}
	if first.OriginTitle != "Tech Feed" {
		t.Errorf("expected origin 'Tech Feed', got %q", first.OriginTitle)
	}
	if first.OriginStreamID != "feed/"+srv.URL {
		t.Errorf("unexpected stream id %q", first.OriginStreamID)
	}
	if len(first.CanonicalURLs) == 0 || first.CanonicalURLs[0] != "http://example.com/Tech/0" {
		t.Errorf("unexpected urls %v", first.CanonicalURLs)
	}
	if first.SummaryHTML != "<p>Body 0</p>" {
		t.Errorf("unexpected summary html %q", first.SummaryHTML)
	}
	want := time.Date(2024, 1, 1, 12, 59, 0, 0, time.UTC).Unix()
	if first.PublishedEpochSeconds != want {
		t.Errorf("expected published %d, got %d", want, first.PublishedEpochSeconds)
	}

	if _, err := model.Normalize(items); err != nil {
		t.Errorf("converted items should normalize: %v", err)
	}
}

func TestFetch404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(time.Second).Fetch(context.Background(), Feed{URL: srv.URL})
	if err == nil {
		t.Error("expected error for 404")
	}
}

func TestRequestPagesThroughParsedCopy(t *testing.T) {
	srv, hits := serve(t, rssFeed("News", 5, 10))
	s := New(5*time.Second, Feed{Name: "News", URL: srv.URL})
	s.PageSize = 2
	stream := "feed/" + srv.URL

	var ids []string
	cursor := ""
	pages := 0
	for {
		resp, err := s.Request(context.Background(), stream, source.Query{Continuation: cursor})
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		pages++
		for _, it := range resp.Items {
			ids = append(ids, it.ID)
		}
		if resp.Continuation == "" {
			break
		}
		cursor = resp.Continuation
	}

	if len(ids) != 5 {
		t.Errorf("expected 5 items, got %d", len(ids))
	}
	if pages != 3 {
		t.Errorf("expected 3 pages, got %d", pages)
	}
	if hits.Load() != 1 {
		t.Errorf("feed should be downloaded once per chain, got %d", hits.Load())
	}
}

func TestRestartExpiresOldCursor(t *testing.T) {
	srv, _ := serve(t, rssFeed("News", 3, 10))
	s := New(5*time.Second, Feed{Name: "News", URL: srv.URL})
	s.PageSize = 1
	stream := "feed/" + srv.URL

	first, err := s.Request(context.Background(), stream, source.Query{})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if _, err := s.Request(context.Background(), stream, source.Query{}); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	_, err = s.Request(context.Background(), stream, source.Query{Continuation: first.Continuation})
	if !errors.Is(err, ErrExpiredCursor) {
		t.Errorf("expected ErrExpiredCursor, got %v", err)
	}
	_, err = s.Request(context.Background(), stream, source.Query{Continuation: "garbage"})
	if !errors.Is(err, ErrExpiredCursor) {
		t.Errorf("expected ErrExpiredCursor for garbage, got %v", err)
	}
}

func TestFilteredChainsAreIndependent(t *testing.T) {
	srv, _ := serve(t, rssFeed("News", 3, 10))
	s := New(5*time.Second, Feed{Name: "News", URL: srv.URL})
	s.PageSize = 1
	stream := "feed/" + srv.URL
	ctx := context.Background()

	all, err := s.Request(ctx, stream, source.Query{})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	unread, err := s.Request(ctx, stream, source.Query{Exclude: source.ExcludeRead})
	if err != nil {
		t.Fatalf("unread Request failed: %v", err)
	}

	if _, err := s.Request(ctx, stream, source.Query{Continuation: all.Continuation}); err != nil {
		t.Errorf("unfiltered cursor should outlive an unread restart: %v", err)
	}
	q := source.Query{Exclude: source.ExcludeRead, Continuation: unread.Continuation}
	if _, err := s.Request(ctx, stream, q); err != nil {
		t.Errorf("unread cursor should still be valid: %v", err)
	}
}

func TestReadingListMergesFeedsNewestFirst(t *testing.T) {
	early, _ := serve(t, rssFeed("Early", 2, 8))
	late, _ := serve(t, rssFeed("Late", 2, 20))
	s := New(5*time.Second, Feed{Name: "Early", URL: early.URL}, Feed{Name: "Late", URL: late.URL})

	resp, err := s.Request(context.Background(), source.StreamReadingList, source.Query{})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if len(resp.Items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(resp.Items))
	}
	if resp.Items[0].OriginTitle != "Late" || resp.Items[3].OriginTitle != "Early" {
		t.Errorf("expected newest first, got %s ... %s", resp.Items[0].OriginTitle, resp.Items[3].OriginTitle)
	}
	for i := 1; i < len(resp.Items); i++ {
		if resp.Items[i].PublishedEpochSeconds > resp.Items[i-1].PublishedEpochSeconds {
			t.Errorf("item %d out of order", i)
		}
	}
}

func TestUnknownStream(t *testing.T) {
	_, err := New(time.Second).Request(context.Background(), "category/1", source.Query{})
	if !errors.Is(err, ErrUnknownStream) {
		t.Errorf("expected ErrUnknownStream, got %v", err)
	}
}

func TestGenerateIDDeterministic(t *testing.T) {
	tests := []struct {
		name string
		a, b *gofeed.Item
		same bool
	}{
		{"same guid", &gofeed.Item{GUID: "g1", Link: "x"}, &gofeed.Item{GUID: "g1", Link: "y"}, true},
		{"guid differs", &gofeed.Item{GUID: "g1"}, &gofeed.Item{GUID: "g2"}, false},
		{"link fallback", &gofeed.Item{Link: "http://a"}, &gofeed.Item{Link: "http://a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := generateID(tt.a), generateID(tt.b)
			if (a == b) != tt.same {
				t.Errorf("generateID equal=%v, want %v", a == b, tt.same)
			}
			if len(a) != 16 {
				t.Errorf("expected 16 hex chars, got %d", len(a))
			}
		})
	}
}

func TestConvertUntitledAndImage(t *testing.T) {
	it := &gofeed.Item{
		Description: "<p>Only a body here</p>",
		Link:        "http://example.com/x",
		Image:       &gofeed.Image{URL: "http://img.example/x.png"},
	}
	raw := convertFeedItem(it, Feed{Name: "F", URL: "http://f"}, time.Unix(100, 0))

	if raw.Title != "Only a body here" {
		t.Errorf("untitled item should borrow its summary, got %q", raw.Title)
	}
	if model.ThumbnailSrc(raw.SummaryHTML) != "http://img.example/x.png" {
		t.Errorf("feed image should become the thumbnail, html %q", raw.SummaryHTML)
	}
	if raw.PublishedEpochSeconds != 100 {
		t.Errorf("missing date should fall back to fetch time, got %d", raw.PublishedEpochSeconds)
	}
}
