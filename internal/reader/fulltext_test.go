package reader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/fread/internal/cache"
	"github.com/abelbrown/fread/internal/model"
	"github.com/abelbrown/fread/internal/source"
)

var articleText = strings.Repeat("The quick brown fox jumps over the lazy dog, again and again. ", 20)

func articleServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/post" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Post</title><script>var x = 1;</script></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Post</h1>
<p>%s</p>
<p>%s</p>
</article>
<footer>Copyright</footer>
</body></html>`, articleText, articleText)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFullTextFetch(t *testing.T) {
	srv := articleServer(t)
	ft := NewFullText(5 * time.Second)

	got, err := ft.Fetch(context.Background(), srv.URL+"/post")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.Contains(got, "quick brown fox") {
		t.Errorf("expected article text, got %q", got)
	}
	if strings.Contains(got, "var x") {
		t.Error("scripts should be stripped")
	}
}

func TestFullTextFetchHTTPError(t *testing.T) {
	srv := articleServer(t)
	ft := NewFullText(5 * time.Second)

	if _, err := ft.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
}

func linkedSession(t *testing.T, link string, opts ...Option) *Session {
	t.Helper()
	it := raw("a", "Alpha", "<p>teaser</p>")
	if link != "" {
		it.CanonicalURLs = []string{link}
	}
	src := &staticSource{streams: map[string][]model.RawItem{source.StreamReadingList: {it}}}
	s := NewSession(cache.New(src, nil), keyAll, opts...)
	if _, err := s.FetchNext(context.Background()); err != nil {
		t.Fatalf("FetchNext failed: %v", err)
	}
	return s
}

func TestOpenFull(t *testing.T) {
	srv := articleServer(t)
	s := linkedSession(t, srv.URL+"/post", WithFullText(NewFullText(5*time.Second)))

	art, err := s.OpenFull(context.Background(), "a")
	if err != nil {
		t.Fatalf("OpenFull failed: %v", err)
	}
	if art.Item.ID != "a" {
		t.Errorf("unexpected item %q", art.Item.ID)
	}
	if !strings.Contains(art.Body, "quick brown fox") || strings.Contains(art.Body, "teaser") {
		t.Errorf("body should be the linked page, got %q", art.Body)
	}
	if art.Item.IsRead {
		t.Error("OpenFull should not change flags")
	}
}

func TestOpenFullErrors(t *testing.T) {
	ft := WithFullText(NewFullText(time.Second))

	tests := []struct {
		name string
		s    *Session
		id   string
		want error
	}{
		{"unknown item", linkedSession(t, "http://example.invalid/", ft), "zz", ErrUnknownItem},
		{"disabled", linkedSession(t, "http://example.invalid/"), "a", errors.ErrUnsupported},
		{"no url", linkedSession(t, "", ft), "a", ErrNoURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.s.OpenFull(context.Background(), tt.id); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
