package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/microcosm-cc/bluemonday"
)

// maxPageBytes caps how much of a linked page is read.
const maxPageBytes = 5 << 20

// ErrNoURL is returned when full text is requested for an item without a
// link.
var ErrNoURL = errors.New("reader: item has no url")

// ErrNoContent is returned when a page yields no readable content.
var ErrNoContent = errors.New("reader: no readable content")

// FullText downloads the page an item links to and extracts its main
// content. Goroutine-safe.
type FullText struct {
	client    *http.Client
	sanitizer *bluemonday.Policy
}

// NewFullText creates a FullText with the given HTTP timeout.
func NewFullText(timeout time.Duration) *FullText {
	return &FullText{
		client:    &http.Client{Timeout: timeout},
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// Fetch returns the readable HTML of the page at pageURL.
func (f *FullText) Fetch(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "fread/0.1 (https://github.com/abelbrown/fread)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}

	// Sanitizing first strips scripts that confuse the parser.
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(f.sanitizer.SanitizeBytes(body)), u)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	var buf bytes.Buffer
	if err := article.RenderHTML(&buf); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	if buf.Len() == 0 {
		return "", ErrNoContent
	}
	return buf.String(), nil
}
