package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/fread/internal/otel"
)

func TestDebugOverlayNilRing(t *testing.T) {
	if got := debugOverlay(nil, "", 80, 24); got != "" {
		t.Errorf("debugOverlay(nil) should return empty string, got %q", got)
	}
}

func TestDebugOverlayRendersStats(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	now := time.Now()
	ring.Push(otel.Event{Kind: otel.KindFetchComplete, Time: now})
	ring.Push(otel.Event{Kind: otel.KindFetchComplete, Time: now})
	ring.Push(otel.Event{Kind: otel.KindFetchError, Time: now})
	ring.Push(otel.Event{Kind: otel.KindCacheMutate, Time: now})
	ring.Push(otel.Event{Kind: otel.KindGestureCommit, Time: now})

	result := debugOverlay(ring, "", 80, 40)

	if !strings.Contains(result, "Cache") {
		t.Error("overlay should contain 'Cache' header")
	}
	if !strings.Contains(result, "2 complete, 1 errors") {
		t.Errorf("overlay should show fetch stats, got:\n%s", result)
	}
	if !strings.Contains(result, "1 applied") {
		t.Errorf("overlay should show mutation stats, got:\n%s", result)
	}
	if !strings.Contains(result, "1 commits") {
		t.Errorf("overlay should show gesture stats, got:\n%s", result)
	}
	if !strings.Contains(result, "5 / 64 events") {
		t.Errorf("overlay should show buffer stats, got:\n%s", result)
	}
}

func TestDebugOverlayRecentEvents(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindFetchStart, Time: time.Now(), Msg: "hello world"})
	ring.Push(otel.Event{Kind: otel.KindFetchError, Time: time.Now(), Err: "timeout"})
	ring.Push(otel.Event{Kind: otel.KindGestureCommit, Time: time.Now(), ItemID: "abcdef1234567890"})

	result := debugOverlay(ring, "", 80, 40)

	if !strings.Contains(result, "Recent Events") {
		t.Error("overlay should contain 'Recent Events' header")
	}
	if !strings.Contains(result, "hello world") {
		t.Errorf("overlay should show event message, got:\n%s", result)
	}
	if !strings.Contains(result, "ERR:timeout") {
		t.Errorf("overlay should show error, got:\n%s", result)
	}
	if !strings.Contains(result, "#abcdef12345…") {
		t.Errorf("overlay should show truncated item id, got:\n%s", result)
	}
}

func TestDebugOverlayFilter(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindFetchStart, Time: time.Now(), Msg: "fetching"})
	ring.Push(otel.Event{Kind: otel.KindGestureCommit, Time: time.Now(), Msg: "swiped"})

	result := debugOverlay(ring, "gesture.", 80, 40)
	if !strings.Contains(result, "swiped") {
		t.Errorf("filtered overlay should show gesture events, got:\n%s", result)
	}
	if strings.Contains(result, "fetching") {
		t.Errorf("filtered overlay should hide fetch events, got:\n%s", result)
	}
}

func TestDebugOverlayTruncation(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	for i := 0; i < 30; i++ {
		ring.Push(otel.Event{Kind: otel.KindFetchStart, Time: time.Now()})
	}

	result := debugOverlay(ring, "", 80, 10)
	if result == "" {
		t.Fatal("overlay should still render with small height")
	}
	// 6 content lines plus border and padding.
	if lines := strings.Count(result, "\n") + 1; lines > 10 {
		t.Errorf("overlay should be truncated to the height, got %d lines", lines)
	}
}

func TestDebugStatusBar(t *testing.T) {
	if got := debugStatusBar("", 80); !strings.Contains(got, "[DEBUG all]") {
		t.Errorf("empty filter should read 'all', got %q", got)
	}
	if got := debugStatusBar("fetch.", 80); !strings.Contains(got, "[DEBUG fetch.]") {
		t.Errorf("filter should be shown, got %q", got)
	}
}

func TestDebugViewRenders(t *testing.T) {
	ring := otel.NewRingBuffer(16)
	ring.Push(otel.Event{Kind: otel.KindStartup, Time: time.Now()})
	app, _ := send(NewApp(AppConfig{Events: ring}),
		tea.WindowSizeMsg{Width: 80, Height: 24}, key('D'), tea.KeyMsg{Type: tea.KeyTab})

	view := app.View()
	if !strings.Contains(view, "Recent Events") {
		t.Errorf("debug view should show the overlay, got:\n%s", view)
	}
	if !strings.Contains(view, "[DEBUG fetch.]") {
		t.Errorf("debug view should show the active filter, got:\n%s", view)
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		dur  time.Duration
		want string
	}{
		{0, "0ms"},
		{50 * time.Millisecond, "50ms"},
		{999 * time.Millisecond, "999ms"},
		{1500 * time.Millisecond, "1.5s"},
		{30 * time.Second, "30.0s"},
		{90 * time.Second, "2m"},
		{5 * time.Minute, "5m"},
		{-5 * time.Second, "0ms"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.dur); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.dur, got, tt.want)
		}
	}
}
