package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abelbrown/fread/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugFilters cycle with tab in the overlay; an empty prefix shows every
// event.
var debugFilters = []string{"", "fetch.", "cache.", "gesture."}

// debugOverlay renders the debug panel showing cache stats and the recent
// events whose kind starts with filter. Returns empty string if ring is nil.
func debugOverlay(ring *otel.RingBuffer, filter string, width, height int) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()
	recent := ring.Recent(filter, 20)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Cache"))
	lines = append(lines, fmt.Sprintf("  Fetches:    %d complete, %d errors, %d rejected, %d stale",
		stats[otel.KindFetchComplete], stats[otel.KindFetchError],
		stats[otel.KindFetchRejected], stats[otel.KindFetchStale]))
	lines = append(lines, fmt.Sprintf("  Mutations:  %d applied, %d CAS retries, %d evictions",
		stats[otel.KindCacheMutate], stats[otel.KindCacheRetry], stats[otel.KindCacheEvict]))
	lines = append(lines, fmt.Sprintf("  Gestures:   %d commits, %d faults",
		stats[otel.KindGestureCommit], stats[otel.KindGestureFault]))
	held := ring.Len()
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events, %d overwritten",
		held, ring.Cap(), ring.Pushed()-uint64(held)))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		lines = append(lines, formatEvent(e))
	}

	// Truncate to fit terminal height (subtract chrome added by DebugPanel border/padding)
	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 76
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}

	content := strings.Join(lines, "\n")
	return DebugPanel.Width(panelWidth).Render(content)
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// formatEvent renders one event as an overlay line.
func formatEvent(e otel.Event) string {
	line := fmt.Sprintf("  %6s  %-18s", formatAge(time.Since(e.Time)), string(e.Kind))
	if e.Stream != "" {
		line += "  " + truncateRunes(e.Stream, 24)
	}
	if e.ItemID != "" {
		line += "  #" + truncateRunes(e.ItemID, 12)
	}
	if e.Count > 0 {
		line += fmt.Sprintf("  n=%d", e.Count)
	}
	if e.Msg != "" {
		line += "  " + truncateRunes(e.Msg, 40)
	}
	if e.Err != "" {
		line += "  ERR:" + truncateRunes(e.Err, 30)
	}
	return line
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(filter string, width int) string {
	if filter == "" {
		filter = "all"
	}
	keys := StatusBarKey.Render("tab") + StatusBarText.Render(":filter ") +
		StatusBarKey.Render("D") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG " + filter + "]  " + keys)
}
