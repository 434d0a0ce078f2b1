package ui

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/fread/internal/gesture"
	"github.com/abelbrown/fread/internal/model"
)

// cellPx is the width of one terminal cell in gesture pixels. Thresholds
// are in pixels, so a commit takes a drag of a couple of cells and the
// offset latches after 20.
const cellPx = 8.0

const (
	sourceColWidth = 14
	ageColWidth    = 8
)

// shiftCells is the horizontal shift of a row, derived from the gesture
// state alone.
func shiftCells(st gesture.State) int {
	if st.Phase == gesture.Idle {
		return 0
	}
	return int(math.Round(st.Offset / cellPx))
}

// RenderStream renders the visible window of items. state supplies the
// gesture state per id and may be nil.
func RenderStream(items []*model.FeedItem, cursor, width, height int, now time.Time, state func(id string) gesture.State) string {
	if len(items) == 0 {
		return HelpStyle.Render("No items to display. Press 'r' to retry, 'u' to toggle unread.")
	}
	if height < 1 {
		height = 1
	}

	offset := calcScrollOffset(len(items), cursor, height)
	var b strings.Builder
	for i := offset; i < len(items) && i < offset+height; i++ {
		var st gesture.State
		if state != nil {
			st = state(items[i].ID)
		}
		b.WriteString(renderRow(items[i], i == cursor, width, now, st))
		b.WriteString("\n")
	}
	return b.String()
}

// calcScrollOffset returns the first visible index that keeps cursor on
// screen.
func calcScrollOffset(total, cursor, height int) int {
	if total == 0 || cursor < 0 || height < 1 {
		return 0
	}
	if cursor >= total {
		cursor = total - 1
	}
	if cursor >= height {
		return cursor - height + 1
	}
	return 0
}

// rowAt maps a screen row inside the list to an item index, or -1.
func rowAt(total, cursor, height, row int) int {
	if row < 0 || row >= height {
		return -1
	}
	i := calcScrollOffset(total, cursor, height) + row
	if i >= total {
		return -1
	}
	return i
}

// rowText lays out the plain text of one row, exactly width cells wide.
func rowText(item *model.FeedItem, width int, now time.Time) string {
	star := " "
	if item.IsStar {
		star = "★"
	}
	src := padRunes(cutRunes(item.SourceName, sourceColWidth), sourceColWidth)
	age := formatAgeShort(now.Sub(item.Published))
	age = strings.Repeat(" ", max(0, ageColWidth-utf8.RuneCountInString(age))) + age

	titleWidth := width - 2 - sourceColWidth - 1 - ageColWidth
	if titleWidth < 10 {
		titleWidth = 10
	}
	title := padRunes(model.Truncate(item.Title, titleWidth), titleWidth)

	return cutRunes(star+" "+src+" "+title+age, width)
}

// renderRow renders one item. The row content slides by the gesture shift
// and the vacated cells show the action being revealed: read on the right
// when dragged left, star on the left when dragged right.
func renderRow(item *model.FeedItem, selected bool, width int, now time.Time, st gesture.State) string {
	var style lipgloss.Style
	switch {
	case selected:
		style = SelectedItem
		if item.IsRead {
			style = style.Foreground(lipgloss.Color("250")).Bold(false)
		}
	case item.IsRead:
		style = ReadItem
	default:
		style = NormalItem
	}

	text := rowText(item, width, now)
	shift := shiftCells(st)
	if shift > width {
		shift = width
	}
	if shift < -width {
		shift = -width
	}

	switch {
	case shift > 0:
		label := " ★ star"
		if item.IsStar {
			label = " ☆ unstar"
		}
		under := StarUnderlay.Render(padRunes(cutRunes(label, shift), shift))
		return under + style.Render(cutRunes(text, width-shift))
	case shift < 0:
		n := -shift
		label := "read ✓ "
		if item.IsRead {
			label = "unread ○ "
		}
		under := ReadUnderlay.Render(padLeftRunes(cutRunes(label, n), n))
		return style.Render(dropRunes(text, n)) + under
	}
	return style.Render(text)
}

func cutRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func dropRunes(s string, n int) string {
	r := []rune(s)
	if n >= len(r) {
		return ""
	}
	return string(r[n:])
}

func padRunes(s string, n int) string {
	if pad := n - utf8.RuneCountInString(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}

func padLeftRunes(s string, n int) string {
	if pad := n - utf8.RuneCountInString(s); pad > 0 {
		return strings.Repeat(" ", pad) + s
	}
	return s
}

func formatAgeShort(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// statusInfo is what the status bar shows on its left side.
type statusInfo struct {
	cursor, total int
	loading       bool
	exhausted     bool
	unreadOnly    bool
	spinner       string
	note          string
}

// RenderStatusBar renders the bottom status bar with key hints and item count.
func RenderStatusBar(s statusInfo, width int) string {
	var left string
	switch {
	case s.note != "":
		left = " " + s.note + " "
	case s.loading:
		left = fmt.Sprintf(" %s Loading... ", s.spinner)
	case s.total == 0:
		left = " 0/0 "
	default:
		left = fmt.Sprintf(" %d/%d ", s.cursor+1, s.total)
	}
	if s.exhausted && s.total > 0 {
		left += StatusBarText.Render("end ")
	}
	if s.unreadOnly {
		left += StatusBarText.Render("unread ")
	}

	keys := []string{
		StatusBarKey.Render("j/k") + StatusBarText.Render(":nav"),
		StatusBarKey.Render("Enter") + StatusBarText.Render(":open"),
		StatusBarKey.Render("m") + StatusBarText.Render(":read"),
		StatusBarKey.Render("s") + StatusBarText.Render(":star"),
		StatusBarKey.Render("u") + StatusBarText.Render(":unread"),
		StatusBarKey.Render("n") + StatusBarText.Render(":more"),
		StatusBarKey.Render("D") + StatusBarText.Render(":debug"),
		StatusBarKey.Render("q") + StatusBarText.Render(":quit"),
	}
	// Drop hints from the right until the bar fits on one line.
	keyHints := strings.Join(keys, " ")
	for len(keys) > 0 && lipgloss.Width(left)+lipgloss.Width(keyHints)+2 > width {
		keys = keys[:len(keys)-1]
		keyHints = strings.Join(keys, " ")
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(keyHints) - 2
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + keyHints)
}
