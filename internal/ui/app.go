package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/fread/internal/cache"
	"github.com/abelbrown/fread/internal/gesture"
	"github.com/abelbrown/fread/internal/model"
	"github.com/abelbrown/fread/internal/otel"
	"github.com/abelbrown/fread/internal/reader"
	"github.com/abelbrown/fread/internal/source"
)

const (
	// cellPxY is the height of one terminal cell in gesture pixels.
	cellPxY = 2 * cellPx

	frameInterval = time.Second / 60

	defaultPrefetchMargin = 5
)

// AppConfig wires the App to the session. Every func returns a Cmd whose
// message reports the outcome; nil funcs disable the action.
type AppConfig struct {
	FetchNext    func() tea.Cmd
	ReadToggle   func(id string) tea.Cmd
	StarToggle   func(id string) tea.Cmd
	Open         func(id string) tea.Cmd
	ToggleUnread func() tea.Cmd

	// OpenFull replaces the open article with the page it links to.
	OpenFull func(id string) tea.Cmd

	// Resize is told the terminal width so articles wrap to it.
	Resize func(width int)

	// Key is the stream shown at startup.
	Key cache.Key

	// PrefetchMargin loads the next page when the cursor is this close to
	// the end of the list.
	PrefetchMargin int

	Events *otel.RingBuffer
	Log    *otel.Logger

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// intent is a committed swipe waiting to become a Cmd.
type intent struct {
	id   string
	star bool
}

// commitQueue collects swipe commits fired by the board during one Update.
type commitQueue struct {
	intents []intent
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the cache or the session. It receives
// snapshots via messages.
type App struct {
	cfg AppConfig

	key    cache.Key
	snap   *cache.Snapshot
	items  []*model.FeedItem
	cursor int
	err    error
	width  int
	height int
	ready  bool

	loading bool
	spinner spinner.Model

	board   *gesture.Board
	commits *commitQueue
	dragID  string
	ticking bool

	article *reader.Article
	pane    viewport.Model

	showDebug   bool
	debugFilter int
}

// NewApp creates a new App with the given command functions.
func NewApp(cfg AppConfig) App {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PrefetchMargin <= 0 {
		cfg.PrefetchMargin = defaultPrefetchMargin
	}

	s := spinner.New()
	s.Spinner = spinner.Dot

	q := &commitQueue{}
	log := cfg.Log
	board := gesture.NewBoard(80*cellPx,
		func(id string) { q.intents = append(q.intents, intent{id: id}) },
		func(id string) { q.intents = append(q.intents, intent{id: id, star: true}) },
		gesture.WithBoardClock(cfg.Now),
		gesture.WithItemFault(func(id string, v any) {
			log.For("gesture").Item(id).Error(otel.KindGestureFault, fmt.Errorf("panic: %v", v))
		}),
	)

	return App{
		cfg:     cfg,
		key:     cfg.Key,
		loading: cfg.FetchNext != nil,
		spinner: s,
		board:   board,
		commits: q,
		pane:    viewport.New(80, 20),
	}
}

// Init starts loading the first page.
func (a App) Init() tea.Cmd {
	if a.cfg.FetchNext == nil {
		return nil
	}
	return tea.Batch(a.cfg.FetchNext(), a.spinner.Tick)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.MouseMsg:
		return a.handleMouse(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.board.SetViewport(float64(a.width) * cellPx)
		a.pane.Width = a.width
		a.pane.Height = a.paneHeight()
		if a.cfg.Resize != nil {
			a.cfg.Resize(a.width)
		}
		return a, nil

	case frameMsg:
		return a.handleFrame(time.Time(msg))

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case PageLoaded:
		if msg.Key != a.key {
			return a, nil
		}
		switch {
		case errors.Is(msg.Err, cache.ErrFetchInFlight):
			// The outstanding fetch will report.
			return a, nil
		case errors.Is(msg.Err, cache.ErrStale):
			a.loading = false
			return a, nil
		case errors.Is(msg.Err, cache.ErrExhausted):
			a.loading = false
		case msg.Err != nil:
			a.loading = false
			a.err = msg.Err
		default:
			a.loading = false
			a.err = nil
		}
		if msg.Snapshot != nil {
			a.setSnapshot(msg.Snapshot)
		}
		return a, a.maybePrefetch()

	case IntentDone:
		if msg.Key == a.key && msg.Snapshot != nil {
			a.setSnapshot(msg.Snapshot)
			if a.article != nil {
				if it, ok := a.snap.Lookup(a.article.Item.ID); ok {
					art := *a.article
					art.Item = it
					a.article = &art
				}
			}
		}
		if msg.Err != nil {
			a.err = msg.Err
		}
		return a, nil

	case ArticleOpened:
		if msg.Key != a.key {
			return a, nil
		}
		var wb *reader.WriteBackError
		if msg.Err != nil {
			a.err = msg.Err
			if !errors.As(msg.Err, &wb) {
				return a, nil
			}
		}
		if msg.Snapshot != nil {
			a.setSnapshot(msg.Snapshot)
		}
		art := msg.Article
		a.article = &art
		a.pane.Width = a.width
		a.pane.Height = a.paneHeight()
		a.pane.SetContent(art.Body)
		a.pane.GotoTop()
		return a, nil

	case KeyChanged:
		a.key = msg.Key
		a.cursor = 0
		a.err = nil
		a.article = nil
		a.loading = false
		if msg.Snapshot != nil {
			a.setSnapshot(msg.Snapshot)
		}
		return a, a.fetch()
	}

	return a, nil
}

// setSnapshot replaces the displayed items and forgets gestures of items
// that left the list.
func (a *App) setSnapshot(s *cache.Snapshot) {
	a.snap = s
	a.items = s.Items()
	if a.cursor >= len(a.items) {
		a.cursor = max(0, len(a.items)-1)
	}
	a.board.Sync(s.IDs())
}

// fetch requests the next page unless one is already loading.
func (a *App) fetch() tea.Cmd {
	if a.cfg.FetchNext == nil || a.loading {
		return nil
	}
	if a.snap != nil && a.snap.Exhausted() {
		return nil
	}
	a.loading = true
	return tea.Batch(a.cfg.FetchNext(), a.spinner.Tick)
}

// maybePrefetch loads more when the cursor nears the end of the list.
func (a *App) maybePrefetch() tea.Cmd {
	if a.err != nil || a.snap == nil {
		return nil
	}
	if len(a.items)-1-a.cursor >= a.cfg.PrefetchMargin {
		return nil
	}
	return a.fetch()
}

func (a App) selected() (*model.FeedItem, bool) {
	if a.cursor < 0 || a.cursor >= len(a.items) {
		return nil, false
	}
	return a.items[a.cursor], true
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.cfg.Log.For("ui").Msg(msg.String()).Debug(otel.KindKeyPress)

	if a.article != nil {
		return a.handleArticleKey(msg)
	}
	if a.showDebug {
		switch msg.String() {
		case "D", "esc":
			a.showDebug = false
		case "tab":
			a.debugFilter = (a.debugFilter + 1) % len(debugFilters)
		case "q", "ctrl+c":
			return a, tea.Quit
		}
		return a, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "esc":
		a.err = nil
		return a, nil

	case "j", "down":
		if a.cursor < len(a.items)-1 {
			a.cursor++
		}
		return a, a.maybePrefetch()

	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case "g", "home":
		a.cursor = 0
		return a, nil

	case "G", "end":
		if len(a.items) > 0 {
			a.cursor = len(a.items) - 1
		}
		return a, a.maybePrefetch()

	case "enter":
		if it, ok := a.selected(); ok && a.cfg.Open != nil {
			return a, a.cfg.Open(it.ID)
		}
		return a, nil

	case "m":
		if it, ok := a.selected(); ok && a.cfg.ReadToggle != nil {
			return a, a.cfg.ReadToggle(it.ID)
		}
		return a, nil

	case "s":
		if it, ok := a.selected(); ok && a.cfg.StarToggle != nil {
			return a, a.cfg.StarToggle(it.ID)
		}
		return a, nil

	case "u":
		if a.cfg.ToggleUnread != nil {
			return a, a.cfg.ToggleUnread()
		}
		return a, nil

	case "n":
		return a, a.fetch()

	case "r":
		a.err = nil
		return a, a.fetch()

	case "D":
		a.showDebug = true
		return a, nil
	}

	return a, nil
}

func (a App) handleArticleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "backspace", "left", "h":
		a.article = nil
		return a, nil
	case "ctrl+c":
		return a, tea.Quit
	case "s":
		if a.cfg.StarToggle != nil {
			return a, a.cfg.StarToggle(a.article.Item.ID)
		}
		return a, nil
	case "f":
		if a.cfg.OpenFull != nil {
			return a, a.cfg.OpenFull(a.article.Item.ID)
		}
		return a, nil
	}
	var cmd tea.Cmd
	a.pane, cmd = a.pane.Update(msg)
	return a, cmd
}

// handleMouse feeds drags on list rows to the item's recognizer.
func (a App) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if a.article != nil {
		var cmd tea.Cmd
		a.pane, cmd = a.pane.Update(msg)
		return a, cmd
	}
	if a.showDebug {
		return a, nil
	}

	x, y := float64(msg.X)*cellPx, float64(msg.Y)*cellPxY

	switch {
	case msg.Button == tea.MouseButtonWheelDown:
		if a.cursor < len(a.items)-1 {
			a.cursor++
		}
		return a, a.maybePrefetch()

	case msg.Button == tea.MouseButtonWheelUp:
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		// Row 0 is the header.
		i := rowAt(len(a.items), a.cursor, a.listHeight(), msg.Y-1)
		if i < 0 {
			return a, nil
		}
		a.cursor = i
		a.dragID = a.items[i].ID
		a.board.Recognizer(a.dragID).Down(x, y)
		return a, nil

	case msg.Action == tea.MouseActionMotion && a.dragID != "":
		a.board.Recognizer(a.dragID).Move(x, y)
		return a, a.startFrames()

	case msg.Action == tea.MouseActionRelease && a.dragID != "":
		a.board.Recognizer(a.dragID).Up(x, y)
		a.dragID = ""
		cmds := a.drainCommits()
		cmds = append(cmds, a.startFrames())
		return a, tea.Batch(cmds...)
	}
	return a, nil
}

// drainCommits turns swipe commits into intent Cmds.
func (a *App) drainCommits() []tea.Cmd {
	var cmds []tea.Cmd
	for _, in := range a.commits.intents {
		kind := "read"
		fn := a.cfg.ReadToggle
		if in.star {
			kind = "star"
			fn = a.cfg.StarToggle
		}
		a.cfg.Log.For("gesture").Stream(a.key.StreamID, a.key.UnreadOnly).Item(in.id).Msg(kind).Info(otel.KindGestureCommit)
		if fn != nil {
			cmds = append(cmds, fn(in.id))
		}
	}
	a.commits.intents = a.commits.intents[:0]
	return cmds
}

// startFrames begins the frame loop if a gesture needs it.
func (a *App) startFrames() tea.Cmd {
	if a.ticking || !a.board.Animating() {
		return nil
	}
	a.ticking = true
	return frameTick()
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (a App) handleFrame(now time.Time) (tea.Model, tea.Cmd) {
	more := a.board.Frame(now)
	if otel.TraceEnabled() {
		a.cfg.Log.For("gesture").Count(a.board.Len()).Debug(otel.KindGestureFrame)
	}
	if more || a.board.Animating() {
		return a, frameTick()
	}
	a.ticking = false
	return a, nil
}

func (a App) listHeight() int {
	h := a.height - 2 // header + status bar
	if a.err != nil {
		h--
	}
	return max(1, h)
}

func (a App) paneHeight() int {
	return max(1, a.height-3) // title + meta + status bar
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	if a.article != nil {
		return a.articleView()
	}
	if a.showDebug {
		filter := debugFilters[a.debugFilter]
		return debugOverlay(a.cfg.Events, filter, a.width, a.height-1) + "\n" + debugStatusBar(filter, a.width)
	}

	header := Header.Render(streamTitle(a.key))

	body := RenderStream(a.items, a.cursor, a.width, a.listHeight(), a.cfg.Now(), a.board.State)
	body = lipgloss.NewStyle().Height(a.listHeight()).Render(strings.TrimSuffix(body, "\n"))

	errorBar := ""
	if a.err != nil {
		errorBar = ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()+" (r: retry, esc: dismiss)") + "\n"
	}

	status := RenderStatusBar(statusInfo{
		cursor:     a.cursor,
		total:      len(a.items),
		loading:    a.loading,
		exhausted:  a.snap != nil && a.snap.Exhausted(),
		unreadOnly: a.key.UnreadOnly,
		spinner:    a.spinner.View(),
	}, a.width)

	return header + "\n" + body + "\n" + errorBar + status
}

func (a App) articleView() string {
	it := a.article.Item
	title := ArticleTitle.Width(a.width).Render(model.Truncate(it.Title, max(10, a.width-2)))

	meta := []string{it.SourceName, formatAgeShort(a.cfg.Now().Sub(it.Published))}
	if it.IsStar {
		meta = append(meta, StarMarker.Render("★"))
	}
	if it.URL != "" {
		meta = append(meta, it.URL)
	}
	metaLine := ArticleMeta.Render(model.Truncate(strings.Join(meta, " · "), max(10, a.width-2)))

	note := fmt.Sprintf("%3.f%%", a.pane.ScrollPercent()*100)
	if a.err != nil {
		note = "Error: " + a.err.Error()
	}
	status := RenderStatusBar(statusInfo{note: note}, a.width)

	return title + "\n" + metaLine + "\n" + a.pane.View() + "\n" + status
}

func streamTitle(k cache.Key) string {
	switch k.StreamID {
	case source.StreamReadingList, "":
		return "All items"
	case source.StreamStarred:
		return "Starred"
	}
	return k.StreamID
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Items returns the current items (for testing).
func (a App) Items() []*model.FeedItem {
	return a.items
}

// Loading reports whether a fetch is outstanding (for testing).
func (a App) Loading() bool {
	return a.loading
}

// Err returns the error shown in the error bar (for testing).
func (a App) Err() error {
	return a.err
}
