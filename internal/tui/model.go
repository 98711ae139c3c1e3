// Package tui is the interactive session engine: a bubbletea model that
// owns the navigation stack, dispatches backend requests as commands and
// folds their results back in. It never blocks on backend I/O.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/doggy-tui/doggy/internal/core"
	"github.com/doggy-tui/doggy/internal/persist"
	"github.com/doggy-tui/doggy/internal/runtime"
	"github.com/doggy-tui/doggy/internal/stream"
)

// Mode represents the active screen of the application.
type Mode int

const (
	ModeList Mode = iota
	ModeDetail
	ModeStream
	ModeHelp
	ModeConfirmDelete
)

// PromptKind represents the type of text input prompt currently active.
type PromptKind int

const (
	PromptCommand PromptKind = iota // ":" resource switch
	PromptFilter                    // "/" list filter
	PromptExecCmd                   // "S" custom exec command
)

// defaultExecCmd is what the plain "s" binding runs inside a container.
const defaultExecCmd = "/bin/bash"

// oneShotTimeout bounds list/inspect/delete calls so a hung daemon
// surfaces as a banner instead of a frozen UI.
const oneShotTimeout = 10 * time.Second

// bannerTTL is how long a transient status banner stays visible.
const bannerTTL = 5 * time.Second

// navEntry is one frame of the back-navigation stack.
type navEntry struct {
	mode Mode
	kind runtime.Kind
	id   string
}

// slotKey identifies one (view, operation) request slot for stale-result
// discard: only the latest token per slot may apply its result.
type slotKey struct {
	kind runtime.Kind
	op   string
}

// Model represents the main TUI state and manages all UI components.
type Model struct {
	client  runtime.Client
	conn    runtime.Connection
	manager *stream.Manager
	log     zerolog.Logger

	mode  Mode
	kind  runtime.Kind
	views map[runtime.Kind]*core.View
	stack []navEntry

	// Prompt state
	input      textinput.Model
	inPrompt   bool
	promptKind PromptKind
	prevFilter string

	// Detail state
	vp         viewport.Model
	detailID   string
	detailBody string

	// Stream state
	session   *stream.Session
	streamID  string
	streamBuf []byte

	// Confirm-delete state
	confirmID   string
	confirmName string

	// Async request bookkeeping
	nextToken uint64
	tokens    map[slotKey]uint64
	inflight  map[string]bool // resource ids with a mutation in flight

	banner     string
	bannerTime time.Time

	// Theme
	theme    *Theme
	themeIdx int

	width  int
	height int
}

// NewModel wires the session engine to the resolved backend client.
func NewModel(client runtime.Client, conn runtime.Connection, log zerolog.Logger) *Model {
	vp := viewport.New(80, 24)
	vp.SetContent("")

	input := textinput.New()
	input.CharLimit = 256

	views := make(map[runtime.Kind]*core.View, len(runtime.Kinds))
	for _, k := range runtime.Kinds {
		views[k] = core.NewView(k)
	}

	return &Model{
		client:   client,
		conn:     conn,
		manager:  stream.NewManager(client, log),
		log:      log,
		kind:     runtime.KindContainer,
		views:    views,
		input:    input,
		vp:       vp,
		tokens:   make(map[slotKey]uint64),
		inflight: make(map[string]bool),
		theme:    DarkTheme(),
		width:    80,
		height:   24,
	}
}

// Init kicks off the first container listing and the banner ticker.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refreshCmd(m.kind), tickCmd())
}

// view returns the list state for the kind currently on screen.
func (m *Model) view() *core.View {
	return m.views[m.kind]
}

// Messages flowing back from dispatched requests.

type listResultMsg struct {
	kind    runtime.Kind
	token   uint64
	records []runtime.Record
	err     error
}

type inspectResultMsg struct {
	kind  runtime.Kind
	id    string
	token uint64
	body  string
	err   error
}

type deleteResultMsg struct {
	kind runtime.Kind
	id   string
	err  error
}

type streamStartedMsg struct {
	id      string
	token   uint64
	session *stream.Session
	err     error
}

type streamEventMsg struct {
	session *stream.Session
	ev      stream.Event
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// issueToken registers a fresh request token for the slot.
func (m *Model) issueToken(kind runtime.Kind, op string) uint64 {
	m.nextToken++
	m.tokens[slotKey{kind, op}] = m.nextToken
	return m.nextToken
}

func (m *Model) currentToken(kind runtime.Kind, op string) uint64 {
	return m.tokens[slotKey{kind, op}]
}

func (m *Model) refreshCmd(kind runtime.Kind) tea.Cmd {
	token := m.issueToken(kind, "list")
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
		defer cancel()
		records, err := client.List(ctx, kind)
		return listResultMsg{kind: kind, token: token, records: records, err: err}
	}
}

func (m *Model) inspectCmd(kind runtime.Kind, id string) tea.Cmd {
	token := m.issueToken(kind, "inspect")
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
		defer cancel()
		body, err := client.Inspect(ctx, kind, id)
		return inspectResultMsg{kind: kind, id: id, token: token, body: body, err: err}
	}
}

func (m *Model) deleteCmd(kind runtime.Kind, id string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
		defer cancel()
		err := client.Delete(ctx, kind, id)
		return deleteResultMsg{kind: kind, id: id, err: err}
	}
}

func (m *Model) startLogsCmd(id string) tea.Cmd {
	token := m.issueToken(runtime.KindContainer, "stream")
	manager := m.manager
	return func() tea.Msg {
		s, err := manager.StartLogs(context.Background(), id, true)
		return streamStartedMsg{id: id, token: token, session: s, err: err}
	}
}

func (m *Model) startExecCmd(id string, cmd []string) tea.Cmd {
	token := m.issueToken(runtime.KindContainer, "stream")
	manager := m.manager
	return func() tea.Msg {
		s, err := manager.StartExec(context.Background(), id, cmd)
		return streamStartedMsg{id: id, token: token, session: s, err: err}
	}
}

// supersedeStreamStarts invalidates any stream start still in flight.
// Every navigation action calls it so a late-landing session can never
// hijack the view the user moved on to.
func (m *Model) supersedeStreamStarts() {
	m.issueToken(runtime.KindContainer, "stream")
}

// waitForStream delivers the next session event into the update loop.
func waitForStream(s *stream.Session) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-s.Events()
		if !ok {
			return streamEventMsg{session: s, ev: stream.Event{Closed: true}}
		}
		return streamEventMsg{session: s, ev: ev}
	}
}

// Update is the single transition function of the state machine.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.handleResize()
		return m, nil

	case tickMsg:
		if m.banner != "" && time.Since(m.bannerTime) > bannerTTL {
			m.banner = ""
		}
		return m, tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case listResultMsg:
		return m.applyListResult(msg)

	case inspectResultMsg:
		return m.applyInspectResult(msg)

	case deleteResultMsg:
		return m.applyDeleteResult(msg)

	case streamStartedMsg:
		return m.applyStreamStarted(msg)

	case streamEventMsg:
		return m.applyStreamEvent(msg)

	case clipboardResultMsg:
		m.setBanner(msg.message)
		return m, nil
	}
	return m, nil
}

func (m *Model) handleResize() {
	// One line of header, one status line, toolbar at the bottom.
	m.vp.Width = m.width
	m.vp.Height = m.height - 4
	if m.vp.Height < 5 {
		m.vp.Height = 5
	}
	m.input.Width = m.width - 20
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inPrompt {
		return m.handlePromptKey(msg)
	}

	switch m.mode {
	case ModeHelp:
		switch msg.String() {
		case "q", "esc", "?", "enter":
			return m, m.popView()
		case "ctrl+c":
			return m.quit()
		}
		return m, nil

	case ModeConfirmDelete:
		switch msg.String() {
		case "y", "enter":
			return m.confirmDelete()
		case "n", "esc":
			return m, m.popView()
		case "ctrl+c":
			return m.quit()
		}
		return m, nil

	case ModeDetail:
		switch msg.String() {
		case "esc", "q":
			return m, m.popView()
		case "ctrl+c":
			return m.quit()
		case "c":
			return m, copyTextCmd(m.detailID)
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd

	case ModeStream:
		return m.handleStreamKey(msg)
	}

	return m.handleListKey(msg)
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.submitPrompt()
	case "esc":
		if m.promptKind == PromptFilter {
			m.view().SetFilter(m.prevFilter)
		}
		m.closePrompt()
		return m, nil
	case "ctrl+c":
		return m.quit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	// The filter overlay applies live while typing.
	if m.promptKind == PromptFilter {
		m.view().SetFilter(m.input.Value())
	}
	return m, cmd
}

func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.view()

	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit()

	case ":":
		m.startPrompt(PromptCommand, "containers, compose, images, networks, volumes")

	case "/":
		m.prevFilter = v.Filter
		m.startPrompt(PromptFilter, "filter")
		m.input.SetValue(v.Filter)

	case "up", "k":
		v.MoveSelection(-1)
	case "down", "j":
		v.MoveSelection(1)

	case "f1", "f2", "f3", "f4":
		v.ToggleSort(core.Column(msg.String()[1] - '1'))

	case "a":
		if m.kind == runtime.KindContainer {
			v.ToggleStopped()
		}

	case "r":
		return m, m.refreshCmd(m.kind)

	case "t":
		m.themeIdx = (m.themeIdx + 1) % len(themes)
		m.theme = themes[m.themeIdx]

	case "i", "enter":
		if r, ok := v.SelectedRecord(); ok {
			m.pushView()
			m.mode = ModeDetail
			m.detailID = r.ID
			m.detailBody = ""
			m.vp.SetContent("")
			m.vp.GotoTop()
			return m, m.inspectCmd(m.kind, r.ID)
		}

	case "l":
		if m.kind != runtime.KindContainer {
			break
		}
		if r, ok := v.SelectedRecord(); ok && !m.inflight[r.ID] {
			m.inflight[r.ID] = true
			return m, m.startLogsCmd(r.ID)
		}

	case "s":
		if m.kind != runtime.KindContainer {
			break
		}
		if r, ok := v.SelectedRecord(); ok && !m.inflight[r.ID] {
			m.inflight[r.ID] = true
			return m, m.startExecCmd(r.ID, []string{defaultExecCmd})
		}

	case "S":
		if m.kind != runtime.KindContainer {
			break
		}
		if _, ok := v.SelectedRecord(); ok {
			m.startPrompt(PromptExecCmd, defaultExecCmd)
		}

	case "ctrl+d":
		if m.kind == runtime.KindCompose {
			// Projects are groupings; their containers are deleted
			// individually from the container list.
			break
		}
		if r, ok := v.SelectedRecord(); ok && !m.inflight[r.ID] {
			m.pushView()
			m.mode = ModeConfirmDelete
			m.confirmID = r.ID
			m.confirmName = r.Name
		}

	case "c":
		if r, ok := v.SelectedRecord(); ok {
			return m, copyTextCmd(r.ID)
		}

	case "?":
		m.pushView()
		m.mode = ModeHelp

	case "esc":
		if v.Filter != "" {
			v.SetFilter("")
			break
		}
		return m, m.popView()
	}

	return m, nil
}

// handleStreamKey forwards keystrokes to an exec session and handles
// local navigation for log sessions.
func (m *Model) handleStreamKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		// Cooperative shutdown; the terminal event pops the view.
		if m.session != nil {
			m.session.Cancel()
		}
		return m, nil
	}
	if msg.Type == tea.KeyCtrlC && (m.session == nil || m.session.Kind != stream.KindExec) {
		return m.quit()
	}

	if m.session != nil && m.session.Kind == stream.KindExec {
		if data := keyBytes(msg); len(data) > 0 {
			if err := m.session.Write(data); err != nil {
				m.setBanner("exec input failed: " + err.Error())
			}
		}
		return m, nil
	}

	// Log sessions scroll instead of forwarding input.
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// keyBytes translates a key press into the bytes an interactive shell
// on the far end expects.
func keyBytes(msg tea.KeyMsg) []byte {
	switch msg.Type {
	case tea.KeyRunes:
		return []byte(string(msg.Runes))
	case tea.KeySpace:
		return []byte(" ")
	case tea.KeyEnter:
		return []byte("\r")
	case tea.KeyBackspace:
		return []byte{0x7f}
	case tea.KeyTab:
		return []byte("\t")
	case tea.KeyCtrlC:
		return []byte{0x03}
	case tea.KeyCtrlD:
		return []byte{0x04}
	case tea.KeyUp:
		return []byte("\x1b[A")
	case tea.KeyDown:
		return []byte("\x1b[B")
	case tea.KeyRight:
		return []byte("\x1b[C")
	case tea.KeyLeft:
		return []byte("\x1b[D")
	}
	return nil
}

func (m *Model) submitPrompt() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	kind := m.promptKind
	m.closePrompt()

	switch kind {
	case PromptCommand:
		if text == "" {
			return m, nil
		}
		target, err := runtime.ParseKind(text)
		if err != nil {
			m.setBanner(err.Error())
			return m, nil
		}
		return m, m.switchKind(target)

	case PromptFilter:
		m.view().SetFilter(text)

	case PromptExecCmd:
		if text == "" {
			text = defaultExecCmd
		}
		if r, ok := m.view().SelectedRecord(); ok && !m.inflight[r.ID] {
			m.inflight[r.ID] = true
			return m, m.startExecCmd(r.ID, strings.Fields(text))
		}
	}
	return m, nil
}

// switchKind navigates to another resource list and refreshes it.
func (m *Model) switchKind(kind runtime.Kind) tea.Cmd {
	if kind == m.kind && m.mode == ModeList {
		return m.refreshCmd(kind)
	}
	m.pushView()
	m.mode = ModeList
	m.kind = kind
	return m.refreshCmd(kind)
}

func (m *Model) startPrompt(kind PromptKind, placeholder string) {
	m.inPrompt = true
	m.promptKind = kind
	m.input.Placeholder = placeholder
	m.input.SetValue("")
	m.input.Focus()
}

func (m *Model) closePrompt() {
	m.inPrompt = false
	m.input.Blur()
	m.input.SetValue("")
}

// pushView records the current location on the navigation stack.
func (m *Model) pushView() {
	entry := navEntry{mode: m.mode, kind: m.kind}
	switch m.mode {
	case ModeDetail:
		entry.id = m.detailID
	case ModeStream:
		entry.id = m.streamID
	}
	m.stack = append(m.stack, entry)
	m.supersedeStreamStarts()
}

// popNav restores the previous location without dispatching anything,
// reporting whether a list view was re-entered.
func (m *Model) popNav() bool {
	m.supersedeStreamStarts()
	if len(m.stack) == 0 {
		m.mode = ModeList
		return false
	}
	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	m.mode = top.mode
	m.kind = top.kind
	return top.mode == ModeList
}

// popView returns one level; re-entering a list view refreshes it.
func (m *Model) popView() tea.Cmd {
	if m.popNav() {
		return m.refreshCmd(m.kind)
	}
	return nil
}

func (m *Model) confirmDelete() (tea.Model, tea.Cmd) {
	id := m.confirmID
	kind := m.kind
	// Restore the list without issuing a refresh token: the delete
	// result refreshes on success, and a failed delete must not have
	// invalidated a refresh already in flight.
	m.popNav()
	if id == "" || m.inflight[id] {
		return m, nil
	}
	m.inflight[id] = true
	return m, m.deleteCmd(kind, id)
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.manager.Stop()
	return m, tea.Quit
}

func (m *Model) applyListResult(msg listResultMsg) (tea.Model, tea.Cmd) {
	// A result from a superseded request must never overwrite newer state.
	if msg.token != m.currentToken(msg.kind, "list") {
		return m, nil
	}
	if msg.err != nil {
		// Keep the last-known list visible; just raise a banner.
		m.setBanner(userMessage(msg.err))
		m.log.Warn().Stringer("kind", msg.kind).Err(msg.err).Msg("list refresh failed")
		return m, nil
	}
	m.views[msg.kind].SetRecords(msg.records)
	return m, nil
}

func (m *Model) applyInspectResult(msg inspectResultMsg) (tea.Model, tea.Cmd) {
	if msg.token != m.currentToken(msg.kind, "inspect") {
		return m, nil
	}
	if m.mode != ModeDetail || m.detailID != msg.id {
		return m, nil
	}
	if msg.err != nil {
		m.setBanner(userMessage(msg.err))
		return m, m.popView()
	}
	m.detailBody = msg.body
	m.vp.SetContent(msg.body)
	m.vp.GotoTop()
	return m, nil
}

func (m *Model) applyDeleteResult(msg deleteResultMsg) (tea.Model, tea.Cmd) {
	delete(m.inflight, msg.id)
	if msg.err != nil {
		m.setBanner("delete failed: " + userMessage(msg.err))
		m.log.Warn().Str("id", msg.id).Err(msg.err).Msg("delete failed")
		return m, nil
	}
	m.setBanner("deleted " + msg.id)
	// A successful mutation refreshes the listing immediately.
	return m, m.refreshCmd(msg.kind)
}

func (m *Model) applyStreamStarted(msg streamStartedMsg) (tea.Model, tea.Cmd) {
	delete(m.inflight, msg.id)
	if msg.token != m.currentToken(runtime.KindContainer, "stream") {
		// The user navigated on; shut the late session down quietly.
		if msg.session != nil {
			msg.session.Cancel()
		}
		return m, nil
	}
	if msg.err != nil {
		m.setBanner(userMessage(msg.err))
		m.log.Warn().Str("id", msg.id).Err(msg.err).Msg("stream start failed")
		return m, nil
	}
	m.pushView()
	m.mode = ModeStream
	m.session = msg.session
	m.streamID = msg.id
	m.streamBuf = m.streamBuf[:0]
	m.vp.SetContent("")
	m.vp.GotoTop()
	return m, waitForStream(msg.session)
}

func (m *Model) applyStreamEvent(msg streamEventMsg) (tea.Model, tea.Cmd) {
	// Events from a superseded session are dropped.
	if msg.session != m.session {
		return m, nil
	}
	if msg.ev.Closed {
		m.session = nil
		m.streamID = ""
		if msg.ev.Err != nil {
			m.setBanner("stream lost: " + userMessage(msg.ev.Err))
		} else {
			m.setBanner("stream closed")
		}
		return m, m.popView()
	}

	m.streamBuf = append(m.streamBuf, msg.ev.Data...)
	m.vp.SetContent(sanitizeStream(string(m.streamBuf)))
	m.vp.GotoBottom()
	return m, waitForStream(msg.session)
}

// ApplySettings restores persisted preferences.
func (m *Model) ApplySettings(s persist.Settings) {
	if s.Theme != "" {
		m.SetTheme(s.Theme)
	}
	if s.ShowStopped {
		m.views[runtime.KindContainer].ShowStopped = true
	}
}

// Settings captures the preferences worth keeping for the next run.
func (m *Model) Settings() persist.Settings {
	return persist.Settings{
		Theme:       m.theme.Name,
		ShowStopped: m.views[runtime.KindContainer].ShowStopped,
	}
}

func (m *Model) setBanner(text string) {
	m.banner = text
	m.bannerTime = time.Now()
}

// userMessage flattens taxonomy errors into a short banner line.
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case runtime.IsNotSupported(err), runtime.IsNotFound(err):
		return err.Error()
	case errors.Is(err, runtime.ErrPermissionDenied):
		return "permission denied"
	case errors.Is(err, runtime.ErrConnectionFailed), errors.Is(err, context.DeadlineExceeded):
		return "runtime unreachable"
	case errors.Is(err, runtime.ErrCancelled), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return fmt.Sprintf("backend error: %v", err)
	}
}
