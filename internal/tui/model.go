package tui

import (
	"context"
	"fmt"
	"strings"

	"vibeblog-cli/internal/api"
	"vibeblog-cli/internal/config"
	"vibeblog-cli/internal/display"
	"vibeblog-cli/internal/history"
	"vibeblog-cli/internal/logger"
	"vibeblog-cli/internal/task"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// ─── App mode ───────────────────────────────────────────────────────────────

type appMode int

const (
	modeIdle appMode = iota
	modeStreaming
	modeOutline
	modeOutlineNote
)

const defaultPlaceholder = "Describe a post topic or type /help..."

// Draft pane geometry and follow behavior.
const (
	draftPaneHeight      = 12
	draftFollowThreshold = 4
)

// ─── Slash command registry ─────────────────────────────────────────────────

type slashCmd struct {
	name string
	desc string
}

var slashCommands = []slashCmd{
	{"/cancel", "Cancel a pipeline task by id"},
	{"/clear", "Clear the screen"},
	{"/config", "Show current configuration"},
	{"/help", "Show all commands"},
	{"/history", "Browse archived posts"},
	{"/login", "Point the CLI at a pipeline server"},
	{"/quit", "Exit VibeBlog"},
	{"/set", "Set a config value"},
	{"/tasks", "List recent pipeline tasks"},
}

// ─── Model ──────────────────────────────────────────────────────────────────

type model struct {
	width  int
	height int

	// Bubble Tea components
	input   textinput.Model
	spinner spinner.Model
	vp      viewport.Model

	// App state
	mode    appMode
	cfg     *config.Config
	client  *api.Client
	ctrl    *task.Controller
	store   *history.Store
	bridge  *eventBridge
	anim    *task.Animator
	follow  *task.Follower
	version string
	profile string

	// Run state
	topic    string // topic of the run in flight
	printed  int    // activity items already flushed to the scrollback
	hasDraft bool   // the draft pane has content to show
	outline  task.Outline
	usage    task.TokenUsage

	// UI state
	ready        bool
	cmdMenuIdx   int    // selected index in command menu (-1 = none)
	cmdMenuOpen  bool   // whether the command menu is visible
	lastInputVal string // track input changes to reset menu index

	// Command history
	history      []string // stored command history
	historyIdx   int      // current position in history (-1 = not browsing)
	historySaved string   // saved input value when entering history mode
}

func initialModel(version, profile string, bridge *eventBridge, anim *task.Animator, follow *task.Follower, store *history.Store) model {
	ti := textinput.New()
	ti.Placeholder = defaultPlaceholder
	ti.Focus()
	ti.CharLimit = 4096
	ti.Prompt = "❯ "
	ti.PromptStyle = promptSymbol
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(colorViolet)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorViolet)

	vp := viewport.New(80, draftPaneHeight)

	cfg, _ := config.Load(profile)

	m := model{
		input:      ti,
		spinner:    sp,
		vp:         vp,
		version:    version,
		profile:    profile,
		cfg:        cfg,
		store:      store,
		bridge:     bridge,
		anim:       anim,
		follow:     follow,
		mode:       modeIdle,
		history:    make([]string, 0),
		historyIdx: -1,
	}
	m.rebuildController()

	if cfg != nil {
		anim.SetSpeed(cfg.TypingSpeed)
		anim.SetEnabled(!cfg.NoAnimation)
	}

	return m
}

// rebuildController recreates the API client and task controller after the
// server or token changed. Without a server both stay nil and every run
// command reports "not logged in".
func (m *model) rebuildController() {
	if m.cfg == nil || m.cfg.Server == "" {
		m.client = nil
		m.ctrl = nil
		return
	}
	m.client = api.NewClient(m.cfg)

	client := m.client
	subscribe := func(ctx context.Context, taskID string) (task.EventSource, error) {
		return client.Subscribe(ctx, taskID)
	}
	m.ctrl = task.NewController(client, subscribe, m.bridge.hooks(m.anim))
}

// ─── Init ───────────────────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForEvent(m.bridge),
	)
}

// ─── Update ─────────────────────────────────────────────────────────────────

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 6
		m.vp.Width = m.width - 6
		if m.vp.Width < 20 {
			m.vp.Width = 20
		}

		if !m.ready {
			m.ready = true
			// Print welcome header on first render
			welcome := renderWelcome(m.version, serverStr(m.cfg), styleStr(m.cfg))
			cmds = append(cmds, tea.Println(welcome))
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.runActive() {
				return m, cancelRun(m.ctrl)
			}
			return m, tea.Quit

		case tea.KeyEsc:
			if m.mode == modeOutlineNote {
				return m.leaveOutlineNote()
			}
			if m.runActive() {
				return m, cancelRun(m.ctrl)
			}
			if m.cmdMenuOpen {
				m.cmdMenuOpen = false
				m.cmdMenuIdx = 0
				return m, nil
			}

		case tea.KeyRunes:
			if m.mode == modeOutline {
				switch strings.ToLower(msg.String()) {
				case "a":
					return m.acceptOutline()
				case "e":
					return m.beginOutlineNote()
				}
				return m, nil
			}

		case tea.KeyUp:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx--
						if m.cmdMenuIdx < 0 {
							m.cmdMenuIdx = len(matches) - 1
						}
						return m, nil
					}
				} else if len(m.history) > 0 {
					// Navigate command history
					if m.historyIdx == -1 {
						// Entering history mode - save current input
						m.historySaved = m.input.Value()
						m.historyIdx = len(m.history) - 1
					} else {
						m.historyIdx--
						if m.historyIdx < 0 {
							m.historyIdx = 0
						}
					}
					m.input.SetValue(m.history[m.historyIdx])
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyDown:
			if m.mode == modeIdle {
				if m.cmdMenuOpen {
					matches := matchCommands(m.input.Value())
					if len(matches) > 0 {
						m.cmdMenuIdx++
						if m.cmdMenuIdx >= len(matches) {
							m.cmdMenuIdx = 0
						}
						return m, nil
					}
				} else if m.historyIdx != -1 {
					m.historyIdx++
					if m.historyIdx >= len(m.history) {
						// Exit history mode - restore saved input
						m.historyIdx = -1
						m.input.SetValue(m.historySaved)
						m.historySaved = ""
					} else {
						m.input.SetValue(m.history[m.historyIdx])
					}
					m.input.CursorEnd()
					return m, nil
				}
			}

		case tea.KeyTab:
			if m.mode == modeIdle && m.cmdMenuOpen {
				matches := matchCommands(m.input.Value())
				if len(matches) > 0 {
					idx := m.cmdMenuIdx
					if idx < 0 || idx >= len(matches) {
						idx = 0
					}
					m.input.SetValue(matches[idx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
				}
				return m, nil
			}

		case tea.KeyEnter:
			if m.mode == modeOutline {
				return m.acceptOutline()
			}

			// If command menu is open and an item is selected, pick it
			if m.mode == modeIdle && m.cmdMenuOpen && m.cmdMenuIdx >= 0 {
				matches := matchCommands(m.input.Value())
				if m.cmdMenuIdx < len(matches) {
					m.input.SetValue(matches[m.cmdMenuIdx].name + " ")
					m.input.CursorEnd()
					m.cmdMenuOpen = false
					m.cmdMenuIdx = 0
					return m, nil
				}
			}

			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				return m, nil
			}

			// Add to history (avoid duplicates if same as last command)
			if len(m.history) == 0 || m.history[len(m.history)-1] != value {
				m.history = append(m.history, value)
				// Limit history size to 1000 entries
				if len(m.history) > 1000 {
					m.history = m.history[len(m.history)-1000:]
				}
			}
			m.historyIdx = -1
			m.historySaved = ""

			m.input.SetValue("")
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0

			switch m.mode {
			case modeOutlineNote:
				return m.handleOutlineNoteSubmit(value)
			default:
				return m.dispatchInput(value)
			}
		}

	// ── Run messages from the bridge ──────────────────────────────────
	case ctrlStateMsg, ctrlLogMsg, ctrlOutlineMsg, ctrlUsageMsg, ctrlDoneMsg, frameMsg:
		return m.handleRunMsg(msg)

	case taskCreatedMsg:
		if msg.err != nil {
			m.mode = modeIdle
			m.topic = ""
			return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Could not create the task: %v", msg.err)))
		}
		return m, tea.Sequence(
			tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Task %s", truncateID(msg.taskID)))),
			startRun(m.ctrl, msg.taskID, msg.topic),
		)

	case taskStartedMsg:
		// Subscribe failures already surface through the done hook.
		if msg.err != nil {
			logger.Debugf("start task: %v", msg.err)
		}
		return m, nil

	case confirmSentMsg:
		// A failed confirmation lands in the activity log; the checkpoint
		// stays open so the keys still work.
		if msg.err != nil {
			logger.Debugf("outline confirm: %v", msg.err)
		}
		return m, nil

	case historySavedMsg:
		if msg.err != nil {
			logger.Warnf("archive run: %v", msg.err)
		}
		return m, nil

	// ── Command results ───────────────────────────────────────────────
	case loginResultMsg:
		return m.handleLoginResult(msg)

	case tasksLoadedMsg:
		return m.handleTasksLoaded(msg)

	case cancelResultMsg:
		return m.handleCancelResult(msg)

	case historyLoadedMsg:
		return m.handleHistoryLoaded(msg)

	case historyShowMsg:
		return m.handleHistoryShow(msg)
	}

	// Update sub-components
	var cmd tea.Cmd

	if m.mode == modeIdle || m.mode == modeOutlineNote {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.mode == modeStreaming {
		// Scroll keys and mouse wheel reach the draft pane; scrolling away
		// from the bottom stops the auto-follow until the user returns.
		m.vp, cmd = m.vp.Update(msg)
		cmds = append(cmds, cmd)
		m.follow.OnContentChanged(vpAdapter{&m.vp})
	}

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	// Track input changes to open/close command menu and reset selection
	newVal := m.input.Value()
	if newVal != m.lastInputVal {
		m.lastInputVal = newVal
		// Exit history mode when user types (manually edits input)
		if m.historyIdx != -1 {
			if m.historyIdx < len(m.history) && m.history[m.historyIdx] != newVal {
				m.historyIdx = -1
				m.historySaved = ""
			}
		}
		if strings.HasPrefix(newVal, "/") && m.mode == modeIdle {
			m.cmdMenuOpen = true
			m.cmdMenuIdx = 0
		} else {
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0
		}
	}

	return m, tea.Batch(cmds...)
}

// ─── Run message handling ───────────────────────────────────────────────────

// handleRunMsg applies one bridged controller message and re-arms the
// bridge reader.
func (m model) handleRunMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForEvent(m.bridge)}

	switch msg := msg.(type) {

	case ctrlStateMsg:
		// The outline checkpoint closes when the pipeline reports the run
		// is moving again.
		if msg.state == task.StateRunning && m.mode == modeOutline {
			m.mode = modeStreaming
		}

	case ctrlLogMsg:
		if m.runActive() {
			items := m.ctrl.LogItems()
			n := settledPrefix(items)
			for i := m.printed; i < n; i++ {
				if line := renderLogItem(items[i]); line != "" {
					cmds = append(cmds, tea.Println(line))
				}
			}
			m.printed = n
		}

	case ctrlOutlineMsg:
		m.outline = msg.outline
		m.mode = modeOutline
		cmds = append(cmds,
			tea.Println(""),
			tea.Println(renderOutlinePanel(m.outline, m.topic)),
			tea.Println(""),
		)

	case ctrlUsageMsg:
		m.usage = msg.usage

	case ctrlDoneMsg:
		return m.handleDone(msg.result, cmds)

	case frameMsg:
		if m.mode == modeStreaming && msg.text != "" {
			m.hasDraft = true
			m.vp.SetContent(wordwrap.String(msg.text, m.vp.Width))
			m.follow.OnContentChanged(vpAdapter{&m.vp})
		}
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleDone(res task.Result, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	var out []tea.Cmd
	out = append(out, tea.Println(""))

	if res.State == task.StateComplete && res.Document != "" {
		width := m.width - 2
		if width > 100 {
			width = 100
		}
		out = append(out, tea.Println(display.RenderMarkdown(res.Document, width)))
		if len(res.Citations) > 0 {
			out = append(out, tea.Println(renderCitationList(res.Citations)))
		}
	}

	switch res.State {
	case task.StateComplete:
		line := fmt.Sprintf("  ✓ Done in %s", display.FormatDuration(res.Elapsed))
		if res.Usage.Total > 0 {
			line += fmt.Sprintf(" · %d tokens", res.Usage.Total)
		}
		out = append(out, tea.Println(successMsgStyle.Render(line)))
	case task.StateCancelled:
		out = append(out, tea.Println(warnMsgStyle.Render(
			fmt.Sprintf("  ! Generation cancelled after %s", display.FormatDuration(res.Elapsed)))))
	default:
		message := "Generation failed"
		if res.Err != nil && res.Err.Message != "" {
			message = res.Err.Message
		}
		out = append(out, tea.Println(errorMsgStyle.Render("  ✗ "+message)))
		if res.Err != nil && res.Err.Details != "" {
			out = append(out, tea.Println(dimStyle.Render("    "+res.Err.Details)))
		}
	}
	out = append(out, tea.Println(""))

	if m.store != nil {
		rec := history.NewRecord(m.ctrl.TaskView(), m.outline, res)
		out = append(out, saveRecord(m.store, rec))
	}

	m.mode = modeIdle
	m.topic = ""
	m.printed = 0
	m.hasDraft = false
	m.outline = task.Outline{}
	m.usage = task.TokenUsage{}
	m.anim.Reset()
	m.vp.SetContent("")

	cmds = append(cmds, tea.Sequence(out...))
	return m, tea.Batch(cmds...)
}

// runActive reports whether a generation run owns the screen.
func (m model) runActive() bool {
	return m.mode == modeStreaming || m.mode == modeOutline || m.mode == modeOutlineNote
}

// settledPrefix returns how many leading activity items will never change
// again. Items from the first in-flight search or live preview on stay out
// of the scrollback until they settle.
func settledPrefix(items []task.Item) int {
	for i, it := range items {
		if it.Searching || it.Live {
			return i
		}
	}
	return len(items)
}

// ─── Outline checkpoint keys ────────────────────────────────────────────────

func (m model) acceptOutline() (tea.Model, tea.Cmd) {
	return m, confirmOutline(m.ctrl, api.OutlineAccept, "")
}

func (m model) beginOutlineNote() (tea.Model, tea.Cmd) {
	m.mode = modeOutlineNote
	m.input.Placeholder = "What should change about the outline?"
	m.input.SetValue("")
	m.input.Focus()
	return m, nil
}

func (m model) leaveOutlineNote() (tea.Model, tea.Cmd) {
	m.mode = modeOutline
	m.input.Placeholder = defaultPlaceholder
	m.input.SetValue("")
	return m, nil
}

func (m model) handleOutlineNoteSubmit(note string) (tea.Model, tea.Cmd) {
	m.mode = modeOutline
	m.input.Placeholder = defaultPlaceholder
	return m, confirmOutline(m.ctrl, api.OutlineEdit, note)
}

// ─── View ───────────────────────────────────────────────────────────────────
//
// Inline mode: View() shows the draft pane while writing streams, plus the
// input prompt or a status line. Everything else is printed above via
// tea.Println.

func (m model) View() string {
	if !m.ready {
		return ""
	}

	var s strings.Builder

	switch m.mode {
	case modeStreaming:
		if m.hasDraft {
			s.WriteString(draftBoxStyle.Render(m.vp.View()))
			s.WriteString("\n")
		}
		s.WriteString(m.spinner.View() + " " + statusStyle.Render(m.statusLine()))
	case modeOutline:
		s.WriteString(m.spinner.View() + " " + statusStyle.Render("Outline ready"))
	default:
		s.WriteString(m.input.View())
	}
	s.WriteString("\n")

	// Separator
	sepWidth := min(m.width, 80)
	if sepWidth < 20 {
		sepWidth = 20
	}
	s.WriteString(separatorStyle.Render(strings.Repeat("─", sepWidth)))
	s.WriteString("\n")

	// Hint bar
	s.WriteString(m.renderHints())

	return s.String()
}

func (m model) statusLine() string {
	tk := m.ctrl.TaskView()
	status := tk.Message
	if status == "" {
		if tk.State == task.StateConnecting {
			status = "Connecting to the pipeline..."
		} else {
			status = "Working on it..."
		}
	}
	if m.usage.Total > 0 {
		status += fmt.Sprintf(" · %d tokens", m.usage.Total)
	}
	return status
}

// ─── Hint bar ───────────────────────────────────────────────────────────────

func (m model) renderHints() string {
	switch m.mode {
	case modeStreaming:
		return hintBarStyle.Render("  Esc cancel")
	case modeOutline:
		return hintBarStyle.Render("  a accept   e edit with a note   Esc cancel")
	case modeOutlineNote:
		return hintBarStyle.Render("  Enter send   Esc back")
	}

	// Show vertical command menu when menu is open
	if m.cmdMenuOpen {
		matches := matchCommands(m.input.Value())
		if len(matches) > 0 {
			return m.renderCommandMenu(matches)
		}
	}

	return hintBarStyle.Render("  ? for help")
}

// renderCommandMenu renders a vertical list of matching commands.
func (m model) renderCommandMenu(matches []slashCmd) string {
	// Find the longest command name for alignment
	maxLen := 0
	for _, c := range matches {
		if len(c.name) > maxLen {
			maxLen = len(c.name)
		}
	}

	var lines []string
	for i, c := range matches {
		padded := c.name
		for len(padded) < maxLen {
			padded += " "
		}

		var line string
		if i == m.cmdMenuIdx {
			// Highlighted row
			line = "  " + cmdSelectedNameStyle.Render(padded) + "  " + cmdSelectedDescStyle.Render(c.desc)
		} else {
			line = "  " + cmdNameStyle.Render(padded) + "  " + cmdDescStyle.Render(c.desc)
		}
		lines = append(lines, line)
	}

	// Navigation hint at the bottom
	lines = append(lines, hintBarStyle.Render("  ↑↓ navigate  Tab/Enter select"))

	return strings.Join(lines, "\n")
}

// matchCommands returns all slash commands matching a prefix.
func matchCommands(prefix string) []slashCmd {
	prefix = strings.ToLower(prefix)
	// A bare "/" shows the whole menu
	if prefix == "/" {
		return slashCommands
	}
	var matches []slashCmd
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, prefix) {
			matches = append(matches, c)
		}
	}
	return matches
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// vpAdapter lets the follower read and move the draft pane scroll position.
type vpAdapter struct {
	vp *viewport.Model
}

func (a vpAdapter) ScrollTop() int       { return a.vp.YOffset }
func (a vpAdapter) ViewHeight() int      { return a.vp.Height }
func (a vpAdapter) ContentHeight() int   { return a.vp.TotalLineCount() }
func (a vpAdapter) SetScrollTop(top int) { a.vp.SetYOffset(top) }

func serverStr(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.Server
}

func styleStr(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.Style
}
