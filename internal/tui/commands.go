package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vibeblog-cli/internal/api"
	"vibeblog-cli/internal/config"
	"vibeblog-cli/internal/display"
	"vibeblog-cli/internal/history"
	"vibeblog-cli/internal/task"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ─── Input dispatcher ───────────────────────────────────────────────────────

func (m model) dispatchInput(input string) (tea.Model, tea.Cmd) {
	if input == "?" {
		return m.cmdHelp()
	}
	if strings.HasPrefix(input, "/") {
		return m.dispatchCommand(input)
	}
	// Default: treat as a post topic
	return m.cmdGenerate(input)
}

func (m model) dispatchCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help", "/h":
		return m.cmdHelp()
	case "/login":
		return m.cmdLogin(args)
	case "/tasks":
		return m.cmdTasks()
	case "/cancel":
		return m.cmdCancel(args)
	case "/history":
		return m.cmdHistory(args)
	case "/config":
		return m.cmdConfig()
	case "/set":
		return m.cmdSet(args)
	case "/clear":
		return m.cmdClear()
	case "/quit", "/exit", "/q":
		return m, tea.Quit
	default:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Unknown command: %s (type /help)", cmd)))
	}
}

// ─── /help ──────────────────────────────────────────────────────────────────

func (m model) cmdHelp() (tea.Model, tea.Cmd) {
	pad := func(s string, w int) string {
		for len(s) < w {
			s += " "
		}
		return s
	}

	lines := []tea.Cmd{
		tea.Println(""),
		tea.Println(dimStyle.Render("  Shortcuts:")),
		tea.Println(""),
		tea.Println("  " + pad(hintKeyStyle.Render("/login <url> [token]"), 30) + dimStyle.Render("Point the CLI at a pipeline server")),
		tea.Println("  " + pad(hintKeyStyle.Render("/tasks"), 30) + dimStyle.Render("List recent pipeline tasks")),
		tea.Println("  " + pad(hintKeyStyle.Render("/cancel <id>"), 30) + dimStyle.Render("Cancel a pipeline task")),
		tea.Println("  " + pad(hintKeyStyle.Render("/history"), 30) + dimStyle.Render("Browse archived posts")),
		tea.Println("  " + pad(hintKeyStyle.Render("/history <id>"), 30) + dimStyle.Render("Reprint an archived post")),
		tea.Println("  " + pad(hintKeyStyle.Render("/set style <name>"), 30) + dimStyle.Render("Set the writing style")),
		tea.Println("  " + pad(hintKeyStyle.Render("/set language <code>"), 30) + dimStyle.Render("Set the output language")),
		tea.Println("  " + pad(hintKeyStyle.Render("/config"), 30) + dimStyle.Render("Show current configuration")),
		tea.Println("  " + pad(hintKeyStyle.Render("/clear"), 30) + dimStyle.Render("Clear the screen")),
		tea.Println("  " + pad(hintKeyStyle.Render("/quit"), 30) + dimStyle.Render("Exit VibeBlog")),
		tea.Println(""),
		tea.Println(dimStyle.Render("  Or just type a topic to start a post!")),
		tea.Println(""),
	}
	return m, tea.Sequence(lines...)
}

// ─── /login ─────────────────────────────────────────────────────────────────

type loginResultMsg struct {
	cfg      *config.Config
	probeErr error
	err      error
}

func (m model) cmdLogin(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m, tea.Sequence(
			tea.Println(""),
			tea.Println(dimStyle.Render("  Usage: /login <server-url> [token]")),
			tea.Println(""),
		)
	}

	server := strings.TrimRight(args[0], "/")
	token := ""
	if len(args) > 1 {
		token = args[1]
	}
	profile := m.profile

	return m, tea.Sequence(
		tea.Println(statusStyle.Render(fmt.Sprintf("  ⟳ Connecting to %s...", server))),
		func() tea.Msg {
			cfg, err := config.Load(profile)
			if err != nil {
				return loginResultMsg{err: err}
			}
			cfg.Server = server
			if token != "" {
				cfg.Token = token
			}
			if err := cfg.Validate(); err != nil {
				return loginResultMsg{err: err}
			}

			// Probe the server. A dead endpoint is worth a warning but
			// should not block saving the profile.
			probe := api.NewClient(cfg)
			_, probeErr := probe.ListTasks(1)

			if err := cfg.Save(); err != nil {
				return loginResultMsg{err: err}
			}
			return loginResultMsg{cfg: cfg, probeErr: probeErr}
		},
	)
}

func (m model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ %v", msg.err)))
	}

	m.cfg = msg.cfg
	m.rebuildController()

	var cmds []tea.Cmd
	cmds = append(cmds, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Connected to %s", m.cfg.Server))))
	if msg.probeErr != nil {
		cmds = append(cmds, tea.Println(warnMsgStyle.Render(fmt.Sprintf("  ! Saved, but the server did not respond: %v", msg.probeErr))))
	}
	cmds = append(cmds, tea.Println(""))
	return m, tea.Sequence(cmds...)
}

// ─── /tasks ─────────────────────────────────────────────────────────────────

type tasksLoadedMsg struct {
	tasks []api.TaskInfo
	err   error
}

func (m model) cmdTasks() (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Type /login <url> to get started."))
	}

	client := m.client

	return m, tea.Sequence(
		tea.Println(statusStyle.Render("  ⟳ Loading tasks...")),
		func() tea.Msg {
			resp, err := client.ListTasks(20)
			if err != nil {
				return tasksLoadedMsg{err: err}
			}
			return tasksLoadedMsg{tasks: resp.Tasks}
		},
	)
}

func (m model) handleTasksLoaded(msg tasksLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Failed to load tasks: %v", msg.err)))
	}

	if len(msg.tasks) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! No tasks found."))
	}

	var cmds []tea.Cmd
	cmds = append(cmds,
		tea.Println(""),
		tea.Println(fmt.Sprintf("  Tasks (%d):", len(msg.tasks))),
		tea.Println(""),
	)

	for _, t := range msg.tasks {
		topic := t.Topic
		if topic == "" {
			topic = "(no topic)"
		}
		cmds = append(cmds,
			tea.Println(fmt.Sprintf("  %s %s", stateStyle(t.Status).Render("⏺"), topic)),
			tea.Println(dimStyle.Render(fmt.Sprintf("    %s  %s  %s", t.ID, t.Status, display.FormatTime(t.CreateTime)))),
		)
	}

	cmds = append(cmds,
		tea.Println(""),
		tea.Println(dimStyle.Render("  Tip: /cancel <id> to stop a running task")),
		tea.Println(""),
	)

	return m, tea.Sequence(cmds...)
}

// ─── /cancel ────────────────────────────────────────────────────────────────

type cancelResultMsg struct {
	id   string
	resp *api.CancelTaskResponse
	err  error
}

func (m model) cmdCancel(args []string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Type /login <url> to get started."))
	}
	if len(args) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! Usage: /cancel <task-id>"))
	}

	id := args[0]
	client := m.client

	return m, tea.Sequence(
		tea.Println(statusStyle.Render(fmt.Sprintf("  ⟳ Cancelling %s...", truncateID(id)))),
		func() tea.Msg {
			resp, err := client.CancelTask(id)
			return cancelResultMsg{id: id, resp: resp, err: err}
		},
	)
}

func (m model) handleCancelResult(msg cancelResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Cancel failed: %v", msg.err)))
	}
	if msg.resp != nil && !msg.resp.Success {
		reason := msg.resp.Error
		if reason == "" {
			reason = "task is not running"
		}
		return m, tea.Println(warnMsgStyle.Render(fmt.Sprintf("  ! Server refused: %s", reason)))
	}
	return m, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ Cancel requested for %s", truncateID(msg.id))))
}

// ─── /history ───────────────────────────────────────────────────────────────

type historyLoadedMsg struct {
	recs []history.Record
	err  error
}

type historyShowMsg struct {
	id  string
	rec *history.Record
	err error
}

func (m model) cmdHistory(args []string) (tea.Model, tea.Cmd) {
	if m.store == nil {
		return m, tea.Println(warnMsgStyle.Render("  ! History is unavailable."))
	}

	store := m.store

	if len(args) == 0 {
		return m, tea.Sequence(
			tea.Println(statusStyle.Render("  ⟳ Loading archive...")),
			func() tea.Msg {
				recs, err := store.List(15)
				return historyLoadedMsg{recs: recs, err: err}
			},
		)
	}

	id := args[0]
	return m, tea.Sequence(
		tea.Println(statusStyle.Render(fmt.Sprintf("  ⟳ Loading %s...", truncateID(id)))),
		func() tea.Msg {
			rec, err := store.Get(id)
			return historyShowMsg{id: id, rec: rec, err: err}
		},
	)
}

func (m model) handleHistoryLoaded(msg historyLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Failed to load archive: %v", msg.err)))
	}

	if len(msg.recs) == 0 {
		return m, tea.Println(warnMsgStyle.Render("  ! The archive is empty."))
	}

	var cmds []tea.Cmd
	cmds = append(cmds,
		tea.Println(""),
		tea.Println(fmt.Sprintf("  Archive (%d):", len(msg.recs))),
		tea.Println(""),
	)

	for _, rec := range msg.recs {
		title := rec.Title
		if title == "" {
			title = rec.Topic
		}
		detail := rec.ID
		if !rec.FinishedAt.IsZero() {
			detail += "  " + rec.FinishedAt.Local().Format("Jan 2 15:04")
		}
		if rec.Words > 0 {
			detail += fmt.Sprintf("  %d words", rec.Words)
		}
		cmds = append(cmds,
			tea.Println(fmt.Sprintf("  %s %s", stateStyle(rec.State).Render("⏺"), title)),
			tea.Println(dimStyle.Render("    "+detail)),
		)
	}

	cmds = append(cmds,
		tea.Println(""),
		tea.Println(dimStyle.Render("  Tip: /history <id> to reprint a post")),
		tea.Println(""),
	)

	return m, tea.Sequence(cmds...)
}

func (m model) handleHistoryShow(msg historyShowMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, history.ErrNotFound) {
			return m, tea.Println(warnMsgStyle.Render(fmt.Sprintf("  ! No archived post with id %s", truncateID(msg.id))))
		}
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Failed to load post: %v", msg.err)))
	}

	rec := msg.rec
	if rec.Document == "" {
		return m, tea.Println(warnMsgStyle.Render("  ! No document was saved for that run."))
	}

	width := m.width - 2
	if width > 100 {
		width = 100
	}

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(display.RenderMarkdown(rec.Document, width)),
		tea.Println(dimStyle.Render(fmt.Sprintf("  %s · %s", rec.ID, rec.State))),
		tea.Println(""),
	)
}

// ─── /config ────────────────────────────────────────────────────────────────

func (m model) cmdConfig() (tea.Model, tea.Cmd) {
	if m.cfg == nil {
		return m, tea.Println(warnMsgStyle.Render("  ! No configuration found. Run /login first."))
	}

	val := func(s string) string {
		if s == "" {
			return dimStyle.Render("(not set)")
		}
		return s
	}
	token := dimStyle.Render("(not set)")
	if m.cfg.Token != "" {
		end := 12
		if len(m.cfg.Token) < end {
			end = len(m.cfg.Token)
		}
		token = m.cfg.Token[:end] + "..."
	}
	speed := dimStyle.Render("(default)")
	if m.cfg.TypingSpeed > 0 {
		speed = fmt.Sprintf("%d chars/s", m.cfg.TypingSpeed)
	}
	animation := "on"
	if m.cfg.NoAnimation {
		animation = "off"
	}

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(dimStyle.Render("  Configuration:")),
		tea.Println(fmt.Sprintf("    Profile:      %s", config.ProfileName(m.profile))),
		tea.Println(fmt.Sprintf("    Server:       %s", val(m.cfg.Server))),
		tea.Println(fmt.Sprintf("    Style:        %s", val(m.cfg.Style))),
		tea.Println(fmt.Sprintf("    Language:     %s", val(m.cfg.Language))),
		tea.Println(fmt.Sprintf("    Typing speed: %s", speed)),
		tea.Println(fmt.Sprintf("    Animation:    %s", animation)),
		tea.Println(fmt.Sprintf("    Token:        %s", token)),
		tea.Println(""),
	)
}

// ─── /set ───────────────────────────────────────────────────────────────────

func (m model) cmdSet(args []string) (tea.Model, tea.Cmd) {
	if len(args) < 2 {
		return m, tea.Sequence(
			tea.Println(""),
			tea.Println(dimStyle.Render("  Usage: /set <key> <value>")),
			tea.Println(dimStyle.Render("  Keys:  style, language, typing_speed, no_animation, token")),
			tea.Println(""),
		)
	}
	if m.cfg == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ No configuration found. Run /login first."))
	}

	key := strings.ToLower(args[0])
	value := strings.Join(args[1:], " ")

	switch key {
	case "style":
		m.cfg.Style = value
	case "language":
		m.cfg.Language = value
	case "typing_speed":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ typing_speed needs a number, got %q", value)))
		}
		m.cfg.TypingSpeed = n
		m.anim.SetSpeed(n)
	case "no_animation":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ no_animation needs true or false, got %q", value)))
		}
		m.cfg.NoAnimation = b
		m.anim.SetEnabled(!b)
	case "token":
		m.cfg.Token = value
		m.rebuildController()
	default:
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Unknown key: %s (valid: style, language, typing_speed, no_animation, token)", key)))
	}

	if err := m.cfg.Save(); err != nil {
		return m, tea.Println(errorMsgStyle.Render(fmt.Sprintf("  ✗ Failed to save config: %v", err)))
	}
	return m, tea.Println(successMsgStyle.Render(fmt.Sprintf("  ✓ %s set to: %s", key, value)))
}

// ─── /clear ─────────────────────────────────────────────────────────────────

func (m model) cmdClear() (tea.Model, tea.Cmd) {
	return m, tea.ClearScreen
}

// ─── Generate ───────────────────────────────────────────────────────────────

func (m model) cmdGenerate(topic string) (tea.Model, tea.Cmd) {
	if m.client == nil || m.ctrl == nil {
		return m, tea.Println(errorMsgStyle.Render("  ✗ Not logged in. Type /login <url> to get started."))
	}

	m.mode = modeStreaming
	m.topic = topic
	m.printed = 0
	m.hasDraft = false
	m.outline = task.Outline{}
	m.usage = task.TokenUsage{}
	m.anim.Reset()
	m.vp.SetContent("")

	return m, tea.Sequence(
		tea.Println(""),
		tea.Println(userPromptStyle.Render("  ❯ "+topic)),
		tea.Println(""),
		tea.Println(statusStyle.Render("  ⟳ Queueing the topic...")),
		createTask(m.client, topic, m.cfg.Style, m.cfg.Language),
	)
}

// stateStyle picks a status dot color for a task state label.
func stateStyle(state string) lipgloss.Style {
	switch strings.ToLower(state) {
	case "complete", "completed", "done":
		return successMsgStyle
	case "error", "failed":
		return errorMsgStyle
	case "cancelled", "canceled":
		return dimStyle
	default:
		return statusStyle
	}
}
