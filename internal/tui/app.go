package tui

import (
	"fmt"
	"path/filepath"

	"vibeblog-cli/internal/config"
	"vibeblog-cli/internal/history"
	"vibeblog-cli/internal/logger"
	"vibeblog-cli/internal/task"

	tea "github.com/charmbracelet/bubbletea"
)

// Run launches the interactive console. It renders inline, so finished
// output scrolls into the terminal history above the prompt.
func Run(version, profile string) error {
	bridge := newEventBridge()

	anim := task.NewAnimator(func(frame string) {
		bridge.post(frameMsg{text: frame})
	})
	follow := task.NewFollower(draftFollowThreshold)

	// The archive is best-effort: a broken database disables /history but
	// never blocks the console.
	var store *history.Store
	if dir, err := config.DataDir(); err == nil {
		store, err = history.Open(filepath.Join(dir, "history.db"))
		if err != nil {
			logger.Warnf("history archive unavailable: %v", err)
			store = nil
		}
	} else {
		logger.Warnf("history archive unavailable: %v", err)
	}

	m := initialModel(version, profile, bridge, anim, follow, store)

	p := tea.NewProgram(m)

	_, err := p.Run()

	// Shut the bridge first so controller hooks still in flight return
	// instead of blocking on a channel nobody reads anymore.
	bridge.shutdown()
	anim.Stop()
	if store != nil {
		store.Close()
	}

	if err != nil {
		return fmt.Errorf("console error: %w", err)
	}
	return nil
}
