package display

import (
	"github.com/charmbracelet/glamour"
)

const defaultRenderWidth = 100

// RenderMarkdown renders md for the terminal at the given wrap width. Falls
// back to the raw text when the renderer cannot be built or chokes on the
// input, so a finished document is never lost to a styling problem.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = defaultRenderWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
