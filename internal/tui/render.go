package tui

import (
	"fmt"
	"strings"

	"vibeblog-cli/internal/api"
	"vibeblog-cli/internal/task"
)

// ─── Welcome Screen ─────────────────────────────────────────────────────────

func renderWelcome(version, server, style string) string {
	titleLine := logoTitleStyle.Render("VibeBlog CLI") + " " + versionStyle.Render("v"+version)

	var infoLine string
	if server == "" {
		infoLine = welcomeHintStyle.Render("Type /login <url> to get started")
	} else {
		serverDisplay := server
		if len(serverDisplay) > 40 {
			serverDisplay = serverDisplay[:37] + "..."
		}
		styleDisplay := dimStyle.Render("default style")
		if style != "" {
			styleDisplay = style
			if len(styleDisplay) > 36 {
				styleDisplay = styleDisplay[:33] + "..."
			}
		}
		infoLine = welcomeInfoLabel.Render(fmt.Sprintf("%s · %s", serverDisplay, styleDisplay))
	}

	quill := renderQuillArt()
	return fmt.Sprintf("\n%s\n\n%s\n%s\n", quill, titleLine, infoLine)
}

const quillASCIIArt = `
                                  ****
                           ***********
                      ****************
                  *****************
               ****************
             **************
           *************
         ************
        ***********
       **********
      ********
     *******
     *****
    ++++
   +++
  ++
 ++
+
   ################
`

func renderQuillArt() string {
	lines := strings.Split(quillASCIIArt, "\n")
	lines = trimEmptyEdgeLines(lines)

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := countLeadingSpaces(line)
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}

	for i, line := range lines {
		line = strings.TrimRight(line, " ")
		if minIndent > 0 && len(line) >= minIndent {
			line = line[minIndent:]
		}
		lines[i] = colorizeQuillLine(line)
	}

	return strings.Join(lines, "\n")
}

func trimEmptyEdgeLines(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}

	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

func countLeadingSpaces(s string) int {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return i
}

func colorizeQuillLine(line string) string {
	const (
		stylePlain = iota
		styleFeather
		styleNib
	)

	styleFor := func(r rune) int {
		switch r {
		case '*', '%', '@':
			return styleFeather
		case '+', '#':
			return styleNib
		default:
			return stylePlain
		}
	}

	render := func(style int, s string) string {
		switch style {
		case styleFeather:
			return logoFeatherStyle.Render(s)
		case styleNib:
			return logoNibStyle.Render(s)
		default:
			return s
		}
	}

	var out strings.Builder
	var run strings.Builder
	currentStyle := stylePlain
	first := true

	flush := func() {
		if run.Len() == 0 {
			return
		}
		out.WriteString(render(currentStyle, run.String()))
		run.Reset()
	}

	for _, r := range line {
		nextStyle := styleFor(r)
		if first {
			currentStyle = nextStyle
			first = false
		} else if nextStyle != currentStyle {
			flush()
			currentStyle = nextStyle
		}
		run.WriteRune(r)
	}

	flush()
	return out.String()
}

// ─── Outline Checkpoint Panel ───────────────────────────────────────────────

// renderOutlinePanel formats the proposed document skeleton for the
// scrollback. The topic stands in for a missing title.
func renderOutlinePanel(o task.Outline, topic string) string {
	title := o.Title
	if title == "" {
		title = topic
	}

	var lines []string
	lines = append(lines, outlineTitleStyle.Render("  Outline: "+title))
	lines = append(lines, "")

	if len(o.Sections) > 0 {
		for i, sec := range o.Sections {
			lines = append(lines, fmt.Sprintf("  %s %s", outlineNumStyle.Render(fmt.Sprintf("%2d.", i+1)), sec.Title))
			if sec.Summary != "" {
				lines = append(lines, dimStyle.Render("      "+clipLine(sec.Summary, 70)))
			}
		}
	} else {
		for i, sec := range o.SectionTitles {
			lines = append(lines, fmt.Sprintf("  %s %s", outlineNumStyle.Render(fmt.Sprintf("%2d.", i+1)), sec))
		}
	}

	return strings.Join(lines, "\n")
}

// ─── Activity Log ───────────────────────────────────────────────────────────

// renderLogItem formats one settled activity item for the scrollback.
// The sealed draft preview renders empty: its text only ever lived in the
// draft pane.
func renderLogItem(it task.Item) string {
	detail := ""
	if it.Detail != "" {
		detail = " " + dimStyle.Render(it.Detail)
	}

	switch it.Kind {
	case task.KindDivider:
		return separatorStyle.Render("  " + strings.Repeat("─", 40))
	case task.KindSuccess:
		return successMsgStyle.Render("  ✓ "+it.Message) + detail
	case task.KindError:
		return errorMsgStyle.Render("  ✗ "+it.Message) + detail
	case task.KindWarning:
		return warnMsgStyle.Render("  ! "+it.Message) + detail
	case task.KindSearch:
		return searchStyle.Render("  ⌕ "+it.Query) + detail
	case task.KindCrawl:
		return searchStyle.Render("  ↳ "+it.Message) + detail
	case task.KindStream:
		return ""
	default:
		return statusStyle.Render("  ⟳ "+it.Message) + detail
	}
}

// ─── Citations ──────────────────────────────────────────────────────────────

func renderCitationList(citations []api.Citation) string {
	if len(citations) == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, dimStyle.Render("  Sources:"))
	for i, c := range citations {
		title := c.Title
		if title == "" {
			title = c.URL
		}
		lines = append(lines, dimStyle.Render(fmt.Sprintf("    %d. %s", i+1, title)))
		if c.Title != "" && c.URL != "" {
			lines = append(lines, dimStyle.Render("       "+c.URL))
		}
	}
	return strings.Join(lines, "\n")
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func clipLine(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func truncateID(s string) string {
	if len(s) > 20 {
		return s[:8] + "..." + s[len(s)-4:]
	}
	return s
}
