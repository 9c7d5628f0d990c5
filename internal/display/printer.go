package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"vibeblog-cli/internal/task"
)

const transientWidth = 78

// RunView is the controller surface the printer reads when a hook fires.
// *task.Controller satisfies it.
type RunView interface {
	LogItems() []task.Item
	TaskView() task.Task
}

// StreamPrinter renders one generation run as append-only styled lines, the
// plain-mode counterpart of the interactive console. Settled activity
// entries print once and stay put; the first still-unsettled entry (a search
// in flight or the live draft preview) redraws on a single transient line
// until it resolves, keeping the transcript in event order.
type StreamPrinter struct {
	mu        sync.Mutex
	ctrl      RunView
	out       io.Writer
	printed   int
	transient bool

	outlineCh chan task.Outline
	doneCh    chan task.Result
}

func NewStreamPrinter() *StreamPrinter {
	return &StreamPrinter{
		out:       os.Stdout,
		outlineCh: make(chan task.Outline, 4),
		doneCh:    make(chan task.Result, 1),
	}
}

// Bind attaches the controller the log hooks read from. Must happen before
// the task starts.
func (p *StreamPrinter) Bind(ctrl RunView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctrl = ctrl
}

// Hooks returns the controller hook set backed by this printer.
func (p *StreamPrinter) Hooks() task.Hooks {
	return task.Hooks{
		OnStateChange: p.onState,
		OnLogChanged:  p.onLog,
		OnOutline:     p.onOutline,
		OnDone:        p.onDone,
	}
}

// Outline delivers each outline checkpoint after its panel prints. The
// channel is buffered; a caller running with auto-accept can ignore it.
func (p *StreamPrinter) Outline() <-chan task.Outline { return p.outlineCh }

// Done delivers the terminal result after the closing lines print.
func (p *StreamPrinter) Done() <-chan task.Result { return p.doneCh }

func (p *StreamPrinter) onState(s task.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s == task.StateConnecting {
		p.drawTransient("Connecting to the pipeline...")
	}
}

func (p *StreamPrinter) onLog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return
	}
	items := p.ctrl.LogItems()
	for p.printed < len(items) {
		it := items[p.printed]
		if it.Searching || it.Live {
			break
		}
		p.clearTransient()
		fmt.Fprint(p.out, itemLine(it))
		p.printed++
	}
	if p.printed < len(items) {
		p.drawTransient(transientLine(items[p.printed]))
	}
}

func (p *StreamPrinter) onOutline(o task.Outline) {
	p.mu.Lock()
	p.clearTransient()
	title := o.Title
	if title == "" && p.ctrl != nil {
		title = p.ctrl.TaskView().Topic
	}
	fmt.Fprintf(p.out, "\n%sOutline: %s%s\n", Bold+White, title, Reset)
	for i, section := range o.SectionTitles {
		fmt.Fprintf(p.out, "  %s%2d.%s %s\n", Cyan, i+1, Reset, section)
	}
	fmt.Fprintln(p.out)
	p.mu.Unlock()

	select {
	case p.outlineCh <- o:
	default:
	}
}

func (p *StreamPrinter) onDone(res task.Result) {
	p.mu.Lock()
	p.clearTransient()
	fmt.Fprintln(p.out)
	switch res.State {
	case task.StateComplete:
		line := fmt.Sprintf("Done in %s", FormatDuration(res.Elapsed))
		if res.Usage.Total > 0 {
			line += fmt.Sprintf(", %d tokens", res.Usage.Total)
		}
		fmt.Fprintf(p.out, "%s✓%s %s\n", Green, Reset, line)
	case task.StateCancelled:
		fmt.Fprintf(p.out, "%s!%s Generation cancelled after %s\n", Yellow, Reset, FormatDuration(res.Elapsed))
	default:
		msg := "Generation failed"
		if res.Err != nil && res.Err.Message != "" {
			msg = res.Err.Message
		}
		fmt.Fprintf(p.out, "%s✗%s %s\n", Red, Reset, msg)
		if res.Err != nil && res.Err.Details != "" {
			fmt.Fprintf(p.out, "  %s%s%s\n", Gray, res.Err.Details, Reset)
		}
	}
	p.mu.Unlock()

	p.doneCh <- res
}

func (p *StreamPrinter) drawTransient(text string) {
	fmt.Fprintf(p.out, "\r\033[K  %s⟳%s %s", Yellow, Reset, clip(text, transientWidth))
	p.transient = true
}

func (p *StreamPrinter) clearTransient() {
	if p.transient {
		fmt.Fprint(p.out, "\r\033[K")
		p.transient = false
	}
}

// itemLine renders one settled log entry, newline included. Sealed draft
// previews return empty: their text was only ever a transient.
func itemLine(it task.Item) string {
	detail := ""
	if it.Detail != "" {
		detail = fmt.Sprintf(" %s(%s)%s", Dim, it.Detail, Reset)
	}
	switch it.Kind {
	case task.KindDivider:
		return fmt.Sprintf("  %s%s%s\n", Dim, strings.Repeat("─", 40), Reset)
	case task.KindSuccess:
		return fmt.Sprintf("  %s✓%s %s%s\n", Green, Reset, it.Message, detail)
	case task.KindError:
		return fmt.Sprintf("  %s✗%s %s%s\n", Red, Reset, it.Message, detail)
	case task.KindWarning:
		return fmt.Sprintf("  %s!%s %s%s\n", Yellow, Reset, it.Message, detail)
	case task.KindSearch:
		return fmt.Sprintf("  %s⌕%s %s%s\n", Blue, Reset, it.Query, detail)
	case task.KindCrawl:
		return fmt.Sprintf("  %s↳%s %s%s\n", Blue, Reset, it.Message, detail)
	case task.KindStream:
		return ""
	default:
		return fmt.Sprintf("  %s•%s %s%s\n", Cyan, Reset, it.Message, detail)
	}
}

// transientLine renders the redrawable text for an unsettled entry.
func transientLine(it task.Item) string {
	if it.Live {
		stage := it.Stage
		if stage == "" {
			stage = "thinking"
		}
		return fmt.Sprintf("%s: %s", stage, lastLine(it.Message))
	}
	return "Searching: " + it.Query
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
