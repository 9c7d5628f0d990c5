package task

import (
	"strings"
	"sync"
)

// Sections are joined with a blank line, same as the server's final artifact.
const sectionSeparator = "\n\n"

// Assembler rebuilds the full document from section-scoped writing chunks.
// A chunk either appends a delta to the active section or replaces the
// active section's text with an absolute snapshot; a chunk naming a new
// section seals the current one. Sectionless streams (every chunk with an
// empty title) collapse to plain accumulation.
type Assembler struct {
	mu          sync.Mutex
	completed   []string
	activeTitle string
	activeText  string
	finalDoc    string
	hasFinal    bool
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Apply consumes one writing chunk. When absolute is true, text replaces the
// active section wholesale; prior deltas for that section are discarded, not
// combined.
func (a *Assembler) Apply(sectionTitle, text string, absolute bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if sectionTitle != "" && sectionTitle != a.activeTitle {
		if a.activeTitle != "" {
			a.sealLocked()
		}
		a.activeTitle = sectionTitle
	}
	if absolute {
		a.activeText = text
	} else {
		a.activeText += text
	}
}

func (a *Assembler) sealLocked() {
	if a.activeText != "" {
		a.completed = append(a.completed, a.activeText)
	}
	a.activeText = ""
}

// SetFinal records the backend's authoritative document, which takes
// precedence over the assembled buffer from then on.
func (a *Assembler) SetFinal(doc string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalDoc = doc
	a.hasFinal = true
}

// Document returns the full text: completed sections joined by the
// separator, followed by the active section, or the backend's final
// document once one was set.
func (a *Assembler) Document() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.documentLocked()
}

func (a *Assembler) documentLocked() string {
	if a.hasFinal {
		return a.finalDoc
	}
	completed := strings.Join(a.completed, sectionSeparator)
	switch {
	case completed == "":
		return a.activeText
	case a.activeText == "":
		return completed
	}
	return completed + sectionSeparator + a.activeText
}

// CompletedText returns only the sealed sections.
func (a *Assembler) CompletedText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.completed, sectionSeparator)
}

// ActiveSection returns the title and text of the section currently being
// written.
func (a *Assembler) ActiveSection() (title, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeTitle, a.activeText
}

// SealedCount returns how many sections have been finalized.
func (a *Assembler) SealedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.completed)
}

func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completed = nil
	a.activeTitle = ""
	a.activeText = ""
	a.finalDoc = ""
	a.hasFinal = false
}
