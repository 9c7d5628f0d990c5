package main

import (
	"fmt"
	"strings"
)

// ANSI color helpers
const (
	violet  = "\033[38;2;139;92;246m"
	amber   = "\033[38;2;245;158;11m"
	green   = "\033[38;5;78m"
	yellow  = "\033[38;5;220m"
	red     = "\033[38;5;196m"
	magenta = "\033[38;5;213m"
	blue    = "\033[38;5;111m"
	gray    = "\033[38;5;242m"
	dimGray = "\033[38;5;238m"
	white   = "\033[1;37m"
	reset   = "\033[0m"
	bold    = "\033[1m"
	dim     = "\033[2m"
)

const quillArt = `                                  ****
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
   ################`

// quill colors the banner art: feather lines gray, nib lines in the
// candidate accent.
func quill(accent string) string {
	var b strings.Builder
	for _, line := range strings.Split(quillArt, "\n") {
		color := gray
		if strings.ContainsAny(line, "+#") {
			color = accent
		}
		b.WriteString(color + line + reset + "\n")
	}
	return b.String()
}

func main() {
	fmt.Println()
	fmt.Println(bold + "═══ VibeBlog palette preview ═══" + reset)

	// ── Banner: nib accent candidates ──
	fmt.Println()
	fmt.Println(dim + "Option A: violet nib (current)" + reset)
	fmt.Println()
	fmt.Print(quill(violet))
	fmt.Println()
	fmt.Println(white + "VibeBlog CLI " + gray + "v0.1.0" + reset)
	fmt.Println(gray + "localhost:9444 · default style" + reset)

	fmt.Println()
	fmt.Println(dim + "Option B: amber nib" + reset)
	fmt.Println()
	fmt.Print(quill(amber))

	// ── Activity log glyphs ──
	fmt.Println()
	fmt.Println(dim + "Activity log glyphs" + reset)
	fmt.Println()
	fmt.Println(yellow + "  ⟳ Drafting the introduction" + reset)
	fmt.Println(green + "  ✓ Outline accepted" + reset)
	fmt.Println(red + "  ✗ Could not open the event stream" + reset)
	fmt.Println(yellow + "  ! Generation cancelled" + reset)
	fmt.Println(blue + "  ⌕ golang generics tutorial" + reset + " " + gray + "12 results" + reset)
	fmt.Println(blue + "  ↳ go.dev/blog/generics" + reset)
	fmt.Println(dimGray + "  " + strings.Repeat("─", 40) + reset)

	// ── Outline checkpoint ──
	fmt.Println()
	fmt.Println(dim + "Outline checkpoint" + reset)
	fmt.Println()
	fmt.Println(magenta + bold + "  Outline: Why SQLite is enough" + reset)
	fmt.Println()
	fmt.Println("  " + violet + " 1." + reset + " The case for boring storage")
	fmt.Println(gray + "      One process, one file, zero operations." + reset)
	fmt.Println("  " + violet + " 2." + reset + " Where it actually breaks down")
	fmt.Println("  " + violet + " 3." + reset + " Migration paths that keep working")
	fmt.Println()
	fmt.Println(gray + "  " + bold + "a" + reset + gray + " accept   " + bold + "e" + reset + gray + " edit with a note   " + bold + "Esc" + reset + gray + " cancel" + reset)

	fmt.Println()
	fmt.Println(dim + "Tweak the constants and rerun to compare." + reset)
	fmt.Println()
}
