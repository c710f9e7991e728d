package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Verdict prints a coloured PASS or FAIL line followed by detail.
func Verdict(w io.Writer, ok bool, detail string) {
	p := termenv.ColorProfile()
	if !IsTerminal(w) {
		p = termenv.Ascii
	}
	label := p.String(" PASS ").Foreground(p.Color("0")).Background(p.Color("#22c55e")).Bold()
	if !ok {
		label = p.String(" FAIL ").Foreground(p.Color("15")).Background(p.Color("#ef4444")).Bold()
	}
	fmt.Fprintf(w, "%s %s\n", label, detail)
}

// Stat prints an aligned key/value line.
func Stat(w io.Writer, key string, value any) {
	p := termenv.ColorProfile()
	if !IsTerminal(w) {
		p = termenv.Ascii
	}
	fmt.Fprintf(w, "  %s %v\n", p.String(fmt.Sprintf("%-18s", key)).Foreground(p.Color("#94a3b8")), value)
}
