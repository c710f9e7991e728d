package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the trialkit banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	if !IsTerminal(w) {
		p = termenv.Ascii
	}
	lines := []struct {
		text  string
		color string
	}{
		{" _        _       _ _    _ _   ", "#2dd4bf"},
		{"| |_ _ __(_) __ _| | | _(_) |_ ", "#22d3ee"},
		{"| __| '__| |/ _` | | |/ / | __|", "#38bdf8"},
		{"| |_| |  | | (_| | |   <| | |_ ", "#60a5fa"},
		{" \\__|_|  |_|\\__,_|_|_|\\_\\_|\\__|", "#818cf8"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, p.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
