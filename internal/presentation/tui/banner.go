package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var bannerLines = []string{
	"  _        _                            ",
	" | |_ _ __(_) __ _  __ _  ___ _ __ ___  ",
	" | __| '__| |/ _` |/ _` |/ _ \\ '_ ` _ \\ ",
	" | |_| |  | | (_| | (_| |  __/ | | | | |",
	"  \\__|_|  |_|\\__,_|\\__, |\\___|_| |_| |_|",
	"                   |___/                ",
}

// Teal to green, one shade per line.
var bannerColors = []string{"#2dd4bf", "#14b8a6", "#10b981", "#22c55e", "#4ade80", "#86efac"}

// PrintBanner writes the colored banner and version to w. Colors degrade to
// whatever the terminal supports.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, termenv.String(line).Foreground(p.Color(bannerColors[i])))
	}
	fmt.Fprintln(w, termenv.String("  conversational triage simulator "+version).Faint())
	fmt.Fprintln(w)
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
