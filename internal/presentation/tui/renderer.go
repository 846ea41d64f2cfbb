package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/triagem/pkg/runner"
)

// NewRenderer turns bot messages, which may carry markdown, into ANSI
// output sized for the terminal. A width of 0 disables wrapping.
func NewRenderer(width int) (runner.ContentRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return "", err
		}
		return strings.Trim(out, "\n"), nil
	}, nil
}
