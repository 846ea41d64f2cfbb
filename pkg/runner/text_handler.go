package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/triagem/pkg/domain"
)

// TextHandler talks to a person through plain lines of text.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption configures a TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer sets the renderer applied to bot messages.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler over r and w, defaulting to the
// process's standard streams.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// initPump starts a reader goroutine so Input can honor cancellation
// while a read is blocked.
func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

func (h *TextHandler) pump() {
	defer close(h.inputChan)
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			return
		}
	}
}

func (h *TextHandler) Output(_ context.Context, turn *Turn) (bool, error) {
	for _, m := range turn.Messages {
		switch m.Origin {
		case domain.OriginBot:
			fmt.Fprintln(h.Writer, h.render(m.Text))
		case domain.OriginSystem:
			fmt.Fprintf(h.Writer, "[System] %s\n", m.Text)
		}
	}

	state := turn.State
	if state == nil {
		return false, nil
	}
	switch state.Status {
	case domain.StatusAwaitingMenuChoice:
		for i, o := range state.PendingOptions {
			label := o.Label
			if label == "" {
				label = o.Value
			}
			fmt.Fprintf(h.Writer, "  %d) %s\n", i+1, label)
		}
	case domain.StatusAwaitingConditionChoice:
		for i, c := range state.PendingConditions {
			fmt.Fprintf(h.Writer, "  %d) %s -> %s\n", i+1, c.Describe(), c.NextStepID)
		}
	case domain.StatusAwaitingManualContinue:
		fmt.Fprintln(h.Writer, "(press Enter to continue)")
	}
	return state.Status.Suspended(), nil
}

func (h *TextHandler) render(text string) string {
	if h.Renderer == nil {
		return text
	}
	rendered, err := h.Renderer(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(rendered)
}

func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	fmt.Fprint(h.Writer, "> ")

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-h.inputChan:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimRight(res.text, "\r\n"), nil
	}
}

func (h *TextHandler) SystemOutput(_ context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "[System] %s\n", msg)
	return err
}
