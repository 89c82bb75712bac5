package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/essayflow/internal/presentation/tui"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/ports"
)

// EssayTerminator ends essay input when alone on a line.
const EssayTerminator = "."

// ConsoleEngine is what the console needs from the engine besides the
// callbacks handed to its surfaces.
type ConsoleEngine interface {
	Start(ctx context.Context) error
	Session() domain.WorkflowSession
	WaitIdle(ctx context.Context) error
}

// prompt is one queued user interaction. It reports whether the
// conversation is over.
type prompt func(ctx context.Context) (bool, error)

type line struct {
	text string
	eof  bool
}

// Console runs the user surfaces over a line-oriented terminal.
//
// Surfaces are called from engine goroutines, so they only queue a prompt;
// Run executes the queue on the caller's goroutine, which is the only one
// that reads input.
type Console struct {
	in       io.Reader
	out      io.Writer
	markdown func(string) (string, error)
	hints    bool

	mu      sync.Mutex
	pending []prompt
	wake    chan struct{}

	readOnce sync.Once
	lines    chan line

	eng ConsoleEngine
}

var (
	_ ports.EssaySurface    = (*Console)(nil)
	_ ports.FeedbackSurface = (*Console)(nil)
	_ ports.ResultSurface   = (*Console)(nil)
)

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithMarkdown renders feedback through fn.
func WithMarkdown(fn func(string) (string, error)) ConsoleOption {
	return func(c *Console) { c.markdown = fn }
}

// WithHints prints input instructions, for interactive terminals.
func WithHints(on bool) ConsoleOption {
	return func(c *Console) { c.hints = on }
}

// NewConsole reads answers from in and writes prompts to out.
func NewConsole(in io.Reader, out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{
		in:    in,
		out:   out,
		wake:  make(chan struct{}, 1),
		lines: make(chan line),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run starts a session and serves prompts until the user is done, input
// ends or ctx is cancelled.
func (c *Console) Run(ctx context.Context, eng ConsoleEngine) error {
	c.eng = eng
	if err := eng.Start(ctx); err != nil {
		return err
	}
	for {
		p, err := c.next(ctx)
		if err != nil {
			return err
		}
		done, err := p(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// ShowEssayInput implements ports.EssaySurface.
func (c *Console) ShowEssayInput(topic string, submit ports.SubmitFunc) {
	c.push(c.essayPrompt(topic, submit))
}

// ShowFeedback implements ports.FeedbackSurface.
func (c *Console) ShowFeedback(feedback string, retry ports.RetryFunc) {
	c.push(func(ctx context.Context) (bool, error) {
		text := feedback
		if c.markdown != nil {
			if rendered, err := c.markdown(feedback); err == nil {
				text = rendered
			}
		}
		c.printf("\nYour essay needs improvement:\n%s\n", text)

		yes, eof, err := c.confirm(ctx, "Revise and resubmit? [Y/n] ", true)
		if err != nil || eof || !yes {
			return true, err
		}
		return false, retry(ctx)
	})
}

// ShowResult implements ports.ResultSurface.
func (c *Console) ShowResult(score float64, startNew ports.StartFunc) {
	c.push(func(ctx context.Context) (bool, error) {
		c.printf("\nEssay passed with %s.\n", tui.FormatScore(domain.NodeAggregateScore, score))

		yes, eof, err := c.confirm(ctx, "Start a new session? [y/N] ", false)
		if err != nil || eof || !yes {
			return true, err
		}
		return false, startNew(ctx)
	})
}

func (c *Console) essayPrompt(topic string, submit ports.SubmitFunc) prompt {
	var self prompt
	self = func(ctx context.Context) (bool, error) {
		c.printf("\nTopic: %s\n", topic)
		if c.hints {
			c.printf("Write your essay. Finish with a line containing only %q.\n", EssayTerminator)
		}

		essay, eof, err := c.readEssay(ctx)
		if err != nil {
			return true, err
		}
		if eof && strings.TrimSpace(essay) == "" {
			return true, nil
		}

		if err := submit(ctx, essay); err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			c.printf("Could not submit: %v\n", err)
			if eof {
				return true, nil
			}
			c.push(self)
			return false, nil
		}

		if err := c.eng.WaitIdle(ctx); err != nil {
			return true, err
		}
		if c.eng.Session().Status == domain.MacroWaitingEssay {
			c.printf("The evaluation did not complete. Please submit again.\n")
			if eof {
				return true, nil
			}
			c.push(self)
		}
		return false, nil
	}
	return self
}

func (c *Console) readEssay(ctx context.Context) (string, bool, error) {
	var lines []string
	for {
		l, err := c.readLine(ctx)
		if err != nil {
			return "", false, err
		}
		if strings.TrimRight(l.text, " \t") == EssayTerminator {
			return strings.Join(lines, "\n"), false, nil
		}
		if l.text != "" || !l.eof {
			lines = append(lines, l.text)
		}
		if l.eof {
			return strings.Join(lines, "\n"), true, nil
		}
	}
}

func (c *Console) confirm(ctx context.Context, question string, def bool) (bool, bool, error) {
	c.printf("%s", question)
	l, err := c.readLine(ctx)
	if err != nil {
		return false, false, err
	}
	switch strings.ToLower(strings.TrimSpace(l.text)) {
	case "":
		return def && !l.eof, l.eof, nil
	case "y", "yes":
		return true, false, nil
	default:
		return false, false, nil
	}
}

// readLine returns the next input line. Reading happens on a dedicated
// goroutine so that a blocked terminal never outlives ctx.
func (c *Console) readLine(ctx context.Context) (line, error) {
	c.readOnce.Do(func() { go c.scan() })
	select {
	case l, ok := <-c.lines:
		if !ok {
			return line{eof: true}, nil
		}
		return l, nil
	case <-ctx.Done():
		return line{}, ctx.Err()
	}
}

func (c *Console) scan() {
	defer close(c.lines)
	r := bufio.NewReader(c.in)
	for {
		text, err := r.ReadString('\n')
		text = strings.TrimRight(text, "\r\n")
		if err != nil {
			if text != "" || !errors.Is(err, io.EOF) {
				c.lines <- line{text: text, eof: true}
			}
			return
		}
		c.lines <- line{text: text}
	}
}

func (c *Console) push(p prompt) {
	c.mu.Lock()
	c.pending = append(c.pending, p)
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Console) next(ctx context.Context) (prompt, error) {
	for {
		c.mu.Lock()
		if len(c.pending) > 0 {
			p := c.pending[0]
			c.pending = c.pending[1:]
			c.mu.Unlock()
			return p, nil
		}
		c.mu.Unlock()

		select {
		case <-c.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
