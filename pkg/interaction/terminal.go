package interaction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Terminal performs the default interactions.
type Terminal interface {
	DisplayMessage(ctx context.Context, interruptor, message string) error
	RequestInput(ctx context.Context, interruptor, description string) (string, error)
	RequestSecretInput(ctx context.Context, interruptor, description string) (string, error)
}

// LineTerminal reads lines from an input stream and writes to an output
// stream. Secret input is read without echo when the input is a terminal.
type LineTerminal struct {
	in  io.Reader
	out io.Writer

	once   sync.Once
	reader *bufio.Reader
}

// NewLineTerminal creates a terminal over in and out.
func NewLineTerminal(in io.Reader, out io.Writer) *LineTerminal {
	return &LineTerminal{in: in, out: out}
}

// StdTerminal returns a terminal over the process's stdin and stderr.
func StdTerminal() *LineTerminal {
	return NewLineTerminal(os.Stdin, os.Stderr)
}

// DisplayMessage writes the message on its own line.
func (t *LineTerminal) DisplayMessage(_ context.Context, interruptor, message string) error {
	_, err := fmt.Fprintln(t.out, label(interruptor)+message)
	return err
}

// RequestInput prompts with description and reads one line.
func (t *LineTerminal) RequestInput(ctx context.Context, interruptor, description string) (string, error) {
	if _, err := fmt.Fprint(t.out, label(interruptor)+description+": "); err != nil {
		return "", err
	}
	return t.readLine(ctx)
}

// RequestSecretInput prompts with description and reads one line without
// echoing it.
func (t *LineTerminal) RequestSecretInput(ctx context.Context, interruptor, description string) (string, error) {
	if _, err := fmt.Fprint(t.out, label(interruptor)+description+": "); err != nil {
		return "", err
	}

	if f, ok := t.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := readAsync(ctx, func() (string, error) {
			b, err := term.ReadPassword(int(f.Fd()))
			return string(b), err
		})
		fmt.Fprintln(t.out)
		return secret, err
	}

	return t.readLine(ctx)
}

func (t *LineTerminal) readLine(ctx context.Context) (string, error) {
	t.once.Do(func() {
		t.reader = bufio.NewReader(t.in)
	})

	return readAsync(ctx, func() (string, error) {
		line, err := t.reader.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		return strings.TrimRight(line, "\r\n"), err
	})
}

// readAsync runs a blocking read and gives up when ctx ends. The read keeps
// its goroutine until the stream delivers a line.
func readAsync(ctx context.Context, read func() (string, error)) (string, error) {
	type result struct {
		value string
		err   error
	}

	done := make(chan result, 1)
	go func() {
		v, err := read()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func label(interruptor string) string {
	if interruptor == "" {
		return ""
	}
	return "[" + interruptor + "] "
}
