// Package keypress turns a line typed on stdin into context cancellation.
package keypress

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// DefaultKey stops the watch loop when no key is configured
const DefaultKey = "q"

// Listener cancels a context when a line whose first word is Key is read
type Listener struct {
	In  io.Reader
	Key string
}

// New returns a Listener reading from in. An empty key means DefaultKey.
func New(in io.Reader, key string) *Listener {
	if key == "" {
		key = DefaultKey
	}
	return &Listener{In: in, Key: key}
}

// Matches reports whether line requests cancellation
func (l *Listener) Matches(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && fields[0] == l.Key
}

// Listen reads lines until one matches, then calls cancel. It returns nil
// when ctx is done or the input ends, so it can sit in an errgroup next to
// the work it cancels. The read itself cannot be interrupted; a goroutine
// blocked on it is left behind when ctx ends first.
func (l *Listener) Listen(ctx context.Context, cancel context.CancelFunc) error {
	matched := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(l.In)
		for scanner.Scan() {
			if l.Matches(scanner.Text()) {
				close(matched)
				return
			}
		}
		done <- scanner.Err()
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-matched:
		cancel()
		return nil
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to read cancel key: %w", err)
		}
		return nil
	}
}

// Hint returns the instruction to show the user, or "" when f is not a
// terminal and nobody is there to read it.
func (l *Listener) Hint(f *os.File) string {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return ""
	}
	return fmt.Sprintf("Press %s then Enter to stop.", l.Key)
}
