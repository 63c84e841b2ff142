// Package prompt asks the operator yes/no questions before creating or
// destroying state.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirmer answers a yes/no question
type Confirmer interface {
	Confirm(question string) bool
}

// Always answers every question the same way (--yes, scripts, tests)
type Always bool

// Confirm returns the fixed answer
func (a Always) Confirm(string) bool { return bool(a) }

// Func adapts a function to Confirmer
type Func func(question string) bool

// Confirm calls f
func (f Func) Confirm(question string) bool { return f(question) }

// Terminal reads answers line by line from an input stream
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal creates a Terminal prompting on out and reading from in
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}
	return &Terminal{in: br, out: out}
}

// Reader returns the buffered input so other consumers of the same stream
// (the watch cancel key) do not lose buffered bytes
func (t *Terminal) Reader() *bufio.Reader {
	return t.in
}

// Confirm prints question and waits for an answer. Anything but y/yes,
// including EOF, is a no.
func (t *Terminal) Confirm(question string) bool {
	fmt.Fprintf(t.out, "%s (y/N): ", question)
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(t.out)
		return false
	}
	return IsYes(line)
}

// IsYes reports whether an answer is affirmative
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
