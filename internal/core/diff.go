package core

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	textSampleSize  = 8192 // bytes inspected by looksText
	controlLimitPct = 10   // max share of control bytes in text
)

// looksText guesses whether data is text: no NUL bytes, valid UTF-8 in the
// sample, and few control characters
func looksText(data []byte) bool {
	if bytes.IndexByte(data, 0) != -1 {
		return false
	}
	sample := data
	if len(sample) > textSampleSize {
		sample = sample[:textSampleSize]
	}
	if !utf8.Valid(sample) {
		return false
	}

	control := 0
	for _, b := range sample {
		if (b < 0x20 && b != '\t' && b != '\n' && b != '\r') || b == 0x7f {
			control++
		}
	}
	return control <= len(sample)*controlLimitPct/100
}

// unifiedDiff renders a line diff from the encrypted content to the current
// one. Binary content is summarized in a single line.
func unifiedDiff(path string, encrypted, current []byte) string {
	if bytes.Equal(encrypted, current) {
		return ""
	}
	if !looksText(encrypted) || !looksText(current) {
		return fmt.Sprintf("Binary file %s has changed\n", path)
	}

	dmp := diffmatchpatch.New()
	from, to := string(encrypted), string(current)
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	patches := dmp.PatchMake(from, diffs)
	if len(patches) == 0 {
		return ""
	}

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s\t(encrypted)\n", path)
	fmt.Fprintf(&out, "+++ %s\t(current)\n", path)
	out.WriteString(dmp.PatchToText(patches))
	return out.String()
}
