// Package arpabet formats the unknown-word list written by the FAVE aligner
// into a pronunciation dictionary.
//
// Each list line is "word<TAB>suggestions<TAB>source<TAB>rest". A line with
// exactly one suggested transcription becomes "word<TAB>phones". Lines with
// no suggestion or with several (comma separated) are kept as they are for
// manual editing.
package arpabet

import (
	"regexp"
	"strings"

	"github.com/FocuswithJustin/eafmerge/core/errors"
	"github.com/FocuswithJustin/eafmerge/internal/fileutil"
	"github.com/FocuswithJustin/eafmerge/internal/validation"
)

var oneSuggestion = regexp.MustCompile(`^(\S+)\t((?:[^\s,]+ ?)+)\t\S+\t.*`)

// FormatLine rewrites a single-suggestion line and reports whether it did.
func FormatLine(line string) (string, bool) {
	m := oneSuggestion.FindStringSubmatch(line)
	if m == nil {
		return line, false
	}
	return m[1] + "\t" + m[2], true
}

// Format rewrites every line of text. Input lines are split on CRLF, as the
// aligner writes them, and joined with LF.
func Format(text string) (string, int) {
	lines := strings.Split(text, "\r\n")
	n := 0
	for i, line := range lines {
		if out, ok := FormatLine(line); ok {
			lines[i] = out
			n++
		}
	}
	return strings.Join(lines, "\n"), n
}

// FormatFile formats the list at in and writes it to out. It returns the
// number of lines rewritten.
func FormatFile(in, out string) (int, error) {
	data, err := validation.ReadFileLimited(in, validation.MaxFileSize)
	if err != nil {
		return 0, errors.NewIO("read", in, err)
	}
	text, n := Format(string(data))
	if err := fileutil.WriteFileAtomic(out, []byte(text), 0644); err != nil {
		return 0, errors.NewIO("write", out, err)
	}
	return n, nil
}

