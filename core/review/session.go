package review

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/eafmerge/core/eaf"
	"github.com/FocuswithJustin/eafmerge/core/errors"
)

// Action is a reviewer's answer to one flagged word.
type Action int

const (
	// Accept replaces the word in the current value.
	Accept Action = iota
	// AcceptAll replaces the word here and in every later value.
	AcceptAll
	// Reject keeps the word in the current value.
	Reject
	// RejectAll keeps the word and stops flagging it.
	RejectAll
	// Skip keeps the word and moves on to the next value.
	Skip
)

func (a Action) String() string {
	switch a {
	case Accept:
		return "accept"
	case AcceptAll:
		return "accept-all"
	case Reject:
		return "reject"
	case RejectAll:
		return "reject-all"
	case Skip:
		return "skip"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Decision answers an Issue. Replacement is required for Accept and
// AcceptAll.
type Decision struct {
	Action      Action
	Replacement string
}

// Issue is a word the dictionary does not know.
type Issue struct {
	Index       int // position of the value in the session
	Total       int // number of values in the session
	Value       string
	Word        string
	Suggestions []string
}

// Correction maps an original annotation value to its reviewed form.
type Correction struct {
	Original string
	Fixed    string
}

// wordPattern matches the tokens that are checked. Hyphens are kept so
// incomplete words ("wor-") can be recognized and left alone.
var wordPattern = regexp.MustCompile(`[\w'-]+`)

// Session walks the words of a list of values and collects decisions. The
// auto-replace and skip sets live for the whole session.
type Session struct {
	dict        Dictionary
	original    []string
	fixed       []string
	autoReplace map[string]string
	skip        map[string]bool

	line    int      // current value
	words   []string // words of the current value
	word    int      // next word to examine
	decided map[string]bool
	pending *Issue
}

// NewSession starts a review of values.
func NewSession(dict Dictionary, values []string) *Session {
	s := &Session{
		dict:        dict,
		original:    values,
		fixed:       append([]string(nil), values...),
		autoReplace: make(map[string]string),
		skip:        make(map[string]bool),
		line:        -1,
	}
	s.nextLine()
	return s
}

// Next returns the next word needing a decision, applying earlier
// accept-all answers on the way. It returns false when the review is done.
// Calling Next again before Decide returns the same Issue.
func (s *Session) Next() (Issue, bool) {
	if s.pending != nil {
		return *s.pending, true
	}
	for s.line < len(s.fixed) {
		for s.word < len(s.words) {
			w := s.words[s.word]
			s.word++
			if s.ignored(w) {
				continue
			}
			if repl, ok := s.autoReplace[w]; ok {
				s.fixed[s.line] = replaceWord(s.fixed[s.line], w, repl)
				s.decided[w] = true
				continue
			}
			if s.dict.Check(w) {
				continue
			}
			s.pending = &Issue{
				Index:       s.line,
				Total:       len(s.fixed),
				Value:       s.fixed[s.line],
				Word:        w,
				Suggestions: s.dict.Suggest(w),
			}
			return *s.pending, true
		}
		s.nextLine()
	}
	return Issue{}, false
}

// Decide answers the Issue last returned by Next.
func (s *Session) Decide(d Decision) error {
	if s.pending == nil {
		return errors.NewValidation("decision", "no word is awaiting review")
	}
	w := s.pending.Word
	switch d.Action {
	case Accept, AcceptAll:
		repl := strings.TrimSpace(d.Replacement)
		if repl == "" {
			return errors.NewValidation("replacement", "accepting a correction needs a replacement")
		}
		s.fixed[s.line] = replaceWord(s.fixed[s.line], w, repl)
		if d.Action == AcceptAll {
			s.autoReplace[w] = repl
		}
	case Reject:
	case RejectAll:
		s.skip[w] = true
	case Skip:
		s.word = len(s.words)
	default:
		return errors.NewValidation("decision", fmt.Sprintf("unknown action %d", int(d.Action)))
	}
	s.decided[w] = true
	s.pending = nil
	return nil
}

// Done reports whether every value has been reviewed.
func (s *Session) Done() bool {
	if s.pending != nil {
		return false
	}
	_, more := s.Next()
	return !more
}

// Corrections returns the values changed so far, in order.
func (s *Session) Corrections() []Correction {
	var out []Correction
	for i, v := range s.fixed {
		if v != s.original[i] {
			out = append(out, Correction{Original: s.original[i], Fixed: v})
		}
	}
	return out
}

// AutoReplace returns a copy of the accept-all answers.
func (s *Session) AutoReplace() map[string]string {
	out := make(map[string]string, len(s.autoReplace))
	for k, v := range s.autoReplace {
		out[k] = v
	}
	return out
}

func (s *Session) nextLine() {
	s.line++
	s.word = 0
	s.words = nil
	s.decided = make(map[string]bool)
	if s.line < len(s.fixed) {
		s.words = Words(s.fixed[s.line])
	}
}

// ignored reports whether w is left out of the review: incomplete words,
// reject-all words and words already answered in this value.
func (s *Session) ignored(w string) bool {
	return strings.Contains(w, "-") || s.skip[w] || s.decided[w]
}

// Words returns the tokens of value that are spell-checked. Transcription
// codes in braces such as {LG} are left out.
func Words(value string) []string {
	var out []string
	for _, loc := range wordPattern.FindAllStringIndex(value, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && value[start-1] == '{' && end < len(value) && value[end] == '}' {
			continue
		}
		out = append(out, value[start:end])
	}
	return out
}

// replaceWord replaces whole-word occurrences of word in value.
func replaceWord(value, word, repl string) string {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.ReplaceAllLiteralString(value, repl)
}

// Review runs a session to completion, asking decide for every flagged word.
func Review(s *Session, decide func(Issue) (Decision, error)) error {
	for {
		issue, ok := s.Next()
		if !ok {
			return nil
		}
		d, err := decide(issue)
		if err != nil {
			return err
		}
		if err := s.Decide(d); err != nil {
			return err
		}
	}
}

// Apply writes corrections into the annotation values of doc and returns the
// number of annotations changed.
func Apply(doc *eaf.Document, corrections []Correction) int {
	fixed := make(map[string]string, len(corrections))
	for _, c := range corrections {
		fixed[c.Original] = c.Fixed
	}
	changed := 0
	for _, a := range doc.Annotations() {
		if f, ok := fixed[a.Value()]; ok {
			a.SetValue(f)
			changed++
		}
	}
	return changed
}
