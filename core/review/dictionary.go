package review

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FocuswithJustin/eafmerge/core/errors"
)

// MaxSuggestions caps the suggestions offered for one word.
const MaxSuggestions = 9

// maxDistance is the largest edit distance a suggestion may have.
const maxDistance = 2

// Dictionary decides whether a word is spelled correctly.
type Dictionary interface {
	Check(word string) bool
	Suggest(word string) []string
}

// WordList is a Dictionary backed by a list of known words. Lookups are
// case-insensitive.
type WordList struct {
	words map[string]struct{}
	list  []string
}

// NewWordList builds a WordList from words.
func NewWordList(words []string) *WordList {
	w := &WordList{words: make(map[string]struct{}, len(words))}
	for _, word := range words {
		w.Add(word)
	}
	return w
}

// ReadWordList reads one word per line. Blank lines and lines starting with
// '#' are ignored.
func ReadWordList(r io.Reader) (*WordList, error) {
	w := NewWordList(nil)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		w.Add(line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return w, nil
}

// LoadWordList reads the word list at path.
func LoadWordList(path string) (*WordList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	w, err := ReadWordList(f)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	if w.Len() == 0 {
		return nil, errors.NewValidation("dictionary", path+" contains no words")
	}
	return w, nil
}

// Add inserts word.
func (w *WordList) Add(word string) {
	key := strings.ToLower(word)
	if _, ok := w.words[key]; ok {
		return
	}
	w.words[key] = struct{}{}
	w.list = append(w.list, key)
}

// Len returns the number of distinct words.
func (w *WordList) Len() int { return len(w.list) }

// Check reports whether word is known. Numbers are always accepted.
func (w *WordList) Check(word string) bool {
	if isNumber(word) {
		return true
	}
	_, ok := w.words[strings.ToLower(word)]
	return ok
}

// Suggest returns known words within a small edit distance of word, closest
// first. A capitalized word gets capitalized suggestions.
func (w *WordList) Suggest(word string) []string {
	type candidate struct {
		word string
		dist int
	}
	target := strings.ToLower(word)
	var found []candidate
	for _, known := range w.list {
		if d := distance(target, known, maxDistance); d <= maxDistance {
			found = append(found, candidate{known, d})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].dist != found[j].dist {
			return found[i].dist < found[j].dist
		}
		return found[i].word < found[j].word
	})
	if len(found) > MaxSuggestions {
		found = found[:MaxSuggestions]
	}

	capital := startsUpper(word)
	out := make([]string, len(found))
	for i, c := range found {
		out[i] = c.word
		if capital {
			out[i] = capitalize(c.word)
		}
	}
	return out
}

// distance is the Levenshtein distance between a and b, or limit+1 once it
// is known to exceed limit.
func distance(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if abs(len(ra)-len(rb)) > limit {
		return limit + 1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > limit {
			return limit + 1
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
