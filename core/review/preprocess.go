// Package review normalizes transcription conventions in annotation values
// and drives a word-by-word spelling review against a dictionary.
package review

import (
	"regexp"

	"github.com/FocuswithJustin/eafmerge/core/eaf"
)

// Rule rewrites one transcription convention.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
}

const (
	tens = `twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety`
	ones = `one|two|three|four|five|six|seven|eight|nine`
)

// Rules are applied in order by Preprocess.
var Rules = []Rule{
	{"laugh", regexp.MustCompile(`\(+[lL]augh\w*\)+`), `{LG}`},
	{"clear-throat", regexp.MustCompile(`(?i)\(*clears? +throat\w*\)*`), `{CG}`},
	{"cause", regexp.MustCompile(`\bcos\b`), `'cause`},
	// Only the last hyphen joining two word characters is opened up.
	{"split-hyphen", regexp.MustCompile(`^(.*\w-)(\w.*)$`), `${1} ${2}`},
	{"compound-number", regexp.MustCompile(`(?i)(` + tens + `)-? *(` + ones + `)`), `${1}-${2}`},
}

// Preprocess applies Rules to one annotation value.
func Preprocess(value string) string {
	for _, r := range Rules {
		value = r.Pattern.ReplaceAllString(value, r.Replace)
	}
	return value
}

// PreprocessDocument rewrites every annotation value of doc and returns the
// number of values changed.
func PreprocessDocument(doc *eaf.Document) int {
	changed := 0
	for _, a := range doc.Annotations() {
		v := a.Value()
		if p := Preprocess(v); p != v {
			a.SetValue(p)
			changed++
		}
	}
	return changed
}

// Values returns the distinct annotation values of doc in document order.
func Values(doc *eaf.Document) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range doc.Annotations() {
		v := a.Value()
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
