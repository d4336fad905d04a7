package tui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/eafmerge/core/errors"
	"github.com/FocuswithJustin/eafmerge/core/review"
)

// ErrQuit is returned by a Prompt decider when the reviewer types q.
var ErrQuit = errors.New("review stopped")

const promptHelp = "number or =word to replace (append ! for every value), n keep, N keep all, s skip value, q quit"

// ParseAnswer turns a typed answer into a Decision for issue.
//
//	3      replace with suggestion 3 in this value
//	3!     replace with suggestion 3 everywhere
//	=word  replace with word in this value
//	=word! replace with word everywhere
//	n, N   keep, keep everywhere
//	s      skip the rest of the value
//	q      stop reviewing
func ParseAnswer(line string, issue review.Issue) (review.Decision, error) {
	line = strings.TrimSpace(line)
	switch line {
	case "n", "no":
		return review.Decision{Action: review.Reject}, nil
	case "N":
		return review.Decision{Action: review.RejectAll}, nil
	case "s":
		return review.Decision{Action: review.Skip}, nil
	case "q":
		return review.Decision{}, ErrQuit
	}

	action := review.Accept
	if strings.HasSuffix(line, "!") {
		action = review.AcceptAll
		line = strings.TrimSuffix(line, "!")
	}
	if word, ok := strings.CutPrefix(line, "="); ok {
		word = strings.TrimSpace(word)
		if word == "" {
			return review.Decision{}, errors.NewValidation("answer", "empty replacement")
		}
		return review.Decision{Action: action, Replacement: word}, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return review.Decision{}, errors.NewValidation("answer", fmt.Sprintf("unrecognized answer %q", line))
	}
	if n < 1 || n > len(issue.Suggestions) {
		return review.Decision{}, errors.NewValidation("answer", fmt.Sprintf("no suggestion %d", n))
	}
	return review.Decision{Action: action, Replacement: issue.Suggestions[n-1]}, nil
}

// Prompt returns a decider for review.Review that asks on out and reads
// answers from in, one per line. Invalid answers are asked again.
func Prompt(in io.Reader, out io.Writer) func(review.Issue) (review.Decision, error) {
	sc := bufio.NewScanner(in)
	return func(issue review.Issue) (review.Decision, error) {
		fmt.Fprintf(out, "\n[%d/%d] %s\nUnknown word: %s\n", issue.Index+1, issue.Total, issue.Value, issue.Word)
		for i, s := range issue.Suggestions {
			fmt.Fprintf(out, "  %d: %s\n", i+1, s)
		}
		for {
			fmt.Fprintf(out, "%s\n> ", promptHelp)
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return review.Decision{}, err
				}
				return review.Decision{}, ErrQuit
			}
			d, err := ParseAnswer(sc.Text(), issue)
			if err == nil || errors.Is(err, ErrQuit) {
				return d, err
			}
			fmt.Fprintln(out, err)
		}
	}
}
