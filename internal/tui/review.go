// Package tui is the terminal front end of the spelling review.
//
// The Model follows the bubbletea loop: a key press becomes a message, Update
// applies it to the review session, and View renders the word under review.
package tui

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/FocuswithJustin/eafmerge/core/review"
)

// reviewState is the prompt currently shown.
type reviewState int

const (
	stateChoose reviewState = iota // pick a suggestion, edit, reject or skip
	stateEdit                      // typing a replacement
	stateScope                     // this value only, or every later value
	stateDone
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	wordStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			Underline(true)
	valueStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1)
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// Model is the review screen.
type Model struct {
	session     *review.Session
	issue       review.Issue
	state       reviewState
	input       textinput.Model
	replacement string
	aborted     bool
	err         error
	width       int
}

// New returns a Model positioned on the first flagged word.
func New(s *review.Session) *Model {
	ti := textinput.New()
	ti.Placeholder = "replacement"
	ti.CharLimit = 128
	ti.Prompt = "> "

	m := &Model{session: s, input: ti}
	m.advance()
	return m
}

// Aborted reports whether the reviewer quit before the end.
func (m *Model) Aborted() bool { return m.aborted }

// Err returns the last error from the session.
func (m *Model) Err() error { return m.err }

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.state == stateDone {
		return tea.Quit
	}
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.aborted = true
			return m, tea.Quit
		}
		switch m.state {
		case stateChoose:
			return m.updateChoose(msg)
		case stateEdit:
			return m.updateEdit(msg)
		case stateScope:
			return m.updateScope(msg)
		}
	}
	if m.state == stateEdit {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateChoose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "esc":
		m.aborted = true
		return m, tea.Quit
	case "n":
		return m.decide(review.Decision{Action: review.Reject})
	case "N":
		return m.decide(review.Decision{Action: review.RejectAll})
	case "s":
		return m.decide(review.Decision{Action: review.Skip})
	case "e":
		m.state = stateEdit
		m.input.Reset()
		m.input.SetValue(m.issue.Word)
		m.input.CursorEnd()
		return m, m.input.Focus()
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(m.issue.Suggestions) {
		m.replacement = m.issue.Suggestions[n-1]
		m.state = stateScope
	}
	return m, nil
}

func (m *Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.state = stateChoose
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			return m, nil
		}
		m.input.Blur()
		m.replacement = value
		m.state = stateScope
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateScope(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "a":
		return m.decide(review.Decision{Action: review.AcceptAll, Replacement: m.replacement})
	case "n", "enter", "o":
		return m.decide(review.Decision{Action: review.Accept, Replacement: m.replacement})
	case "esc":
		m.state = stateChoose
	}
	return m, nil
}

func (m *Model) decide(d review.Decision) (tea.Model, tea.Cmd) {
	if err := m.session.Decide(d); err != nil {
		m.err = err
		m.state = stateChoose
		return m, nil
	}
	m.err = nil
	m.replacement = ""
	if m.advance() {
		return m, nil
	}
	return m, tea.Quit
}

// advance moves to the next flagged word and reports whether there is one.
func (m *Model) advance() bool {
	issue, ok := m.session.Next()
	if !ok {
		m.state = stateDone
		return false
	}
	m.issue = issue
	m.state = stateChoose
	return true
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.state == stateDone {
		return titleStyle.Render("SPELLCHECK · done") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("SPELLCHECK · value %d/%d", m.issue.Index+1, m.issue.Total)))
	b.WriteString("\n")
	box := valueStyle
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	b.WriteString(box.Render(highlight(m.issue.Value, m.issue.Word)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Unknown word: %s\n", wordStyle.Render(m.issue.Word))

	switch m.state {
	case stateChoose:
		if len(m.issue.Suggestions) == 0 {
			b.WriteString("No suggestions.\n")
		}
		for i, s := range m.issue.Suggestions {
			fmt.Fprintf(&b, "  %d: %s\n", i+1, s)
		}
		b.WriteString(hintStyle.Render("1-9 pick · e edit · n keep · N keep all · s skip value · q quit"))
	case stateEdit:
		b.WriteString(m.input.View())
		b.WriteString(hintStyle.Render("enter confirm · esc back"))
	case stateScope:
		fmt.Fprintf(&b, "Replace with %q\n", m.replacement)
		b.WriteString(hintStyle.Render("y every later value · n this value only · esc back"))
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(m.err.Error()))
	}
	return b.String()
}

func highlight(value, word string) string {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.ReplaceAllStringFunc(value, func(w string) string {
		return wordStyle.Render(w)
	})
}

// Run shows the review on the given terminal streams until the session is
// done or the reviewer quits. It reports whether the reviewer quit early.
func Run(s *review.Session, in io.Reader, out io.Writer) (bool, error) {
	m := New(s)
	final, err := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return false, err
	}
	fm := final.(*Model)
	return fm.Aborted(), nil
}
