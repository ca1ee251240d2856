// Package explorer is an interactive terminal navigator over the
// declaration chain: it resolves identifiers typed by the user from a fixed
// position in a source file.
package explorer

import (
	"context"
	"duchain/internal/core/app"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	foundStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	missingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// Looker answers lookups; *app.App implements it.
type Looker interface {
	Lookup(ctx context.Context, q app.Query) (app.Result, error)
}

type focus int

const (
	focusInput focus = iota
	focusResults
)

type item struct {
	title, desc string
	result      app.Result
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + " " + i.desc }

type resultMsg struct {
	query  app.Query
	result app.Result
	err    error
}

type editorClosedMsg struct {
	target string
	err    error
}

type model struct {
	looker Looker
	file   string
	line   int

	input   textinput.Model
	results list.Model
	focus   focus
	status  string
}

func newModel(looker Looker, file string, line int) model {
	in := textinput.New()
	in.Placeholder = "kind identifier [line]   e.g. class parent"
	in.Prompt = "> "
	in.Focus()

	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Resolutions"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)

	return model{
		looker:  looker,
		file:    file,
		line:    line,
		input:   in,
		results: l,
		status:  "enter a lookup, tab to browse results, ctrl+c to quit",
	}
}

// parseInput reads "kind identifier [line]".
func parseInput(text string, defaultLine int) (kind, identifier string, line int, err error) {
	fields := strings.Fields(text)
	if len(fields) < 2 || len(fields) > 3 {
		return "", "", 0, fmt.Errorf("expected: kind identifier [line]")
	}
	line = defaultLine
	if len(fields) == 3 {
		line, err = strconv.Atoi(fields[2])
		if err != nil || line < 1 {
			return "", "", 0, fmt.Errorf("invalid line %q", fields[2])
		}
	}
	return fields[0], fields[1], line, nil
}

func (m model) lookupCmd(q app.Query) tea.Cmd {
	looker := m.looker
	return func() tea.Msg {
		res, err := looker.Lookup(context.Background(), q)
		return resultMsg{query: q, result: res, err: err}
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.results.SetSize(msg.Width-h, msg.Height-v-6)
		return m, nil
	case resultMsg:
		return m.addResult(msg), nil
	case editorClosedMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(fmt.Sprintf("editor failed for %s: %v", msg.target, msg.err))
		} else {
			m.status = statusStyle.Render("returned from " + msg.target)
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus == focusInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.results, cmd = m.results.Update(msg)
	}
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.focus == focusInput {
			m.focus = focusResults
			m.input.Blur()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return m, nil
	}

	if m.focus == focusResults {
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "o", "enter":
			selected, ok := m.results.SelectedItem().(item)
			if !ok || !selected.result.Found {
				m.status = statusStyle.Render("no source location for this entry")
				return m, nil
			}
			return m, openInEditor(selected.result.Unit, selected.result.Line)
		}
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}

	if msg.Type == tea.KeyEnter {
		kind, identifier, line, err := parseInput(m.input.Value(), m.line)
		if err != nil {
			m.status = errorStyle.Render(err.Error())
			return m, nil
		}
		m.input.SetValue("")
		q := app.Query{File: m.file, Line: line, Identifier: identifier, Kind: kind}
		m.status = statusStyle.Render(fmt.Sprintf("resolving %s %s at line %d", kind, identifier, line))
		return m, m.lookupCmd(q)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) addResult(msg resultMsg) model {
	title := fmt.Sprintf("%s %s @%d", msg.query.Kind, msg.query.Identifier, msg.query.Line)
	var desc string
	switch {
	case msg.err != nil:
		desc = "error: " + msg.err.Error()
		m.status = errorStyle.Render("lookup failed")
	case !msg.result.Found:
		desc = "no such symbol here"
		m.status = missingStyle.Render("not found")
	default:
		desc = fmt.Sprintf("%s  %s:%d", msg.result.Declaration, msg.result.Unit, msg.result.Line)
		if msg.result.AliasOf != "" {
			desc += "  alias of " + msg.result.AliasOf
		}
		if msg.result.Exception {
			desc += "  [exception]"
		}
		m.status = foundStyle.Render("found " + msg.result.Qualified)
	}

	items := append([]list.Item{item{title: title, desc: desc, result: msg.result}}, m.results.Items()...)
	m.results.SetItems(items)
	m.results.Select(0)
	return m
}

func (m model) View() string {
	header := fmt.Sprintf("%s\n%s\n",
		titleStyle("duchain explorer"),
		statusStyle.Render(fmt.Sprintf("%s line %d", filepath.Base(m.file), m.line)),
	)
	return docStyle.Render(header + "\n" + m.input.View() + "\n" + m.status + "\n\n" + m.results.View())
}

func openInEditor(file string, line int) tea.Cmd {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	args := []string{file}
	if strings.Contains(editor, "vim") || strings.Contains(editor, "nvim") || strings.HasSuffix(editor, "/vi") || editor == "vi" {
		args = []string{fmt.Sprintf("+%d", line), file}
	}
	label := fmt.Sprintf("%s:%d", file, line)
	return tea.ExecProcess(exec.Command(editor, args...), func(err error) tea.Msg {
		return editorClosedMsg{target: label, err: err}
	})
}

// Run starts the explorer for file, resolving from line unless a lookup
// names its own line.
func Run(looker Looker, file string, line int) error {
	p := tea.NewProgram(newModel(looker, file, line), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
