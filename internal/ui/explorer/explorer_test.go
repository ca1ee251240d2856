package explorer

import (
	"context"
	"duchain/internal/core/app"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeLooker struct {
	queries []app.Query
	result  app.Result
	err     error
}

func (f *fakeLooker) Lookup(_ context.Context, q app.Query) (app.Result, error) {
	f.queries = append(f.queries, q)
	return f.result, f.err
}

func typeText(t *testing.T, m model, text string) model {
	t.Helper()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return updated.(model)
}

func TestParseInput(t *testing.T) {
	kind, id, line, err := parseInput("class parent", 7)
	if err != nil || kind != "class" || id != "parent" || line != 7 {
		t.Fatalf("unexpected parse: %q %q %d %v", kind, id, line, err)
	}
	_, _, line, err = parseInput("  function  strlen  12 ", 7)
	if err != nil || line != 12 {
		t.Fatalf("expected explicit line 12, got %d %v", line, err)
	}
	for _, bad := range []string{"", "class", "class a b c", "class a zero", "class a 0"} {
		if _, _, _, err := parseInput(bad, 1); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}

func TestModel_LookupFlow(t *testing.T) {
	looker := &fakeLooker{result: app.Result{
		Found:       true,
		Declaration: "class Base",
		Qualified:   "app::base",
		Unit:        "/src/Base.php",
		Line:        4,
		Exception:   true,
	}}
	m := newModel(looker, "/src/Child.php", 6)
	m = typeText(t, m, "class parent")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(model)
	if cmd == nil {
		t.Fatal("expected a lookup command")
	}
	if m.input.Value() != "" {
		t.Errorf("expected the input to be cleared, got %q", m.input.Value())
	}

	msg := cmd()
	if len(looker.queries) != 1 {
		t.Fatalf("expected one lookup, got %d", len(looker.queries))
	}
	q := looker.queries[0]
	if q.File != "/src/Child.php" || q.Line != 6 || q.Kind != "class" || q.Identifier != "parent" {
		t.Fatalf("unexpected query %+v", q)
	}

	updated, _ = m.Update(msg)
	m = updated.(model)
	items := m.results.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 result item, got %d", len(items))
	}
	desc := items[0].(item).Description()
	if !strings.Contains(desc, "class Base") || !strings.Contains(desc, "/src/Base.php:4") || !strings.Contains(desc, "[exception]") {
		t.Errorf("unexpected description %q", desc)
	}
}

func TestModel_NotFoundAndErrors(t *testing.T) {
	m := newModel(&fakeLooker{}, "/src/a.php", 1)

	updated, _ := m.Update(resultMsg{query: app.Query{Kind: "class", Identifier: "nope", Line: 1}})
	m = updated.(model)
	updated, _ = m.Update(resultMsg{query: app.Query{Kind: "macro", Identifier: "x", Line: 1}, err: errors.New("unknown declaration type")})
	m = updated.(model)

	items := m.results.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if got := items[0].(item).Description(); !strings.HasPrefix(got, "error:") {
		t.Errorf("newest entry should be the error, got %q", got)
	}
	if got := items[1].(item).Description(); got != "no such symbol here" {
		t.Errorf("unexpected not-found description %q", got)
	}
}

func TestModel_InvalidInputAndFocus(t *testing.T) {
	m := newModel(&fakeLooker{}, "/src/a.php", 1)
	m = typeText(t, m, "class")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(model)
	if cmd != nil {
		t.Error("invalid input must not start a lookup")
	}
	if !strings.Contains(m.status, "expected") {
		t.Errorf("expected a usage hint, got %q", m.status)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(model)
	if m.focus != focusResults {
		t.Fatal("expected tab to focus the results")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(model)
	if !strings.Contains(m.status, "no source location") {
		t.Errorf("expected a hint for an empty selection, got %q", m.status)
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected q to quit from the results panel")
	}
}
