package app

import (
	"context"
	"duchain/internal/core/errors"
	"duchain/internal/engine/duchain"
	"duchain/internal/engine/ident"
	"strings"
)

// Query asks what Identifier, read as a declaration of Kind, refers to at
// Line of File.
type Query struct {
	File       string
	Line       int
	Identifier string
	Kind       string
}

// Result describes the declaration a Query resolved to. Found is false when
// nothing matched; that is not an error.
type Result struct {
	Found       bool   `json:"found"`
	Declaration string `json:"declaration,omitempty"`
	Qualified   string `json:"qualified,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Line        int    `json:"line,omitempty"`
	Exception   bool   `json:"exception,omitempty"`
	AliasOf     string `json:"alias_of,omitempty"`
}

// Lookup resolves q from the innermost context enclosing q.Line. A file
// that is not loaded yet is indexed first.
func (a *App) Lookup(ctx context.Context, q Query) (Result, error) {
	kind, err := duchain.ParseDeclarationType(q.Kind)
	if err != nil {
		return Result{}, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid lookup kind"), errors.CtxKind, q.Kind)
	}
	id := queryIdentifier(q.Identifier, kind)
	if id.IsEmpty() {
		return Result{}, errors.New(errors.CodeValidationError, "identifier must not be empty")
	}

	uid := unitID(q.File)
	unit, ok := a.store.Unit(uid)
	if !ok {
		a.indexMu.Lock()
		unit, err = a.indexer.IndexFile(ctx, string(uid))
		a.indexMu.Unlock()
		if err != nil {
			return Result{}, err
		}
	}

	var c *duchain.Context
	a.store.Read(func() { c = unit.ContextAt(q.Line) })

	decl, err := a.Resolver().Resolve(ctx, c, id, kind)
	if err != nil {
		return Result{}, err
	}
	if decl == nil {
		return Result{}, nil
	}
	return a.describe(decl), nil
}

// queryIdentifier normalizes user input the way the indexer stores names:
// class, function and namespace names are case-insensitive, variables drop
// their sigil.
func queryIdentifier(raw string, kind duchain.DeclarationType) ident.QualifiedIdentifier {
	raw = strings.TrimSpace(raw)
	switch kind {
	case duchain.GlobalVariableDeclarationType:
		return ident.New(strings.TrimPrefix(raw, "$"))
	case duchain.ConstantDeclarationType:
		return ident.Parse(raw)
	default:
		return ident.Parse(raw).Lower()
	}
}

func (a *App) describe(decl *duchain.Declaration) Result {
	res := Result{
		Found:       true,
		Declaration: decl.String(),
		Qualified:   decl.QualifiedIdentifier().String(),
		Unit:        string(decl.UnitID()),
		Line:        decl.Line(),
	}
	if target := a.Resolver().ResolveTraitAlias(decl); target != nil {
		res.AliasOf = target.String()
		res.Unit = string(target.UnitID())
		res.Line = target.Line()
	}
	if decl.IsClassLike() {
		res.Exception = a.indexer.IsException(decl)
	}
	return res
}
