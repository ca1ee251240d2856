package duchain

import (
	"context"
	"duchain/internal/engine/ident"
	"duchain/internal/engine/symtab"
	"testing"

	"github.com/stretchr/testify/require"
)

const langX = "X"

type fixture struct {
	t        *testing.T
	index    *symtab.MemoryIndex
	store    *ChainStore
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	index := symtab.NewMemoryIndex()
	store := NewChainStore(index)
	store.Gate().Open()
	return &fixture{t: t, index: index, store: store, resolver: NewResolver(store, langX)}
}

func (f *fixture) unit(id, language string) *Unit {
	return f.store.NewUnit(UnitID(id), language, []byte("<?php // "+id))
}

func (f *fixture) open(u *Unit, parent *Context, typ ContextType, scope string, owner *Declaration) *Context {
	f.t.Helper()
	c, err := u.OpenContext(parent, typ, ident.Parse(scope), owner)
	require.NoError(f.t, err)
	return c
}

// class declares a class in parent and opens its body context.
func (f *fixture) class(u *Unit, parent *Context, name string) (*Declaration, *Context) {
	f.t.Helper()
	decl := u.DeclareClass(parent, ident.Parse(name), ClassData{PrettyName: name}, 1)
	return decl, f.open(u, parent, ContextClass, name, decl)
}

func (f *fixture) publish(u *Unit) {
	f.t.Helper()
	require.NoError(f.t, f.store.Publish(u))
}

func (f *fixture) resolve(c *Context, id string, kind DeclarationType) *Declaration {
	f.t.Helper()
	d, err := f.resolver.Resolve(context.Background(), c, ident.Parse(id), kind)
	require.NoError(f.t, err)
	return d
}
