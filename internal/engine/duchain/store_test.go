package duchain

import (
	"duchain/internal/core/errors"
	"duchain/internal/engine/ident"
	"duchain/internal/engine/symtab"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainStore_PublishIndexesScopedDeclarations(t *testing.T) {
	f := newFixture(t)
	u := f.unit("a.php", langX)
	top := u.TopContext()
	class, classCtx := f.class(u, top, "widget")
	method := u.DeclareFunction(classCtx, ident.New("render"), FunctionData{Method: true}, 2)
	body := f.open(u, classCtx, ContextOther, "", method)
	u.DeclareVariable(body, ident.New("tmp"), VariableData{}, 3)
	f.publish(u)

	assert.Equal(t, []symtab.IndexedDeclaration{class.Handle()}, f.index.Lookup(ident.New("widget")))
	assert.Equal(t, []symtab.IndexedDeclaration{method.Handle()}, f.index.Lookup(ident.New("widget", "render")))
	assert.Empty(t, f.index.Lookup(ident.New("widget", "tmp")))
	assert.Equal(t, 2, f.index.Len())

	meta, ok := f.store.UnitMeta("a.php")
	require.True(t, ok)
	assert.Equal(t, langX, meta.Language)
	assert.Equal(t, 3, meta.Decls)
	assert.Equal(t, []UnitID{"a.php"}, f.store.Units())
}

func TestChainStore_RepublishReplacesEntries(t *testing.T) {
	f := newFixture(t)
	first := f.unit("a.php", langX)
	f.class(first, first.TopContext(), "old")
	f.publish(first)

	second := f.unit("a.php", langX)
	f.class(second, second.TopContext(), "new")
	f.publish(second)

	assert.Empty(t, f.index.Lookup(ident.New("old")))
	assert.Len(t, f.index.Lookup(ident.New("new")), 1)
	got, ok := f.store.Unit("a.php")
	require.True(t, ok)
	assert.Same(t, second, got)

	f.store.Read(func() {
		assert.False(t, f.store.Alive(first.Declaration(0)))
		assert.True(t, f.store.Alive(second.Declaration(0)))
	})
}

func TestChainStore_UnloadLeavesStaleHandles(t *testing.T) {
	f := newFixture(t)
	u := f.unit("a.php", langX)
	class, _ := f.class(u, u.TopContext(), "widget")
	f.publish(u)

	assert.True(t, f.store.Unload("a.php"))
	assert.False(t, f.store.Unload("a.php"))

	handles := f.index.Lookup(ident.New("widget"))
	require.Equal(t, []symtab.IndexedDeclaration{class.Handle()}, handles)
	_, ok := f.store.UnitMeta("a.php")
	assert.True(t, ok)
	f.store.Read(func() {
		_, live := f.store.Deref(handles[0])
		assert.False(t, live)
	})
}

func TestChainStore_RemoveDropsEntriesAndMeta(t *testing.T) {
	f := newFixture(t)
	u := f.unit("a.php", langX)
	f.class(u, u.TopContext(), "widget")
	f.publish(u)

	require.NoError(t, f.store.Remove("a.php"))
	assert.Empty(t, f.index.Lookup(ident.New("widget")))
	_, ok := f.store.UnitMeta("a.php")
	assert.False(t, ok)
	assert.Empty(t, f.store.Units())
}

func TestChainStore_PublishRejectsForeignUnit(t *testing.T) {
	f := newFixture(t)
	other := NewChainStore(symtab.NewMemoryIndex())
	err := f.store.Publish(other.NewUnit("a.php", langX, nil))
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
	assert.True(t, errors.IsCode(f.store.Publish(nil), errors.CodeValidationError))
}

func TestChainStore_StaleUnitsAfterDependencyChanges(t *testing.T) {
	f := newFixture(t)
	lib := f.unit("lib.php", langX)
	f.class(lib, lib.TopContext(), "base")
	f.publish(lib)

	app := f.unit("app.php", langX)
	_, classCtx := f.class(app, app.TopContext(), "child")
	require.NotNil(t, f.resolve(classCtx, "base", ClassDeclarationType))
	f.publish(app)
	assert.Empty(t, f.store.StaleUnits())
	assert.Contains(t, app.ImportedRevisions(), UnitID("lib.php"))

	lib2 := f.unit("lib.php", langX)
	f.class(lib2, lib2.TopContext(), "base")
	f.publish(lib2)
	assert.Equal(t, []UnitID{"app.php"}, f.store.StaleUnits())
}

func TestChainStore_BuiltinDesignation(t *testing.T) {
	f := newFixture(t)
	f.store.SetBuiltinUnits("builtin://internal.php", "builtin://phpunit.php")

	assert.True(t, f.store.IsInternalUnit("builtin://internal.php"))
	assert.False(t, f.store.IsInternalUnit("builtin://phpunit.php"))
	internal, testFramework := f.store.BuiltinUnits()
	assert.Equal(t, UnitID("builtin://internal.php"), internal)
	assert.Equal(t, UnitID("builtin://phpunit.php"), testFramework)
}

func TestDeclaration_Identity(t *testing.T) {
	f := newFixture(t)
	a := f.unit("a.php", langX)
	b := f.unit("b.php", langX)
	fa := a.DeclareFunction(a.TopContext(), ident.New("helper"), FunctionData{}, 1)
	fb := b.DeclareFunction(b.TopContext(), ident.New("helper"), FunctionData{}, 1)
	va := a.DeclareVariable(a.TopContext(), ident.New("x"), VariableData{}, 2)
	va2 := a.DeclareVariable(a.TopContext(), ident.New("x"), VariableData{}, 3)

	assert.Equal(t, fa.ID(), fb.ID())
	assert.False(t, fa.ID().Direct)
	assert.True(t, va.ID().Direct)
	assert.NotEqual(t, va.ID(), va2.ID())
	assert.Equal(t, "a.php#2", va.ID().String())
}

func TestDeclaration_String(t *testing.T) {
	f := newFixture(t)
	u := f.unit("a.php", langX)
	top := u.TopContext()
	class := u.DeclareClass(top, ident.New("repo"), ClassData{PrettyName: "Repo", ClassType: ClassTypeInterface}, 1)
	abstract := u.DeclareClass(top, ident.New("base"), ClassData{PrettyName: "Base", Modifier: ClassModifierAbstract}, 2)
	fn := u.DeclareFunction(top, ident.New("strlen"), FunctionData{PrettyName: "strlen"}, 3)
	constant := u.DeclareConstant(top, ident.New("PHP_EOL"), 4)
	global := u.DeclareVariable(top, ident.New("_GET"), VariableData{Superglobal: true}, 5)
	alias := u.DeclareNamespaceAlias(top, ident.New("u"), ident.New("vendor", "util"), 6)

	assert.Equal(t, "interface Repo", class.String())
	assert.Equal(t, "abstract class Base", abstract.String())
	assert.Equal(t, "function strlen()", fn.String())
	assert.Equal(t, "const PHP_EOL", constant.String())
	assert.Equal(t, "superglobal $_GET", global.String())
	assert.Equal(t, "use vendor::util as u", alias.String())
	assert.Equal(t, "<nil>", (*Declaration)(nil).String())
}

func TestChainStore_RefsIntoRepublishedUnitAreStale(t *testing.T) {
	f := newFixture(t)
	lib := f.unit("lib.php", langX)
	_, baseCtx := f.class(lib, lib.TopContext(), "base")
	_, traitCtx := f.class(lib, lib.TopContext(), "greets")
	hello := lib.DeclareFunction(traitCtx, ident.New("hello"), FunctionData{Method: true}, 3)
	f.publish(lib)

	app := f.unit("app.php", langX)
	_, childCtx := f.class(app, app.TopContext(), "child")
	childCtx.AddImportedParent(baseCtx.Ref())
	alias := app.DeclareTraitAlias(childCtx, ident.New("hi"), true, TraitAliasData{Target: hello.Ref(), Trait: ident.New("greets")}, 2)
	require.NotNil(t, f.resolve(app.TopContext(), "base", ClassDeclarationType))
	f.publish(app)

	parent := f.resolve(childCtx, "parent", ClassDeclarationType)
	require.NotNil(t, parent)
	assert.Equal(t, "base", parent.QualifiedIdentifier().String())
	assert.Same(t, hello, f.resolver.ResolveTraitAlias(alias))

	// Same names, shifted arena slots.
	lib2 := f.unit("lib.php", langX)
	f.class(lib2, lib2.TopContext(), "zed")
	f.class(lib2, lib2.TopContext(), "base")
	f.publish(lib2)

	assert.Equal(t, []UnitID{"app.php"}, f.store.StaleUnits())
	assert.Nil(t, f.resolve(childCtx, "parent", ClassDeclarationType))
	assert.Nil(t, f.resolver.ResolveTraitAlias(alias))
	f.store.Read(func() {
		assert.Empty(t, childCtx.ImportedParentContexts())
		// Top context edges are not pinned; the unit itself is still imported.
		assert.Len(t, app.TopContext().ImportedParentContexts(), 1)
	})
}
