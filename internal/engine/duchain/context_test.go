package duchain

import (
	"duchain/internal/engine/ident"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_ScopeIdentifiers(t *testing.T) {
	f := newFixture(t)
	u := f.unit("a.php", langX)
	top := u.TopContext()
	ns := f.open(u, top, ContextNamespace, `app\models`, u.DeclareNamespace(top, ident.New("app", "models"), 1))
	class, classCtx := f.class(u, ns, "user")
	method := u.DeclareFunction(classCtx, ident.New("save"), FunctionData{Method: true}, 3)
	body := f.open(u, classCtx, ContextOther, "", method)

	assert.True(t, top.ScopeIdentifier().IsEmpty())
	assert.Equal(t, "app::models", ns.ScopeIdentifier().Key())
	assert.Equal(t, "app::models", body.ScopeIdentifier().Key())
	assert.Equal(t, "app::models::user", classCtx.QualifiedScope().Key())
	assert.Equal(t, "app::models::user", class.QualifiedIdentifier().Key())
	assert.Equal(t, "app::models::user::save", method.QualifiedIdentifier().Key())
	assert.Same(t, class, classCtx.Owner())
	assert.Same(t, classCtx, class.InternalContext())
	assert.Same(t, top, body.TopContext())
}

func TestIdentifierWithNamespace(t *testing.T) {
	f := newFixture(t)
	u := f.unit("a.php", langX)
	top := u.TopContext()
	ns := f.open(u, top, ContextNamespace, "app", u.DeclareNamespace(top, ident.New("app"), 1))
	_, classCtx := f.class(u, ns, "widget")
	inner := f.open(u, classCtx, ContextOther, "", nil)

	tests := []struct {
		name string
		base string
		ctx  *Context
		want string
	}{
		{"no namespace", "foo", top, "foo"},
		{"namespace itself", "foo", ns, "app::foo"},
		{"nested walk", "foo", inner, "app::foo"},
		{"qualified base", `sub\foo`, classCtx, "app::sub::foo"},
		{"explicitly global", `\foo`, inner, "::foo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IdentifierWithNamespace(ident.Parse(tt.base), tt.ctx)
			assert.Equal(t, tt.want, got.String())
		})
	}
	assert.Equal(t, "foo", IdentifierWithNamespace(ident.New("foo"), nil).String())
}

func TestContext_FindDeclarationsPriority(t *testing.T) {
	f := newFixture(t)
	u := f.unit("a.php", langX)
	top := u.TopContext()
	_, baseCtx := f.class(u, top, "base")
	baseProp := u.DeclareVariable(baseCtx, ident.New("x"), VariableData{}, 2)
	_, childCtx := f.class(u, top, "child")
	childCtx.AddImportedParent(baseCtx.Ref())
	fn := u.DeclareFunction(childCtx, ident.New("run"), FunctionData{Method: true}, 4)
	body := f.open(u, childCtx, ContextOther, "", fn)
	local := u.DeclareVariable(body, ident.New("x"), VariableData{}, 5)

	var got []*Declaration
	f.store.Read(func() { got = body.FindDeclarations(ident.New("x")) })
	require.Len(t, got, 2)
	assert.Same(t, local, got[0])
	assert.Same(t, baseProp, got[1])

	f.store.Read(func() { got = childCtx.FindDeclarations(ident.New("x")) })
	require.Len(t, got, 1)
	assert.Same(t, baseProp, got[0])

	f.store.Read(func() { got = body.FindDeclarations(ident.New("missing")) })
	assert.Empty(t, got)
}

func TestContext_TopContextUsesFlatTable(t *testing.T) {
	f := newFixture(t)
	u := f.unit("a.php", langX)
	top := u.TopContext()
	ns := f.open(u, top, ContextNamespace, "app", u.DeclareNamespace(top, ident.New("app"), 1))
	class, _ := f.class(u, ns, "widget")

	var got []*Declaration
	f.store.Read(func() { got = top.FindDeclarations(ident.New("app", "widget")) })
	require.Len(t, got, 1)
	assert.Same(t, class, got[0])

	f.store.Read(func() { got = top.FindDeclarations(ident.New("widget")) })
	assert.Empty(t, got)
}

func TestContext_AddImportedParentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	u := f.unit("a.php", langX)
	_, a := f.class(u, u.TopContext(), "a")
	_, b := f.class(u, u.TopContext(), "b")

	assert.True(t, b.AddImportedParent(a.Ref()))
	assert.False(t, b.AddImportedParent(a.Ref()))
	assert.False(t, b.AddImportedParent(b.Ref()))
	assert.Equal(t, []ContextRef{a.Ref()}, b.ImportedParents())
}

func TestUnit_ContextAt(t *testing.T) {
	f := newFixture(t)
	u := f.unit("a.php", langX)
	top := u.TopContext()
	top.SetRange(0, 30)
	_, classCtx := f.class(u, top, "a")
	classCtx.SetRange(2, 20)
	method := u.DeclareFunction(classCtx, ident.New("m"), FunctionData{Method: true}, 4)
	body := f.open(u, classCtx, ContextOther, "", method)
	body.SetRange(4, 8)

	assert.Same(t, top, u.ContextAt(25))
	assert.Same(t, classCtx, u.ContextAt(12))
	assert.Same(t, body, u.ContextAt(6))
}

func TestUnit_OpenContextRejectsInvalidShapes(t *testing.T) {
	f := newFixture(t)
	u := f.unit("a.php", langX)
	other := f.unit("b.php", langX)
	top := u.TopContext()
	fn := u.DeclareFunction(top, ident.New("f"), FunctionData{}, 1)

	_, err := u.OpenContext(top, ContextClass, ident.New("f"), fn)
	assert.Error(t, err)
	_, err = u.OpenContext(top, ContextClass, ident.New("x"), nil)
	assert.Error(t, err)
	_, err = u.OpenContext(other.TopContext(), ContextOther, ident.New(), nil)
	assert.Error(t, err)
	_, err = u.OpenContext(top, ContextGlobal, ident.New(), nil)
	assert.Error(t, err)
}
