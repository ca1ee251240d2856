package duchain

import (
	"duchain/internal/engine/ident"
)

// Context is a lexical scope node. Parent, owner and locals are arena
// indices into the owning unit; imported parents may live in other units.
type Context struct {
	unit     *Unit
	index    ContextIndex
	typ      ContextType
	scope    ident.QualifiedIdentifier
	owner    DeclIndex
	parent   ContextIndex
	imports  []ContextRef
	locals   []DeclIndex
	children []ContextIndex

	startLine int
	endLine   int
}

func (c *Context) Unit() *Unit { return c.unit }
func (c *Context) Index() ContextIndex { return c.index }
func (c *Context) Type() ContextType { return c.typ }

func (c *Context) Ref() ContextRef {
	return ContextRef{Unit: c.unit.id, Index: c.index, Revision: c.unit.revision.ID}
}

// LocalScopeIdentifier is the scope this context adds to its parent's, such
// as a namespace or class name. Other contexts add nothing.
func (c *Context) LocalScopeIdentifier() ident.QualifiedIdentifier {
	return c.scope
}

// QualifiedScope is the concatenation of local scopes from the top context
// down to c.
func (c *Context) QualifiedScope() ident.QualifiedIdentifier {
	var chain []*Context
	for cur := c; cur != nil; cur = cur.Parent() {
		chain = append(chain, cur)
	}
	var out ident.QualifiedIdentifier
	for i := len(chain) - 1; i >= 0; i-- {
		out = out.Append(chain[i].scope)
	}
	return out
}

// ScopeIdentifier returns the identifier of the nearest enclosing Namespace
// context, c included, or the empty identifier.
func (c *Context) ScopeIdentifier() ident.QualifiedIdentifier {
	if ns := c.namespace(); ns != nil {
		return ns.scope
	}
	return ident.QualifiedIdentifier{}
}

func (c *Context) namespace() *Context {
	for cur := c; cur != nil; cur = cur.Parent() {
		if cur.typ == ContextNamespace {
			return cur
		}
	}
	return nil
}

// Owner returns the declaration that opened c, or nil.
func (c *Context) Owner() *Declaration {
	return c.unit.Declaration(c.owner)
}

func (c *Context) Parent() *Context {
	return c.unit.Context(c.parent)
}

func (c *Context) TopContext() *Context {
	return c.unit.TopContext()
}

func (c *Context) IsTop() bool {
	return c.index == TopContextIndex
}

// ImportedParents returns the import edges in registration order.
func (c *Context) ImportedParents() []ContextRef {
	out := make([]ContextRef, len(c.imports))
	copy(out, c.imports)
	return out
}

// ImportedParentContexts dereferences the import edges, skipping edges into
// units that are no longer loaded. The chain lock must be held.
func (c *Context) ImportedParentContexts() []*Context {
	out := make([]*Context, 0, len(c.imports))
	for _, ref := range c.imports {
		if imported := c.unit.resolveContext(ref); imported != nil {
			out = append(out, imported)
		}
	}
	return out
}

// AddImportedParent records ref as an imported parent. Registering an edge
// twice is a no-op and reports false. The chain lock must be held
// exclusively, or the unit must still be unpublished.
func (c *Context) AddImportedParent(ref ContextRef) bool {
	if ref.Unit == c.unit.id && ref.Index == c.index {
		return false
	}
	for _, existing := range c.imports {
		if existing == ref {
			return false
		}
	}
	c.imports = append(c.imports, ref)
	return true
}

func (c *Context) LocalDeclarations() []*Declaration {
	out := make([]*Declaration, 0, len(c.locals))
	for _, idx := range c.locals {
		out = append(out, c.unit.decls[idx])
	}
	return out
}

func (c *Context) Children() []*Context {
	out := make([]*Context, 0, len(c.children))
	for _, idx := range c.children {
		out = append(out, c.unit.contexts[idx])
	}
	return out
}

func (c *Context) SetRange(start, end int) {
	c.startLine, c.endLine = start, end
}

func (c *Context) Range() (int, int) {
	return c.startLine, c.endLine
}

func (c *Context) Contains(line int) bool {
	return line >= c.startLine && line <= c.endLine
}

// FindDeclarations returns declarations matching id visible from c: locals
// first, then imported parent contexts, then the lexical parent chain. The
// top context answers from its unit's flat table and the units in its import
// cache. The chain lock must be held.
func (c *Context) FindDeclarations(id ident.QualifiedIdentifier) []*Declaration {
	if id.IsEmpty() {
		return nil
	}
	if c.IsTop() {
		return c.unit.findFlat(id, true)
	}

	var out []*Declaration
	seen := make(map[*Declaration]struct{})
	collect := func(decls []*Declaration) {
		for _, d := range decls {
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}

	visited := make(map[*Context]struct{})
	collect(c.findLocal(id))
	collect(c.findImported(id, visited))
	for p := c.Parent(); p != nil; p = p.Parent() {
		if p.IsTop() {
			collect(p.unit.findFlat(id, true))
			break
		}
		collect(p.findLocal(id))
		collect(p.findImported(id, visited))
	}
	return out
}

func (c *Context) findLocal(id ident.QualifiedIdentifier) []*Declaration {
	var scoped ident.QualifiedIdentifier
	if !id.ExplicitlyGlobal() {
		scoped = c.QualifiedScope().Append(id)
	}
	var out []*Declaration
	for _, idx := range c.locals {
		d := c.unit.decls[idx]
		if d.qid.SameSegments(id) || (!scoped.IsEmpty() && d.qid.SameSegments(scoped)) {
			out = append(out, d)
		}
	}
	return out
}

// findImported searches imported parents without walking their lexical
// parents.
func (c *Context) findImported(id ident.QualifiedIdentifier, visited map[*Context]struct{}) []*Declaration {
	visited[c] = struct{}{}
	var out []*Declaration
	for _, imported := range c.ImportedParentContexts() {
		if _, ok := visited[imported]; ok {
			continue
		}
		visited[imported] = struct{}{}
		if imported.IsTop() {
			out = append(out, imported.unit.findFlat(id, false)...)
			continue
		}
		out = append(out, imported.findLocal(id)...)
		out = append(out, imported.findImported(id, visited)...)
	}
	return out
}

// IdentifierWithNamespace prefixes base with the identifier of the nearest
// Namespace context enclosing c. Without one, or when base is explicitly
// global, base is returned unchanged.
func IdentifierWithNamespace(base ident.QualifiedIdentifier, c *Context) ident.QualifiedIdentifier {
	if c == nil || base.ExplicitlyGlobal() {
		return base
	}
	ns := c.namespace()
	if ns == nil || ns.scope.IsEmpty() {
		return base
	}
	return ns.scope.WithGlobal(false).Append(base)
}
