package duchain

import (
	"duchain/internal/engine/ident"
	"duchain/internal/engine/symtab"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Unit is the arena of one translation unit: its contexts, its declarations
// and the flat table of declarations that are published to the symbol
// table. Slot 0 of the context arena is the Global top context.
type Unit struct {
	store    *ChainStore
	id       UnitID
	language string
	revision Revision

	contexts []*Context
	decls    []*Declaration
	byKey    map[string][]DeclIndex

	// revisions of imported units as seen when they were imported
	revisions   map[UnitID]Revision
	importCache []UnitID
	unresolved  int
}

func newUnit(store *ChainStore, id UnitID, language string, source []byte) *Unit {
	u := &Unit{
		store:    store,
		id:       id,
		language: language,
		revision: Revision{
			ID:      uuid.New(),
			Hash:    xxhash.Sum64(source),
			Indexed: time.Now().UTC(),
		},
		byKey:     make(map[string][]DeclIndex),
		revisions: make(map[UnitID]Revision),
	}
	u.contexts = append(u.contexts, &Context{
		unit:   u,
		index:  TopContextIndex,
		typ:    ContextGlobal,
		owner:  NoDecl,
		parent: NoContext,
	})
	return u
}

func (u *Unit) ID() UnitID { return u.id }
func (u *Unit) Language() string { return u.language }
func (u *Unit) Revision() Revision { return u.revision }

func (u *Unit) Meta() UnitMeta {
	return UnitMeta{
		ID:         u.id,
		Language:   u.language,
		Revision:   u.revision,
		Unresolved: u.unresolved,
		Decls:      len(u.decls),
	}
}

func (u *Unit) TopContext() *Context {
	return u.contexts[TopContextIndex]
}

// Context returns the context at idx, or nil when idx is out of range.
func (u *Unit) Context(idx ContextIndex) *Context {
	if idx < 0 || int(idx) >= len(u.contexts) {
		return nil
	}
	return u.contexts[idx]
}

// Declaration returns the declaration at idx, or nil when idx is out of
// range.
func (u *Unit) Declaration(idx DeclIndex) *Declaration {
	if idx < 0 || int(idx) >= len(u.decls) {
		return nil
	}
	return u.decls[idx]
}

func (u *Unit) Contexts() []*Context {
	out := make([]*Context, len(u.contexts))
	copy(out, u.contexts)
	return out
}

func (u *Unit) Declarations() []*Declaration {
	out := make([]*Declaration, len(u.decls))
	copy(out, u.decls)
	return out
}

// Unresolved is the number of references the indexer could not bind.
func (u *Unit) Unresolved() int { return u.unresolved }
func (u *Unit) AddUnresolved(n int) { u.unresolved += n }

// ImportedRevisions returns the revisions of imported units recorded when
// they were imported.
func (u *Unit) ImportedRevisions() map[UnitID]Revision {
	out := make(map[UnitID]Revision, len(u.revisions))
	for id, rev := range u.revisions {
		out[id] = rev
	}
	return out
}

// ImportCache lists every unit reachable through the top context's imports,
// breadth first.
func (u *Unit) ImportCache() []UnitID {
	out := make([]UnitID, len(u.importCache))
	copy(out, u.importCache)
	return out
}

// OpenContext creates a child context of parent. A Class context must be
// owned by a class-like declaration.
func (u *Unit) OpenContext(parent *Context, typ ContextType, scope ident.QualifiedIdentifier, owner *Declaration) (*Context, error) {
	if parent == nil || parent.unit != u {
		return nil, fmt.Errorf("open %s context in %s: parent belongs to another unit", typ, u.id)
	}
	if typ == ContextGlobal {
		return nil, fmt.Errorf("open context in %s: a unit has exactly one global context", u.id)
	}
	if typ == ContextClass && (owner == nil || !owner.IsClassLike()) {
		return nil, fmt.Errorf("open class context in %s: owner must be a class declaration", u.id)
	}
	if owner != nil && owner.unit != u {
		return nil, fmt.Errorf("open %s context in %s: owner belongs to another unit", typ, u.id)
	}

	c := &Context{
		unit:      u,
		index:     ContextIndex(len(u.contexts)),
		typ:       typ,
		scope:     scope.WithGlobal(false),
		owner:     NoDecl,
		parent:    parent.index,
		startLine: parent.startLine,
		endLine:   parent.endLine,
	}
	if owner != nil {
		c.owner = owner.index
		owner.internalContext = c.index
	}
	u.contexts = append(u.contexts, c)
	parent.children = append(parent.children, c.index)
	return c, nil
}

// DeclSpec describes a generic declaration.
type DeclSpec struct {
	ID   ident.QualifiedIdentifier
	Kind Kind
	Type *TypeDescriptor
	Line int
}

// Declare adds a generic declaration to c. A nil c creates a context-less
// declaration, which is published like a top-level one.
func (u *Unit) Declare(c *Context, spec DeclSpec) *Declaration {
	return u.declare(c, spec, VariantGeneric, nil)
}

func (u *Unit) DeclareClass(c *Context, id ident.QualifiedIdentifier, data ClassData, line int) *Declaration {
	return u.declare(c, DeclSpec{ID: id, Kind: KindType, Line: line}, VariantClass, &data)
}

// DeclareFunction declares a function or method. Functions are types, not
// instances, so they never classify as global variables.
func (u *Unit) DeclareFunction(c *Context, id ident.QualifiedIdentifier, data FunctionData, line int) *Declaration {
	return u.declare(c, DeclSpec{ID: id, Kind: KindType, Line: line}, VariantFunction, &data)
}

func (u *Unit) DeclareVariable(c *Context, id ident.QualifiedIdentifier, data VariableData, line int) *Declaration {
	return u.declare(c, DeclSpec{ID: id, Kind: KindInstance, Line: line}, VariantVariable, &data)
}

// DeclareConstant declares a global or class constant.
func (u *Unit) DeclareConstant(c *Context, id ident.QualifiedIdentifier, line int) *Declaration {
	return u.declare(c, DeclSpec{ID: id, Kind: KindInstance, Type: &TypeDescriptor{Const: true}, Line: line}, VariantGeneric, nil)
}

func (u *Unit) DeclareNamespace(c *Context, id ident.QualifiedIdentifier, line int) *Declaration {
	return u.declare(c, DeclSpec{ID: id, Kind: KindNamespace, Line: line}, VariantNamespace, nil)
}

func (u *Unit) DeclareNamespaceAlias(c *Context, id ident.QualifiedIdentifier, target ident.QualifiedIdentifier, line int) *Declaration {
	data := NamespaceAliasData{Target: target}
	return u.declare(c, DeclSpec{ID: id, Kind: KindNamespaceAlias, Line: line}, VariantNamespaceAlias, &data)
}

// DeclareTraitAlias pulls a trait member into a class context. method selects
// between TraitMethodAlias and TraitMemberAlias.
func (u *Unit) DeclareTraitAlias(c *Context, id ident.QualifiedIdentifier, method bool, data TraitAliasData, line int) *Declaration {
	if method {
		return u.declare(c, DeclSpec{ID: id, Kind: KindType, Line: line}, VariantTraitMethodAlias, &data)
	}
	return u.declare(c, DeclSpec{ID: id, Kind: KindInstance, Line: line}, VariantTraitMemberAlias, &data)
}

func (u *Unit) declare(c *Context, spec DeclSpec, variant Variant, data any) *Declaration {
	d := &Declaration{
		unit:            u,
		index:           DeclIndex(len(u.decls)),
		context:         NoContext,
		internalContext: NoContext,
		id:              spec.ID.WithGlobal(false),
		kind:            spec.Kind,
		typ:             spec.Type,
		line:            spec.Line,
		variant:         variant,
		data:            data,
	}
	indexed := true
	if c != nil {
		d.context = c.index
		d.qid = c.QualifiedScope().Append(d.id)
		c.locals = append(c.locals, d.index)
		indexed = c.typ.indexed()
	} else {
		d.qid = d.id
	}
	u.decls = append(u.decls, d)
	if indexed {
		key := d.qid.Key()
		u.byKey[key] = append(u.byKey[key], d.index)
	}
	return d
}

// ContextAt returns the innermost context whose line range contains line,
// falling back to the top context.
func (u *Unit) ContextAt(line int) *Context {
	cur := u.TopContext()
	for {
		var next *Context
		for _, child := range cur.Children() {
			if child.Contains(line) {
				next = child
			}
		}
		if next == nil {
			return cur
		}
		cur = next
	}
}

// ImportUnit registers the top context of other as an imported parent of
// u's top context, merges other's revision stamps and refreshes the import
// cache. It reports false if the edge already existed. The chain lock must
// be held exclusively; see ChainStore.Update.
func (u *Unit) ImportUnit(other UnitID) bool {
	if other == u.id {
		return false
	}
	if !u.TopContext().AddImportedParent(ContextRef{Unit: other, Index: TopContextIndex}) {
		return false
	}
	if imported := u.store.units[other]; imported != nil {
		u.mergeRevisions(imported)
	}
	u.refreshImportCache()
	return true
}

func (u *Unit) mergeRevisions(other *Unit) {
	u.revisions[other.id] = other.revision
	for id, rev := range other.revisions {
		if id == u.id {
			continue
		}
		if _, ok := u.revisions[id]; !ok {
			u.revisions[id] = rev
		}
	}
}

func (u *Unit) refreshImportCache() {
	seen := map[UnitID]bool{u.id: true}
	var order []UnitID
	queue := []*Unit{u}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ref := range cur.TopContext().imports {
			if seen[ref.Unit] {
				continue
			}
			seen[ref.Unit] = true
			order = append(order, ref.Unit)
			if next := u.store.units[ref.Unit]; next != nil {
				queue = append(queue, next)
			}
		}
	}
	u.importCache = order
}

// findFlat looks id up in the flat table, optionally followed by the flat
// tables of every unit in the import cache.
func (u *Unit) findFlat(id ident.QualifiedIdentifier, withImports bool) []*Declaration {
	key := id.Key()
	var out []*Declaration
	for _, idx := range u.byKey[key] {
		out = append(out, u.decls[idx])
	}
	if !withImports {
		return out
	}
	for _, uid := range u.importCache {
		imported := u.store.units[uid]
		if imported == nil {
			continue
		}
		for _, idx := range imported.byKey[key] {
			out = append(out, imported.decls[idx])
		}
	}
	return out
}

// resolveContext dereferences ref, answering references into u itself even
// before u is published. A ref stamped with another indexing of its unit is
// stale and yields nil.
func (u *Unit) resolveContext(ref ContextRef) *Context {
	target := u.refTarget(ref.Unit)
	if target == nil || !pinned(ref.Revision, target.revision) {
		return nil
	}
	return target.Context(ref.Index)
}

func (u *Unit) resolveDecl(ref DeclRef) *Declaration {
	target := u.refTarget(ref.Unit)
	if target == nil || !pinned(ref.Revision, target.revision) {
		return nil
	}
	return target.Declaration(ref.Index)
}

func (u *Unit) refTarget(id UnitID) *Unit {
	if id == u.id {
		return u
	}
	return u.store.units[id]
}

// entries lists the symbol table entries of u in declaration order.
func (u *Unit) entries() []symtab.Entry {
	var indexed []DeclIndex
	for _, idxs := range u.byKey {
		indexed = append(indexed, idxs...)
	}
	sort.Slice(indexed, func(i, j int) bool { return indexed[i] < indexed[j] })

	out := make([]symtab.Entry, 0, len(indexed))
	for _, idx := range indexed {
		d := u.decls[idx]
		out = append(out, symtab.Entry{ID: d.qid, Decl: d.Handle()})
	}
	return out
}
