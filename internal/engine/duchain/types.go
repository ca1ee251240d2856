// Package duchain implements the declaration chain: per-unit trees of
// lexical contexts owning declarations, the store that publishes them into
// the persistent symbol table, and the resolver that binds identifiers to
// declarations.
//
// Contexts and declarations live in a per-unit arena and refer to each other
// by index. References that cross units (imported parent contexts, symbol
// table handles, trait alias targets) are dereferenced through the
// ChainStore, which reports references into unloaded units as missing.
package duchain

import (
	"time"

	"github.com/google/uuid"
)

// UnitID identifies a translation unit, normally its path or a builtin URL.
type UnitID string

// DeclIndex is the position of a declaration in its unit's arena.
type DeclIndex int32

// ContextIndex is the position of a context in its unit's arena.
type ContextIndex int32

const (
	NoDecl    DeclIndex    = -1
	NoContext ContextIndex = -1
	// TopContextIndex is the arena slot of every unit's Global context.
	TopContextIndex ContextIndex = 0
)

// ContextRef addresses a context in any unit. Revision pins the indexing of
// the unit the index belongs to; a ref into a re-published unit dereferences
// to nil. The zero Revision matches any indexing and is only used for top
// contexts, whose slot never moves.
type ContextRef struct {
	Unit     UnitID
	Index    ContextIndex
	Revision uuid.UUID
}

// DeclRef addresses a declaration in any unit, pinned like ContextRef.
type DeclRef struct {
	Unit     UnitID
	Index    DeclIndex
	Revision uuid.UUID
}

// pinned reports whether a ref stamped with rev may be dereferenced into a
// unit currently at revision cur.
func pinned(rev uuid.UUID, cur Revision) bool {
	return rev == uuid.Nil || rev == cur.ID
}

func (r DeclRef) IsValid() bool {
	return r.Unit != "" && r.Index >= 0
}

type ContextType int

const (
	ContextGlobal ContextType = iota
	ContextNamespace
	ContextClass
	ContextOther
)

func (t ContextType) String() string {
	switch t {
	case ContextGlobal:
		return "global"
	case ContextNamespace:
		return "namespace"
	case ContextClass:
		return "class"
	case ContextOther:
		return "other"
	default:
		return "unknown"
	}
}

// indexed reports whether declarations directly in a context of this type
// are published to the symbol table.
func (t ContextType) indexed() bool {
	return t == ContextGlobal || t == ContextNamespace || t == ContextClass
}

// Revision stamps one indexing of a unit.
type Revision struct {
	ID      uuid.UUID
	Hash    uint64
	Indexed time.Time
}

// Same reports whether two stamps describe the same indexing.
func (r Revision) Same(other Revision) bool {
	return r.ID == other.ID
}

// UnitMeta is what the store remembers about a unit, loaded or not.
type UnitMeta struct {
	ID         UnitID
	Language   string
	Revision   Revision
	Unresolved int
	Decls      int
}
