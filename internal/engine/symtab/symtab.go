// Package symtab implements the persistent symbol table: a multimap from
// qualified identifiers to declaration handles, partitioned by the
// translation unit that published them.
//
// The table never stores declarations, only IndexedDeclaration handles. A
// handle must be dereferenced through the chain store, which reports a
// handle whose unit has been unloaded as missing.
package symtab

import (
	"duchain/internal/engine/ident"
)

// IndexedDeclaration is a stable handle to a declaration: the tag of the
// unit that owns it and the declaration's index in that unit's table.
type IndexedDeclaration struct {
	Unit  string
	Index uint32
}

func (d IndexedDeclaration) IsValid() bool {
	return d.Unit != ""
}

// Entry pairs a qualified identifier with the handle filed under it.
type Entry struct {
	ID   ident.QualifiedIdentifier
	Decl IndexedDeclaration
}

// Index is the symbol table contract shared by the in-memory and SQLite
// backends. Lookup may run concurrently with other lookups; Insert, Remove,
// Replace and PruneToUnits are exclusive with respect to readers.
type Index interface {
	// Insert files decl under id. Duplicate keys coexist.
	Insert(id ident.QualifiedIdentifier, decl IndexedDeclaration) error
	// Lookup returns every handle filed under id in insertion order. A
	// missing key yields an empty result, not an error.
	Lookup(id ident.QualifiedIdentifier) []IndexedDeclaration
	// Remove drops every handle published by unit.
	Remove(unit string) error
	// Replace atomically removes the handles of unit and inserts entries.
	Replace(unit string, entries []Entry) error
	// Units lists the units that currently own at least one handle.
	Units() []string
	// PruneToUnits removes handles of every unit not in keep.
	PruneToUnits(keep []string) error
	// Len is the total number of handles.
	Len() int
	Close() error
}

func cloneHandles(in []IndexedDeclaration) []IndexedDeclaration {
	if len(in) == 0 {
		return nil
	}
	out := make([]IndexedDeclaration, len(in))
	copy(out, in)
	return out
}
