package duchain

import (
	"duchain/internal/core/errors"
	"duchain/internal/engine/symtab"
	"duchain/internal/shared/observability"
	"log/slog"
	"sort"
	"sync"
)

// ChainStore owns every loaded unit and the symbol table they are published
// to. Its lock guards the whole chain space; the symbol table has its own
// lock, which is always taken second.
type ChainStore struct {
	mu    sync.RWMutex
	index symtab.Index
	units map[UnitID]*Unit
	meta  map[UnitID]UnitMeta

	internalUnit UnitID
	testingUnit  UnitID
	gate         *ReadyGate
}

func NewChainStore(index symtab.Index) *ChainStore {
	return &ChainStore{
		index: index,
		units: make(map[UnitID]*Unit),
		meta:  make(map[UnitID]UnitMeta),
		gate:  NewReadyGate(),
	}
}

func (s *ChainStore) Index() symtab.Index { return s.index }

// Gate is opened once the builtin unit is published.
func (s *ChainStore) Gate() *ReadyGate { return s.gate }

// NewUnit creates an unpublished unit. It is private to the caller until
// Publish.
func (s *ChainStore) NewUnit(id UnitID, language string, source []byte) *Unit {
	return newUnit(s, id, language, source)
}

// Publish makes u visible, replacing any unit with the same id, and rewrites
// its symbol table entries in the same critical section.
func (s *ChainStore) Publish(u *Unit) error {
	if u == nil || u.store != s {
		return errors.New(errors.CodeValidationError, "unit does not belong to this store")
	}

	entries := u.entries()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Replace(string(u.id), entries); err != nil {
		return errors.AddContext(
			errors.Wrap(err, errors.CodeInternal, "publish unit"),
			errors.CtxUnit, string(u.id),
		)
	}
	s.units[u.id] = u
	s.meta[u.id] = u.Meta()

	for _, other := range s.units {
		if other == u {
			continue
		}
		for _, dep := range other.importCache {
			if dep == u.id {
				other.refreshImportCache()
				break
			}
		}
	}
	observability.UnitsLoaded.Set(float64(len(s.units)))
	slog.Debug("unit published", "unit", u.id, "decls", len(u.decls), "entries", len(entries))
	return nil
}

// Unload drops the unit from memory but keeps its metadata and symbol table
// entries. Handles into it become stale.
func (s *ChainStore) Unload(id UnitID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[id]; !ok {
		return false
	}
	delete(s.units, id)
	observability.UnitsLoaded.Set(float64(len(s.units)))
	return true
}

// Remove drops the unit, its metadata and its symbol table entries.
func (s *ChainStore) Remove(id UnitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Remove(string(id)); err != nil {
		return errors.AddContext(
			errors.Wrap(err, errors.CodeInternal, "remove unit"),
			errors.CtxUnit, string(id),
		)
	}
	delete(s.units, id)
	delete(s.meta, id)
	observability.UnitsLoaded.Set(float64(len(s.units)))
	return nil
}

func (s *ChainStore) UnitMeta(id UnitID) (UnitMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.meta[id]
	return meta, ok
}

func (s *ChainStore) Unit(id UnitID) (*Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	return u, ok
}

// Units lists loaded units, sorted.
func (s *ChainStore) Units() []UnitID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UnitID, 0, len(s.units))
	for id := range s.units {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// StaleUnits lists loaded units that imported a unit which has since been
// re-published or removed.
func (s *ChainStore) StaleUnits() []UnitID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []UnitID
	for id, u := range s.units {
		for dep, rev := range u.revisions {
			meta, ok := s.meta[dep]
			if !ok || !meta.Revision.Same(rev) {
				out = append(out, id)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UnresolvedUnits lists loaded units whose indexer left references unbound.
func (s *ChainStore) UnresolvedUnits() []UnitID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []UnitID
	for id, u := range s.units {
		if u.unresolved > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetBuiltinUnits designates the builtin declarations unit and the builtin
// test framework unit.
func (s *ChainStore) SetBuiltinUnits(internal, testing UnitID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.internalUnit = internal
	s.testingUnit = testing
}

func (s *ChainStore) BuiltinUnits() (internal, testing UnitID) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.internalUnit, s.testingUnit
}

func (s *ChainStore) IsInternalUnit(id UnitID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.internalUnit != "" && id == s.internalUnit
}

// Read runs fn under the shared chain lock. Declarations and contexts may be
// walked freely inside fn.
func (s *ChainStore) Read(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// Update runs fn under the exclusive chain lock.
func (s *ChainStore) Update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Deref returns the live declaration behind h. The chain lock must be held.
func (s *ChainStore) Deref(h symtab.IndexedDeclaration) (*Declaration, bool) {
	d := s.derefLocked(h)
	return d, d != nil
}

func (s *ChainStore) derefLocked(h symtab.IndexedDeclaration) *Declaration {
	u := s.units[UnitID(h.Unit)]
	if u == nil {
		return nil
	}
	return u.Declaration(DeclIndex(h.Index))
}

// Alive reports whether d belongs to the currently loaded version of its
// unit. The chain lock must be held.
func (s *ChainStore) Alive(d *Declaration) bool {
	if d == nil {
		return false
	}
	return s.units[d.unit.id] == d.unit
}
