package symtab

import (
	"duchain/internal/engine/ident"
	"duchain/internal/shared/observability"
	"sort"
	"sync"
)

const backendMemory = "memory"

// MemoryIndex keeps the symbol table in process memory. It is the default
// backend and the one used by tests.
type MemoryIndex struct {
	mu     sync.RWMutex
	byKey  map[string][]IndexedDeclaration
	byUnit map[string]map[string]struct{}
	count  int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		byKey:  make(map[string][]IndexedDeclaration),
		byUnit: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryIndex) Insert(id ident.QualifiedIdentifier, decl IndexedDeclaration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(id.Key(), decl)
	observability.IndexEntries.WithLabelValues(backendMemory).Set(float64(m.count))
	return nil
}

func (m *MemoryIndex) insertLocked(key string, decl IndexedDeclaration) {
	if key == "" || !decl.IsValid() {
		return
	}
	m.byKey[key] = append(m.byKey[key], decl)
	keys, ok := m.byUnit[decl.Unit]
	if !ok {
		keys = make(map[string]struct{})
		m.byUnit[decl.Unit] = keys
	}
	keys[key] = struct{}{}
	m.count++
}

func (m *MemoryIndex) Lookup(id ident.QualifiedIdentifier) []IndexedDeclaration {
	if m == nil {
		return nil
	}
	key := id.Key()
	if key == "" {
		return nil
	}
	observability.IndexLookupsTotal.WithLabelValues(backendMemory).Inc()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneHandles(m.byKey[key])
}

func (m *MemoryIndex) Remove(unit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(unit)
	observability.IndexEntries.WithLabelValues(backendMemory).Set(float64(m.count))
	return nil
}

func (m *MemoryIndex) removeLocked(unit string) {
	keys, ok := m.byUnit[unit]
	if !ok {
		return
	}
	for key := range keys {
		kept := m.byKey[key][:0]
		for _, decl := range m.byKey[key] {
			if decl.Unit == unit {
				m.count--
				continue
			}
			kept = append(kept, decl)
		}
		if len(kept) == 0 {
			delete(m.byKey, key)
		} else {
			m.byKey[key] = kept
		}
	}
	delete(m.byUnit, unit)
}

func (m *MemoryIndex) Replace(unit string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(unit)
	for _, entry := range entries {
		if entry.Decl.Unit != unit {
			continue
		}
		m.insertLocked(entry.ID.Key(), entry.Decl)
	}
	observability.IndexEntries.WithLabelValues(backendMemory).Set(float64(m.count))
	return nil
}

func (m *MemoryIndex) Units() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byUnit))
	for unit := range m.byUnit {
		out = append(out, unit)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryIndex) PruneToUnits(keep []string) error {
	keepSet := make(map[string]bool, len(keep))
	for _, unit := range keep {
		keepSet[unit] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for unit := range m.byUnit {
		if !keepSet[unit] {
			m.removeLocked(unit)
		}
	}
	observability.IndexEntries.WithLabelValues(backendMemory).Set(float64(m.count))
	return nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

func (m *MemoryIndex) Close() error {
	return nil
}
