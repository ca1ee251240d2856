package duchain

import (
	"context"
	"duchain/internal/engine/ident"
	"duchain/internal/shared/observability"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	pseudoSelf   = "self"
	pseudoStatic = "static"
	pseudoParent = "parent"
)

// Resolver binds identifiers to declarations for one source language.
type Resolver struct {
	store    *ChainStore
	language string
}

func NewResolver(store *ChainStore, language string) *Resolver {
	return &Resolver{store: store, language: language}
}

func (r *Resolver) Store() *ChainStore { return r.store }
func (r *Resolver) Language() string { return r.language }

// Resolve finds the declaration id refers to from context c, or nil when
// there is none. Unless c belongs to the builtin unit, it first waits for the
// store's readiness gate; the only error is ctx ending during that wait.
//
// Declarations found through the symbol table in another unit make that
// unit's top context an imported parent of c's top context.
func (r *Resolver) Resolve(ctx context.Context, c *Context, id ident.QualifiedIdentifier, kind DeclarationType) (*Declaration, error) {
	if c == nil || id.IsEmpty() {
		return nil, nil
	}

	start := time.Now()
	ctx, span := observability.Tracer.Start(ctx, "duchain.Resolve", trace.WithAttributes(
		attribute.String("identifier", id.String()),
		attribute.String("kind", kind.String()),
		attribute.String("unit", string(c.unit.id)),
	))
	defer span.End()

	internal := r.store.IsInternalUnit(c.unit.id)
	if !internal {
		if err := r.store.gate.Wait(ctx); err != nil {
			span.RecordError(err)
			observability.ResolveTotal.WithLabelValues(kind.String(), "canceled").Inc()
			return nil, err
		}
	}

	decl, source := r.resolve(c, id, kind, internal)
	span.SetAttributes(attribute.String("source", source))

	outcome := "found"
	if decl == nil {
		outcome = "not_found"
	}
	observability.ResolveTotal.WithLabelValues(kind.String(), outcome).Inc()
	observability.ResolveDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	return decl, nil
}

func (r *Resolver) resolve(c *Context, id ident.QualifiedIdentifier, kind DeclarationType, internal bool) (*Declaration, string) {
	r.store.mu.RLock()
	decl, pseudo := r.resolvePseudo(c, id, kind)
	if !pseudo {
		decl = r.resolveLocal(c, id, kind)
	}
	r.store.mu.RUnlock()

	if pseudo {
		return decl, "pseudo"
	}
	if decl != nil {
		return decl, "local"
	}
	if internal || kind == GlobalVariableDeclarationType {
		return nil, "none"
	}
	if decl = r.resolveFromIndex(c, id, kind); decl != nil {
		return decl, "index"
	}
	return nil, "none"
}

// resolvePseudo handles self, static and parent. Only c and its immediate
// parent are considered as the enclosing class.
func (r *Resolver) resolvePseudo(c *Context, id ident.QualifiedIdentifier, kind DeclarationType) (*Declaration, bool) {
	if kind != ClassDeclarationType {
		return nil, false
	}
	switch {
	case isPseudo(id, pseudoSelf), isPseudo(id, pseudoStatic):
		if class := nearestClassContext(c); class != nil {
			return class.Owner(), true
		}
		return nil, true
	case isPseudo(id, pseudoParent):
		class := nearestClassContext(c)
		if class == nil {
			return nil, true
		}
		for _, imported := range class.ImportedParentContexts() {
			if imported.Type() == ContextClass {
				return imported.Owner(), true
			}
		}
		return nil, true
	default:
		return nil, false
	}
}

func isPseudo(id ident.QualifiedIdentifier, name string) bool {
	return id.Count() == 1 && !id.ExplicitlyGlobal() && strings.EqualFold(id.Last(), name)
}

func nearestClassContext(c *Context) *Context {
	if c.Type() == ContextClass {
		return c
	}
	if p := c.Parent(); p != nil && p.Type() == ContextClass {
		return p
	}
	return nil
}

// resolveLocal searches the top context, then c, then the top context again
// with id qualified by the enclosing namespace. Only the first query with
// any result is classified.
func (r *Resolver) resolveLocal(c *Context, id ident.QualifiedIdentifier, kind DeclarationType) *Declaration {
	top := c.TopContext()
	candidates := top.FindDeclarations(id)
	if len(candidates) == 0 {
		candidates = c.FindDeclarations(id)
	}
	if len(candidates) == 0 {
		if namespaced := IdentifierWithNamespace(id, c); !namespaced.SameSegments(id) {
			candidates = top.FindDeclarations(namespaced)
		}
	}
	for _, d := range candidates {
		if IsMatch(d, kind) {
			return d
		}
	}
	return nil
}

// resolveFromIndex consults the symbol table under the exclusive chain lock
// so that the import registration cannot interleave with another
// resolution.
func (r *Resolver) resolveFromIndex(c *Context, id ident.QualifiedIdentifier, kind DeclarationType) *Declaration {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := s.index.Lookup(id)
	if len(handles) == 0 {
		if namespaced := IdentifierWithNamespace(id, c); !namespaced.SameSegments(id) {
			handles = s.index.Lookup(namespaced)
		}
	}

	for _, h := range handles {
		meta, ok := s.meta[UnitID(h.Unit)]
		if !ok {
			continue
		}
		if meta.Language != r.language {
			continue
		}
		d := s.derefLocked(h)
		if d == nil {
			observability.StaleHandlesTotal.Inc()
			continue
		}
		// c's own unit was searched in step 3; a hit under its id here is
		// the previous indexing being replaced.
		if d.unit.id == c.unit.id && d.unit != c.unit {
			continue
		}
		if !IsMatch(d, kind) {
			continue
		}
		if c.unit.ImportUnit(d.unit.id) {
			observability.ImportsRegisteredTotal.Inc()
			slog.Debug("registered import", "unit", c.unit.id, "imported", d.unit.id, "symbol", d.qid.String())
		}
		return d
	}
	return nil
}

// ResolveTraitAlias returns the declaration a trait alias stands for, or nil
// when d is not an alias or its target's unit is gone.
func (r *Resolver) ResolveTraitAlias(d *Declaration) *Declaration {
	if d == nil {
		return nil
	}
	data := d.TraitAliasData()
	if data == nil || !data.Target.IsValid() {
		return nil
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return d.unit.resolveDecl(data.Target)
}
