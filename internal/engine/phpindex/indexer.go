// Package phpindex builds declaration chains from PHP sources. It parses
// with tree-sitter, turns namespaces, classes, functions, constants and
// variables into contexts and declarations, binds base classes and traits
// through the resolver and publishes the unit.
package phpindex

import (
	"context"
	"duchain/internal/core/errors"
	"duchain/internal/engine/duchain"
	"duchain/internal/engine/ident"
	"duchain/internal/shared/observability"
	"embed"
	"log/slog"
	"os"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Language is the origin tag of every unit built here.
const Language = "php"

const (
	InternalUnit duchain.UnitID = "builtin://internal.php"
	TestingUnit  duchain.UnitID = "builtin://phpunit.php"
)

//go:embed stubs/*.php
var stubs embed.FS

// Options overrides the embedded builtin stubs with files on disk.
type Options struct {
	InternalStub string
	TestingStub  string
}

type Indexer struct {
	store    *duchain.ChainStore
	resolver *duchain.Resolver
	parsers  *parserPool
	opts     Options
}

func NewIndexer(store *duchain.ChainStore, opts Options) *Indexer {
	return &Indexer{
		store:    store,
		resolver: duchain.NewResolver(store, Language),
		parsers:  newParserPool(sitter.NewLanguage(tree_sitter_php.LanguagePHP())),
		opts:     opts,
	}
}

func (ix *Indexer) Store() *duchain.ChainStore { return ix.store }
func (ix *Indexer) Resolver() *duchain.Resolver { return ix.resolver }

// LoadBuiltins indexes the builtin declarations unit, checks that it
// declares the exception base class, opens the store's readiness gate and
// then indexes the test framework unit.
func (ix *Indexer) LoadBuiltins(ctx context.Context) error {
	ix.store.SetBuiltinUnits(InternalUnit, TestingUnit)

	source, err := ix.stubSource(ix.opts.InternalStub, "stubs/internal.php")
	if err != nil {
		return err
	}
	internal, err := ix.index(ctx, InternalUnit, source, "builtin")
	if err != nil {
		return err
	}
	ix.ExceptionClass()
	ix.store.Gate().Open()

	source, err = ix.stubSource(ix.opts.TestingStub, "stubs/phpunit.php")
	if err != nil {
		return err
	}
	testing, err := ix.index(ctx, TestingUnit, source, "builtin")
	if err != nil {
		return err
	}

	slog.Info("builtin declarations loaded",
		"internal_decls", len(internal.Declarations()),
		"testing_decls", len(testing.Declarations()),
	)
	return nil
}

func (ix *Indexer) stubSource(override, embedded string) ([]byte, error) {
	if override != "" {
		content, err := os.ReadFile(override)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read builtin stub"), errors.CtxPath, override)
		}
		return content, nil
	}
	content, err := stubs.ReadFile(embedded)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "read embedded stub")
	}
	return content, nil
}

// IndexFile reads and indexes path. The unit id is the path.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (*duchain.Unit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read source"), errors.CtxPath, path)
	}
	return ix.index(ctx, duchain.UnitID(path), content, "file")
}

// IndexSource builds and publishes a unit from source, replacing any unit
// with the same id. Binding base classes waits for the builtin unit.
func (ix *Indexer) IndexSource(ctx context.Context, id duchain.UnitID, source []byte) (*duchain.Unit, error) {
	return ix.index(ctx, id, source, "file")
}

func (ix *Indexer) index(ctx context.Context, id duchain.UnitID, source []byte, origin string) (*duchain.Unit, error) {
	start := time.Now()
	ctx, span := observability.Tracer.Start(ctx, "phpindex.Index", trace.WithAttributes(
		attribute.String("unit", string(id)),
		attribute.String("origin", origin),
	))
	defer span.End()

	parser, err := ix.parsers.get()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "load php grammar")
	}
	defer ix.parsers.put(parser)
	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, errors.AddContext(errors.New(errors.CodeInternal, "parse failed"), errors.CtxUnit, string(id))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		slog.Debug("php source has syntax errors", "unit", id)
	}

	unit := ix.store.NewUnit(id, Language, source)
	if internal, _ := ix.store.BuiltinUnits(); internal != "" && internal != id {
		ix.store.Update(func() { unit.ImportUnit(internal) })
	}

	b := newBuilder(unit, source)
	b.build(root)
	if b.err != nil {
		return nil, errors.AddContext(errors.Wrap(b.err, errors.CodeInternal, "build declaration chain"), errors.CtxUnit, string(id))
	}
	if err := b.link(ctx, ix.resolver); err != nil {
		span.RecordError(err)
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "bind base classes"), errors.CtxUnit, string(id))
	}
	if err := ix.store.Publish(unit); err != nil {
		span.RecordError(err)
		return nil, err
	}

	observability.IndexingDuration.WithLabelValues(origin).Observe(time.Since(start).Seconds())
	slog.Debug("indexed unit", "unit", id, "decls", len(unit.Declarations()), "unresolved", unit.Unresolved())
	return unit, nil
}

// ExceptionClass returns the exception base class of the builtin unit. A
// missing or duplicated declaration means the builtin unit is broken and
// panics with a consistency error.
func (ix *Indexer) ExceptionClass() *duchain.Declaration {
	internal, _ := ix.store.BuiltinUnits()
	unit, ok := ix.store.Unit(internal)
	if !ok {
		panic(errors.Consistency("builtin declarations unit is not loaded", errors.CtxUnit, string(internal)))
	}

	var found []*duchain.Declaration
	ix.store.Read(func() {
		for _, d := range unit.TopContext().FindDeclarations(ident.New("exception")) {
			if d.IsClassLike() && d.UnitID() == internal {
				found = append(found, d)
			}
		}
	})
	if len(found) != 1 {
		panic(errors.Consistency("builtin exception class must be declared exactly once",
			errors.CtxUnit, string(internal),
			errors.CtxSymbol, "exception",
			"count", len(found),
		))
	}
	return found[0]
}

// IsException reports whether class d is the exception base class or
// reaches it through its imported class contexts.
func (ix *Indexer) IsException(d *duchain.Declaration) bool {
	if d == nil || !d.IsClassLike() {
		return false
	}
	exception := ix.ExceptionClass()

	result := false
	ix.store.Read(func() {
		seen := make(map[*duchain.Context]bool)
		queue := []*duchain.Declaration{d}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if cur == exception {
				result = true
				return
			}
			inner := cur.InternalContext()
			if inner == nil || seen[inner] {
				continue
			}
			seen[inner] = true
			for _, parent := range inner.ImportedParentContexts() {
				if parent.Type() != duchain.ContextClass {
					continue
				}
				if owner := parent.Owner(); owner != nil {
					queue = append(queue, owner)
				}
			}
		}
	})
	return result
}
