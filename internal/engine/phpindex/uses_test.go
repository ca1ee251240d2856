package phpindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// parseFirst parses src and returns a builder over it together with the
// first node of kind in document order.
func parseFirst(t *testing.T, src, kind string) (*builder, *sitter.Node) {
	t.Helper()
	pool := newTestPool()
	sp, err := pool.get()
	require.NoError(t, err)
	t.Cleanup(func() { pool.put(sp) })

	source := []byte("<?php\n" + src + "\n")
	tree := sp.Parse(source, nil)
	require.NotNil(t, tree)
	t.Cleanup(tree.Close)

	node := firstOfKind(tree.RootNode(), kind)
	require.NotNil(t, node, "no %s node in %q", kind, src)
	return newBuilder(nil, source), node
}

func firstOfKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.Kind() == kind {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := firstOfKind(node.Child(i), kind); found != nil {
			return found
		}
	}
	return nil
}

func TestUseClauses(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"simple", `use App\Models\User;`, []string{`user=::app::models::user`}},
		{"alias", `use App\Models\User as Account;`, []string{`account=::app::models::user`}},
		{"multiple", `use A\B, C\D as E;`, []string{`b=::a::b`, `e=::c::d`}},
		{"group", `use App\{Models\User, Http\Kernel as K};`, []string{`user=::app::models::user`, `k=::app::http::kernel`}},
		{"leading separator", `use \Vendor\Lib;`, []string{`lib=::vendor::lib`}},
		{"unqualified", `use Widget;`, []string{`widget=::widget`}},
		{"comment before alias", `use Lib\Widget /* legacy */ as Gadget;`, []string{`gadget=::lib::widget`}},
		{"comment after keyword", "use /* ui */ Lib\\Widget as Gadget;", []string{`gadget=::lib::widget`}},
		{"line breaks", "use\n\tLib\\Widget\n\t\tAS\n\tGadget\n;", []string{`gadget=::lib::widget`}},
		{"group with comments", "use App\\{\n\tModels\\User, // people\n\tHttp\\Kernel /* core */ as K\n};", []string{`user=::app::models::user`, `k=::app::http::kernel`}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, node := parseFirst(t, tc.src, "namespace_use_declaration")
			var got []string
			for _, clause := range b.useClauses(node) {
				require.Equal(t, useClass, clause.kind)
				got = append(got, clause.alias+"="+clause.target.String())
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUseClauses_FunctionAndConst(t *testing.T) {
	b, node := parseFirst(t, `use function Vendor\Str\snake_Case;`, "namespace_use_declaration")
	clauses := b.useClauses(node)
	require.Len(t, clauses, 1)
	assert.Equal(t, useFunction, clauses[0].kind)
	assert.Equal(t, "snake_Case", clauses[0].alias)
	assert.Equal(t, `::vendor::str::snake_Case`, clauses[0].target.String())

	b, node = parseFirst(t, `use const App\VERSION as V;`, "namespace_use_declaration")
	clauses = b.useClauses(node)
	require.Len(t, clauses, 1)
	assert.Equal(t, useConst, clauses[0].kind)
	assert.Equal(t, "V", clauses[0].alias)

	b, node = parseFirst(t, `use App\{Models\User, function helpers\fmt as f};`, "namespace_use_declaration")
	clauses = b.useClauses(node)
	require.Len(t, clauses, 2)
	assert.Equal(t, useClass, clauses[0].kind)
	assert.Equal(t, useFunction, clauses[1].kind)
	assert.Equal(t, "f", clauses[1].alias)

	b, node = parseFirst(t, `use function App\Util\{first, last as tail};`, "namespace_use_declaration")
	clauses = b.useClauses(node)
	require.Len(t, clauses, 2)
	assert.Equal(t, useFunction, clauses[0].kind)
	assert.Equal(t, `::app::util::first`, clauses[0].target.String())
	assert.Equal(t, useFunction, clauses[1].kind)
	assert.Equal(t, "tail", clauses[1].alias)
}

func TestTraitRules(t *testing.T) {
	b, list := parseFirst(t, `class Talker {
	use A, B, C {
		A::hello insteadof B;
		A::hello insteadof C;
		B::hello as protected helloFromB;
		bye as farewell;
		C::hi as private;
	}
}`, "use_list")
	rules := newTraitRules()
	rules.collect(b, list)

	assert.False(t, rules.excludes("a", "hello"))
	assert.True(t, rules.excludes("b", "hello"))
	assert.True(t, rules.excludes("c", "HELLO"))
	assert.False(t, rules.excludes("b", "bye"))

	assert.Equal(t, []string{"helloFromB"}, rules.aliasesFor("b", "hello"))
	assert.Empty(t, rules.aliasesFor("a", "hello"))
	assert.Equal(t, []string{"farewell"}, rules.aliasesFor("a", "bye"))
	assert.Equal(t, []string{"farewell"}, rules.aliasesFor("b", "Bye"))
	assert.Empty(t, rules.aliasesFor("c", "hi"), "visibility-only changes add no alias")
}

func TestTraitRules_CommentsAndQualifiedTraits(t *testing.T) {
	b, list := parseFirst(t, `class Talker {
	use \Vendor\Greets, Waves {
		\Vendor\Greets::Hello /* keep */ as
			sayHello;
		Greets::hello // prefer greets
			insteadof Waves;
	}
}`, "use_list")
	rules := newTraitRules()
	rules.collect(b, list)

	assert.Equal(t, []string{"sayHello"}, rules.aliasesFor("greets", "hello"))
	assert.True(t, rules.excludes("waves", "hello"))
	assert.False(t, rules.excludes("greets", "hello"))
}
