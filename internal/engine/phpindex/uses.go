package phpindex

import (
	"duchain/internal/engine/ident"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type useKind int

const (
	useClass useKind = iota
	useFunction
	useConst
)

type useClause struct {
	kind   useKind
	target ident.QualifiedIdentifier
	alias  string
}

// useClauses reads a namespace_use_declaration, including group uses such as
// `use App\{Models\User, function helpers\fmt as f};`. Class targets are
// lower-cased; function and constant targets keep the case of their last
// segment.
func (b *builder) useClauses(node *sitter.Node) []useClause {
	kind := useKindOf(node)
	var prefix []string
	clauses := childrenOfKind(node, "namespace_use_clause")
	if group := field(node, "body", "namespace_use_group"); group != nil {
		prefix = b.nameSegments(childOfKind(node, "namespace_name"))
		clauses = childrenOfKind(group, "namespace_use_clause")
	}

	var out []useClause
	for _, clause := range clauses {
		clauseKind := useKindOf(clause)
		if clauseKind == useClass {
			clauseKind = kind
		}
		if c, ok := b.newUseClause(clauseKind, prefix, clause); ok {
			out = append(out, c)
		}
	}
	return out
}

// useKindOf reports the function or const keyword among node's direct
// children.
func useKindOf(node *sitter.Node) useKind {
	switch {
	case childOfKind(node, "function") != nil:
		return useFunction
	case childOfKind(node, "const") != nil:
		return useConst
	default:
		return useClass
	}
}

func (b *builder) newUseClause(kind useKind, prefix []string, clause *sitter.Node) (useClause, bool) {
	nameNode := childOfKind(clause, "qualified_name", "name")
	if nameNode == nil {
		return useClause{}, false
	}
	segments := append(append([]string(nil), prefix...), b.nameSegments(nameNode)...)
	if len(segments) == 0 {
		return useClause{}, false
	}
	target := ident.Parse("\\" + strings.Join(segments, "\\"))
	if kind == useClass {
		target = target.Lower()
	}
	if target.IsEmpty() {
		return useClause{}, false
	}
	alias := target.Last()
	if aliasNode := b.afterKeyword(clause, "as", "name"); aliasNode != nil {
		alias = b.text(aliasNode)
	}
	if kind == useClass {
		alias = strings.ToLower(alias)
	}
	return useClause{kind: kind, target: target, alias: alias}, true
}

// nameSegments collects the name leaves under a name, qualified_name or
// namespace_name node. Comments between segments are skipped.
func (b *builder) nameSegments(node *sitter.Node) []string {
	if node == nil {
		return nil
	}
	if node.Kind() == "name" {
		return []string{b.text(node)}
	}
	var out []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || !child.IsNamed() || child.Kind() == "comment" {
			continue
		}
		out = append(out, b.nameSegments(child)...)
	}
	return out
}

// afterKeyword returns the first child of one of kinds that follows the
// keyword token.
func (b *builder) afterKeyword(node *sitter.Node, keyword string, kinds ...string) *sitter.Node {
	seen := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if !seen {
			seen = strings.EqualFold(child.Kind(), keyword)
			continue
		}
		for _, kind := range kinds {
			if child.Kind() == kind {
				return child
			}
		}
	}
	return nil
}

type traitAliasRule struct {
	trait  string
	member string
	alias  string
}

// traitRules holds the insteadof and as clauses of a trait use block.
type traitRules struct {
	excluded map[string]map[string]bool
	aliases  []traitAliasRule
}

func newTraitRules() traitRules {
	return traitRules{excluded: make(map[string]map[string]bool)}
}

// collect reads the use_instead_of_clause and use_as_clause children of a
// use_list.
func (r *traitRules) collect(b *builder, list *sitter.Node) {
	for _, clause := range childrenOfKind(list, "use_instead_of_clause") {
		_, member := b.traitMember(childOfKind(clause, "class_constant_access_expression"))
		if member == "" {
			continue
		}
		seen := false
		for i := uint(0); i < clause.ChildCount(); i++ {
			child := clause.Child(i)
			if child == nil {
				continue
			}
			if !seen {
				seen = strings.EqualFold(child.Kind(), "insteadof")
				continue
			}
			if child.Kind() != "name" && child.Kind() != "qualified_name" {
				continue
			}
			segments := b.nameSegments(child)
			if len(segments) == 0 {
				continue
			}
			name := strings.ToLower(segments[len(segments)-1])
			if r.excluded[name] == nil {
				r.excluded[name] = make(map[string]bool)
			}
			r.excluded[name][member] = true
		}
	}

	for _, clause := range childrenOfKind(list, "use_as_clause") {
		var trait, member string
		if access := childOfKind(clause, "class_constant_access_expression"); access != nil {
			trait, member = b.traitMember(access)
		} else if first := clause.NamedChild(0); first != nil && first.Kind() == "name" {
			member = strings.ToLower(b.text(first))
		}
		alias := b.afterKeyword(clause, "as", "name")
		if member == "" || alias == nil {
			continue
		}
		r.aliases = append(r.aliases, traitAliasRule{trait: trait, member: member, alias: b.text(alias)})
	}
}

func (r traitRules) excludes(trait, member string) bool {
	return r.excluded[trait][strings.ToLower(member)]
}

func (r traitRules) aliasesFor(trait, member string) []string {
	var out []string
	member = strings.ToLower(member)
	for _, rule := range r.aliases {
		if rule.member != member {
			continue
		}
		if rule.trait != "" && rule.trait != trait {
			continue
		}
		out = append(out, rule.alias)
	}
	return out
}

// traitMember splits a `Trait::member` access into a lower-cased trait name
// and member.
func (b *builder) traitMember(access *sitter.Node) (string, string) {
	if access == nil {
		return "", ""
	}
	var named []*sitter.Node
	for i := uint(0); i < access.NamedChildCount(); i++ {
		if child := access.NamedChild(i); child != nil && child.Kind() != "comment" {
			named = append(named, child)
		}
	}
	if len(named) < 2 {
		return "", ""
	}
	segments := b.nameSegments(named[0])
	if len(segments) == 0 {
		return "", ""
	}
	trait := strings.ToLower(segments[len(segments)-1])
	return trait, strings.ToLower(b.text(named[len(named)-1]))
}
