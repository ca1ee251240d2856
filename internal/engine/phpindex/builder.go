package phpindex

import (
	"context"
	"duchain/internal/engine/duchain"
	"duchain/internal/engine/ident"
	"log/slog"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var superglobals = map[string]bool{
	"GLOBALS":  true,
	"_SERVER":  true,
	"_GET":     true,
	"_POST":    true,
	"_FILES":   true,
	"_COOKIE":  true,
	"_SESSION": true,
	"_REQUEST": true,
	"_ENV":     true,
}

// pendingClass is a class whose base references are bound after the whole
// unit has been built.
type pendingClass struct {
	decl  *duchain.Declaration
	ctx   *duchain.Context
	scope *duchain.Context
	rules traitRules
	line  int
}

// builder turns one PHP syntax tree into the contexts and declarations of a
// unit.
type builder struct {
	w         *walker
	source    []byte
	unit      *duchain.Unit
	stack     []*duchain.Context
	namespace *duchain.Context
	aliases   map[string]ident.QualifiedIdentifier
	declared  map[*duchain.Context]map[string]bool
	classes   []*pendingClass
	err       error
}

func newBuilder(unit *duchain.Unit, source []byte) *builder {
	return &builder{
		w:        newWalker(),
		source:   source,
		unit:     unit,
		aliases:  make(map[string]ident.QualifiedIdentifier),
		declared: make(map[*duchain.Context]map[string]bool),
	}
}

func newWalker() *walker {
	return &walker{handlers: map[string]nodeHandler{
		"namespace_definition":                   handleNamespace,
		"namespace_use_declaration":              handleNamespaceUse,
		"class_declaration":                      handleClassLike,
		"interface_declaration":                  handleClassLike,
		"trait_declaration":                      handleClassLike,
		"enum_declaration":                       handleClassLike,
		"function_definition":                    handleFunction,
		"method_declaration":                     handleMethod,
		"property_declaration":                   handleProperty,
		"const_declaration":                      handleConst,
		"enum_case":                              handleEnumCase,
		"use_declaration":                        handleTraitUse,
		"assignment_expression":                  handleAssignment,
		"function_call_expression":               handleDefine,
		"anonymous_function":                     handleClosure,
		"anonymous_function_creation_expression": handleClosure,
		"arrow_function":                         handleClosure,
	}}
}

func (b *builder) build(root *sitter.Node) {
	top := b.unit.TopContext()
	top.SetRange(1, endLine(root))
	b.stack = []*duchain.Context{top}
	b.w.walkChildren(b, root)
	b.closeNamespace(endLine(root))
}

func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *builder) current() *duchain.Context {
	return b.stack[len(b.stack)-1]
}

func (b *builder) push(c *duchain.Context) {
	b.stack = append(b.stack, c)
}

func (b *builder) pop() {
	if len(b.stack) > 1 {
		b.stack = b.stack[:len(b.stack)-1]
	}
}

// declarationScope is where functions, classes and constants land: the
// innermost namespace, or the top context.
func (b *builder) declarationScope() *duchain.Context {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if t := b.stack[i].Type(); t == duchain.ContextNamespace || t == duchain.ContextGlobal {
			return b.stack[i]
		}
	}
	return b.unit.TopContext()
}

func (b *builder) closeNamespace(line int) {
	if b.namespace == nil {
		return
	}
	start, _ := b.namespace.Range()
	if line < start {
		line = start
	}
	b.namespace.SetRange(start, line)
	b.namespace = nil
}

// qualifyClassRef applies use aliases to a class reference. Unqualified
// names are left for the resolver's namespace fallback.
func (b *builder) qualifyClassRef(raw string) ident.QualifiedIdentifier {
	id := ident.Parse(raw).Lower()
	if id.IsEmpty() || id.ExplicitlyGlobal() {
		return id
	}
	segments := id.Segments()
	rest := ident.New(segments[1:]...)
	if segments[0] == "namespace" {
		return b.declarationScope().ScopeIdentifier().WithGlobal(true).Append(rest)
	}
	if target, ok := b.aliases[segments[0]]; ok {
		return target.Append(rest)
	}
	return id
}

func handleNamespace(b *builder, node *sitter.Node) bool {
	nameNode := field(node, "name", "namespace_name")
	body := field(node, "body", "compound_statement")

	b.closeNamespace(startLine(node) - 1)
	b.stack = b.stack[:1]
	b.aliases = make(map[string]ident.QualifiedIdentifier)

	if nameNode == nil {
		b.w.walkChildren(b, body)
		return true
	}

	id := ident.Parse(b.text(nameNode)).Lower().WithGlobal(false)
	top := b.unit.TopContext()
	decl := b.unit.DeclareNamespace(top, id, startLine(node))
	ns, err := b.unit.OpenContext(top, duchain.ContextNamespace, id, decl)
	if err != nil {
		b.fail(err)
		return true
	}
	ns.SetRange(startLine(node), endLine(node))

	if body != nil {
		b.push(ns)
		b.w.walkChildren(b, body)
		b.pop()
		b.aliases = make(map[string]ident.QualifiedIdentifier)
		return true
	}
	b.namespace = ns
	b.push(ns)
	return true
}

func handleNamespaceUse(b *builder, node *sitter.Node) bool {
	for _, clause := range b.useClauses(node) {
		if clause.kind != useClass {
			continue
		}
		b.aliases[clause.alias] = clause.target
		b.unit.DeclareNamespaceAlias(b.current(), ident.New(clause.alias), clause.target, startLine(node))
	}
	return true
}

func classTypeOf(kind string) duchain.ClassType {
	switch kind {
	case "interface_declaration":
		return duchain.ClassTypeInterface
	case "trait_declaration":
		return duchain.ClassTypeTrait
	case "enum_declaration":
		return duchain.ClassTypeEnum
	default:
		return duchain.ClassTypeClass
	}
}

func handleClassLike(b *builder, node *sitter.Node) bool {
	nameNode := field(node, "name", "name")
	if nameNode == nil {
		return false
	}
	name := b.text(nameNode)
	id := ident.New(strings.ToLower(name))
	scope := b.declarationScope()

	data := duchain.ClassData{PrettyName: name, ClassType: classTypeOf(node.Kind())}
	switch {
	case hasModifier(b, node, "abstract"):
		data.Modifier = duchain.ClassModifierAbstract
	case hasModifier(b, node, "final"):
		data.Modifier = duchain.ClassModifierFinal
	}
	for _, clause := range childrenOfKind(node, "base_clause") {
		for _, ref := range childrenOfKind(clause, "name", "qualified_name") {
			data.BaseClasses = append(data.BaseClasses, duchain.BaseClass{ID: b.qualifyClassRef(b.text(ref)), Kind: duchain.BaseExtends})
		}
	}
	for _, clause := range childrenOfKind(node, "class_interface_clause") {
		for _, ref := range childrenOfKind(clause, "name", "qualified_name") {
			data.BaseClasses = append(data.BaseClasses, duchain.BaseClass{ID: b.qualifyClassRef(b.text(ref)), Kind: duchain.BaseImplements})
		}
	}

	body := field(node, "body", "declaration_list", "enum_declaration_list")
	rules := newTraitRules()
	for _, use := range childrenOfKind(body, "use_declaration") {
		for _, ref := range childrenOfKind(use, "name", "qualified_name") {
			data.BaseClasses = append(data.BaseClasses, duchain.BaseClass{ID: b.qualifyClassRef(b.text(ref)), Kind: duchain.BaseUses})
		}
		if list := childOfKind(use, "use_list"); list != nil {
			rules.collect(b, list)
		}
	}

	decl := b.unit.DeclareClass(scope, id, data, startLine(node))
	class, err := b.unit.OpenContext(scope, duchain.ContextClass, id, decl)
	if err != nil {
		b.fail(err)
		return true
	}
	class.SetRange(startLine(node), endLine(node))
	b.classes = append(b.classes, &pendingClass{decl: decl, ctx: class, scope: scope, rules: rules, line: startLine(node)})

	b.push(class)
	b.w.walkChildren(b, body)
	b.pop()
	return true
}

// handleTraitUse skips trait use clauses; they were collected with their
// class.
func handleTraitUse(b *builder, node *sitter.Node) bool {
	return true
}

func handleFunction(b *builder, node *sitter.Node) bool {
	nameNode := field(node, "name", "name")
	if nameNode == nil {
		return false
	}
	name := b.text(nameNode)
	scope := b.declarationScope()
	decl := b.unit.DeclareFunction(scope, ident.New(strings.ToLower(name)), duchain.FunctionData{PrettyName: name}, startLine(node))
	b.openFunctionScope(scope, node, decl)
	return true
}

func handleMethod(b *builder, node *sitter.Node) bool {
	cur := b.current()
	nameNode := field(node, "name", "name")
	if nameNode == nil || cur.Type() != duchain.ContextClass {
		b.openFunctionScope(cur, node, nil)
		return true
	}
	name := b.text(nameNode)
	decl := b.unit.DeclareFunction(cur, ident.New(strings.ToLower(name)), duchain.FunctionData{PrettyName: name, Method: true}, startLine(node))
	b.openFunctionScope(cur, node, decl)
	return true
}

func handleClosure(b *builder, node *sitter.Node) bool {
	b.openFunctionScope(b.current(), node, nil)
	return true
}

func (b *builder) openFunctionScope(parent *duchain.Context, node *sitter.Node, owner *duchain.Declaration) {
	fn, err := b.unit.OpenContext(parent, duchain.ContextOther, ident.QualifiedIdentifier{}, owner)
	if err != nil {
		b.fail(err)
		return
	}
	fn.SetRange(startLine(node), endLine(node))

	b.push(fn)
	defer b.pop()

	b.declareParameters(fn, field(node, "parameters", "formal_parameters"))
	if uses := childOfKind(node, "anonymous_function_use_clause"); uses != nil {
		for _, v := range childrenOfKind(uses, "variable_name", "by_ref") {
			b.declareVariable(variableName(strings.TrimPrefix(b.text(v), "&")), startLine(v))
		}
	}
	b.w.walk(b, field(node, "body", "compound_statement"))
}

func (b *builder) declareParameters(fn *duchain.Context, params *sitter.Node) {
	for _, param := range childrenOfKind(params, "simple_parameter", "variadic_parameter", "property_promotion_parameter") {
		nameNode := field(param, "name", "variable_name")
		if nameNode == nil {
			continue
		}
		name := variableName(b.text(nameNode))
		b.declareVariable(name, startLine(param))

		if param.Kind() != "property_promotion_parameter" {
			continue
		}
		if class := fn.Parent(); class != nil && class.Type() == duchain.ContextClass {
			b.unit.DeclareVariable(class, ident.New(name), duchain.VariableData{}, startLine(param))
		}
	}
}

func handleProperty(b *builder, node *sitter.Node) bool {
	cur := b.current()
	if cur.Type() != duchain.ContextClass {
		return true
	}
	for _, element := range childrenOfKind(node, "property_element") {
		nameNode := field(element, "name", "variable_name")
		if nameNode == nil {
			continue
		}
		b.unit.DeclareVariable(cur, ident.New(variableName(b.text(nameNode))), duchain.VariableData{}, startLine(element))
	}
	return true
}

func handleConst(b *builder, node *sitter.Node) bool {
	target := b.current()
	if target.Type() != duchain.ContextClass {
		target = b.declarationScope()
	}
	for _, element := range childrenOfKind(node, "const_element") {
		nameNode := childOfKind(element, "name")
		if nameNode == nil {
			continue
		}
		b.unit.DeclareConstant(target, ident.New(b.text(nameNode)), startLine(element))
	}
	return true
}

func handleEnumCase(b *builder, node *sitter.Node) bool {
	cur := b.current()
	nameNode := field(node, "name", "name")
	if nameNode == nil || cur.Type() != duchain.ContextClass {
		return true
	}
	b.unit.DeclareConstant(cur, ident.New(b.text(nameNode)), startLine(node))
	return true
}

func handleAssignment(b *builder, node *sitter.Node) bool {
	left := field(node, "left", "variable_name")
	if left != nil && left.Kind() == "variable_name" {
		b.declareVariable(variableName(b.text(left)), startLine(left))
	}
	return false
}

// handleDefine declares constants created with define('NAME', ...).
func handleDefine(b *builder, node *sitter.Node) bool {
	fn := field(node, "function", "name", "qualified_name")
	if fn == nil || !strings.EqualFold(strings.TrimPrefix(b.text(fn), "\\"), "define") {
		return false
	}
	first := childOfKind(field(node, "arguments", "arguments"), "argument")
	name := strings.Trim(strings.TrimSpace(b.text(first)), `'"`)
	if name == "" || strings.ContainsAny(name, "$ .(") {
		return false
	}
	b.unit.DeclareConstant(b.unit.TopContext(), ident.Parse(name), startLine(node))
	return false
}

// declareVariable declares name in the current function scope, or in the
// top context at namespace level, once per scope.
func (b *builder) declareVariable(name string, line int) {
	if name == "" || name == "this" {
		return
	}
	scope := b.current()
	switch scope.Type() {
	case duchain.ContextClass:
		return
	case duchain.ContextNamespace:
		scope = b.unit.TopContext()
	}
	seen := b.declared[scope]
	if seen == nil {
		seen = make(map[string]bool)
		b.declared[scope] = seen
	}
	if seen[name] {
		return
	}
	seen[name] = true
	b.unit.DeclareVariable(scope, ident.New(name), duchain.VariableData{Superglobal: superglobals[name]}, line)
}

// link binds base classes, interfaces and traits once the unit is complete.
// Traits are linked first so their own trait members are in place before
// classes copy them.
func (b *builder) link(ctx context.Context, resolver *duchain.Resolver) error {
	store := resolver.Store()
	ordered := make([]*pendingClass, 0, len(b.classes))
	for _, pc := range b.classes {
		if pc.decl.ClassData().ClassType == duchain.ClassTypeTrait {
			ordered = append(ordered, pc)
		}
	}
	for _, pc := range b.classes {
		if pc.decl.ClassData().ClassType != duchain.ClassTypeTrait {
			ordered = append(ordered, pc)
		}
	}

	for _, pc := range ordered {
		for _, base := range pc.decl.ClassData().BaseClasses {
			target, err := resolver.Resolve(ctx, pc.scope, base.ID, duchain.ClassDeclarationType)
			if err != nil {
				return err
			}
			if target == nil || target == pc.decl {
				b.unit.AddUnresolved(1)
				slog.Debug("unresolved base class", "unit", b.unit.ID(), "class", pc.decl.QualifiedIdentifier().String(), "base", base.ID.String())
				continue
			}
			store.Read(func() {
				if base.Kind == duchain.BaseUses {
					b.pullTraitMembers(pc, target)
					return
				}
				if inner := target.InternalContext(); inner != nil {
					pc.ctx.AddImportedParent(inner.Ref())
				}
			})
		}
	}
	return nil
}

func (b *builder) pullTraitMembers(pc *pendingClass, trait *duchain.Declaration) {
	inner := trait.InternalContext()
	if inner == nil {
		return
	}
	traitName := strings.ToLower(trait.QualifiedIdentifier().Last())
	for _, member := range inner.LocalDeclarations() {
		method := member.IsFunctionLike()
		if !method && member.Variant() != duchain.VariantVariable && member.Variant() != duchain.VariantTraitMemberAlias {
			continue
		}
		target := member.Ref()
		if data := member.TraitAliasData(); data != nil {
			target = data.Target
		}
		data := duchain.TraitAliasData{Target: target, Trait: trait.QualifiedIdentifier()}

		name := member.Identifier().Last()
		if !pc.rules.excludes(traitName, name) {
			b.unit.DeclareTraitAlias(pc.ctx, member.Identifier(), method, data, pc.line)
		}
		for _, alias := range pc.rules.aliasesFor(traitName, name) {
			b.unit.DeclareTraitAlias(pc.ctx, ident.New(strings.ToLower(alias)), method, data, pc.line)
		}
	}
}
