package duchain

import (
	"duchain/internal/engine/ident"
	"duchain/internal/engine/symtab"
	"fmt"
	"strings"
)

// Kind is the coarse shape of a declaration.
type Kind int

const (
	KindType Kind = iota
	KindInstance
	KindNamespace
	KindNamespaceAlias
	KindAlias
	KindImport
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindInstance:
		return "instance"
	case KindNamespace:
		return "namespace"
	case KindNamespaceAlias:
		return "namespace-alias"
	case KindAlias:
		return "alias"
	case KindImport:
		return "import"
	default:
		return "unknown"
	}
}

// Variant tags the kind-specific payload a declaration carries.
type Variant int

const (
	VariantGeneric Variant = iota
	VariantClass
	VariantVariable
	VariantFunction
	VariantNamespace
	VariantNamespaceAlias
	VariantTraitMethodAlias
	VariantTraitMemberAlias
)

func (v Variant) String() string {
	switch v {
	case VariantGeneric:
		return "generic"
	case VariantClass:
		return "class"
	case VariantVariable:
		return "variable"
	case VariantFunction:
		return "function"
	case VariantNamespace:
		return "namespace"
	case VariantNamespaceAlias:
		return "namespace-alias"
	case VariantTraitMethodAlias:
		return "trait-method-alias"
	case VariantTraitMemberAlias:
		return "trait-member-alias"
	default:
		return "unknown"
	}
}

// TypeDescriptor is the part of a declaration's type the chain cares about.
type TypeDescriptor struct {
	Name  string
	Const bool
}

type ClassType int

const (
	ClassTypeClass ClassType = iota
	ClassTypeInterface
	ClassTypeTrait
	ClassTypeUnion
	ClassTypeStruct
	ClassTypeEnum
)

func (t ClassType) String() string {
	switch t {
	case ClassTypeInterface:
		return "interface"
	case ClassTypeTrait:
		return "trait"
	case ClassTypeUnion:
		return "union"
	case ClassTypeStruct:
		return "struct"
	case ClassTypeEnum:
		return "enum"
	default:
		return "class"
	}
}

type ClassModifier int

const (
	ClassModifierNone ClassModifier = iota
	ClassModifierAbstract
	ClassModifierFinal
)

// BaseKind says how a class refers to a base.
type BaseKind int

const (
	BaseExtends BaseKind = iota
	BaseImplements
	BaseUses
)

type BaseClass struct {
	ID   ident.QualifiedIdentifier
	Kind BaseKind
}

type ClassData struct {
	PrettyName  string
	ClassType   ClassType
	Modifier    ClassModifier
	BaseClasses []BaseClass
}

type VariableData struct {
	Superglobal bool
}

type FunctionData struct {
	PrettyName string
	Method     bool
}

type NamespaceAliasData struct {
	Target ident.QualifiedIdentifier
}

type TraitAliasData struct {
	Target DeclRef
	Trait  ident.QualifiedIdentifier
}

// DeclarationID is the identity used to merge redeclarations. Direct IDs
// name one arena slot; indirect IDs are shared by every declaration of the
// same qualified identifier and variant.
type DeclarationID struct {
	Direct     bool
	Unit       UnitID
	Index      DeclIndex
	Key        string
	Additional uint32
}

func (id DeclarationID) String() string {
	if id.Direct {
		return fmt.Sprintf("%s#%d", id.Unit, id.Index)
	}
	return fmt.Sprintf("%s/%d", id.Key, id.Additional)
}

// Declaration is one named entity. Its fields are fixed once the owning unit
// is published.
type Declaration struct {
	unit            *Unit
	index           DeclIndex
	context         ContextIndex
	internalContext ContextIndex

	id   ident.QualifiedIdentifier
	qid  ident.QualifiedIdentifier
	kind Kind
	typ  *TypeDescriptor
	line int

	variant Variant
	data    any
}

func (d *Declaration) Unit() *Unit { return d.unit }
func (d *Declaration) UnitID() UnitID { return d.unit.id }
func (d *Declaration) Index() DeclIndex { return d.index }
func (d *Declaration) Identifier() ident.QualifiedIdentifier { return d.id }
func (d *Declaration) QualifiedIdentifier() ident.QualifiedIdentifier { return d.qid }
func (d *Declaration) Kind() Kind { return d.kind }
func (d *Declaration) Type() *TypeDescriptor { return d.typ }
func (d *Declaration) Line() int { return d.line }
func (d *Declaration) Variant() Variant { return d.variant }

func (d *Declaration) Ref() DeclRef {
	return DeclRef{Unit: d.unit.id, Index: d.index, Revision: d.unit.revision.ID}
}

// Handle is the symbol table handle of d.
func (d *Declaration) Handle() symtab.IndexedDeclaration {
	return symtab.IndexedDeclaration{Unit: string(d.unit.id), Index: uint32(d.index)}
}

// Context returns the owning context, or nil for a context-less declaration.
func (d *Declaration) Context() *Context {
	return d.unit.Context(d.context)
}

// InternalContext returns the context the declaration opens, such as a class
// body, or nil.
func (d *Declaration) InternalContext() *Context {
	return d.unit.Context(d.internalContext)
}

func (d *Declaration) IsConst() bool {
	return d.typ != nil && d.typ.Const
}

// IsClassLike reports whether d declares a class, interface, trait or enum.
func (d *Declaration) IsClassLike() bool {
	return d.variant == VariantClass
}

// IsFunctionLike reports whether d declares something callable.
func (d *Declaration) IsFunctionLike() bool {
	return d.variant == VariantFunction || d.variant == VariantTraitMethodAlias
}

func (d *Declaration) ClassData() *ClassData {
	data, _ := d.data.(*ClassData)
	return data
}

func (d *Declaration) VariableData() *VariableData {
	data, _ := d.data.(*VariableData)
	return data
}

func (d *Declaration) FunctionData() *FunctionData {
	data, _ := d.data.(*FunctionData)
	return data
}

func (d *Declaration) NamespaceAliasData() *NamespaceAliasData {
	data, _ := d.data.(*NamespaceAliasData)
	return data
}

func (d *Declaration) TraitAliasData() *TraitAliasData {
	data, _ := d.data.(*TraitAliasData)
	return data
}

// ID returns the merge identity. Variables always use direct identity so
// that same-named variables never collapse into one.
func (d *Declaration) ID() DeclarationID {
	if d.variant == VariantVariable {
		return DeclarationID{Direct: true, Unit: d.unit.id, Index: d.index}
	}
	return DeclarationID{Key: d.qid.Key(), Additional: uint32(d.variant)}
}

func (d *Declaration) String() string {
	if d == nil {
		return "<nil>"
	}
	switch d.variant {
	case VariantClass:
		data := d.ClassData()
		var b strings.Builder
		switch data.Modifier {
		case ClassModifierAbstract:
			b.WriteString("abstract ")
		case ClassModifierFinal:
			b.WriteString("final ")
		}
		b.WriteString(data.ClassType.String())
		b.WriteString(" ")
		b.WriteString(prettyOr(data.PrettyName, d.qid))
		return b.String()
	case VariantFunction:
		data := d.FunctionData()
		if data.Method {
			return "method " + prettyOr(data.PrettyName, d.qid) + "()"
		}
		return "function " + prettyOr(data.PrettyName, d.qid) + "()"
	case VariantVariable:
		if d.VariableData().Superglobal {
			return "superglobal $" + d.id.Last()
		}
		return "$" + d.id.Last()
	case VariantNamespace:
		return "namespace " + d.qid.String()
	case VariantNamespaceAlias:
		return "use " + d.NamespaceAliasData().Target.String() + " as " + d.id.Last()
	case VariantTraitMethodAlias, VariantTraitMemberAlias:
		return d.qid.String() + " (from trait " + d.TraitAliasData().Trait.String() + ")"
	default:
		if d.IsConst() {
			return "const " + d.qid.String()
		}
		return d.kind.String() + " " + d.qid.String()
	}
}

func prettyOr(pretty string, qid ident.QualifiedIdentifier) string {
	if pretty != "" {
		return pretty
	}
	return qid.String()
}
