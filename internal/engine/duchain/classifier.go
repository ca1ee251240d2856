package duchain

import (
	"fmt"
	"strings"
)

// DeclarationType is the kind of declaration a caller asks the resolver for.
type DeclarationType int

const (
	ClassDeclarationType DeclarationType = iota
	FunctionDeclarationType
	ConstantDeclarationType
	GlobalVariableDeclarationType
	NamespaceDeclarationType
)

// DeclarationTypes lists every requestable kind.
var DeclarationTypes = []DeclarationType{
	ClassDeclarationType,
	FunctionDeclarationType,
	ConstantDeclarationType,
	GlobalVariableDeclarationType,
	NamespaceDeclarationType,
}

func (k DeclarationType) String() string {
	switch k {
	case ClassDeclarationType:
		return "class"
	case FunctionDeclarationType:
		return "function"
	case ConstantDeclarationType:
		return "constant"
	case GlobalVariableDeclarationType:
		return "variable"
	case NamespaceDeclarationType:
		return "namespace"
	default:
		return "unknown"
	}
}

func ParseDeclarationType(s string) (DeclarationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "class", "interface", "trait":
		return ClassDeclarationType, nil
	case "function", "func", "method":
		return FunctionDeclarationType, nil
	case "constant", "const":
		return ConstantDeclarationType, nil
	case "variable", "var", "global":
		return GlobalVariableDeclarationType, nil
	case "namespace", "ns":
		return NamespaceDeclarationType, nil
	default:
		return 0, fmt.Errorf("unknown declaration type %q", s)
	}
}

// IsMatch reports whether d can stand for a declaration of kind k.
//
// Class-like declarations match both ClassDeclarationType and
// NamespaceDeclarationType since classes act as containers in qualified
// lookups. Class constants never match ConstantDeclarationType; they are
// reached through member lookup.
func IsMatch(d *Declaration, k DeclarationType) bool {
	if d == nil {
		return false
	}
	switch k {
	case ClassDeclarationType:
		return d.IsClassLike()
	case FunctionDeclarationType:
		return d.IsFunctionLike()
	case ConstantDeclarationType:
		if !d.IsConst() {
			return false
		}
		owner := d.Context()
		return owner == nil || owner.Type() != ContextClass
	case GlobalVariableDeclarationType:
		return d.Kind() == KindInstance && !d.IsConst()
	case NamespaceDeclarationType:
		return d.Kind() == KindNamespace || d.Kind() == KindNamespaceAlias || d.IsClassLike()
	default:
		return false
	}
}
