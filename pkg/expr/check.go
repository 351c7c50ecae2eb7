package expr

import (
	"fmt"

	"mercator-hq/mixer/pkg/schema"
)

// AttributeFinder resolves declared attributes. *attribute.Registry
// satisfies it.
type AttributeFinder interface {
	Lookup(name string) (schema.AttributeInfo, bool)
}

// Check type-checks n against the declared attributes and returns the kind
// of value it produces. KindNull in the result means "any": an attribute
// whose value type carries no kind. Unknown attributes and comparisons
// between incompatible kinds are reported as *CheckError.
func Check(n Node, finder AttributeFinder) (schema.Kind, error) {
	switch t := n.(type) {
	case *Literal:
		return t.Value.Kind(), nil

	case *Pattern:
		return schema.KindString, nil

	case *AttrRef:
		info, ok := finder.Lookup(t.Name)
		if !ok {
			return schema.KindNull, &CheckError{
				Kind:      KindUnknownAttribute,
				Attribute: t.Name,
				Offset:    t.Offset,
				Message:   "attribute is not declared by any manifest",
			}
		}
		return info.ValueType.Kind(), nil

	case *Unary:
		if err := checkBoolean(t.X, finder); err != nil {
			return schema.KindNull, err
		}
		return schema.KindBool, nil

	case *Binary:
		switch t.Op {
		case OpAnd, OpOr:
			if err := checkBoolean(t.X, finder); err != nil {
				return schema.KindNull, err
			}
			if err := checkBoolean(t.Y, finder); err != nil {
				return schema.KindNull, err
			}
			return schema.KindBool, nil

		case OpEq, OpNe, OpDefault:
			kx, err := Check(t.X, finder)
			if err != nil {
				return schema.KindNull, err
			}
			ky, err := Check(t.Y, finder)
			if err != nil {
				return schema.KindNull, err
			}
			if !compatible(kx, ky) {
				return schema.KindNull, &CheckError{
					Kind:    KindTypeMismatch,
					Offset:  t.Offset,
					Message: fmt.Sprintf("operator %s applied to %s and %s", t.Op, kx, ky),
				}
			}
			if t.Op == OpDefault {
				if kx == schema.KindNull {
					return ky, nil
				}
				return kx, nil
			}
			return schema.KindBool, nil
		}
	}

	return schema.KindNull, &CheckError{Kind: KindTypeMismatch, Offset: n.Pos(), Message: "unsupported expression"}
}

// CheckPredicate type-checks n and requires it to produce a boolean.
func CheckPredicate(n Node, finder AttributeFinder) error {
	return checkBoolean(n, finder)
}

func checkBoolean(n Node, finder AttributeFinder) error {
	k, err := Check(n, finder)
	if err != nil {
		return err
	}
	if k != schema.KindBool && k != schema.KindNull {
		return &CheckError{
			Kind:    KindTypeMismatch,
			Offset:  n.Pos(),
			Message: fmt.Sprintf("expected a boolean expression, found %s", k),
		}
	}
	return nil
}

func compatible(a, b schema.Kind) bool {
	return a == b || a == schema.KindNull || b == schema.KindNull
}
