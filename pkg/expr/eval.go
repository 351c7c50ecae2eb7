package expr

import (
	"strings"

	"mercator-hq/mixer/pkg/attribute"
	"mercator-hq/mixer/pkg/schema"
)

// EvalBool evaluates n as a predicate. It never fails: comparisons involving
// an absent attribute are false, an attribute in boolean position holds only
// when present and true, and non-boolean values are false.
func EvalBool(n Node, bag attribute.Bag) bool {
	switch t := n.(type) {
	case *Literal:
		b, ok := t.Value.Boolean()
		return ok && b

	case *AttrRef:
		v, present := bag.Get(t.Name)
		if !present {
			return false
		}
		b, ok := v.Boolean()
		return ok && b

	case *Unary:
		return !EvalBool(t.X, bag)

	case *Binary:
		switch t.Op {
		case OpAnd:
			return EvalBool(t.X, bag) && EvalBool(t.Y, bag)
		case OpOr:
			return EvalBool(t.X, bag) || EvalBool(t.Y, bag)
		case OpEq:
			return compare(t.X, t.Y, bag, true)
		case OpNe:
			return compare(t.X, t.Y, bag, false)
		case OpDefault:
			v, present := operand(t, bag)
			if !present {
				return false
			}
			b, ok := v.Boolean()
			return ok && b
		}
	}
	return false
}

// Eval evaluates n in a value position. A referenced attribute that is
// absent yields an *EvaluationError of kind MissingAttribute; boolean
// operators evaluate through EvalBool and never fail.
func Eval(n Node, bag attribute.Bag) (schema.Value, error) {
	switch t := n.(type) {
	case *Literal:
		return t.Value, nil

	case *AttrRef:
		v, present := bag.Get(t.Name)
		if !present {
			return schema.Value{}, &EvaluationError{
				Kind:      KindMissingAttribute,
				Attribute: t.Name,
				Message:   "attribute is not present in the request",
			}
		}
		return v, nil

	case *Pattern:
		if t.Any {
			return schema.String("*"), nil
		}
		return schema.String(t.Prefix + "*"), nil

	case *Binary:
		if t.Op == OpDefault {
			if v, present := operand(t.X, bag); present {
				return v, nil
			}
			return Eval(t.Y, bag)
		}
	}

	return schema.Bool(EvalBool(n, bag)), nil
}

// operand resolves a comparison operand. The second result is false when the
// operand depends on an attribute that is absent.
func operand(n Node, bag attribute.Bag) (schema.Value, bool) {
	switch t := n.(type) {
	case *Literal:
		return t.Value, true
	case *AttrRef:
		return bag.Get(t.Name)
	case *Binary:
		if t.Op == OpDefault {
			if v, present := operand(t.X, bag); present {
				return v, true
			}
			return operand(t.Y, bag)
		}
	case *Pattern:
		v, _ := Eval(t, bag)
		return v, true
	}
	return schema.Bool(EvalBool(n, bag)), true
}

// compare evaluates x == y (eq) or x != y (!eq).
func compare(x, y Node, bag attribute.Bag, eq bool) bool {
	px, xIsPattern := x.(*Pattern)
	py, yIsPattern := y.(*Pattern)

	switch {
	case yIsPattern && !xIsPattern:
		v, present := operand(x, bag)
		if !present {
			return false
		}
		return py.matches(v) == eq
	case xIsPattern && !yIsPattern:
		v, present := operand(y, bag)
		if !present {
			return false
		}
		return px.matches(v) == eq
	}

	vx, present := operand(x, bag)
	if !present {
		return false
	}
	vy, present := operand(y, bag)
	if !present {
		return false
	}
	return vx.Equal(vy) == eq
}

// matches reports whether a present value satisfies the pattern.
func (p *Pattern) matches(v schema.Value) bool {
	if p.Any {
		return true
	}
	s, ok := v.Str()
	return ok && strings.HasPrefix(s, p.Prefix)
}
