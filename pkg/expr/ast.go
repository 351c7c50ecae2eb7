package expr

import (
	"sort"
	"strconv"

	"mercator-hq/mixer/pkg/schema"
)

// Op is an operator of a Unary or Binary node.
type Op string

const (
	OpNot     Op = "!"
	OpAnd     Op = "&&"
	OpOr      Op = "||"
	OpEq      Op = "=="
	OpNe      Op = "!="
	OpDefault Op = "|"
)

// Node is a parsed expression. Nodes are immutable and safe to share between
// goroutines.
type Node interface {
	// String renders the node in canonical source form.
	String() string

	// Pos returns the byte offset of the node in its source.
	Pos() int

	node()
}

// Literal is a constant value.
type Literal struct {
	Value  schema.Value
	Offset int
}

// AttrRef references an attribute of the request.
type AttrRef struct {
	Name   string
	Offset int
}

// Pattern is a trailing-wildcard string match. With Any set it matches every
// present value.
type Pattern struct {
	Prefix string
	Any    bool
	Offset int
}

// Unary applies OpNot to X.
type Unary struct {
	Op     Op
	X      Node
	Offset int
}

// Binary combines X and Y with a logical, comparison or default operator.
type Binary struct {
	Op     Op
	X, Y   Node
	Offset int
}

func (*Literal) node() {}
func (*AttrRef) node() {}
func (*Pattern) node() {}
func (*Unary) node()   {}
func (*Binary) node()  {}

func (n *Literal) Pos() int { return n.Offset }
func (n *AttrRef) Pos() int { return n.Offset }
func (n *Pattern) Pos() int { return n.Offset }
func (n *Unary) Pos() int   { return n.Offset }
func (n *Binary) Pos() int  { return n.Offset }

func (n *Literal) String() string {
	if s, ok := n.Value.Str(); ok {
		return strconv.Quote(s)
	}
	return n.Value.String()
}

func (n *AttrRef) String() string { return n.Name }

func (n *Pattern) String() string {
	if n.Any {
		return `"*"`
	}
	return strconv.Quote(n.Prefix + "*")
}

func (n *Unary) String() string { return string(n.Op) + n.X.String() }

func (n *Binary) String() string {
	return "(" + n.X.String() + " " + string(n.Op) + " " + n.Y.String() + ")"
}

// True is the expression an empty source parses to.
var True Node = &Literal{Value: schema.Bool(true)}

// IsConstTrue reports whether n is the literal true.
func IsConstTrue(n Node) bool {
	lit, ok := n.(*Literal)
	if !ok {
		return false
	}
	b, isBool := lit.Value.Boolean()
	return isBool && b
}

// Attributes returns the sorted, de-duplicated attribute names n references.
func Attributes(n Node) []string {
	seen := make(map[string]struct{})
	Walk(n, func(child Node) {
		if ref, ok := child.(*AttrRef); ok {
			seen[ref.Name] = struct{}{}
		}
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Walk calls fn for n and every descendant, depth first.
func Walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	switch t := n.(type) {
	case *Unary:
		Walk(t.X, fn)
	case *Binary:
		Walk(t.X, fn)
		Walk(t.Y, fn)
	}
}
