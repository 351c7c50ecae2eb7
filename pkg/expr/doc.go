// Package expr parses and evaluates the expression language used by rule
// match predicates and instance params.
//
// # Grammar
//
//	expr    := or
//	or      := and { "||" and }
//	and     := unary { "&&" unary }
//	unary   := "!" unary | compare
//	compare := operand [ ("==" | "!=") operand ]
//	operand := primary { "|" primary }
//	primary := "true" | "false" | STRING | NUMBER | IDENT | "(" expr ")"
//
// IDENT is an attribute reference. A string literal ending in '*' used as an
// operand of "==" or "!=" is a prefix pattern; "*" alone matches any present
// value. The "|" operator yields its left operand when present and falls back
// to the right one otherwise. An empty source is the constant true.
//
// # Evaluation
//
// Expressions are parsed once, when a configuration is loaded, and evaluated
// per request. EvalBool is total: comparisons against absent attributes are
// false and nothing panics or errors. Eval is used where a value is needed
// (instance params) and reports absent attributes as MissingAttribute:
//
//	node, err := expr.Parse(`destination.service == "ratings*"`)
//	if err != nil {
//	    return err
//	}
//	if expr.EvalBool(node, bag) {
//	    // rule applies
//	}
//
// Check type-checks an expression against declared attributes before a
// configuration is activated.
package expr
