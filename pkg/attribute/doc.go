// Package attribute holds the vocabulary of attributes a request may carry.
//
// A Registry merges the AttributeInfo declared by every loaded manifest and
// enforces two invariants: each name satisfies the attribute grammar
//
//	IDENT (SEPARATOR IDENT)*    IDENT = [a-z][a-z0-9]+, SEPARATOR = '.' | '-'
//
// and each name has one value type across all manifests. Re-announcing a
// manifest under the same name atomically replaces its previous entries.
//
// A Bag is the attribute context of a single request.
package attribute
