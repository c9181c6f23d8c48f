package domain

import "strings"

// Token is a venue-agnostic token identifier, in practice a checksummed or
// lower-case hex contract address.
type Token string

func (t Token) String() string { return string(t) }

// Equal compares two identifiers ignoring hex case.
func (t Token) Equal(o Token) bool {
	return strings.EqualFold(string(t), string(o))
}

// TokenPair is an unordered pair of tokens discovered from a factory.
type TokenPair struct {
	TokenA Token `json:"token_a"`
	TokenB Token `json:"token_b"`
}

// TokenTriple is the directed cycle A -> B -> C -> A. A->B->C and A->C->B
// are different triples because the quoted path differs.
type TokenTriple struct {
	A Token
	B Token
	C Token
}

// Key is the identity used by the dedup sets.
func (t TokenTriple) Key() string {
	return string(t.A) + "-" + string(t.B) + "-" + string(t.C)
}

// Path returns the four-hop trade path [A, B, C, A].
func (t TokenTriple) Path() []Token {
	return []Token{t.A, t.B, t.C, t.A}
}

// Distinct reports whether all three legs are different tokens.
func (t TokenTriple) Distinct() bool {
	return !t.A.Equal(t.B) && !t.B.Equal(t.C) && !t.A.Equal(t.C)
}

func (t TokenTriple) String() string {
	return string(t.A) + "->" + string(t.B) + "->" + string(t.C) + "->" + string(t.A)
}
