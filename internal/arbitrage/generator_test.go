package arbitrage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
)

func TestTripleGenerator_Generate_ThreeTokenCycle(t *testing.T) {
	pairs := []domain.TokenPair{
		{TokenA: "X", TokenB: "Y"},
		{TokenA: "Y", TokenB: "Z"},
		{TokenA: "Z", TokenB: "X"},
	}
	g := NewTripleGenerator(fakeBalances{}, 0, testLogger())

	triples := g.Generate(context.Background(), pairs)

	require.Len(t, triples, 6)
	assert.ElementsMatch(t, []domain.TokenTriple{
		{A: "X", B: "Y", C: "Z"},
		{A: "X", B: "Z", C: "Y"},
		{A: "Y", B: "X", C: "Z"},
		{A: "Y", B: "Z", C: "X"},
		{A: "Z", B: "X", C: "Y"},
		{A: "Z", B: "Y", C: "X"},
	}, triples)
}

func TestTripleGenerator_Generate_NoRepeatsNoDuplicates(t *testing.T) {
	pairs := []domain.TokenPair{
		{TokenA: "A", TokenB: "B"},
		{TokenA: "B", TokenB: "C"},
		{TokenA: "c", TokenB: "D"}, // same token as C, different case
		{TokenA: "D", TokenB: "E"},
		{TokenA: "A", TokenB: "A"},
	}
	g := NewTripleGenerator(fakeBalances{}, 2, testLogger())

	triples := g.Generate(context.Background(), pairs)

	// five distinct tokens -> 5*4*3 ordered triples
	require.Len(t, triples, 60)
	seen := make(map[string]bool, len(triples))
	for _, tr := range triples {
		assert.True(t, tr.Distinct(), "triple %s repeats a token", tr)
		assert.False(t, seen[tr.Key()], "triple %s emitted twice", tr)
		seen[tr.Key()] = true
	}
}

func TestTripleGenerator_Generate_WeightPriority(t *testing.T) {
	pairs := []domain.TokenPair{
		{TokenA: "LOW", TokenB: "MID"},
		{TokenA: "MID", TokenB: "HIGH"},
		{TokenA: "HIGH", TokenB: "TIE"},
	}
	bal := fakeBalances{weights: map[domain.Token]float64{
		"LOW": 1, "MID": 5, "HIGH": 10, "TIE": 5,
	}}
	g := NewTripleGenerator(bal, 0, testLogger())

	triples := g.Generate(context.Background(), pairs)
	require.NotEmpty(t, triples)

	rank := map[domain.Token]float64{"LOW": 1, "MID": 5, "HIGH": 10, "TIE": 5}
	for i := 1; i < len(triples); i++ {
		assert.GreaterOrEqual(t, rank[triples[i-1].A], rank[triples[i].A],
			"triple %d rooted at lighter token precedes heavier root", i-1)
	}
	assert.Equal(t, domain.Token("HIGH"), triples[0].A)
	// ties keep input order: MID appears before TIE
	var firstMid, firstTie int = -1, -1
	for i, tr := range triples {
		if tr.A == "MID" && firstMid < 0 {
			firstMid = i
		}
		if tr.A == "TIE" && firstTie < 0 {
			firstTie = i
		}
	}
	assert.Less(t, firstMid, firstTie)
}

func TestTripleGenerator_Generate_LookupFailureExcludesOnlyThatToken(t *testing.T) {
	pairs := []domain.TokenPair{
		{TokenA: "A", TokenB: "B"},
		{TokenA: "C", TokenB: "D"},
	}
	bal := fakeBalances{
		errs:    map[domain.Token]error{"B": errors.New("rpc timeout")},
		weights: map[domain.Token]float64{"D": 0},
	}
	g := NewTripleGenerator(bal, 0, testLogger())

	triples := g.Generate(context.Background(), pairs)

	require.Len(t, triples, 0, "only A and C remain, too few for a cycle")

	pairs = append(pairs, domain.TokenPair{TokenA: "E", TokenB: "A"})
	triples = g.Generate(context.Background(), pairs)
	require.Len(t, triples, 6)
	for _, tr := range triples {
		for _, tok := range []domain.Token{tr.A, tr.B, tr.C} {
			assert.NotEqual(t, domain.Token("B"), tok)
			assert.NotEqual(t, domain.Token("D"), tok)
		}
	}
}

func TestEnumerateTriples_TooFewTokens(t *testing.T) {
	assert.Empty(t, EnumerateTriples(nil))
	assert.Empty(t, EnumerateTriples([]domain.Token{"A", "B"}))
}

func TestDistinctTokens_FirstAppearanceOrder(t *testing.T) {
	got := DistinctTokens([]domain.TokenPair{
		{TokenA: "B", TokenB: "A"},
		{TokenA: "a", TokenB: "C"},
		{TokenA: "", TokenB: "B"},
	})
	assert.Equal(t, []domain.Token{"B", "A", "C"}, got)
}
