package arbitrage

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// defaultWeightLookups bounds concurrent balance lookups during ranking.
const defaultWeightLookups = 8

// TripleGenerator turns discovered pairs into ranked candidate cycles.
type TripleGenerator struct {
	balances domain.BalanceSource
	lookups  int
	logger   *slog.Logger
}

// NewTripleGenerator creates a generator that ranks tokens by the weights
// reported by balances. lookups <= 0 uses a small default.
func NewTripleGenerator(balances domain.BalanceSource, lookups int, logger *slog.Logger) *TripleGenerator {
	if lookups <= 0 {
		lookups = defaultWeightLookups
	}
	return &TripleGenerator{
		balances: balances,
		lookups:  lookups,
		logger:   logger.With(slog.String("component", "triple_generator")),
	}
}

type rankedToken struct {
	token  domain.Token
	weight decimal.Decimal
	ok     bool
}

// Generate returns every ordered triple of pairwise-distinct ranked tokens.
// Triples rooted at heavier tokens come first. Tokens whose weight is zero or
// could not be resolved are left out; a failed lookup never aborts the run.
func (g *TripleGenerator) Generate(ctx context.Context, pairs []domain.TokenPair) []domain.TokenTriple {
	tokens := DistinctTokens(pairs)
	ranked := make([]rankedToken, len(tokens))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.lookups)
	for i, tok := range tokens {
		eg.Go(func() error {
			w, err := g.balances.Weight(egCtx, tok)
			if err != nil {
				g.logger.Warn("weight lookup failed, excluding token",
					slog.String("token", tok.String()),
					slog.String("error", err.Error()),
				)
				ranked[i] = rankedToken{token: tok}
				return nil
			}
			ranked[i] = rankedToken{token: tok, weight: w, ok: w.Sign() > 0}
			return nil
		})
	}
	_ = eg.Wait()

	kept := ranked[:0]
	for _, r := range ranked {
		if r.ok {
			kept = append(kept, r)
			continue
		}
		g.logger.Debug("token dropped from ranking", slog.String("token", r.token.String()))
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].weight.GreaterThan(kept[j].weight)
	})

	ordered := make([]domain.Token, len(kept))
	for i, r := range kept {
		ordered[i] = r.token
	}
	triples := EnumerateTriples(ordered)

	g.logger.Info("candidates generated",
		slog.Int("pairs", len(pairs)),
		slog.Int("tokens", len(tokens)),
		slog.Int("ranked", len(ordered)),
		slog.Int("triples", len(triples)),
	)
	return triples
}

// DistinctTokens returns each token that appears in pairs once, in order of
// first appearance. Hex case is ignored when comparing.
func DistinctTokens(pairs []domain.TokenPair) []domain.Token {
	seen := make(map[string]struct{}, len(pairs)*2)
	out := make([]domain.Token, 0, len(pairs)*2)
	add := func(t domain.Token) {
		if t == "" {
			return
		}
		k := strings.ToLower(string(t))
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	for _, p := range pairs {
		add(p.TokenA)
		add(p.TokenB)
	}
	return out
}

// EnumerateTriples lists all ordered triples of distinct tokens, iterating
// the outer index first so the input order is the priority order. tokens must
// already be free of duplicates.
func EnumerateTriples(tokens []domain.Token) []domain.TokenTriple {
	n := len(tokens)
	if n < 3 {
		return nil
	}
	out := make([]domain.TokenTriple, 0, n*(n-1)*(n-2))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			for k := 0; k < n; k++ {
				if k == i || k == j {
					continue
				}
				out = append(out, domain.TokenTriple{A: tokens[i], B: tokens[j], C: tokens[k]})
			}
		}
	}
	return out
}
