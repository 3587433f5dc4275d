package detect

import (
	"context"
	"sort"
)

// detectTrocaDireta reports each reciprocal pair once, ordered A < B.
// Mutually reciprocal clusters of three or more come out as separate pairs.
func detectTrocaDireta(ctx context.Context, idx *Index, cfg Config) ([]TrocaDireta, error) {
	var out []TrocaDireta
	for _, a := range idx.People() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, b := range idx.Successors(a) {
			if b <= a || !idx.hasEdge(b, a) {
				continue
			}
			aToB := idx.Edge(a, b)
			bToA := idx.Edge(b, a)
			shared := intersect(idx.lawyerSet(aToB), idx.lawyerSet(bToA))
			pairs := len(aToB) * len(bToA)
			all := append(append([]string(nil), aToB...), bToA...)

			out = append(out, TrocaDireta{
				TestemunhaA:     a,
				TestemunhaB:     b,
				CNJsAParaB:      idx.formattedAll(aToB),
				CNJsBParaA:      idx.formattedAll(bToA),
				ParesReciprocos: pairs,
				AdvogadosComuns: sortedKeys(shared),
				Comarcas:        sortedKeys(idx.venueSet(all)),
				Confianca:       trocaConfidence(pairs, len(shared), cfg.Pesos),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confianca != out[j].Confianca {
			return out[i].Confianca > out[j].Confianca
		}
		if out[i].TestemunhaA != out[j].TestemunhaA {
			return out[i].TestemunhaA < out[j].TestemunhaA
		}
		return out[i].TestemunhaB < out[j].TestemunhaB
	})
	return out, nil
}

func trocaConfidence(pairs, sharedLawyers int, p Pesos) float64 {
	if pairs == 0 {
		return 0
	}
	extra := pairs - 1
	if extra > 3 {
		extra = 3
	}
	score := p.TrocaBase + p.TrocaPorPar*float64(extra)
	if sharedLawyers > 0 {
		score += p.TrocaAdvogado
	}
	return round2(score)
}
