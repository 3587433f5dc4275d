package detect

import (
	"context"
	"sort"

	"testemunhas/api/internal/names"
)

var riskRank = map[string]int{RiscoAlto: 0, RiscoMedio: 1, RiscoBaixo: 2}

// detectDuploPapel finds names recorded both as claimant and as witness.
// The risk is ALTO when a claimant case and a witness case are related
// through the same respondent or the same lawyer, or when both roles fall
// on the same case. A shared venue alone gives MÉDIO.
func detectDuploPapel(ctx context.Context, idx *Index, _ Config) ([]DuploPapel, error) {
	var out []DuploPapel
	for _, name := range idx.People() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		asClaimant := idx.ClaimantCases(name)
		asWitness := idx.WitnessCases(name)
		if len(asClaimant) == 0 || len(asWitness) == 0 {
			continue
		}

		claimantSet := toSet(asClaimant)
		sameCase := make(map[string]bool)
		for _, key := range asWitness {
			if claimantSet[key] {
				sameCase[key] = true
			}
		}
		respondents := intersect(idx.respondentSet(asClaimant), idx.respondentSet(asWitness))
		lawyers := intersect(idx.lawyerSet(asClaimant), idx.lawyerSet(asWitness))
		venues := intersect(idx.venueSet(asClaimant), idx.venueSet(asWitness))

		risk, confidence := RiscoBaixo, 0.4
		switch {
		case len(sameCase) > 0 || len(respondents) > 0 || len(lawyers) > 0:
			risk, confidence = RiscoAlto, 0.8
			if len(sameCase) > 0 {
				confidence += 0.1
			}
			if len(respondents) > 0 && len(lawyers) > 0 {
				confidence += 0.1
			}
		case len(venues) > 0:
			risk, confidence = RiscoMedio, 0.6
		}

		out = append(out, DuploPapel{
			Nome:               name,
			CNJsComoReclamante: idx.formattedAll(asClaimant),
			CNJsComoTestemunha: idx.formattedAll(asWitness),
			MesmoProcesso:      idx.formattedAll(sortedKeys(sameCase)),
			ReclamadasComuns:   sortedKeys(respondents),
			AdvogadosComuns:    sortedKeys(lawyers),
			ComarcasComuns:     sortedKeys(venues),
			Risco:              risk,
			Confianca:          round2(confidence),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if riskRank[out[i].Risco] != riskRank[out[j].Risco] {
			return riskRank[out[i].Risco] < riskRank[out[j].Risco]
		}
		return out[i].Nome < out[j].Nome
	})
	return out, nil
}

// respondentSet folds respondent names so "Empresa X Ltda" and
// "EMPRESA X LTDA" compare equal.
func (idx *Index) respondentSet(keys []string) map[string]bool {
	set := make(map[string]bool)
	for _, key := range keys {
		if r := names.Fold(idx.cases[key].Reclamada); r != "" {
			set[r] = true
		}
	}
	return set
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
