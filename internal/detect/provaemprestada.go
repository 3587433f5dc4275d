package detect

import (
	"context"
	"sort"
)

// detectProvaEmprestada flags witnesses whose testimony count is strictly
// above cfg.ProvaEmprestadaMin. The count is the larger of the declared
// QtdDepoimentos and the number of indexed cases.
func detectProvaEmprestada(ctx context.Context, idx *Index, cfg Config) ([]ProvaEmprestada, error) {
	var out []ProvaEmprestada
	for _, name := range idx.People() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys := idx.WitnessCases(name)
		count := len(keys)
		if t, ok := idx.testemunhas[name]; ok && t.QtdDepoimentos > count {
			count = t.QtdDepoimentos
		}
		if count <= cfg.ProvaEmprestadaMin {
			continue
		}

		lawyerCounts := make(map[string]int)
		venueCounts := make(map[string]int)
		for _, key := range keys {
			for _, lawyer := range idx.Lawyers(key) {
				lawyerCounts[lawyer]++
			}
			if v := idx.Venue(key); v != "" {
				venueCounts[v]++
			}
		}

		var recurring []Contagem
		for _, c := range rankCounts(lawyerCounts) {
			if c.Total >= 2 {
				recurring = append(recurring, c)
			}
		}
		venues := rankCounts(venueCounts)
		concentration := topShare(venues, cfg.TopComarcas, len(keys))
		alert := concentration > cfg.ConcentracaoMin

		confidence := 0.5 + 0.05*float64(count-cfg.ProvaEmprestadaMin)
		if alert {
			confidence += 0.2
		}

		out = append(out, ProvaEmprestada{
			Nome:                 name,
			QtdDepoimentos:       count,
			CNJs:                 idx.formattedAll(keys),
			AdvogadosRecorrentes: recurring,
			Comarcas:             venues,
			Concentracao:         round2(concentration),
			Alerta:               alert,
			Confianca:            round2(confidence),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QtdDepoimentos != out[j].QtdDepoimentos {
			return out[i].QtdDepoimentos > out[j].QtdDepoimentos
		}
		return out[i].Nome < out[j].Nome
	})
	return out, nil
}

func rankCounts(counts map[string]int) []Contagem {
	out := make([]Contagem, 0, len(counts))
	for name, total := range counts {
		out = append(out, Contagem{Nome: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Nome < out[j].Nome
	})
	return out
}

// topShare is the fraction of cases that fall in the n most frequent venues.
func topShare(ranked []Contagem, n, total int) float64 {
	if total == 0 {
		return 0
	}
	sum := 0
	for i := 0; i < len(ranked) && i < n; i++ {
		sum += ranked[i].Total
	}
	return float64(sum) / float64(total)
}
