package analysis

import (
	"fmt"
	"sort"

	"testemunhas/api/internal/detect"
)

const (
	InsightAdvogado   = "advogado_recorrente"
	InsightTestemunha = "testemunha_mais_conectada"
	InsightComarca    = "comarca_dominante"
)

// Insights names the lawyer, person and venue that show up in the most
// findings. Categories with no data are omitted.
func Insights(res detect.Result) []Insight {
	var out []Insight
	if name, n := top(lawyerCounts(res)); n > 0 {
		out = append(out, Insight{
			Tipo:        InsightAdvogado,
			Descricao:   fmt.Sprintf("%s aparece em %d achado(s)", name, n),
			Referencia:  name,
			Ocorrencias: n,
		})
	}
	if name, n := top(personCounts(res)); n > 0 {
		out = append(out, Insight{
			Tipo:        InsightTestemunha,
			Descricao:   fmt.Sprintf("%s está envolvido(a) em %d achado(s)", name, n),
			Referencia:  name,
			Ocorrencias: n,
		})
	}
	if name, n := top(venueCounts(res)); n > 0 {
		out = append(out, Insight{
			Tipo:        InsightComarca,
			Descricao:   fmt.Sprintf("%s concentra %d achado(s)", name, n),
			Referencia:  name,
			Ocorrencias: n,
		})
	}
	if out == nil {
		out = []Insight{}
	}
	return out
}

// lawyerCounts counts, per lawyer, the findings that name them.
func lawyerCounts(res detect.Result) map[string]int {
	counts := make(map[string]int)
	add := func(lawyers []string) {
		for _, l := range lawyers {
			counts[l]++
		}
	}
	for _, t := range res.TrocaDireta {
		add(t.AdvogadosComuns)
	}
	for _, t := range res.Triangulacao {
		add(t.AdvogadosComuns)
	}
	for _, d := range res.DuploPapel {
		add(d.AdvogadosComuns)
	}
	for _, p := range res.ProvaEmprestada {
		for _, c := range p.AdvogadosRecorrentes {
			counts[c.Nome]++
		}
	}
	return counts
}

func personCounts(res detect.Result) map[string]int {
	counts := make(map[string]int)
	for _, t := range res.TrocaDireta {
		counts[t.TestemunhaA]++
		counts[t.TestemunhaB]++
	}
	for _, t := range res.Triangulacao {
		for _, name := range t.Ciclo {
			counts[name]++
		}
	}
	for _, d := range res.DuploPapel {
		counts[d.Nome]++
	}
	for _, p := range res.ProvaEmprestada {
		counts[p.Nome]++
	}
	return counts
}

func venueCounts(res detect.Result) map[string]int {
	counts := make(map[string]int)
	add := func(venues []string) {
		for _, v := range venues {
			counts[v]++
		}
	}
	for _, t := range res.TrocaDireta {
		add(t.Comarcas)
	}
	for _, t := range res.Triangulacao {
		add(t.Comarcas)
	}
	for _, d := range res.DuploPapel {
		add(d.ComarcasComuns)
	}
	for _, p := range res.ProvaEmprestada {
		for _, c := range p.Comarcas {
			counts[c.Nome]++
		}
	}
	return counts
}

func top(counts map[string]int) (string, int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, n := "", 0
	for _, k := range keys {
		if counts[k] > n {
			best, n = k, counts[k]
		}
	}
	return best, n
}
