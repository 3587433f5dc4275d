package detect

import (
	"testemunhas/api/internal/cnj"
	"testemunhas/api/internal/model"
	"testemunhas/api/internal/names"
)

// ApplyFlags returns copies of cases and witnesses with the detector flags
// set from res. Inputs are not modified.
func ApplyFlags(cases []model.Processo, witnesses []model.Testemunha, res Result) ([]model.Processo, []model.Testemunha) {
	trocaCases := make(map[string]bool)
	trocaPeople := make(map[string]bool)
	for _, t := range res.TrocaDireta {
		markAll(trocaCases, t.CNJsAParaB, t.CNJsBParaA)
		trocaPeople[t.TestemunhaA] = true
		trocaPeople[t.TestemunhaB] = true
	}
	cycleCases := make(map[string]bool)
	cyclePeople := make(map[string]bool)
	for _, t := range res.Triangulacao {
		markAll(cycleCases, t.CNJs)
		for _, name := range t.Ciclo {
			cyclePeople[name] = true
		}
	}
	borrowedCases := make(map[string]bool)
	borrowedPeople := make(map[string]bool)
	for _, p := range res.ProvaEmprestada {
		markAll(borrowedCases, p.CNJs)
		borrowedPeople[p.Nome] = true
	}

	outCases := make([]model.Processo, len(cases))
	for i, c := range cases {
		key := c.CNJDigits
		if key == "" {
			key = cnj.Clean(c.CNJ)
		}
		c.TrocaDireta = trocaCases[key]
		c.TriangulacaoConfirmada = cycleCases[key]
		c.ProvaEmprestada = borrowedCases[key]
		outCases[i] = c
	}
	outWitnesses := make([]model.Testemunha, len(witnesses))
	for i, w := range witnesses {
		name := names.Canonical(w.Nome)
		w.ParticipouTroca = trocaPeople[name]
		w.ParticipouTriangulacao = cyclePeople[name]
		w.ProvaEmprestada = borrowedPeople[name]
		outWitnesses[i] = w
	}
	return outCases, outWitnesses
}

func markAll(set map[string]bool, lists ...[]string) {
	for _, list := range lists {
		for _, ref := range list {
			set[cnj.Clean(ref)] = true
		}
	}
}
