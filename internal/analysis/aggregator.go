// Package analysis turns detector output into summaries, report sections,
// recommendations and per-case risk rankings. Scores are ranking
// heuristics, not calibrated probabilities.
package analysis

import (
	"fmt"
	"sort"

	"testemunhas/api/internal/detect"
)

type Summary struct {
	TotalFindings         int `json:"total_achados"`
	CriticalIssues        int `json:"problemas_criticos"`
	HighConfidence        int `json:"alta_confianca"`
	ProfessionalWitnesses int `json:"testemunhas_profissionais"`
	OffendingLawyers      int `json:"advogados_envolvidos"`
	AffectedCases         int `json:"processos_afetados"`
	PendingCompletion     int `json:"pendentes_completar"`
}

// Section groups the findings of one detector.
type Section struct {
	Padrao  detect.Detector `json:"padrao"`
	Titulo  string          `json:"titulo"`
	Total   int             `json:"total"`
	Achados any             `json:"achados"`
}

type Insight struct {
	Tipo        string `json:"tipo"`
	Descricao   string `json:"descricao"`
	Referencia  string `json:"referencia"`
	Ocorrencias int    `json:"ocorrencias"`
}

type CaseRisk struct {
	CNJ     string            `json:"cnj"`
	Score   float64           `json:"score"`
	Nivel   string            `json:"nivel"`
	Padroes []detect.Detector `json:"padroes"`
}

type Report struct {
	Resumo             Summary    `json:"resumo"`
	Secoes             []Section  `json:"secoes"`
	Recomendacoes      []string   `json:"recomendacoes"`
	Insights           []Insight  `json:"insights"`
	RiscoPorProcesso   []CaseRisk `json:"risco_por_processo"`
	PendentesCompletar []string   `json:"pendentes_completar"`
}

var sectionTitles = map[detect.Detector]string{
	detect.DetectorTrocaDireta:     "Troca direta de favores",
	detect.DetectorTriangulacao:    "Triangulação entre testemunhas",
	detect.DetectorDuploPapel:      "Duplo papel (reclamante e testemunha)",
	detect.DetectorProvaEmprestada: "Prova emprestada / testemunha profissional",
	detect.DetectorHomonimos:       "Possíveis homônimos",
}

type Aggregator struct {
	cfg Config
}

func New(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// ExtractSummary summarizes res with the default thresholds.
func ExtractSummary(res detect.Result) Summary {
	return New(DefaultConfig()).Summary(res)
}

// FormatForReport builds a report with the default thresholds and weights.
func FormatForReport(res detect.Result) Report {
	return New(DefaultConfig()).Report(res)
}

// CaseRiskScores ranks cases by the weighted count of distinct finding
// types touching them, highest first.
func CaseRiskScores(res detect.Result, weights Pesos) []CaseRisk {
	cfg := DefaultConfig()
	cfg.Pesos = weights
	return New(cfg).CaseRisk(res)
}

func (a *Aggregator) Summary(res detect.Result) Summary {
	s := Summary{
		TotalFindings:         res.Total(),
		ProfessionalWitnesses: len(res.ProvaEmprestada),
		PendingCompletion:     len(res.PendentesCompletar),
	}
	high := a.cfg.AltaConfianca

	for _, t := range res.TrocaDireta {
		if t.Confianca >= high {
			s.HighConfidence++
		}
	}
	for _, t := range res.Triangulacao {
		if t.Confianca >= high {
			s.HighConfidence++
			s.CriticalIssues++
		}
	}
	for _, d := range res.DuploPapel {
		if d.Confianca >= high {
			s.HighConfidence++
		}
		if d.Risco == detect.RiscoAlto {
			s.CriticalIssues++
		}
	}
	for _, p := range res.ProvaEmprestada {
		if p.Confianca >= high {
			s.HighConfidence++
		}
		if p.Alerta {
			s.CriticalIssues++
		}
	}
	for _, h := range res.Homonimos {
		if h.Probabilidade == detect.ProbabilidadeAlta {
			s.HighConfidence++
		}
	}

	s.OffendingLawyers = len(lawyerCounts(res))
	s.AffectedCases = len(casesByDetector(res))
	return s
}

func (a *Aggregator) Report(res detect.Result) Report {
	risks := a.CaseRisk(res)
	if len(risks) > a.cfg.MaxCasos {
		risks = risks[:a.cfg.MaxCasos]
	}
	pending := res.PendentesCompletar
	if pending == nil {
		pending = []string{}
	}
	return Report{
		Resumo:             a.Summary(res),
		Secoes:             sections(res),
		Recomendacoes:      a.Recommendations(res),
		Insights:           Insights(res),
		RiscoPorProcesso:   risks,
		PendentesCompletar: pending,
	}
}

func sections(res detect.Result) []Section {
	executed := res.Executados
	if len(executed) == 0 {
		executed = detect.AllDetectors
	}
	out := make([]Section, 0, len(executed))
	for _, d := range executed {
		s := Section{Padrao: d, Titulo: sectionTitles[d]}
		switch d {
		case detect.DetectorTrocaDireta:
			s.Total, s.Achados = len(res.TrocaDireta), res.TrocaDireta
		case detect.DetectorTriangulacao:
			s.Total, s.Achados = len(res.Triangulacao), res.Triangulacao
		case detect.DetectorDuploPapel:
			s.Total, s.Achados = len(res.DuploPapel), res.DuploPapel
		case detect.DetectorProvaEmprestada:
			s.Total, s.Achados = len(res.ProvaEmprestada), res.ProvaEmprestada
		case detect.DetectorHomonimos:
			s.Total, s.Achados = len(res.Homonimos), res.Homonimos
		}
		out = append(out, s)
	}
	return out
}

// Recommendations applies the threshold rules in a fixed order.
func (a *Aggregator) Recommendations(res detect.Result) []string {
	lim := a.cfg.Limiares
	var out []string

	highDual := 0
	for _, d := range res.DuploPapel {
		if d.Risco == detect.RiscoAlto {
			highDual++
		}
	}
	if highDual >= lim.DuploPapelAlto {
		out = append(out, fmt.Sprintf("Priorizar contradita em %d caso(s) de duplo papel com risco ALTO", highDual))
	}
	if n := len(res.Triangulacao); n >= lim.Triangulacoes {
		out = append(out, fmt.Sprintf("Analisar %d ciclo(s) de triangulação entre testemunhas e os advogados em comum", n))
	}
	if n := len(res.TrocaDireta); n >= lim.TrocasDiretas {
		out = append(out, fmt.Sprintf("Revisar %d troca(s) direta(s) de favores entre testemunhas", n))
	}
	if n := len(res.ProvaEmprestada); n >= lim.Profissionais {
		alerts := 0
		for _, p := range res.ProvaEmprestada {
			if p.Alerta {
				alerts++
			}
		}
		msg := fmt.Sprintf("Investigar %d testemunha(s) profissional(is)", n)
		if alerts > 0 {
			msg += fmt.Sprintf("; %d com alta concentração geográfica, confirmar legitimidade antes de contraditar", alerts)
		}
		out = append(out, msg)
	}
	likely := 0
	for _, h := range res.Homonimos {
		if h.Probabilidade == detect.ProbabilidadeAlta {
			likely++
		}
	}
	if likely >= lim.Homonimos {
		out = append(out, fmt.Sprintf("Confirmar manualmente %d possível(is) homônimo(s) antes de consolidar identidades", likely))
	}
	if n := len(res.PendentesCompletar); n >= lim.Pendentes {
		out = append(out, fmt.Sprintf("Completar o cadastro de %d processo(s) criados a partir de referências de testemunhas", n))
	}
	if len(out) == 0 {
		out = append(out, "Nenhum padrão relevante encontrado; manter monitoramento")
	}
	return out
}

func (a *Aggregator) CaseRisk(res detect.Result) []CaseRisk {
	byCase := casesByDetector(res)
	out := make([]CaseRisk, 0, len(byCase))
	for number, detectors := range byCase {
		var kinds []detect.Detector
		score := 0.0
		for _, d := range detect.AllDetectors {
			if detectors[d] {
				kinds = append(kinds, d)
				score += a.cfg.Pesos.of(d)
			}
		}
		out = append(out, CaseRisk{CNJ: number, Score: score, Nivel: a.level(score), Padroes: kinds})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CNJ < out[j].CNJ
	})
	return out
}

func (a *Aggregator) level(score float64) string {
	switch {
	case score >= a.cfg.RiscoAltoMin:
		return detect.RiscoAlto
	case score >= a.cfg.RiscoMedioMin:
		return detect.RiscoMedio
	default:
		return detect.RiscoBaixo
	}
}

func casesByDetector(res detect.Result) map[string]map[detect.Detector]bool {
	out := make(map[string]map[detect.Detector]bool)
	mark := func(d detect.Detector, lists ...[]string) {
		for _, list := range lists {
			for _, number := range list {
				if out[number] == nil {
					out[number] = make(map[detect.Detector]bool)
				}
				out[number][d] = true
			}
		}
	}
	for _, t := range res.TrocaDireta {
		mark(detect.DetectorTrocaDireta, t.CNJsAParaB, t.CNJsBParaA)
	}
	for _, t := range res.Triangulacao {
		mark(detect.DetectorTriangulacao, t.CNJs)
	}
	for _, d := range res.DuploPapel {
		mark(detect.DetectorDuploPapel, d.CNJsComoReclamante, d.CNJsComoTestemunha)
	}
	for _, p := range res.ProvaEmprestada {
		mark(detect.DetectorProvaEmprestada, p.CNJs)
	}
	for _, h := range res.Homonimos {
		mark(detect.DetectorHomonimos, h.CNJsA, h.CNJsB)
	}
	return out
}
