package detect

import (
	"fmt"
	"strings"
)

// Detector names a pattern detector.
type Detector string

const (
	DetectorTrocaDireta     Detector = "trocaDireta"
	DetectorTriangulacao    Detector = "triangulacao"
	DetectorDuploPapel      Detector = "duploPapel"
	DetectorProvaEmprestada Detector = "provaEmprestada"
	DetectorHomonimos       Detector = "homonimos"
)

// AllDetectors lists every detector in report order.
var AllDetectors = []Detector{
	DetectorTrocaDireta,
	DetectorTriangulacao,
	DetectorDuploPapel,
	DetectorProvaEmprestada,
	DetectorHomonimos,
}

// ParseDetector accepts a detector name, ignoring case.
func ParseDetector(name string) (Detector, error) {
	for _, d := range AllDetectors {
		if strings.EqualFold(string(d), strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown detector %q", name)
}

// Risk levels for dual-role findings.
const (
	RiscoAlto  = "ALTO"
	RiscoMedio = "MÉDIO"
	RiscoBaixo = "BAIXO"
)

// Probability levels for homonym findings.
const (
	ProbabilidadeAlta  = "ALTA"
	ProbabilidadeMedia = "MÉDIA"
	ProbabilidadeBaixa = "BAIXA"
)

// Homonym finding kinds.
const (
	HomonimoMesmaPessoa      = "mesma_pessoa"
	HomonimoPessoasDistintas = "pessoas_distintas"
)

// TrocaDireta is a reciprocal pair: A testified where B is a party and B
// testified where A is a party.
type TrocaDireta struct {
	TestemunhaA     string   `json:"testemunha_a"`
	TestemunhaB     string   `json:"testemunha_b"`
	CNJsAParaB      []string `json:"cnjs_a_para_b"`
	CNJsBParaA      []string `json:"cnjs_b_para_a"`
	ParesReciprocos int      `json:"pares_reciprocos"`
	AdvogadosComuns []string `json:"advogados_comuns"`
	Comarcas        []string `json:"comarcas"`
	Confianca       float64  `json:"confianca"`
}

// Aresta is one "testified for" step of a cycle.
type Aresta struct {
	De   string   `json:"de"`
	Para string   `json:"para"`
	CNJs []string `json:"cnjs"`
}

// Triangulacao is a minimal directed testimony cycle of length >= 3,
// rotated to start at its lexicographically smallest participant.
type Triangulacao struct {
	Ciclo           []string `json:"ciclo"`
	Tamanho         int      `json:"tamanho"`
	Arestas         []Aresta `json:"arestas"`
	CNJs            []string `json:"cnjs"`
	AdvogadosComuns []string `json:"advogados_comuns"`
	Comarcas        []string `json:"comarcas"`
	Confianca       float64  `json:"confianca"`
}

// DuploPapel is a person recorded as both claimant and witness.
type DuploPapel struct {
	Nome               string   `json:"nome"`
	CNJsComoReclamante []string `json:"cnjs_como_reclamante"`
	CNJsComoTestemunha []string `json:"cnjs_como_testemunha"`
	MesmoProcesso      []string `json:"mesmo_processo,omitempty"`
	ReclamadasComuns   []string `json:"reclamadas_comuns,omitempty"`
	AdvogadosComuns    []string `json:"advogados_comuns,omitempty"`
	ComarcasComuns     []string `json:"comarcas_comuns,omitempty"`
	Risco              string   `json:"risco"`
	Confianca          float64  `json:"confianca"`
}

// Contagem pairs a label with an occurrence count.
type Contagem struct {
	Nome  string `json:"nome"`
	Total int    `json:"total"`
}

// ProvaEmprestada flags a witness testifying more often than the threshold.
type ProvaEmprestada struct {
	Nome                 string     `json:"nome"`
	QtdDepoimentos       int        `json:"qtd_depoimentos"`
	CNJs                 []string   `json:"cnjs"`
	AdvogadosRecorrentes []Contagem `json:"advogados_recorrentes"`
	Comarcas             []Contagem `json:"comarcas"`
	Concentracao         float64    `json:"concentracao_geografica"`
	Alerta               bool       `json:"alerta"`
	Confianca            float64    `json:"confianca"`
}

// Homonimo is a candidate identity link between two name records. It is
// never applied automatically; a reviewer confirms or rejects it.
type Homonimo struct {
	Tipo          string   `json:"tipo"`
	NomeA         string   `json:"nome_a"`
	NomeB         string   `json:"nome_b"`
	Similaridade  float64  `json:"similaridade"`
	Distancia     int      `json:"distancia_edicao"`
	Fatores       []string `json:"fatores"`
	Score         float64  `json:"score"`
	Probabilidade string   `json:"probabilidade"`
	PapeisA       []string `json:"papeis_a"`
	PapeisB       []string `json:"papeis_b"`
	CNJsA         []string `json:"cnjs_a"`
	CNJsB         []string `json:"cnjs_b"`
}

// Homonym contributing factors.
const (
	FatorGrafiaEquivalente   = "grafia_equivalente"
	FatorDistanciaEdicao     = "distancia_edicao_pequena"
	FatorMesmasIniciais      = "mesmas_iniciais"
	FatorMesmaComarca        = "mesma_comarca"
	FatorMesmoAdvogado       = "mesmo_advogado"
	FatorProximidadeTemporal = "proximidade_temporal"
	FatorUFsDistintas        = "ufs_distintas"
	FatorSemAdvogadoEmComum  = "sem_advogado_em_comum"
)

// Result bundles every detector's findings for one run.
type Result struct {
	TrocaDireta     []TrocaDireta     `json:"trocaDireta"`
	Triangulacao    []Triangulacao    `json:"triangulacao"`
	DuploPapel      []DuploPapel      `json:"duploPapel"`
	ProvaEmprestada []ProvaEmprestada `json:"provaEmprestada"`
	Homonimos       []Homonimo        `json:"homonimos"`

	Executados            []Detector `json:"executados"`
	CasosAnalisados       int        `json:"casos_analisados"`
	TestemunhasAnalisadas int        `json:"testemunhas_analisadas"`
	// CNJs of stub cases included in the run; they need manual completion.
	PendentesCompletar []string `json:"pendentes_completar"`
}

// Total counts findings across detectors.
func (r Result) Total() int {
	return len(r.TrocaDireta) + len(r.Triangulacao) + len(r.DuploPapel) + len(r.ProvaEmprestada) + len(r.Homonimos)
}
