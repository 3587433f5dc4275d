package model

import "time"

// Processo is a labor-lawsuit case record. CNJDigits is the join key.
type Processo struct {
	CNJ                string            `json:"cnj"`
	CNJDigits          string            `json:"cnj_digits"`
	UF                 string            `json:"uf"`
	Comarca            string            `json:"comarca"`
	Vara               string            `json:"vara,omitempty"`
	Fase               string            `json:"fase,omitempty"`
	Status             string            `json:"status,omitempty"`
	DataAudiencia      *time.Time        `json:"data_audiencia,omitempty"`
	Observacoes        string            `json:"observacoes,omitempty"`
	Reclamante         string            `json:"reclamante"`
	Reclamada          string            `json:"reclamada"`
	AdvogadosAtivo     []string          `json:"advogados_ativo"`
	TestemunhasAtivo   []string          `json:"testemunhas_ativo"`
	TestemunhasPassivo []string          `json:"testemunhas_passivo"`
	Testemunhas        []string          `json:"todas_testemunhas"`
	Extra              map[string]string `json:"extra,omitempty"`

	// Derived by the detection engine, never read from input.
	TrocaDireta            bool `json:"troca_direta"`
	TriangulacaoConfirmada bool `json:"triangulacao_confirmada"`
	ProvaEmprestada        bool `json:"prova_emprestada"`
}

// Testemunha is a witness record keyed by name.
type Testemunha struct {
	Nome               string            `json:"nome_testemunha"`
	QtdDepoimentos     int               `json:"qtd_depoimentos"`
	CNJsComoTestemunha []string          `json:"cnjs_como_testemunha"`
	CNJsComoReclamante []string          `json:"cnjs_como_reclamante"`
	JaFoiReclamante    bool              `json:"ja_foi_reclamante"`
	TestemunhaAtivo    bool              `json:"foi_testemunha_ativo"`
	TestemunhaPassivo  bool              `json:"foi_testemunha_passivo"`
	Extra              map[string]string `json:"extra,omitempty"`

	ParticipouTroca        bool `json:"participou_troca_favor"`
	ParticipouTriangulacao bool `json:"participou_triangulacao"`
	ProvaEmprestada        bool `json:"e_prova_emprestada"`
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single row/column/rule finding produced while importing a sheet.
type Issue struct {
	Sheet      string   `json:"sheet"`
	Row        int      `json:"row"`
	Column     string   `json:"column,omitempty"`
	Rule       string   `json:"rule"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Value      string   `json:"value,omitempty"`
	AutoFilled bool     `json:"auto_filled,omitempty"`
}

type WarningType string

const (
	WarningMissingStub        WarningType = "missing_processo_stub"
	WarningInvalidCNJ         WarningType = "invalid_cnj_format"
	WarningDuplicateReference WarningType = "duplicate_cnj_reference"
)

// ReconcileWarning reports a witness-side case reference that could not be linked cleanly.
type ReconcileWarning struct {
	Type       WarningType `json:"type"`
	CNJ        string      `json:"cnj"`
	Testemunha string      `json:"testemunha"`
	Message    string      `json:"message"`
}

// CountBySeverity tallies issues per severity level.
func CountBySeverity(issues []Issue) map[Severity]int {
	counts := map[Severity]int{
		SeverityError:   0,
		SeverityWarning: 0,
		SeverityInfo:    0,
	}
	for _, issue := range issues {
		counts[issue.Severity]++
	}
	return counts
}
