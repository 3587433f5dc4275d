// Package fields maps arbitrary spreadsheet headers onto the canonical
// field vocabulary of each sheet type.
package fields

import (
	"sort"

	"testemunhas/api/internal/names"
)

type SheetType string

const (
	SheetProcesso   SheetType = "processo"
	SheetTestemunha SheetType = "testemunha"
)

// Canonical field names.
const (
	CNJ                = "cnj"
	UF                 = "uf"
	Comarca            = "comarca"
	Vara               = "vara"
	Fase               = "fase"
	Status             = "status"
	DataAudiencia      = "data_audiencia"
	Observacoes        = "observacoes"
	Reclamante         = "reclamante"
	Reclamada          = "reclamada"
	AdvogadosAtivo     = "advogados_ativo"
	TestemunhasAtivo   = "testemunhas_ativo"
	TestemunhasPassivo = "testemunhas_passivo"
	TodasTestemunhas   = "todas_testemunhas"

	NomeTestemunha     = "nome_testemunha"
	QtdDepoimentos     = "qtd_depoimentos"
	CNJsComoTestemunha = "cnjs_como_testemunha"
	CNJsComoReclamante = "cnjs_como_reclamante"
)

// SynonymTable lists accepted synonyms per canonical field, per sheet type.
type SynonymTable map[SheetType]map[string][]string

// RequiredTable lists canonical fields a sheet cannot be imported without.
type RequiredTable map[SheetType][]string

// Resolution is the outcome of resolving a full header row.
type Resolution struct {
	Mapped     map[string]string `json:"mapped"`
	Unmapped   []string          `json:"unmapped"`
	Missing    []string          `json:"missing"`
	Duplicates []string          `json:"duplicates,omitempty"`
}

// Complete reports whether every required field was found.
func (r Resolution) Complete() bool {
	return len(r.Missing) == 0
}

// Resolver is safe for concurrent use once built.
type Resolver struct {
	exact    map[SheetType]map[string]string
	folded   map[SheetType]map[string]string
	required RequiredTable
}

func NewResolver(synonyms SynonymTable, required RequiredTable) *Resolver {
	r := &Resolver{
		exact:    make(map[SheetType]map[string]string),
		folded:   make(map[SheetType]map[string]string),
		required: required,
	}
	for sheet, table := range synonyms {
		exact := make(map[string]string)
		folded := make(map[string]string)
		canonicals := make([]string, 0, len(table))
		for canonical := range table {
			canonicals = append(canonicals, canonical)
		}
		// sorted so a synonym shared by two fields resolves the same way every run
		sort.Strings(canonicals)
		for _, canonical := range canonicals {
			register(exact, folded, canonical, canonical)
			for _, synonym := range table[canonical] {
				register(exact, folded, synonym, canonical)
			}
		}
		r.exact[sheet] = exact
		r.folded[sheet] = folded
	}
	return r
}

func register(exact, folded map[string]string, name, canonical string) {
	if _, ok := exact[name]; !ok {
		exact[name] = canonical
	}
	key := names.Fold(name)
	if _, ok := folded[key]; !ok {
		folded[key] = canonical
	}
}

// Default builds a resolver over the built-in vocabulary.
func Default() *Resolver {
	return NewResolver(DefaultSynonyms(), DefaultRequired())
}

// Resolve maps one header. Exact matches win over case-insensitive ones.
func (r *Resolver) Resolve(header string, sheet SheetType) (string, bool) {
	if canonical, ok := r.exact[sheet][header]; ok {
		return canonical, true
	}
	if canonical, ok := r.folded[sheet][names.Fold(header)]; ok {
		return canonical, true
	}
	return "", false
}

// ResolveHeaders maps a header row. Unrecognized headers are kept in
// Unmapped; a second header resolving to an already-mapped field is
// reported in Duplicates and treated as unmapped.
func (r *Resolver) ResolveHeaders(headers []string, sheet SheetType) Resolution {
	res := Resolution{Mapped: make(map[string]string), Unmapped: []string{}, Missing: []string{}}
	taken := make(map[string]bool)
	for _, header := range headers {
		canonical, ok := r.Resolve(header, sheet)
		if !ok {
			res.Unmapped = append(res.Unmapped, header)
			continue
		}
		if taken[canonical] {
			res.Duplicates = append(res.Duplicates, header)
			res.Unmapped = append(res.Unmapped, header)
			continue
		}
		taken[canonical] = true
		res.Mapped[header] = canonical
	}
	for _, field := range r.required[sheet] {
		if !taken[field] {
			res.Missing = append(res.Missing, field)
		}
	}
	return res
}

// Required returns the required fields for a sheet type.
func (r *Resolver) Required(sheet SheetType) []string {
	out := make([]string, len(r.required[sheet]))
	copy(out, r.required[sheet])
	return out
}

// Merge returns base with extra synonyms appended per field.
func Merge(base SynonymTable, extra SynonymTable) SynonymTable {
	out := make(SynonymTable, len(base))
	for sheet, table := range base {
		out[sheet] = make(map[string][]string, len(table))
		for canonical, synonyms := range table {
			out[sheet][canonical] = append([]string(nil), synonyms...)
		}
	}
	for sheet, table := range extra {
		if out[sheet] == nil {
			out[sheet] = make(map[string][]string)
		}
		for canonical, synonyms := range table {
			out[sheet][canonical] = append(out[sheet][canonical], synonyms...)
		}
	}
	return out
}
