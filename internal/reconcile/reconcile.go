// Package reconcile links witness-side case references to the case sheet,
// synthesizing stub cases for references that have no matching record.
// It never fails: every problem becomes a warning.
package reconcile

import (
	"fmt"

	"testemunhas/api/internal/cnj"
	"testemunhas/api/internal/model"
	"testemunhas/api/internal/names"
)

type Stats struct {
	TotalReferenced     int `json:"total_referenced"`
	AlreadyExisting     int `json:"already_existing"`
	StubsCreated        int `json:"stubs_created"`
	Invalid             int `json:"invalid"`
	DuplicateReferences int `json:"duplicate_references"`
}

type Result struct {
	OrgID    string                   `json:"org_id"`
	Stubs    []model.StubCase         `json:"stubs"`
	Warnings []model.ReconcileWarning `json:"warnings"`
	Stats    Stats                    `json:"stats"`
}

type reference struct {
	digits    string
	witnesses []string
}

// Reconcile classifies every distinct case reference found in witness
// records as existing, invalid or missing. References are handled in the
// order they first appear in witnesses, so output is stable for a given
// input.
func Reconcile(cases []model.Processo, witnesses []model.Testemunha, orgID string) Result {
	existing := make(map[string]bool, len(cases))
	for _, c := range cases {
		key := c.CNJDigits
		if key == "" {
			key = cnj.Clean(c.CNJ)
		}
		if key != "" {
			existing[key] = true
		}
	}

	res := Result{
		OrgID:    orgID,
		Stubs:    []model.StubCase{},
		Warnings: []model.ReconcileWarning{},
	}

	var order []string
	refs := make(map[string]*reference)
	invalidSeen := make(map[string]bool)

	for _, w := range witnesses {
		name := names.Canonical(w.Nome)
		for _, list := range [][]string{w.CNJsComoTestemunha, w.CNJsComoReclamante} {
			seen := make(map[string]bool)
			for _, raw := range list {
				if raw == "" {
					continue
				}
				digits := cnj.Clean(raw)
				if len(digits) != cnj.Length {
					if !invalidSeen[raw] {
						invalidSeen[raw] = true
						res.Stats.Invalid++
					}
					res.Warnings = append(res.Warnings, model.ReconcileWarning{
						Type:       model.WarningInvalidCNJ,
						CNJ:        raw,
						Testemunha: name,
						Message:    fmt.Sprintf("testemunha %q referencia número CNJ inválido %q", name, raw),
					})
					continue
				}
				if seen[digits] {
					res.Stats.DuplicateReferences++
					res.Warnings = append(res.Warnings, model.ReconcileWarning{
						Type:       model.WarningDuplicateReference,
						CNJ:        formatted(digits),
						Testemunha: name,
						Message:    fmt.Sprintf("testemunha %q cita o processo %s mais de uma vez", name, formatted(digits)),
					})
					continue
				}
				seen[digits] = true

				ref, ok := refs[digits]
				if !ok {
					ref = &reference{digits: digits}
					refs[digits] = ref
					order = append(order, digits)
				}
				if name != "" && !contains(ref.witnesses, name) {
					ref.witnesses = append(ref.witnesses, name)
				}
			}
		}
	}

	res.Stats.TotalReferenced = len(order) + res.Stats.Invalid
	for _, digits := range order {
		ref := refs[digits]
		if existing[digits] {
			res.Stats.AlreadyExisting++
			continue
		}
		number := formatted(digits)
		res.Stubs = append(res.Stubs, newStub(number, digits, ref.witnesses))
		first := ""
		if len(ref.witnesses) > 0 {
			first = ref.witnesses[0]
		}
		res.Warnings = append(res.Warnings, model.ReconcileWarning{
			Type:       model.WarningMissingStub,
			CNJ:        number,
			Testemunha: first,
			Message:    fmt.Sprintf("processo %s citado por %q não consta na planilha de processos; criado registro pendente de complementação", number, first),
		})
	}
	res.Stats.StubsCreated = len(res.Stubs)
	return res
}

// Merge builds the unified case set: real cases first, then stubs. A stub
// never replaces a real case with the same key.
func Merge(cases []model.Processo, stubs []model.StubCase) *model.CaseSet {
	set := model.NewCaseSet(model.RealCases(cases)...)
	for _, stub := range stubs {
		set.Add(stub)
	}
	return set
}

func newStub(number, digits string, referencedBy []string) model.StubCase {
	return model.StubCase{
		Processo: model.Processo{
			CNJ:                number,
			CNJDigits:          digits,
			AdvogadosAtivo:     []string{},
			TestemunhasAtivo:   []string{},
			TestemunhasPassivo: []string{},
			Testemunhas:        []string{},
		},
		Origin:       model.OriginWitnessReference,
		ReferencedBy: append([]string{}, referencedBy...),
	}
}

func formatted(digits string) string {
	f, err := cnj.Format(digits)
	if err != nil {
		return digits
	}
	return f
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
