package detect

import (
	"sort"
	"strings"
	"time"

	"testemunhas/api/internal/cnj"
	"testemunhas/api/internal/lists"
	"testemunhas/api/internal/model"
	"testemunhas/api/internal/names"
)

// Input is the reconciled dataset. Cases already include reconciler stubs.
type Input struct {
	Cases       []model.Case
	Testemunhas []model.Testemunha
}

// Index holds the lookups every detector shares. It is built once per run
// and only read afterwards, so detectors may use it concurrently.
type Index struct {
	cases      map[string]model.Processo
	keys       []string
	stubs      []string
	lawyers    map[string][]string
	venues     map[string]string
	witnessOf  map[string][]string
	claimantOf map[string][]string
	// edges[x][y] lists cases where x testified and y is the claimant.
	edges       map[string]map[string][]string
	succ        map[string][]string
	testemunhas map[string]model.Testemunha
	people      []string
}

// BuildIndex indexes the dataset. Witness references to cases outside the
// set are ignored here; the reconciler is responsible for surfacing them.
func BuildIndex(in Input) *Index {
	idx := &Index{
		cases:       make(map[string]model.Processo, len(in.Cases)),
		lawyers:     make(map[string][]string, len(in.Cases)),
		venues:      make(map[string]string, len(in.Cases)),
		witnessOf:   make(map[string][]string),
		claimantOf:  make(map[string][]string),
		edges:       make(map[string]map[string][]string),
		testemunhas: make(map[string]model.Testemunha, len(in.Testemunhas)),
	}

	witnessSets := make(map[string]map[string]bool)
	claimantSets := make(map[string]map[string]bool)
	add := func(sets map[string]map[string]bool, name, key string) {
		name = names.Canonical(name)
		if name == "" {
			return
		}
		if sets[name] == nil {
			sets[name] = make(map[string]bool)
		}
		sets[name][key] = true
	}

	for _, c := range in.Cases {
		record := c.Record()
		key := record.CNJDigits
		if key == "" {
			key = cnj.Clean(record.CNJ)
		}
		if key == "" {
			continue
		}
		if _, dup := idx.cases[key]; dup {
			continue
		}
		idx.cases[key] = record
		idx.keys = append(idx.keys, key)
		if c.NeedsCompletion() {
			idx.stubs = append(idx.stubs, key)
		}
		idx.lawyers[key] = canonicalLawyers(record.AdvogadosAtivo)
		idx.venues[key] = venueLabel(record)

		add(claimantSets, record.Reclamante, key)
		for _, group := range [][]string{record.Testemunhas, record.TestemunhasAtivo, record.TestemunhasPassivo} {
			for _, w := range group {
				add(witnessSets, w, key)
			}
		}
	}

	for _, t := range in.Testemunhas {
		name := names.Canonical(t.Nome)
		if name == "" {
			continue
		}
		if existing, ok := idx.testemunhas[name]; ok {
			t = mergeTestemunha(existing, t)
		}
		idx.testemunhas[name] = t
		for _, ref := range t.CNJsComoTestemunha {
			if key := cnj.Clean(ref); hasKey(idx.cases, key) {
				add(witnessSets, name, key)
			}
		}
		for _, ref := range t.CNJsComoReclamante {
			if key := cnj.Clean(ref); hasKey(idx.cases, key) {
				add(claimantSets, name, key)
			}
		}
	}

	sort.Strings(idx.keys)
	sort.Strings(idx.stubs)
	idx.witnessOf = flatten(witnessSets)
	idx.claimantOf = flatten(claimantSets)

	for witness, keys := range idx.witnessOf {
		for _, key := range keys {
			claimant := names.Canonical(idx.cases[key].Reclamante)
			if claimant == "" || claimant == witness {
				continue
			}
			if idx.edges[witness] == nil {
				idx.edges[witness] = make(map[string][]string)
			}
			idx.edges[witness][claimant] = append(idx.edges[witness][claimant], key)
		}
	}

	idx.succ = make(map[string][]string, len(idx.edges))
	for x, targets := range idx.edges {
		set := make(map[string]bool, len(targets))
		for y := range targets {
			set[y] = true
		}
		idx.succ[x] = sortedKeys(set)
	}

	people := make(map[string]bool)
	for name := range idx.witnessOf {
		people[name] = true
	}
	for name := range idx.claimantOf {
		people[name] = true
	}
	for name := range idx.testemunhas {
		people[name] = true
	}
	idx.people = sortedKeys(people)
	return idx
}

func hasKey(m map[string]model.Processo, key string) bool {
	_, ok := m[key]
	return ok
}

func mergeTestemunha(a, b model.Testemunha) model.Testemunha {
	if b.QtdDepoimentos > a.QtdDepoimentos {
		a.QtdDepoimentos = b.QtdDepoimentos
	}
	a.CNJsComoTestemunha = append(append([]string(nil), a.CNJsComoTestemunha...), b.CNJsComoTestemunha...)
	a.CNJsComoReclamante = append(append([]string(nil), a.CNJsComoReclamante...), b.CNJsComoReclamante...)
	return a
}

func flatten(sets map[string]map[string]bool) map[string][]string {
	out := make(map[string][]string, len(sets))
	for name, set := range sets {
		out[name] = sortedKeys(set)
	}
	return out
}

// canonicalLawyers strips display markers so overlap comparisons work on
// the bare names.
func canonicalLawyers(raw []string) []string {
	stripped := lists.StripPrincipal(raw)
	seen := make(map[string]bool, len(stripped))
	out := make([]string, 0, len(stripped))
	for _, lawyer := range stripped {
		lawyer = names.Canonical(lawyer)
		if lawyer == "" || seen[lawyer] {
			continue
		}
		seen[lawyer] = true
		out = append(out, lawyer)
	}
	return out
}

func venueLabel(p model.Processo) string {
	comarca := strings.TrimSpace(p.Comarca)
	if comarca == "" {
		return ""
	}
	if uf := strings.TrimSpace(p.UF); uf != "" {
		return comarca + "/" + strings.ToUpper(uf)
	}
	return comarca
}

// Case returns the record for a digits key.
func (idx *Index) Case(key string) (model.Processo, bool) {
	p, ok := idx.cases[key]
	return p, ok
}

// Keys returns every indexed case key, sorted.
func (idx *Index) Keys() []string {
	return idx.keys
}

// Stubs returns keys of cases that need completion.
func (idx *Index) Stubs() []string {
	return idx.stubs
}

// WitnessCases lists the cases where name testified.
func (idx *Index) WitnessCases(name string) []string {
	return idx.witnessOf[names.Canonical(name)]
}

// ClaimantCases lists the cases where name is the claimant.
func (idx *Index) ClaimantCases(name string) []string {
	return idx.claimantOf[names.Canonical(name)]
}

// Edge lists the cases where x testified and y is the claimant.
func (idx *Index) Edge(x, y string) []string {
	return idx.edges[x][y]
}

// Successors returns the people x testified for, sorted.
func (idx *Index) Successors(x string) []string {
	return idx.succ[x]
}

func (idx *Index) hasEdge(x, y string) bool {
	return len(idx.edges[x][y]) > 0
}

// Lawyers returns the active-side lawyers of a case without display markers.
func (idx *Index) Lawyers(key string) []string {
	return idx.lawyers[key]
}

// Venue returns "Comarca/UF" for a case, or "" when unknown.
func (idx *Index) Venue(key string) string {
	return idx.venues[key]
}

// People returns every witness and claimant name, sorted.
func (idx *Index) People() []string {
	return idx.people
}

// Formatted renders a case key for reports.
func (idx *Index) Formatted(key string) string {
	if p, ok := idx.cases[key]; ok && p.CNJ != "" {
		return p.CNJ
	}
	if f, err := cnj.Format(key); err == nil {
		return f
	}
	return key
}

func (idx *Index) formattedAll(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, idx.Formatted(key))
	}
	return out
}

func (idx *Index) hearingDate(key string) *time.Time {
	return idx.cases[key].DataAudiencia
}

// lawyerSet unions the lawyers of the given cases.
func (idx *Index) lawyerSet(keys []string) map[string]bool {
	set := make(map[string]bool)
	for _, key := range keys {
		for _, lawyer := range idx.lawyers[key] {
			set[lawyer] = true
		}
	}
	return set
}

func (idx *Index) venueSet(keys []string) map[string]bool {
	set := make(map[string]bool)
	for _, key := range keys {
		if v := idx.venues[key]; v != "" {
			set[v] = true
		}
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func intersect(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func round2(v float64) float64 {
	if v > 1 {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	return float64(int(v*100+0.5)) / 100
}
