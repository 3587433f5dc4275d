package detect

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"

	"testemunhas/api/internal/names"
)

const (
	papelTestemunha = "testemunha"
	papelReclamante = "reclamante"
)

// detectHomonimos proposes candidate identity links. Two kinds are
// reported: distinct spellings that probably belong to one person, and one
// spelling whose cases look like different people. Nothing is merged.
func detectHomonimos(ctx context.Context, idx *Index, cfg Config) ([]Homonimo, error) {
	people := idx.People()
	entries := make([]foldedName, 0, len(people))
	for _, name := range people {
		f := names.Fold(name)
		if f == "" {
			continue
		}
		entries = append(entries, foldedName{name: name, folded: f, length: utf8.RuneCountInString(f)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].length != entries[j].length {
			return entries[i].length < entries[j].length
		}
		return entries[i].name < entries[j].name
	})

	// Pairs are swept by length. Once the shorter name is too short
	// relative to the longer one, no later pair can reach SimilaridadeMin.
	minRatio := minLengthRatio(cfg.SimilaridadeMin)
	var out []Homonimo
	for i, a := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, b := range entries[i+1:] {
			if float64(a.length) < minRatio*float64(b.length) {
				break
			}
			x, y := a, b
			if y.name < x.name {
				x, y = y, x
			}
			if h, ok := compareNames(idx, cfg, x.name, y.name, x.folded, y.folded); ok {
				out = append(out, h)
			}
		}
	}
	for _, name := range people {
		if h, ok := splitIdentity(idx, name); ok {
			out = append(out, h)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].NomeA != out[j].NomeA {
			return out[i].NomeA < out[j].NomeA
		}
		return out[i].NomeB < out[j].NomeB
	})
	return out, nil
}

type foldedName struct {
	name   string
	folded string
	length int
}

// minLengthRatio is the smallest shorter/longer length ratio that can still
// score threshold under Jaro-Winkler with a 4-rune prefix bonus. Jaro is at
// most (2 + shorter/longer) / 3 and the bonus adds at most 0.4 of the gap.
func minLengthRatio(threshold float64) float64 {
	jaro := math.Min(threshold, (threshold-0.4)/0.6)
	return math.Max(0, 3*jaro-2)
}

func compareNames(idx *Index, cfg Config, a, b, fa, fb string) (Homonimo, bool) {
	var factors []string
	similarity := 1.0
	distance := 0
	if fa == fb {
		factors = append(factors, FatorGrafiaEquivalente)
	} else {
		similarity = smetrics.JaroWinkler(fa, fb, 0.7, 4)
		if similarity < cfg.SimilaridadeMin {
			return Homonimo{}, false
		}
		distance = levenshtein.ComputeDistance(fa, fb)
		if distance <= cfg.DistanciaMax {
			factors = append(factors, FatorDistanciaEdicao)
		}
	}
	if names.Initials(a) == names.Initials(b) {
		factors = append(factors, FatorMesmasIniciais)
	}

	casesA := idx.personCases(a)
	casesB := idx.personCases(b)
	contextual := false
	if len(intersect(idx.venueSet(casesA), idx.venueSet(casesB))) > 0 {
		factors = append(factors, FatorMesmaComarca)
		contextual = true
	}
	if len(intersect(idx.lawyerSet(casesA), idx.lawyerSet(casesB))) > 0 {
		factors = append(factors, FatorMesmoAdvogado)
		contextual = true
	}
	if idx.withinWindow(casesA, casesB, cfg.JanelaTemporalDias) {
		factors = append(factors, FatorProximidadeTemporal)
		contextual = true
	}

	score := round2(similarity*cfg.Pesos.HomonimoSimilaridade + cfg.Pesos.HomonimoFator*float64(len(factors)))
	probability := ProbabilidadeBaixa
	switch {
	case score >= 0.8 && contextual:
		probability = ProbabilidadeAlta
	case score >= 0.65:
		probability = ProbabilidadeMedia
	}

	return Homonimo{
		Tipo:          HomonimoMesmaPessoa,
		NomeA:         a,
		NomeB:         b,
		Similaridade:  round2(similarity),
		Distancia:     distance,
		Fatores:       factors,
		Score:         score,
		Probabilidade: probability,
		PapeisA:       idx.roles(a),
		PapeisB:       idx.roles(b),
		CNJsA:         idx.formattedAll(casesA),
		CNJsB:         idx.formattedAll(casesB),
	}, true
}

// splitIdentity flags a single name whose cases spread over several states
// with no lawyer linking the groups.
func splitIdentity(idx *Index, name string) (Homonimo, bool) {
	byUF := make(map[string][]string)
	for _, key := range idx.personCases(name) {
		uf := strings.ToUpper(strings.TrimSpace(idx.cases[key].UF))
		if uf == "" {
			continue
		}
		byUF[uf] = append(byUF[uf], key)
	}
	if len(byUF) < 2 {
		return Homonimo{}, false
	}

	ufs := make([]string, 0, len(byUF))
	for uf := range byUF {
		ufs = append(ufs, uf)
	}
	sort.Slice(ufs, func(i, j int) bool {
		if len(byUF[ufs[i]]) != len(byUF[ufs[j]]) {
			return len(byUF[ufs[i]]) > len(byUF[ufs[j]])
		}
		return ufs[i] < ufs[j]
	})

	seen := make(map[string]string)
	for _, uf := range ufs {
		for lawyer := range idx.lawyerSet(byUF[uf]) {
			if prev, ok := seen[lawyer]; ok && prev != uf {
				return Homonimo{}, false
			}
			seen[lawyer] = uf
		}
	}

	primary := byUF[ufs[0]]
	var rest []string
	for _, uf := range ufs[1:] {
		rest = append(rest, byUF[uf]...)
	}
	sort.Strings(rest)

	score := round2(0.5 + 0.1*float64(len(ufs)-2))
	probability := ProbabilidadeBaixa
	if len(ufs) >= 3 {
		probability = ProbabilidadeMedia
	}
	roles := idx.roles(name)
	return Homonimo{
		Tipo:          HomonimoPessoasDistintas,
		NomeA:         name,
		NomeB:         name,
		Similaridade:  1,
		Fatores:       []string{FatorUFsDistintas, FatorSemAdvogadoEmComum},
		Score:         score,
		Probabilidade: probability,
		PapeisA:       roles,
		PapeisB:       roles,
		CNJsA:         idx.formattedAll(primary),
		CNJsB:         idx.formattedAll(rest),
	}, true
}

// personCases unions the cases where name is witness or claimant.
func (idx *Index) personCases(name string) []string {
	set := toSet(idx.WitnessCases(name))
	for _, key := range idx.ClaimantCases(name) {
		set[key] = true
	}
	return sortedKeys(set)
}

func (idx *Index) roles(name string) []string {
	var roles []string
	_, declared := idx.testemunhas[names.Canonical(name)]
	if declared || len(idx.WitnessCases(name)) > 0 {
		roles = append(roles, papelTestemunha)
	}
	if len(idx.ClaimantCases(name)) > 0 {
		roles = append(roles, papelReclamante)
	}
	return roles
}

func (idx *Index) withinWindow(a, b []string, days int) bool {
	if days <= 0 {
		return false
	}
	window := time.Duration(days) * 24 * time.Hour
	for _, ka := range a {
		da := idx.hearingDate(ka)
		if da == nil {
			continue
		}
		for _, kb := range b {
			db := idx.hearingDate(kb)
			if db == nil {
				continue
			}
			diff := da.Sub(*db)
			if diff < 0 {
				diff = -diff
			}
			if diff <= window {
				return true
			}
		}
	}
	return false
}
