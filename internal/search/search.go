// Package search finds cases and people of an organization by name, CNJ
// or venue. Meilisearch is used when reachable, Postgres full-text search
// otherwise.
package search

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"testemunhas/api/internal/model"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultProcesso ResultType = "processo"
	ResultPessoa   ResultType = "pessoa"
)

// Roles a person can hold in the working set.
const (
	PapelTestemunha = "testemunha"
	PapelReclamante = "reclamante"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	CNJs    []string   `json:"cnjs"`
}

// Query describes a search request. BatchID pins index lookups to the
// current working set; older batches stay in the index but never match.
type Query struct {
	OrgID      string
	BatchID    string
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// ProcessoRecord is the data we index for a case.
type ProcessoRecord struct {
	ID         string `json:"id"`
	OrgID      string `json:"orgId"`
	BatchID    string `json:"batchId"`
	CNJ        string `json:"cnj"`
	Reclamante string `json:"reclamante"`
	Reclamada  string `json:"reclamada"`
	Comarca    string `json:"comarca"`
	UF         string `json:"uf"`
	Stub       bool   `json:"stub"`
}

// PessoaRecord is the data we index for a witness or claimant.
type PessoaRecord struct {
	ID      string   `json:"id"`
	OrgID   string   `json:"orgId"`
	BatchID string   `json:"batchId"`
	Nome    string   `json:"nome"`
	Papeis  []string `json:"papeis"`
	CNJs    []string `json:"cnjs"`
}

// Records builds the index documents of a working set. People are merged
// by name across the witness sheet and case claimants.
func Records(orgID, batchID string, cases []model.Case, witnesses []model.Testemunha) ([]ProcessoRecord, []PessoaRecord) {
	processos := make([]ProcessoRecord, 0, len(cases))
	type person struct {
		roles map[string]bool
		cnjs  []string
		seen  map[string]bool
	}
	people := make(map[string]*person)
	var order []string
	add := func(name, role string, cnjs ...string) {
		if name == "" {
			return
		}
		p, ok := people[name]
		if !ok {
			p = &person{roles: make(map[string]bool), seen: make(map[string]bool)}
			people[name] = p
			order = append(order, name)
		}
		p.roles[role] = true
		for _, c := range cnjs {
			if !p.seen[c] {
				p.seen[c] = true
				p.cnjs = append(p.cnjs, c)
			}
		}
	}

	for _, c := range cases {
		record := c.Record()
		processos = append(processos, ProcessoRecord{
			ID:         recordID(orgID, batchID, "processo", record.CNJDigits),
			OrgID:      orgID,
			BatchID:    batchID,
			CNJ:        record.CNJ,
			Reclamante: record.Reclamante,
			Reclamada:  record.Reclamada,
			Comarca:    record.Comarca,
			UF:         record.UF,
			Stub:       model.IsStub(c),
		})
		add(record.Reclamante, PapelReclamante, record.CNJ)
	}
	for _, w := range witnesses {
		add(w.Nome, PapelTestemunha, w.CNJsComoTestemunha...)
		if len(w.CNJsComoReclamante) > 0 {
			add(w.Nome, PapelReclamante, w.CNJsComoReclamante...)
		}
	}

	pessoas := make([]PessoaRecord, 0, len(order))
	for _, name := range order {
		p := people[name]
		roles := make([]string, 0, len(p.roles))
		for role := range p.roles {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		pessoas = append(pessoas, PessoaRecord{
			ID:      recordID(orgID, batchID, "pessoa", name),
			OrgID:   orgID,
			BatchID: batchID,
			Nome:    name,
			Papeis:  roles,
			CNJs:    p.cnjs,
		})
	}
	return processos, pessoas
}

// recordID derives an index-safe id; names and org ids may hold characters
// the index rejects.
func recordID(parts ...string) string {
	key := ""
	for _, p := range parts {
		key += p + "\x00"
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}
