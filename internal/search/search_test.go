package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testemunhas/api/internal/model"
)

type fakeSearcher struct {
	healthy bool
	results []Result
	err     error
	calls   int
}

func (f *fakeSearcher) Search(context.Context, Query) ([]Result, int, error) {
	f.calls++
	return f.results, len(f.results), f.err
}

func (f *fakeSearcher) Healthy() bool { return f.healthy }

type fakeIndexer struct {
	got chan []PessoaRecord
}

func (f *fakeIndexer) IndexWorkingSet(_ []ProcessoRecord, pessoas []PessoaRecord) error {
	f.got <- pessoas
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func workingSet() ([]model.Case, []model.Testemunha) {
	cases := []model.Case{
		model.RealCase{Processo: model.Processo{CNJ: "0000001-00.2024.5.01.0001", CNJDigits: "00000010020245010001", Reclamante: "Ana", Comarca: "Campinas"}},
		model.StubCase{Processo: model.Processo{CNJ: "0000002-00.2024.5.01.0001", CNJDigits: "00000020020245010001"}},
	}
	witnesses := []model.Testemunha{
		{Nome: "Bruno", CNJsComoTestemunha: []string{"0000001-00.2024.5.01.0001"}},
		{Nome: "Ana", CNJsComoTestemunha: []string{"0000002-00.2024.5.01.0001"}, CNJsComoReclamante: []string{"0000001-00.2024.5.01.0001"}},
	}
	return cases, witnesses
}

func TestRecordsMergePeopleAcrossRoles(t *testing.T) {
	cases, witnesses := workingSet()
	processos, pessoas := Records("org", "b1", cases, witnesses)

	require.Len(t, processos, 2)
	assert.False(t, processos[0].Stub)
	assert.True(t, processos[1].Stub)
	assert.Equal(t, "b1", processos[0].BatchID)

	require.Len(t, pessoas, 2)
	assert.Equal(t, "Ana", pessoas[0].Nome)
	assert.Equal(t, []string{PapelReclamante, PapelTestemunha}, pessoas[0].Papeis)
	assert.Equal(t, []string{"0000001-00.2024.5.01.0001", "0000002-00.2024.5.01.0001"}, pessoas[0].CNJs)
	assert.Equal(t, "Bruno", pessoas[1].Nome)
	assert.Equal(t, []string{PapelTestemunha}, pessoas[1].Papeis)
}

func TestRecordIDsAreStableAndScoped(t *testing.T) {
	a := recordID("org", "b1", "pessoa", "Ana")
	assert.Equal(t, a, recordID("org", "b1", "pessoa", "Ana"))
	assert.NotEqual(t, a, recordID("org", "b2", "pessoa", "Ana"))
	assert.NotEqual(t, a, recordID("outra", "b1", "pessoa", "Ana"))
}

func TestSearchUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &fakeSearcher{healthy: true, results: []Result{{Type: ResultPessoa, Title: "Ana"}}}
	fallback := &fakeSearcher{healthy: true}
	svc := NewServiceWith(primary, nil, fallback, quietLogger())

	resp := svc.Search(context.Background(), Query{OrgID: "org", Text: "ana"})
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "ana", resp.Query)
	assert.Equal(t, 0, fallback.calls)
}

func TestSearchFallsBack(t *testing.T) {
	fallback := &fakeSearcher{healthy: true, results: []Result{{Type: ResultProcesso, Title: "0000001-00.2024.5.01.0001"}}}

	unhealthy := NewServiceWith(&fakeSearcher{healthy: false}, nil, fallback, quietLogger())
	assert.Len(t, unhealthy.Search(context.Background(), Query{Text: "x"}).Results, 1)

	failing := NewServiceWith(&fakeSearcher{healthy: true, err: errors.New("boom")}, nil, fallback, quietLogger())
	assert.Len(t, failing.Search(context.Background(), Query{Text: "x"}).Results, 1)
	assert.Equal(t, 2, fallback.calls)
}

func TestSearchWithoutBackends(t *testing.T) {
	svc := NewService(nil, nil, quietLogger())
	resp := svc.Search(context.Background(), Query{Text: "x"})
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)

	fallback := &fakeSearcher{healthy: true, err: errors.New("db down")}
	resp = NewServiceWith(nil, nil, fallback, quietLogger()).Search(context.Background(), Query{Text: "x"})
	assert.NotNil(t, resp.Results)
}

func TestIndexWorkingSet(t *testing.T) {
	indexer := &fakeIndexer{got: make(chan []PessoaRecord, 1)}
	svc := NewServiceWith(&fakeSearcher{healthy: true}, indexer, nil, quietLogger())

	cases, witnesses := workingSet()
	svc.IndexWorkingSet("org", "b1", cases, witnesses)

	select {
	case pessoas := <-indexer.got:
		assert.Len(t, pessoas, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("expected working set to be indexed")
	}
}

func TestHitToResult(t *testing.T) {
	raw := func(v any) json.RawMessage {
		data, _ := json.Marshal(v)
		return data
	}
	hit := meili.Hit{
		"id":         raw("abc"),
		"cnj":        raw("0000001-00.2024.5.01.0001"),
		"reclamante": raw("Ana"),
		"comarca":    raw("Campinas"),
		"_formatted": raw(map[string]any{"reclamante": "<mark>Ana</mark>", "stub": false}),
	}
	r := hitToResult(hit, ResultProcesso)
	assert.Equal(t, "abc", r.ID)
	assert.Equal(t, "0000001-00.2024.5.01.0001", r.Title)
	assert.Equal(t, "<mark>Ana</mark> · Campinas", r.Snippet)
	assert.Equal(t, []string{"0000001-00.2024.5.01.0001"}, r.CNJs)

	person := hitToResult(meili.Hit{
		"nome":   raw("Bruno"),
		"papeis": raw([]string{"testemunha"}),
		"cnjs":   raw([]string{"x"}),
	}, ResultPessoa)
	assert.Equal(t, "Bruno", person.Title)
	assert.Equal(t, "testemunha", person.Snippet)
	assert.Equal(t, []string{"x"}, person.CNJs)
}

func TestScopeFilter(t *testing.T) {
	assert.Equal(t, []string{`orgId = "org"`, `batchId = "b1"`}, scopeFilter(Query{OrgID: "org", BatchID: "b1"}))
	assert.Equal(t, []string{`orgId = "org"`}, scopeFilter(Query{OrgID: "org"}))
}
