package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
)

const (
	idxProcessos = "testemunhas_processos"
	idxPessoas   = "testemunhas_pessoas"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  logrus.FieldLogger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server is reported as unhealthy, not as an error; a
// background loop picks it up once it recovers.
func NewMeili(url, apiKey string, logger logrus.FieldLogger) *Meili {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger.WithField("component", "search.meili"),
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		m.logger.WithError(err).WithField("url", url).Warn("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxProcessos,
			filterable: []string{"orgId", "batchId", "uf", "stub"},
			searchable: []string{"cnj", "reclamante", "reclamada", "comarca"},
		},
		{
			uid:        idxPessoas,
			filterable: []string{"orgId", "batchId", "papeis"},
			searchable: []string{"nome", "cnjs"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			m.logger.WithError(err).WithField("index", idx.uid).Debug("create index (may already exist)")
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.WithError(err).WithField("index", idx.uid).Warn("update filterable attributes")
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.logger.WithError(err).WithField("index", idx.uid).Warn("update searchable attributes")
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes (or one of them) and merges the hits.
func (m *Meili) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	queries := make([]*meili.SearchRequest, 0, 2)
	for _, target := range []struct {
		uid  string
		rtyp ResultType
	}{
		{idxProcessos, ResultProcesso},
		{idxPessoas, ResultPessoa},
	} {
		if q.FilterType != "" && q.FilterType != target.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              target.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			Filter:                scopeFilter(q),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func scopeFilter(q Query) []string {
	filters := []string{fmt.Sprintf("orgId = %q", q.OrgID)}
	if q.BatchID != "" {
		filters = append(filters, fmt.Sprintf("batchId = %q", q.BatchID))
	}
	return filters
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxProcessos:
		return ResultProcesso
	case idxPessoas:
		return ResultPessoa
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp, ID: decodeString(hit, "id"), CNJs: []string{}}
	switch rtyp {
	case ResultProcesso:
		cnj := decodeString(hit, "cnj")
		r.Title = firstNonBlank(decodeFormattedString(hit, "cnj"), cnj)
		r.Snippet = joinNonBlank(" · ",
			firstNonBlank(decodeFormattedString(hit, "reclamante"), decodeString(hit, "reclamante")),
			firstNonBlank(decodeFormattedString(hit, "reclamada"), decodeString(hit, "reclamada")),
			firstNonBlank(decodeFormattedString(hit, "comarca"), decodeString(hit, "comarca")),
		)
		if cnj != "" {
			r.CNJs = []string{cnj}
		}
	case ResultPessoa:
		r.Title = firstNonBlank(decodeFormattedString(hit, "nome"), decodeString(hit, "nome"))
		r.Snippet = strings.Join(decodeStrings(hit, "papeis"), ", ")
		r.CNJs = decodeStrings(hit, "cnjs")
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeStrings(hit meili.Hit, key string) []string {
	out := []string{}
	if raw, ok := hit[key]; ok {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	s, _ := formatted[key].(string)
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func joinNonBlank(sep string, values ...string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, sep)
}

// IndexWorkingSet bulk-indexes the records of one import batch.
func (m *Meili) IndexWorkingSet(processos []ProcessoRecord, pessoas []PessoaRecord) error {
	if len(processos) > 0 {
		if _, err := m.client.Index(idxProcessos).AddDocuments(processos, nil); err != nil {
			return fmt.Errorf("index processos: %w", err)
		}
	}
	if len(pessoas) > 0 {
		if _, err := m.client.Index(idxPessoas).AddDocuments(pessoas, nil); err != nil {
			return fmt.Errorf("index pessoas: %w", err)
		}
	}
	return nil
}
