package search

import (
	"context"

	"github.com/sirupsen/logrus"

	"testemunhas/api/internal/model"
)

// Indexer pushes a working set into the search index.
type Indexer interface {
	IndexWorkingSet(processos []ProcessoRecord, pessoas []PessoaRecord) error
}

// Service is the facade that tries the primary index first and falls back
// to Postgres full-text search.
type Service struct {
	primary  Searcher
	indexer  Indexer
	fallback Searcher
	logger   logrus.FieldLogger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured; pgfts may be nil when no database backs the service.
func NewService(meili *Meili, pgfts *PgFTS, logger logrus.FieldLogger) *Service {
	s := &Service{logger: logger}
	if meili != nil {
		s.primary, s.indexer = meili, meili
	}
	if pgfts != nil {
		s.fallback = pgfts
	}
	return s.withLogger()
}

// NewServiceWith wires arbitrary searchers; either may be nil.
func NewServiceWith(primary Searcher, indexer Indexer, fallback Searcher, logger logrus.FieldLogger) *Service {
	return (&Service{primary: primary, indexer: indexer, fallback: fallback, logger: logger}).withLogger()
}

func (s *Service) withLogger() *Service {
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	s.logger = s.logger.WithField("component", "search")
	return s
}

// Search tries the primary index if healthy, otherwise the fallback.
// Errors are logged and produce an empty response.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.WithError(err).Warn("primary search failed, falling back")
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.WithError(err).Error("fallback search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexWorkingSet indexes a batch in the background (fire-and-forget).
func (s *Service) IndexWorkingSet(orgID, batchID string, cases []model.Case, witnesses []model.Testemunha) {
	if s.indexer == nil || (s.primary != nil && !s.primary.Healthy()) {
		return
	}
	processos, pessoas := Records(orgID, batchID, cases, witnesses)
	go func() {
		if err := s.indexer.IndexWorkingSet(processos, pessoas); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{"org": orgID, "batch": batchID}).Error("index working set")
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
