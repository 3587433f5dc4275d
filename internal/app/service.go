package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"testemunhas/api/internal/analysis"
	"testemunhas/api/internal/archive"
	"testemunhas/api/internal/cache"
	"testemunhas/api/internal/cnj"
	"testemunhas/api/internal/config"
	"testemunhas/api/internal/detect"
	"testemunhas/api/internal/fields"
	"testemunhas/api/internal/ingest"
	"testemunhas/api/internal/logging"
	"testemunhas/api/internal/model"
	"testemunhas/api/internal/reconcile"
	"testemunhas/api/internal/search"
	"testemunhas/api/internal/store"
	"testemunhas/api/internal/util"
)

var orgIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

type analysisCache interface {
	Get(ctx context.Context, orgID, fingerprint string, dest any) (bool, error)
	Set(ctx context.Context, orgID, fingerprint string, value any) error
	Invalidate(ctx context.Context, orgID string) error
	Ping(ctx context.Context) error
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexWorkingSet(orgID, batchID string, cases []model.Case, witnesses []model.Testemunha)
}

type reportArchive interface {
	Save(orgID string, snap archive.Snapshot, author string) (archive.Commit, error)
	History(orgID string, limit int) ([]archive.Commit, error)
	Get(orgID, hash string) (archive.Snapshot, archive.Commit, error)
}

// Options carries the optional collaborators. A nil field disables the
// feature it backs.
type Options struct {
	Cache   analysisCache
	Search  searchService
	Archive reportArchive
	Logger  logrus.FieldLogger
}

type Service struct {
	store      store.Repository
	cache      analysisCache
	search     searchService
	archive    reportArchive
	settings   config.Settings
	resolver   *fields.Resolver
	importer   *ingest.Importer
	engine     *detect.Engine
	aggregator *analysis.Aggregator
	logger     logrus.FieldLogger
	now        func() time.Time
}

func New(repo store.Repository, settings config.Settings, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	resolver := settings.Resolver()
	return &Service{
		store:      repo,
		cache:      opts.Cache,
		search:     opts.Search,
		archive:    opts.Archive,
		settings:   settings,
		resolver:   resolver,
		importer:   ingest.NewImporter(resolver, logger.WithField("component", "ingest")),
		engine:     detect.NewEngine(settings.Detect, logger.WithField("component", "detect")),
		aggregator: analysis.New(settings.Analysis),
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) Resolver() *fields.Resolver {
	return s.resolver
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingCache reports whether a cache is configured and reachable.
func (s *Service) PingCache(ctx context.Context) (configured bool, err error) {
	if s.cache == nil {
		return false, nil
	}
	return true, s.cache.Ping(ctx)
}

type NormalizedData struct {
	Processos   []model.Processo   `json:"processos"`
	Testemunhas []model.Testemunha `json:"testemunhas"`
}

type ImportResult struct {
	BatchID        string           `json:"batchId"`
	Summary        ingest.Summary   `json:"summary"`
	Issues         []model.Issue    `json:"issues"`
	NormalizedData NormalizedData   `json:"normalizedData"`
	Reconciliation reconcile.Result `json:"reconciliation"`
}

// Import reads the sheets, reconciles witness references and replaces the
// organization's working set with the result. A run that yields no record
// at all leaves the previous working set untouched.
func (s *Service) Import(ctx context.Context, orgID, source string, sheets []ingest.Sheet) (ImportResult, error) {
	if err := validateOrgID(orgID); err != nil {
		return ImportResult{}, err
	}
	if len(sheets) == 0 {
		return ImportResult{}, validationError("at least one sheet is required", nil)
	}

	res, err := s.importer.Import(ctx, sheets)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import sheets: %w", err)
	}
	if len(res.Processos) == 0 && len(res.Testemunhas) == 0 {
		return ImportResult{}, domainError(http.StatusUnprocessableEntity, "EMPTY_IMPORT", "No valid rows found", map[string]any{
			"summary": res.Summary,
			"issues":  res.Issues,
		})
	}

	rec := reconcile.Reconcile(res.Processos, res.Testemunhas, orgID)
	working := reconcile.Merge(res.Processos, rec.Stubs)

	summaryJSON, err := json.Marshal(res.Summary)
	if err != nil {
		return ImportResult{}, fmt.Errorf("marshal import summary: %w", err)
	}
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return ImportResult{}, fmt.Errorf("marshal reconciliation: %w", err)
	}
	batch := store.ImportBatch{
		ID:             util.NewID("imp"),
		OrgID:          orgID,
		Source:         source,
		Summary:        string(summaryJSON),
		Reconciliation: string(recJSON),
		CreatedAt:      s.now().UTC(),
	}
	cases := working.All()
	if err := s.store.SaveImport(ctx, batch, cases, res.Testemunhas); err != nil {
		return ImportResult{}, fmt.Errorf("save import: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, orgID); err != nil {
			logging.LogError(s.logger, "app", "Import", "invalidate analysis cache", orgID, err)
		}
	}
	if s.search != nil {
		s.search.IndexWorkingSet(orgID, batch.ID, cases, res.Testemunhas)
	}

	s.logger.WithFields(logrus.Fields{
		"org":         orgID,
		"batch":       batch.ID,
		"processos":   len(res.Processos),
		"stubs":       len(rec.Stubs),
		"testemunhas": len(res.Testemunhas),
		"issues":      len(res.Issues),
	}).Info("working set replaced")

	return ImportResult{
		BatchID: batch.ID,
		Summary: res.Summary,
		Issues:  res.Issues,
		NormalizedData: NormalizedData{
			Processos:   res.Processos,
			Testemunhas: res.Testemunhas,
		},
		Reconciliation: rec,
	}, nil
}

// AnalysisRequest is the caller's filter set before validation.
type AnalysisRequest struct {
	CNJs    []string        `json:"cnjs"`
	Periodo *PeriodoRequest `json:"periodo"`
	Padroes []string        `json:"incluir_padroes"`
}

type PeriodoRequest struct {
	Inicio string `json:"inicio"`
	Fim    string `json:"fim"`
}

type AnalysisResponse struct {
	Result      detect.Result      `json:"result"`
	Summary     analysis.Summary   `json:"summary"`
	Report      analysis.Report    `json:"report"`
	Processos   []model.Processo   `json:"processos"`
	Testemunhas []model.Testemunha `json:"testemunhas"`
	Fingerprint string             `json:"fingerprint"`
	BatchID     string             `json:"batchId"`
	ArchiveRef  string             `json:"archiveRef,omitempty"`
	Cached      bool               `json:"cached"`
}

// Analyze runs the detectors over the organization's current working set.
// Results are cached per working set and filter combination.
func (s *Service) Analyze(ctx context.Context, orgID string, req AnalysisRequest) (AnalysisResponse, error) {
	if err := validateOrgID(orgID); err != nil {
		return AnalysisResponse{}, err
	}
	filter, err := buildFilter(req)
	if err != nil {
		return AnalysisResponse{}, err
	}

	batch, err := s.store.LatestImport(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return AnalysisResponse{}, domainError(http.StatusNotFound, "NO_DATA", "No imported data for this organization", nil)
	}
	if err != nil {
		return AnalysisResponse{}, fmt.Errorf("load latest import: %w", err)
	}

	fingerprint, err := cache.Fingerprint(batch.ID, filter, s.settings.Detect, s.settings.Analysis)
	if err != nil {
		return AnalysisResponse{}, err
	}
	if s.cache != nil {
		var cached AnalysisResponse
		hit, err := s.cache.Get(ctx, orgID, fingerprint, &cached)
		if err != nil {
			logging.LogError(s.logger, "app", "Analyze", "read analysis cache", fingerprint, err)
		}
		if hit {
			cached.Cached = true
			return cached, nil
		}
	}

	cases, err := s.store.ListCases(ctx, orgID)
	if err != nil {
		return AnalysisResponse{}, fmt.Errorf("list cases: %w", err)
	}
	witnesses, err := s.store.ListTestemunhas(ctx, orgID)
	if err != nil {
		return AnalysisResponse{}, fmt.Errorf("list testemunhas: %w", err)
	}

	result, err := s.engine.Run(ctx, detect.Input{Cases: cases, Testemunhas: witnesses}, filter)
	if err != nil {
		return AnalysisResponse{}, fmt.Errorf("run detectors: %w", err)
	}
	records := make([]model.Processo, 0, len(cases))
	for _, c := range cases {
		records = append(records, c.Record())
	}
	flaggedCases, flaggedWitnesses := detect.ApplyFlags(records, witnesses, result)

	resp := AnalysisResponse{
		Result:      result,
		Summary:     s.aggregator.Summary(result),
		Report:      s.aggregator.Report(result),
		Processos:   flaggedCases,
		Testemunhas: flaggedWitnesses,
		Fingerprint: fingerprint,
		BatchID:     batch.ID,
	}

	generated := s.now().UTC()
	if s.archive != nil {
		commit, err := s.archive.Save(orgID, archive.Snapshot{
			Fingerprint: fingerprint,
			Filtros:     filter,
			Resultado:   result,
			Relatorio:   resp.Report,
			GeradoEm:    generated,
		}, "")
		if err != nil {
			logging.LogError(s.logger, "app", "Analyze", "archive report", fingerprint, err)
		} else {
			resp.ArchiveRef = commit.Hash
		}
	}

	filtersJSON, _ := json.Marshal(filter)
	summaryJSON, _ := json.Marshal(resp.Summary)
	if err := s.store.SaveAnalysisRun(ctx, store.AnalysisRun{
		ID:          util.NewID("run"),
		OrgID:       orgID,
		Fingerprint: fingerprint,
		Filters:     string(filtersJSON),
		Summary:     string(summaryJSON),
		ArchiveRef:  resp.ArchiveRef,
		CreatedAt:   generated,
	}); err != nil {
		logging.LogError(s.logger, "app", "Analyze", "record analysis run", fingerprint, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, orgID, fingerprint, resp); err != nil {
			logging.LogError(s.logger, "app", "Analyze", "write analysis cache", fingerprint, err)
		}
	}
	return resp, nil
}

// buildFilter validates request filters. CNJs are accepted in correction
// mode, like imported references.
func buildFilter(req AnalysisRequest) (detect.Filter, error) {
	var (
		filter  detect.Filter
		invalid []cnj.Result
	)
	for _, raw := range req.CNJs {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		result := cnj.Validate(raw, cnj.ModeCorrection)
		if !result.Valid {
			invalid = append(invalid, result)
			continue
		}
		filter.CNJs = append(filter.CNJs, result.Formatted)
	}
	if len(invalid) > 0 {
		return detect.Filter{}, validationError("invalid CNJ in filter", invalid)
	}

	for _, name := range req.Padroes {
		d, err := detect.ParseDetector(name)
		if err != nil {
			return detect.Filter{}, validationError(err.Error(), map[string]any{"padroes": detect.AllDetectors})
		}
		filter.Padroes = append(filter.Padroes, d)
	}

	var periodo PeriodoRequest
	if req.Periodo != nil {
		periodo = *req.Periodo
	}
	inicio, err := parseFilterDate(periodo.Inicio, false)
	if err != nil {
		return detect.Filter{}, validationError("periodo.inicio must be a date (YYYY-MM-DD or RFC 3339)", nil)
	}
	fim, err := parseFilterDate(periodo.Fim, true)
	if err != nil {
		return detect.Filter{}, validationError("periodo.fim must be a date (YYYY-MM-DD or RFC 3339)", nil)
	}
	if inicio != nil && fim != nil && fim.Before(*inicio) {
		return detect.Filter{}, validationError("periodo.fim is before periodo.inicio", nil)
	}
	if inicio != nil || fim != nil {
		filter.Periodo = &detect.Periodo{Inicio: inicio, Fim: fim}
	}
	return filter, nil
}

// parseFilterDate accepts a calendar day or a timestamp. An end-of-period
// calendar day covers the whole day.
func parseFilterDate(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (s *Service) AnalysisHistory(ctx context.Context, orgID string, limit int) ([]store.AnalysisRun, error) {
	if err := validateOrgID(orgID); err != nil {
		return nil, err
	}
	runs, err := s.store.ListAnalysisRuns(ctx, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	if runs == nil {
		runs = []store.AnalysisRun{}
	}
	return runs, nil
}

func (s *Service) ArchivedAnalysis(orgID, hash string) (archive.Snapshot, archive.Commit, error) {
	if err := validateOrgID(orgID); err != nil {
		return archive.Snapshot{}, archive.Commit{}, err
	}
	if s.archive == nil {
		return archive.Snapshot{}, archive.Commit{}, domainError(http.StatusNotFound, "ARCHIVE_DISABLED", "Report archive is not configured", nil)
	}
	return s.archive.Get(orgID, hash)
}

type ProcessoDetail struct {
	Processo        model.Processo     `json:"processo"`
	Stub            bool               `json:"stub"`
	NeedsCompletion bool               `json:"needsCompletion"`
	Origin          string             `json:"origin,omitempty"`
	ReferencedBy    []string           `json:"referencedBy,omitempty"`
	Testemunhas     []model.Testemunha `json:"testemunhas"`
}

// Processo looks a case up by its CNJ. The number must be exactly in the
// punctuated form or bare digits.
func (s *Service) Processo(ctx context.Context, orgID, value string) (ProcessoDetail, error) {
	if err := validateOrgID(orgID); err != nil {
		return ProcessoDetail{}, err
	}
	checked := cnj.Validate(value, cnj.ModeFinal)
	if !checked.Valid {
		return ProcessoDetail{}, domainError(http.StatusUnprocessableEntity, "INVALID_CNJ", checked.Message, checked)
	}

	c, err := s.store.GetCase(ctx, orgID, checked.Digits)
	if err != nil {
		return ProcessoDetail{}, err
	}
	detail := ProcessoDetail{
		Processo:        c.Record(),
		Stub:            model.IsStub(c),
		NeedsCompletion: c.NeedsCompletion(),
		Testemunhas:     []model.Testemunha{},
	}
	if stub, ok := c.(model.StubCase); ok {
		detail.Origin = stub.Origin
		detail.ReferencedBy = stub.ReferencedBy
	}

	witnesses, err := s.store.ListTestemunhas(ctx, orgID)
	if err != nil {
		return ProcessoDetail{}, fmt.Errorf("list testemunhas: %w", err)
	}
	for _, w := range witnesses {
		for _, ref := range w.CNJsComoTestemunha {
			if cnj.Clean(ref) == checked.Digits {
				detail.Testemunhas = append(detail.Testemunhas, w)
				break
			}
		}
	}
	return detail, nil
}

// Search scopes the query to the organization's current batch. An org with
// no import gets an empty response.
func (s *Service) Search(ctx context.Context, orgID string, q search.Query) (search.Response, error) {
	if err := validateOrgID(orgID); err != nil {
		return search.Response{}, err
	}
	empty := search.Response{Results: []search.Result{}, Query: q.Text}
	if s.search == nil || strings.TrimSpace(q.Text) == "" {
		return empty, nil
	}
	batch, err := s.store.LatestImport(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return empty, nil
	}
	if err != nil {
		return search.Response{}, fmt.Errorf("load latest import: %w", err)
	}
	q.OrgID = orgID
	q.BatchID = batch.ID
	return s.search.Search(ctx, q), nil
}

type CNJCheck struct {
	cnj.Result
	CheckDigitValid bool `json:"checkDigitValid"`
}

// ValidateCNJ applies the strict lookup rules to a single number.
func (s *Service) ValidateCNJ(value string) CNJCheck {
	result := cnj.Validate(value, cnj.ModeFinal)
	out := CNJCheck{Result: result}
	if result.Valid {
		out.CheckDigitValid = cnj.CheckDigitValid(result.Digits)
	}
	return out
}

func validateOrgID(orgID string) error {
	if !orgIDPattern.MatchString(orgID) {
		return validationError("invalid organization id", map[string]string{"org": orgID})
	}
	return nil
}
