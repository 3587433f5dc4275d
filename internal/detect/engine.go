package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"testemunhas/api/internal/cnj"
)

var tracer = otel.Tracer("testemunhas/detect")

// Periodo bounds the hearing date of analysed cases. Nil bounds are open.
type Periodo struct {
	Inicio *time.Time `json:"inicio,omitempty"`
	Fim    *time.Time `json:"fim,omitempty"`
}

// Filter narrows a run. The zero value runs every detector on every case.
type Filter struct {
	// CNJs keeps only findings that touch at least one of these cases.
	CNJs    []string   `json:"cnjs,omitempty"`
	Periodo *Periodo   `json:"periodo,omitempty"`
	Padroes []Detector `json:"incluir_padroes,omitempty"`
}

func (f Filter) detectors() []Detector {
	if len(f.Padroes) == 0 {
		return AllDetectors
	}
	want := make(map[Detector]bool, len(f.Padroes))
	for _, d := range f.Padroes {
		want[d] = true
	}
	var out []Detector
	for _, d := range AllDetectors {
		if want[d] {
			out = append(out, d)
		}
	}
	return out
}

type Engine struct {
	cfg    Config
	logger logrus.FieldLogger
}

func NewEngine(cfg Config, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Config returns the thresholds the engine runs with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run builds the index once and runs the selected detectors concurrently.
// The first detector error cancels the others.
func (e *Engine) Run(ctx context.Context, in Input, f Filter) (Result, error) {
	ctx, span := tracer.Start(ctx, "detect.Run", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	started := time.Now()

	padroes := make([]Detector, 0, len(f.Padroes))
	for _, d := range f.Padroes {
		parsed, err := ParseDetector(string(d))
		if err != nil {
			return Result{}, err
		}
		padroes = append(padroes, parsed)
	}
	f.Padroes = padroes
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	in = filterPeriod(in, f.Periodo)
	idx := BuildIndex(in)
	selected := f.detectors()
	span.SetAttributes(
		attribute.Int("casos", len(idx.Keys())),
		attribute.Int("detectores", len(selected)),
	)

	var res Result
	eg, egCtx := errgroup.WithContext(ctx)
	for _, d := range selected {
		switch d {
		case DetectorTrocaDireta:
			eg.Go(runDetector(egCtx, d, idx, e.cfg, detectTrocaDireta, &res.TrocaDireta))
		case DetectorTriangulacao:
			eg.Go(runDetector(egCtx, d, idx, e.cfg, detectTriangulacao, &res.Triangulacao))
		case DetectorDuploPapel:
			eg.Go(runDetector(egCtx, d, idx, e.cfg, detectDuploPapel, &res.DuploPapel))
		case DetectorProvaEmprestada:
			eg.Go(runDetector(egCtx, d, idx, e.cfg, detectProvaEmprestada, &res.ProvaEmprestada))
		case DetectorHomonimos:
			eg.Go(runDetector(egCtx, d, idx, e.cfg, detectHomonimos, &res.Homonimos))
		}
	}
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	if len(f.CNJs) > 0 {
		res = restrictToCases(res, f.CNJs)
	}
	res.Executados = selected
	res.CasosAnalisados = len(idx.Keys())
	res.TestemunhasAnalisadas = countWitnesses(idx)
	res.PendentesCompletar = idx.formattedAll(idx.Stubs())
	res = withEmptySlices(res)

	e.logger.WithFields(logrus.Fields{
		"detectores":  len(selected),
		"casos":       res.CasosAnalisados,
		"achados":     res.Total(),
		"pendentes":   len(res.PendentesCompletar),
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("detection finished")
	return res, nil
}

func runDetector[T any](
	ctx context.Context,
	d Detector,
	idx *Index,
	cfg Config,
	fn func(context.Context, *Index, Config) ([]T, error),
	dst *[]T,
) func() error {
	return func() error {
		ctx, span := tracer.Start(ctx, "detect."+string(d))
		defer span.End()
		if err := ctx.Err(); err != nil {
			return err
		}
		found, err := fn(ctx, idx, cfg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%s: %w", d, err)
		}
		span.SetAttributes(attribute.Int("achados", len(found)))
		*dst = found
		return nil
	}
}

// filterPeriod drops cases whose hearing date falls outside p. Undated
// cases are kept.
func filterPeriod(in Input, p *Periodo) Input {
	if p == nil || (p.Inicio == nil && p.Fim == nil) {
		return in
	}
	out := Input{Testemunhas: in.Testemunhas}
	for _, c := range in.Cases {
		date := c.Record().DataAudiencia
		if date != nil {
			if p.Inicio != nil && date.Before(*p.Inicio) {
				continue
			}
			if p.Fim != nil && date.After(*p.Fim) {
				continue
			}
		}
		out.Cases = append(out.Cases, c)
	}
	return out
}

func countWitnesses(idx *Index) int {
	n := 0
	for _, name := range idx.People() {
		if _, ok := idx.testemunhas[name]; ok || len(idx.witnessOf[name]) > 0 {
			n++
		}
	}
	return n
}

func restrictToCases(res Result, refs []string) Result {
	want := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if key := cnj.Clean(ref); key != "" {
			want[key] = true
		}
	}
	touches := func(lists ...[]string) bool {
		for _, list := range lists {
			for _, ref := range list {
				if want[cnj.Clean(ref)] {
					return true
				}
			}
		}
		return false
	}

	out := res
	out.TrocaDireta = keep(res.TrocaDireta, func(t TrocaDireta) bool { return touches(t.CNJsAParaB, t.CNJsBParaA) })
	out.Triangulacao = keep(res.Triangulacao, func(t Triangulacao) bool { return touches(t.CNJs) })
	out.DuploPapel = keep(res.DuploPapel, func(d DuploPapel) bool { return touches(d.CNJsComoReclamante, d.CNJsComoTestemunha) })
	out.ProvaEmprestada = keep(res.ProvaEmprestada, func(p ProvaEmprestada) bool { return touches(p.CNJs) })
	out.Homonimos = keep(res.Homonimos, func(h Homonimo) bool { return touches(h.CNJsA, h.CNJsB) })
	return out
}

func keep[T any](items []T, ok func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if ok(item) {
			out = append(out, item)
		}
	}
	return out
}

func withEmptySlices(res Result) Result {
	if res.TrocaDireta == nil {
		res.TrocaDireta = []TrocaDireta{}
	}
	if res.Triangulacao == nil {
		res.Triangulacao = []Triangulacao{}
	}
	if res.DuploPapel == nil {
		res.DuploPapel = []DuploPapel{}
	}
	if res.ProvaEmprestada == nil {
		res.ProvaEmprestada = []ProvaEmprestada{}
	}
	if res.Homonimos == nil {
		res.Homonimos = []Homonimo{}
	}
	return res
}
