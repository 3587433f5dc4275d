package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"testemunhas/api/internal/cnj"
	"testemunhas/api/internal/fields"
	"testemunhas/api/internal/lists"
	"testemunhas/api/internal/model"
	"testemunhas/api/internal/names"
)

// Issue rules.
const (
	RuleMissingHeader   = "cabecalho_obrigatorio_ausente"
	RuleDuplicateHeader = "cabecalho_duplicado"
	RuleEmptyKey        = "chave_vazia"
	RuleInvalidCNJ      = "cnj_invalido"
	RuleCorrectedCNJ    = "cnj_corrigido"
	RuleCheckDigit      = "cnj_digito_verificador"
	RuleDuplicateKey    = "registro_duplicado"
	RuleEmptyRequired   = "campo_obrigatorio_vazio"
	RuleInvalidCount    = "qtd_depoimentos_invalida"
	RuleFilledCount     = "qtd_depoimentos_preenchida"
	RuleInvalidDate     = "data_invalida"
	RuleWitnessUnion    = "testemunhas_unificadas"
	RuleClaimantJoin    = "cnjs_reclamante_derivados"
)

const ctxCheckEvery = 256

type SheetSummary struct {
	Name       string            `json:"name"`
	Type       fields.SheetType  `json:"type"`
	TotalRows  int               `json:"total_rows"`
	Imported   int               `json:"imported"`
	Excluded   int               `json:"excluded"`
	Skipped    bool              `json:"skipped"`
	Resolution fields.Resolution `json:"resolution"`
}

type Summary struct {
	TotalRows  int                    `json:"total_rows"`
	Imported   int                    `json:"imported"`
	Excluded   int                    `json:"excluded"`
	BySeverity map[model.Severity]int `json:"by_severity"`
	Sheets     []SheetSummary         `json:"sheets"`
}

type Result struct {
	Summary     Summary            `json:"summary"`
	Issues      []model.Issue      `json:"issues"`
	Processos   []model.Processo   `json:"processos"`
	Testemunhas []model.Testemunha `json:"testemunhas"`
}

type Importer struct {
	resolver *fields.Resolver
	listOpts lists.Options
	logger   logrus.FieldLogger
}

func NewImporter(resolver *fields.Resolver, logger logrus.FieldLogger) *Importer {
	if resolver == nil {
		resolver = fields.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Importer{resolver: resolver, listOpts: lists.DefaultOptions(), logger: logger}
}

// Import processes case sheets before witness sheets so witness records
// can be joined against the imported cases. Data problems become issues;
// only read failures and cancellation return an error.
func (im *Importer) Import(ctx context.Context, sheets []Sheet) (Result, error) {
	res := Result{
		Issues:      []model.Issue{},
		Processos:   []model.Processo{},
		Testemunhas: []model.Testemunha{},
	}

	ordered := make([]Sheet, len(sheets))
	copy(ordered, sheets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Type == fields.SheetProcesso && ordered[j].Type != fields.SheetProcesso
	})

	seenCases := make(map[string]bool)
	seenWitnesses := make(map[string]bool)
	for _, sheet := range ordered {
		var (
			summary SheetSummary
			err     error
		)
		switch sheet.Type {
		case fields.SheetProcesso:
			summary, err = im.importCases(ctx, sheet, seenCases, &res)
		case fields.SheetTestemunha:
			summary, err = im.importWitnesses(ctx, sheet, seenWitnesses, &res)
		default:
			summary = SheetSummary{Name: sheet.Name, Type: sheet.Type, Skipped: true}
		}
		if err != nil {
			return Result{}, err
		}
		res.Summary.Sheets = append(res.Summary.Sheets, summary)
		res.Summary.TotalRows += summary.TotalRows
		res.Summary.Imported += summary.Imported
		res.Summary.Excluded += summary.Excluded
	}

	deriveWitnessSides(res.Testemunhas, res.Processos)
	res.Summary.BySeverity = model.CountBySeverity(res.Issues)

	im.logger.WithFields(logrus.Fields{
		"sheets":      len(sheets),
		"rows":        res.Summary.TotalRows,
		"imported":    res.Summary.Imported,
		"excluded":    res.Summary.Excluded,
		"processos":   len(res.Processos),
		"testemunhas": len(res.Testemunhas),
	}).Info("import finished")
	return res, nil
}

// rowReader walks a sheet, exposing each row by canonical field name.
type rowReader struct {
	sheet      Sheet
	columns    map[string]int
	unmapped   map[int]string
	resolution fields.Resolution
}

func (im *Importer) prepare(sheet Sheet, res *Result) (*rowReader, bool) {
	resolution := im.resolver.ResolveHeaders(sheet.Headers, sheet.Type)
	r := &rowReader{
		sheet:      sheet,
		columns:    make(map[string]int),
		unmapped:   make(map[int]string),
		resolution: resolution,
	}
	for i, header := range sheet.Headers {
		canonical, ok := resolution.Mapped[header]
		if _, taken := r.columns[canonical]; !ok || taken {
			if header != "" {
				r.unmapped[i] = header
			}
			continue
		}
		r.columns[canonical] = i
	}
	for _, header := range resolution.Duplicates {
		res.Issues = append(res.Issues, model.Issue{
			Sheet:    sheet.Name,
			Row:      1,
			Column:   header,
			Rule:     RuleDuplicateHeader,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("coluna %q repete um campo já mapeado e foi ignorada", header),
		})
	}
	if !resolution.Complete() {
		for _, field := range resolution.Missing {
			res.Issues = append(res.Issues, model.Issue{
				Sheet:    sheet.Name,
				Row:      1,
				Column:   field,
				Rule:     RuleMissingHeader,
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("coluna obrigatória ausente: %s", field),
			})
		}
		return r, false
	}
	return r, true
}

func (r *rowReader) get(row []string, field string) string {
	i, ok := r.columns[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (r *rowReader) has(field string) bool {
	_, ok := r.columns[field]
	return ok
}

func (r *rowReader) extra(row []string) map[string]string {
	var out map[string]string
	for i, header := range r.unmapped {
		if i >= len(row) || strings.TrimSpace(row[i]) == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[header] = strings.TrimSpace(row[i])
	}
	return out
}

// each calls fn for every non-blank data row with its 1-based sheet row
// number, checking ctx periodically.
func (r *rowReader) each(ctx context.Context, fn func(rowNum int, row []string)) (int, error) {
	total := 0
	for rowNum := 2; ; rowNum++ {
		if (rowNum-2)%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return total, err
			}
		}
		row, err := r.sheet.Rows.Next()
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("read %s row %d: %w", r.sheet.Name, rowNum, err)
		}
		if blank(row) {
			continue
		}
		total++
		fn(rowNum, row)
	}
}

func (im *Importer) importCases(ctx context.Context, sheet Sheet, seen map[string]bool, res *Result) (SheetSummary, error) {
	summary := SheetSummary{Name: sheet.Name, Type: sheet.Type}
	reader, ok := im.prepare(sheet, res)
	summary.Resolution = reader.resolution
	if !ok {
		summary.Skipped = true
		return summary, nil
	}

	issue := func(row int, column, rule string, severity model.Severity, msg, value string) {
		res.Issues = append(res.Issues, model.Issue{
			Sheet: sheet.Name, Row: row, Column: column, Rule: rule,
			Severity: severity, Message: msg, Value: value,
		})
	}

	total, err := reader.each(ctx, func(rowNum int, row []string) {
		raw := reader.get(row, fields.CNJ)
		if raw == "" {
			issue(rowNum, fields.CNJ, RuleEmptyKey, model.SeverityWarning, "linha sem número CNJ foi descartada", "")
			summary.Excluded++
			return
		}
		check := cnj.Validate(raw, cnj.ModeCorrection)
		if !check.Valid {
			issue(rowNum, fields.CNJ, RuleInvalidCNJ, model.SeverityError, check.Message, raw)
			summary.Excluded++
			return
		}
		if check.Corrected {
			res.Issues = append(res.Issues, model.Issue{
				Sheet: sheet.Name, Row: rowNum, Column: fields.CNJ, Rule: RuleCorrectedCNJ,
				Severity: model.SeverityInfo, Message: "número CNJ normalizado para o formato padrão",
				Value: check.Formatted, AutoFilled: true,
			})
		}
		if !cnj.CheckDigitValid(check.Digits) {
			issue(rowNum, fields.CNJ, RuleCheckDigit, model.SeverityInfo, "dígito verificador não confere", check.Formatted)
		}
		if seen[check.Digits] {
			issue(rowNum, fields.CNJ, RuleDuplicateKey, model.SeverityWarning, "processo repetido; mantida a primeira ocorrência", check.Formatted)
			summary.Excluded++
			return
		}

		p := model.Processo{
			CNJ:                check.Formatted,
			CNJDigits:          check.Digits,
			UF:                 strings.ToUpper(reader.get(row, fields.UF)),
			Comarca:            reader.get(row, fields.Comarca),
			Vara:               reader.get(row, fields.Vara),
			Fase:               reader.get(row, fields.Fase),
			Status:             reader.get(row, fields.Status),
			Observacoes:        reader.get(row, fields.Observacoes),
			Reclamante:         names.Canonical(reader.get(row, fields.Reclamante)),
			Reclamada:          reader.get(row, fields.Reclamada),
			AdvogadosAtivo:     lists.ParseJSONFirst(reader.get(row, fields.AdvogadosAtivo), im.listOpts),
			TestemunhasAtivo:   im.names(reader.get(row, fields.TestemunhasAtivo)),
			TestemunhasPassivo: im.names(reader.get(row, fields.TestemunhasPassivo)),
			Testemunhas:        im.names(reader.get(row, fields.TodasTestemunhas)),
			Extra:              reader.extra(row),
		}

		if value := reader.get(row, fields.DataAudiencia); value != "" {
			if date, ok := parseDate(value); ok {
				p.DataAudiencia = &date
			} else {
				issue(rowNum, fields.DataAudiencia, RuleInvalidDate, model.SeverityWarning, "data de audiência não reconhecida", value)
			}
		}

		if len(p.Testemunhas) == 0 && (len(p.TestemunhasAtivo) > 0 || len(p.TestemunhasPassivo) > 0) {
			p.Testemunhas = union(p.TestemunhasAtivo, p.TestemunhasPassivo)
			res.Issues = append(res.Issues, model.Issue{
				Sheet: sheet.Name, Row: rowNum, Column: fields.TodasTestemunhas, Rule: RuleWitnessUnion,
				Severity: model.SeverityInfo, Message: "lista de testemunhas preenchida a partir dos polos ativo e passivo",
				Value: lists.Join(p.Testemunhas), AutoFilled: true,
			})
		}

		incomplete := false
		for _, field := range im.resolver.Required(fields.SheetProcesso) {
			if field == fields.CNJ || !emptyField(p, field) {
				continue
			}
			issue(rowNum, field, RuleEmptyRequired, model.SeverityWarning,
				fmt.Sprintf("campo obrigatório vazio: %s; linha descartada", field), check.Formatted)
			incomplete = true
		}
		if incomplete {
			summary.Excluded++
			return
		}

		seen[check.Digits] = true
		res.Processos = append(res.Processos, p)
		summary.Imported++
	})
	summary.TotalRows = total
	return summary, err
}

func (im *Importer) importWitnesses(ctx context.Context, sheet Sheet, seen map[string]bool, res *Result) (SheetSummary, error) {
	summary := SheetSummary{Name: sheet.Name, Type: sheet.Type}
	reader, ok := im.prepare(sheet, res)
	summary.Resolution = reader.resolution
	if !ok {
		summary.Skipped = true
		return summary, nil
	}

	claimantCases := make(map[string][]string)
	for _, p := range res.Processos {
		if p.Reclamante != "" {
			claimantCases[p.Reclamante] = append(claimantCases[p.Reclamante], p.CNJ)
		}
	}

	issue := func(row int, column, rule string, severity model.Severity, msg, value string, autoFilled bool) {
		res.Issues = append(res.Issues, model.Issue{
			Sheet: sheet.Name, Row: row, Column: column, Rule: rule,
			Severity: severity, Message: msg, Value: value, AutoFilled: autoFilled,
		})
	}

	total, err := reader.each(ctx, func(rowNum int, row []string) {
		name := names.Canonical(reader.get(row, fields.NomeTestemunha))
		if name == "" {
			issue(rowNum, fields.NomeTestemunha, RuleEmptyKey, model.SeverityWarning, "linha sem nome de testemunha foi descartada", "", false)
			summary.Excluded++
			return
		}
		if seen[name] {
			issue(rowNum, fields.NomeTestemunha, RuleDuplicateKey, model.SeverityWarning, "testemunha repetida; mantida a primeira ocorrência", name, false)
			summary.Excluded++
			return
		}

		w := model.Testemunha{
			Nome:               name,
			CNJsComoTestemunha: canonicalRefs(lists.ParseJSONFirst(reader.get(row, fields.CNJsComoTestemunha), im.listOpts)),
			CNJsComoReclamante: canonicalRefs(lists.ParseJSONFirst(reader.get(row, fields.CNJsComoReclamante), im.listOpts)),
			Extra:              reader.extra(row),
		}
		if len(w.CNJsComoTestemunha) == 0 {
			issue(rowNum, fields.CNJsComoTestemunha, RuleEmptyRequired, model.SeverityWarning,
				fmt.Sprintf("campo obrigatório vazio: %s; linha descartada", fields.CNJsComoTestemunha), name, false)
			summary.Excluded++
			return
		}
		seen[name] = true

		rawCount := reader.get(row, fields.QtdDepoimentos)
		count, err := parseCount(rawCount)
		switch {
		case err != nil:
			w.QtdDepoimentos = len(w.CNJsComoTestemunha)
			issue(rowNum, fields.QtdDepoimentos, RuleInvalidCount, model.SeverityWarning,
				"quantidade de depoimentos não numérica; usado o total de processos listados", rawCount, true)
		case count == 0 && len(w.CNJsComoTestemunha) > 0:
			w.QtdDepoimentos = len(w.CNJsComoTestemunha)
			issue(rowNum, fields.QtdDepoimentos, RuleFilledCount, model.SeverityInfo,
				"quantidade de depoimentos preenchida pelo total de processos listados", strconv.Itoa(w.QtdDepoimentos), true)
		default:
			w.QtdDepoimentos = count
		}

		if !reader.has(fields.CNJsComoReclamante) || len(w.CNJsComoReclamante) == 0 {
			if joined := claimantCases[name]; len(joined) > 0 {
				w.CNJsComoReclamante = append([]string(nil), joined...)
				issue(rowNum, fields.CNJsComoReclamante, RuleClaimantJoin, model.SeverityInfo,
					"processos como reclamante obtidos da planilha de processos", lists.Join(joined), true)
			}
		}
		if w.CNJsComoReclamante == nil {
			w.CNJsComoReclamante = []string{}
		}
		w.JaFoiReclamante = len(w.CNJsComoReclamante) > 0

		res.Testemunhas = append(res.Testemunhas, w)
		summary.Imported++
	})
	summary.TotalRows = total
	return summary, err
}

func (im *Importer) names(value string) []string {
	items := lists.ParseJSONFirst(value, im.listOpts)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if n := names.Canonical(item); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// deriveWitnessSides sets the side-of-record flags from the case lists.
func deriveWitnessSides(witnesses []model.Testemunha, cases []model.Processo) {
	active := make(map[string]bool)
	passive := make(map[string]bool)
	for _, p := range cases {
		for _, n := range p.TestemunhasAtivo {
			active[n] = true
		}
		for _, n := range p.TestemunhasPassivo {
			passive[n] = true
		}
	}
	for i := range witnesses {
		witnesses[i].TestemunhaAtivo = active[witnesses[i].Nome]
		witnesses[i].TestemunhaPassivo = passive[witnesses[i].Nome]
	}
}

// canonicalRefs formats valid references and keeps invalid ones verbatim
// so the reconciler can report them.
func canonicalRefs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if f, err := cnj.Format(ref); err == nil {
			out = append(out, f)
			continue
		}
		out = append(out, ref)
	}
	return out
}

func emptyField(p model.Processo, field string) bool {
	switch field {
	case fields.UF:
		return p.UF == ""
	case fields.Comarca:
		return p.Comarca == ""
	case fields.Reclamante:
		return p.Reclamante == ""
	case fields.Reclamada:
		return p.Reclamada == ""
	case fields.AdvogadosAtivo:
		return len(p.AdvogadosAtivo) == 0
	case fields.TodasTestemunhas:
		return len(p.Testemunhas) == 0
	case fields.Vara:
		return p.Vara == ""
	case fields.Fase:
		return p.Fase == ""
	case fields.Status:
		return p.Status == ""
	case fields.DataAudiencia:
		return p.DataAudiencia == nil
	}
	return false
}

func parseCount(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(value); err == nil && n >= 0 {
		return n, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
	if err != nil || f < 0 || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid count %q", value)
	}
	return int(f), nil
}

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006",
	"02-01-06",
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, item := range list {
			if !seen[item] {
				seen[item] = true
				out = append(out, item)
			}
		}
	}
	return out
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
