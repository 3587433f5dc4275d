// Package ingest reads case and witness sheets, resolves their headers and
// turns rows into records, collecting issues instead of failing.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"testemunhas/api/internal/fields"
	"testemunhas/api/internal/names"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// RowSource streams data rows. Next returns io.EOF after the last row.
type RowSource interface {
	Next() ([]string, error)
}

// Sheet is one tabular input. Headers come from the first row and Rows
// yields the remaining ones.
type Sheet struct {
	Name    string
	Type    fields.SheetType
	Headers []string
	Rows    RowSource
}

type SliceRows struct {
	rows [][]string
	pos  int
}

func NewSliceRows(rows [][]string) *SliceRows {
	return &SliceRows{rows: rows}
}

func (s *SliceRows) Next() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

type CSVRows struct {
	r *csv.Reader
}

func (c *CSVRows) Next() ([]string, error) {
	return c.r.Read()
}

// ReadCSV builds a sheet from CSV text. The delimiter is ';' when the
// header line has more semicolons than commas, which is how spreadsheet
// tools export in pt-BR locales.
func ReadCSV(name string, sheetType fields.SheetType, r io.Reader) (Sheet, error) {
	br := bufio.NewReader(r)
	peek, _ := br.Peek(4096)
	firstLine := peek
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		firstLine = peek[:i]
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		reader.Comma = ';'
	}

	headers, err := reader.Read()
	if err != nil {
		return Sheet{}, fmt.Errorf("read csv header: %w", err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}
	return Sheet{Name: name, Type: sheetType, Headers: trimAll(headers), Rows: &CSVRows{r: reader}}, nil
}

type XLSXRows struct {
	rows *excelize.Rows
}

func (x *XLSXRows) Next() ([]string, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return x.rows.Columns()
}

func (x *XLSXRows) Close() error {
	return x.rows.Close()
}

// Workbook holds the sheets of an open spreadsheet. Rows are streamed from
// the file, so Close must be called once the sheets are consumed.
type Workbook struct {
	Sheets []Sheet
	file   *excelize.File
	rows   []*XLSXRows
}

func (w *Workbook) Close() error {
	var errs []error
	for _, r := range w.rows {
		errs = append(errs, r.Close())
	}
	if w.file != nil {
		errs = append(errs, w.file.Close())
	}
	return errors.Join(errs...)
}

// OpenWorkbook reads an xlsx workbook and classifies each non-empty sheet
// as a case or witness sheet.
func OpenWorkbook(r io.Reader, resolver *fields.Resolver) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	wb := &Workbook{file: f}
	for _, name := range f.GetSheetList() {
		rows, err := f.Rows(name)
		if err != nil {
			wb.Close()
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		source := &XLSXRows{rows: rows}
		wb.rows = append(wb.rows, source)

		headers, err := source.Next()
		if errors.Is(err, io.EOF) || (err == nil && len(headers) == 0) {
			continue
		}
		if err != nil {
			wb.Close()
			return nil, fmt.Errorf("read header of sheet %s: %w", name, err)
		}
		headers = trimAll(headers)
		wb.Sheets = append(wb.Sheets, Sheet{
			Name:    name,
			Type:    ClassifySheet(name, headers, resolver),
			Headers: headers,
			Rows:    source,
		})
	}
	return wb, nil
}

// Open reads a workbook or a single CSV sheet, choosing the format by the
// extension of name. CSV sheets are classified the same way workbook
// sheets are, using the base file name.
func Open(name string, r io.Reader, resolver *fields.Resolver) (*Workbook, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return OpenWorkbook(r, resolver)
	case ".csv":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		sheet, err := ReadCSV(base, "", bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		sheet.Type = ClassifySheet(base, sheet.Headers, resolver)
		return &Workbook{Sheets: []Sheet{sheet}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

func OpenFile(path string, resolver *fields.Resolver) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Open(path, f, resolver)
}

// ClassifySheet guesses the sheet type from its name, then from which
// vocabulary resolves more of its required headers.
func ClassifySheet(name string, headers []string, resolver *fields.Resolver) fields.SheetType {
	folded := names.Fold(name)
	switch {
	case strings.Contains(folded, "testemunh"):
		return fields.SheetTestemunha
	case strings.Contains(folded, "processo"):
		return fields.SheetProcesso
	}
	asCase := resolver.ResolveHeaders(headers, fields.SheetProcesso)
	asWitness := resolver.ResolveHeaders(headers, fields.SheetTestemunha)
	caseScore := len(resolver.Required(fields.SheetProcesso)) - len(asCase.Missing)
	witnessScore := len(resolver.Required(fields.SheetTestemunha)) - len(asWitness.Missing)
	if (asWitness.Complete() && !asCase.Complete()) || witnessScore > caseScore {
		return fields.SheetTestemunha
	}
	return fields.SheetProcesso
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
