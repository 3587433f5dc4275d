package ingest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"testemunhas/api/internal/fields"
	"testemunhas/api/internal/model"
)

const (
	cnj1 = "0000001-00.2024.5.01.0001"
	cnj2 = "0000002-00.2024.5.01.0001"
	cnj3 = "0000003-00.2024.5.01.0001"
)

func newTestImporter() *Importer {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return NewImporter(fields.Default(), logger)
}

func withRule(issues []model.Issue, rule string) []model.Issue {
	var out []model.Issue
	for _, issue := range issues {
		if issue.Rule == rule {
			out = append(out, issue)
		}
	}
	return out
}

func caseSheet() Sheet {
	return Sheet{
		Name: "Processos",
		Type: fields.SheetProcesso,
		Headers: []string{
			"Número do Processo", "UF", "Comarca", "Reclamante", "Reclamada", "Advogados",
			"Testemunhas Polo Ativo", "Testemunhas Polo Passivo", "Todas Testemunhas", "Data Audiência", "Origem",
		},
		Rows: NewSliceRows([][]string{
			{cnj1, "SP", "Campinas", "Ana Souza", "Empresa X", "Dr. Lima; Dra. Reis", "Bruno", "Carla", "", "15/03/2024", "planilha A"},
			{"0000002 00 2024 5 01 0001", "sp", "Santos", "Davi", "Empresa Y", "Dr. Lima", "", "", `["Ana Souza", "Erica"]`, "amanhã", ""},
			{"123", "SP", "Santos", "Fabio", "Empresa Z", "Dr. Lima", "", "", "Bruno", "", ""},
			{cnj1, "RJ", "Rio", "Outro", "Empresa W", "Dr. Reis", "", "", "Carla", "", ""},
			{"", "SP", "Santos", "Gil", "Empresa V", "Dr. Lima", "", "", "Bruno", "", ""},
			{"", "", "", "", "", "", "", "", "", "", ""},
			{cnj3, "MG", "Belo Horizonte", "Helena", "", "Dra. Reis", "", "", "Ana Souza", "2024-05-02", ""},
		}),
	}
}

func witnessSheet() Sheet {
	return Sheet{
		Name:    "Testemunhas",
		Type:    fields.SheetTestemunha,
		Headers: []string{"Nome", "Qtd Depoimentos", "CNJs"},
		Rows: NewSliceRows([][]string{
			{"Bruno", "abc", "00000010020245010001"},
			{"Ana  Souza", "", cnj2 + "; " + cnj3},
			{"  ", "1", cnj1},
			{"Bruno", "3", cnj2},
		}),
	}
}

func TestImportCases(t *testing.T) {
	res, err := newTestImporter().Import(context.Background(), []Sheet{caseSheet()})
	require.NoError(t, err)

	require.Len(t, res.Processos, 2)
	assert.Equal(t, 6, res.Summary.TotalRows)
	assert.Equal(t, 2, res.Summary.Imported)
	assert.Equal(t, 4, res.Summary.Excluded)

	first := res.Processos[0]
	assert.Equal(t, cnj1, first.CNJ)
	assert.Equal(t, "00000010020245010001", first.CNJDigits)
	assert.Equal(t, []string{"Dr. Lima", "Dra. Reis"}, first.AdvogadosAtivo)
	assert.Equal(t, []string{"Bruno", "Carla"}, first.Testemunhas)
	assert.Equal(t, map[string]string{"Origem": "planilha A"}, first.Extra)
	require.NotNil(t, first.DataAudiencia)
	assert.Equal(t, "2024-03-15", first.DataAudiencia.Format("2006-01-02"))

	second := res.Processos[1]
	assert.Equal(t, cnj2, second.CNJ)
	assert.Equal(t, "SP", second.UF)
	assert.Equal(t, []string{"Ana Souza", "Erica"}, second.Testemunhas)
	assert.Nil(t, second.DataAudiencia)

	for _, p := range res.Processos {
		assert.NotEqual(t, cnj3, p.CNJ, "row with an empty respondent must be excluded")
	}

	union := withRule(res.Issues, RuleWitnessUnion)
	require.Len(t, union, 1)
	assert.Equal(t, 2, union[0].Row)
	assert.True(t, union[0].AutoFilled)

	corrected := withRule(res.Issues, RuleCorrectedCNJ)
	require.Len(t, corrected, 1)
	assert.Equal(t, model.SeverityInfo, corrected[0].Severity)
	assert.Equal(t, cnj2, corrected[0].Value)
	assert.True(t, corrected[0].AutoFilled)

	invalid := withRule(res.Issues, RuleInvalidCNJ)
	require.Len(t, invalid, 1)
	assert.Equal(t, model.SeverityError, invalid[0].Severity)
	assert.Equal(t, 4, invalid[0].Row)

	dup := withRule(res.Issues, RuleDuplicateKey)
	require.Len(t, dup, 1)
	assert.Equal(t, 5, dup[0].Row)
	assert.Equal(t, model.SeverityWarning, dup[0].Severity)

	emptyKey := withRule(res.Issues, RuleEmptyKey)
	require.Len(t, emptyKey, 1)
	assert.Equal(t, 6, emptyKey[0].Row)

	emptyRequired := withRule(res.Issues, RuleEmptyRequired)
	require.Len(t, emptyRequired, 1)
	assert.Equal(t, 8, emptyRequired[0].Row)
	assert.Equal(t, fields.Reclamada, emptyRequired[0].Column)
	assert.Equal(t, cnj3, emptyRequired[0].Value)

	badDate := withRule(res.Issues, RuleInvalidDate)
	require.Len(t, badDate, 1)
	assert.Equal(t, "amanhã", badDate[0].Value)

	assert.Equal(t, 1, res.Summary.BySeverity[model.SeverityError])
}

func TestImportWitnessesAfterCases(t *testing.T) {
	// witness sheet first on purpose; cases must still be imported first
	res, err := newTestImporter().Import(context.Background(), []Sheet{witnessSheet(), caseSheet()})
	require.NoError(t, err)

	require.Len(t, res.Summary.Sheets, 2)
	assert.Equal(t, fields.SheetProcesso, res.Summary.Sheets[0].Type)

	require.Len(t, res.Testemunhas, 2)
	bruno := res.Testemunhas[0]
	assert.Equal(t, "Bruno", bruno.Nome)
	assert.Equal(t, []string{cnj1}, bruno.CNJsComoTestemunha)
	assert.Equal(t, 1, bruno.QtdDepoimentos)
	assert.True(t, bruno.TestemunhaAtivo)
	assert.False(t, bruno.TestemunhaPassivo)
	assert.False(t, bruno.JaFoiReclamante)
	assert.Equal(t, []string{}, bruno.CNJsComoReclamante)

	ana := res.Testemunhas[1]
	assert.Equal(t, "Ana Souza", ana.Nome)
	assert.Equal(t, 2, ana.QtdDepoimentos)
	assert.Equal(t, []string{cnj1}, ana.CNJsComoReclamante)
	assert.True(t, ana.JaFoiReclamante)

	invalidCount := withRule(res.Issues, RuleInvalidCount)
	require.Len(t, invalidCount, 1)
	assert.Equal(t, model.SeverityWarning, invalidCount[0].Severity)
	assert.True(t, invalidCount[0].AutoFilled)

	filled := withRule(res.Issues, RuleFilledCount)
	require.Len(t, filled, 1)
	assert.Equal(t, "2", filled[0].Value)

	assert.Len(t, withRule(res.Issues, RuleClaimantJoin), 1)
	assert.Equal(t, 4, res.Summary.Sheets[1].TotalRows)
	assert.Equal(t, 2, res.Summary.Sheets[1].Excluded)
}

func TestImportExcludesRowsWithEmptyRequiredFields(t *testing.T) {
	sheet := Sheet{
		Name:    "Processos",
		Type:    fields.SheetProcesso,
		Headers: []string{"Número do Processo", "UF", "Comarca", "Reclamante", "Reclamada", "Advogados", "Todas Testemunhas"},
		Rows: NewSliceRows([][]string{
			{cnj1, "", "", "", "", "", ""},
			{cnj1, "SP", "Campinas", "Ana Souza", "Empresa X", "Dr. Lima", "Bruno"},
		}),
	}
	witnesses := Sheet{
		Name:    "Testemunhas",
		Type:    fields.SheetTestemunha,
		Headers: []string{"Nome", "Qtd Depoimentos", "CNJs"},
		Rows: NewSliceRows([][]string{
			{"Bruno", "1", ""},
			{"Bruno", "1", cnj1},
		}),
	}
	res, err := newTestImporter().Import(context.Background(), []Sheet{sheet, witnesses})
	require.NoError(t, err)

	require.Len(t, res.Processos, 1)
	assert.Equal(t, "Ana Souza", res.Processos[0].Reclamante, "a complete row after an excluded one is kept")
	require.Len(t, res.Testemunhas, 1)
	assert.Equal(t, []string{cnj1}, res.Testemunhas[0].CNJsComoTestemunha)

	assert.Equal(t, 2, res.Summary.Imported)
	assert.Equal(t, 2, res.Summary.Excluded)
	assert.Empty(t, withRule(res.Issues, RuleDuplicateKey))

	emptyRequired := withRule(res.Issues, RuleEmptyRequired)
	require.Len(t, emptyRequired, 7)
	for _, issue := range emptyRequired[:6] {
		assert.Equal(t, 2, issue.Row)
		assert.Equal(t, "Processos", issue.Sheet)
	}
	assert.Equal(t, fields.CNJsComoTestemunha, emptyRequired[6].Column)
}

func TestParseDateIsDayFirst(t *testing.T) {
	for _, value := range []string{"05/03/2024", "05-03-2024", "05-03-24", "2024-03-05"} {
		date, ok := parseDate(value)
		require.True(t, ok, value)
		assert.Equal(t, "2024-03-05", date.Format("2006-01-02"), value)
	}
}

func TestImportSkipsSheetWithMissingHeaders(t *testing.T) {
	broken := Sheet{
		Name:    "Processos",
		Type:    fields.SheetProcesso,
		Headers: []string{"CNJ", "UF", "Comarca"},
		Rows:    NewSliceRows([][]string{{cnj1, "SP", "Campinas"}}),
	}
	res, err := newTestImporter().Import(context.Background(), []Sheet{broken, witnessSheet()})
	require.NoError(t, err)

	assert.Empty(t, res.Processos)
	assert.Len(t, res.Testemunhas, 2)
	require.Len(t, res.Summary.Sheets, 2)
	assert.True(t, res.Summary.Sheets[0].Skipped)

	missing := withRule(res.Issues, RuleMissingHeader)
	require.Len(t, missing, 4)
	for _, issue := range missing {
		assert.Equal(t, model.SeverityError, issue.Severity)
		assert.Equal(t, 1, issue.Row)
	}
	assert.Equal(t, fields.Reclamante, missing[0].Column)
}

func TestImportHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestImporter().Import(ctx, []Sheet{caseSheet()})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestReadCSVSemicolon(t *testing.T) {
	data := "\ufeffCNJ;UF;Comarca;Reclamante;Reclamada;Advogados;Testemunhas\n" +
		cnj1 + ";SP;Campinas;Ana;Empresa X;Dr. Lima, Dra. Reis;Bruno, Carla\n"
	sheet, err := ReadCSV("processos", fields.SheetProcesso, strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "CNJ", sheet.Headers[0])

	res, err := newTestImporter().Import(context.Background(), []Sheet{sheet})
	require.NoError(t, err)
	require.Len(t, res.Processos, 1)
	assert.Equal(t, []string{"Dr. Lima", "Dra. Reis"}, res.Processos[0].AdvogadosAtivo)
	assert.Equal(t, []string{"Bruno", "Carla"}, res.Processos[0].Testemunhas)
}

func TestOpenWorkbook(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Processos"))
	require.NoError(t, f.SetSheetRow("Processos", "A1", &[]any{"CNJ", "UF", "Comarca", "Reclamante", "Reclamada", "Advogados", "Testemunhas"}))
	require.NoError(t, f.SetSheetRow("Processos", "A2", &[]any{cnj1, "SP", "Campinas", "Ana", "Empresa X", "Dr. Lima", "Bruno"}))
	_, err := f.NewSheet("Testemunhas")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Testemunhas", "A1", &[]any{"Nome", "Depoimentos", "Processos"}))
	require.NoError(t, f.SetSheetRow("Testemunhas", "A2", &[]any{"Bruno", 1, cnj1}))
	_, err = f.NewSheet("Vazia")
	require.NoError(t, err)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	wb, err := OpenWorkbook(bytes.NewReader(buf.Bytes()), fields.Default())
	require.NoError(t, err)
	defer wb.Close()

	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, fields.SheetProcesso, wb.Sheets[0].Type)
	assert.Equal(t, fields.SheetTestemunha, wb.Sheets[1].Type)

	res, err := newTestImporter().Import(context.Background(), wb.Sheets)
	require.NoError(t, err)
	assert.Len(t, res.Processos, 1)
	require.Len(t, res.Testemunhas, 1)
	assert.Equal(t, 1, res.Testemunhas[0].QtdDepoimentos)
}

func TestOpenRejectsUnknownExtension(t *testing.T) {
	_, err := Open("dados.txt", strings.NewReader("CNJ\n"), fields.Default())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestOpenCSVClassifiesByFileName(t *testing.T) {
	wb, err := Open("uploads/testemunhas.csv", strings.NewReader("Nome;Qtd\nAna;2\n"), fields.Default())
	require.NoError(t, err)
	defer wb.Close()
	require.Len(t, wb.Sheets, 1)
	assert.Equal(t, "testemunhas", wb.Sheets[0].Name)
	assert.Equal(t, fields.SheetTestemunha, wb.Sheets[0].Type)
	assert.Equal(t, []string{"Nome", "Qtd"}, wb.Sheets[0].Headers)
}

func TestClassifySheetByHeaders(t *testing.T) {
	resolver := fields.Default()
	assert.Equal(t, fields.SheetTestemunha, ClassifySheet("Planilha2", []string{"Nome", "Qtd Depoimentos", "CNJs"}, resolver))
	assert.Equal(t, fields.SheetProcesso, ClassifySheet("Planilha1", []string{"CNJ", "UF", "Comarca", "Reclamante"}, resolver))
}
