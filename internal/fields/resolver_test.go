package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMatchingOrder(t *testing.T) {
	r := Default()

	got, ok := r.Resolve("cnj", SheetProcesso)
	require.True(t, ok)
	assert.Equal(t, CNJ, got)

	got, ok = r.Resolve("Número do Processo", SheetProcesso)
	require.True(t, ok)
	assert.Equal(t, CNJ, got)

	got, ok = r.Resolve("  NUMERO DO  processo ", SheetProcesso)
	require.True(t, ok)
	assert.Equal(t, CNJ, got)

	_, ok = r.Resolve("Cor favorita", SheetProcesso)
	assert.False(t, ok)

	_, ok = r.Resolve("Advogados", SheetTestemunha)
	assert.False(t, ok, "synonyms are scoped to their sheet type")
}

func TestExactMatchBeatsFoldedMatch(t *testing.T) {
	r := NewResolver(SynonymTable{
		SheetProcesso: {
			"a": {"Campo"},
			"b": {"campo"},
		},
	}, nil)
	got, ok := r.Resolve("campo", SheetProcesso)
	require.True(t, ok)
	assert.Equal(t, "b", got)
}

func TestResolveHeaders(t *testing.T) {
	r := Default()
	headers := []string{"CNJ", "UF", "Comarca", "Reclamante", "Reclamada", "Advogados", "Testemunhas", "Cor", "Processo"}
	res := r.ResolveHeaders(headers, SheetProcesso)

	assert.True(t, res.Complete())
	assert.Equal(t, TodasTestemunhas, res.Mapped["Testemunhas"])
	assert.Equal(t, AdvogadosAtivo, res.Mapped["Advogados"])
	assert.Equal(t, []string{"Cor", "Processo"}, res.Unmapped)
	assert.Equal(t, []string{"Processo"}, res.Duplicates)
}

func TestResolveHeadersReportsMissing(t *testing.T) {
	res := Default().ResolveHeaders([]string{"Nome", "Observação livre"}, SheetTestemunha)
	assert.False(t, res.Complete())
	assert.Equal(t, []string{QtdDepoimentos, CNJsComoTestemunha}, res.Missing)
	assert.Equal(t, []string{"Observação livre"}, res.Unmapped)
}

func TestMergeAddsSynonyms(t *testing.T) {
	merged := Merge(DefaultSynonyms(), SynonymTable{SheetProcesso: {CNJ: {"Autos"}}})
	r := NewResolver(merged, DefaultRequired())
	got, ok := r.Resolve("autos", SheetProcesso)
	require.True(t, ok)
	assert.Equal(t, CNJ, got)
	assert.NotContains(t, DefaultSynonyms()[SheetProcesso][CNJ], "Autos")
}
