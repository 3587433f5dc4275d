package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testemunhas/api/internal/cnj"
	"testemunhas/api/internal/model"
)

func cnjOf(n int) string {
	return fmt.Sprintf("%07d-00.2024.5.01.0001", n)
}

func processo(n int, reclamante string, testemunhas ...string) model.Processo {
	number := cnjOf(n)
	return model.Processo{
		CNJ:         number,
		CNJDigits:   cnj.Clean(number),
		UF:          "SP",
		Comarca:     fmt.Sprintf("Comarca %d", n),
		Reclamante:  reclamante,
		Reclamada:   fmt.Sprintf("Empresa %d", n),
		Testemunhas: testemunhas,
	}
}

func newTestEngine() *Engine {
	logger := logrus.New()
	logger.Out = io.Discard
	return NewEngine(DefaultConfig(), logger)
}

func run(t *testing.T, in Input, f Filter) Result {
	t.Helper()
	res, err := newTestEngine().Run(context.Background(), in, f)
	require.NoError(t, err)
	return res
}

func only(d Detector) Filter {
	return Filter{Padroes: []Detector{d}}
}

func TestTriangulacaoDetectedOnceRegardlessOfOrder(t *testing.T) {
	base := []model.Processo{
		processo(1, "Bruno", "Ana"),
		processo(2, "Carla", "Bruno"),
		processo(3, "Ana", "Carla"),
	}
	orders := [][]int{{0, 1, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, order := range orders {
		var records []model.Processo
		for _, i := range order {
			records = append(records, base[i])
		}
		res := run(t, Input{Cases: model.RealCases(records)}, Filter{})

		require.Len(t, res.Triangulacao, 1, "order %v", order)
		got := res.Triangulacao[0]
		if diff := cmp.Diff([]string{"Ana", "Bruno", "Carla"}, got.Ciclo); diff != "" {
			t.Fatalf("cycle mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, 3, got.Tamanho)
		assert.Len(t, got.Arestas, 3)
		assert.Equal(t, []string{cnjOf(1), cnjOf(2), cnjOf(3)}, got.CNJs)
		assert.Empty(t, res.TrocaDireta)
		assert.Greater(t, got.Confianca, 0.0)
	}
}

func TestTriangulacaoIgnoresCyclesWithChords(t *testing.T) {
	records := []model.Processo{
		processo(1, "Bruno", "Ana"),
		processo(2, "Carla", "Bruno"),
		processo(3, "Davi", "Carla"),
		processo(4, "Ana", "Davi"),
		processo(5, "Carla", "Ana"),
	}
	res := run(t, Input{Cases: model.RealCases(records)}, only(DetectorTriangulacao))

	require.Len(t, res.Triangulacao, 1)
	assert.Equal(t, []string{"Ana", "Carla", "Davi"}, res.Triangulacao[0].Ciclo)
}

func TestTriangulacaoOppositeDirectionsAreDistinct(t *testing.T) {
	records := []model.Processo{
		processo(1, "Bruno", "Ana"),
		processo(2, "Carla", "Bruno"),
		processo(3, "Ana", "Carla"),
		processo(4, "Carla", "Ana"),
		processo(5, "Bruno", "Carla"),
		processo(6, "Ana", "Bruno"),
	}
	res := run(t, Input{Cases: model.RealCases(records)}, Filter{})

	require.Len(t, res.Triangulacao, 2)
	cycles := [][]string{res.Triangulacao[0].Ciclo, res.Triangulacao[1].Ciclo}
	assert.ElementsMatch(t, [][]string{{"Ana", "Bruno", "Carla"}, {"Ana", "Carla", "Bruno"}}, cycles)
	assert.Len(t, res.TrocaDireta, 3)
}

func TestTriangulacaoRespectsMaxLength(t *testing.T) {
	records := []model.Processo{
		processo(1, "B", "A"),
		processo(2, "C", "B"),
		processo(3, "D", "C"),
		processo(4, "A", "D"),
	}
	cfg := DefaultConfig()
	cfg.MaxCiclo = 3
	engine := NewEngine(cfg, nil)

	res, err := engine.Run(context.Background(), Input{Cases: model.RealCases(records)}, only(DetectorTriangulacao))
	require.NoError(t, err)
	assert.Empty(t, res.Triangulacao)

	res, err = newTestEngine().Run(context.Background(), Input{Cases: model.RealCases(records)}, only(DetectorTriangulacao))
	require.NoError(t, err)
	require.Len(t, res.Triangulacao, 1)
	assert.Equal(t, 4, res.Triangulacao[0].Tamanho)
}

func TestTrocaDiretaRequiresReciprocity(t *testing.T) {
	oneWay := []model.Processo{processo(1, "Bruno", "Ana")}
	res := run(t, Input{Cases: model.RealCases(oneWay)}, only(DetectorTrocaDireta))
	assert.Empty(t, res.TrocaDireta)

	both := append(oneWay, processo(2, "Ana", "Bruno"))
	res = run(t, Input{Cases: model.RealCases(both)}, only(DetectorTrocaDireta))
	require.Len(t, res.TrocaDireta, 1)
	got := res.TrocaDireta[0]
	assert.Equal(t, "Ana", got.TestemunhaA)
	assert.Equal(t, "Bruno", got.TestemunhaB)
	assert.Equal(t, []string{cnjOf(1)}, got.CNJsAParaB)
	assert.Equal(t, []string{cnjOf(2)}, got.CNJsBParaA)
	assert.Equal(t, 1, got.ParesReciprocos)
	assert.Equal(t, 0.5, got.Confianca)
	assert.Empty(t, res.Triangulacao)
}

func TestTrocaDiretaSharedLawyerRaisesConfidence(t *testing.T) {
	a := processo(1, "Bruno", "Ana")
	a.AdvogadosAtivo = []string{"Dr. Lima (principal)", "Dra. Costa"}
	b := processo(2, "Ana", "Bruno")
	b.AdvogadosAtivo = []string{"Dr. Lima"}

	res := run(t, Input{Cases: model.RealCases([]model.Processo{a, b})}, only(DetectorTrocaDireta))
	require.Len(t, res.TrocaDireta, 1)
	assert.Equal(t, []string{"Dr. Lima"}, res.TrocaDireta[0].AdvogadosComuns)
	assert.Equal(t, 0.75, res.TrocaDireta[0].Confianca)
}

func TestTrocaDiretaUsesWitnessSheetReferences(t *testing.T) {
	records := []model.Processo{
		processo(1, "Bruno"),
		processo(2, "Ana"),
	}
	witnesses := []model.Testemunha{
		{Nome: "Ana", QtdDepoimentos: 1, CNJsComoTestemunha: []string{cnjOf(1)}},
		{Nome: "Bruno", QtdDepoimentos: 1, CNJsComoTestemunha: []string{cnj.Clean(cnjOf(2))}},
	}
	res := run(t, Input{Cases: model.RealCases(records), Testemunhas: witnesses}, only(DetectorTrocaDireta))
	require.Len(t, res.TrocaDireta, 1)
}

func TestProvaEmprestadaThresholdIsExclusive(t *testing.T) {
	witnesses := []model.Testemunha{
		{Nome: "Paula", QtdDepoimentos: 10},
		{Nome: "Pedro", QtdDepoimentos: 11},
	}
	res := run(t, Input{Testemunhas: witnesses}, only(DetectorProvaEmprestada))

	require.Len(t, res.ProvaEmprestada, 1)
	got := res.ProvaEmprestada[0]
	assert.Equal(t, "Pedro", got.Nome)
	assert.Equal(t, 11, got.QtdDepoimentos)
	assert.False(t, got.Alerta)
}

func TestProvaEmprestadaConcentrationAlert(t *testing.T) {
	var records []model.Processo
	for i := 1; i <= 12; i++ {
		p := processo(i, fmt.Sprintf("Reclamante %02d", i), "Pedro")
		p.Comarca = "Campinas"
		p.AdvogadosAtivo = []string{"Dr. Lima"}
		if i == 12 {
			p.Comarca = "Santos"
			p.AdvogadosAtivo = []string{"Dra. Souza"}
		}
		records = append(records, p)
	}
	res := run(t, Input{Cases: model.RealCases(records)}, only(DetectorProvaEmprestada))

	require.Len(t, res.ProvaEmprestada, 1)
	got := res.ProvaEmprestada[0]
	assert.Equal(t, 12, got.QtdDepoimentos)
	assert.Len(t, got.CNJs, 12)
	assert.Equal(t, []Contagem{{Nome: "Dr. Lima", Total: 11}}, got.AdvogadosRecorrentes)
	assert.Equal(t, Contagem{Nome: "Campinas/SP", Total: 11}, got.Comarcas[0])
	assert.Equal(t, 1.0, got.Concentracao)
	assert.True(t, got.Alerta)
}

func TestProvaEmprestadaConcentrationThresholdIsExclusive(t *testing.T) {
	var records []model.Processo
	for i := 1; i <= 20; i++ {
		p := processo(i, fmt.Sprintf("Reclamante %02d", i), "Pedro")
		switch {
		case i <= 7:
			p.Comarca = "Campinas"
		case i <= 14:
			p.Comarca = "Santos"
		}
		records = append(records, p)
	}
	res := run(t, Input{Cases: model.RealCases(records)}, only(DetectorProvaEmprestada))

	require.Len(t, res.ProvaEmprestada, 1)
	got := res.ProvaEmprestada[0]
	assert.Equal(t, 0.7, got.Concentracao)
	assert.False(t, got.Alerta, "a share equal to the threshold does not raise the alert")
}

func TestDuploPapelFromStubReference(t *testing.T) {
	record := model.Processo{
		CNJ:        "0001234-56.2024.5.01.0001",
		CNJDigits:  "00012345620245010001",
		UF:         "RJ",
		Comarca:    "Rio de Janeiro",
		Reclamante: "Ana",
		Reclamada:  "X",
	}
	stub := model.StubCase{
		Processo:     model.Processo{CNJ: "0009999-00.2024.5.01.0002", CNJDigits: "00099990020245010002"},
		Origin:       model.OriginWitnessReference,
		ReferencedBy: []string{"Ana"},
	}
	in := Input{
		Cases: []model.Case{model.RealCase{Processo: record}, stub},
		Testemunhas: []model.Testemunha{
			{Nome: "Ana", QtdDepoimentos: 1, CNJsComoTestemunha: []string{"0009999-00.2024.5.01.0002"}},
		},
	}
	res := run(t, in, Filter{})

	require.Len(t, res.DuploPapel, 1)
	got := res.DuploPapel[0]
	assert.Equal(t, "Ana", got.Nome)
	assert.Equal(t, []string{"0001234-56.2024.5.01.0001"}, got.CNJsComoReclamante)
	assert.Equal(t, []string{"0009999-00.2024.5.01.0002"}, got.CNJsComoTestemunha)
	assert.Equal(t, RiscoBaixo, got.Risco)
	assert.Equal(t, []string{"0009999-00.2024.5.01.0002"}, res.PendentesCompletar)
	assert.Equal(t, 2, res.CasosAnalisados)
}

func TestDuploPapelRiskLevels(t *testing.T) {
	claimant := processo(1, "Ana")
	claimant.Reclamada = "Empresa X Ltda"
	related := processo(2, "Bruno", "Ana")
	related.Reclamada = "EMPRESA X LTDA"

	res := run(t, Input{Cases: model.RealCases([]model.Processo{claimant, related})}, only(DetectorDuploPapel))
	require.Len(t, res.DuploPapel, 1)
	assert.Equal(t, RiscoAlto, res.DuploPapel[0].Risco)
	assert.Equal(t, []string{"empresa x ltda"}, res.DuploPapel[0].ReclamadasComuns)

	sameVenue := processo(3, "Bruno", "Ana")
	sameVenue.Comarca = claimant.Comarca
	res = run(t, Input{Cases: model.RealCases([]model.Processo{claimant, sameVenue})}, only(DetectorDuploPapel))
	require.Len(t, res.DuploPapel, 1)
	assert.Equal(t, RiscoMedio, res.DuploPapel[0].Risco)
}

func TestHomonimosSameSpellingDifferentAccents(t *testing.T) {
	a := processo(1, "Marcos", "José da Silva")
	b := processo(2, "Tereza", "Jose da Silva")
	for _, p := range []*model.Processo{&a, &b} {
		p.Comarca = "Campinas"
		p.AdvogadosAtivo = []string{"Dr. Lima"}
	}
	res := run(t, Input{Cases: model.RealCases([]model.Processo{a, b})}, only(DetectorHomonimos))

	require.Len(t, res.Homonimos, 1)
	got := res.Homonimos[0]
	assert.Equal(t, HomonimoMesmaPessoa, got.Tipo)
	assert.Equal(t, "Jose da Silva", got.NomeA)
	assert.Equal(t, "José da Silva", got.NomeB)
	assert.Equal(t, 1.0, got.Similaridade)
	assert.Contains(t, got.Fatores, FatorGrafiaEquivalente)
	assert.Contains(t, got.Fatores, FatorMesmoAdvogado)
	assert.Contains(t, got.Fatores, FatorMesmaComarca)
	assert.Equal(t, ProbabilidadeAlta, got.Probabilidade)
}

func TestHomonimosTypoWithoutContext(t *testing.T) {
	a := processo(1, "Marcos", "Maria Aparecida Souza")
	b := processo(2, "Tereza", "Maria Aparecida Sousa")
	res := run(t, Input{Cases: model.RealCases([]model.Processo{a, b})}, only(DetectorHomonimos))

	require.Len(t, res.Homonimos, 1)
	got := res.Homonimos[0]
	assert.Equal(t, 1, got.Distancia)
	assert.GreaterOrEqual(t, got.Similaridade, 0.88)
	assert.Contains(t, got.Fatores, FatorDistanciaEdicao)
	assert.NotContains(t, got.Fatores, FatorMesmaComarca)
	assert.Equal(t, ProbabilidadeMedia, got.Probabilidade)
}

func TestHomonimosFirstLetterVariants(t *testing.T) {
	pairs := []struct{ a, b string }{
		{"Kátia Souza", "Cátia Souza"},
		{"Elaine Prado", "Helaine Prado"},
		{"Géssica Lima", "Jéssica Lima"},
	}
	for _, pair := range pairs {
		t.Run(pair.a, func(t *testing.T) {
			a := processo(1, "Roberto", pair.a)
			b := processo(2, "Fernanda", pair.b)
			a.Comarca, b.Comarca = "Campinas", "Campinas"
			res := run(t, Input{Cases: model.RealCases([]model.Processo{a, b})}, only(DetectorHomonimos))

			require.Len(t, res.Homonimos, 1)
			got := res.Homonimos[0]
			assert.Equal(t, HomonimoMesmaPessoa, got.Tipo)
			assert.ElementsMatch(t, []string{pair.a, pair.b}, []string{got.NomeA, got.NomeB})
			assert.Less(t, got.NomeA, got.NomeB)
			assert.Equal(t, 1, got.Distancia)
			assert.Contains(t, got.Fatores, FatorMesmaComarca)
		})
	}
}

func TestMinLengthRatio(t *testing.T) {
	assert.InDelta(t, 0.4, minLengthRatio(0.88), 1e-9)
	assert.Equal(t, 0.0, minLengthRatio(0.5))
}

func TestHomonimosSplitAcrossStates(t *testing.T) {
	a := processo(1, "Ana", "Carlos Souza")
	a.AdvogadosAtivo = []string{"Dr. A"}
	b := processo(2, "Bia", "Carlos Souza")
	b.UF = "RJ"
	b.AdvogadosAtivo = []string{"Dr. B"}

	res := run(t, Input{Cases: model.RealCases([]model.Processo{a, b})}, only(DetectorHomonimos))
	require.Len(t, res.Homonimos, 1)
	got := res.Homonimos[0]
	assert.Equal(t, HomonimoPessoasDistintas, got.Tipo)
	assert.Equal(t, "Carlos Souza", got.NomeA)
	assert.Equal(t, []string{FatorUFsDistintas, FatorSemAdvogadoEmComum}, got.Fatores)
	assert.Equal(t, ProbabilidadeBaixa, got.Probabilidade)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine().Run(ctx, Input{Cases: model.RealCases([]model.Processo{processo(1, "Ana", "Bruno")})}, Filter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunRejectsUnknownDetector(t *testing.T) {
	_, err := newTestEngine().Run(context.Background(), Input{}, Filter{Padroes: []Detector{"inexistente"}})
	require.Error(t, err)
}

func TestRunSelectsDetectorsIgnoringCase(t *testing.T) {
	res := run(t, Input{}, Filter{Padroes: []Detector{"DUPLOPAPEL", "trocadireta"}})
	assert.Equal(t, []Detector{DetectorTrocaDireta, DetectorDuploPapel}, res.Executados)
	assert.NotNil(t, res.Triangulacao)
	assert.Empty(t, res.Triangulacao)
}

func TestRunFiltersByCNJ(t *testing.T) {
	records := []model.Processo{
		processo(1, "Bruno", "Ana"),
		processo(2, "Ana", "Bruno"),
		processo(3, "Eva", "Davi"),
		processo(4, "Davi", "Eva"),
	}
	res := run(t, Input{Cases: model.RealCases(records)}, Filter{
		CNJs:    []string{cnj.Clean(cnjOf(3))},
		Padroes: []Detector{DetectorTrocaDireta},
	})
	require.Len(t, res.TrocaDireta, 1)
	assert.Equal(t, "Davi", res.TrocaDireta[0].TestemunhaA)
}

func TestRunFiltersByPeriod(t *testing.T) {
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	jul := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	early := processo(1, "Bruno", "Ana")
	early.DataAudiencia = &jan
	late := processo(2, "Ana", "Bruno")
	late.DataAudiencia = &jul
	undated := processo(3, "Carla", "Davi")

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	res := run(t, Input{Cases: model.RealCases([]model.Processo{early, late, undated})}, Filter{
		Periodo: &Periodo{Inicio: &start},
	})
	assert.Equal(t, 2, res.CasosAnalisados)
	assert.Empty(t, res.TrocaDireta)
}

func TestApplyFlags(t *testing.T) {
	records := []model.Processo{
		processo(1, "Bruno", "Ana"),
		processo(2, "Ana", "Bruno"),
		processo(3, "Carla"),
	}
	witnesses := []model.Testemunha{{Nome: "Ana"}, {Nome: "Carla"}}
	res := run(t, Input{Cases: model.RealCases(records), Testemunhas: witnesses}, Filter{})

	cases, flagged := ApplyFlags(records, witnesses, res)
	assert.True(t, cases[0].TrocaDireta)
	assert.True(t, cases[1].TrocaDireta)
	assert.False(t, cases[2].TrocaDireta)
	assert.True(t, flagged[0].ParticipouTroca)
	assert.False(t, flagged[1].ParticipouTroca)

	assert.False(t, records[0].TrocaDireta, "input must not be modified")
	assert.False(t, witnesses[0].ParticipouTroca, "input must not be modified")
}
