package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testemunhas/api/internal/fields"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_ADDR", "")
	t.Setenv("ANALYSIS_CACHE_TTL_SECONDS", "not-a-number")
	cfg := Load()
	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_ADDR", ":9000")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("ANALYSIS_CACHE_TTL_SECONDS", "60")
	cfg := Load()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
}

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSettingsEmptyPath(t *testing.T) {
	settings, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestLoadSettingsMergesOverDefaults(t *testing.T) {
	path := writeSettings(t, `
deteccao:
  prova_emprestada_min: 5
  pesos:
    troca_base: 0.4
analise:
  max_casos: 10
sinonimos:
  processo:
    cnj: ["Nº CNJ"]
`)
	settings, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, 5, settings.Detect.ProvaEmprestadaMin)
	assert.Equal(t, 0.4, settings.Detect.Pesos.TrocaBase)
	assert.Equal(t, DefaultSettings().Detect.MaxCiclo, settings.Detect.MaxCiclo)
	assert.Equal(t, 0.25, settings.Detect.Pesos.TrocaAdvogado)
	assert.Equal(t, 10, settings.Analysis.MaxCasos)

	canonical, ok := settings.Resolver().Resolve("Nº CNJ", fields.SheetProcesso)
	require.True(t, ok)
	assert.Equal(t, fields.CNJ, canonical)
}

func TestLoadSettingsRejectsOutOfRange(t *testing.T) {
	path := writeSettings(t, `
deteccao:
  max_ciclo: 2
analise:
  risco_alto_min: 1
`)
	_, err := LoadSettings(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxCiclo=gte")
	assert.Contains(t, err.Error(), "RiscoAltoMin=gtfield")
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
