package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rent-market/internal/policy"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Simulation.Households)
	assert.Equal(t, 90, cfg.Simulation.Units)
	assert.Equal(t, 10, cfg.Simulation.Landlords)
	assert.Equal(t, 10, cfg.Simulation.Years)
	assert.InDelta(t, 0.05, *cfg.Simulation.MigrationRate, 1e-9)
	assert.Equal(t, 3, cfg.Simulation.Runs)
	assert.Equal(t, "none", cfg.Policy.Kind)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, time.Second, cfg.StepInterval())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
simulation:
  households: 40
  units: 30
  landlords: 4
  years: 3
  migration_rate: 0
  seed: 42
policy:
  kind: rent_cap
  max_increase: 0.03
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Simulation.Households)
	assert.Zero(t, *cfg.Simulation.MigrationRate, "explicit zero survives defaults")
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.Seed)
	assert.Equal(t, 3, p.Years)
	require.NotNil(t, p.Policy)
	assert.Equal(t, policy.KindRentCap, p.Policy.Kind)
	assert.InDelta(t, 0.3, p.Policy.RentCapRatio, 1e-9)
	assert.InDelta(t, 0.03, p.Policy.MaxIncrease, 1e-9)
	assert.InDelta(t, 0.1, p.Policy.InspectionRate, 1e-9)
}

func TestLoad_LVTDefaultsRate(t *testing.T) {
	path := writeFile(t, "config.yaml", "policy:\n  kind: lvt\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	pol, err := cfg.BuildPolicy()
	require.NoError(t, err)
	assert.Equal(t, policy.KindLandValueTax, pol.Kind)
	assert.InDelta(t, 0.1, pol.LVTRate, 1e-9)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RENTSIM_HOUSEHOLDS", "55")
	t.Setenv("RENTSIM_SEED", "7")
	t.Setenv("RENTSIM_POLICY", "rent_cap")
	t.Setenv("RENTSIM_DB", ":memory:")
	t.Setenv("RENTSIM_CORS_ORIGINS", "http://a.test,http://b.test")

	path := writeFile(t, "config.yaml", "simulation:\n  households: 20\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 55, cfg.Simulation.Households)
	assert.Equal(t, int64(7), cfg.Simulation.Seed)
	assert.Equal(t, "rent_cap", cfg.Policy.Kind)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.API.Origins)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Run("bad env", func(t *testing.T) {
		t.Setenv("RENTSIM_YEARS", "ten")
		_, err := Load("")
		assert.Error(t, err)
	})

	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "simulation: [\n"},
		{"unknown policy", "policy:\n  kind: martial_law\n"},
		{"negative households", "simulation:\n  households: -3\n"},
		{"migration above one", "simulation:\n  migration_rate: 1.5\n"},
		{"bad cap ratio", "policy:\n  kind: rent_cap\n  rent_cap_ratio: -1\n"},
		{"bad log level", "log:\n  level: chatty\n"},
		{"bad log format", "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
households:
  - name: The Okafors
    age: 34
    size: 3
    income: 4200
    wealth: 15000
units:
  - name: Harbour Loft
    quality: 0.8
    base_rent: 1400
    size: 2
    location: 0.9
    amenities: [parking, balcony]
`)
	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Households, 1)
	require.Len(t, cat.Units, 1)
	assert.Equal(t, "The Okafors", cat.Households[0].Name)
	assert.InDelta(t, 4200, cat.Households[0].Income, 1e-9)
	assert.Equal(t, []string{"parking", "balcony"}, cat.Units[0].Amenities)
	assert.InDelta(t, 1400, cat.Units[0].BaseRent, 1e-9)

	_, err = LoadCatalog(writeFile(t, "bad.yaml", "units:\n  - quality: 1.5\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = LoadCatalog(writeFile(t, "neg.yaml", "households:\n  - income: -5\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}
