package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadConfig_MergesOverlayAndSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
  password: ${DB_SECRET}
planning:
  max_level: 3
  dedup_ttl: 1h
`)
	writeFile(t, dir, "production.yaml", `
db:
  host: db.internal
`)
	writeFile(t, dir, "secrets.env", "# comment\nDB_SECRET=\"s3cret\"\n")

	raw, err := LoadConfig("production", dir)
	require.NoError(t, err)

	var cfg struct {
		DB       DBConfig       `yaml:"db"`
		Planning PlanningConfig `yaml:"planning"`
	}
	require.NoError(t, Decode(raw, &cfg))

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "s3cret", cfg.DB.Password)
	assert.Equal(t, 3, cfg.Planning.MaxLevel)
	assert.Equal(t, time.Hour, cfg.Planning.DedupTTL)
}

func TestLoadConfig_MissingBase(t *testing.T) {
	_, err := LoadConfig("local", t.TempDir())
	require.Error(t, err)
}

func TestPlanningConfig_Defaults(t *testing.T) {
	var p PlanningConfig
	p.ApplyDefaults()

	assert.Equal(t, 3, p.MaxLevel)
	assert.Equal(t, 480.0, p.CapacityHours())
	assert.Equal(t, 60, p.MaxTaskDays)
	assert.Equal(t, 0.5, p.CriticalRatio)
	assert.Equal(t, 5, p.MaxCandidates)
	assert.Equal(t, 40.0, p.MinMatchScore)
}

func TestOverrideDBFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_PORT", "6543")

	cfg := DBConfig{Host: "localhost", Port: 5432}
	OverrideDBFromEnv(&cfg)

	assert.Equal(t, "pg", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
}
