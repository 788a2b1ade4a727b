package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.Corpus.Source)
	assert.Equal(t, 17, cfg.Corpus.MaxSymptoms)
	assert.Equal(t, 0.5, cfg.Search.ExactWeight)
	assert.Equal(t, 0.3, cfg.Search.ComboWeight)
	assert.Equal(t, 0.2, cfg.Search.SemanticWeight)
	assert.Equal(t, filepath.Join("data/index", "medical_rag"), cfg.Indexer.PrefixPath())
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	yamlData := `
corpus:
  source: csv
  path: /tmp/dataset.csv
indexer:
  dataDir: /var/lib/ssp
  snapshotPrefix: prod
  maxComboSymptoms: 12
redis:
  cacheTTL: 30s
search:
  defaultTopK: 5
  maxTopK: 20
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))
	t.Setenv("SSP_LOGGING_LEVEL", "debug")
	t.Setenv("SSP_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dataset.csv", cfg.Corpus.Path)
	assert.Equal(t, "/var/lib/ssp/prod", cfg.Indexer.PrefixPath())
	assert.Equal(t, 12, cfg.Indexer.MaxComboSymptoms)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, 5, cfg.Search.DefaultTopK)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 1.5, cfg.Search.PairBoost, "unset keys keep defaults")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SSP_CORPUS_PATH=/data/from-dotenv.csv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("SSP_CORPUS_PATH") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/from-dotenv.csv", cfg.Corpus.Path)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Corpus.Source = "s3"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Indexer.MaxComboSymptoms = -1
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Search.DefaultTopK = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Server.RateLimit = 100
	cfg.Server.RateLimitWindow = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Server.RateLimit = -1
	assert.Error(t, cfg.Validate())
}
