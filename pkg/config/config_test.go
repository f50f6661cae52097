package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Tokenizer.MinTokenLength)
	assert.Equal(t, 500, cfg.Tokenizer.MaxSequenceLength)
	assert.Equal(t, BackendPostgres, cfg.Search.LookupBackend)
	assert.Equal(t, 20, cfg.Search.DefaultPageSize)
	assert.Equal(t, 50, cfg.Search.MaxPageSize)
	assert.Equal(t, []string{"수학", "국어", "영어"}, cfg.Search.SampleQueries)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9000
tokenizer:
  maxSequenceLength: 100
search:
  lookupBackend: memory
  lookupTimeout: 750ms
redis:
  cacheTTL: 2m
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Tokenizer.MaxSequenceLength)
	assert.Equal(t, 2, cfg.Tokenizer.MinTokenLength)
	assert.Equal(t, BackendMemory, cfg.Search.LookupBackend)
	assert.Equal(t, 750*time.Millisecond, cfg.Search.LookupTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QS_SERVER_PORT", "7070")
	t.Setenv("QS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("QS_SEARCH_SAMPLE_QUERIES", "확률,미적분")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"확률", "미적분"}, cfg.Search.SampleQueries)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Search.LookupBackend = "elastic"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Search.DefaultPageSize = 80
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Tokenizer.MaxSequenceLength = -1
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Search.LookupBackend = BackendMemory
	cfg.Search.RefreshInterval = 0
	assert.Error(t, cfg.Validate())

	assert.NoError(t, defaultConfig().Validate())
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", p.DSN())
}
