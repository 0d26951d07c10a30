package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  codes_expired_topic_name: "codes.expired"
redis:
  host: "localhost"
  port: 6379
trackfy:
  http_addr: ":3001"
  storage_backend: "file"
  data_file: "data/tracking-codes.json"
  current_status_ttl_seconds: 600
  create_rate_limit_per_minute: 30
  cleanup_initial_delay_seconds: 5
  cleanup_interval_seconds: 86400
  retention_days: 30
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "codes.expired", cfg.Kafka.CodesExpiredTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":3001", cfg.Trackfy.HTTPAddr)
	require.Equal(t, "file", cfg.Trackfy.StorageBackend)
	require.Equal(t, 30, cfg.Trackfy.RetentionDays)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
