package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, time.Second, cfg.Tick())
	require.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chargepal.yaml")
	contents := `
livestore:
  mysql_dsn: "user:pass@tcp(127.0.0.1:3306)/chargepal"
planstore:
  data_dir: "/var/lib/chargepal/plan"
http:
  addr: "0.0.0.0:9090"
tick_interval: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "user:pass@tcp(127.0.0.1:3306)/chargepal", cfg.LiveStore.MySQLDSN)
	require.Equal(t, "/var/lib/chargepal/plan", cfg.PlanStore.DataDir)
	require.Equal(t, "0.0.0.0:9090", cfg.HTTP.Addr)
	require.Equal(t, 500*time.Millisecond, cfg.Tick())
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
