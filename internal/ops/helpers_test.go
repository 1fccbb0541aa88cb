package ops

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/db"
	"github.com/hpungsan/pulsekit/internal/pulse"
)

// newProject returns a resolved config rooted in a temp dir with every folder created.
func newProject(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig().Resolve(t.TempDir())
	require.NoError(t, config.EnsureDirs(cfg))
	return cfg
}

func newLedger(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

// fixClock pins timestamped file names.
func fixClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

// constPulse builds an n-sample pulse with unit time steps and constant current c.
func constPulse(t *testing.T, n int, c float64) pulse.Pulse {
	t.Helper()
	tm := make([]float64, n)
	cur := make([]float64, n)
	volt := make([]float64, n)
	for i := range tm {
		tm[i] = float64(i)
		cur[i] = c
		volt[i] = -c
	}
	p, err := pulse.NewPulse(tm, cur, volt)
	require.NoError(t, err)
	return p
}

// writePulsesFile writes one pulse per current value into the processed folder.
func writePulsesFile(t *testing.T, cfg *config.Config, name string, currents ...float64) string {
	t.Helper()
	pulses := make([]pulse.Pulse, len(currents))
	for i, c := range currents {
		pulses[i] = constPulse(t, 3, c)
	}
	path := filepath.Join(cfg.ProcessedDir, name)
	require.NoError(t, WritePulses(path, pulses))
	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
