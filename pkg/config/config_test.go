package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Tasks", cfg.Calendar)
	assert.Equal(t, "09:00", cfg.Day.Start)
	assert.Equal(t, 45*time.Minute, cfg.Day.Sprint)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
calendar: Work
database: /tmp/tq.db
day:
  start: "08:30"
  end: "12:00"
  sprint: 50m
  break: 10m
`), 0600))
	t.Setenv("TASKQUEST_DAY_END", "13:00")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Work", cfg.Calendar)
	assert.Equal(t, "/tmp/tq.db", cfg.Database)
	assert.Equal(t, "08:30", cfg.Day.Start)
	assert.Equal(t, "13:00", cfg.Day.End)
	assert.Equal(t, 50*time.Minute, cfg.Day.Sprint)
	assert.Equal(t, 10*time.Minute, cfg.Day.Break)

	w, err := cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+30*time.Minute, w.DayStart)
	assert.Equal(t, 13*time.Hour, w.DayEnd)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad clock", "day:\n  start: \"9am\"\n"},
		{"end before start", "day:\n  start: \"17:00\"\n  end: \"09:00\"\n"},
		{"zero sprint", "day:\n  sprint: 0s\n"},
		{"unknown level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Calendar = "Focus"
	cfg.Day.Sprint = 25 * time.Minute
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sprint: 25m0s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Focus", loaded.Calendar)
	assert.Equal(t, 25*time.Minute, loaded.Day.Sprint)
	assert.Equal(t, cfg.Database, loaded.Database)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "tq.db"), expandHome("~/tq.db"))
	assert.Equal(t, "/abs/tq.db", expandHome("/abs/tq.db"))
}
