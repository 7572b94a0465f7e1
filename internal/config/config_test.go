package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

const sampleYAML = `
server:
  port: 9090
auth:
  enabled: true
  bearer_token: sekrit
scraper:
  retention_days: 45
sources:
  - id: mgto
    name: Macao Government Tourism Office
    url: https://www.mgto.gov.mo/en/events
    active: true
    requests_per_second: 0.5
    timezone: Asia/Macau
    container_selectors: [".event-card"]
    tags: [macau]
  - id: galaxy
    name: Galaxy Macau
    url: https://www.galaxymacau.com/events
    active: false
    script_rendered: true
    wait_selector: ".event-list"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eventtide.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "sekrit", cfg.Auth.BearerToken)
	assert.Equal(t, 45, cfg.Scraper.RetentionDays)

	// Defaults fill what the file omits.
	assert.Equal(t, 10, cfg.Scraper.BatchSize)
	assert.Equal(t, 15, cfg.HTTP.TimeoutSeconds)
	assert.Equal(t, 5*time.Minute, cfg.RunDeadline())

	require.Len(t, cfg.Sources, 2)
	mgto := cfg.Sources[0]
	assert.Equal(t, "mgto", mgto.ID)
	assert.Equal(t, 0.5, mgto.RequestsPerSecond)
	assert.Equal(t, "Asia/Macau", mgto.Timezone)
	assert.Equal(t, []string{".event-card"}, mgto.ContainerSelectors)
	assert.True(t, cfg.Sources[1].ScriptRendered)
	assert.Equal(t, ".event-list", cfg.Sources[1].WaitSelector)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Scraper.RetentionDays)
	assert.Equal(t, "none", cfg.Archive.Provider)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Auth = AuthConfig{Enabled: true}
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Sources = []pipeline.SourceConfig{{ID: "", URL: "http://x"}}
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Sources = []pipeline.SourceConfig{
		{ID: "dup", URL: "http://x"},
		{ID: "dup", URL: "http://y"},
	}
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Sources = []pipeline.SourceConfig{{ID: "ok", URL: ""}}
	assert.Error(t, cfg.Validate())
}

func TestActiveSources(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	all := cfg.ActiveSources(nil)
	require.Len(t, all, 1)
	assert.Equal(t, "mgto", all[0].ID)

	assert.Empty(t, cfg.ActiveSources([]string{"galaxy"}))
	assert.Len(t, cfg.ActiveSources([]string{"mgto", "galaxy"}), 1)
}
