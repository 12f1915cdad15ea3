package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/plantdesk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func fullEnv() map[string]string {
	return map[string]string{
		EnvWorkflowKey:       "wf",
		EnvDatasetKey:        "ds",
		EnvChatKey:           "chat",
		"DATASET_ID_BANWOL":  "ds-banwol",
		"DATASET_ID_GUMI":    "ds-gumi",
		"DATASET_ID_DONGHAE": "ds-donghae",
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", WithEnvFiles(), WithLookup(mapLookup(fullEnv())))
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultUser, cfg.API.User)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(200<<20), cfg.Ingest.MaxSize())
	assert.Equal(t, int64(50<<20), cfg.Ingest.PreCheckSize())
	assert.Equal(t, 3, cfg.Ingest.Retry.Attempts)
	assert.Equal(t, 5*time.Second, cfg.Ingest.Retry.Delay)
	assert.Equal(t, 1, cfg.Ingest.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.Server.DocumentsTTL)
	assert.Len(t, cfg.SiteConfigs, 4)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "plantdesk.yaml", `
api:
  base_url: https://example.test/v1/
  workflow_id: wf-42
sites:
  - name: Plant A
    dataset_env: PLANT_A_DATASET
server:
  addr: ":9090"
ingest:
  max_size_mb: 10
  pool_size: 4
  retry:
    attempts: 5
    delay: 250ms
log:
  level: debug
`)

	env := fullEnv()
	env["PLANT_A_DATASET"] = "ds-a"
	cfg, err := Load(path, WithEnvFiles(), WithLookup(mapLookup(env)))
	require.NoError(t, err)

	assert.Equal(t, "https://example.test/v1", cfg.API.BaseURL)
	assert.Equal(t, "wf-42", cfg.API.WorkflowID)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, int64(10<<20), cfg.Ingest.MaxSize())
	assert.Equal(t, 4, cfg.Ingest.PoolSize)
	assert.Equal(t, 5, cfg.Ingest.Retry.Attempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Ingest.Retry.Delay)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []core.Site{{Name: "Plant A", DatasetID: "ds-a"}}, cfg.Sites())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), WithEnvFiles())
	assert.Error(t, err)

	path := writeFile(t, "bad.yaml", "api: [unclosed")
	_, err = Load(path, WithEnvFiles())
	assert.ErrorContains(t, err, "parsing config")
}

func TestLoad_EnvFile(t *testing.T) {
	const key = "PLANTDESK_TEST_DATASET_FROM_DOTENV"
	t.Cleanup(func() { os.Unsetenv(key) })

	envFile := writeFile(t, ".env", key+"=ds-from-file\n")
	configFile := writeFile(t, "plantdesk.yaml", "sites:\n  - name: Dotenv Plant\n    dataset_env: "+key+"\n")

	cfg, err := Load(configFile, WithEnvFiles(envFile, filepath.Join(t.TempDir(), "absent.env")))
	require.NoError(t, err)

	site, err := cfg.Site("Dotenv Plant")
	require.NoError(t, err)
	assert.Equal(t, "ds-from-file", site.DatasetID)
}

func TestValidate_MissingSecrets(t *testing.T) {
	env := fullEnv()
	delete(env, EnvChatKey)
	env[EnvDatasetKey] = "   "

	cfg, err := Load("", WithEnvFiles(), WithLookup(mapLookup(env)))
	require.NoError(t, err)

	err = cfg.Validate()
	require.ErrorIs(t, err, core.ErrMissingSecret)
	assert.ErrorContains(t, err, EnvChatKey)
	assert.ErrorContains(t, err, EnvDatasetKey)
	assert.NotContains(t, err.Error(), EnvWorkflowKey)
}

func TestValidate_Sites(t *testing.T) {
	cfg := Default()
	cfg.Secrets = Secrets{WorkflowKey: "a", DatasetKey: "b", ChatKey: "c"}
	cfg.SiteConfigs = []SiteConfig{
		{Name: "A", DatasetEnv: "A_ENV"},
		{Name: "A", DatasetEnv: "A_ENV"},
		{Name: "", DatasetEnv: "X"},
		{Name: "B"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "duplicate site A")
	assert.ErrorContains(t, err, "name is required")
	assert.ErrorContains(t, err, "dataset_env is required")
}

func TestSite(t *testing.T) {
	cfg, err := Load("", WithEnvFiles(), WithLookup(mapLookup(fullEnv())))
	require.NoError(t, err)

	site, err := cfg.Site("GS동해전력")
	require.NoError(t, err)
	assert.Equal(t, "ds-donghae", site.DatasetID)

	_, err = cfg.Site("GS포천그린에너지")
	assert.ErrorIs(t, err, core.ErrSiteNotConfigured)

	_, err = cfg.Site("Nowhere")
	assert.ErrorIs(t, err, core.ErrUnknownSite)

	assert.Equal(t, []string{"GS포천그린에너지"}, cfg.Unconfigured())
}
