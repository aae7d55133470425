package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fs", cfg.Store.Driver)
	assert.Equal(t, DataDir(), cfg.Store.Dir)
	assert.Equal(t, 2, cfg.Validation.MaxSynthesisAttempts)
	assert.Equal(t, 4, cfg.Worker.Workers)
}

func TestLoad_YAML(t *testing.T) {
	tokenFile := writeFile(t, "crm-token", "crm_secret_token\n")
	p := writeFile(t, "dealprep.yaml", `
log:
  level: debug
  format: json
store:
  driver: sqlite
  dir: /var/lib/dealprep
scrape:
  max_pages: 3
  timeout: 5s
validation:
  skip_source_validation: true
delivery:
  crm:
    base_url: https://crm.example.org/api
    token_file: `+tokenFile+`
worker:
  workers: 2
  request_timeout: 90s
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Scrape.MaxPages)
	assert.Equal(t, 5*time.Second, cfg.Scrape.Timeout.D())
	assert.True(t, cfg.Validation.SkipSourceValidation)
	assert.Equal(t, "crm_secret_token", cfg.Delivery.CRM.Token)
	assert.True(t, cfg.Delivery.CRM.Enabled())
	assert.False(t, cfg.Delivery.Motion.Enabled())
	assert.Equal(t, 90*time.Second, cfg.Worker.RequestTimeout.D())
	// Untouched sections keep their defaults.
	assert.Equal(t, "gemini", cfg.LLM.Provider)
}

func TestLoad_TOML(t *testing.T) {
	p := writeFile(t, "dealprep.toml", `
[store]
driver = "badger"
dir = "/tmp/dealprep"

[llm]
provider = "openai"
model = "gpt-4o-mini"
timeout = "45s"

[delivery.motion]
base_url = "https://api.usemotion.com"
api_key = "mot_inline"
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Store.Driver)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout.D())
	assert.Equal(t, "mot_inline", cfg.Delivery.Motion.APIKey)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	p := writeFile(t, "dealprep.json", `{}`)
	_, err := Load(p)
	require.ErrorContains(t, err, "unsupported config file extension")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DEALPREP_STORE_DRIVER", "memory")
	t.Setenv("WORKERS", "9")
	t.Setenv("SCRAPE_TIMEOUT", "2s")
	t.Setenv("FAIL_FAST", "true")
	t.Setenv("GEMINI_API_KEY", "AIzaFromEnv")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 9, cfg.Worker.Workers)
	assert.Equal(t, 2*time.Second, cfg.Scrape.Timeout.D())
	assert.True(t, cfg.Worker.FailFast)
	assert.Equal(t, "AIzaFromEnv", cfg.LLM.APIKey)
}

func TestLoad_MalformedEnv(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"int", "WORKERS", "many"},
		{"float", "RATE_LIMIT_RPS", "fast"},
		{"duration", "REQUEST_TIMEOUT", "soon"},
		{"bool", "SKIP_SOURCE_VALIDATION", "maybe"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), `invalid `+tc.key+`="`+tc.value+`"`)
		})
	}
}

func TestLoad_ServiceDiscovery(t *testing.T) {
	p := writeFile(t, "discovery.yaml", `
artifact_store:
  - https://artifacts.example.org
motion:
  - https://motion.example.org
`)
	t.Setenv("DEALPREP_SERVICE_DISCOVERY", p)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "remote", cfg.Store.Driver)
	assert.Equal(t, "https://artifacts.example.org", cfg.Store.BaseURL)
	assert.Equal(t, "https://motion.example.org", cfg.Delivery.Motion.BaseURL)
	assert.Empty(t, cfg.Delivery.CRM.BaseURL)
}

func TestLoadServices_Empty(t *testing.T) {
	p := writeFile(t, "discovery.yaml", "other:\n  - https://x.example.org\n")
	_, err := LoadServices(p)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "s3" }, "unknown store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, "store.dsn"},
		{"remote without url", func(c *Config) { c.Store.Driver = "remote" }, "store.base_url"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }, "llm.provider"},
		{"no workers", func(c *Config) { c.Worker.Workers = 0 }, "worker.workers"},
		{"no attempts", func(c *Config) { c.Validation.MaxSynthesisAttempts = 0 }, "max_synthesis_attempts"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
	require.NoError(t, Default().Validate())
}

func TestEmailEnabled(t *testing.T) {
	assert.False(t, Email{}.Enabled())
	assert.False(t, Email{Sender: "a@example.org"}.Enabled())
	assert.True(t, Email{Sender: "a@example.org", AccessToken: "ya29.x"}.Enabled())
	assert.True(t, Email{Sender: "a@example.org", ClientID: "id", RefreshToken: "1//r"}.Enabled())
}
