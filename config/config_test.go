package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/botirk38/semanticrouter/options"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	assert.Equal(t, "127.0.0.1:5000", v.GetString("server.listen_address"))
	assert.Equal(t, "memory", v.GetString("index.type"))
	assert.Equal(t, "hashing", v.GetString("embedding.provider"))
	assert.Equal(t, "gemini", v.GetString("fallback.provider"))
	assert.Equal(t, 20*time.Second, v.GetDuration("fallback.timeout"))
	assert.Equal(t, "all", v.GetString("router.policy"))
	assert.InDelta(t, 0.5, v.GetFloat64("router.threshold"), 1e-9)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:5000", cfg.Server.ListenAddress)
	assert.Equal(t, float32(0.5), cfg.Router.Threshold)
	assert.Equal(t, options.DefaultApology, cfg.Router.Apology)
	assert.Equal(t, options.DefaultFallbackTimeout, cfg.Fallback.Timeout)
	assert.True(t, cfg.Fallback.Breaker.Enabled)
	assert.Nil(t, cfg.Seeds)
	assert.Empty(t, cfg.APIKey("gemini"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  listen_address: ":9090"
index:
  type: redis
  redis:
    address: "redis:6379"
    db: 2
router:
  threshold: 0.75
  policy: success_only
  coalesce: true
seeds:
  - question: "Opening hours"
    answer: "Nine to five"
  - question: "Refunds"
    answer: "Within 30 days"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddress)
	assert.Equal(t, "redis", cfg.Index.Type)
	assert.Equal(t, "redis:6379", cfg.Index.Redis.Address)
	assert.Equal(t, 2, cfg.Index.Redis.DB)
	assert.Equal(t, float32(0.75), cfg.Router.Threshold)
	assert.Equal(t, "success_only", cfg.Router.Policy)
	assert.True(t, cfg.Router.Coalesce)
	assert.Equal(t, []options.Seed{
		{Question: "Opening hours", Answer: "Nine to five"},
		{Question: "Refunds", Answer: "Within 30 days"},
	}, cfg.Seeds)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SEMROUTER_SERVER_LISTEN_ADDRESS", "0.0.0.0:8000")
	t.Setenv("SEMROUTER_FALLBACK_PROVIDER", "anthropic")
	t.Setenv("SEMROUTER_FALLBACK_TIMEOUT", "5s")
	t.Setenv("SEMROUTER_ROUTER_THRESHOLD", "0.8")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("SEMROUTER_KEYS_OPENAI", "oa-key")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.ListenAddress)
	assert.Equal(t, "anthropic", cfg.Fallback.Provider)
	assert.Equal(t, 5*time.Second, cfg.Fallback.Timeout)
	assert.Equal(t, float32(0.8), cfg.Router.Threshold)
	assert.Equal(t, "gem-key", cfg.APIKey("gemini"))
	assert.Equal(t, "oa-key", cfg.APIKey("OpenAI"))
	assert.Empty(t, cfg.APIKey("unknown"))
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad log format", map[string]string{"SEMROUTER_LOG_FORMAT": "xml"}},
		{"bad policy", map[string]string{"SEMROUTER_ROUTER_POLICY": "sometimes"}},
		{"zero timeout", map[string]string{"SEMROUTER_FALLBACK_TIMEOUT": "0s"}},
		{"rate limit without rate", map[string]string{
			"SEMROUTER_FALLBACK_RATE_LIMIT_ENABLED":    "true",
			"SEMROUTER_FALLBACK_RATE_LIMIT_PER_SECOND": "0",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
