package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solweekly/weekly-roundup/internal/config"
)

func noEnvFiles(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VERCEL", "")
	t.Setenv("VERCEL_ENV", "")
	t.Setenv("TRUST_PROXY", "")

	cfg, err := config.Load(noEnvFiles(t))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BatchDelay)
	assert.Equal(t, "data/subscribers.json", cfg.SubscribersFile)
	assert.Equal(t, "Solana Weekly <newsletter@solweekly.xyz>", cfg.FromEmail)
	assert.Equal(t, "https://www.solweekly.xyz", cfg.SiteURL)
	assert.Equal(t, config.EmailProviderResend, cfg.EmailProvider)
	assert.False(t, cfg.ReadOnlyFS)
	assert.False(t, cfg.TrustProxy)
}

func TestLoad_ReadOnlyOnServerless(t *testing.T) {
	t.Setenv("VERCEL", "1")

	cfg, err := config.Load(noEnvFiles(t))
	require.NoError(t, err)
	assert.True(t, cfg.ReadOnlyFS)
}

func TestLoad_EnvFileDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ADMIN_KEY=from-file\nCONTENT_DIR=/srv/roundups\n"), 0o644))

	t.Setenv("ADMIN_KEY", "from-process")
	t.Setenv("CONTENT_DIR", "")
	os.Unsetenv("CONTENT_DIR")

	cfg, err := config.Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-process", cfg.AdminKey)
	assert.Equal(t, "/srv/roundups", cfg.ContentDir)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown provider", map[string]string{"EMAIL_PROVIDER": "carrier-pigeon"}},
		{"smtp without host", map[string]string{"EMAIL_PROVIDER": "smtp", "SMTP_HOST": ""}},
		{"zero batch size", map[string]string{"NEWSLETTER_BATCH_SIZE": "0"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(noEnvFiles(t))
			assert.Error(t, err)
		})
	}
}

func TestConfig_MissingVars(t *testing.T) {
	cfg := &config.Config{EmailProvider: config.EmailProviderResend, ResendAPIKey: "re_123"}

	assert.False(t, cfg.RemoteStoreConfigured())
	assert.Equal(t, []string{"RESEND_AUDIENCE_ID"}, cfg.MissingRemoteStoreVars())
	assert.True(t, cfg.SenderConfigured())
	assert.Nil(t, cfg.MissingSenderVars())

	cfg = &config.Config{EmailProvider: config.EmailProviderSMTP}
	assert.Equal(t, []string{"SMTP_HOST"}, cfg.MissingSenderVars())
	assert.Equal(t, []string{"RESEND_API_KEY", "RESEND_AUDIENCE_ID"}, cfg.MissingRemoteStoreVars())
}
