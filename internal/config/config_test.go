package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, ":8002", cfg.ListenAddr)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 3, cfg.AlertThreshold)
	assert.Equal(t, "http://localhost:8000", cfg.ImageAnalysisURL)
	assert.Equal(t, "from@example.com", cfg.SMTP.From)
	assert.False(t, cfg.SMTP.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("UMS_LISTEN_ADDR", ":9000")
	t.Setenv("UMS_ACCESS_TOKEN_TTL", "10m")
	t.Setenv("UMS_SMTP_HOST", "smtp.example.com")
	t.Setenv("UMS_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("UMS_EDUCATION_URL", "http://edu:8001/")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 10*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.True(t, cfg.SMTP.Enabled())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "http://edu:8001", cfg.EducationURL)
}

func TestLoadYAMLFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "usermgmt.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("storage_driver: memory\npage_size: 25\nsmtp:\n  port: 2525\n"), 0o644))

	// godotenv does not override variables that are already set, so use a
	// key no other test sets and clear it afterwards.
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("UMS_ALERT_THRESHOLD=5\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("UMS_ALERT_THRESHOLD") })

	cfg, err := Load(env, yml)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, 5, cfg.AlertThreshold)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"), "")
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.StorageDriver = "postgres"
	cfg.AlertThreshold = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage_driver")
	assert.Contains(t, err.Error(), "alert_threshold")

	cfg = Default()
	cfg.AccessTokenTTL = 48 * time.Hour
	assert.Error(t, cfg.Validate())
}
