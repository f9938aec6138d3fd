package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPolicy_Defaults(t *testing.T) {
	policy, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), policy)
	assert.Equal(t, 5, policy.PaymentReminderWindowDays)
	assert.Equal(t, 3, policy.EMIReminderWindowDays)
	assert.Equal(t, 365*24*time.Hour, policy.BadgeValidity())
}

func TestLoadPolicy_OverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
payment_reminder_window_days: 7
contract_code_prefix: RNT
timezone: Asia/Kolkata
`), 0o644))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 7, policy.PaymentReminderWindowDays)
	assert.Equal(t, "RNT", policy.ContractCodePrefix)
	assert.Equal(t, 3, policy.EMIReminderWindowDays, "unset fields keep defaults")
	assert.Equal(t, "Asia/Kolkata", policy.Location().String())
}

func TestLoadPolicy_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("payment_reminder_window_days: 0\n"), 0o644))

	_, err := LoadPolicy(path)
	assert.Error(t, err)
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://rent.example")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_DevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/rental")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/rental", cfg.DatabaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, DefaultPolicy(), cfg.Policy)
}
