package config

import (
	"os"
	"path/filepath"
	"testing"

	"matchwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ./test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, float64(10), cfg.Server.PublicRPS)
	assert.Equal(t, "x-api-key", cfg.Admin.HeaderAPIKey)
	assert.Equal(t, models.DefaultSessionTTL, cfg.Intake.SessionTTL)
	assert.Equal(t, 90, cfg.Intake.MaxBookingDays)
	assert.Equal(t, models.DefaultProposalTTL, cfg.Matching.ProposalTTL)
	assert.Equal(t, 3600, cfg.Matching.SweepInterval)
	assert.Equal(t, models.VerificationCodeTTL, cfg.Verify.CodeTTL)
	assert.Equal(t, models.VerificationMaxAttempts, cfg.Verify.MaxAttempts)
	assert.Equal(t, "exports", cfg.Exports.Path)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/tmp/env.db")
	t.Setenv("TEST_REDIS_ADDR", "localhost:6390")

	path := writeConfig(t, `
database:
  path: ${TEST_DB_PATH}
redis:
  address: ${TEST_REDIS_ADDR}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, "localhost:6390", cfg.Redis.Address)
}

func TestLoadRequiresDatabasePath(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsAdminWithoutKeys(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ./test.db
admin:
  enabled: true
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateTherapists(t *testing.T) {
	ok := []models.Therapist{
		{ID: 1, Name: "Dr. A", DailyCapacity: 2},
		{ID: 2, Name: "Dr. B", DailyCapacity: 1},
	}
	assert.NoError(t, ValidateTherapists(ok))

	zeroID := []models.Therapist{{ID: 0, Name: "Dr. Zero", DailyCapacity: 2}}
	assert.Error(t, ValidateTherapists(zeroID))

	duplicate := []models.Therapist{
		{ID: 1, Name: "Dr. A", DailyCapacity: 2},
		{ID: 1, Name: "Dr. B", DailyCapacity: 2},
	}
	assert.Error(t, ValidateTherapists(duplicate))

	noCapacity := []models.Therapist{{ID: 1, Name: "Dr. A", DailyCapacity: 0}}
	assert.Error(t, ValidateTherapists(noCapacity))
}
