package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("IPO_DATA_DIR", dir)
	t.Setenv("GO_PORT", "")
	t.Setenv("SETTLEMENT_CURRENCY", "")
	t.Setenv("BACKUP_ENABLED", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "HKD", cfg.SettlementCurrency)
	assert.False(t, cfg.Backup.Enabled)
	assert.Equal(t, "0 0 3 * * *", cfg.Backup.Schedule)
	assert.Equal(t, filepath.Join(dir, "ledger.db"), cfg.LedgerPath())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("IPO_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BACKUP_ENABLED", "true")
	t.Setenv("BACKUP_BUCKET", "ipo-backups")
	t.Setenv("BACKUP_RETENTION_COUNT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, "ipo-backups", cfg.Backup.Bucket)
	assert.Equal(t, 3, cfg.Backup.RetentionCount)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{Port: 8001, SettlementCurrency: "HKD", Backup: &BackupConfig{}},
		},
		{
			name:    "bad port",
			cfg:     Config{Port: 0, SettlementCurrency: "HKD"},
			wantErr: "invalid port",
		},
		{
			name:    "unsupported currency",
			cfg:     Config{Port: 8001, SettlementCurrency: "USD"},
			wantErr: "unsupported settlement currency",
		},
		{
			name:    "backup without bucket",
			cfg:     Config{Port: 8001, SettlementCurrency: "HKD", Backup: &BackupConfig{Enabled: true, RetentionCount: 1}},
			wantErr: "BACKUP_BUCKET",
		},
		{
			name:    "backup without retention",
			cfg:     Config{Port: 8001, SettlementCurrency: "HKD", Backup: &BackupConfig{Enabled: true, Bucket: "b"}},
			wantErr: "BACKUP_RETENTION_COUNT",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
