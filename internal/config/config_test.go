package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/channel-map/internal/placement"
)

func TestConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MAP_REGION_PATH", "")
	t.Setenv("TG_RPS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "telegram_channels.db", cfg.DatabaseURL)
	assert.Equal(t, "data/region.json", cfg.RegionPath)
	assert.Equal(t, "data/map.html", cfg.OutputPath)
	assert.Equal(t, 2.0, cfg.TGRps)
	assert.Equal(t, 3100, cfg.HTTPPort)
}

func TestConfig_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TG_API_ID", "12345")
	t.Setenv("TG_USER_ID", "9000000001")
	t.Setenv("MAP_SEED", "77")
	t.Setenv("HTTP_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.TGApiID)
	assert.Equal(t, int64(9000000001), cfg.TGUserID)
	assert.Equal(t, uint64(77), cfg.MapSeed)
	assert.Equal(t, 3100, cfg.HTTPPort, "invalid int falls back to default")
}

func TestConfig_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TG_API_HASH=from_dotenv\n"), 0644))
	t.Chdir(dir)
	t.Setenv("TG_API_HASH", "")
	os.Unsetenv("TG_API_HASH")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.TGApiHash)
}

func TestConfig_ValidateTelegram(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateTelegram())

	cfg.TGApiID = 1
	cfg.TGApiHash = "hash"
	assert.NoError(t, cfg.ValidateTelegram())
}

func TestLoadPlacementOptions_Defaults(t *testing.T) {
	pf, err := LoadPlacementOptions("")
	require.NoError(t, err)
	assert.Equal(t, placement.DefaultOptions(), pf.Placement)
	assert.Equal(t, placement.DefaultSizeOptions(), pf.Size)
}

func TestLoadPlacementOptions_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "placement.yaml")
	content := "placement:\n  distance_multiplier: 0.01\n  max_attempts: 200\nsize:\n  max_size: 12\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	pf, err := LoadPlacementOptions(path)
	require.NoError(t, err)

	assert.Equal(t, 0.01, pf.Placement.DistanceMultiplier)
	assert.Equal(t, 200, pf.Placement.MaxAttempts)
	assert.Equal(t, placement.DefaultMaxRecursionDepth, pf.Placement.MaxRecursionDepth)
	assert.Equal(t, 12.0, pf.Size.MaxSize)
	assert.Equal(t, placement.DefaultMinSize, pf.Size.MinSize)
}

func TestLoadPlacementOptions_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "placement.yaml")
	require.NoError(t, os.WriteFile(path, []byte("size:\n  min_size: 10\n  max_size: 2\n"), 0644))

	_, err := LoadPlacementOptions(path)
	assert.Error(t, err)

	_, err = LoadPlacementOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
