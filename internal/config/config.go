// package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/blockedby/channel-map/internal/placement"
)

// Config holds all application configuration.
type Config struct {
	// database
	DatabaseURL string

	// nats
	NatsURL string

	// telegram
	TGApiID         int
	TGApiHash       string
	TGSessionString string
	TGPhone         string
	TGUserID        int64   // own account, skipped while crawling
	TGRps           float64 // requests per second

	// map
	RegionPath       string
	OutputPath       string
	TemplatePath     string // empty = embedded template
	MapJSPath        string // empty = embedded script
	PlacementOptions string // optional yaml file
	MapSeed          uint64 // 0 = time based
	SnapshotPath     string

	// server
	HTTPPort int

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", "telegram_channels.db"),
		NatsURL:          getEnv("NATS_URL", ""),
		TGApiID:          getEnvInt("TG_API_ID", 0),
		TGApiHash:        getEnv("TG_API_HASH", ""),
		TGSessionString:  getEnv("TG_SESSION_STRING", ""),
		TGPhone:          getEnv("TG_PHONE", ""),
		TGUserID:         getEnvInt64("TG_USER_ID", 0),
		TGRps:            getEnvFloat("TG_RPS", 2.0),
		RegionPath:       getEnv("MAP_REGION_PATH", "data/region.json"),
		OutputPath:       getEnv("MAP_OUTPUT_PATH", "data/map.html"),
		TemplatePath:     getEnv("MAP_TEMPLATE_PATH", ""),
		MapJSPath:        getEnv("MAP_JS_PATH", ""),
		PlacementOptions: getEnv("MAP_OPTIONS_PATH", ""),
		MapSeed:          uint64(getEnvInt64("MAP_SEED", 0)),
		SnapshotPath:     getEnv("MAP_SNAPSHOT_PATH", ""),
		HTTPPort:         getEnvInt("HTTP_PORT", 3100),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          getEnv("LOG_FILE", "./logs/app.log"),
	}

	return cfg, nil
}

// ValidateTelegram checks the credentials every telegram command needs.
func (c *Config) ValidateTelegram() error {
	if c.TGApiID == 0 || c.TGApiHash == "" {
		return errors.New("TG_API_ID and TG_API_HASH are required")
	}
	return nil
}

// PlacementFile mirrors the optional yaml file with marker constants.
type PlacementFile struct {
	Placement placement.Options     `yaml:"placement"`
	Size      placement.SizeOptions `yaml:"size"`
}

// LoadPlacementOptions reads placement constants from a yaml file.
// Missing keys keep their defaults; an empty path returns the defaults.
func LoadPlacementOptions(path string) (*PlacementFile, error) {
	pf := &PlacementFile{
		Placement: placement.DefaultOptions(),
		Size:      placement.DefaultSizeOptions(),
	}
	if path == "" {
		return pf, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read placement options: %w", err)
	}
	if err := yaml.Unmarshal(data, pf); err != nil {
		return nil, fmt.Errorf("parse placement options: %w", err)
	}

	if pf.Size.MinSize <= 0 || pf.Size.MaxSize < pf.Size.MinSize {
		return nil, fmt.Errorf("placement options: size range [%v, %v] is invalid", pf.Size.MinSize, pf.Size.MaxSize)
	}

	return pf, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
