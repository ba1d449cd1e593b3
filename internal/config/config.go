package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds everything kitesync reads from the environment. Strava
// credentials come from the developer portal; the refresh token must
// carry the activity:write scope.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	GPXDir       string
	DataDir      string
	DBPath       string
	ListenAddr   string
	SyncSchedule string
}

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		ClientID:     os.Getenv("STRAVA_CLIENT_ID"),
		ClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
		RefreshToken: os.Getenv("STRAVA_REFRESH_TOKEN"),
		GPXDir:       getenv("GPX_DIR", "./gpx_files"),
		DataDir:      getenv("DATA_DIR", "./data"),
		DBPath:       os.Getenv("DB_PATH"),
		ListenAddr:   getenv("LISTEN_ADDR", ":8888"),
		SyncSchedule: getenv("SYNC_SCHEDULE", "@hourly"),
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "kitesync.db")
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("missing Strava credentials: set STRAVA_CLIENT_ID, STRAVA_CLIENT_SECRET and STRAVA_REFRESH_TOKEN")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
