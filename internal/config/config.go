// Package config loads the five mandatory environment variables plus
// the optional log path, failing fast on the first missing variable.
package config

import (
	"os"

	"github.com/kestrel-raid/gbf-raidfinder/internal/errs"
)

// Config holds every environment-sourced setting the process needs.
type Config struct {
	TwitterAPIKey            string
	TwitterAPISecretKey      string
	TwitterAccessToken       string
	TwitterAccessTokenSecret string
	RedisURL                 string
	LogPath                  string
}

// Load reads and validates all required environment variables, failing
// fast on the first missing one.
func Load() (*Config, error) {
	cfg := &Config{}

	required := []struct {
		name string
		dst  *string
	}{
		{"TWITTER_API_KEY", &cfg.TwitterAPIKey},
		{"TWITTER_API_SECRET_KEY", &cfg.TwitterAPISecretKey},
		{"TWITTER_ACCESS_TOKEN", &cfg.TwitterAccessToken},
		{"TWITTER_ACCESS_TOKEN_SECRET", &cfg.TwitterAccessTokenSecret},
		{"REDIS_URL", &cfg.RedisURL},
	}
	for _, r := range required {
		v, ok := os.LookupEnv(r.name)
		if !ok || v == "" {
			return nil, errs.New(errs.KindMissingEnvVar, r.name, nil)
		}
		*r.dst = v
	}

	cfg.LogPath = os.Getenv("GBF_RAID_FINDER_LOG_PATH")
	if cfg.LogPath == "" {
		cfg.LogPath = "/var/log"
	}
	return cfg, nil
}
