package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the approval service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	DatabaseURL          string
	RedisURL             string
	NATSURL              string
	JWTSecret            string
	RosterCacheTTL       time.Duration
	WorkflowStalledAfter time.Duration
	ScoreMin             int
	ScoreMax             int
	EventsChannel        string
	VoteRateLimitPerMin  int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// UsesSQLite reports whether the database URL points at a local sqlite file.
func (c Config) UsesSQLite() bool {
	return strings.HasPrefix(c.DatabaseURL, "file:")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("APPROVAL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Internship Approval API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("roster.cache_ttl", "2m")
	v.SetDefault("workflow.stalled_after", "168h")
	v.SetDefault("scoring.min", 0)
	v.SetDefault("scoring.max", 5)
	v.SetDefault("events.channel", "internship:approval")
	v.SetDefault("ratelimit.votes_per_minute", 30)

	rosterTTL, err := time.ParseDuration(v.GetString("roster.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid roster cache ttl: %w", err)
	}

	stalledAfter, err := time.ParseDuration(v.GetString("workflow.stalled_after"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid workflow stalled_after: %w", err)
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		JWTSecret:            v.GetString("jwt.secret"),
		RosterCacheTTL:       rosterTTL,
		WorkflowStalledAfter: stalledAfter,
		ScoreMin:             v.GetInt("scoring.min"),
		ScoreMax:             v.GetInt("scoring.max"),
		EventsChannel:        v.GetString("events.channel"),
		VoteRateLimitPerMin:  v.GetInt("ratelimit.votes_per_minute"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ScoreMin > cfg.ScoreMax {
		return Config{}, fmt.Errorf("scoring.min (%d) must not exceed scoring.max (%d)", cfg.ScoreMin, cfg.ScoreMax)
	}

	if cfg.VoteRateLimitPerMin <= 0 {
		cfg.VoteRateLimitPerMin = 30
	}

	return cfg, nil
}
