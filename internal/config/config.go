package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const envPrefix = "ATTEMPT"

type Config struct {
	Mode     Mode
	HTTPAddr string

	Upstream UpstreamConfig
	Auth     AuthConfig
	Log      LogConfig
	Session  SessionConfig

	CORSOriginsOnline  []string
	CORSOriginsOffline []string
}

type UpstreamConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

type AuthConfig struct {
	// HMACSecret verifies bearer tokens; empty means tokens are only parsed
	// and the classroom API stays the authority.
	HMACSecret  string
	DefaultRole string
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type SessionConfig struct {
	LoadTimeout     time.Duration
	EvaluateTimeout time.Duration
	IdleTTL         time.Duration
	SweepInterval   time.Duration
}

// CORSOrigins picks the origin list for the running mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

// FromEnv loads an optional .env file (path from ATTEMPT_DOTENV, default
// ".env") and then reads ATTEMPT_* variables over the defaults.
func FromEnv() (Config, error) {
	path := os.Getenv(envPrefix + "_DOTENV")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return Config{}, errors.Wrapf(err, "load %s", path)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, errors.Wrapf(err, "stat %s", path)
	}
	return Load(viper.New())
}

// Load reads the configuration from v. Keys are dotted (upstream.base_url)
// and map to ATTEMPT_UPSTREAM_BASE_URL in the environment.
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	mode := Mode(strings.ToLower(v.GetString("mode")))
	switch mode {
	case ModeOffline, ModeOnline:
	default:
		return Config{}, errors.Errorf("unknown mode %q", mode)
	}

	cfg := Config{
		Mode:     mode,
		HTTPAddr: v.GetString("http_addr"),
		Upstream: UpstreamConfig{
			BaseURL:    strings.TrimSuffix(v.GetString("upstream.base_url"), "/"),
			Timeout:    v.GetDuration("upstream.timeout"),
			RatePerSec: v.GetFloat64("upstream.rate_per_sec"),
			Burst:      v.GetInt("upstream.burst"),
		},
		Auth: AuthConfig{
			HMACSecret:  v.GetString("auth.hmac_secret"),
			DefaultRole: v.GetString("auth.default_role"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		Session: SessionConfig{
			LoadTimeout:     v.GetDuration("session.load_timeout"),
			EvaluateTimeout: v.GetDuration("session.evaluate_timeout"),
			IdleTTL:         v.GetDuration("session.idle_ttl"),
			SweepInterval:   v.GetDuration("session.sweep_interval"),
		},
		CORSOriginsOnline:  csv(v.GetString("cors.origins_online")),
		CORSOriginsOffline: csv(v.GetString("cors.origins_offline")),
	}
	if cfg.Upstream.BaseURL == "" {
		return Config{}, errors.New("upstream.base_url is required")
	}
	if cfg.Mode == ModeOnline && len(cfg.Auth.HMACSecret) < 32 {
		return Config{}, errors.Errorf("auth.hmac_secret is too short (%d chars), online mode needs at least 32", len(cfg.Auth.HMACSecret))
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(ModeOffline))
	v.SetDefault("http_addr", ":8080")

	v.SetDefault("upstream.base_url", "http://localhost:2452/api")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.rate_per_sec", 20)
	v.SetDefault("upstream.burst", 10)

	v.SetDefault("auth.hmac_secret", "")
	v.SetDefault("auth.default_role", "student")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("session.load_timeout", 15*time.Second)
	v.SetDefault("session.evaluate_timeout", 2*time.Minute)
	v.SetDefault("session.idle_ttl", 4*time.Hour)
	v.SetDefault("session.sweep_interval", 5*time.Minute)

	v.SetDefault("cors.origins_online", "https://lms.mindengage.ai")
	v.SetDefault("cors.origins_offline", "http://localhost:3000,http://localhost:3010,http://localhost:3020")
}

func csv(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
