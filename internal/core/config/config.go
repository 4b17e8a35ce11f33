package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
	redisclient "github.com/vietddude/shell/internal/infra/redis"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Dev          bool               `yaml:"dev"`
	SuspenseWait time.Duration      `yaml:"suspense_wait"`
	Warmup       bool               `yaml:"warmup"`
	Session      SessionConfig      `yaml:"session"`
	Redis        redisclient.Config `yaml:"redis"`
	Remotes      []RemoteConfig     `yaml:"remotes"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SessionConfig controls mount lifetime and where mount state is mirrored.
type SessionConfig struct {
	Backend string        `yaml:"backend"` // memory, redis
	TTL     time.Duration `yaml:"ttl"`     // idle time before a session's mounts are dropped
	Cookie  string        `yaml:"cookie"`
}

// RemoteConfig describes one independently deployed remote.
type RemoteConfig struct {
	Name        string      `yaml:"name"`
	DisplayName string      `yaml:"display_name"`
	Route       string      `yaml:"route"`
	URL         string      `yaml:"url"`
	OriginHint  string      `yaml:"origin_hint"` // diagnostic-only label, defaults to the URL host
	Retry       RetryConfig `yaml:"retry"`
}

// RetryConfig holds the retry options of a remote. Zero values take defaults.
type RetryConfig struct {
	Retries       *int          `yaml:"retries"` // nil = default, 0 = single attempt
	BaseDelay     time.Duration `yaml:"base_delay"`
	Factor        float64       `yaml:"factor"`
	TimeoutPerTry time.Duration `yaml:"timeout_per_try"` // 0 = disabled
}

// Defaults of RetryConfig.
const (
	DefaultRetries   = 5
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultFactor    = 1.6
)

// Policy converts the options to a retry policy, applying defaults.
func (r RetryConfig) Policy() domain.RetryPolicy {
	p := domain.RetryPolicy{
		MaxRetries:     DefaultRetries,
		BaseDelay:      r.BaseDelay,
		BackoffFactor:  r.Factor,
		AttemptTimeout: r.TimeoutPerTry,
	}
	if r.Retries != nil {
		p.MaxRetries = *r.Retries
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.BackoffFactor == 0 {
		p.BackoffFactor = DefaultFactor
	}
	return p
}

// Validate checks the configuration for values the shell cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("session backend redis requires redis.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.Session.Backend))
	}

	if len(c.Remotes) == 0 {
		errs = append(errs, errors.New("no remotes configured"))
	}

	names := make(map[string]bool, len(c.Remotes))
	routes := make(map[string]string, len(c.Remotes))
	for i, r := range c.Remotes {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("remotes[%d]: name is required", i))
			continue
		}
		if names[r.Name] {
			errs = append(errs, fmt.Errorf("remote %s: duplicate name", r.Name))
		}
		names[r.Name] = true

		if !strings.HasPrefix(r.Route, "/") || r.Route == "/" {
			errs = append(errs, fmt.Errorf("remote %s: route must be a path below /", r.Name))
		} else if other, ok := routes[r.Route]; ok {
			errs = append(errs, fmt.Errorf("remote %s: route %s already owned by %s", r.Name, r.Route, other))
		} else {
			routes[r.Route] = r.Name
		}

		if u, err := url.Parse(r.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("remote %s: invalid url %q", r.Name, r.URL))
		}

		p := r.Retry.Policy()
		if p.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("remote %s: retries must be >= 0", r.Name))
		}
		if p.BaseDelay < 0 || p.BackoffFactor < 0 || p.AttemptTimeout < 0 {
			errs = append(errs, fmt.Errorf("remote %s: retry durations and factor must be positive", r.Name))
		}
	}

	return errors.Join(errs...)
}
