package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.SuspenseWait == 0 {
		cfg.SuspenseWait = 2 * time.Second
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = BackendMemory
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 30 * time.Minute
	}
	if cfg.Session.Cookie == "" {
		cfg.Session.Cookie = "shell_session"
	}

	for i := range cfg.Remotes {
		r := &cfg.Remotes[i]
		if r.DisplayName == "" && r.Name != "" {
			r.DisplayName = strings.ToUpper(r.Name[:1]) + r.Name[1:]
		}
		if r.Route == "" && r.Name != "" {
			r.Route = "/" + r.Name
		}
		if r.OriginHint == "" {
			if u, err := url.Parse(r.URL); err == nil {
				r.OriginHint = u.Host
			}
		}
	}
}
