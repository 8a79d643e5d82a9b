// Package config defines the typed server configuration, loaded from the
// environment and an optional .env file.
package config

import (
	"fmt"
	"strings"

	"github.com/foliobase/foliobase/internal/database"
	"github.com/foliobase/foliobase/internal/storage"
	"github.com/foliobase/foliobase/pkg/config"
)

// EnvPrefix namespaces the server's environment variables.
const EnvPrefix = "FOLIOBASE_"

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig    `mapstructure:"server"`
	DB      database.Config `mapstructure:"db"`
	Storage storage.Config  `mapstructure:"storage"`
	Auth    AuthConfig      `mapstructure:"auth"`
	Log     LogConfig       `mapstructure:"log"`
	Backend BackendConfig   `mapstructure:"backend"`
	Query   QueryConfig     `mapstructure:"query"`
}

// QueryConfig scopes the generic data endpoint.
type QueryConfig struct {
	// Tables is the comma-separated allow-list of tables the endpoint may
	// touch. The users table stays off it; accounts go through the auth
	// service.
	Tables string `mapstructure:"tables"`
}

// TableList splits the configured allow-list.
func (q QueryConfig) TableList() []string {
	var out []string
	for _, t := range strings.Split(q.Tables, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port       string `mapstructure:"port"`
	CORSOrigin string `mapstructure:"corsorigin"`
	// Env is "production" or "development"; development includes error
	// detail in responses and text logs.
	Env string `mapstructure:"env"`
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtsecret"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BackendConfig selects the client-facing backend adapter.
type BackendConfig struct {
	// Mode is "local" (in-process) or "http" (remote instance).
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"baseurl"`
}

// Load reads configuration and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(EnvPrefix, cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8090"
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "http://localhost:5173"
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "./migrations"
	}
	if cfg.Backend.Mode == "" {
		cfg.Backend.Mode = "local"
	}
	if cfg.Query.Tables == "" {
		cfg.Query.Tables = "projects,pages,albums,photos,settings"
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("FOLIOBASE_AUTH_JWTSECRET is required")
	}
	return cfg, nil
}
