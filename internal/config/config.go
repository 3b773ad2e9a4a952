// Package config loads server configuration from the environment, with
// an optional YAML overlay file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development" yaml:"environment"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" yaml:"log_level"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8090" yaml:"listen_addr"`
	BasePath    string `envconfig:"BASE_PATH" default:"/api/v1" yaml:"base_path"`

	Build   string `envconfig:"BUILD" default:"dev" yaml:"build"`
	Version string `envconfig:"VERSION" default:"1.0.0" yaml:"version"`

	// Auth
	AuthDisabled    bool          `envconfig:"AUTH_DISABLED" default:"false" yaml:"auth_disabled"`
	APIKey          string        `envconfig:"API_KEY" default:"dev-api-key" yaml:"api_key"`
	JWTSecret       string        `envconfig:"JWT_SECRET" default:"dev-jwt-secret" yaml:"jwt_secret"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"1h" yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"24h" yaml:"refresh_token_ttl"`

	// Seeded admin account
	AdminName     string `envconfig:"ADMIN_NAME" default:"Admin" yaml:"admin_name"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@devplane.local" yaml:"admin_email"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin" yaml:"admin_password"`

	// Workspace and persistence
	WorkspaceDir    string `envconfig:"WORKSPACE_DIR" default:"./workspace" yaml:"workspace_dir"`
	DatabaseBackend string `envconfig:"DATABASE_BACKEND" default:"json" yaml:"database_backend"`

	// Tooling
	ToolDirs string `envconfig:"TOOL_DIRS" yaml:"tool_dirs"`

	// Upstream chat backend ("" = built-in local engine)
	ChatBaseURL string `envconfig:"CHAT_BASE_URL" yaml:"chat_base_url"`
	ChatAPIKey  string `envconfig:"CHAT_API_KEY" yaml:"chat_api_key"`

	CORSOrigins string `envconfig:"CORS_ORIGINS" yaml:"cors_origins"`
}

const minTokenTTL = 60 * time.Second

// Load reads configuration from environment variables, applies the YAML
// overlay named by DEVPLANE_CONFIG_FILE when set, and normalizes the
// result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("DEVPLANE", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if path := os.Getenv("DEVPLANE_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.BasePath = "/" + strings.Trim(c.BasePath, "/")
	if c.BasePath == "/" {
		c.BasePath = ""
	}
	if c.AccessTokenTTL < minTokenTTL {
		c.AccessTokenTTL = minTokenTTL
	}
	if c.RefreshTokenTTL < minTokenTTL {
		c.RefreshTokenTTL = minTokenTTL
	}
}

// ToolDirList returns the parsed comma-separated tool directories.
func (c *Config) ToolDirList() []string {
	if c.ToolDirs == "" {
		return nil
	}
	parts := strings.Split(c.ToolDirs, ",")
	dirs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			dirs = append(dirs, p)
		}
	}
	return dirs
}

// CORSOriginList returns the parsed allowed CORS origins, defaulting to
// all origins.
func (c *Config) CORSOriginList() string {
	if strings.TrimSpace(c.CORSOrigins) == "" {
		return "*"
	}
	return c.CORSOrigins
}
