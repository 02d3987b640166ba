// Package config loads pgmcp configuration from an optional TOML file with
// environment-variable overrides for deployment settings.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Toolset values select which built-in tool groups register at startup. The
// switch only changes which operations are exposed, never how they behave.
const (
	ToolsetAll      = "all"      // introspection + execute + management
	ToolsetReadonly = "readonly" // introspection + execute only
	ToolsetNone     = "none"     // dynamic tools only
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Tools    ToolsConfig    `toml:"tools"`
	Audit    AuditConfig    `toml:"audit"`
}

type ServerConfig struct {
	Transport string `toml:"transport"` // "stdio" or "sse"
	Addr      string `toml:"addr"`      // SSE listen address
}

type DatabaseConfig struct {
	URL      string `toml:"url"` // takes precedence over the discrete fields
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`
	PoolSize int    `toml:"pool_size"`
}

type ToolsConfig struct {
	DataDir  string `toml:"data_dir"`
	Toolsets string `toml:"toolsets"`
}

type AuditConfig struct {
	Path string `toml:"path"` // empty disables the audit trail
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "stdio",
			Addr:      ":8080",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			DBName:   "postgres",
			SSLMode:  "prefer",
			PoolSize: 4,
		},
		Tools: ToolsConfig{
			DataDir:  "data/tools",
			Toolsets: ToolsetAll,
		},
	}
}

// Load reads path (a missing file falls back to defaults), applies
// environment overrides, and validates.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PGMCP_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("PGMCP_DATA_DIR"); v != "" {
		c.Tools.DataDir = v
	}
	if v := os.Getenv("PGMCP_TOOLSETS"); v != "" {
		c.Tools.Toolsets = v
	}
	if v := os.Getenv("PGMCP_AUDIT_PATH"); v != "" {
		c.Audit.Path = v
	}
	if v := os.Getenv("PGMCP_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Database.PoolSize = n
		}
	}
}

func (c *Config) validate() error {
	switch c.Tools.Toolsets {
	case ToolsetAll, ToolsetReadonly, ToolsetNone:
	default:
		return fmt.Errorf("invalid toolsets %q: must be %s, %s, or %s",
			c.Tools.Toolsets, ToolsetAll, ToolsetReadonly, ToolsetNone)
	}
	switch c.Server.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("invalid transport %q: must be stdio or sse", c.Server.Transport)
	}
	return nil
}

// ConnString returns the pgx connection string: the configured URL verbatim
// when set, otherwise one assembled from the discrete fields.
func (d *DatabaseConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.DBName,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	q := u.Query()
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
