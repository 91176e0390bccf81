// Package config loads the JSON configuration file of spec.md §6 via
// viper, the way the teacher's Config loads environment variables via
// caarlos0/env — same "typed struct + validate" shape, different source
// format because the spec fixes this as a JSON file read from a
// --config path rather than process environment.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SSLStrategy enumerates the recognized postgresql.ssl_strategy values.
type SSLStrategy string

const (
	SSLDisable    SSLStrategy = "disable"
	SSLAllow      SSLStrategy = "allow"
	SSLPrefer     SSLStrategy = "prefer"
	SSLRequire    SSLStrategy = "require"
	SSLVerifyCA   SSLStrategy = "verify-ca"
	SSLVerifyFull SSLStrategy = "verify-full"
)

func (s SSLStrategy) valid() bool {
	switch s {
	case SSLDisable, SSLAllow, SSLPrefer, SSLRequire, SSLVerifyCA, SSLVerifyFull:
		return true
	default:
		return false
	}
}

// ScyllaDB holds the column-store connection options.
type ScyllaDB struct {
	Hostnames []string `mapstructure:"hostnames"`
	Keyspace  string   `mapstructure:"keyspace"`
}

// PostgreSQL holds the relational-store connection options.
type PostgreSQL struct {
	Host        string      `mapstructure:"host"`
	Port        string      `mapstructure:"port"`
	Username    string      `mapstructure:"username"`
	Password    string      `mapstructure:"password"`
	Database    string      `mapstructure:"database"`
	SSLStrategy SSLStrategy `mapstructure:"ssl_strategy"`
}

// NATS holds the bus connection options.
type NATS struct {
	Host string `mapstructure:"host"`
}

// Config is the JSON configuration schema of spec.md §6.
type Config struct {
	ListeningAddr string     `mapstructure:"listening_addr"`
	ScyllaDB      ScyllaDB   `mapstructure:"scylladb"`
	PostgreSQL    PostgreSQL `mapstructure:"postgresql"`
	NATS          NATS       `mapstructure:"nats"`
}

// Load reads the JSON config file at path via viper and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks the recognized-options invariants of spec.md §6.
func (c *Config) Validate() error {
	if c.ListeningAddr == "" {
		return fmt.Errorf("listening_addr is required")
	}
	if len(c.ScyllaDB.Hostnames) == 0 {
		return fmt.Errorf("scylladb.hostnames must be non-empty")
	}
	if c.ScyllaDB.Keyspace == "" {
		return fmt.Errorf("scylladb.keyspace is required")
	}
	if c.PostgreSQL.Host == "" {
		return fmt.Errorf("postgresql.host is required")
	}
	if c.PostgreSQL.Port == "" {
		return fmt.Errorf("postgresql.port is required")
	}
	if c.PostgreSQL.Database == "" {
		return fmt.Errorf("postgresql.database is required")
	}
	if !c.PostgreSQL.SSLStrategy.valid() {
		return fmt.Errorf("postgresql.ssl_strategy %q is not one of disable|allow|prefer|require|verify-ca|verify-full", c.PostgreSQL.SSLStrategy)
	}
	if c.NATS.Host == "" {
		return fmt.Errorf("nats.host is required")
	}
	return nil
}

// PostgresPort parses the string-coerced port into a uint16, per
// spec.md §6's "port (string-coerced to u16)" note.
func (c *Config) PostgresPort() (uint16, error) {
	var port uint16
	if _, err := fmt.Sscanf(c.PostgreSQL.Port, "%d", &port); err != nil {
		return 0, fmt.Errorf("config: postgresql.port %q is not a valid port number: %w", c.PostgreSQL.Port, err)
	}
	return port, nil
}
