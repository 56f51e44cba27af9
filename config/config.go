// Package config loads engine configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stratumdb/stratum/dialect"
	"github.com/stratumdb/stratum/dialect/sql"
)

// Environment variables override their file counterparts when set.
const (
	EnvDialect       = "STRATUM_DIALECT"
	EnvDSN           = "STRATUM_DSN"
	EnvMigrationsDir = "STRATUM_MIGRATIONS_DIR"
	EnvSnapshotPath  = "STRATUM_SNAPSHOT"
	EnvJournalPath   = "STRATUM_JOURNAL"
	EnvSlowQuery     = "STRATUM_SLOW_QUERY"
)

// Config carries the engine settings: which database to talk to, where
// migration artifacts live on disk, and the slow-query threshold.
type Config struct {
	Dialect       string   `yaml:"dialect"`
	DSN           string   `yaml:"dsn"`
	MigrationsDir string   `yaml:"migrations_dir"`
	SnapshotPath  string   `yaml:"snapshot"`
	JournalPath   string   `yaml:"journal"`
	SlowQuery     Duration `yaml:"slow_query"`
}

// Duration is a time.Duration that unmarshals from YAML strings such as
// "250ms" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Default returns the configuration used when no file is present: an
// embedded SQLite database with migration artifacts under migrations/.
func Default() *Config {
	return &Config{
		Dialect:       dialect.SQLite,
		DSN:           "file:stratum.db?cache=shared&_pragma=foreign_keys(1)",
		MigrationsDir: "migrations",
		SnapshotPath:  "migrations/snapshot.json",
		JournalPath:   "migrations/journal.json",
		SlowQuery:     Duration(200 * time.Millisecond),
	}
}

// Load reads the YAML file at path, applies environment overrides, and
// validates the result. A missing file is not an error; defaults plus the
// environment apply.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := c.fromEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) fromEnv() error {
	for _, o := range []struct {
		env string
		dst *string
	}{
		{EnvDialect, &c.Dialect},
		{EnvDSN, &c.DSN},
		{EnvMigrationsDir, &c.MigrationsDir},
		{EnvSnapshotPath, &c.SnapshotPath},
		{EnvJournalPath, &c.JournalPath},
	} {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
	if v := os.Getenv(EnvSlowQuery); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: invalid duration %q: %w", EnvSlowQuery, v, err)
		}
		c.SlowQuery = Duration(d)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := dialect.New(c.Dialect); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.DSN == "" {
		return fmt.Errorf("config: dsn is required")
	}
	if c.SlowQuery < 0 {
		return fmt.Errorf("config: slow_query must not be negative")
	}
	return nil
}

// Open connects to the configured database. The returned driver logs
// queries slower than SlowQuery when a threshold is set.
func (c *Config) Open() (dialect.Driver, error) {
	drv, err := sql.Open(c.Dialect, c.DSN)
	if err != nil {
		return nil, err
	}
	if c.SlowQuery > 0 {
		return sql.NewStatsDriver(drv, sql.WithSlowThreshold(time.Duration(c.SlowQuery))), nil
	}
	return drv, nil
}
