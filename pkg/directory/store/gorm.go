// Package store implements the read-only directory facade on GORM.
//
// One Store wraps one backing directory deployment; the gateway holds two of
// them (instance 1 and instance 2). Every lookup is a read; the external
// schema is owned and migrated by the upstream monitoring deployment, so
// AutoMigrate only runs for local sqlite fixtures.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shmkit/itsgate/pkg/directory/models"
)

// DatabaseType defines the supported directory backends.
type DatabaseType string

const (
	// DatabaseTypeSQLite uses a local SQLite file (dev/test fixtures).
	DatabaseTypeSQLite DatabaseType = "sqlite"

	// DatabaseTypeMySQL uses MySQL, the production directory backend.
	DatabaseTypeMySQL DatabaseType = "mysql"

	// DatabaseTypePostgres uses PostgreSQL.
	DatabaseTypePostgres DatabaseType = "postgres"
)

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// ServerConfig contains connection parameters for a networked backend
// (MySQL or PostgreSQL).
type ServerConfig struct {
	Host     string `mapstructure:"host" yaml:"host,omitempty"`
	Port     int    `mapstructure:"port" yaml:"port,omitempty"`
	Database string `mapstructure:"database" yaml:"database,omitempty"`
	User     string `mapstructure:"user" yaml:"user,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
}

// MySQLDSN returns the MySQL connection string.
func (c *ServerConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *ServerConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// Config contains directory database configuration for one instance.
type Config struct {
	Type   DatabaseType `mapstructure:"type" yaml:"type"`
	SQLite SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite,omitempty"`
	Server ServerConfig `mapstructure:"server" yaml:"server,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}
	if c.Type == DatabaseTypeSQLite && c.SQLite.Path == "" {
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			homeDir, _ := os.UserHomeDir()
			configDir = filepath.Join(homeDir, ".config")
		}
		c.SQLite.Path = filepath.Join(configDir, "itsgate", "directory.db")
	}
	if c.Type == DatabaseTypeMySQL && c.Server.Port == 0 {
		c.Server.Port = 3306
	}
	if c.Type == DatabaseTypePostgres && c.Server.Port == 0 {
		c.Server.Port = 5432
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DatabaseTypeMySQL, DatabaseTypePostgres:
		if c.Server.Host == "" {
			return fmt.Errorf("%s host is required", c.Type)
		}
		if c.Server.Database == "" {
			return fmt.Errorf("%s database is required", c.Type)
		}
		if c.Server.User == "" {
			return fmt.Errorf("%s user is required", c.Type)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// Store is a read-only GORM-backed directory facade.
type Store struct {
	db     *gorm.DB
	config *Config
}

// New connects to the directory described by config. For sqlite, the schema
// is created on first open so local fixtures work out of the box; networked
// backends are never migrated.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid directory configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		if config.SQLite.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	case DatabaseTypeMySQL:
		dialector = mysql.Open(config.Server.MySQLDSN())

	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Server.PostgresDSN())

	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to directory: %w", err)
	}

	if config.Type == DatabaseTypeSQLite {
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			return nil, fmt.Errorf("failed to create fixture schema: %w", err)
		}
	}

	return &Store{db: db, config: config}, nil
}

// DB returns the underlying GORM database connection.
// This is useful for seeding fixtures or testing.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// convertNotFoundError converts gorm.ErrRecordNotFound to the appropriate domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
