package config

import "fmt"

// DatabaseMode selects between a local embedded database and an
// external, network-attached one.
type DatabaseMode string

const (
	DatabaseModeEmbedded DatabaseMode = "embedded" // SQLite, single process
	DatabaseModeExternal DatabaseMode = "external" // PostgreSQL or MySQL
)

// DatabaseConfig configures the persistence collaborator (users,
// per-mode stats, relationships, channels).
type DatabaseConfig struct {
	Mode     DatabaseMode      `yaml:"mode"`
	Type     string            `yaml:"type"` // sqlite, postgresql, mysql
	Embedded *EmbeddedDBConfig `yaml:"embedded,omitempty"`
	External *ExternalDBConfig `yaml:"external,omitempty"`
}

type EmbeddedDBConfig struct {
	Path string `yaml:"path"`
}

type ExternalDBConfig struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	Database             string `yaml:"database"`
	Username             string `yaml:"username"`
	Password             string `yaml:"password"`
	SSLMode              string `yaml:"ssl_mode"`
	MaxConnections       int    `yaml:"max_connections"`
	MaxIdleConns         int    `yaml:"max_idle_conns"`
	ConnMaxLifetime      string `yaml:"conn_max_lifetime"`
	ReaderUseWriter      bool   `yaml:"reader_use_writer"`
	ReaderEndpoint       string `yaml:"reader_endpoint"`
	ReaderMaxConnections int    `yaml:"reader_max_connections"`
	ReaderMaxIdleConns   int    `yaml:"reader_max_idle_conns"`
	Failover             *FailoverConfig `yaml:"failover,omitempty"`
}

type FailoverConfig struct {
	Enabled                 bool   `yaml:"enabled"`
	HealthCheckInterval     string `yaml:"health_check_interval"`
	ReaderToWriterFallback  bool   `yaml:"reader_to_writer_fallback"`
}

func (c *DatabaseConfig) GetDatabaseType() string {
	if c.Type != "" {
		return c.Type
	}
	if c.Mode == DatabaseModeEmbedded {
		return "sqlite"
	}
	return "postgresql"
}

// GetConnectionString returns the DSN for an embedded database.
func (c *DatabaseConfig) GetConnectionString() (string, error) {
	if c.Mode != DatabaseModeEmbedded {
		return "", fmt.Errorf("config: GetConnectionString called for non-embedded mode %q", c.Mode)
	}
	if c.Embedded == nil || c.Embedded.Path == "" {
		return "./data/banchod.db", nil
	}
	return c.Embedded.Path, nil
}

// GetWriterConnectionString returns the writer DSN for an external database.
func (c *DatabaseConfig) GetWriterConnectionString() (string, error) {
	if c.External == nil {
		return "", fmt.Errorf("config: external database not configured")
	}
	return c.dsn(c.External.Host, c.External.Port)
}

// GetReaderConnectionString returns the reader DSN for an external database.
func (c *DatabaseConfig) GetReaderConnectionString() (string, error) {
	if c.External == nil {
		return "", fmt.Errorf("config: external database not configured")
	}
	host := c.External.ReaderEndpoint
	if host == "" {
		host = c.External.Host
	}
	return c.dsn(host, c.External.Port)
}

func (c *DatabaseConfig) dsn(host string, port int) (string, error) {
	e := c.External
	switch c.GetDatabaseType() {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", e.Username, e.Password, host, port, e.Database), nil
	case "postgresql":
		sslMode := e.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			host, port, e.Username, e.Password, e.Database, sslMode), nil
	default:
		return "", fmt.Errorf("config: unsupported external database type %q", c.GetDatabaseType())
	}
}

// GetDriverName maps a logical database type to its registered
// database/sql driver name.
func GetDriverName(dbType string) string {
	switch dbType {
	case "postgresql":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite":
		return "sqlite3"
	default:
		return dbType
	}
}

func applyDatabaseDefaults(c *DatabaseConfig) {
	if c.Mode == "" {
		c.Mode = DatabaseModeEmbedded
	}
	if c.Mode == DatabaseModeEmbedded && c.Embedded == nil {
		c.Embedded = &EmbeddedDBConfig{Path: "./data/banchod.db"}
	}
	if c.Mode == DatabaseModeExternal && c.External != nil {
		if c.External.MaxConnections == 0 {
			c.External.MaxConnections = 25
		}
		if c.External.MaxIdleConns == 0 {
			c.External.MaxIdleConns = 5
		}
	}
}
