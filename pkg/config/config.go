// Package config loads banchod's YAML configuration using a
// struct-per-concern layout, os.ExpandEnv for environment overrides,
// and an applyDefaults pass, collapsed into the one BanchoConfig a
// single binary needs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BanchoConfig is the root configuration for the banchod binary.
type BanchoConfig struct {
	Server     *ServerConfig     `yaml:"server"`
	Database   *DatabaseConfig   `yaml:"database"`
	Logging    *LoggingConfig    `yaml:"logging"`
	Metrics    *MetricsConfig    `yaml:"metrics"`
	Security   *SecurityConfig   `yaml:"security"`
	GeoIP      *GeoIPConfig      `yaml:"geoip"`
	Encryption *EncryptionConfig `yaml:"encryption"`
	Admin      *AdminConfig      `yaml:"admin"`
	TTYRec     *TTYRecConfig     `yaml:"ttyrec"`
}

// ServerConfig is the HTTP/gRPC listener configuration.
type ServerConfig struct {
	MainDomain string `yaml:"main_domain"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	GRPCPort   int    `yaml:"grpc_port"`
}

// LoggingConfig controls the structured logger's level, format, and
// output destination.
type LoggingConfig struct {
	Level  string      `yaml:"level"`
	Format string      `yaml:"format"` // json or text
	Output string      `yaml:"output"` // stdout, stderr, file
	File   *FileConfig `yaml:"file,omitempty"`
}

type FileConfig struct {
	Directory string `yaml:"directory"`
	Filename  string `yaml:"filename"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxAgeDay int    `yaml:"max_age_days"`
	MaxBackup int    `yaml:"max_backups"`
	Compress  bool   `yaml:"compress"`
}

// MetricsConfig controls the Prometheus metrics HTTP listener.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// SecurityConfig bundles the rate limiting and lockout knobs the
// login pipeline consults.
type SecurityConfig struct {
	LoginRateLimit     int `yaml:"login_rate_limit_per_minute"`
	MaxFailedAttempts  int `yaml:"max_failed_attempts"`
	LockoutDurationSec int `yaml:"lockout_duration_seconds"`
}

// GeoIPConfig configures the external geolocation HTTP collaborator.
type GeoIPConfig struct {
	Endpoint   string `yaml:"endpoint"`
	TimeoutSec int    `yaml:"timeout_seconds"`
	CacheTTLSec int   `yaml:"cache_ttl_seconds"`
}

// EncryptionConfig tunes the Argon2id parameters in pkg/encryption.
type EncryptionConfig struct {
	Time    uint32 `yaml:"time"`
	MemoryKB uint32 `yaml:"memory_kb"`
	Threads uint8  `yaml:"threads"`
	KeyLen  uint32 `yaml:"key_len"`
}

// AdminConfig configures the JWT-gated admin HTTP API.
type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	HTTPPort  int    `yaml:"http_port"`
}

// TTYRecConfig configures spectator frame recording.
type TTYRecConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// Load reads path, expands $ENV references, parses YAML, and fills
// in defaults for anything left unset.
func Load(path string) (*BanchoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg BanchoConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(c *BanchoConfig) {
	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.MainDomain == "" {
		c.Server.MainDomain = "localhost"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 2137
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 9090
	}

	if c.Database == nil {
		c.Database = &DatabaseConfig{}
	}
	applyDatabaseDefaults(c.Database)

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{Enabled: true, Port: 9100}
	}

	if c.Security == nil {
		c.Security = &SecurityConfig{}
	}
	if c.Security.LoginRateLimit == 0 {
		c.Security.LoginRateLimit = 10
	}
	if c.Security.MaxFailedAttempts == 0 {
		c.Security.MaxFailedAttempts = 5
	}
	if c.Security.LockoutDurationSec == 0 {
		c.Security.LockoutDurationSec = 300
	}

	if c.GeoIP == nil {
		c.GeoIP = &GeoIPConfig{}
	}
	if c.GeoIP.TimeoutSec == 0 {
		c.GeoIP.TimeoutSec = 3
	}
	if c.GeoIP.CacheTTLSec == 0 {
		c.GeoIP.CacheTTLSec = 3600
	}

	if c.Encryption == nil {
		c.Encryption = &EncryptionConfig{}
	}
	if c.Encryption.Time == 0 {
		c.Encryption.Time = 1
	}
	if c.Encryption.MemoryKB == 0 {
		c.Encryption.MemoryKB = 64 * 1024
	}
	if c.Encryption.Threads == 0 {
		c.Encryption.Threads = 4
	}
	if c.Encryption.KeyLen == 0 {
		c.Encryption.KeyLen = 32
	}

	if c.Admin == nil {
		c.Admin = &AdminConfig{Issuer: "banchod-admin"}
	}
	if c.Admin.HTTPPort == 0 {
		c.Admin.HTTPPort = c.Server.GRPCPort + 1
	}

	if c.TTYRec == nil {
		c.TTYRec = &TTYRecConfig{Directory: "./data/ttyrec"}
	}
}
