// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"time"

	"github.com/JonMunkholm/planos/internal/core"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Extract  ExtractConfig
	Output   OutputConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed size of each input file in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// MaxMemory is how much of a multipart form is kept in memory before
	// spilling to temp files (default: 8MB)
	MaxMemory int64 `env:"UPLOAD_MAX_MEMORY" default:"8388608"`

	// Timeout is the maximum duration for a single extraction run (default: 2m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"2m"`

	// MaxConcurrent is the maximum number of simultaneous runs (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long a run waits for a free slot (default: 30s)
	MaxWait time.Duration `env:"UPLOAD_MAX_WAIT" default:"30s"`
}

// ExtractConfig holds record extraction settings.
type ExtractConfig struct {
	// ThousandsSeparator is stripped from numeric text cells (default: ",")
	ThousandsSeparator string `env:"EXTRACT_THOUSANDS_SEPARATOR" default:","`

	// DecimalSeparator marks the fractional part of numeric text cells (default: ".")
	DecimalSeparator string `env:"EXTRACT_DECIMAL_SEPARATOR" default:"."`

	// DateLayout is the Go layout used for the FECHA column (default: 02.01.2006)
	DateLayout string `env:"EXTRACT_DATE_LAYOUT" default:"02.01.2006"`
}

// OutputConfig holds flat file output settings.
type OutputConfig struct {
	// Dir is where the CLI writes flat files (default: current directory)
	Dir string `env:"OUTPUT_DIR" default:"."`

	// Format is the default output format: xlsx or csv (default: xlsx)
	Format string `env:"OUTPUT_FORMAT" default:"xlsx"`

	// Timestamp appends _YYYYMMDD_HHMMSS to the file name (default: true)
	Timestamp bool `env:"OUTPUT_TIMESTAMP" default:"true"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 60)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"60"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}

// Settings converts the extraction and upload sections into service settings.
// Validate has already checked the separators are single characters.
func (c *Config) Settings() core.Settings {
	nf := core.DefaultNumberFormat
	if r := []rune(c.Extract.DecimalSeparator); len(r) == 1 {
		nf.Decimal = r[0]
	}
	nf.Thousands = 0
	if r := []rune(c.Extract.ThousandsSeparator); len(r) == 1 {
		nf.Thousands = r[0]
	}
	return core.Settings{
		Numbers:     nf,
		DateLayout:  c.Extract.DateLayout,
		MaxFileSize: c.Upload.MaxFileSize,

		Timeout:           c.Upload.Timeout,
		MaxConcurrentRuns: c.Upload.MaxConcurrent,
		MaxWait:           c.Upload.MaxWait,
	}
}
