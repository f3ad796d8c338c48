package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection: csv, sqlite or sheets
	DataBackend string

	// CSV
	DataFile string

	// Database
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// AMQP (empty URL disables exports over the queue)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Exports
	ExportDir         string
	ExportConcurrency int

	// MQTT (empty broker disables KPI publishing)
	MQTTBroker      string
	MQTTTopicPrefix string
	MQTTUsername    string
	MQTTPassword    string
	MQTTClientID    string

	// View model cache
	CacheSize int
	CacheTTL  time.Duration

	// Raw data table
	RawRowsLimit int

	LogLevel string
}

var validBackends = []string{"csv", "sheets", "sqlite"}

// Load reads the configuration from the environment. When CONFIG_FILE names
// a YAML file its keys (lower-case variable names, e.g. data_backend) supply
// values for variables that are not set in the environment.
func Load() (*Config, error) {
	src := source{file: map[string]string{}}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	cfg := &Config{
		Port:        src.get("PORT", "8081"),
		DataBackend: src.get("DATA_BACKEND", "csv"),
		DataFile:    src.get("DATA_FILE", "data/clean_powertrust_data.csv"),

		SQLiteDBPath: src.get("SQLITE_DB_PATH", "./data/powertrust.db"),

		GoogleSpreadsheetID:      src.get("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetRange:         src.get("GOOGLE_SHEET_RANGE", "Sheet1!A:H"),
		GoogleServiceAccountJSON: src.get("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: src.get("GOOGLE_SERVICE_ACCOUNT_FILE", src.get("GOOGLE_APPLICATION_CREDENTIALS", "")),

		AMQPURL:      src.get("AMQP_URL", ""),
		AMQPExchange: src.get("AMQP_EXCHANGE", "powertrust"),
		AMQPQueue:    src.get("AMQP_QUEUE", "chart_exports"),

		ExportDir:         src.get("EXPORT_DIR", "./exports"),
		ExportConcurrency: src.getInt("EXPORT_CONCURRENCY", 2),

		MQTTBroker:      src.get("MQTT_BROKER", ""),
		MQTTTopicPrefix: src.get("MQTT_TOPIC_PREFIX", "powertrust"),
		MQTTUsername:    src.get("MQTT_USERNAME", ""),
		MQTTPassword:    src.get("MQTT_PASSWORD", ""),
		MQTTClientID:    src.get("MQTT_CLIENT_ID", "powertrust"),

		CacheSize: src.getInt("CACHE_SIZE", 256),
		CacheTTL:  src.getDuration("CACHE_TTL", 10*time.Minute),

		RawRowsLimit: src.getInt("RAW_ROWS_LIMIT", 500),

		LogLevel: src.get("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "csv":
		if c.DataFile == "" {
			errors = append(errors, "data file cannot be empty when using csv backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetRange == "" {
			errors = append(errors, "Google Sheet range is required when using sheets backend")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.MQTTBroker != "" {
		if parsedURL, err := url.Parse(c.MQTTBroker); err != nil {
			errors = append(errors, fmt.Sprintf("invalid MQTT broker '%s': %v", c.MQTTBroker, err))
		} else {
			switch parsedURL.Scheme {
			case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
			default:
				errors = append(errors, fmt.Sprintf("invalid MQTT broker scheme '%s': must be one of tcp, ssl, ws, wss", parsedURL.Scheme))
			}
		}
		if c.MQTTTopicPrefix == "" {
			errors = append(errors, "MQTT topic prefix cannot be empty when MQTT broker is provided")
		}
	}

	if c.ExportConcurrency < 1 || c.ExportConcurrency > 32 {
		errors = append(errors, fmt.Sprintf("invalid export concurrency %d: must be between 1 and 32", c.ExportConcurrency))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.RawRowsLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid raw rows limit %d: must be at least 1", c.RawRowsLimit))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// AMQPEnabled reports whether export requests go through the queue.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// MQTTEnabled reports whether KPI snapshots are published.
func (c *Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

type source struct {
	file map[string]string
}

func readFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = fmt.Sprint(v)
	}
	return out, nil
}

func (s source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[strings.ToLower(key)]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s source) getInt(key string, defaultValue int) int {
	if value := s.get(key, ""); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (s source) getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := s.get(key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
