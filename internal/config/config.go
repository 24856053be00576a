package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bankmerge/internal/core"
	"bankmerge/internal/log"
)

// Output backends accepted in OUTPUT_BACKENDS.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

var validBackends = []string{BackendCSV, BackendSQLite, BackendSheets, BackendMemory}

type Config struct {
	// Input and output
	InputDir       string
	OutputDir      string
	OutputBackends []string

	// Database
	SQLiteDBPath string

	// AMQP (empty URL disables notifications)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID    string
	GoogleLedgerSheet      string
	GoogleMonthlySheet     string
	GoogleDiagnosticsSheet string

	// Merge
	EraTable          string
	ParallelNormalize bool

	LogLevel string
}

func Load() *Config {
	return &Config{
		InputDir:       getEnv("INPUT_DIR", "./input"),
		OutputDir:      getEnv("OUTPUT_DIR", "./output"),
		OutputBackends: ParseBackends(getEnv("OUTPUT_BACKENDS", BackendCSV)),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bankmerge.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bankmerge"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "run_completed"),

		GoogleSpreadsheetID:    getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleLedgerSheet:      getEnv("GOOGLE_LEDGER_SHEET", "Ledger"),
		GoogleMonthlySheet:     getEnv("GOOGLE_MONTHLY_SHEET", "Monthly"),
		GoogleDiagnosticsSheet: getEnv("GOOGLE_DIAGNOSTICS_SHEET", ""),

		EraTable:          getEnv("ERA_TABLE", core.DefaultEraTable),
		ParallelNormalize: getEnvBool("PARALLEL_NORMALIZE", true),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ParseBackends splits a comma separated backend list, dropping blanks and
// repeats.
func ParseBackends(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, b := range strings.Split(s, ",") {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// HasBackend reports whether name is among the configured output backends.
func (c *Config) HasBackend(name string) bool {
	for _, b := range c.OutputBackends {
		if b == name {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.InputDir) == "" {
		errors = append(errors, "input directory cannot be empty")
	} else if info, err := os.Stat(c.InputDir); err != nil {
		errors = append(errors, fmt.Sprintf("input directory '%s' is not accessible: %v", c.InputDir, err))
	} else if !info.IsDir() {
		errors = append(errors, fmt.Sprintf("input path '%s' is not a directory", c.InputDir))
	}

	if len(c.OutputBackends) == 0 {
		errors = append(errors, fmt.Sprintf("no output backend configured: must be any of %v", validBackends))
	}
	for _, b := range c.OutputBackends {
		if !isValidBackend(b) {
			errors = append(errors, fmt.Sprintf("invalid output backend '%s': must be one of %v", b, validBackends))
		}
	}

	if c.HasBackend(BackendCSV) && strings.TrimSpace(c.OutputDir) == "" {
		errors = append(errors, "output directory cannot be empty when using csv backend")
	}

	// Validate SQLite configuration if backend is sqlite
	if c.HasBackend(BackendSQLite) {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
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

	if c.HasBackend(BackendSheets) {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleLedgerSheet == "" || c.GoogleMonthlySheet == "" {
			errors = append(errors, "Google ledger and monthly sheet names are required when using sheets backend")
		}
	}

	if _, err := core.ParseEraTable(c.EraTable); err != nil {
		errors = append(errors, fmt.Sprintf("invalid era table '%s': %v", c.EraTable, err))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func isValidBackend(name string) bool {
	for _, b := range validBackends {
		if b == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
