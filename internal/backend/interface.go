// Package backend builds the output sinks selected in configuration.
package backend

import (
	"context"

	"bankmerge/internal/report"
	"bankmerge/internal/report/memory"
	"bankmerge/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the sink and an optional cleanup function. The
// concrete SQLite and memory stores are exposed when they were built.
type BackendResult struct {
	Sink    report.Sink
	Cleanup CleanupFunc

	Repository *storage.SQLiteRepository
	Memory     *memory.Store
}

// Factory creates sinks based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Types []BackendType

	// CSV specific
	OutputDir string

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID    string
	GoogleLedgerSheet      string
	GoogleMonthlySheet     string
	GoogleDiagnosticsSheet string

	// AMQP, used for the run notification publisher
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	CSVBackend    BackendType = "csv"
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
