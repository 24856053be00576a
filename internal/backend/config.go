package backend

import (
	"errors"
	"fmt"

	"bankmerge/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	types := make([]BackendType, 0, len(appConfig.OutputBackends))
	for _, name := range appConfig.OutputBackends {
		bt := BackendType(name)
		if !bt.IsValid() {
			return Config{}, fmt.Errorf("invalid backend type in config: %s", name)
		}
		types = append(types, bt)
	}

	return Config{
		Types:     types,
		OutputDir: appConfig.OutputDir,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:    appConfig.GoogleSpreadsheetID,
		GoogleLedgerSheet:      appConfig.GoogleLedgerSheet,
		GoogleMonthlySheet:     appConfig.GoogleMonthlySheet,
		GoogleDiagnosticsSheet: appConfig.GoogleDiagnosticsSheet,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if len(c.Types) == 0 {
		return errors.New("at least one backend is required")
	}
	for _, t := range c.Types {
		if !t.IsValid() {
			return fmt.Errorf("invalid backend type: %s", t)
		}
		switch t {
		case CSVBackend:
			if c.OutputDir == "" {
				return fmt.Errorf("output directory is required for csv backend")
			}
		case SQLiteBackend:
			if c.SQLiteDBPath == "" {
				return fmt.Errorf("SQLite database path is required for sqlite backend")
			}
		case SheetsBackend:
			if c.GoogleSpreadsheetID == "" {
				return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
			}
		case MemoryBackend:
			// nothing to configure
		}
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{CSVBackend, SQLiteBackend, SheetsBackend, MemoryBackend}
}
