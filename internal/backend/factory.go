package backend

import (
	"context"
	"errors"
	"fmt"

	"bankmerge/internal/amqp"
	"bankmerge/internal/log"
	"bankmerge/internal/report"
	"bankmerge/internal/report/csvfile"
	"bankmerge/internal/report/google"
	"bankmerge/internal/report/memory"
	"bankmerge/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateBackend builds every configured sink. More than one sink is combined
// into a fan-out; the cleanup releases all of them.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &BackendResult{}
	var sinks report.Multi
	var cleanups []CleanupFunc
	cleanup := func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	for _, t := range config.Types {
		var (
			sink report.Sink
			done CleanupFunc
			err  error
		)
		switch t {
		case CSVBackend:
			sink, err = csvfile.New(config.OutputDir, f.logger)
		case SQLiteBackend:
			var repo *storage.SQLiteRepository
			repo, err = storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
			if err == nil {
				sink, done, res.Repository = repo, repo.Close, repo
			}
		case SheetsBackend:
			sink, err = google.New(ctx, google.Config{
				SpreadsheetID:    config.GoogleSpreadsheetID,
				LedgerSheet:      config.GoogleLedgerSheet,
				MonthlySheet:     config.GoogleMonthlySheet,
				DiagnosticsSheet: config.GoogleDiagnosticsSheet,
			}, f.logger)
		case MemoryBackend:
			store := memory.New()
			sink, res.Memory = store, store
		default:
			err = fmt.Errorf("unsupported backend type: %s", t)
		}
		if err != nil {
			return nil, f.release(fmt.Errorf("failed to initialize %s backend: %w", t, err), cleanup)
		}

		sinks = append(sinks, sink)
		if done != nil {
			cleanups = append(cleanups, done)
		}
		f.logger.Info("Initialized output backend", log.FieldBackend, t.String())
	}

	if len(sinks) == 1 {
		res.Sink = sinks[0]
	} else {
		res.Sink = sinks
	}
	res.Cleanup = cleanup
	return res, nil
}

// release runs cleanup after a failed initialization. Its error is logged and
// joined to err.
func (f *DefaultFactory) release(err error, cleanup CleanupFunc) error {
	cerr := cleanup()
	if cerr == nil {
		return err
	}
	f.logger.Warn("Failed to release backends after init error", log.FieldError, cerr)
	return errors.Join(err, fmt.Errorf("cleanup: %w", cerr))
}

// CreatePublisher connects the run notification client. It returns nil when
// no AMQP URL is configured or the broker is unreachable; notifications are
// optional.
func (f *DefaultFactory) CreatePublisher(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
