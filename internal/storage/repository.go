// Package storage keeps the history of merge runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bankmerge/internal/core"
	"bankmerge/internal/log"
	"bankmerge/internal/report"

	_ "modernc.org/sqlite"
)

var (
	ErrNoRun     = errors.New("no run started")
	ErrNoHistory = errors.New("no runs recorded")
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger

	mu    sync.Mutex
	runID string
}

var (
	_ report.Sink        = (*SQLiteRepository)(nil)
	_ report.RunRecorder = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RunID returns the id of the run being written, empty before BeginRun.
func (r *SQLiteRepository) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// BeginRun records a new run; subsequent writes attach to it. A missing id is
// generated.
func (r *SQLiteRepository) BeginRun(ctx context.Context, run report.RunInfo) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, sources, failed) VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), joinSources(run.Sources), joinSources(run.Failed))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	r.mu.Lock()
	r.runID = run.ID
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Run recorded", log.FieldRunID, run.ID)
	return nil
}

func (r *SQLiteRepository) currentRun() (string, error) {
	id := r.RunID()
	if id == "" {
		return "", ErrNoRun
	}
	return id, nil
}

func (r *SQLiteRepository) WriteLedger(ctx context.Context, entries []core.LedgerEntry) error {
	runID, err := r.currentRun()
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear ledger: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_entries
			(run_id, position, date, description, debit, credit, balance, source, net_cashflow, combined_balance)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare ledger insert: %w", err)
		}
		defer stmt.Close()

		for i, e := range entries {
			_, err := stmt.ExecContext(ctx, runID, i, e.Date.Format(dateLayout), e.Description,
				e.Debit.String(), e.Credit.String(), e.Balance.String(), e.Source.String(),
				e.NetCashflow.String(), e.CombinedBalance.String())
			if err != nil {
				return fmt.Errorf("insert ledger entry %d: %w", i, err)
			}
		}
		r.logger.InfoContext(ctx, "Ledger saved to SQLite",
			log.FieldOperation, log.OpWrite,
			log.FieldRunID, runID,
			log.FieldEntries, len(entries))
		return nil
	})
}

func (r *SQLiteRepository) WriteMonthly(ctx context.Context, months []core.MonthlyMax) error {
	runID, err := r.currentRun()
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_max WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear monthly: %w", err)
		}
		for _, m := range months {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO monthly_max (run_id, year_month, max_combined_balance) VALUES (?, ?, ?)`,
				runID, m.Month.String(), m.MaxCombinedBalance.String())
			if err != nil {
				return fmt.Errorf("insert month %s: %w", m.Month, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) WriteDiagnostics(ctx context.Context, diags []core.Diagnostic) error {
	runID, err := r.currentRun()
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM diagnostics WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear diagnostics: %w", err)
		}
		for i, d := range diags {
			var expected, actual string
			if d.Entry != nil {
				expected, actual = d.Expected.String(), d.Actual.String()
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO diagnostics (run_id, seq, kind, source, file, line, expected, actual, message)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, i, string(d.Kind), d.Source.String(), d.File, d.Line, expected, actual, d.Message)
			if err != nil {
				return fmt.Errorf("insert diagnostic %d: %w", i, err)
			}
		}
		return nil
	})
}

// LatestRunID returns the most recently started run.
func (r *SQLiteRepository) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoHistory
	}
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

// LatestMonthly returns the monthly summary of the most recent run.
func (r *SQLiteRepository) LatestMonthly(ctx context.Context) (string, []core.MonthlyMax, error) {
	runID, err := r.LatestRunID(ctx)
	if err != nil {
		return "", nil, err
	}
	months, err := r.Monthly(ctx, runID)
	return runID, months, err
}

// Monthly returns a run's monthly summary ordered by month.
func (r *SQLiteRepository) Monthly(ctx context.Context, runID string) ([]core.MonthlyMax, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT year_month, max_combined_balance FROM monthly_max WHERE run_id = ? ORDER BY year_month`, runID)
	if err != nil {
		return nil, fmt.Errorf("query monthly: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyMax
	for rows.Next() {
		var ym, amount string
		if err := rows.Scan(&ym, &amount); err != nil {
			return nil, fmt.Errorf("scan monthly: %w", err)
		}
		t, err := time.Parse("2006-01", ym)
		if err != nil {
			return nil, fmt.Errorf("parse month %q: %w", ym, err)
		}
		v, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		out = append(out, core.MonthlyMax{Month: core.YearMonthOf(t), MaxCombinedBalance: v})
	}
	return out, rows.Err()
}

// Ledger returns a run's ledger in merge order.
func (r *SQLiteRepository) Ledger(ctx context.Context, runID string) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT position, date, description, debit, credit, balance, source,
		net_cashflow, combined_balance FROM ledger_entries WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		var (
			pos                                  int
			date, desc, src                      string
			debit, credit, balance, net, combined string
		)
		if err := rows.Scan(&pos, &date, &desc, &debit, &credit, &balance, &src, &net, &combined); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		e, err := decodeEntry(date, desc, src, debit, credit, balance, net, combined)
		if err != nil {
			return nil, fmt.Errorf("ledger position %d: %w", pos, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func decodeEntry(date, desc, src string, amounts ...string) (core.LedgerEntry, error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	source, err := core.ParseSourceID(src)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	vals := make([]decimal.Decimal, len(amounts))
	for i, a := range amounts {
		if vals[i], err = decimal.NewFromString(a); err != nil {
			return core.LedgerEntry{}, err
		}
	}
	return core.LedgerEntry{
		Transaction: core.Transaction{
			Date:        d,
			Description: desc,
			Debit:       vals[0],
			Credit:      vals[1],
			Balance:     vals[2],
			Source:      source,
		},
		NetCashflow:     vals[3],
		CombinedBalance: vals[4],
	}, nil
}

// DiagnosticCounts returns the number of diagnostics per kind for a run.
func (r *SQLiteRepository) DiagnosticCounts(ctx context.Context, runID string) (map[core.DiagnosticKind]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM diagnostics WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	out := make(map[core.DiagnosticKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan diagnostics: %w", err)
		}
		out[core.DiagnosticKind(kind)] = n
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func joinSources(srcs []core.SourceID) string {
	names := make([]string, len(srcs))
	for i, s := range srcs {
		names[i] = s.String()
	}
	return strings.Join(names, ",")
}
