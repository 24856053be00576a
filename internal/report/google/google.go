// Package google writes run output into a Google Sheets spreadsheet, one sheet
// per report. Each write clears the sheet and rewrites it from A1.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bankmerge/internal/core"
	"bankmerge/internal/log"
	"bankmerge/internal/report"
)

type Config struct {
	SpreadsheetID    string
	LedgerSheet      string
	MonthlySheet     string
	DiagnosticsSheet string // empty skips diagnostics
}

type Client struct {
	svc    *gsheet.Service
	cfg    Config
	logger *log.Logger
}

// Ensure interface conformance
var _ report.Sink = (*Client)(nil)

// New creates a Sheets client authenticated with service account credentials
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	credentials, err := serviceAccountCredentials()
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.LedgerSheet == "" {
		cfg.LedgerSheet = "Ledger"
	}
	if cfg.MonthlySheet == "" {
		cfg.MonthlySheet = "Monthly"
	}
	return &Client{svc: svc, cfg: cfg, logger: logger.WithComponent(log.ComponentSheets)}
}

func serviceAccountCredentials() ([]byte, error) {
	if js := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); js != "" {
		return []byte(js), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

func (c *Client) WriteLedger(ctx context.Context, entries []core.LedgerEntry) error {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = report.LedgerRow(e)
	}
	return c.replace(ctx, c.cfg.LedgerSheet, report.LedgerHeader, rows)
}

func (c *Client) WriteMonthly(ctx context.Context, months []core.MonthlyMax) error {
	rows := make([][]string, len(months))
	for i, m := range months {
		rows[i] = report.MonthlyRow(m)
	}
	return c.replace(ctx, c.cfg.MonthlySheet, report.MonthlyHeader, rows)
}

func (c *Client) WriteDiagnostics(ctx context.Context, diags []core.Diagnostic) error {
	if c.cfg.DiagnosticsSheet == "" {
		c.logger.Debug("No diagnostics sheet configured, skipping", "diagnostics", len(diags))
		return nil
	}
	rows := make([][]string, len(diags))
	for i, d := range diags {
		rows[i] = report.DiagnosticRow(d)
	}
	return c.replace(ctx, c.cfg.DiagnosticsSheet, report.DiagnosticsHeader, rows)
}

// replace clears the sheet's columns then writes header and rows from A1.
func (c *Client) replace(ctx context.Context, sheet string, header []string, rows [][]string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:%s", sheet, columnName(len(header)))
	_, err := c.svc.Spreadsheets.Values.Clear(c.cfg.SpreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	vr := &gsheet.ValueRange{Values: toValues(header, rows)}
	dataRange := fmt.Sprintf("%s!A1", sheet)
	_, err = c.svc.Spreadsheets.Values.Update(c.cfg.SpreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", dataRange, err)
	}

	c.logger.Info("Wrote sheet",
		log.FieldOperation, log.OpWrite,
		"sheet", sheet,
		log.FieldRows, len(rows))
	return nil
}

func toValues(header []string, rows [][]string) [][]any {
	out := make([][]any, 0, len(rows)+1)
	out = append(out, toAny(header))
	for _, r := range rows {
		out = append(out, toAny(r))
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// columnName converts a 1-based column index to its A1 letters.
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
