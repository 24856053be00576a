package normalize

import (
	"strings"

	"bankmerge/internal/core"
	"bankmerge/internal/log"
)

// SMBC export columns: era date, payment, deposit, summary, balance.
const (
	smbcDate = iota
	smbcPayment
	smbcDeposit
	smbcSummary
	smbcBalance
	smbcArity
)

// SMBC normalizes Sumitomo Mitsui exports, which date rows in the Japanese
// era calendar ("H29.04.01").
type SMBC struct {
	eras   core.EraCalendar
	logger *log.Logger
}

func NewSMBC(eras core.EraCalendar, logger *log.Logger) *SMBC {
	return &SMBC{eras: eras, logger: componentLogger(logger)}
}

func (n *SMBC) Source() core.SourceID {
	return core.SourceSMBC
}

func (n *SMBC) Normalize(rows []RawRow) (Result, error) {
	return layout{
		source: core.SourceSMBC,
		arity:  smbcArity,
		parse:  n.parse,
	}.normalize(rows, n.logger)
}

func (n *SMBC) parse(f []string) (record, error) {
	date, err := n.eras.Parse(f[smbcDate])
	if err != nil {
		return record{}, err
	}
	debit, credit, balance, err := parseAmounts(f[smbcPayment], f[smbcDeposit], f[smbcBalance])
	if err != nil {
		return record{}, err
	}
	return record{
		date:        date,
		description: strings.TrimSpace(f[smbcSummary]),
		debit:       debit,
		credit:      credit,
		balance:     balance,
	}, nil
}
