package normalize

import (
	"strings"

	"bankmerge/internal/core"
	"bankmerge/internal/log"
)

// MUFG export columns. The last three are informational and ignored.
const (
	mufgDate = iota
	mufgSummary
	mufgDetail
	mufgPayment
	mufgDeposit
	mufgBalance
	mufgMemo
	mufgUncleared
	mufgDirection
	mufgArity
)

// MUFG normalizes Mitsubishi UFJ exports. Amounts carry thousands separators.
type MUFG struct {
	logger *log.Logger
}

func NewMUFG(logger *log.Logger) *MUFG {
	return &MUFG{logger: componentLogger(logger)}
}

func (n *MUFG) Source() core.SourceID {
	return core.SourceMUFG
}

func (n *MUFG) Normalize(rows []RawRow) (Result, error) {
	return layout{
		source: core.SourceMUFG,
		arity:  mufgArity,
		parse:  n.parse,
	}.normalize(rows, n.logger)
}

func (n *MUFG) parse(f []string) (record, error) {
	date, err := core.ParseSlashDate(f[mufgDate])
	if err != nil {
		return record{}, err
	}
	debit, credit, balance, err := parseAmounts(f[mufgPayment], f[mufgDeposit], f[mufgBalance])
	if err != nil {
		return record{}, err
	}
	desc := strings.TrimSpace(f[mufgSummary])
	if detail := strings.TrimSpace(f[mufgDetail]); detail != "" {
		desc += " " + detail
	}
	return record{
		date:        date,
		description: desc,
		debit:       debit,
		credit:      credit,
		balance:     balance,
	}, nil
}
