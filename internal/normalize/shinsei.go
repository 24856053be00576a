package normalize

import (
	"strings"

	"bankmerge/internal/core"
	"bankmerge/internal/log"
)

// Shinsei export columns: date, reference number, summary, payment, deposit, balance.
const (
	shinseiDate = iota
	shinseiRef
	shinseiSummary
	shinseiPayment
	shinseiDeposit
	shinseiBalance
	shinseiArity
)

// Shinsei normalizes Shinsei exports, which list the newest transaction first.
type Shinsei struct {
	logger *log.Logger
}

func NewShinsei(logger *log.Logger) *Shinsei {
	return &Shinsei{logger: componentLogger(logger)}
}

func (n *Shinsei) Source() core.SourceID {
	return core.SourceShinsei
}

func (n *Shinsei) Normalize(rows []RawRow) (Result, error) {
	return layout{
		source:      core.SourceShinsei,
		arity:       shinseiArity,
		newestFirst: true,
		parse:       n.parse,
	}.normalize(rows, n.logger)
}

func (n *Shinsei) parse(f []string) (record, error) {
	date, err := core.ParseSlashDate(f[shinseiDate])
	if err != nil {
		return record{}, err
	}
	debit, credit, balance, err := parseAmounts(f[shinseiPayment], f[shinseiDeposit], f[shinseiBalance])
	if err != nil {
		return record{}, err
	}
	return record{
		date:        date,
		description: strings.TrimSpace(f[shinseiSummary]),
		debit:       debit,
		credit:      credit,
		balance:     balance,
	}, nil
}
