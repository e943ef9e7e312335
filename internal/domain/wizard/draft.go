package wizard

import (
	"time"

	"github.com/shopspring/decimal"
)

// Draft holds the request fields accumulated during a wizard session.
// Values survive backward navigation; re-advancing restores them unchanged.
type Draft struct {
	Project     string
	Currency    string
	Amount      decimal.Decimal
	AmountSet   bool
	Source      string
	DocumentRef string
	Note        string
	PeriodStart time.Time
	PeriodEnd   time.Time
	PeriodSet   bool
}

// Complete returns true when every required field has been collected
func (d *Draft) Complete() bool {
	return d.Project != "" &&
		d.Currency != "" &&
		d.AmountSet &&
		d.Source != "" &&
		d.PeriodSet
}
