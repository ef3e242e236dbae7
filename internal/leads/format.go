package leads

import (
	"fmt"
	"time"

	"github.com/goodsign/monday"
)

const dateLayout = "2 January 2006"

// Formatter renders lead dates and prices for display
type Formatter struct {
	Location       *time.Location
	CurrencySymbol string
}

// DefaultFormatter renders UTC dates and rouble prices
func DefaultFormatter() Formatter {
	return Formatter{Location: time.UTC, CurrencySymbol: "₽"}
}

// Date formats unix seconds as a Russian long-form date, e.g. "14 ноября 2023"
func (f Formatter) Date(unix int64) string {
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	return monday.Format(time.Unix(unix, 0).In(loc), dateLayout, monday.LocaleRuRU)
}

// Price formats an amount as "<amount> <symbol>"
func (f Formatter) Price(amount int64) string {
	return fmt.Sprintf("%d %s", amount, f.CurrencySymbol)
}
