// Package feed pulls market data from Binance and Polymarket and turns it
// into per-market snapshots for the engine.
package feed

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
)

// ErrNoData returned when a source answered but had nothing usable.
var ErrNoData = errors.New("no data")

// Publisher receives freshly built snapshots.
type Publisher interface {
	Publish(snap domain.MarketSnapshot)
}

func parseDecimals(values ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %q", v)
		}
		out[i] = d
	}
	return out, nil
}
