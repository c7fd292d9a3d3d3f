package indicators

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
)

func f(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

func level(l domain.OrderBookLevel) (price, qty float64) {
	return f(l.Price), f(l.Quantity)
}
