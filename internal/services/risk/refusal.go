package risk

import (
	"github.com/pkg/errors"
	"github.com/vadiminshakov/updown/internal/domain"
)

var (
	// ErrPositionNotFound the position an exit refers to is no longer open.
	ErrPositionNotFound = errors.New("position not found")
	// ErrInvariantViolation the operation would corrupt a position; nothing was changed.
	ErrInvariantViolation = errors.New("position invariant violation")
	// ErrReservationUnknown the entry reservation was already committed or released.
	ErrReservationUnknown = errors.New("unknown entry reservation")
)

// RefusalReason machine readable cause of a declined entry.
type RefusalReason string

const (
	RefusalTradingDisabled RefusalReason = "trading_disabled"
	RefusalMaxPositions    RefusalReason = "max_positions"
	RefusalCooldown        RefusalReason = "cooldown"
	RefusalMarketBusy      RefusalReason = "market_busy"
)

// Refusal outcome of entry gating. The zero value means the entry is allowed.
type Refusal struct {
	Reason  RefusalReason    `json:"reason,omitempty"`
	Market  domain.MarketKey `json:"market"`
	Message string           `json:"message,omitempty"`
}

// Allowed reports whether gating let the entry through.
func (r Refusal) Allowed() bool {
	return r.Reason == ""
}

func (r Refusal) String() string {
	if r.Allowed() {
		return "OK"
	}
	return r.Message
}
