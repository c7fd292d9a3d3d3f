// Package ledger keeps an sqlite journal of executed trades and per-day
// statistics.
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/updown/internal/domain"
	_ "modernc.org/sqlite"
)

const (
	DefaultPath = "./data/updown.db"
	dateLayout  = "2006-01-02"
)

// Action kind of a journal row.
type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionPartial Action = "PARTIAL"
)

// Trade one journal row.
type Trade struct {
	ID          int64           `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Action      Action          `json:"action"`
	MarketToken string          `json:"market_token"`
	Market      string          `json:"market"`
	Side        domain.Side     `json:"side"`
	Shares      decimal.Decimal `json:"shares"`
	Price       decimal.Decimal `json:"price"`
	SizeUSD     decimal.Decimal `json:"size_usd"`
	PnL         decimal.Decimal `json:"pnl"`
	PnLPercent  decimal.Decimal `json:"pnl_pct"`
	Reason      string          `json:"reason"`
	Confidence  int             `json:"confidence"`
	OrderRef    string          `json:"order_ref"`
}

// Stats aggregated realised results, for a single day or all time.
type Stats struct {
	Date       string          `json:"date,omitempty"`
	Trades     int             `json:"trades"`
	Wins       int             `json:"wins"`
	Losses     int             `json:"losses"`
	TotalPnL   decimal.Decimal `json:"total_pnl"`
	BestTrade  decimal.Decimal `json:"best_trade"`
	WorstTrade decimal.Decimal `json:"worst_trade"`
}

// WinRate wins/trades, zero without trades.
func (s Stats) WinRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades)
}

// Store sqlite-backed trade journal.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create ledger dir")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS trades (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp TEXT NOT NULL,
  action TEXT NOT NULL,
  market_token TEXT NOT NULL,
  market TEXT NOT NULL,
  side TEXT NOT NULL,
  shares REAL NOT NULL,
  price REAL NOT NULL,
  size_usd REAL NOT NULL,
  pnl REAL NOT NULL DEFAULT 0,
  pnl_pct REAL NOT NULL DEFAULT 0,
  reason TEXT,
  confidence INTEGER NOT NULL DEFAULT 0,
  order_ref TEXT
);`,
		`
CREATE TABLE IF NOT EXISTS daily_stats (
  date TEXT PRIMARY KEY,
  total_trades INTEGER NOT NULL DEFAULT 0,
  wins INTEGER NOT NULL DEFAULT 0,
  losses INTEGER NOT NULL DEFAULT 0,
  total_pnl REAL NOT NULL DEFAULT 0,
  best_trade REAL NOT NULL DEFAULT 0,
  worst_trade REAL NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_action ON trades(action);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate ledger")
		}
	}
	return nil
}

// LogEntry journals a filled entry order.
func (s *Store) LogEntry(ctx context.Context, p domain.Position) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO trades (timestamp, action, market_token, market, side, shares, price, size_usd, reason, confidence, order_ref)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'signal', ?, ?)`,
		p.EntryTime.UTC().Format(time.RFC3339Nano), ActionBuy, p.MarketToken, p.Market.String(), p.Side,
		p.OriginalShares, p.EntryPrice, p.SizeUSD, p.Confidence, p.OrderRef)
	if err != nil {
		return 0, errors.Wrapf(err, "log entry %s", p.MarketToken)
	}
	return res.LastInsertId()
}

// LogExit journals a full or partial exit and folds its P&L into the stats
// of the exit day.
func (s *Store) LogExit(ctx context.Context, r domain.TradeRecord) (int64, error) {
	action := ActionSell
	if r.Partial {
		action = ActionPartial
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin exit tx")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT INTO trades (timestamp, action, market_token, market, side, shares, price, size_usd, pnl, pnl_pct, reason, order_ref)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ExitTime.UTC().Format(time.RFC3339Nano), action, r.MarketToken, r.Market.String(), r.Side,
		r.Shares, r.ExitPrice, r.Shares.Mul(r.ExitPrice), r.PnL.Round(4), r.PnLPercent.Round(2), string(r.Reason), r.OrderRef)
	if err != nil {
		return 0, errors.Wrapf(err, "log exit %s", r.MarketToken)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "exit row id")
	}

	if err := addToDay(ctx, tx, r.ExitTime.UTC().Format(dateLayout), r.PnL); err != nil {
		return 0, err
	}
	return id, errors.Wrap(tx.Commit(), "commit exit")
}

func addToDay(ctx context.Context, tx *sql.Tx, date string, pnl decimal.Decimal) error {
	day, err := dailyStats(ctx, tx, date)
	if err != nil {
		return err
	}

	if day.Trades == 0 {
		day.BestTrade, day.WorstTrade = pnl, pnl
	}
	day.Trades++
	switch pnl.Sign() {
	case 1:
		day.Wins++
	case -1:
		day.Losses++
	}
	day.TotalPnL = day.TotalPnL.Add(pnl)
	day.BestTrade = decimal.Max(day.BestTrade, pnl)
	day.WorstTrade = decimal.Min(day.WorstTrade, pnl)

	_, err = tx.ExecContext(ctx, `
INSERT INTO daily_stats (date, total_trades, wins, losses, total_pnl, best_trade, worst_trade, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(date) DO UPDATE SET
  total_trades = excluded.total_trades,
  wins = excluded.wins,
  losses = excluded.losses,
  total_pnl = excluded.total_pnl,
  best_trade = excluded.best_trade,
  worst_trade = excluded.worst_trade,
  updated_at = excluded.updated_at`,
		date, day.Trades, day.Wins, day.Losses, day.TotalPnL, day.BestTrade, day.WorstTrade,
		time.Now().UTC().Format(time.RFC3339))
	return errors.Wrapf(err, "update daily stats %s", date)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func dailyStats(ctx context.Context, q queryer, date string) (Stats, error) {
	st := Stats{Date: date}
	err := q.QueryRowContext(ctx, `
SELECT total_trades, wins, losses, total_pnl, best_trade, worst_trade
FROM daily_stats WHERE date = ?`, date).
		Scan(&st.Trades, &st.Wins, &st.Losses, &st.TotalPnL, &st.BestTrade, &st.WorstTrade)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	return st, errors.Wrapf(err, "read daily stats %s", date)
}

// DailyStats returns the stats of a UTC day; zero stats when nothing was
// traded.
func (s *Store) DailyStats(ctx context.Context, day time.Time) (Stats, error) {
	return dailyStats(ctx, s.db, day.UTC().Format(dateLayout))
}

// RecentTrades returns the last n journal rows, oldest first.
func (s *Store) RecentTrades(ctx context.Context, n int) ([]Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, timestamp, action, market_token, market, side, shares, price, size_usd, pnl, pnl_pct,
       COALESCE(reason, ''), confidence, COALESCE(order_ref, '')
FROM trades ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "query recent trades")
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var (
			t  Trade
			ts string
		)
		if err := rows.Scan(&t.ID, &ts, &t.Action, &t.MarketToken, &t.Market, &t.Side, &t.Shares, &t.Price,
			&t.SizeUSD, &t.PnL, &t.PnLPercent, &t.Reason, &t.Confidence, &t.OrderRef); err != nil {
			return nil, errors.Wrap(err, "scan trade")
		}
		if t.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, errors.Wrapf(err, "parse timestamp of trade %d", t.ID)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate trades")
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// AllTimeStats aggregates every exit row.
func (s *Store) AllTimeStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(pnl), 0),
       COALESCE(MAX(pnl), 0),
       COALESCE(MIN(pnl), 0)
FROM trades WHERE action != ?`, ActionBuy).
		Scan(&st.Trades, &st.Wins, &st.Losses, &st.TotalPnL, &st.BestTrade, &st.WorstTrade)
	return st, errors.Wrap(err, "read all-time stats")
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
