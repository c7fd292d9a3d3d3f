// Package positions persists open positions in a write-ahead log.
package positions

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/updown/internal/domain"
)

const (
	DefaultDir   = "./wal/positions"
	segmentLimit = 1000
	maxSegments  = 100

	openKeyPrefix   = "position_open_"
	updateKeyPrefix = "position_update_"
	closeKeyPrefix  = "position_close_"
)

// WALStore persists position lifecycle events in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewWALStore initializes a WAL-backed position store.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "positions_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init positions WAL")
	}

	return &WALStore{wal: wal}, nil
}

// SaveOpen records a newly opened position.
func (s *WALStore) SaveOpen(p domain.Position) error {
	return s.write(openKeyPrefix, p)
}

// SaveUpdate records the new state of an open position, e.g. after a
// partial exit.
func (s *WALStore) SaveUpdate(p domain.Position) error {
	return s.write(updateKeyPrefix, p)
}

// SaveClose records that the position is gone.
func (s *WALStore) SaveClose(p domain.Position) error {
	return s.write(closeKeyPrefix, p)
}

func (s *WALStore) write(prefix string, p domain.Position) error {
	if s == nil || s.wal == nil {
		return errors.New("positions store is not initialized")
	}
	if p.MarketToken == "" {
		return fmt.Errorf("position market token is required")
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal position")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return errors.Wrapf(s.wal.Write(nextIndex, prefix+p.MarketToken, payload), "write %s%s", prefix, p.MarketToken)
}

// Checkpoint rewrites the open record of every given position with its
// current state. Old segments are pruned, so without a fresh open record a
// long-lived position would depend on records that may be gone.
func (s *WALStore) Checkpoint(open []domain.Position) error {
	for _, p := range open {
		if err := s.write(openKeyPrefix, p); err != nil {
			return errors.Wrapf(err, "checkpoint %s", p.MarketToken)
		}
	}
	return nil
}

// LoadOpen replays the WAL and returns positions that were opened and not
// closed, in the order they were opened, with their latest state. An update
// whose open record was pruned carries the full state and reopens the
// position; updates after a close are ignored.
func (s *WALStore) LoadOpen() ([]domain.Position, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("positions store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var order []string
	open := make(map[string]domain.Position)
	closed := make(map[string]bool)

	for msg := range s.wal.Iterator() {
		var token string
		var apply func(p domain.Position)

		switch {
		case strings.HasPrefix(msg.Key, openKeyPrefix):
			token = strings.TrimPrefix(msg.Key, openKeyPrefix)
			apply = func(p domain.Position) {
				if _, ok := open[token]; !ok {
					order = append(order, token)
				}
				open[token] = p
				delete(closed, token)
			}
		case strings.HasPrefix(msg.Key, updateKeyPrefix):
			token = strings.TrimPrefix(msg.Key, updateKeyPrefix)
			apply = func(p domain.Position) {
				if closed[token] {
					return
				}
				if _, ok := open[token]; !ok {
					order = append(order, token)
				}
				open[token] = p
			}
		case strings.HasPrefix(msg.Key, closeKeyPrefix):
			token = strings.TrimPrefix(msg.Key, closeKeyPrefix)
			apply = func(domain.Position) {
				closed[token] = true
				delete(open, token)
				order = slices.DeleteFunc(order, func(t string) bool { return t == token })
			}
		default:
			continue
		}

		var p domain.Position
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return nil, errors.Wrapf(err, "decode %s", msg.Key)
		}
		apply(p)
	}

	out := make([]domain.Position, 0, len(order))
	for _, token := range order {
		out = append(out, open[token])
	}
	return out, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
