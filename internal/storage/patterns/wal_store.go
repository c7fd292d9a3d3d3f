// Package patterns persists learner statistics in a write-ahead log.
package patterns

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/updown/internal/domain"
	"github.com/vadiminshakov/updown/internal/services/learner"
)

const (
	DefaultDir   = "./wal/patterns"
	segmentLimit = 1000
	maxSegments  = 100

	patternKeyPrefix = "pattern_"
	overallKey       = "learner_overall"
)

// WALStore keeps the latest stats of every pattern and the overall record.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewWALStore initializes a WAL-backed pattern store.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "patterns_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init patterns WAL")
	}

	return &WALStore{wal: wal}, nil
}

// SaveUpdate records the pattern and overall stats produced by one trade.
func (s *WALStore) SaveUpdate(u learner.Update) error {
	if s == nil || s.wal == nil {
		return errors.New("patterns store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(patternKeyPrefix+u.Stats.Key.String(), u.Stats); err != nil {
		return err
	}
	return s.write(overallKey, u.Overall)
}

// Checkpoint rewrites the whole state so that it survives segment rotation.
func (s *WALStore) Checkpoint(state learner.State) error {
	if s == nil || s.wal == nil {
		return errors.New("patterns store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, stats := range state.Patterns {
		stats.Key = key
		if err := s.write(patternKeyPrefix+key.String(), stats); err != nil {
			return err
		}
	}
	return s.write(overallKey, state.Overall)
}

func (s *WALStore) write(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}

	nextIndex := s.wal.CurrentIndex() + 1
	return errors.Wrapf(s.wal.Write(nextIndex, key, payload), "write %s", key)
}

// Load replays the WAL keeping the latest value of every key.
func (s *WALStore) Load() (learner.State, error) {
	state := learner.State{Patterns: make(map[domain.PatternKey]domain.PatternStats)}
	if s == nil || s.wal == nil {
		return state, errors.New("patterns store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for msg := range s.wal.Iterator() {
		switch {
		case msg.Key == overallKey:
			var overall learner.Overall
			if err := json.Unmarshal(msg.Value, &overall); err != nil {
				return state, errors.Wrapf(err, "decode %s", msg.Key)
			}
			state.Overall = overall
		case strings.HasPrefix(msg.Key, patternKeyPrefix):
			key, err := domain.ParsePatternKey(strings.TrimPrefix(msg.Key, patternKeyPrefix))
			if err != nil {
				return state, errors.Wrapf(err, "decode %s", msg.Key)
			}
			var stats domain.PatternStats
			if err := json.Unmarshal(msg.Value, &stats); err != nil {
				return state, errors.Wrapf(err, "decode %s", msg.Key)
			}
			stats.Key = key
			state.Patterns[key] = stats
		}
	}

	return state, nil
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
