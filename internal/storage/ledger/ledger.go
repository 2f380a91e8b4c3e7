// Package ledger persists the portfolio and the trade-intent journal in one
// shared write-ahead log. The portfolio record is a full snapshot (last one
// wins on recovery); intents are status transitions keyed by intent ID.
package ledger

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
)

const (
	portfolioKey    = "portfolio_state"
	intentKeyPrefix = "trade_intent_"

	walPrefix        = "ledger_"
	segmentThreshold = 1000
	maxSegments      = 100
	dirPermissions   = 0o755
)

// Store owns the ledger WAL. All writes go through one mutex; the engine
// runs cycles single-flight, the lock only guards stray concurrent readers.
type Store struct {
	l   *zap.Logger
	wal *gowal.Wal

	mu        sync.Mutex
	portfolio *domain.Portfolio
	intents   []*Intent
	index     map[string]*Intent
}

// Open recovers the ledger from dir, creating it when empty.
func Open(l *zap.Logger, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, errors.Wrapf(err, "ensure ledger directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           walPrefix,
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	s := &Store{
		l:     l,
		wal:   wal,
		index: make(map[string]*Intent),
	}
	s.recover()

	return s, nil
}

// recover replays the WAL. Later records win: the newest portfolio snapshot
// and the newest status per intent ID.
func (s *Store) recover() {
	for msg := range s.wal.Iterator() {
		switch {
		case msg.Key == portfolioKey:
			var p domain.Portfolio
			if err := json.Unmarshal(msg.Value, &p); err != nil {
				s.l.Error("skipping corrupt portfolio record", zap.Error(err))
				continue
			}
			if p.Positions == nil {
				p.Positions = make(map[string]*domain.Position)
			}
			if p.ProcessedIntentIDs == nil {
				p.ProcessedIntentIDs = make(map[string]bool)
			}
			s.portfolio = &p

		case strings.HasPrefix(msg.Key, intentKeyPrefix):
			var intent Intent
			if err := json.Unmarshal(msg.Value, &intent); err != nil {
				s.l.Error("skipping corrupt intent record", zap.Error(err), zap.String("key", msg.Key))
				continue
			}
			if known, ok := s.index[intent.ID]; ok {
				*known = intent
				continue
			}
			rec := intent
			s.intents = append(s.intents, &rec)
			s.index[intent.ID] = &rec
		}
	}

	if s.portfolio != nil {
		s.l.Info("ledger recovered",
			zap.Int("positions", len(s.portfolio.Positions)),
			zap.Int("intents", len(s.intents)))
	}
}

// Portfolio returns a copy of the last persisted portfolio, or nil when the
// ledger is brand new.
func (s *Store) Portfolio() *domain.Portfolio {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.portfolio == nil {
		return nil
	}
	return s.portfolio.Clone()
}

// SavePortfolio persists a full portfolio snapshot.
func (s *Store) SavePortfolio(p *domain.Portfolio) error {
	if p == nil {
		return errors.New("nil portfolio")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal portfolio")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Write(s.wal.CurrentIndex()+1, portfolioKey, data); err != nil {
		return errors.Wrap(err, "write portfolio snapshot")
	}
	s.portfolio = p.Clone()

	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
