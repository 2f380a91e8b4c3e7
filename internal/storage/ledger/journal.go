package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	IntentStatusPending = "pending"
	IntentStatusDone    = "done"
	IntentStatusFailed  = "failed"
)

// Intent is one journaled order attempt. It is written before the order goes
// to the broker and rewritten when the outcome is known, so a crash between
// the two leaves a pending record for the next startup to resolve.
type Intent struct {
	ID       string          `json:"id"`
	CycleID  string          `json:"cycle_id"`
	Ticker   string          `json:"ticker"`
	Side     string          `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Reason   string          `json:"reason"`
	Status   string          `json:"status"`
	Time     time.Time       `json:"time"`
	Error    string          `json:"error,omitempty"`
}

// Prepare journals a new pending intent and returns it.
func (s *Store) Prepare(cycleID, ticker, side string, quantity, price decimal.Decimal, reason string) (*Intent, error) {
	intent := &Intent{
		ID:       uuid.New().String(),
		CycleID:  cycleID,
		Ticker:   ticker,
		Side:     side,
		Quantity: quantity,
		Price:    price,
		Reason:   reason,
		Status:   IntentStatusPending,
		Time:     time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistIntent(intent); err != nil {
		return nil, err
	}
	s.intents = append(s.intents, intent)
	s.index[intent.ID] = intent

	return intent, nil
}

// MarkDone records the intent as applied to the portfolio.
func (s *Store) MarkDone(intent *Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// PendingIntents hands out copies; the update lands on the canonical record.
	if known, ok := s.index[intent.ID]; ok {
		intent = known
	}
	intent.Status = IntentStatusDone
	intent.Error = ""

	return s.persistIntent(intent)
}

// MarkFailed records the intent as abandoned with the failure cause.
func (s *Store) MarkFailed(intent *Intent, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if known, ok := s.index[intent.ID]; ok {
		intent = known
	}
	intent.Status = IntentStatusFailed
	intent.Error = cause

	return s.persistIntent(intent)
}

// PendingIntents returns intents whose outcome was never recorded, oldest
// first. The engine resolves them before trading.
func (s *Store) PendingIntents() []*Intent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*Intent
	for _, intent := range s.intents {
		if intent.Status == IntentStatusPending {
			cp := *intent
			pending = append(pending, &cp)
		}
	}

	return pending
}

// persistIntent rewrites the full intent record; callers hold the lock.
func (s *Store) persistIntent(intent *Intent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return errors.Wrap(err, "marshal trade intent")
	}

	if err := s.wal.Write(s.wal.CurrentIndex()+1, intentKeyPrefix+intent.ID, data); err != nil {
		return errors.Wrapf(err, "journal trade intent %s", intent.ID)
	}

	return nil
}
