package domain

import (
	"time"
)

// DecisionEvent is the audit-trail record for one decision inside a cycle,
// including decisions that produced no trade.
type DecisionEvent struct {
	Timestamp  time.Time  `json:"ts"`
	CycleID    string     `json:"cycle_id"`
	Ticker     string     `json:"ticker"`
	Action     string     `json:"action"`
	Reason     ReasonCode `json:"reason"`
	Conviction int        `json:"conviction"`
	IsStar     bool       `json:"is_star,omitempty"`
	Notional   string     `json:"notional,omitempty"`
	Price      string     `json:"price,omitempty"`
	Executed   bool       `json:"executed"`
	Error      string     `json:"error,omitempty"`
}

// NewDecisionEvent builds an audit event from a decision and its outcome.
func NewDecisionEvent(cycleID string, d Decision, price string, executed bool, execErr error) DecisionEvent {
	event := DecisionEvent{
		Timestamp:  time.Now(),
		CycleID:    cycleID,
		Ticker:     d.Ticker,
		Action:     d.Action.String(),
		Reason:     d.Reason,
		Conviction: d.Conviction,
		IsStar:     d.IsStar,
		Price:      price,
		Executed:   executed,
	}
	if !d.Notional.IsZero() {
		event.Notional = d.Notional.String()
	}
	if execErr != nil {
		event.Error = execErr.Error()
	}
	return event
}

// DecisionEventRecord bundles a stored event with its WAL index.
type DecisionEventRecord struct {
	Index uint64
	Event DecisionEvent
}

// DriftRecord captures one field-level divergence between the ledger and
// broker truth found during reconciliation. Drift is corrected silently but
// recorded for audit.
type DriftRecord struct {
	Ticker      string    `json:"ticker"`
	Field       string    `json:"field"`
	LedgerValue string    `json:"ledger_value"`
	BrokerValue string    `json:"broker_value"`
	DetectedAt  time.Time `json:"detected_at"`
}
