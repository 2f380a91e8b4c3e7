package domain

import "github.com/pkg/errors"

// Error taxonomy. Per-ticker failures (ErrDataUnavailable, ErrOrderRejected,
// ErrInvariantViolation) are isolated and never abort a cycle; ledger-wide
// failures (ErrBrokerUnavailable) abort the cycle and fail closed.
var (
	// ErrDataUnavailable marks a provider call that failed or returned
	// incomplete data for one ticker.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrBrokerUnavailable marks an unreachable broker; the cycle must
	// abort without mutating the ledger.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrOrderRejected marks a broker-side rejection of a single order.
	ErrOrderRejected = errors.New("order rejected")

	// ErrInvariantViolation marks a computed value that breaches a safety
	// invariant (negative notional, cash underflow). The offending decision
	// is abandoned, never clamped.
	ErrInvariantViolation = errors.New("invariant violation")
)
