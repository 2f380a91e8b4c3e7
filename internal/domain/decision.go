package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Decision is the evaluated trading decision for a single ticker in a single
// cycle. At most one Decision per ticker survives decision merging.
type Decision struct {
	Ticker     string          `json:"ticker"`
	Action     Action          `json:"action"`
	Reason     ReasonCode      `json:"reason"`
	Conviction int             `json:"conviction"`
	IsStar     bool            `json:"is_star"`
	// SellPortion is the fraction of the position to close, only meaningful
	// for ActionSellPartial. 1 means the full position.
	SellPortion decimal.Decimal `json:"sell_portion"`
	// Notional is the sized quote amount, filled in by the position sizer
	// for approved buys.
	Notional  decimal.Decimal `json:"notional"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewHold builds a HOLD decision with the given reason.
func NewHold(ticker string, reason ReasonCode, conviction int) Decision {
	return Decision{
		Ticker:     ticker,
		Action:     ActionHold,
		Reason:     reason,
		Conviction: conviction,
		CreatedAt:  time.Now(),
	}
}

// Validate validates the decision invariants.
func (d *Decision) Validate() error {
	if err := d.validateRequiredFields(); err != nil {
		return errors.Wrap(err, "missing required fields")
	}

	if err := d.validateAction(); err != nil {
		return err
	}

	if err := d.validateConviction(); err != nil {
		return err
	}

	if d.Action == ActionSellPartial {
		if err := d.validateSellPortion(); err != nil {
			return errors.Wrap(err, "sell portion validation error")
		}
	}

	return nil
}

func (d *Decision) validateRequiredFields() error {
	if d.Ticker == "" {
		return errors.New("ticker field is required")
	}
	if d.Reason == "" {
		return errors.New("reason field is required")
	}
	return nil
}

func (d *Decision) validateAction() error {
	if !isValidActionString(d.Action.String()) {
		return fmt.Errorf("invalid action: %d", d.Action)
	}
	return nil
}

func (d *Decision) validateConviction() error {
	if d.Conviction < 0 || d.Conviction > 100 {
		return fmt.Errorf("invalid conviction: %d (must be 0-100)", d.Conviction)
	}
	return nil
}

func (d *Decision) validateSellPortion() error {
	if d.SellPortion.LessThanOrEqual(decimal.Zero) {
		return errors.New("sell portion must be greater than 0")
	}
	if d.SellPortion.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("sell portion must not exceed 1")
	}
	return nil
}
