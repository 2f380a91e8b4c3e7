// Package broker implements the execution venue behind the engine. The
// paper broker fills market orders at the last feed price, charges the
// configured commission and keeps its account in a JSON file so restarts
// resume the same book.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
)

// Pricer supplies the last traded price used to fill market orders.
type Pricer interface {
	LastPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// Paper is an in-process broker. It is the authority for cash and
// position quantity; the engine reconciles its own ledger against it.
type Paper struct {
	mu                 sync.RWMutex
	logger             *zap.Logger
	pricer             Pricer
	cash               decimal.Decimal
	positions          map[string]domain.BrokerPosition
	fills              map[string]domain.Fill
	commissionMin      decimal.Decimal
	commissionPerShare decimal.Decimal
	store              *stateStore
}

// NewPaper creates a paper broker persisting its account under dir.
func NewPaper(logger *zap.Logger, cfg config.Broker, pricer Pricer, dir string) (*Paper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pricer == nil {
		return nil, errors.New("pricer is required for paper broker")
	}
	store, err := newStateStore(dir)
	if err != nil {
		return nil, errors.Wrap(err, "init broker state store")
	}
	p := &Paper{
		logger:             logger,
		pricer:             pricer,
		cash:               cfg.StartingCash,
		positions:          make(map[string]domain.BrokerPosition),
		fills:              make(map[string]domain.Fill),
		commissionMin:      cfg.CommissionMin,
		commissionPerShare: cfg.CommissionPerShare,
		store:              store,
	}
	if err := p.restore(); err != nil {
		logger.Warn("failed to restore broker state", zap.Error(err))
	}
	logger.Info("paper broker ready",
		zap.String("cash", p.cash.String()),
		zap.Int("positions", len(p.positions)))
	return p, nil
}

// PlaceMarketOrder fills an order at the pricer's last price. A client
// order id that was already filled returns the original fill unchanged,
// so retried intents cannot double-execute.
func (p *Paper) PlaceMarketOrder(ctx context.Context, ticker string, side domain.OrderSide, quantity decimal.Decimal, clientOrderID string) (domain.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if clientOrderID != "" {
		if fill, ok := p.fills[clientOrderID]; ok {
			p.logger.Warn("duplicate client order id, returning original fill",
				zap.String("id", clientOrderID),
				zap.String("ticker", ticker))
			return fill, nil
		}
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return domain.Fill{}, errors.Errorf("order quantity must be positive, got %s", quantity.String())
	}

	price, err := p.pricer.LastPrice(ctx, ticker)
	if err != nil {
		return domain.Fill{}, errors.Wrapf(err, "fill price for %s", ticker)
	}

	commission := p.commissionFor(quantity)

	switch side {
	case domain.SideBuy:
		cost := quantity.Mul(price).Add(commission)
		if p.cash.LessThan(cost) {
			return domain.Fill{}, errors.Wrapf(domain.ErrOrderRejected,
				"insufficient cash for %s: have %s need %s", ticker, p.cash.String(), cost.String())
		}
		p.cash = p.cash.Sub(cost)
		pos := p.positions[ticker]
		total := pos.Quantity.Add(quantity)
		// Average cost tracks fill prices only; commission reduces cash.
		if total.IsPositive() {
			pos.AvgCost = pos.AvgCost.Mul(pos.Quantity).Add(quantity.Mul(price)).Div(total)
		}
		pos.Ticker = ticker
		pos.Quantity = total
		p.positions[ticker] = pos

	case domain.SideSell:
		pos, held := p.positions[ticker]
		if !held {
			return domain.Fill{}, errors.Wrapf(domain.ErrOrderRejected, "no position in %s to sell", ticker)
		}
		if quantity.GreaterThan(pos.Quantity) {
			p.logger.Warn("sell quantity exceeds position, capping",
				zap.String("ticker", ticker),
				zap.String("requested", quantity.String()),
				zap.String("held", pos.Quantity.String()))
			quantity = pos.Quantity
			commission = p.commissionFor(quantity)
		}
		p.cash = p.cash.Add(quantity.Mul(price).Sub(commission))
		pos.Quantity = pos.Quantity.Sub(quantity)
		if pos.Quantity.IsPositive() {
			p.positions[ticker] = pos
		} else {
			delete(p.positions, ticker)
		}

	default:
		return domain.Fill{}, errors.Errorf("unknown order side: %s", side.String())
	}

	fill := domain.Fill{
		ClientOrderID: clientOrderID,
		Ticker:        ticker,
		Side:          side,
		Quantity:      quantity,
		Price:         price,
		Commission:    commission,
		FilledAt:      time.Now(),
	}
	if clientOrderID != "" {
		p.fills[clientOrderID] = fill
	}
	p.persist()
	p.logger.Info("paper fill",
		zap.String("ticker", ticker),
		zap.String("side", side.String()),
		zap.String("quantity", quantity.String()),
		zap.String("price", price.String()),
		zap.String("commission", commission.String()))
	return fill, nil
}

// GetState returns a copy of the account snapshot.
func (p *Paper) GetState(_ context.Context) (*domain.BrokerState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	state := &domain.BrokerState{
		Cash:      p.cash,
		Positions: make(map[string]domain.BrokerPosition, len(p.positions)),
	}
	for ticker, pos := range p.positions {
		state.Positions[ticker] = pos
	}
	return state, nil
}

func (p *Paper) commissionFor(quantity decimal.Decimal) decimal.Decimal {
	c := quantity.Mul(p.commissionPerShare)
	if c.LessThan(p.commissionMin) {
		return p.commissionMin
	}
	return c
}

func (p *Paper) restore() error {
	if p.store == nil {
		return nil
	}
	state, err := p.store.Load()
	if err != nil || state == nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cash, err := decimal.NewFromString(state.Cash)
	if err != nil {
		return errors.Wrap(err, "decode cash")
	}
	positions := make(map[string]domain.BrokerPosition, len(state.Positions))
	for ticker, sp := range state.Positions {
		pos, err := sp.toPosition(ticker)
		if err != nil {
			return err
		}
		positions[ticker] = pos
	}
	p.cash = cash
	p.positions = positions
	return nil
}

func (p *Paper) persist() {
	if p.store == nil {
		return
	}

	state := accountState{
		Cash:      p.cash.String(),
		Positions: make(map[string]storedPosition, len(p.positions)),
	}
	for ticker, pos := range p.positions {
		state.Positions[ticker] = storedPosition{
			Quantity: pos.Quantity.String(),
			AvgCost:  pos.AvgCost.String(),
		}
	}

	if err := p.store.Save(state); err != nil {
		p.logger.Warn("failed to persist broker state", zap.Error(err))
	}
}
