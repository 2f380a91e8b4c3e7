package decisions

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/folio/internal/domain"
)

func tempStore(t *testing.T) (*WALStore, string) {
	t.Helper()

	dir, err := os.MkdirTemp("", "folio-decisions-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, dir
}

func event(ticker string, action domain.Action, conviction int) domain.DecisionEvent {
	return domain.NewDecisionEvent("cycle-1", domain.Decision{
		Ticker:     ticker,
		Action:     action,
		Reason:     domain.ReasonBandReversionBuy,
		Conviction: conviction,
		Notional:   decimal.NewFromInt(5000),
	}, "182.50", true, nil)
}

func TestSaveAndReplay(t *testing.T) {
	store, _ := tempStore(t)

	require.NoError(t, store.Save(event("AAPL", domain.ActionBuy, 80)))
	require.NoError(t, store.Save(event("MSFT", domain.ActionHold, 55)))

	records, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "AAPL", records[0].Event.Ticker)
	assert.Equal(t, "buy", records[0].Event.Action)
	assert.Equal(t, 80, records[0].Event.Conviction)
	assert.Equal(t, "MSFT", records[1].Event.Ticker)
	assert.Greater(t, records[1].Index, records[0].Index)
}

func TestEventsAfterCursor(t *testing.T) {
	store, _ := tempStore(t)

	require.NoError(t, store.Save(event("AAPL", domain.ActionBuy, 80)))
	cursor := store.CurrentIndex()
	require.NoError(t, store.Save(event("NVDA", domain.ActionSell, 100)))

	records, err := store.EventsAfter(cursor)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "NVDA", records[0].Event.Ticker)

	records, err = store.EventsAfter(store.CurrentIndex())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveRejectsMissingTicker(t *testing.T) {
	store, _ := tempStore(t)

	err := store.Save(domain.DecisionEvent{Action: "hold"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticker is required")
}

func TestEventsSurviveReopen(t *testing.T) {
	store, dir := tempStore(t)

	require.NoError(t, store.Save(event("AAPL", domain.ActionBuy, 80)))
	require.NoError(t, store.Close())

	again, err := NewWALStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { again.Close() })

	records, err := again.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "AAPL", records[0].Event.Ticker)
}
