package broker

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
)

const stateFileName = "broker.json"

// stateStore persists the paper account so restarts keep cash and positions.
type stateStore struct {
	path string
}

func newStateStore(dir string) (*stateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create broker state dir")
	}
	return &stateStore{path: filepath.Join(dir, stateFileName)}, nil
}

// accountState is the serialized paper account. Decimals are stored as
// strings so the file round-trips exactly.
type accountState struct {
	Cash      string                    `json:"cash"`
	Positions map[string]storedPosition `json:"positions"`
}

type storedPosition struct {
	Quantity string `json:"quantity"`
	AvgCost  string `json:"avg_cost"`
}

// Load reads the account from disk, nil when no state was saved yet.
func (s *stateStore) Load() (*accountState, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read broker state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state accountState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode broker state")
	}

	return &state, nil
}

// Save writes the account to disk atomically via temp file.
func (s *stateStore) Save(state accountState) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode broker state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write broker state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist broker state")
	}

	return nil
}

func (sp storedPosition) toPosition(ticker string) (domain.BrokerPosition, error) {
	quantity, err := decimal.NewFromString(sp.Quantity)
	if err != nil {
		return domain.BrokerPosition{}, errors.Wrapf(err, "decode %s quantity", ticker)
	}

	avgCost, err := decimal.NewFromString(sp.AvgCost)
	if err != nil {
		return domain.BrokerPosition{}, errors.Wrapf(err, "decode %s avg cost", ticker)
	}

	return domain.BrokerPosition{Ticker: ticker, Quantity: quantity, AvgCost: avgCost}, nil
}
