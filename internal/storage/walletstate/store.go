// Package walletstate persists the simulated ledger so restarts keep
// balances and pending settlements.
package walletstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const fileName = "wallet.json"

// Store reads and writes ledger state as a JSON file.
type Store struct {
	path string
}

// NewStore creates the state directory if needed and returns a store backed
// by dir/wallet.json.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create wallet state dir")
	}
	return &Store{path: filepath.Join(dir, fileName)}, nil
}

// State is the serializable ledger snapshot. Decimal values are stored as
// strings to avoid float precision loss.
type State struct {
	Cash    string            `json:"cash"`
	Metals  map[string]string `json:"metals"`
	Pending []PendingCredit   `json:"pending,omitempty"`
}

// PendingCredit is a sell settlement that has not matured yet.
type PendingCredit struct {
	OrderID   string    `json:"order_id"`
	Amount    string    `json:"amount"`
	SettlesAt time.Time `json:"settles_at"`
}

// Load reads ledger state from disk. A missing or empty file yields nil.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read wallet state")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode wallet state")
	}
	return &state, nil
}

// Save writes ledger state to disk atomically via a temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode wallet state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write wallet state temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist wallet state")
	}
	return nil
}

// ParseDecimal converts a stored string into a decimal, treating empty as
// zero.
func ParseDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}
