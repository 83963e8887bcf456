// Package journal keeps a write-ahead log of committed trades so the web
// layer can replay and stream them.
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	segmentLimit = 100
	maxSegments  = 10

	tradeKeyPrefix = "trade_"
)

// TradeRecord is one committed buy or sell as written to the journal.
// Decimal values are stored as strings to avoid float precision loss.
type TradeRecord struct {
	OrderID   string    `json:"order_id"`
	Metal     string    `json:"metal"`
	Action    string    `json:"action"`
	Grams     string    `json:"grams"`
	Rupees    string    `json:"rupees"`
	GST       string    `json:"gst,omitempty"`
	Total     string    `json:"total,omitempty"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"ts"`
}

// Record pairs a trade with its WAL index for incremental reads.
type Record struct {
	Index uint64
	Trade TradeRecord
}

// WALStore persists trade records in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed trade journal in dir.
func NewWALStore(dir string) (*WALStore, error) {
	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "trade_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the trade record to the journal.
func (s *WALStore) Save(record TradeRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("trade journal is not initialized")
	}
	if record.OrderID == "" {
		return fmt.Errorf("trade record order id is required")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal trade record")
	}

	key := fmt.Sprintf("%s%s", tradeKeyPrefix, record.OrderID)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// EventsAfter returns all trade records written after the provided index.
func (s *WALStore) EventsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("trade journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, tradeKeyPrefix) {
			continue
		}

		var trade TradeRecord
		if err := json.Unmarshal(payload, &trade); err != nil {
			return nil, errors.Wrap(err, "decode trade record")
		}
		records = append(records, Record{Index: idx, Trade: trade})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
