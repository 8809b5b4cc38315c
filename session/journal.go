package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/vendline/vendline/core"
)

const journalKeyPrefix = "vendline:receipt:"

// Journal persists completed and cancelled receipts through a core.Memory
// backend (in-memory by default, Redis when configured). The journal is a
// client-side convenience; the server remains the authority on every
// transaction.
type Journal struct {
	store  core.Memory
	logger core.Logger
	ttl    time.Duration
}

// NewJournal creates a journal over the given store. A zero ttl keeps
// receipts until the store itself expires them.
func NewJournal(store core.Memory, logger core.Logger, ttl time.Duration) *Journal {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Journal{store: store, logger: logger, ttl: ttl}
}

// Record appends one receipt, keyed by its timestamp.
func (j *Journal) Record(ctx context.Context, receipt *core.Receipt) error {
	if receipt == nil {
		return nil
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}

	ts := receipt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	key := journalKeyPrefix + ts.UTC().Format(time.RFC3339Nano)

	if err := j.store.Set(ctx, key, string(data), j.ttl); err != nil {
		return fmt.Errorf("storing receipt: %w", err)
	}

	j.logger.Debug("Receipt journaled", map[string]interface{}{
		"operation": "journal_record",
		"key":       key,
		"status":    string(receipt.Status),
	})
	return nil
}

// List returns journaled receipts in chronological order. Entries that no
// longer decode are skipped with a warning rather than failing the listing.
func (j *Journal) List(ctx context.Context) ([]core.Receipt, error) {
	keys, err := j.store.Keys(ctx, journalKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	sort.Strings(keys)

	receipts := make([]core.Receipt, 0, len(keys))
	for _, key := range keys {
		value, err := j.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading receipt %s: %w", key, err)
		}
		if value == "" {
			continue
		}
		var receipt core.Receipt
		if err := json.Unmarshal([]byte(value), &receipt); err != nil {
			j.logger.Warn("Skipping undecodable journal entry", map[string]interface{}{
				"operation": "journal_list",
				"key":       key,
				"error":     err.Error(),
			})
			continue
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}
