package session

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendline/vendline/core"
)

func TestJournalRecordAndList(t *testing.T) {
	store := core.NewMemoryStore()
	journal := NewJournal(store, nil, 0)
	ctx := context.Background()

	first := &core.Receipt{
		Status:      core.StatusCompleted,
		TotalAmount: decimal.NewFromFloat(1.00),
		Timestamp:   time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
	second := &core.Receipt{
		Status:    core.StatusCancelled,
		Timestamp: time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC),
	}

	require.NoError(t, journal.Record(ctx, first))
	require.NoError(t, journal.Record(ctx, second))

	receipts, err := journal.List(ctx)
	require.NoError(t, err)
	require.Len(t, receipts, 2)

	// Chronological order by timestamp key.
	assert.Equal(t, core.StatusCompleted, receipts[0].Status)
	assert.Equal(t, core.StatusCancelled, receipts[1].Status)
	assert.True(t, receipts[0].TotalAmount.Equal(decimal.NewFromFloat(1.00)))
}

func TestJournalNilReceipt(t *testing.T) {
	journal := NewJournal(core.NewMemoryStore(), nil, 0)
	require.NoError(t, journal.Record(context.Background(), nil))

	receipts, err := journal.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestJournalSkipsUndecodableEntries(t *testing.T) {
	store := core.NewMemoryStore()
	journal := NewJournal(store, nil, 0)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, journalKeyPrefix+"garbage", "{not json", 0))
	require.NoError(t, journal.Record(ctx, &core.Receipt{
		Status:    core.StatusCompleted,
		Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}))

	receipts, err := journal.List(ctx)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, core.StatusCompleted, receipts[0].Status)
}

func TestJournalZeroTimestampStillRecorded(t *testing.T) {
	journal := NewJournal(core.NewMemoryStore(), nil, 0)
	ctx := context.Background()

	require.NoError(t, journal.Record(ctx, &core.Receipt{Status: core.StatusCompleted}))

	receipts, err := journal.List(ctx)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
}
