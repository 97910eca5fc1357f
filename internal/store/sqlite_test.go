package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestMigrate_Idempotent(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestRecordTransaction_InsertThenUpdate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	created := time.Unix(1700000000, 0)
	id := uint64(3)

	require.NoError(t, s.RecordTransaction(ctx, Transaction{
		ID:        "t1",
		Account:   "0xabc",
		Method:    "markAsRead",
		EmailID:   &id,
		Status:    TxPending,
		CreatedAt: created,
		UpdatedAt: created,
	}))
	require.NoError(t, s.RecordTransaction(ctx, Transaction{
		ID:        "t1",
		Account:   "0xabc",
		Method:    "markAsRead",
		TxHash:    "0xhash",
		Status:    TxSubmitted,
		UpdatedAt: created.Add(time.Second),
	}))
	require.NoError(t, s.RecordTransaction(ctx, Transaction{
		ID:        "t1",
		Account:   "0xabc",
		Method:    "markAsRead",
		Status:    TxConfirmed,
		UpdatedAt: created.Add(2 * time.Second),
	}))

	txs, err := s.ListTransactions(ctx, "0xabc", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	got := txs[0]
	assert.Equal(t, TxConfirmed, got.Status)
	assert.Equal(t, "0xhash", got.TxHash)
	require.NotNil(t, got.EmailID)
	assert.Equal(t, uint64(3), *got.EmailID)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.UpdatedAt.Equal(created.Add(2*time.Second)))
}

func TestListTransactions_ScopedAndOrdered(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	for i, acct := range []string{"0xa", "0xb", "0xa", "0xa"} {
		require.NoError(t, s.RecordTransaction(ctx, Transaction{
			ID:        string(rune('a' + i)),
			Account:   acct,
			Method:    "deleteEmail",
			Status:    TxFailed,
			Error:     "boom",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	txs, err := s.ListTransactions(ctx, "0xa", 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "d", txs[0].ID)
	assert.Equal(t, "c", txs[1].ID)
	assert.Nil(t, txs[0].EmailID)
	assert.Equal(t, "boom", txs[0].Error)

	none, err := s.ListTransactions(ctx, "0xz", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
