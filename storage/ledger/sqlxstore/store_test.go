package sqlxstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomopay/core/payment"
	"github.com/trezcool/masomopay/storage/ledger/sqlxstore"
	"github.com/trezcool/masomopay/tests"
)

func TestStore(t *testing.T) {
	store := sqlxstore.NewStore(testutil.OpenDB(t))
	ctx := context.Background()
	ns := "masomo.payment.status.42"
	resolvedAt := time.Date(2021, 1, 10, 9, 26, 36, 0, time.UTC)
	entry := payment.LedgerEntry{TransactionCode: "TX-0001", Status: payment.StatusSuccess, ResolvedAt: resolvedAt}

	_, err := store.GetEntry(ctx, ns, entry.TransactionCode)
	assert.Equal(t, payment.ErrNotFound, err)

	inserted, err := store.InsertEntry(ctx, ns, entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	t.Run("write once", func(t *testing.T) {
		dup := entry
		dup.Status = payment.StatusExpired
		inserted, err := store.InsertEntry(ctx, ns, dup)
		require.NoError(t, err)
		assert.False(t, inserted)

		got, err := store.GetEntry(ctx, ns, entry.TransactionCode)
		require.NoError(t, err)
		assert.Equal(t, entry.TransactionCode, got.TransactionCode)
		assert.Equal(t, payment.StatusSuccess, got.Status)
		assert.True(t, resolvedAt.Equal(got.ResolvedAt), "resolved at %v", got.ResolvedAt)
	})

	t.Run("namespaces", func(t *testing.T) {
		other := "masomo.payment.status.43"
		inserted, err := store.InsertEntry(ctx, other, payment.LedgerEntry{TransactionCode: "TX-0001", Status: payment.StatusExpired})
		require.NoError(t, err)
		assert.True(t, inserted, "same code, other namespace")
		_, err = store.InsertEntry(ctx, ns, payment.LedgerEntry{TransactionCode: "TX-0002", Status: payment.StatusExpired, ResolvedAt: resolvedAt.Add(time.Minute)})
		require.NoError(t, err)

		entries, err := store.ListNamespace(ctx, ns)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, payment.TransactionCode("TX-0001"), entries[0].TransactionCode)
		assert.Equal(t, payment.TransactionCode("TX-0002"), entries[1].TransactionCode)

		n, err := store.ClearNamespace(ctx, ns)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = store.GetEntry(ctx, ns, "TX-0001")
		assert.Equal(t, payment.ErrNotFound, err)
		got, err := store.GetEntry(ctx, other, "TX-0001")
		require.NoError(t, err)
		assert.Equal(t, payment.StatusExpired, got.Status)
		assert.True(t, got.ResolvedAt.IsZero())
	})
}

func TestStore_asLedgerBackend(t *testing.T) {
	logger := testutil.NewLogger()
	ledger := payment.NewLedger(sqlxstore.NewStore(testutil.OpenDB(t)), "masomo.payment.status.", "42", logger)
	code := testutil.NewCode()

	ledger.Set(code, payment.StatusExpired)
	ledger.Set(code, payment.StatusSuccess)

	entry, ok := ledger.Get(code)
	require.True(t, ok)
	assert.Equal(t, payment.StatusExpired, entry.Status)

	ledger.ClearAll()
	_, ok = ledger.Get(code)
	assert.False(t, ok)
	assert.Equal(t, 1, logger.Count("WARN"), logger.String())
}
