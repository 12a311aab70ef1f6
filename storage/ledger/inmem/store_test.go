package inmem

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomopay/core/payment"
)

func TestStore(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	ns := "masomo.payment.status.42"
	entry := payment.LedgerEntry{TransactionCode: "TX-0001", Status: payment.StatusSuccess, ResolvedAt: time.Now().UTC()}

	_, err := store.GetEntry(ctx, ns, entry.TransactionCode)
	assert.Equal(t, payment.ErrNotFound, err)

	inserted, err := store.InsertEntry(ctx, ns, entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := entry
	dup.Status = payment.StatusExpired
	inserted, err = store.InsertEntry(ctx, ns, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := store.GetEntry(ctx, ns, entry.TransactionCode)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	_, err = store.GetEntry(ctx, ns+"3", entry.TransactionCode)
	assert.Equal(t, payment.ErrNotFound, err)

	require.NoError(t, store.DeleteNamespace(ctx, ns))
	assert.Equal(t, 0, store.Len(ns))
	require.NoError(t, store.DeleteNamespace(ctx, ns), "deleting an empty namespace")
}

func TestStore_concurrentInserts(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := payment.StatusSuccess
			if i%2 == 0 {
				status = payment.StatusExpired
			}
			inserted, err := store.InsertEntry(ctx, "ns", payment.LedgerEntry{TransactionCode: "TX-0001", Status: status})
			assert.NoError(t, err)
			if inserted {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, store.Len("ns"))
}
