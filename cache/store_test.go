package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tirta-backend/cache"
	"tirta-backend/models"
)

func newTestStore(t *testing.T) *cache.Store {
	store, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SnapshotReplaceIsWholesale(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.ReplaceCustomers([]models.Customer{
		{Id: "c1", Name: "Budi", RT: "RT01", Active: true},
		{Id: "c2", Name: "Siti", RT: "RT02", Active: true},
	}))

	customers, err := store.Customers()
	require.NoError(t, err)
	assert.Len(t, customers, 2)

	// A later download fully replaces, never merges.
	require.NoError(t, store.ReplaceCustomers([]models.Customer{
		{Id: "c3", Name: "Agus", RT: "RT01", Active: true},
	}))
	customers, err = store.Customers()
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "c3", customers[0].Id)
}

func TestStore_ReadingsByCustomer(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceReadings([]models.MeterReading{
		{Id: "r1", CustomerId: "c1", Reading: 100, Date: "2025-05-10"},
		{Id: "r2", CustomerId: "c2", Reading: 300, Date: "2025-05-11"},
		{Id: "r3", CustomerId: "c1", Reading: 120, Date: "2025-06-10"},
	}))

	readings, err := store.ReadingsByCustomer("c1")
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, "r1", readings[0].Id)
	assert.Equal(t, "r3", readings[1].Id)
}

func TestStore_ActiveDiscount(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceDiscounts([]models.CustomerDiscount{
		{Id: "d1", CustomerId: "c1", DiscountPercentage: 20, DiscountMonth: "2025-06", IsActive: true, CreatedAt: time.Now()},
		{Id: "d2", CustomerId: "c1", DiscountAmount: 5000, DiscountMonth: "2025-07", IsActive: false, CreatedAt: time.Now()},
	}))

	d, err := store.ActiveDiscount("c1", "2025-06")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "d1", d.Id)

	// Inactive records never match.
	d, err = store.ActiveDiscount("c1", "2025-07")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = store.ActiveDiscount("c2", "2025-06")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestStore_QueueLifecycle(t *testing.T) {
	store := newTestStore(t)

	first := cache.QueueEntry{Id: "e1", Kind: cache.KindReading, Data: []byte(`{"id":"e1"}`), Timestamp: time.Now()}
	second := cache.QueueEntry{Id: "e2", Kind: cache.KindCustomer, Data: []byte(`{"id":"e2"}`), Timestamp: time.Now().Add(time.Second)}
	require.NoError(t, store.Enqueue(first))
	require.NoError(t, store.Enqueue(second))

	pending, err := store.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "e1", pending[0].Id, "oldest first")

	n, err := store.QueueDepth()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	attempts, err := store.BumpAttempts("e1")
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	attempts, err = store.BumpAttempts("e1")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	require.NoError(t, store.RemoveQueued("e2"))
	pending, err = store.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Attempts)
}

func TestStore_EnqueueSameIdKeepsLatestPayload(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Enqueue(cache.QueueEntry{Id: "r1", Kind: cache.KindReading, Data: []byte(`{"reading":100}`), Timestamp: time.Now()}))
	require.NoError(t, store.Enqueue(cache.QueueEntry{Id: "r1", Kind: cache.KindReading, Data: []byte(`{"reading":120}`), Timestamp: time.Now()}))

	pending, err := store.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.JSONEq(t, `{"reading":120}`, string(pending[0].Data))
}

func TestStore_DeadLetterMovesEntry(t *testing.T) {
	store := newTestStore(t)

	entry := cache.QueueEntry{Id: "e1", Kind: cache.KindDiscount, Data: []byte(`{}`), Timestamp: time.Now(), Attempts: 3}
	require.NoError(t, store.Enqueue(entry))
	require.NoError(t, store.DeadLetter(entry, "remote refused"))

	n, err := store.QueueDepth()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	letters, err := store.DeadLetters()
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "e1", letters[0].Id)
	assert.Equal(t, "remote refused", letters[0].Reason)
	assert.Equal(t, 3, letters[0].Attempts)

	count, err := store.DeadLetterCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_LastSync(t *testing.T) {
	store := newTestStore(t)

	_, ok := store.LastSync()
	assert.False(t, ok)

	now := time.Now()
	require.NoError(t, store.SetLastSync(now))
	got, ok := store.LastSync()
	require.True(t, ok)
	assert.WithinDuration(t, now, got, time.Second)
}

func TestStore_ConcurrentAccessSharesOneDatabase(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", n)
			assert.NoError(t, store.UpsertCustomer(models.Customer{Id: id, Name: "Warga", RT: "RT01", Active: true}))
			_, err := store.Customers()
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	customers, err := store.Customers()
	require.NoError(t, err)
	assert.Len(t, customers, 8)
}

func TestStore_IndependentlyClearable(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.ReplaceCustomers([]models.Customer{{Id: "c1", Name: "Budi", RT: "RT01"}}))
	require.NoError(t, store.ReplaceReadings([]models.MeterReading{{Id: "r1", CustomerId: "c1", Reading: 1, Date: "2025-06-01"}}))
	require.NoError(t, store.Enqueue(cache.QueueEntry{Id: "e1", Kind: cache.KindCustomer, Data: []byte(`{}`), Timestamp: time.Now()}))

	require.NoError(t, store.ClearReadings())
	readings, err := store.Readings()
	require.NoError(t, err)
	assert.Empty(t, readings)

	customers, err := store.Customers()
	require.NoError(t, err)
	assert.Len(t, customers, 1)

	require.NoError(t, store.ClearQueue())
	n, err := store.QueueDepth()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
