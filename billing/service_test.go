package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tirta-backend/billing"
	"tirta-backend/cache"
	"tirta-backend/models"
)

func newTestCalculator(t *testing.T) (*billing.Calculator, *cache.Store) {
	store, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return billing.NewCalculator(store), store
}

func TestCalculator_UsageFromCachedPrevious(t *testing.T) {
	calc, store := newTestCalculator(t)
	require.NoError(t, store.ReplaceReadings([]models.MeterReading{
		reading("r1", "c1", 100, "2025-05-10"),
		reading("r2", "c1", 120, "2025-06-10"),
	}))

	usage, err := calc.CalculateUsage("c1", 145, "2025-07-10", nil)
	require.NoError(t, err)
	assert.True(t, usage.HasPrevious)
	assert.Equal(t, int64(120), usage.PreviousReading)
	assert.Equal(t, int64(25), usage.Usage)
	assert.False(t, usage.Clamped)
}

func TestCalculator_ExplicitPreviousWins(t *testing.T) {
	calc, store := newTestCalculator(t)
	require.NoError(t, store.ReplaceReadings([]models.MeterReading{
		reading("r1", "c1", 100, "2025-05-10"),
	}))

	prev := int64(130)
	usage, err := calc.CalculateUsage("c1", 120, "2025-06-10", &prev)
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.Usage)
	assert.True(t, usage.Clamped)
}

func TestCalculator_FirstReadingIsBaseline(t *testing.T) {
	calc, _ := newTestCalculator(t)

	usage, err := calc.CalculateUsage("c1", 250, "2025-06-10", nil)
	require.NoError(t, err)
	assert.False(t, usage.HasPrevious)
	assert.Equal(t, int64(0), usage.Usage)
}

func TestCalculator_BillingPicksActiveDiscountForMonth(t *testing.T) {
	calc, store := newTestCalculator(t)
	require.NoError(t, store.ReplaceDiscounts([]models.CustomerDiscount{
		{
			Id: "d1", CustomerId: "c1", DiscountPercentage: 20,
			Reason: "warga lansia", DiscountMonth: "2025-06",
			IsActive: true, CreatedAt: time.Now(),
		},
		{
			Id: "d2", CustomerId: "c1", DiscountAmount: 40000,
			Reason: "bulan lalu", DiscountMonth: "2025-05",
			IsActive: true, CreatedAt: time.Now(),
		},
	}))

	bill, err := calc.CalculateBilling("c1", 25, "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, "2025-06", bill.BillingMonth)
	assert.Equal(t, int64(10000), bill.DiscountAmount)
	assert.Equal(t, int64(40000), bill.FinalAmount)
}

func TestCalculator_BillingWithoutDiscount(t *testing.T) {
	calc, _ := newTestCalculator(t)

	bill, err := calc.CalculateBilling("c1", 25, "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), bill.FinalAmount)
}
