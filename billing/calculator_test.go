package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tirta-backend/billing"
	"tirta-backend/models"
)

func reading(id, customerId string, value int64, date string) models.MeterReading {
	return models.MeterReading{Id: id, CustomerId: customerId, Reading: value, Date: date}
}

func TestCalculate_TierBoundary(t *testing.T) {
	atTen := billing.Calculate(10, nil)
	assert.Equal(t, int64(15000), atTen.UnitPrice)
	assert.Equal(t, int64(0), atTen.TensPrice)
	assert.Equal(t, int64(20000), atTen.BaseAmount)

	atEleven := billing.Calculate(11, nil)
	assert.Equal(t, int64(15000), atEleven.UnitPrice)
	assert.Equal(t, int64(2000), atEleven.TensPrice)
	assert.Equal(t, int64(22000), atEleven.BaseAmount)
}

func TestCalculate_NoDiscount(t *testing.T) {
	bill := billing.Calculate(25, nil)
	assert.Equal(t, int64(15000), bill.UnitPrice)
	assert.Equal(t, int64(30000), bill.TensPrice)
	assert.Equal(t, int64(5000), bill.AbonemenFee)
	assert.Equal(t, int64(50000), bill.BaseAmount)
	assert.Equal(t, int64(0), bill.DiscountAmount)
	assert.Equal(t, int64(50000), bill.FinalAmount)
}

func TestCalculate_PercentageDiscount(t *testing.T) {
	bill := billing.Calculate(25, &models.CustomerDiscount{
		DiscountPercentage: 20,
		Reason:             "warga lansia",
		IsActive:           true,
	})
	assert.Equal(t, int64(10000), bill.DiscountAmount)
	assert.Equal(t, int64(40000), bill.FinalAmount)
}

func TestCalculate_PercentageRoundsHalfUp(t *testing.T) {
	// base 22000, 12.34% => 2714.8 => 2715
	bill := billing.Calculate(11, &models.CustomerDiscount{
		DiscountPercentage: 12.34,
		IsActive:           true,
	})
	assert.Equal(t, int64(22000), bill.BaseAmount)
	assert.Equal(t, int64(2715), bill.DiscountAmount)
	assert.Equal(t, int64(19285), bill.FinalAmount)
}

func TestCalculate_FixedDiscountNeverNegative(t *testing.T) {
	bill := billing.Calculate(25, &models.CustomerDiscount{
		DiscountAmount: 60000,
		Reason:         "kompensasi kebocoran",
		IsActive:       true,
	})
	assert.Equal(t, int64(50000), bill.DiscountAmount)
	assert.Equal(t, int64(0), bill.FinalAmount)
}

func TestCalculate_InactiveDiscountIgnored(t *testing.T) {
	bill := billing.Calculate(25, &models.CustomerDiscount{
		DiscountPercentage: 50,
		IsActive:           false,
	})
	assert.Equal(t, int64(0), bill.DiscountAmount)
	assert.Equal(t, int64(50000), bill.FinalAmount)
}

func TestCalculate_MonotonicInUsage(t *testing.T) {
	discount := &models.CustomerDiscount{DiscountPercentage: 15, IsActive: true}
	var prev int64 = -1
	for usage := int64(0); usage <= 120; usage++ {
		bill := billing.Calculate(usage, discount)
		require.GreaterOrEqual(t, bill.FinalAmount, prev, "usage %d", usage)
		prev = bill.FinalAmount
	}
}

func TestComputeUsage_ClampsNegative(t *testing.T) {
	usage, clamped := billing.ComputeUsage(90, 100)
	assert.Equal(t, int64(0), usage)
	assert.True(t, clamped)

	usage, clamped = billing.ComputeUsage(110, 100)
	assert.Equal(t, int64(10), usage)
	assert.False(t, clamped)
}

func TestTrailingAverage_FiveMonthWindow(t *testing.T) {
	readings := []models.MeterReading{
		reading("r1", "c1", 100, "2025-01-15"),
		reading("r2", "c1", 110, "2025-02-15"),
		reading("r3", "c1", 125, "2025-03-15"),
		reading("r4", "c1", 130, "2025-04-15"),
		reading("r5", "c1", 140, "2025-05-15"),
		reading("r6", "c1", 150, "2025-06-15"),
	}

	avg := billing.TrailingAverage(readings, "2025-07-15")
	require.NotNil(t, avg)
	assert.InDelta(t, 10.0, *avg, 0.0001)

	// 21 > 200% of 10 triggers the anomaly; 20 does not.
	assert.NotEmpty(t, billing.AnomalyMessage(21, avg))
	assert.Empty(t, billing.AnomalyMessage(20, avg))
}

func TestTrailingAverage_DiscardsNegativeDeltas(t *testing.T) {
	readings := []models.MeterReading{
		reading("r1", "c1", 100, "2025-01-15"),
		reading("r2", "c1", 90, "2025-02-15"), // meter swap
		reading("r3", "c1", 100, "2025-03-15"),
	}

	avg := billing.TrailingAverage(readings, "2025-04-15")
	require.NotNil(t, avg)
	assert.InDelta(t, 10.0, *avg, 0.0001)
}

func TestTrailingAverage_NilWhenInsufficient(t *testing.T) {
	assert.Nil(t, billing.TrailingAverage(nil, "2025-04-15"))

	one := []models.MeterReading{reading("r1", "c1", 100, "2025-01-15")}
	assert.Nil(t, billing.TrailingAverage(one, "2025-04-15"))

	// Readings on/after the cutoff never count.
	two := []models.MeterReading{
		reading("r1", "c1", 100, "2025-01-15"),
		reading("r2", "c1", 110, "2025-04-15"),
	}
	assert.Nil(t, billing.TrailingAverage(two, "2025-04-15"))
}

func TestTrailingAverage_UsesAtMostSixReadings(t *testing.T) {
	// Oldest deltas are huge; they must fall outside the window.
	readings := []models.MeterReading{
		reading("r0", "c1", 0, "2024-10-15"),
		reading("r1", "c1", 500, "2024-11-15"),
		reading("r2", "c1", 1000, "2024-12-15"),
		reading("r3", "c1", 1010, "2025-01-15"),
		reading("r4", "c1", 1020, "2025-02-15"),
		reading("r5", "c1", 1030, "2025-03-15"),
		reading("r6", "c1", 1040, "2025-04-15"),
		reading("r7", "c1", 1050, "2025-05-15"),
		reading("r8", "c1", 1060, "2025-06-15"),
	}

	avg := billing.TrailingAverage(readings, "2025-07-15")
	require.NotNil(t, avg)
	assert.InDelta(t, 10.0, *avg, 0.0001)
}
