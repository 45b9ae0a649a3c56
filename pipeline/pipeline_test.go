package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tirta-backend/billing"
	"tirta-backend/cache"
	"tirta-backend/models"
	"tirta-backend/pipeline"
)

func newTestPipeline(t *testing.T) (*pipeline.Pipeline, *cache.Store) {
	store, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return pipeline.New(store, billing.NewCalculator(store)), store
}

func seedNeighborhood(t *testing.T, store *cache.Store) {
	t.Helper()
	require.NoError(t, store.ReplaceCustomers([]models.Customer{
		{Id: "c1", Name: "Budi", RT: "RT01", Active: true},
		{Id: "c2", Name: "Siti", RT: "RT01", Active: true},
		{Id: "c3", Name: "Joko", RT: "RT02", Active: true},
	}))
	require.NoError(t, store.ReplaceReadings([]models.MeterReading{
		// May baselines.
		{Id: "r1a", CustomerId: "c1", Reading: 100, Date: "2025-05-15"},
		{Id: "r2a", CustomerId: "c2", Reading: 200, Date: "2025-05-15"},
		{Id: "r3a", CustomerId: "c3", Reading: 300, Date: "2025-05-15"},
		// June readings: usage 8, 25 and 15.
		{Id: "r1b", CustomerId: "c1", Reading: 108, Date: "2025-06-15"},
		{Id: "r2b", CustomerId: "c2", Reading: 225, Date: "2025-06-15"},
		{Id: "r3b", CustomerId: "c3", Reading: 315, Date: "2025-06-15"},
	}))
}

func TestMonthlyReport_RowsAndAggregates(t *testing.T) {
	p, store := newTestPipeline(t)
	seedNeighborhood(t, store)

	report, err := p.MonthlyReport(2025, 6)
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	assert.Empty(t, report.Errors)

	byCustomer := map[string]pipeline.Row{}
	for _, row := range report.Rows {
		byCustomer[row.CustomerId] = row
	}

	// Usage 8 stays inside the first tier.
	assert.Equal(t, int64(8), byCustomer["c1"].Usage)
	assert.Equal(t, int64(8*1500+5000), byCustomer["c1"].FinalAmount)
	// Usage 25 spills into the excess tier.
	assert.Equal(t, int64(25), byCustomer["c2"].Usage)
	assert.Equal(t, int64(10*1500+15*2000+5000), byCustomer["c2"].FinalAmount)
	assert.Equal(t, "2025-06", byCustomer["c2"].BillingMonth)
	assert.Equal(t, int64(100), byCustomer["c1"].PreviousReading)

	require.Len(t, report.Summaries, 2)
	assert.Equal(t, "RT01", report.Summaries[0].RT)
	assert.Equal(t, 2, report.Summaries[0].Customers)
	assert.Equal(t, int64(33), report.Summaries[0].TotalUsage)
	assert.Equal(t, byCustomer["c1"].FinalAmount+byCustomer["c2"].FinalAmount, report.Summaries[0].TotalBilled)
	assert.Equal(t, "RT02", report.Summaries[1].RT)
	assert.Equal(t, 1, report.Summaries[1].Customers)

	assert.Equal(t, 3, report.Metrics.Rows)
	assert.Equal(t, int64(48), report.Metrics.TotalUsage)
	assert.Equal(t, report.Summaries[0].TotalBilled+report.Summaries[1].TotalBilled, report.Metrics.TotalBilled)
	assert.InDelta(t, 16.0, report.Metrics.AverageUsage, 0.001)
}

func TestMonthlyReport_AppliesActiveDiscount(t *testing.T) {
	p, store := newTestPipeline(t)
	seedNeighborhood(t, store)
	require.NoError(t, store.ReplaceDiscounts([]models.CustomerDiscount{
		{Id: "d1", CustomerId: "c2", DiscountPercentage: 50, Reason: "keluarga kurang mampu", DiscountMonth: "2025-06", IsActive: true},
		{Id: "d2", CustomerId: "c1", DiscountAmount: 10000, Reason: "bulan lain", DiscountMonth: "2025-07", IsActive: true},
	}))

	report, err := p.MonthlyReport(2025, 6)
	require.NoError(t, err)

	byCustomer := map[string]pipeline.Row{}
	for _, row := range report.Rows {
		byCustomer[row.CustomerId] = row
	}

	base := int64(10*1500 + 15*2000 + 5000) // 50000
	assert.Equal(t, int64(25000), byCustomer["c2"].DiscountAmount)
	assert.Equal(t, base-25000, byCustomer["c2"].FinalAmount)
	assert.Equal(t, "keluarga kurang mampu", byCustomer["c2"].DiscountReason)

	// c1's discount targets July and must not leak into June.
	assert.Equal(t, int64(0), byCustomer["c1"].DiscountAmount)

	assert.Equal(t, int64(25000), report.Metrics.TotalDiscounted)
}

func TestMonthlyReport_ExcludesOtherMonths(t *testing.T) {
	p, store := newTestPipeline(t)
	seedNeighborhood(t, store)

	report, err := p.MonthlyReport(2025, 5)
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	for _, row := range report.Rows {
		assert.Equal(t, "2025-05", row.BillingMonth)
		// May readings are each customer's first, so they only set the baseline.
		assert.Equal(t, int64(0), row.Usage)
	}
}

func TestMonthlyReport_RejectsInvalidMonth(t *testing.T) {
	p, _ := newTestPipeline(t)
	_, err := p.MonthlyReport(2025, 13)
	assert.Error(t, err)
}

func TestTransform_FilterByRT(t *testing.T) {
	p, store := newTestPipeline(t)
	seedNeighborhood(t, store)

	res, err := p.Transform(pipeline.Filters{RT: "RT02", DateFrom: "2025-06-01", DateTo: "2025-06-30"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "c3", res.Rows[0].CustomerId)
	assert.Equal(t, 1, res.Metrics.Customers)
}

func TestTransform_FilterByCustomerIds(t *testing.T) {
	p, store := newTestPipeline(t)
	seedNeighborhood(t, store)

	res, err := p.Transform(pipeline.Filters{CustomerIds: []string{"c1", "c3"}})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 4, "two readings each for the two selected customers")
	for _, row := range res.Rows {
		assert.NotEqual(t, "c2", row.CustomerId)
	}
}

func TestTransform_EmptyCacheYieldsEmptyResult(t *testing.T) {
	p, _ := newTestPipeline(t)

	res, err := p.Transform(pipeline.Filters{})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, 0, res.Metrics.Rows)
	assert.Zero(t, res.Metrics.AverageUsage)
}
