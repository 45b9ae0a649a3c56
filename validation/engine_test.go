package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tirta-backend/cache"
	"tirta-backend/models"
	"tirta-backend/validation"
)

func newTestEngine(t *testing.T) (*validation.Engine, *cache.Store) {
	store, err := cache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return validation.NewEngine(store), store
}

func seedReadings(t *testing.T, store *cache.Store, readings ...models.MeterReading) {
	t.Helper()
	require.NoError(t, store.ReplaceReadings(readings))
}

func hasCode(issues []validation.Issue, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

func TestValidateMeterReading_Range(t *testing.T) {
	engine, _ := newTestEngine(t)

	res, err := engine.ValidateMeterReading("c1", -1, "2025-06-10", "")
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.True(t, hasCode(res.Errors, validation.CodeReadingRange))

	res, err = engine.ValidateMeterReading("c1", 1_000_000, "2025-06-10", "")
	require.NoError(t, err)
	assert.True(t, hasCode(res.Errors, validation.CodeReadingRange))

	res, err = engine.ValidateMeterReading("c1", 999999, "2025-06-10", "")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidateMeterReading_DuplicateMonth(t *testing.T) {
	engine, store := newTestEngine(t)
	seedReadings(t, store,
		models.MeterReading{Id: "r1", CustomerId: "c1", Reading: 100, Date: "2025-06-05"},
	)

	res, err := engine.ValidateMeterReading("c1", 110, "2025-06-20", "")
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.True(t, hasCode(res.Errors, validation.CodeReadingDuplicate))

	// Another customer in the same month is fine.
	res, err = engine.ValidateMeterReading("c2", 110, "2025-06-20", "")
	require.NoError(t, err)
	assert.True(t, res.IsValid)

	// Editing the existing reading itself does not collide.
	res, err = engine.ValidateMeterReading("c1", 110, "2025-06-20", "r1")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidateMeterReading_SequentialViolation(t *testing.T) {
	engine, store := newTestEngine(t)
	seedReadings(t, store,
		models.MeterReading{Id: "r1", CustomerId: "c1", Reading: 100, Date: "2025-05-05"},
	)

	res, err := engine.ValidateMeterReading("c1", 90, "2025-06-05", "")
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.True(t, hasCode(res.Errors, validation.CodeReadingSequential))

	res, err = engine.ValidateMeterReading("c1", 100, "2025-06-05", "")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidateMeterReading_Warnings(t *testing.T) {
	engine, store := newTestEngine(t)
	seedReadings(t, store,
		models.MeterReading{Id: "r1", CustomerId: "c1", Reading: 100, Date: "2025-01-15"},
		models.MeterReading{Id: "r2", CustomerId: "c1", Reading: 110, Date: "2025-02-15"},
		models.MeterReading{Id: "r3", CustomerId: "c1", Reading: 125, Date: "2025-03-15"},
		models.MeterReading{Id: "r4", CustomerId: "c1", Reading: 130, Date: "2025-04-15"},
		models.MeterReading{Id: "r5", CustomerId: "c1", Reading: 140, Date: "2025-05-15"},
		models.MeterReading{Id: "r6", CustomerId: "c1", Reading: 150, Date: "2025-06-15"},
	)

	// Average usage is 10; 21 units is anomalous but still valid.
	res, err := engine.ValidateMeterReading("c1", 171, "2025-07-15", "")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.True(t, hasCode(res.Warnings, validation.CodeReadingAnomaly))

	res, err = engine.ValidateMeterReading("c1", 170, "2025-07-15", "")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.False(t, hasCode(res.Warnings, validation.CodeReadingAnomaly))

	// Zero usage informs, never blocks.
	res, err = engine.ValidateMeterReading("c1", 150, "2025-07-15", "")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.True(t, hasCode(res.Warnings, validation.CodeReadingZeroUsage))

	// Very high usage informs, never blocks.
	res, err = engine.ValidateMeterReading("c1", 260, "2025-07-15", "")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.True(t, hasCode(res.Warnings, validation.CodeReadingHighUsage))
}

func TestValidateDiscount_Exclusivity(t *testing.T) {
	engine, _ := newTestEngine(t)

	res, err := engine.ValidateDiscount(&models.CustomerDiscount{
		CustomerId:         "c1",
		DiscountPercentage: 10,
		DiscountAmount:     5000,
		Reason:             "dobel tipe",
		DiscountMonth:      "2025-06",
	}, "")
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.True(t, hasCode(res.Errors, validation.CodeDiscountMultiple))

	res, err = engine.ValidateDiscount(&models.CustomerDiscount{
		CustomerId:    "c1",
		Reason:        "tanpa tipe",
		DiscountMonth: "2025-06",
	}, "")
	require.NoError(t, err)
	assert.True(t, hasCode(res.Errors, validation.CodeDiscountNoType))
}

func TestValidateDiscount_FieldRules(t *testing.T) {
	engine, _ := newTestEngine(t)

	res, err := engine.ValidateDiscount(&models.CustomerDiscount{
		CustomerId:         "c1",
		DiscountPercentage: 150,
		Reason:             "ok",
		DiscountMonth:      "06-2025",
	}, "")
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.True(t, hasCode(res.Errors, validation.CodeDiscountPctRange))
	assert.True(t, hasCode(res.Errors, validation.CodeDiscountReason))
	assert.True(t, hasCode(res.Errors, validation.CodeDiscountMonth))

	res, err = engine.ValidateDiscount(&models.CustomerDiscount{
		CustomerId:     "c1",
		DiscountAmount: 2_000_000,
		Reason:         "terlalu besar",
		DiscountMonth:  "2025-06",
	}, "")
	require.NoError(t, err)
	assert.True(t, hasCode(res.Errors, validation.CodeDiscountAmtRange))
}

func TestValidateDiscount_DuplicateActiveMonth(t *testing.T) {
	engine, store := newTestEngine(t)
	require.NoError(t, store.ReplaceDiscounts([]models.CustomerDiscount{
		{Id: "d1", CustomerId: "c1", DiscountPercentage: 10, Reason: "sudah ada", DiscountMonth: "2025-06", IsActive: true},
		{Id: "d2", CustomerId: "c1", DiscountPercentage: 10, Reason: "nonaktif", DiscountMonth: "2025-07", IsActive: false},
	}))

	proposed := &models.CustomerDiscount{
		CustomerId:         "c1",
		DiscountPercentage: 20,
		Reason:             "diskon kedua",
		DiscountMonth:      "2025-06",
	}

	res, err := engine.ValidateDiscount(proposed, "")
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.True(t, hasCode(res.Errors, validation.CodeDiscountDuplicate))

	// Editing the clashing record itself is allowed.
	res, err = engine.ValidateDiscount(proposed, "d1")
	require.NoError(t, err)
	assert.True(t, res.IsValid)

	// An inactive discount does not block the month.
	proposed.DiscountMonth = "2025-07"
	res, err = engine.ValidateDiscount(proposed, "")
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidateCustomer(t *testing.T) {
	engine, _ := newTestEngine(t)

	res := engine.ValidateCustomer(&models.Customer{Name: "x", RT: "", Phone: "abc"})
	assert.False(t, res.IsValid)
	assert.True(t, hasCode(res.Errors, validation.CodeCustomerName))
	assert.True(t, hasCode(res.Errors, validation.CodeCustomerRT))
	assert.True(t, hasCode(res.Errors, validation.CodeCustomerPhone))

	res = engine.ValidateCustomer(&models.Customer{Name: "Budi Santoso", RT: "RT03", Phone: "0812-3456-789"})
	assert.True(t, res.IsValid)
}
