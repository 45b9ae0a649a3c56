package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tirta-backend/models"
)

// BillingCalculation is the tiered price breakdown for one month of usage.
type BillingCalculation struct {
	CustomerId     string `json:"customer_id"`
	BillingMonth   string `json:"billing_month"`
	Usage          int64  `json:"usage"`
	UnitUsage      int64  `json:"unit_usage"`
	TensUsage      int64  `json:"tens_usage"`
	UnitPrice      int64  `json:"unit_price"`
	TensPrice      int64  `json:"tens_price"`
	AbonemenFee    int64  `json:"abonemen_fee"`
	BaseAmount     int64  `json:"base_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	DiscountReason string `json:"discount_reason,omitempty"`
	FinalAmount    int64  `json:"final_amount"`
}

// Source is the snapshot store the calculator reads from when the caller
// does not supply a previous reading or discount itself.
type Source interface {
	ReadingsByCustomer(customerId string) ([]models.MeterReading, error)
	ActiveDiscount(customerId, month string) (*models.CustomerDiscount, error)
}

// Calculator derives usage and billing amounts from cached snapshots.
type Calculator struct {
	src Source
}

func NewCalculator(src Source) *Calculator {
	return &Calculator{src: src}
}

// CalculateUsage derives consumption for a submitted reading. When previous
// is nil the latest cached reading before date is used. A customer with no
// prior reading at all gets zero usage; the first reading only establishes
// the baseline.
func (calc *Calculator) CalculateUsage(customerId string, current int64, date string, previous *int64) (*UsageCalculation, error) {
	out := &UsageCalculation{
		CustomerId:     customerId,
		CurrentReading: current,
	}

	readings, err := calc.src.ReadingsByCustomer(customerId)
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}

	if previous == nil {
		if prev := latestBefore(readings, date); prev != nil {
			p := prev.Reading
			previous = &p
		}
	}
	if previous == nil {
		out.Usage = 0
		return out, nil
	}

	out.PreviousReading = *previous
	out.HasPrevious = true
	out.Usage, out.Clamped = ComputeUsage(current, *previous)
	out.Anomaly = AnomalyMessage(out.Usage, TrailingAverage(readings, date))
	return out, nil
}

// CalculateBilling prices the usage for the month of billingDate
// (YYYY-MM-DD) and applies the single active discount, if any.
func (calc *Calculator) CalculateBilling(customerId string, usage int64, billingDate string) (*BillingCalculation, error) {
	if len(billingDate) < 7 {
		return nil, fmt.Errorf("invalid billing date %q", billingDate)
	}
	month := billingDate[:7]

	discount, err := calc.src.ActiveDiscount(customerId, month)
	if err != nil {
		return nil, fmt.Errorf("load discount: %w", err)
	}

	out := Calculate(usage, discount)
	out.CustomerId = customerId
	out.BillingMonth = month
	return out, nil
}

// Calculate applies the tariff and at most one discount to a usage figure.
// Pure; discount may be nil.
func Calculate(usage int64, discount *models.CustomerDiscount) *BillingCalculation {
	if usage < 0 {
		usage = 0
	}

	unitUsage := usage
	if unitUsage > TierThreshold {
		unitUsage = TierThreshold
	}
	tensUsage := usage - TierThreshold
	if tensUsage < 0 {
		tensUsage = 0
	}

	out := &BillingCalculation{
		Usage:       usage,
		UnitUsage:   unitUsage,
		TensUsage:   tensUsage,
		UnitPrice:   unitUsage * UnitRate,
		TensPrice:   tensUsage * TensRate,
		AbonemenFee: AbonemenFee,
	}
	out.BaseAmount = out.UnitPrice + out.TensPrice + out.AbonemenFee

	if discount != nil && discount.IsActive {
		out.DiscountAmount = discountFor(out.BaseAmount, discount)
		out.DiscountReason = discount.Reason
	}

	out.FinalAmount = out.BaseAmount - out.DiscountAmount
	if out.FinalAmount < 0 {
		out.FinalAmount = 0
	}
	return out
}

// discountFor resolves the rupiah value of a discount against a base
// amount. Percentage discounts round half away from zero; fixed discounts
// never exceed the base.
func discountFor(base int64, d *models.CustomerDiscount) int64 {
	if d.DiscountPercentage > 0 {
		amt := decimal.NewFromInt(base).
			Mul(decimal.NewFromFloat(d.DiscountPercentage)).
			Div(decimal.NewFromInt(100)).
			Round(0)
		return amt.IntPart()
	}
	if d.DiscountAmount > 0 {
		if d.DiscountAmount > base {
			return base
		}
		return d.DiscountAmount
	}
	return 0
}

func latestBefore(readings []models.MeterReading, date string) *models.MeterReading {
	var best *models.MeterReading
	for i := range readings {
		r := &readings[i]
		if r.Date >= date {
			continue
		}
		if best == nil || r.Date > best.Date {
			best = r
		}
	}
	return best
}
