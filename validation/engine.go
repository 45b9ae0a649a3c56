package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"tirta-backend/billing"
	"tirta-backend/models"
)

// Source is the snapshot store the engine checks proposed mutations
// against. The local cache store satisfies it.
type Source interface {
	ReadingsByCustomer(customerId string) ([]models.MeterReading, error)
	DiscountsByCustomer(customerId string) ([]models.CustomerDiscount, error)
}

// Engine checks proposed meter readings, discounts and customers against
// the business rules. All findings come back as Result values; the engine
// never returns a business violation as a Go error.
type Engine struct {
	src Source
}

func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

var (
	monthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 -]{5,19}$`)
)

// ValidateMeterReading checks a proposed reading for a customer.
// excludeId skips one stored reading, so edits do not collide with
// themselves. Anomaly, zero-usage and high-usage findings are warnings
// and never block submission.
func (e *Engine) ValidateMeterReading(customerId string, newReading int64, readingDate string, excludeId string) (*Result, error) {
	res := &Result{IsValid: true}

	if newReading < 0 || newReading > billing.MaxReading {
		res.fail(CodeReadingRange, fmt.Sprintf("reading must be between 0 and %d", billing.MaxReading))
	}
	if _, err := time.Parse("2006-01-02", readingDate); err != nil {
		res.fail(CodeReadingBadDate, "reading date must be YYYY-MM-DD")
		return res, nil
	}

	readings, err := e.src.ReadingsByCustomer(customerId)
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}

	month := readingDate[:7]
	var previous *models.MeterReading
	for i := range readings {
		r := &readings[i]
		if r.Id == excludeId {
			continue
		}
		if len(r.Date) >= 7 && r.Date[:7] == month {
			res.fail(CodeReadingDuplicate, fmt.Sprintf("a reading for %s already exists in %s", customerId, month))
		}
		if r.Date < readingDate && (previous == nil || r.Date > previous.Date) {
			previous = r
		}
	}

	if previous != nil && newReading < previous.Reading {
		res.fail(CodeReadingSequential, fmt.Sprintf("reading %d is below the previous reading %d on %s", newReading, previous.Reading, previous.Date))
	}

	// Informational findings below; computed only for plausible input.
	if !res.IsValid || previous == nil {
		return res, nil
	}

	usage, _ := billing.ComputeUsage(newReading, previous.Reading)
	if msg := billing.AnomalyMessage(usage, billing.TrailingAverage(withoutReading(readings, excludeId), readingDate)); msg != "" {
		res.warn(CodeReadingAnomaly, msg)
	}
	if usage == 0 {
		res.warn(CodeReadingZeroUsage, "zero usage this month; check whether the meter was actually read")
	}
	if usage > billing.HighUsageThreshold {
		res.warn(CodeReadingHighUsage, fmt.Sprintf("usage %d exceeds %d units; possible leak", usage, billing.HighUsageThreshold))
	}
	return res, nil
}

// ValidateDiscount checks a proposed discount record. excludeId skips one
// stored discount so edits do not collide with themselves.
func (e *Engine) ValidateDiscount(d *models.CustomerDiscount, excludeId string) (*Result, error) {
	res := &Result{IsValid: true}

	hasPct := d.DiscountPercentage > 0
	hasAmt := d.DiscountAmount > 0
	switch {
	case hasPct && hasAmt:
		res.fail(CodeDiscountMultiple, "set either a percentage or a fixed amount, not both")
	case !hasPct && !hasAmt:
		res.fail(CodeDiscountNoType, "a discount needs a percentage or a fixed amount")
	}
	if d.DiscountPercentage < 0 || d.DiscountPercentage > 100 {
		res.fail(CodeDiscountPctRange, "percentage must be between 0 and 100")
	}
	if d.DiscountAmount < 0 || d.DiscountAmount > 1_000_000 {
		res.fail(CodeDiscountAmtRange, "amount must be between 0 and 1000000 rupiah")
	}
	if len(strings.TrimSpace(d.Reason)) < 5 {
		res.fail(CodeDiscountReason, "reason must be at least 5 characters")
	}
	if !monthRe.MatchString(d.DiscountMonth) {
		res.fail(CodeDiscountMonth, "discount month must be YYYY-MM")
		return res, nil
	}

	existing, err := e.src.DiscountsByCustomer(d.CustomerId)
	if err != nil {
		return nil, fmt.Errorf("load discounts: %w", err)
	}
	for i := range existing {
		other := &existing[i]
		if other.Id == excludeId || !other.IsActive {
			continue
		}
		if other.DiscountMonth == d.DiscountMonth {
			res.fail(CodeDiscountDuplicate, fmt.Sprintf("an active discount for %s already exists", d.DiscountMonth))
			break
		}
	}
	return res, nil
}

// ValidateCustomer checks format constraints on a customer record.
func (e *Engine) ValidateCustomer(c *models.Customer) *Result {
	res := &Result{IsValid: true}
	if len(strings.TrimSpace(c.Name)) < 2 {
		res.fail(CodeCustomerName, "name must be at least 2 characters")
	}
	if strings.TrimSpace(c.RT) == "" {
		res.fail(CodeCustomerRT, "RT code is required")
	}
	if c.Phone != "" && !phoneRe.MatchString(c.Phone) {
		res.fail(CodeCustomerPhone, "phone number looks malformed")
	}
	return res
}

func withoutReading(readings []models.MeterReading, excludeId string) []models.MeterReading {
	if excludeId == "" {
		return readings
	}
	out := make([]models.MeterReading, 0, len(readings))
	for _, r := range readings {
		if r.Id != excludeId {
			out = append(out, r)
		}
	}
	return out
}
