package billing

import (
	"fmt"
	"sort"

	"tirta-backend/models"
)

// UsageCalculation is the derived consumption for one reading pair.
// Recomputed on demand, never persisted.
type UsageCalculation struct {
	CustomerId      string `json:"customer_id"`
	CurrentReading  int64  `json:"current_reading"`
	PreviousReading int64  `json:"previous_reading"`
	HasPrevious     bool   `json:"has_previous"`
	Usage           int64  `json:"usage"`
	Clamped         bool   `json:"clamped"`
	Anomaly         string `json:"anomaly,omitempty"`
}

// ComputeUsage derives consumption from a reading pair. A negative delta
// (meter replaced or rolled back) is clamped to zero and flagged via
// Clamped; blocking such readings is the validation layer's job, not ours.
func ComputeUsage(current, previous int64) (usage int64, clamped bool) {
	usage = current - previous
	if usage < 0 {
		return 0, true
	}
	return usage, false
}

// TrailingAverage computes the average monthly usage over the most recent
// readings strictly before the given date: up to 6 readings, giving up to
// 5 adjacent deltas; negative deltas are discarded. Returns nil when fewer
// than 2 prior readings exist or no usable delta remains. Callers must
// treat nil as "no anomaly check possible", not as zero.
func TrailingAverage(readings []models.MeterReading, before string) *float64 {
	prior := make([]models.MeterReading, 0, len(readings))
	for _, r := range readings {
		if r.Date < before {
			prior = append(prior, r)
		}
	}
	if len(prior) < 2 {
		return nil
	}

	// Newest first.
	sort.Slice(prior, func(i, j int) bool { return prior[i].Date > prior[j].Date })
	if len(prior) > 6 {
		prior = prior[:6]
	}

	var sum int64
	var n int
	for i := 0; i < len(prior)-1; i++ {
		delta := prior[i].Reading - prior[i+1].Reading
		if delta < 0 {
			continue
		}
		sum += delta
		n++
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}

// AnomalyMessage returns a non-empty message when usage exceeds
// AnomalyFactor times the trailing average. avg may be nil.
func AnomalyMessage(usage int64, avg *float64) string {
	if avg == nil || *avg <= 0 {
		return ""
	}
	if float64(usage) > AnomalyFactor**avg {
		return fmt.Sprintf("usage %d exceeds %.0f%% of the 5-month average %.1f", usage, AnomalyFactor*100, *avg)
	}
	return ""
}
