// Package pipeline batches the usage and billing calculators over the
// cached customer and reading snapshots, producing the rows and RT-level
// aggregates behind printed receipts and the dashboard.
package pipeline

import (
	"fmt"
	"sort"
	"time"

	"tirta-backend/billing"
	"tirta-backend/cache"
)

// Filters narrows the customer/reading set fed through the calculators.
// Zero values mean "no filter".
type Filters struct {
	RT          string   `json:"rt,omitempty"`
	CustomerIds []string `json:"customer_ids,omitempty"`
	DateFrom    string   `json:"date_from,omitempty"` // YYYY-MM-DD inclusive
	DateTo      string   `json:"date_to,omitempty"`   // YYYY-MM-DD inclusive
}

// Row is one billed (customer, reading) pair, shaped for the CSV/print
// collaborators.
type Row struct {
	CustomerId      string `json:"customer_id"`
	CustomerName    string `json:"customer_name"`
	RT              string `json:"rt"`
	Phone           string `json:"phone"`
	ReadingId       string `json:"reading_id"`
	PreviousReading int64  `json:"previous_reading"`
	CurrentReading  int64  `json:"current_reading"`
	Usage           int64  `json:"usage"`
	UnitPrice       int64  `json:"unit_price"`
	TensPrice       int64  `json:"tens_price"`
	AbonemenFee     int64  `json:"abonemen_fee"`
	BaseAmount      int64  `json:"base_amount"`
	DiscountAmount  int64  `json:"discount_amount"`
	DiscountReason  string `json:"discount_reason,omitempty"`
	FinalAmount     int64  `json:"final_amount"`
	BillingMonth    string `json:"billing_month"`
	BillingDate     string `json:"billing_date"`
	Anomaly         string `json:"anomaly,omitempty"`
}

// RowError records a row that could not be billed. One bad row never
// aborts the batch.
type RowError struct {
	CustomerId string `json:"customer_id"`
	ReadingId  string `json:"reading_id,omitempty"`
	Message    string `json:"message"`
}

// Metrics aggregates a batch run.
type Metrics struct {
	Customers       int           `json:"customers"`
	Rows            int           `json:"rows"`
	TotalUsage      int64         `json:"total_usage"`
	TotalBilled     int64         `json:"total_billed"`
	TotalDiscounted int64         `json:"total_discounted"`
	AverageUsage    float64       `json:"average_usage"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Result of one transform run.
type Result struct {
	Rows    []Row      `json:"data"`
	Metrics Metrics    `json:"metrics"`
	Errors  []RowError `json:"errors,omitempty"`
}

// RTSummary is the per-neighborhood-unit rollup for collection tracking.
type RTSummary struct {
	RT              string `json:"rt"`
	Customers       int    `json:"customers"`
	TotalUsage      int64  `json:"total_usage"`
	TotalBilled     int64  `json:"total_billed"`
	TotalDiscounted int64  `json:"total_discounted"`
}

// Report is the monthly billing report: rows plus RT buckets.
type Report struct {
	Year      int         `json:"year"`
	Month     int         `json:"month"`
	Rows      []Row       `json:"data"`
	Summaries []RTSummary `json:"rt_summaries"`
	Metrics   Metrics     `json:"metrics"`
	Errors    []RowError  `json:"errors,omitempty"`
}

// Pipeline joins cached snapshots with the calculators.
type Pipeline struct {
	store *cache.Store
	calc  *billing.Calculator
}

func New(store *cache.Store, calc *billing.Calculator) *Pipeline {
	return &Pipeline{store: store, calc: calc}
}

// Transform runs every filtered (customer, reading) pair through the
// usage and billing calculators, capturing per-row errors.
func (p *Pipeline) Transform(filters Filters) (*Result, error) {
	started := time.Now()

	customers, err := p.store.Customers()
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	readings, err := p.store.Readings()
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}

	wantCustomer := map[string]bool{}
	for _, id := range filters.CustomerIds {
		wantCustomer[id] = true
	}

	byCustomer := map[string][]int{}
	for i, r := range readings {
		if filters.DateFrom != "" && r.Date < filters.DateFrom {
			continue
		}
		if filters.DateTo != "" && r.Date > filters.DateTo {
			continue
		}
		byCustomer[r.CustomerId] = append(byCustomer[r.CustomerId], i)
	}

	res := &Result{}

	for _, c := range customers {
		if filters.RT != "" && c.RT != filters.RT {
			continue
		}
		if len(wantCustomer) > 0 && !wantCustomer[c.Id] {
			continue
		}
		res.Metrics.Customers++

		for _, idx := range byCustomer[c.Id] {
			r := readings[idx]

			usage, err := p.calc.CalculateUsage(c.Id, r.Reading, r.Date, nil)
			if err != nil {
				res.Errors = append(res.Errors, RowError{CustomerId: c.Id, ReadingId: r.Id, Message: err.Error()})
				continue
			}
			bill, err := p.calc.CalculateBilling(c.Id, usage.Usage, r.Date)
			if err != nil {
				res.Errors = append(res.Errors, RowError{CustomerId: c.Id, ReadingId: r.Id, Message: err.Error()})
				continue
			}

			res.Rows = append(res.Rows, Row{
				CustomerId:      c.Id,
				CustomerName:    c.Name,
				RT:              c.RT,
				Phone:           c.Phone,
				ReadingId:       r.Id,
				PreviousReading: usage.PreviousReading,
				CurrentReading:  r.Reading,
				Usage:           bill.Usage,
				UnitPrice:       bill.UnitPrice,
				TensPrice:       bill.TensPrice,
				AbonemenFee:     bill.AbonemenFee,
				BaseAmount:      bill.BaseAmount,
				DiscountAmount:  bill.DiscountAmount,
				DiscountReason:  bill.DiscountReason,
				FinalAmount:     bill.FinalAmount,
				BillingMonth:    bill.BillingMonth,
				BillingDate:     r.Date,
				Anomaly:         usage.Anomaly,
			})
			res.Metrics.TotalUsage += bill.Usage
			res.Metrics.TotalBilled += bill.FinalAmount
			res.Metrics.TotalDiscounted += bill.DiscountAmount
		}
	}

	res.Metrics.Rows = len(res.Rows)
	if len(res.Rows) > 0 {
		res.Metrics.AverageUsage = float64(res.Metrics.TotalUsage) / float64(len(res.Rows))
	}
	res.Metrics.Elapsed = time.Since(started)
	return res, nil
}

// MonthlyReport narrows the transform to one calendar month and buckets
// the rows by RT.
func (p *Pipeline) MonthlyReport(year, month int) (*Report, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)

	res, err := p.Transform(Filters{
		DateFrom: monthStart.Format("2006-01-02"),
		DateTo:   monthEnd.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	buckets := map[string]*RTSummary{}
	for _, row := range res.Rows {
		b := buckets[row.RT]
		if b == nil {
			b = &RTSummary{RT: row.RT}
			buckets[row.RT] = b
		}
		b.Customers++
		b.TotalUsage += row.Usage
		b.TotalBilled += row.FinalAmount
		b.TotalDiscounted += row.DiscountAmount
	}

	summaries := make([]RTSummary, 0, len(buckets))
	for _, b := range buckets {
		summaries = append(summaries, *b)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].RT < summaries[j].RT })

	return &Report{
		Year:      year,
		Month:     month,
		Rows:      res.Rows,
		Summaries: summaries,
		Metrics:   res.Metrics,
		Errors:    res.Errors,
	}, nil
}
