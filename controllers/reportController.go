package controllers

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"tirta-backend/pipeline"
	"tirta-backend/utils"
)

type ReportController struct {
	Pipeline *pipeline.Pipeline
}

func NewReportController(p *pipeline.Pipeline) *ReportController {
	return &ReportController{Pipeline: p}
}

// Billing renders the monthly billing report with RT-level rollups.
func (ctl *ReportController) Billing(c *fiber.Ctx) error {
	year, month, err := yearMonth(c)
	if err != nil {
		return err
	}

	report, err := ctl.Pipeline.MonthlyReport(year, month)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// Transform runs the pipeline with ad-hoc filters for the dashboard.
func (ctl *ReportController) Transform(c *fiber.Ctx) error {
	filters := pipeline.Filters{
		RT:       c.Query("rt"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
	}

	result, err := ctl.Pipeline.Transform(filters)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// BillingCSV exports the monthly report rows for the printed receipts.
func (ctl *ReportController) BillingCSV(c *fiber.Ctx) error {
	year, month, err := yearMonth(c)
	if err != nil {
		return err
	}

	report, err := ctl.Pipeline.MonthlyReport(year, month)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="billing-%04d-%02d.csv"`, year, month))

	w := csv.NewWriter(c.Response().BodyWriter())
	defer w.Flush()

	header := []string{
		"customer_name", "rt", "phone",
		"previous_reading", "current_reading", "usage",
		"unit_price", "tens_price", "abonemen_fee", "base_amount",
		"discount_amount", "discount_reason", "final_amount", "final_amount_formatted",
		"billing_month", "billing_date",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range report.Rows {
		record := []string{
			row.CustomerName, row.RT, row.Phone,
			strconv.FormatInt(row.PreviousReading, 10),
			strconv.FormatInt(row.CurrentReading, 10),
			strconv.FormatInt(row.Usage, 10),
			strconv.FormatInt(row.UnitPrice, 10),
			strconv.FormatInt(row.TensPrice, 10),
			strconv.FormatInt(row.AbonemenFee, 10),
			strconv.FormatInt(row.BaseAmount, 10),
			strconv.FormatInt(row.DiscountAmount, 10),
			row.DiscountReason,
			strconv.FormatInt(row.FinalAmount, 10),
			utils.FormatRupiah(row.FinalAmount),
			row.BillingMonth, row.BillingDate,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func yearMonth(c *fiber.Ctx) (int, int, error) {
	year := utils.ParseIntDefault(c.Query("year"), 0)
	month := utils.ParseIntDefault(c.Query("month"), 0)
	if year < 2000 || month < 1 || month > 12 {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "year and month query parameters are required")
	}
	return year, month, nil
}
