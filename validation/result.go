package validation

// Issue codes. Errors block submission; warnings only inform the form layer.
const (
	CodeReadingRange       = "READING_RANGE"
	CodeReadingDuplicate   = "READING_DUPLICATE_MONTH"
	CodeReadingSequential  = "READING_SEQUENTIAL_VIOLATION"
	CodeReadingAnomaly     = "READING_ANOMALY"
	CodeReadingZeroUsage   = "READING_ZERO_USAGE"
	CodeReadingHighUsage   = "READING_HIGH_USAGE"
	CodeReadingBadDate     = "READING_BAD_DATE"
	CodeDiscountMultiple   = "DISCOUNT_MULTIPLE_TYPES"
	CodeDiscountNoType     = "DISCOUNT_NO_TYPE"
	CodeDiscountPctRange   = "DISCOUNT_PCT_RANGE"
	CodeDiscountAmtRange   = "DISCOUNT_AMOUNT_RANGE"
	CodeDiscountReason     = "DISCOUNT_REASON"
	CodeDiscountMonth      = "DISCOUNT_MONTH_FORMAT"
	CodeDiscountDuplicate  = "DISCOUNT_DUPLICATE_MONTH"
	CodeCustomerName       = "CUSTOMER_NAME"
	CodeCustomerRT         = "CUSTOMER_RT"
	CodeCustomerPhone      = "CUSTOMER_PHONE"
)

// Issue is one business-rule finding. Issues are returned, never thrown;
// the form layer decides what blocks and what merely displays.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result of validating one proposed mutation.
type Result struct {
	IsValid  bool    `json:"is_valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *Result) fail(code, message string) {
	r.IsValid = false
	r.Errors = append(r.Errors, Issue{Code: code, Message: message})
}

func (r *Result) warn(code, message string) {
	r.Warnings = append(r.Warnings, Issue{Code: code, Message: message})
}
