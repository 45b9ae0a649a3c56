package billing

// Tariff for the neighborhood utility, in whole rupiah. The first
// TierThreshold units of a month are charged at UnitRate, anything above
// at TensRate, and AbonemenFee is added to every bill regardless of usage.
const (
	UnitRate      int64 = 1500
	TensRate      int64 = 2000
	AbonemenFee   int64 = 5000
	TierThreshold int64 = 10
)

const (
	// MaxReading is the largest value a mechanical meter dial can show.
	MaxReading int64 = 999999

	// HighUsageThreshold marks a month worth flagging to the operator.
	HighUsageThreshold int64 = 100

	// AnomalyFactor: usage beyond this multiple of the trailing average
	// is flagged as anomalous.
	AnomalyFactor = 2.0
)
