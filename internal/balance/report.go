package balance

import (
	"math"
	"sort"

	"github.com/Rhymond/go-money"
)

// Report is the pairwise balance summary returned by the verification
// endpoint and by the client-side query API. Amounts are in major units,
// rounded to the currency's minor digit count.
type Report struct {
	// Balances maps currency code to the signed amount, positive meaning
	// the queried person owes the owner.
	Balances map[string]float64 `json:"balances"`

	// IsSettled is true when no currency bucket survived the epsilon drop.
	IsSettled bool `json:"is_settled"`

	// PrimaryAmount and PrimaryCurrency identify the bucket with the
	// largest magnitude, ties broken by currency code.
	PrimaryAmount   float64 `json:"primary_amount"`
	PrimaryCurrency string  `json:"primary_currency,omitempty"`
}

// BuildReport converts minor-unit buckets from Pairwise into a Report.
func BuildReport(buckets map[string]float64) Report {
	report := Report{Balances: make(map[string]float64, len(buckets))}
	if len(buckets) == 0 {
		report.IsSettled = true
		return report
	}

	codes := make([]string, 0, len(buckets))
	for code := range buckets {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var primaryAbs float64
	for _, code := range codes {
		major := toMajor(buckets[code], code)
		report.Balances[code] = major
		if abs := math.Abs(major); abs > primaryAbs {
			primaryAbs = abs
			report.PrimaryAmount = major
			report.PrimaryCurrency = code
		}
	}
	return report
}

// toMajor rounds a minor-unit amount to a whole number of minor units and
// scales it to major units using the currency's exponent. Unknown currency
// codes fall back to two minor digits.
func toMajor(minor float64, code string) float64 {
	fraction := 2
	if c := money.GetCurrency(code); c != nil {
		fraction = c.Fraction
	}
	scale := math.Pow10(fraction)
	return math.Round(minor) / scale
}
