package sli

import (
	"fmt"
	"math"

	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// NotAvailable is rendered for a change that cannot be computed.
const NotAvailable = "N/A"

// FormatCount renders v as an integer count.
func FormatCount(v domain.Value) string {
	f, ok := v.Float()
	if !ok {
		return domain.UnavailableMarker
	}
	return fmt.Sprintf("%d", int64(f))
}

// FormatPercent renders v as a percentage with two decimals.
func FormatPercent(v domain.Value) string {
	f, ok := v.Float()
	if !ok {
		return domain.UnavailableMarker
	}
	return fmt.Sprintf("%.2f%%", f)
}

// FormatDecimal renders v with two decimals.
func FormatDecimal(v domain.Value) string {
	f, ok := v.Float()
	if !ok {
		return domain.UnavailableMarker
	}
	return fmt.Sprintf("%.2f", f)
}

// Change returns current minus the prior row's value for column. The result
// is unavailable when there is no prior row or either side is unavailable.
func Change(current domain.Value, prior *domain.Row, column string) domain.Value {
	if prior == nil {
		return domain.Unavailable()
	}
	prev, ok := prior.Values.Get(column).Float()
	if !ok {
		return domain.Unavailable()
	}
	return current.Map(func(f float64) float64 { return f - prev })
}

// FormatChange renders a change signed, as "+5" or "-3" for whole numbers and
// "+1.25" otherwise. An unavailable change renders as N/A.
func FormatChange(change domain.Value) string {
	f, ok := change.Float()
	if !ok || math.IsNaN(f) {
		return NotAvailable
	}
	if f == math.Trunc(f) {
		return fmt.Sprintf("%+d", int64(f))
	}
	return fmt.Sprintf("%+.2f", f)
}

// round rounds f to places decimals.
func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

// truncAbs mirrors the integer conversion applied to counters and rates.
func truncAbs(f float64) float64 {
	return math.Abs(math.Trunc(f))
}
