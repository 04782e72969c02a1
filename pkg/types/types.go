// Package domain defines the core types shared by the SLO reporter.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/donaldgifford/slo-reporter/pkg/reduce"
)

// DateLayout is the layout used for run dates in object keys and CSV rows.
const DateLayout = "2006-01-02"

// UnavailableMarker is how an unavailable value renders in reports.
const UnavailableMarker = "NaN"

type valueState uint8

const (
	stateMeasured valueState = iota
	stateNoData
	stateUnavailable
)

// Value is the outcome of evaluating one indicator. It is either a measured
// number, a zero produced by an empty result vector, or unavailable.
type Value struct {
	n     float64
	state valueState
}

// Measured returns a Value holding f.
func Measured(f float64) Value { return Value{n: f, state: stateMeasured} }

// NoData returns the Value of a query that returned an empty vector.
// Numerically it is 0.
func NoData() Value { return Value{state: stateNoData} }

// Unavailable returns the Value of a failed retrieval or computation.
func Unavailable() Value { return Value{state: stateUnavailable} }

// Float returns the numeric value and true, or 0 and false when unavailable.
func (v Value) Float() (float64, bool) {
	if v.state == stateUnavailable {
		return 0, false
	}
	return v.n, true
}

// IsUnavailable reports whether v carries no number.
func (v Value) IsUnavailable() bool { return v.state == stateUnavailable }

// IsNoData reports whether v came from an empty result vector.
func (v Value) IsNoData() bool { return v.state == stateNoData }

// String renders v with the shortest exact representation, or NaN.
func (v Value) String() string {
	if v.state == stateUnavailable {
		return UnavailableMarker
	}
	return strconv.FormatFloat(v.n, 'f', -1, 64)
}

// MarshalJSON encodes unavailable values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.state == stateUnavailable {
		return []byte("null"), nil
	}
	return json.Marshal(v.n)
}

// UnmarshalJSON decodes null as unavailable. A decoded zero is measured; the
// empty-vector distinction does not survive JSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Unavailable()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decoding value: %w", err)
	}
	*v = Measured(f)
	return nil
}

// Map applies fn to the number held by v, propagating unavailability.
func (v Value) Map(fn func(float64) float64) Value {
	f, ok := v.Float()
	if !ok {
		return v
	}
	return Measured(fn(f))
}

// Values maps column or query names to their values.
type Values map[string]Value

// Get returns the value for name, or Unavailable when it is missing.
func (vs Values) Get(name string) Value {
	v, ok := vs[name]
	if !ok {
		return Unavailable()
	}
	return v
}

// Query is one named expression sent to the metrics backend.
type Query struct {
	Name   string        `json:"name"`
	Expr   string        `json:"expr"`
	Range  bool          `json:"range"`
	Policy reduce.Policy `json:"policy"`
}

// Window is the evaluation period shared by every query in a run.
type Window struct {
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end"`
	Step  time.Duration `json:"step"`
	Days  int           `json:"days"`
}

// NewWindow returns the window of days ending at end.
func NewWindow(end time.Time, days int, step time.Duration) Window {
	return Window{
		Start: end.AddDate(0, 0, -days),
		End:   end,
		Step:  step,
		Days:  days,
	}
}

// Interval renders the window length as a PromQL range duration.
func (w Window) Interval() string {
	return fmt.Sprintf("%dd", w.Days)
}

// PriorDate returns the run date of the previous period.
func (w Window) PriorDate() time.Time {
	return w.End.AddDate(0, 0, -w.Days)
}

// StartMillis returns the window start as unix milliseconds.
func (w Window) StartMillis() int64 { return w.Start.UnixMilli() }

// EndMillis returns the window end as unix milliseconds.
func (w Window) EndMillis() int64 { return w.End.UnixMilli() }

// Row is one persisted snapshot of an indicator class for a run date.
type Row struct {
	Class  string    `json:"class"`
	Date   time.Time `json:"date"`
	Values Values    `json:"values"`
}

// Sample is one raw indicator value published to the Pushgateway.
type Sample struct {
	Class string
	Name  string
	Value Value
}
