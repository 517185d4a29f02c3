// Package growth provides the public data types shared by the HydroSim
// forecasting pipeline: observed series, forecast frames and the derived
// growth summary.
package growth

import "time"

// Column names as they appear in uploaded CSV files.
const (
	ColumnDatetime = "datetime"
	ColumnDay      = "day"
	ColumnTime     = "time"
	ColumnTarget   = "LeafCount"
)

// Regressor names, in the fixed display and advisory order.
const (
	Hole        = "hole"
	Temperature = "temperature"
	Humidity    = "humidity"
	Light       = "light"
	PH          = "pH"
	EC          = "EC"
	TDS         = "TDS"
	WaterTemp   = "WaterTemp"
)

// Regressors lists the eight exogenous regressors in column order.
var Regressors = []string{Hole, Temperature, Humidity, Light, PH, EC, TDS, WaterTemp}

// Observation is one normalized sampling instant.
type Observation struct {
	Timestamp  time.Time          `json:"timestamp"`
	Target     float64            `json:"leaf_count"`
	Regressors map[string]float64 `json:"regressors"`
}

// Series is an ordered sequence of observations with strictly increasing
// timestamps and every regressor present in every entry.
type Series []Observation

// Last returns the most recent observation. The series must not be empty.
func (s Series) Last() Observation {
	return s[len(s)-1]
}

// Targets returns the target column as a slice.
func (s Series) Targets() []float64 {
	out := make([]float64, len(s))
	for i, o := range s {
		out[i] = o.Target
	}
	return out
}

// Column returns the named regressor column as a slice.
func (s Series) Column(name string) []float64 {
	out := make([]float64, len(s))
	for i, o := range s {
		out[i] = o.Regressors[name]
	}
	return out
}

// FutureRow is one row of a prediction input: a timestamp, the regressor
// values to assume at that time and an optional logistic capacity.
type FutureRow struct {
	Timestamp  time.Time          `json:"timestamp"`
	Regressors map[string]float64 `json:"regressors"`
	Cap        *float64           `json:"cap,omitempty"`
}

// Future is an ordered sequence of rows to predict.
type Future []FutureRow

// AsFuture converts observed rows into prediction input, for in-sample fits.
func (s Series) AsFuture() Future {
	out := make(Future, len(s))
	for i, o := range s {
		out[i] = FutureRow{Timestamp: o.Timestamp, Regressors: o.Regressors}
	}
	return out
}

// ForecastPoint is one row of a forecast frame.
type ForecastPoint struct {
	Timestamp  time.Time          `json:"timestamp"`
	Predicted  float64            `json:"predicted"`
	Lower      float64            `json:"lower"`
	Upper      float64            `json:"upper"`
	Cap        *float64           `json:"cap,omitempty"`
	Regressors map[string]float64 `json:"regressors"`
}

// Frame is an ordered sequence of forecast points.
type Frame []ForecastPoint

// MaxPredicted returns the largest predicted value in the frame and false
// when the frame is empty.
func (f Frame) MaxPredicted() (float64, bool) {
	if len(f) == 0 {
		return 0, false
	}
	maxVal := f[0].Predicted
	for _, p := range f[1:] {
		if p.Predicted > maxVal {
			maxVal = p.Predicted
		}
	}
	return maxVal, true
}

// Window returns the regressor values of the frame as a series, so frame
// slices can be fed to the same analytics as observed data.
func (f Frame) Window() Series {
	out := make(Series, len(f))
	for i, p := range f {
		out[i] = Observation{Timestamp: p.Timestamp, Target: p.Predicted, Regressors: p.Regressors}
	}
	return out
}

// Range is an agronomically ideal band for a regressor.
type Range struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies within the band (inclusive).
func (r Range) Contains(v float64) bool {
	return v >= r.Lower && v <= r.Upper
}

// Summary is the derived interpretation of a forecast.
type Summary struct {
	LastObserved  float64  `json:"last_observed"`
	MaxForecast   float64  `json:"max_forecast"`
	GrowthPercent *float64 `json:"growth_percent"`
	HorizonDays   int      `json:"horizon_days"`
}

// Advisory flags a regressor whose mean falls outside its optimal band.
type Advisory struct {
	Regressor string  `json:"regressor"`
	Mean      float64 `json:"mean"`
	Band      Range   `json:"band"`
	Message   string  `json:"message"`
}

// Stats holds descriptive statistics for one column.
type Stats struct {
	Column string  `json:"column"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// DailyAverage is the mean leaf count observed on one calendar day.
type DailyAverage struct {
	Date      string  `json:"date"`
	LeafCount float64 `json:"leaf_count"`
}

// Severity levels for sensor outliers.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outlier is a sensor reading far from the column mean of its series.
type Outlier struct {
	Timestamp time.Time `json:"timestamp"`
	Column    string    `json:"column"`
	Value     float64   `json:"value"`
	ZScore    float64   `json:"z_score"`
	Severity  string    `json:"severity"`
}
