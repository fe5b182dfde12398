package insight

import (
	"math"
	"time"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

// Sample is one present value of a metric together with its timestamp.
type Sample struct {
	At    time.Time
	Value float64
}

// Series is the ordered list of present values of one metric in a window.
type Series []Sample

// SeriesOf extracts the non-nil values picked by field, keeping window order.
func SeriesOf(readings []entities.Reading, field func(entities.Reading) *float64) Series {
	out := make(Series, 0, len(readings))
	for _, r := range readings {
		if v := field(r); v != nil {
			out = append(out, Sample{At: r.Timestamp, Value: *v})
		}
	}
	return out
}

func temperatureOf(r entities.Reading) *float64 { return r.Temperature }
func soilOf(r entities.Reading) *float64        { return r.SoilMoisture }

// Values returns the bare values of the series.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, smp := range s {
		out[i] = smp.Value
	}
	return out
}

// First returns the oldest sample. The series must not be empty.
func (s Series) First() Sample { return s[0] }

// Last returns the newest sample. The series must not be empty.
func (s Series) Last() Sample { return s[len(s)-1] }

// Mean returns the arithmetic mean; ok is false for an empty series.
func (s Series) Mean() (mean float64, ok bool) {
	return Mean(s.Values())
}

// RatePerHour is the linear change between the first and last samples per hour.
// ok is false when the series spans no time.
func (s Series) RatePerHour() (rate float64, ok bool) {
	if len(s) < 2 {
		return 0, false
	}
	return RatePerHour(s.First().Value, s.Last().Value, s.First().At, s.Last().At)
}

// Mean returns the arithmetic mean of values; ok is false when values is empty.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

// MinMax returns the smallest and largest value; ok is false when values is empty.
func MinMax(values []float64) (minV, maxV float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	minV, maxV = values[0], values[0]
	for _, v := range values[1:] {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	return minV, maxV, true
}

// RatePerHour returns (last-first)/hours between from and to.
// ok is false for a zero or negative span.
func RatePerHour(first, last float64, from, to time.Time) (float64, bool) {
	hours := HoursBetween(from, to)
	if hours <= 0 {
		return 0, false
	}
	return (last - first) / hours, true
}

// HoursBetween returns the signed number of hours from a to b.
func HoursBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours()
}

// StdDev is the sample standard deviation (n-1). Fewer than two values give 0.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean, _ := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// windowSpanHours is the span covered by a sorted window.
func windowSpanHours(readings []entities.Reading) float64 {
	if len(readings) < 2 {
		return 0
	}
	return HoursBetween(readings[0].Timestamp, readings[len(readings)-1].Timestamp)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
