// Package insight turns statistics into operator-facing findings: counters
// above their normal high-water mark and the root-cause categories the
// counters point at.
package insight

import (
	"math"

	"github.com/strrl/logsentry/pkg/stats"
)

// Mark is the highest value a counter reaches in a normal log.
type Mark struct {
	Key   stats.Key
	Value int
}

// HighWaterMarks is the fixed table of normal upper bounds, in report order.
var HighWaterMarks = []Mark{
	{stats.ErrorCount, 50},
	{stats.WarningCount, 20},
	{stats.SSHCount, 100},
	{stats.TimeoutCount, 10},
	{stats.FailedCount, 10},
}

// Deviation is a counter strictly above its high-water mark.
type Deviation struct {
	Parameter stats.Key `json:"parameter"`
	Value     int       `json:"value"`
	Threshold int       `json:"normal_threshold"`
	Percent   float64   `json:"deviation_percent"`
}

// Deviations lists every counter of s above its mark, in table order.
// Percent is rounded to one decimal.
func Deviations(s stats.Statistics) []Deviation {
	var out []Deviation
	for _, m := range HighWaterMarks {
		v := s.Get(m.Key)
		if v <= m.Value {
			continue
		}
		pct := 100.0
		if m.Value > 0 {
			pct = float64(v-m.Value) / float64(m.Value) * 100
		}
		out = append(out, Deviation{
			Parameter: m.Key,
			Value:     v,
			Threshold: m.Value,
			Percent:   math.Round(pct*10) / 10,
		})
	}
	return out
}
