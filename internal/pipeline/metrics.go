package pipeline

import (
	"math"
	"sort"

	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/RyanBlaney/sonido-sonar/logging"
	"gonum.org/v1/gonum/stat"
)

// MetricsCalculator computes run statistics
type MetricsCalculator struct {
	logger logging.Logger
}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator(logger logging.Logger) *MetricsCalculator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &MetricsCalculator{
		logger: logger,
	}
}

// Stats represents statistical measures of a per-recording quantity
type Stats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
	Count  int     `json:"count"`
}

// CalculateStats calculates statistical measures for a dataset; nil for no data
func (mc *MetricsCalculator) CalculateStats(data []float64) *Stats {
	if len(data) == 0 {
		return nil
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mean, std := stat.PopMeanStdDev(data, nil)

	stats := &Stats{
		Count:  len(data),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Mean:   mean,
		StdDev: std,
	}

	return sanitizeStats(stats)
}

// sanitizeStats removes infinite and NaN values to keep the summary serialisable
func sanitizeStats(stats *Stats) *Stats {
	for _, v := range []*float64{&stats.Mean, &stats.Median, &stats.P95, &stats.Min, &stats.Max, &stats.StdDev} {
		if math.IsInf(*v, 0) || math.IsNaN(*v) {
			*v = 0
		}
	}
	return stats
}

// CategorizeError maps a failure to a metric tag
func CategorizeError(err error) string {
	if err == nil {
		return "none"
	}
	switch soundscape.KindOf(err) {
	case soundscape.KindConfiguration:
		return "configuration"
	case soundscape.KindInputResolution:
		return "input"
	case soundscape.KindRecordingIO:
		return "io"
	case soundscape.KindDataFormat:
		return "format"
	default:
		return "other"
	}
}
