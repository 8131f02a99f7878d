package app

import (
	"strconv"
	"syscall"

	"github.com/RyanBlaney/graphical-soundscape/internal/pipeline"
	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/tunein/go-logging/v7/pkg/logger"
	"github.com/tunein/go-logging/v7/pkg/logger/logtypes"
	"github.com/tunein/go-logging/v7/pkg/rootcollector"
	"github.com/tunein/go-logging/v7/pkg/rootlogger"
	"go.uber.org/multierr"
)

// collectRunMetrics sends run metrics to rootcollector when metrics are enabled
func (app *SoundscapeApp) collectRunMetrics(result *pipeline.Result) {
	if !app.config.Metrics.Enabled || result == nil || result.Summary == nil {
		return
	}

	err := rootlogger.Configure(logger.LogOptions{
		Out:          app.config.Metrics.LogFile,
		ReopenSignal: syscall.SIGHUP,
		Level:        logtypes.InfoLevel,
	})
	if err != nil {
		app.logger.Error(err, "Failed configuring log writer")
	}

	summary := result.Summary
	for _, p := range metricSeries(app.config.Metrics.Tags, summary, result.Err) {
		rootcollector.Metric(p.name, p.value, p.tags)
	}

	app.logger.Debug("Run metrics sent", logging.Fields{
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
	})
}

type metricPoint struct {
	name  string
	value int64
	tags  []string
}

// metricSeries flattens a run into metric points. processed counts every row
// in the matrix, cached ones included; cached is the subset served from the
// run cache. Skipped recordings are counted per failure category.
func metricSeries(baseTags []string, summary *pipeline.RunSummary, skipped error) []metricPoint {
	tags := append([]string{}, baseTags...)
	tags = append(tags, "partial:"+strconv.FormatBool(summary.Partial))

	points := []metricPoint{
		{"soundscape.recordings.processed", int64(summary.Processed), tags},
		{"soundscape.recordings.cached", int64(summary.Cached), tags},
		{"soundscape.recordings.rejected", int64(summary.Rejected), tags},
		{"soundscape.run.duration.milliseconds", summary.TotalDuration.Milliseconds(), tags},
	}

	byCategory := make(map[string]int64)
	var order []string
	for _, err := range multierr.Errors(skipped) {
		category := pipeline.CategorizeError(err)
		if _, ok := byCategory[category]; !ok {
			order = append(order, category)
		}
		byCategory[category]++
	}
	for _, category := range order {
		points = append(points, metricPoint{
			"soundscape.recordings.skipped",
			byCategory[category],
			append(append([]string{}, tags...), "kind:"+category),
		})
	}

	return points
}

