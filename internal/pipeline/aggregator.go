package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/graphical-soundscape/internal/store"
	"github.com/RyanBlaney/graphical-soundscape/pkg/corpus"
	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/mdobak/go-xerrors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// Aggregator builds the graphical soundscape of a corpus
type Aggregator struct {
	config   Config
	analyzer Analyzer
	cache    Cache
	logger   logging.Logger
	metrics  *MetricsCalculator
}

// NewAggregator creates an aggregator. cache may be nil.
func NewAggregator(config Config, analyzer Analyzer, cache Cache, logger logging.Logger) (*Aggregator, error) {
	if analyzer == nil {
		return nil, soundscape.NewConfigurationError("aggregator requires an analyzer", nil)
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	policy, err := ParseFailurePolicy(string(config.Policy))
	if err != nil {
		return nil, err
	}
	config.Policy = policy

	if logger == nil {
		logger = logging.WithFields(logging.Fields{})
	}
	logger = logger.WithFields(logging.Fields{"component": "aggregator"})

	return &Aggregator{
		config:   config,
		analyzer: analyzer,
		cache:    cache,
		logger:   logger,
		metrics:  NewMetricsCalculator(logger),
	}, nil
}

// Aggregate analyses every recording of c and averages the density rows by
// hour of day. Under the skip policy failed recordings are left out and
// reported in Result.Err; under the abort policy the first failure is
// returned. A cancelled or timed out run yields a matrix flagged Partial.
func (a *Aggregator) Aggregate(ctx context.Context, c *corpus.Corpus) (*Result, error) {
	startTime := time.Now()

	runCtx := ctx
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	recordings := c.Recordings
	a.logger.Debug("Starting aggregation", logging.Fields{
		"function":   "Aggregate",
		"input":      c.Source,
		"recordings": len(recordings),
		"workers":    a.config.Workers,
		"policy":     string(a.config.Policy),
	})

	table, abortErr := a.processAll(runCtx, recordings)

	// deterministic order for everything downstream
	sort.Slice(table, func(i, j int) bool {
		return table[i].Recording.ID() < table[j].Recording.ID()
	})

	summary := &RunSummary{
		Input:         c.Source,
		StartTime:     startTime,
		Scheduled:     len(recordings),
		Rejected:      len(c.Rejected),
		SkippedByKind: make(map[string]int),
	}

	var (
		rows      []soundscape.DensityRow
		errs      error
		durations []float64
		peakCount []float64
	)
	for _, r := range table {
		if r.Err != nil {
			kind := string(soundscape.KindOf(r.Err))
			if kind == "" {
				kind = "OTHER"
			}
			summary.Skipped++
			summary.SkippedByKind[kind]++
			summary.SkippedFiles = append(summary.SkippedFiles, Skipped{
				Path:   r.Recording.Path,
				Kind:   kind,
				Reason: r.Err.Error(),
			})
			errs = multierr.Append(errs, r.Err)
			continue
		}
		rows = append(rows, *r.Row)
		summary.Processed++
		if r.Cached {
			summary.Cached++
			continue
		}
		durations = append(durations, float64(r.Duration.Milliseconds()))
		peakCount = append(peakCount, float64(r.Peaks))
	}
	summary.Partial = runCtx.Err() != nil && summary.Processed+summary.Skipped < summary.Scheduled
	summary.ProcessingTime = a.metrics.CalculateStats(durations)
	summary.PeaksPerRecording = a.metrics.CalculateStats(peakCount)

	finish := func() {
		summary.EndTime = time.Now()
		summary.TotalDuration = summary.EndTime.Sub(summary.StartTime)
		a.recordRun(ctx, summary)
	}

	if abortErr != nil {
		finish()
		return &Result{Summary: summary, Err: errs}, abortErr
	}

	if len(rows) == 0 {
		finish()
		if summary.Partial {
			return &Result{Summary: summary, Err: errs}, fmt.Errorf("run cancelled before any recording was processed: %w", runCtx.Err())
		}
		if errs == nil {
			return &Result{Summary: summary}, soundscape.NewInputResolutionError(c.Source, "corpus has no recordings", nil)
		}
		return &Result{Summary: summary, Err: errs}, fmt.Errorf("no recording could be processed (%d skipped): %w", summary.Skipped, errs)
	}

	matrix, err := soundscape.GroupByHour(rows)
	if err != nil {
		finish()
		return &Result{Summary: summary, Err: errs}, err
	}
	matrix.Partial = summary.Partial
	summary.Hours = len(matrix.Hours)
	finish()

	a.logger.Info("Aggregation completed", logging.Fields{
		"processed":  summary.Processed,
		"cached":     summary.Cached,
		"skipped":    summary.Skipped,
		"hours":      summary.Hours,
		"partial":    summary.Partial,
		"duration_s": summary.TotalDuration.Seconds(),
	})

	return &Result{Matrix: matrix, Summary: summary, Err: errs}, nil
}

// processAll fans the recordings out to the worker pool. Rows are appended
// to a lock-guarded table; aggregation happens only after every worker is done.
func (a *Aggregator) processAll(ctx context.Context, recordings []soundscape.Recording) ([]*RecordingResult, error) {
	var (
		mu    sync.Mutex
		table = make([]*RecordingResult, 0, len(recordings))
		seq   atomic.Int64
	)

	p := pool.New().WithContext(ctx).WithMaxGoroutines(a.config.Workers)
	if a.config.Policy == PolicyAbort {
		p = p.WithCancelOnError().WithFirstError()
	}

	total := len(recordings)
	for _, rec := range recordings {
		if ctx.Err() != nil {
			break
		}
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return nil
			}
			i := seq.Add(1)
			if a.config.Progress != nil {
				fmt.Fprintf(a.config.Progress, "%d / %d : %s\n", i, total, rec.Name)
			}

			result := a.processRecording(ctx, rec)
			if result == nil {
				return nil
			}

			mu.Lock()
			table = append(table, result)
			mu.Unlock()

			if result.Err != nil && a.config.Policy == PolicyAbort {
				return result.Err
			}
			return nil
		})
	}

	err := p.Wait()
	return table, err
}

// processRecording returns nil when the run was cancelled before the
// recording finished
func (a *Aggregator) processRecording(ctx context.Context, rec soundscape.Recording) *RecordingResult {
	logger := a.logger.WithFields(logging.Fields{
		"function": "processRecording",
		"path":     rec.Path,
	})
	start := time.Now()

	var key store.Key
	useCache := a.cache != nil
	if useCache {
		k, err := store.KeyFor(rec.Path, a.config.Params)
		if err != nil {
			useCache = false
		} else {
			key = k
			row, ok, err := a.cache.Get(ctx, key)
			if err != nil {
				logger.Warn("Cache lookup failed", logging.Fields{"error": err.Error()})
			} else if ok {
				row.ID = rec.ID()
				row.Hour = rec.Hour()
				return &RecordingResult{Recording: rec, Row: row, Cached: true, Duration: time.Since(start)}
			}
		}
	}

	analysis, err := a.analyzer.Analyze(ctx, rec)
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return nil
		}
		if soundscape.KindOf(err) == "" {
			err = soundscape.NewRecordingIOError(rec.Path, "analysis failed", err)
		}
		logger.Error(xerrors.New(err), "Recording skipped", logging.Fields{
			"fname": filepath.Base(rec.Path),
			"kind":  string(soundscape.KindOf(err)),
		})
		return &RecordingResult{Recording: rec, Err: err, Duration: time.Since(start)}
	}
	if ctx.Err() != nil {
		return nil
	}

	if useCache {
		if err := a.cache.Put(ctx, key, analysis.Row); err != nil {
			logger.Warn("Cache store failed", logging.Fields{"error": err.Error()})
		}
	}

	logger.Debug("Recording processed", logging.Fields{
		"hour":        analysis.Row.Hour,
		"peaks":       analysis.Peaks,
		"frames":      analysis.Row.Frames,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &RecordingResult{
		Recording: rec,
		Row:       analysis.Row,
		Peaks:     analysis.Peaks,
		Duration:  time.Since(start),
	}
}

func (a *Aggregator) recordRun(ctx context.Context, summary *RunSummary) {
	if a.cache == nil {
		return
	}
	// the run may have been cancelled; history is still written
	err := a.cache.RecordRun(context.WithoutCancel(ctx), store.Run{
		StartedAt:  summary.StartTime,
		FinishedAt: summary.EndTime,
		Input:      summary.Input,
		Params:     a.config.Params,
		Processed:  summary.Processed,
		Cached:     summary.Cached,
		Skipped:    summary.Skipped,
		Partial:    summary.Partial,
	})
	if err != nil {
		a.logger.Warn("Failed to record run", logging.Fields{"error": err.Error()})
	}
}
