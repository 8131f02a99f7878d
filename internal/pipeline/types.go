package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/RyanBlaney/graphical-soundscape/internal/store"
	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
)

// FailurePolicy decides what happens when a recording cannot be processed
type FailurePolicy string

const (
	// PolicySkip records the failure and continues with the rest of the corpus
	PolicySkip FailurePolicy = "skip"

	// PolicyAbort cancels the run on the first failure
	PolicyAbort FailurePolicy = "abort"
)

// ParseFailurePolicy parses skip or abort
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", soundscape.NewConfigurationError(fmt.Sprintf("unknown failure policy %q (want skip or abort)", s), nil)
	}
}

// Config holds aggregation settings
type Config struct {
	Workers int
	Policy  FailurePolicy

	// Timeout bounds the whole run; zero means no limit
	Timeout time.Duration

	// Params identifies the analysis parameters for the run cache
	Params string

	// Progress receives one "i / n : fname" line per recording; nil disables it
	Progress io.Writer
}

// Analyzer turns one recording into its frequency density row
type Analyzer interface {
	Analyze(ctx context.Context, rec soundscape.Recording) (*Analysis, error)
}

// Analysis is the outcome of analysing one recording
type Analysis struct {
	Row   *soundscape.DensityRow
	Peaks int
}

// Cache persists density rows between runs
type Cache interface {
	Get(ctx context.Context, key store.Key) (*soundscape.DensityRow, bool, error)
	Put(ctx context.Context, key store.Key, row *soundscape.DensityRow) error
	RecordRun(ctx context.Context, run store.Run) error
}

// Skipped describes a recording left out of the matrix
type Skipped struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// RecordingResult is the per-recording entry of the run table
type RecordingResult struct {
	Recording soundscape.Recording
	Row       *soundscape.DensityRow
	Peaks     int
	Cached    bool
	Duration  time.Duration
	Err       error
}

// RunSummary reports what a run did
type RunSummary struct {
	Input         string         `json:"input"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
	TotalDuration time.Duration  `json:"-"`
	Scheduled     int            `json:"scheduled"`
	Processed     int            `json:"processed"`
	Cached        int            `json:"cached"`
	Skipped       int            `json:"skipped"`
	Rejected      int            `json:"rejected"`
	Partial       bool           `json:"partial"`
	SkippedFiles  []Skipped      `json:"skipped_files,omitempty"`
	SkippedByKind map[string]int `json:"skipped_by_kind,omitempty"`
	Hours         int            `json:"hours"`

	ProcessingTime    *Stats `json:"processing_time_ms,omitempty"`
	PeaksPerRecording *Stats `json:"peaks_per_recording,omitempty"`
}

// Result is the output of an aggregation run
type Result struct {
	Matrix  *soundscape.Matrix
	Summary *RunSummary

	// Err collects the failures of skipped recordings
	Err error
}
