package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/graphical-soundscape/internal/pipeline"
	"github.com/RyanBlaney/graphical-soundscape/internal/store"
	"github.com/RyanBlaney/graphical-soundscape/pkg/audio"
	"github.com/RyanBlaney/graphical-soundscape/pkg/corpus"
	"github.com/RyanBlaney/graphical-soundscape/pkg/output"
	"github.com/RyanBlaney/graphical-soundscape/pkg/peaks"
	"github.com/RyanBlaney/graphical-soundscape/pkg/render"
	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/RyanBlaney/sonido-sonar/logging"
)

// DefaultMatrixFile is where graph writes the matrix when no path is given
const DefaultMatrixFile = "graphical_soundscape.csv"

// GraphRequest describes a corpus aggregation
type GraphRequest struct {
	Input     string
	MatrixOut string
	PlotOut   string
}

// GraphReport is what the graph command prints
type GraphReport struct {
	Summary    *pipeline.RunSummary `json:"summary"`
	MatrixFile string               `json:"matrix_file,omitempty"`
	PlotFile   string               `json:"plot_file,omitempty"`
	Hours      []string             `json:"hours"`
	FreqBins   int                  `json:"freq_bins"`
	Timestamp  time.Time            `json:"timestamp"`
}

// RunGraph resolves the corpus, aggregates it into an hour-of-day matrix and
// persists the matrix. Skipped recordings are reported, not returned as an
// error, unless nothing could be processed.
func (app *SoundscapeApp) RunGraph(ctx context.Context, req GraphRequest) (*pipeline.Result, error) {
	logger := app.newLogger("graph")

	c, err := corpus.Resolve(req.Input, corpusOptions(app.config), logger)
	if err != nil {
		return nil, err
	}
	for _, rej := range c.Rejected {
		logger.Warn("Recording rejected", logging.Fields{"reason": rej.Error()})
	}

	analyzer, err := app.newAnalyzer(logger)
	if err != nil {
		return nil, err
	}

	pcfg, err := pipelineConfig(app.config, app.progress())
	if err != nil {
		return nil, err
	}

	var cache pipeline.Cache
	if path := app.config.Store.Path; path != "" {
		s, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open run cache: %w", err)
		}
		defer s.Close()
		cache = s
	}

	agg, err := pipeline.NewAggregator(pcfg, analyzer, cache, logger)
	if err != nil {
		return nil, err
	}

	result, err := agg.Aggregate(ctx, c)
	if result != nil {
		app.collectRunMetrics(result)
	}
	if err != nil {
		return result, err
	}

	report := &GraphReport{
		Summary:    result.Summary,
		MatrixFile: req.MatrixOut,
		PlotFile:   req.PlotOut,
		FreqBins:   len(result.Matrix.FreqAxis),
		Timestamp:  time.Now(),
	}
	for _, h := range result.Matrix.Hours {
		report.Hours = append(report.Hours, soundscape.HourLabel(h))
	}
	if report.MatrixFile == "" {
		report.MatrixFile = DefaultMatrixFile
	}
	if result.Matrix.Partial {
		report.MatrixFile = output.PartialPath(report.MatrixFile)
		if report.PlotFile != "" {
			report.PlotFile = output.PartialPath(report.PlotFile)
		}
		logger.Warn("Run did not cover the whole corpus, matrix saved as partial", logging.Fields{
			"matrix_file": report.MatrixFile,
			"processed":   result.Summary.Processed,
			"scheduled":   result.Summary.Scheduled,
		})
	}

	if err := output.SaveMatrix(report.MatrixFile, result.Matrix, app.config.Output.Precision); err != nil {
		return result, err
	}
	if report.PlotFile != "" {
		if err := app.plotMatrix(result.Matrix, report.PlotFile); err != nil {
			return result, err
		}
	}

	if err := app.outputResults(report); err != nil {
		return result, fmt.Errorf("failed to output results: %w", err)
	}
	return result, nil
}

// newAnalyzer wires the loader, spectrogram builder and peak detector
func (app *SoundscapeApp) newAnalyzer(logger logging.Logger) (*pipeline.DensityAnalyzer, error) {
	builder, detector, err := app.newBuilderAndDetector(logger)
	if err != nil {
		return nil, err
	}
	return pipeline.NewDensityAnalyzer(builder, detector), nil
}

func (app *SoundscapeApp) newBuilderAndDetector(logger logging.Logger) (*audio.Builder, *peaks.Detector, error) {
	lcfg, err := loaderConfig(app.config)
	if err != nil {
		return nil, nil, err
	}
	builder, err := audio.NewBuilder(spectrogramConfig(app.config), audio.NewLoader(lcfg, logger), logger)
	if err != nil {
		return nil, nil, err
	}
	detector, err := peaks.NewDetector(peakConfig(app.config), logger)
	if err != nil {
		return nil, nil, err
	}
	return builder, detector, nil
}

func (app *SoundscapeApp) renderOptions() (render.Options, error) {
	opts := render.DefaultOptions()
	cmap, err := render.ColormapByName(app.config.Output.Colormap)
	if err != nil {
		return opts, err
	}
	opts.Colormap = cmap
	opts.TickStep = app.config.Output.TickStep
	return opts, nil
}

func (app *SoundscapeApp) plotMatrix(m *soundscape.Matrix, path string) error {
	opts, err := app.renderOptions()
	if err != nil {
		return err
	}
	img, err := render.Heatmap(m, opts)
	if err != nil {
		return err
	}
	if err := render.SavePNG(path, img); err != nil {
		return err
	}
	app.logger.Debug("Plot written", logging.Fields{"plot_file": path})
	return nil
}

// plotPath replaces the extension of a matrix path with .png
func plotPath(matrixPath string) string {
	return strings.TrimSuffix(matrixPath, filepath.Ext(matrixPath)) + ".png"
}
