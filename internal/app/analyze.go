package app

import (
	"bytes"
	"image"

	"github.com/RyanBlaney/graphical-soundscape/pkg/index"
	"github.com/RyanBlaney/graphical-soundscape/pkg/output"
	"github.com/RyanBlaney/graphical-soundscape/pkg/render"
	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/RyanBlaney/sonido-sonar/logging"
)

// PeaksReport is what the peaks command prints
type PeaksReport struct {
	File       string            `json:"file"`
	SampleRate int               `json:"sample_rate"`
	FreqBins   int               `json:"freq_bins"`
	Frames     int               `json:"frames"`
	MinDB      float64           `json:"min_db"`
	MaxDB      float64           `json:"max_db"`
	Count      int               `json:"count"`
	Peaks      []soundscape.Peak `json:"peaks"`
	ImageFile  string            `json:"image_file,omitempty"`
}

// RunPeaks computes the spectrogram of one recording and its local maxima.
// When imagePath is set the spectrogram is rendered with the peaks marked.
func (app *SoundscapeApp) RunPeaks(path, imagePath string) (*PeaksReport, error) {
	logger := app.newLogger("peaks")

	builder, detector, err := app.newBuilderAndDetector(logger)
	if err != nil {
		return nil, err
	}

	sgram, err := builder.Build(path)
	if err != nil {
		return nil, err
	}

	found, err := detector.Detect(sgram)
	if err != nil {
		return nil, err
	}

	report := &PeaksReport{
		File:       path,
		SampleRate: sgram.SampleRate,
		FreqBins:   sgram.NumBins(),
		Frames:     sgram.NumFrames(),
		MinDB:      sgram.Min(),
		MaxDB:      sgram.Max(),
		Count:      len(found),
		Peaks:      found,
		ImageFile:  imagePath,
	}

	if imagePath != "" {
		opts, err := app.renderOptions()
		if err != nil {
			return nil, err
		}
		opts.CellWidth, opts.CellHeight = 2, 2

		marks := make([]image.Point, len(found))
		for i, p := range found {
			marks[i] = image.Point{X: p.FrameIndex, Y: p.BinIndex}
		}
		img, err := render.Spectrogram(sgram.Values, marks, opts)
		if err != nil {
			return nil, err
		}
		if err := render.SavePNG(imagePath, img); err != nil {
			return nil, err
		}
	}

	logger.Debug("Peaks detected", logging.Fields{
		"file":  path,
		"peaks": len(found),
	})

	if err := app.outputResults(report); err != nil {
		return nil, err
	}
	return report, nil
}

// RunPlot renders a persisted matrix. An empty outPath writes next to the
// matrix with a .png extension.
func (app *SoundscapeApp) RunPlot(matrixPath, outPath string) (string, error) {
	m, err := output.LoadMatrix(matrixPath)
	if err != nil {
		return "", err
	}
	if outPath == "" {
		outPath = plotPath(matrixPath)
	}
	if err := app.plotMatrix(m, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

// IndexRequest describes an acoustic integrity index computation
type IndexRequest struct {
	Input    string
	Out      string
	Distance string // overrides index.distance when set
}

// RunIndex scores a matrix file, or every matrix in a directory, against the
// forest and grassland templates
func (app *SoundscapeApp) RunIndex(req IndexRequest) ([]index.Result, error) {
	cfg := app.config.Index
	if cfg.TemplateForest == "" || cfg.TemplateGrassland == "" {
		return nil, soundscape.NewConfigurationError("index.template_forest and index.template_grassland must be set", nil)
	}

	name := cfg.Distance
	if req.Distance != "" {
		name = req.Distance
	}
	distance, err := index.DistanceByName(name)
	if err != nil {
		return nil, err
	}

	templates, err := index.LoadTemplates(cfg.TemplateForest, cfg.TemplateForestColumn, cfg.TemplateGrassland, cfg.TemplateGrasslandColumn)
	if err != nil {
		return nil, err
	}

	results, err := index.ComputePath(req.Input, templates, distance)
	if err != nil {
		return nil, err
	}

	app.newLogger("index").Debug("Index computed", logging.Fields{
		"input":    req.Input,
		"distance": name,
		"files":    len(results),
	})

	if req.Out != "" {
		var buf bytes.Buffer
		if err := index.WriteResultsCSV(&buf, results); err != nil {
			return nil, err
		}
		if err := app.writeToFile(req.Out, buf.Bytes()); err != nil {
			return nil, err
		}
		return results, nil
	}

	if err := app.outputResults(results); err != nil {
		return nil, err
	}
	return results, nil
}
