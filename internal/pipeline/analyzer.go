package pipeline

import (
	"context"

	"github.com/RyanBlaney/graphical-soundscape/pkg/audio"
	"github.com/RyanBlaney/graphical-soundscape/pkg/peaks"
	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
)

// DensityAnalyzer runs spectrogram, peak picking and density encoding for a recording
type DensityAnalyzer struct {
	builder  *audio.Builder
	detector *peaks.Detector
}

// NewDensityAnalyzer combines a spectrogram builder and a peak detector
func NewDensityAnalyzer(builder *audio.Builder, detector *peaks.Detector) *DensityAnalyzer {
	return &DensityAnalyzer{builder: builder, detector: detector}
}

// Analyze implements Analyzer
func (a *DensityAnalyzer) Analyze(ctx context.Context, rec soundscape.Recording) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sgram, err := a.builder.Build(rec.Path)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	found, err := a.detector.Detect(sgram)
	if err != nil {
		if soundscape.KindOf(err) != "" {
			return nil, err
		}
		return nil, soundscape.NewRecordingIOError(rec.Path, "peak detection failed", err)
	}

	density, err := soundscape.EncodeDensity(found, sgram.FreqAxis, sgram.NumFrames())
	if err != nil {
		return nil, soundscape.NewDataFormatError(rec.Path, "density encoding failed", err)
	}

	return &Analysis{
		Row: &soundscape.DensityRow{
			ID:       rec.ID(),
			Hour:     rec.Hour(),
			FreqAxis: sgram.FreqAxis,
			Values:   density,
			Frames:   sgram.NumFrames(),
		},
		Peaks: len(found),
	}, nil
}
