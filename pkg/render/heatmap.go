package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"gonum.org/v1/gonum/floats"
)

// Options control heatmap rendering
type Options struct {
	// CellWidth and CellHeight are the pixel size of one matrix cell
	CellWidth  int
	CellHeight int

	// TickStep draws a frequency tick every TickStep bins (0 disables)
	TickStep int

	Colormap Colormap
}

// DefaultOptions returns the default rendering options
func DefaultOptions() Options {
	return Options{
		CellWidth:  24,
		CellHeight: 2,
		TickStep:   20,
		Colormap:   Viridis,
	}
}

const (
	marginLeft   = 8
	marginBottom = 8
	tickLength   = 6
)

var axisColor = color.RGBA{0, 0, 0, 255}

// Heatmap draws a soundscape matrix with hours along the x axis and frequency
// along the y axis, lowest frequency at the bottom. Cells are scaled between
// zero and the matrix maximum.
func Heatmap(m *soundscape.Matrix, opts Options) (image.Image, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(m.Hours) == 0 || len(m.FreqAxis) == 0 {
		return nil, fmt.Errorf("cannot render an empty matrix")
	}
	opts = withDefaults(opts)

	// transpose to [freq][hour] so rows of the grid are image rows
	grid := make([][]float64, len(m.FreqAxis))
	for k := range grid {
		grid[k] = make([]float64, len(m.Hours))
		for h := range m.Hours {
			grid[k][h] = m.Values[h][k]
		}
	}

	hi := 0.0
	for _, row := range m.Values {
		if len(row) > 0 {
			hi = max(hi, floats.Max(row))
		}
	}

	return drawGrid(grid, 0, hi, opts, nil), nil
}

// Spectrogram draws a [bin][frame] grid with time along the x axis and the
// given cells highlighted
func Spectrogram(values [][]float64, marks []image.Point, opts Options) (image.Image, error) {
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, fmt.Errorf("cannot render an empty spectrogram")
	}
	opts = withDefaults(opts)

	lo, hi := values[0][0], values[0][0]
	for _, row := range values {
		lo = min(lo, floats.Min(row))
		hi = max(hi, floats.Max(row))
	}

	return drawGrid(values, lo, hi, opts, marks), nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.CellWidth <= 0 {
		opts.CellWidth = def.CellWidth
	}
	if opts.CellHeight <= 0 {
		opts.CellHeight = def.CellHeight
	}
	if opts.Colormap == nil {
		opts.Colormap = def.Colormap
	}
	return opts
}

// drawGrid paints grid[row][col] with row 0 at the bottom. marks are (col, row)
// cells outlined in red.
func drawGrid(grid [][]float64, lo, hi float64, opts Options, marks []image.Point) *image.RGBA {
	rows, cols := len(grid), len(grid[0])
	width := marginLeft + cols*opts.CellWidth
	height := rows*opts.CellHeight + marginBottom

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	span := hi - lo
	for r := range rows {
		y0 := (rows - 1 - r) * opts.CellHeight
		for c := range cols {
			v := 0.0
			if span > 0 {
				v = (grid[r][c] - lo) / span
			}
			x0 := marginLeft + c*opts.CellWidth
			cell := image.Rect(x0, y0, x0+opts.CellWidth, y0+opts.CellHeight)
			draw.Draw(img, cell, &image.Uniform{C: opts.Colormap(v)}, image.Point{}, draw.Src)
		}
	}

	red := color.RGBA{255, 0, 0, 255}
	for _, p := range marks {
		if p.X < 0 || p.X >= cols || p.Y < 0 || p.Y >= rows {
			continue
		}
		x0 := marginLeft + p.X*opts.CellWidth
		y0 := (rows - 1 - p.Y) * opts.CellHeight
		draw.Draw(img, image.Rect(x0, y0, x0+opts.CellWidth, y0+opts.CellHeight), &image.Uniform{C: red}, image.Point{}, draw.Src)
	}

	// axes
	plotBottom := rows * opts.CellHeight
	for x := marginLeft - 1; x < width; x++ {
		img.Set(x, plotBottom, axisColor)
	}
	for y := 0; y <= plotBottom; y++ {
		img.Set(marginLeft-1, y, axisColor)
	}

	// frequency ticks on the left, one per column on the bottom
	if opts.TickStep > 0 {
		for r := 0; r < rows; r += opts.TickStep {
			y := (rows-1-r)*opts.CellHeight + opts.CellHeight/2
			for x := marginLeft - 1 - tickLength; x < marginLeft-1; x++ {
				img.Set(x, y, axisColor)
			}
		}
	}
	for c := range cols {
		x := marginLeft + c*opts.CellWidth + opts.CellWidth/2
		for y := plotBottom + 1; y <= plotBottom+tickLength && y < height; y++ {
			img.Set(x, y, axisColor)
		}
	}

	return img
}

// EncodePNG writes img as PNG
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// SavePNG writes img to path, creating parent directories
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
