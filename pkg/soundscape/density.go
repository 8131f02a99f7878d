package soundscape

import "fmt"

// EncodeDensity converts the peaks of one recording into a density value per frequency bin:
// the number of peaks found at that bin divided by the number of time frames. The result is
// indexed by the full frequency axis so rows from different recordings line up.
func EncodeDensity(peaks []Peak, freqAxis []float64, numFrames int) ([]float64, error) {
	if numFrames <= 0 {
		return nil, fmt.Errorf("number of time frames must be positive, got %d", numFrames)
	}

	binOf := make(map[float64]int, len(freqAxis))
	for i, f := range freqAxis {
		binOf[f] = i
	}

	counts := make([]int, len(freqAxis))
	for _, p := range peaks {
		bin, ok := binOf[p.Freq]
		if !ok {
			return nil, fmt.Errorf("peak frequency %g is not on the frequency axis", p.Freq)
		}
		counts[bin]++
	}

	density := make([]float64, len(freqAxis))
	for i, c := range counts {
		density[i] = float64(c) / float64(numFrames)
	}

	return density, nil
}
