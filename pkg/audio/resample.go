package audio

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-sonar/algorithms/windowing"
	"gonum.org/v1/gonum/floats"
)

const (
	// kaiserBeta controls stopband attenuation of the anti-aliasing filter
	kaiserBeta = 5.0

	// filterHalfLenPerFactor is the number of filter taps per side for each
	// unit of the larger conversion factor
	filterHalfLenPerFactor = 10
)

// ResamplePoly converts x from one sample rate to another using a
// Kaiser-windowed polyphase FIR filter. The output length is
// ceil(len(x) * to / from).
func ResamplePoly(x []float64, from, to int) ([]float64, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("sample rates must be positive, got %d -> %d", from, to)
	}
	if from == to {
		out := make([]float64, len(x))
		copy(out, x)
		return out, nil
	}
	if len(x) == 0 {
		return []float64{}, nil
	}

	g := gcd(from, to)
	up, down := to/g, from/g

	h := designFilter(up, down)
	halfLen := (len(h) - 1) / 2

	nOut := (len(x)*up + down - 1) / down
	out := make([]float64, nOut)

	// y[m] = sum_j x[j] * h[m*down + halfLen - j*up]
	for m := range nOut {
		t := m*down + halfLen
		jMax := t / up
		if jMax >= len(x) {
			jMax = len(x) - 1
		}
		jMin := 0
		if t-len(h)+1 > 0 {
			jMin = (t - len(h) + 1 + up - 1) / up
		}

		sum := 0.0
		for j := jMin; j <= jMax; j++ {
			sum += x[j] * h[t-j*up]
		}
		out[m] = sum
	}

	return out, nil
}

// designFilter builds the low-pass interpolation filter for an up/down ratio
func designFilter(up, down int) []float64 {
	maxRate := max(up, down)
	halfLen := filterHalfLenPerFactor * maxRate
	numTaps := 2*halfLen + 1
	cutoff := 1.0 / float64(maxRate)

	window := windowing.NewKaiser(numTaps, kaiserBeta, true).GetCoefficients()

	h := make([]float64, numTaps)
	for n := range numTaps {
		h[n] = cutoff * sinc(cutoff*float64(n-halfLen)) * window[n]
	}

	floats.Scale(float64(up)/floats.Sum(h), h)
	return h
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
