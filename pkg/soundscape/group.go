package soundscape

import (
	"cmp"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// GroupByHour averages density rows that share an hour of the day. Hours without rows are
// left out. Rows are summed in (hour, ID) order so the result does not depend on the order
// the rows were produced in.
func GroupByHour(rows []DensityRow) (*Matrix, error) {
	if len(rows) == 0 {
		return &Matrix{}, nil
	}

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b DensityRow) int {
		if c := cmp.Compare(a.Hour, b.Hour); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	freqAxis := sorted[0].FreqAxis
	matrix := &Matrix{
		FreqAxis: slices.Clone(freqAxis),
	}

	for start := 0; start < len(sorted); {
		hour := sorted[start].Hour
		if hour < 0 || hour > 23 {
			return nil, NewDataFormatError(sorted[start].ID, fmt.Sprintf("hour %d out of range", hour), nil)
		}

		sum := make([]float64, len(freqAxis))
		end := start
		for ; end < len(sorted) && sorted[end].Hour == hour; end++ {
			row := sorted[end]
			if len(row.FreqAxis) != len(freqAxis) || !floats.Equal(row.FreqAxis, freqAxis) {
				return nil, NewConfigurationError(
					fmt.Sprintf("density row %s has a different frequency axis", row.ID), nil)
			}
			if len(row.Values) != len(freqAxis) {
				return nil, fmt.Errorf("density row %s has %d values, expected %d", row.ID, len(row.Values), len(freqAxis))
			}
			floats.Add(sum, row.Values)
		}

		n := end - start
		floats.Scale(1/float64(n), sum)

		matrix.Hours = append(matrix.Hours, hour)
		matrix.Values = append(matrix.Values, sum)
		matrix.Counts = append(matrix.Counts, n)
		start = end
	}

	return matrix, nil
}
