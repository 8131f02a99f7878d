package peaks

// Cell is a position in a row-major grid
type Cell struct {
	Row int
	Col int
}

// LocalMaxima returns the cells of grid whose value is at least threshold and
// not exceeded by any cell within Chebyshev distance radius. Candidates that
// tie with an earlier candidate inside their neighbourhood are merged into the
// one that comes first in raster order, so a plateau yields exactly one maximum
// and returned cells are always more than radius apart. Tied cells that are not
// candidates themselves never suppress anything. Cells are returned in raster
// order.
func LocalMaxima(grid [][]float64, radius int, threshold float64, excludeBorder bool) []Cell {
	rows := len(grid)
	if rows == 0 || len(grid[0]) == 0 {
		return nil
	}
	cols := len(grid[0])
	if radius < 0 {
		radius = 0
	}

	// separable max filter: along columns within each row, then along rows
	rowMax := make([][]float64, rows)
	for r := range rows {
		rowMax[r] = slidingMax(grid[r], radius)
	}
	neigh := make([][]float64, rows)
	for r := range neigh {
		neigh[r] = make([]float64, cols)
	}
	column := make([]float64, rows)
	for c := range cols {
		for r := range rows {
			column[r] = rowMax[r][c]
		}
		colMax := slidingMax(column, radius)
		for r := range rows {
			neigh[r][c] = colMax[r]
		}
	}

	candidate := make([][]bool, rows)
	for r := range rows {
		candidate[r] = make([]bool, cols)
		for c := range cols {
			v := grid[r][c]
			if v < threshold || v != neigh[r][c] {
				continue
			}
			if excludeBorder && (r < radius || c < radius || r >= rows-radius || c >= cols-radius) {
				continue
			}
			candidate[r][c] = true
		}
	}

	var out []Cell
	for r := range rows {
		for c := range cols {
			if candidate[r][c] && !hasEarlierCandidate(grid, candidate, r, c, radius) {
				out = append(out, Cell{Row: r, Col: c})
			}
		}
	}
	return out
}

// hasEarlierCandidate reports whether a candidate preceding (r, c) in raster
// order inside the neighbourhood holds the same value. Two candidates within
// radius of each other are always equal, so this merges every overlapping pair.
func hasEarlierCandidate(grid [][]float64, candidate [][]bool, r, c, radius int) bool {
	v := grid[r][c]
	cols := len(grid[0])
	c0, c1 := max(0, c-radius), min(cols-1, c+radius)

	for rr := max(0, r-radius); rr <= r; rr++ {
		end := c1
		if rr == r {
			end = c - 1
		}
		for cc := c0; cc <= end; cc++ {
			if candidate[rr][cc] && grid[rr][cc] == v {
				return true
			}
		}
	}
	return false
}

// slidingMax returns, for each index, the maximum of x over [i-radius, i+radius]
func slidingMax(x []float64, radius int) []float64 {
	n := len(x)
	out := make([]float64, n)
	deque := make([]int, 0, 2*radius+1)

	next := 0
	for i := range n {
		hi := min(n-1, i+radius)
		for ; next <= hi; next++ {
			for len(deque) > 0 && x[deque[len(deque)-1]] <= x[next] {
				deque = deque[:len(deque)-1]
			}
			deque = append(deque, next)
		}
		for deque[0] < i-radius {
			deque = deque[1:]
		}
		out[i] = x[deque[0]]
	}
	return out
}
