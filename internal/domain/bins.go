package domain

import "sort"

// BinEdges returns the midpoints between consecutive cell centers. centers
// must be monotonic; a descending axis yields descending edges.
func BinEdges(centers []float64) []float64 {
	if len(centers) < 2 {
		return nil
	}
	edges := make([]float64, len(centers)-1)
	for i := range edges {
		edges[i] = (centers[i] + centers[i+1]) / 2
	}
	return edges
}

// Digitize returns the index of the cell whose half-open interval
// [edges[i-1], edges[i]) holds x. Values beyond the outer edges clamp to the
// first or last cell, so the result is always in [0, len(edges)].
func Digitize(x float64, edges []float64) int {
	n := len(edges)
	if n == 0 {
		return 0
	}
	if edges[0] <= edges[n-1] {
		return sort.Search(n, func(i int) bool { return edges[i] > x })
	}
	// Descending axis: the index still follows center order.
	return sort.Search(n, func(i int) bool { return edges[i] <= x })
}
