package clustering

import (
	"math"
	"sort"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

const maxIterations = 100

// levelsByK names clusters from the lowest to the highest centroid.
var levelsByK = map[int][]string{
	1: {model.RiskLow},
	2: {model.RiskLow, model.RiskHigh},
	3: {model.RiskLow, model.RiskMedium, model.RiskHigh},
}

// KMeans groups districts by incident count into at most k risk levels.
// The result is sorted by district name. k is capped at three and at the
// number of distinct counts.
func KMeans(counts map[string]int, k int) []model.DistrictCluster {
	if len(counts) == 0 || k <= 0 {
		return []model.DistrictCluster{}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]float64, len(names))
	for i, name := range names {
		values[i] = float64(counts[name])
	}

	distinct := distinctSorted(values)
	if k > len(distinct) {
		k = len(distinct)
	}
	if k > len(levelsByK) {
		k = len(levelsByK)
	}

	centroids := initialCentroids(distinct, k)
	assign := make([]int, len(values))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, v := range values {
			c := nearest(centroids, v)
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		sums := make([]float64, k)
		sizes := make([]int, k)
		for i, v := range values {
			sums[assign[i]] += v
			sizes[assign[i]]++
		}
		for c := range centroids {
			if sizes[c] > 0 {
				centroids[c] = sums[c] / float64(sizes[c])
			}
		}
	}

	// rank clusters by centroid so level names follow severity
	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return centroids[order[a]] < centroids[order[b]] })
	rank := make([]int, k)
	for r, c := range order {
		rank[c] = r
	}
	levels := levelsByK[k]

	out := make([]model.DistrictCluster, len(names))
	for i, name := range names {
		c := assign[i]
		out[i] = model.DistrictCluster{
			DistrictName: name,
			Count:        counts[name],
			Level:        levels[rank[c]],
			Centroid:     math.Round(centroids[c]*100) / 100,
		}
	}
	return out
}

func distinctSorted(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// initialCentroids picks evenly spaced quantiles of the distinct values.
func initialCentroids(distinct []float64, k int) []float64 {
	centroids := make([]float64, k)
	if k == 1 {
		var sum float64
		for _, v := range distinct {
			sum += v
		}
		centroids[0] = sum / float64(len(distinct))
		return centroids
	}
	for i := 0; i < k; i++ {
		centroids[i] = distinct[i*(len(distinct)-1)/(k-1)]
	}
	return centroids
}

func nearest(centroids []float64, v float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		if d := math.Abs(v - c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
