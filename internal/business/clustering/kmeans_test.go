package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

func levelsOf(clusters []model.DistrictCluster) map[string]string {
	out := make(map[string]string, len(clusters))
	for _, c := range clusters {
		out[c.DistrictName] = c.Level
	}
	return out
}

func TestKMeans_ThreeLevels(t *testing.T) {
	counts := map[string]int{
		"Ajung": 1, "Arjasa": 2, "Balung": 2,
		"Kaliwates": 10, "Patrang": 11,
		"Sumbersari": 40, "Kencong": 42,
	}

	clusters := KMeans(counts, 3)
	require.Len(t, clusters, 7)

	assert.Equal(t, map[string]string{
		"Ajung": model.RiskLow, "Arjasa": model.RiskLow, "Balung": model.RiskLow,
		"Kaliwates": model.RiskMedium, "Patrang": model.RiskMedium,
		"Sumbersari": model.RiskHigh, "Kencong": model.RiskHigh,
	}, levelsOf(clusters))

	// sorted by name
	assert.Equal(t, "Ajung", clusters[0].DistrictName)
	assert.Equal(t, "Sumbersari", clusters[6].DistrictName)
	assert.InDelta(t, 41.0, clusters[6].Centroid, 0.001)
}

func TestKMeans_LevelsFollowCentroids(t *testing.T) {
	clusters := KMeans(map[string]int{"a": 100, "b": 0, "c": 50, "d": 49, "e": 1}, 3)

	centroid := map[string]float64{}
	for _, c := range clusters {
		centroid[c.Level] = c.Centroid
	}
	assert.Less(t, centroid[model.RiskLow], centroid[model.RiskMedium])
	assert.Less(t, centroid[model.RiskMedium], centroid[model.RiskHigh])
}

func TestKMeans_EqualCountsShareLevel(t *testing.T) {
	clusters := KMeans(map[string]int{"a": 5, "b": 5, "c": 5, "d": 20}, 3)

	levels := levelsOf(clusters)
	assert.Equal(t, levels["a"], levels["b"])
	assert.Equal(t, levels["b"], levels["c"])
	assert.Equal(t, model.RiskLow, levels["a"])
	assert.Equal(t, model.RiskHigh, levels["d"])
}

func TestKMeans_SingleValueCollapses(t *testing.T) {
	clusters := KMeans(map[string]int{"a": 3, "b": 3}, 3)

	for _, c := range clusters {
		assert.Equal(t, model.RiskLow, c.Level)
		assert.Equal(t, 3.0, c.Centroid)
	}
}

func TestKMeans_Empty(t *testing.T) {
	assert.Empty(t, KMeans(nil, 3))
	assert.Empty(t, KMeans(map[string]int{"a": 1}, 0))
}

func TestKMeans_Deterministic(t *testing.T) {
	counts := map[string]int{"a": 1, "b": 7, "c": 3, "d": 9, "e": 4, "f": 12}
	assert.Equal(t, KMeans(counts, 3), KMeans(counts, 3))
}
