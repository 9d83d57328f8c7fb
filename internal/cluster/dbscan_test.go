package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBSCANTwoClusters(t *testing.T) {
	// Two tight groups far apart plus one outlier.
	points := [][]float32{
		{0, 0}, {0.1, 0}, {0, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1},
		{100, 100},
	}

	labels := DBSCAN(points, 0.5, 3)
	require.Len(t, labels, 7)

	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.Equal(t, labels[3], labels[5])
	assert.NotEqual(t, labels[0], labels[3])
	assert.Equal(t, Noise, labels[6])
}

func TestDBSCANAllNoise(t *testing.T) {
	points := [][]float32{{0, 0}, {5, 5}, {10, 10}}
	labels := DBSCAN(points, 0.5, 2)
	for i, l := range labels {
		assert.Equal(t, Noise, l, "point %d", i)
	}
}

func TestDBSCANMinSamplesBoundary(t *testing.T) {
	// Two nearby points: enough for minSamples=2, not for minSamples=3.
	points := [][]float32{{0, 0}, {0.1, 0.1}}

	labels := DBSCAN(points, 0.5, 2)
	assert.Equal(t, labels[0], labels[1])
	assert.NotEqual(t, Noise, labels[0])

	labels = DBSCAN(points, 0.5, 3)
	assert.Equal(t, Noise, labels[0])
	assert.Equal(t, Noise, labels[1])
}

func TestDBSCANChainExpansion(t *testing.T) {
	// A chain of points each within eps of the next should merge into one
	// cluster through density reachability.
	points := [][]float32{{0}, {0.4}, {0.8}, {1.2}, {1.6}}
	labels := DBSCAN(points, 0.5, 2)
	for i := 1; i < len(labels); i++ {
		assert.Equal(t, labels[0], labels[i])
	}
	assert.NotEqual(t, Noise, labels[0])
}

func TestDBSCANEmpty(t *testing.T) {
	assert.Empty(t, DBSCAN(nil, 0.5, 3))
}
