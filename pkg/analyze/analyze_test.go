package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dcmtoolbox/pkg/series"
)

func TestRecommend(t *testing.T) {
	counts := []TagCount{
		{SplitBy: series.BySeriesUID, Groups: 12},
		{SplitBy: series.BySeriesNumber, Groups: 3},
		{SplitBy: series.ByAcquisitionNumber, Groups: 7},
		{SplitBy: series.ByDescription, Groups: 1},
	}

	assert.Equal(t, series.BySeriesNumber, recommend(counts, 3))
	assert.Equal(t, series.ByDescription, recommend(counts, 1))
	assert.Equal(t, series.BySeriesUID, recommend(counts, 20))
	assert.Equal(t, series.ByAcquisitionNumber, recommend(counts, 7))
}

func TestRecommendTiePrefersCoarser(t *testing.T) {
	counts := []TagCount{
		{SplitBy: series.BySeriesUID, Groups: 6},
		{SplitBy: series.BySeriesNumber, Groups: 2},
	}
	// Expected 4: both are distance 2 away, the coarser split wins.
	assert.Equal(t, series.BySeriesNumber, recommend(counts, 4))
}

func TestRecommendOrderIndependentOnTies(t *testing.T) {
	a := []TagCount{
		{SplitBy: series.BySeriesUID, Groups: 2},
		{SplitBy: series.BySeriesNumber, Groups: 6},
	}
	assert.Equal(t, series.BySeriesUID, recommend(a, 4))
}
