package analyze

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcmtoolbox/internal/dicomtest"
	"dcmtoolbox/pkg/series"
)

func writeFixture(t *testing.T, dir string, index int, seriesNumber string) {
	t.Helper()
	spec := dicomtest.FileSpec{
		SeriesNumber: seriesNumber,
		Description:  "axial",
		Rows:         4,
		Cols:         4,
		Position:     [3]float64{0, 0, float64(index)},
		Pixels:       make([]uint16, 16),
	}
	path := filepath.Join(dir, fmt.Sprintf("IMG%03d.dcm", index))
	require.NoError(t, dicomtest.Write(path, spec))
}

func TestRunReport(t *testing.T) {
	dir := t.TempDir()
	for i, seriesNumber := range []string{"1", "1", "2", "2"} {
		writeFixture(t, dir, i, seriesNumber)
	}
	// One broken file: counted, parsed as nothing, skipped.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.dcm"), []byte("not dicom"), 0644))

	report, err := Run(context.Background(), dir, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Files)
	assert.Equal(t, 4, report.Readable)

	groupsOf := func(splitBy series.SplitBy) int {
		for _, tc := range report.Counts {
			if tc.SplitBy == splitBy {
				return tc.Groups
			}
		}
		t.Fatalf("no count for %s", splitBy)
		return 0
	}
	assert.Equal(t, 2, groupsOf(series.BySeriesNumber))
	assert.Equal(t, 2, groupsOf(series.BySeriesUID))
	assert.Equal(t, 1, groupsOf(series.ByDescription))
	assert.Equal(t, 1, groupsOf(series.ByOrientation))
	// Tags absent from the fixtures collapse into the unknown bucket.
	assert.Equal(t, 1, groupsOf(series.ByAcquisitionNumber))
	assert.Equal(t, 1, groupsOf(series.ByStackID))

	// Both two-group tags hit the expected count exactly; the listing
	// order makes series-uid the stable winner.
	assert.Equal(t, series.BySeriesUID, report.Recommended)
}

func TestRunAllUnreadable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.dcm"), []byte("not dicom"), 0644))

	_, err := Run(context.Background(), dir, 1, 1)
	assert.Error(t, err)
}

func TestRunEmptyFolder(t *testing.T) {
	_, err := Run(context.Background(), t.TempDir(), 1, 1)
	assert.Error(t, err)
}
