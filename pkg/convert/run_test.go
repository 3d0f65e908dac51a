package convert

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
	"dcmtoolbox/pkg/stl"
	"dcmtoolbox/pkg/volume"
)

// writeDiscFixtures writes count disc slices for one series number into dir,
// positioned 1mm apart along Z. Filenames continue from *next so the folder
// keeps a deterministic encounter order across series.
func writeDiscFixtures(t *testing.T, dir, seriesNumber string, count int, next *int) {
	t.Helper()
	for i := 0; i < count; i++ {
		spec := dicomtest.FileSpec{
			SeriesNumber: seriesNumber,
			Description:  "axial",
			Rows:         12,
			Cols:         12,
			Position:     [3]float64{0, 0, float64(i)},
			Pixels:       dicomtest.DiscPixels(12, 12, 4, dicomtest.Gray255(200)),
		}
		path := filepath.Join(dir, fmt.Sprintf("IMG%03d.dcm", *next))
		require.NoError(t, dicomtest.Write(path, spec))
		*next++
	}
}

func TestRunIsolatesFailingSeries(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	next := 0
	writeDiscFixtures(t, in, "1", 6, &next)
	writeDiscFixtures(t, in, "2", 3, &next)

	iso := 100.0
	results, err := Run(context.Background(), Options{
		InputDir:  in,
		OutputDir: out,
		Format:    STL{IsoLevel: &iso},
		SplitBy:   series.BySeriesNumber,
		Workers:   2,
		Prompter:  ForcePrompter{},
	})
	require.NoError(t, err, "a failing series is a Result, not a batch error")
	require.Len(t, results, 2)

	// The healthy series converts despite its failing sibling.
	assert.Equal(t, "1", results[0].Key)
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Outputs, 1)
	assert.Equal(t, filepath.Join(out, "1", "1.stl"), results[0].Outputs[0])
	info, err := os.Stat(results[0].Outputs[0])
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(stl.HeaderSize))

	// The short series carries its typed error and wrote nothing.
	assert.Equal(t, "2", results[1].Key)
	var insufficient *volume.InsufficientSlicesError
	require.ErrorAs(t, results[1].Err, &insufficient)
	assert.Equal(t, 3, insufficient.Got)
	_, statErr := os.Stat(filepath.Join(out, "2", "2.stl"))
	assert.True(t, os.IsNotExist(statErr))

	assert.Equal(t, 1, Summarize(results))
}

func TestRunSkipsKeptOutput(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	next := 0
	writeDiscFixtures(t, in, "1", 6, &next)

	// Pre-existing output plus a prompter that always answers no.
	require.NoError(t, os.MkdirAll(filepath.Join(out, "1"), 0755))

	iso := 100.0
	results, err := Run(context.Background(), Options{
		InputDir:  in,
		OutputDir: out,
		Format:    STL{IsoLevel: &iso},
		SplitBy:   series.BySeriesNumber,
		Workers:   1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.NoError(t, results[0].Err)

	_, statErr := os.Stat(filepath.Join(out, "1", "1.stl"))
	assert.True(t, os.IsNotExist(statErr), "kept output is never overwritten")

	assert.Equal(t, 0, Summarize(results))
}

func TestRunNoFiles(t *testing.T) {
	_, err := Run(context.Background(), Options{
		InputDir:  t.TempDir(),
		OutputDir: t.TempDir(),
		Format:    JPEG{},
		SplitBy:   series.BySeriesNumber,
	})
	assert.Error(t, err)
}
