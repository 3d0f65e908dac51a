package convert

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcmtoolbox/internal/models"
	"dcmtoolbox/pkg/stl"
	"dcmtoolbox/pkg/volume"
)

// discSeries builds a series of square slices holding a bright disc on a
// dark background, the synthetic equivalent of a cylinder scan.
func discSeries(key string, count, size int, radius float64) *models.Series {
	ser := &models.Series{Key: key}
	center := float64(size) / 2
	for i := 0; i < count; i++ {
		sl := &models.Slice{
			Pixels:      make([]float64, size*size),
			Rows:        size,
			Cols:        size,
			Key:         key,
			Index:       i,
			HasPosition: true,
		}
		sl.Position = [3]float64{0, 0, float64(i)}
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx, dy := float64(x)-center, float64(y)-center
				if math.Sqrt(dx*dx+dy*dy) < radius {
					sl.Pixels[y*size+x] = 200
				}
			}
		}
		ser.Slices = append(ser.Slices, sl)
	}
	return ser
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"1.2.840.113619.2":     "1.2.840.113619.2",
		`T1/axial\head`:        "T1_axial_head",
		`a:b*c?d"e<f>g|h`:      "a_b_c_d_e_f_g_h",
		"head\x00scan":         "head_scan",
		"  padded  ":           "padded",
		"":                     "unnamed",
		"???":                  "___",
		`0.996\-0.087\0\0\1\0`: "0.996_-0.087_0_0_1_0",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestConvertSeriesSTL(t *testing.T) {
	ser := discSeries("7", 10, 16, 6)
	dir := filepath.Join(t.TempDir(), "7")

	iso := 100.0
	outputs, err := convertSeries(ser, dir, STL{IsoLevel: &iso})
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	raw, err := os.ReadFile(outputs[0])
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), stl.HeaderSize)

	count := binary.LittleEndian.Uint32(raw[80:84])
	assert.NotZero(t, count, "a cylinder must produce a surface")
	assert.Equal(t, stl.HeaderSize+int(count)*stl.TriangleRecordSize, len(raw))

	// Every vertex lies inside the volume's bounding box.
	for rec := 0; rec < int(count); rec++ {
		base := stl.HeaderSize + rec*stl.TriangleRecordSize + 12
		for v := 0; v < 3; v++ {
			for axis := 0; axis < 3; axis++ {
				bits := binary.LittleEndian.Uint32(raw[base+v*12+axis*4:])
				coord := float64(math.Float32frombits(bits))
				limit := 16.0
				if axis == 2 {
					limit = 9.0
				}
				assert.GreaterOrEqual(t, coord, 0.0)
				assert.LessOrEqual(t, coord, limit)
			}
		}
	}
}

func TestConvertSeriesSTLAdaptiveThreshold(t *testing.T) {
	ser := discSeries("3", 8, 12, 4)
	dir := filepath.Join(t.TempDir(), "3")

	outputs, err := convertSeries(ser, dir, STL{SmoothSigma: 1.0})
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	info, err := os.Stat(outputs[0])
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(stl.HeaderSize))
}

func TestConvertSeriesSTLInsufficientSlices(t *testing.T) {
	ser := discSeries("2", 3, 12, 4)
	dir := filepath.Join(t.TempDir(), "2")

	outputs, err := convertSeries(ser, dir, STL{})
	assert.Empty(t, outputs)

	var insufficient *volume.InsufficientSlicesError
	require.ErrorAs(t, err, &insufficient)

	_, statErr := os.Stat(filepath.Join(dir, "2.stl"))
	assert.True(t, os.IsNotExist(statErr), "no partial output for a failed series")
}

func TestConvertSeriesSTLEmptySurface(t *testing.T) {
	ser := discSeries("5", 6, 12, 4)
	dir := filepath.Join(t.TempDir(), "5")

	// An iso-level above every intensity cannot intersect anything.
	iso := 1000.0
	_, err := convertSeries(ser, dir, STL{IsoLevel: &iso})

	var empty *EmptySurfaceError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "5", empty.Key)
	assert.Contains(t, err.Error(), "iso-level")
}

func TestConvertSeriesJPEG(t *testing.T) {
	ser := discSeries("12", 10, 8, 3)
	dir := filepath.Join(t.TempDir(), "12")

	outputs, err := convertSeries(ser, dir, JPEG{})
	require.NoError(t, err)
	require.Len(t, outputs, 10)

	assert.Equal(t, filepath.Join(dir, "0001.jpg"), outputs[0])
	assert.Equal(t, filepath.Join(dir, "0010.jpg"), outputs[9])
	for _, path := range outputs {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
}

func TestOutputDirs(t *testing.T) {
	groups := []*models.Series{
		{Key: "a/b"},
		{Key: `a\b`},
		{Key: "c"},
	}
	dirs := outputDirs(groups, "out")
	assert.Equal(t, []string{
		filepath.Join("out", "a_b"),
		filepath.Join("out", "a_b_2"),
		filepath.Join("out", "c"),
	}, dirs)
}

func TestOutputDirsSuffixCollision(t *testing.T) {
	// A literal key equal to a generated suffix must not share a folder
	// with the suffixed series.
	groups := []*models.Series{
		{Key: "a/b"},
		{Key: `a\b`},
		{Key: "a_b_2"},
	}
	dirs := outputDirs(groups, "out")
	assert.Equal(t, []string{
		filepath.Join("out", "a_b"),
		filepath.Join("out", "a_b_2"),
		filepath.Join("out", "a_b_2_2"),
	}, dirs)

	seen := make(map[string]bool)
	for _, d := range dirs {
		assert.False(t, seen[d], "duplicate output folder %s", d)
		seen[d] = true
	}
}

// scriptedPrompter replays canned answers and records what it was asked.
type scriptedPrompter struct {
	answers []CleanupChoice
	asked   []string
}

func (p *scriptedPrompter) Ask(path string) (CleanupChoice, error) {
	p.asked = append(p.asked, path)
	choice := p.answers[0]
	if len(p.answers) > 1 {
		p.answers = p.answers[1:]
	}
	return choice, nil
}

func TestCleanupPass(t *testing.T) {
	root := t.TempDir()
	existing1 := filepath.Join(root, "one")
	existing2 := filepath.Join(root, "two")
	missing := filepath.Join(root, "three")
	require.NoError(t, os.MkdirAll(existing1, 0755))
	require.NoError(t, os.MkdirAll(existing2, 0755))

	prompter := &scriptedPrompter{answers: []CleanupChoice{CleanupYes, CleanupNo}}
	allowed, err := cleanupPass([]string{existing1, existing2, missing}, prompter)
	require.NoError(t, err)

	assert.Equal(t, []string{existing1, existing2}, prompter.asked, "missing paths are never asked about")
	assert.True(t, allowed[existing1])
	assert.False(t, allowed[existing2])
	assert.True(t, allowed[missing])

	_, statErr := os.Stat(existing1)
	assert.True(t, os.IsNotExist(statErr), "a yes answer removes the old output")
	_, statErr = os.Stat(existing2)
	assert.NoError(t, statErr, "a no answer keeps it")
}

func TestCleanupPassSticky(t *testing.T) {
	root := t.TempDir()
	var paths []string
	for _, name := range []string{"a", "b", "c"} {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(p, 0755))
		paths = append(paths, p)
	}

	prompter := &scriptedPrompter{answers: []CleanupChoice{CleanupYesToAll}}
	allowed, err := cleanupPass(paths, prompter)
	require.NoError(t, err)

	assert.Len(t, prompter.asked, 1, "yes-to-all suppresses further prompts")
	for _, p := range paths {
		assert.True(t, allowed[p])
	}

	prompter = &scriptedPrompter{answers: []CleanupChoice{CleanupNoToAll}}
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(p, 0755))
	}
	allowed, err = cleanupPass(paths, prompter)
	require.NoError(t, err)
	assert.Len(t, prompter.asked, 1)
	for _, p := range paths {
		assert.False(t, allowed[p])
	}
}

func TestForcePrompter(t *testing.T) {
	choice, err := ForcePrompter{}.Ask("anything")
	require.NoError(t, err)
	assert.Equal(t, CleanupYesToAll, choice)
}

func TestFormatNames(t *testing.T) {
	assert.Equal(t, "jpeg", JPEG{}.Name())
	assert.Equal(t, "video", Video{}.Name())
	assert.Equal(t, "stl", STL{}.Name())
}
