package export

import (
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcmtoolbox/internal/models"
)

func gradientSlice(rows, cols int) *models.Slice {
	sl := &models.Slice{
		Pixels: make([]float64, rows*cols),
		Rows:   rows,
		Cols:   cols,
	}
	for i := range sl.Pixels {
		sl.Pixels[i] = float64(i % 256)
	}
	return sl
}

func TestFramePadding(t *testing.T) {
	cases := map[int]int{
		1:      4,
		9:      4,
		9999:   4,
		10000:  5,
		123456: 6,
	}
	for count, want := range cases {
		assert.Equal(t, want, framePadding(count), "count %d", count)
	}
}

func TestSliceImage(t *testing.T) {
	sl := gradientSlice(4, 4)
	sl.Pixels[0] = -10  // clamps to black
	sl.Pixels[1] = 300  // clamps to white
	sl.Pixels[2] = 127.9

	img := sliceImage(sl)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())
	assert.Equal(t, uint8(0), img.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), img.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(127), img.GrayAt(2, 0).Y)
}

func TestWriteJPEGs(t *testing.T) {
	ser := &models.Series{Key: "1"}
	for i := 0; i < 12; i++ {
		ser.Slices = append(ser.Slices, gradientSlice(8, 8))
	}
	dir := filepath.Join(t.TempDir(), "1")

	paths, err := WriteJPEGs(ser, dir)
	require.NoError(t, err)
	require.Len(t, paths, 12)

	// 1-based zero-padded numbering in series order.
	assert.Equal(t, filepath.Join(dir, "0001.jpg"), paths[0])
	assert.Equal(t, filepath.Join(dir, "0012.jpg"), paths[11])

	// Each file decodes back to the slice's dimensions.
	for _, path := range paths {
		f, err := os.Open(path)
		require.NoError(t, err)
		img, err := jpeg.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 8, img.Bounds().Dx())
		assert.Equal(t, 8, img.Bounds().Dy())
	}
}

func TestRenderFrameResize(t *testing.T) {
	sl := gradientSlice(10, 6)

	same := renderFrame(sl, 6, 10)
	assert.Equal(t, 6, same.Bounds().Dx())
	assert.Equal(t, 10, same.Bounds().Dy())

	resized := renderFrame(sl, 16, 16)
	assert.Equal(t, 16, resized.Bounds().Dx())
	assert.Equal(t, 16, resized.Bounds().Dy())
}

func TestWriteVideoEmptySeries(t *testing.T) {
	err := WriteVideo(&models.Series{Key: "1"}, filepath.Join(t.TempDir(), "out.mp4"), 10)
	assert.Error(t, err)
}
