package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcmtoolbox/internal/models"
)

// testSeries builds a sorted series of count identical-size slices with
// positions spaced along Z.
func testSeries(count, rows, cols int, spacing float64) *models.Series {
	ser := &models.Series{Key: "1"}
	for i := 0; i < count; i++ {
		sl := &models.Slice{
			Pixels:      make([]float64, rows*cols),
			Rows:        rows,
			Cols:        cols,
			Index:       i,
			HasPosition: true,
		}
		sl.Position = [3]float64{0, 0, float64(i) * spacing}
		for p := range sl.Pixels {
			sl.Pixels[p] = float64(i)
		}
		ser.Slices = append(ser.Slices, sl)
	}
	return ser
}

func TestBuild(t *testing.T) {
	ser := testSeries(6, 4, 3, 2.0)
	ser.Slices[0].PixelSpacing = [2]float64{0.5, 0.75}

	vol, err := Build(ser)
	require.NoError(t, err)

	assert.Equal(t, 3, vol.Width)
	assert.Equal(t, 4, vol.Height)
	assert.Equal(t, 6, vol.Depth)
	assert.Len(t, vol.Data, 3*4*6)

	// Voxel (x, y, z) carries slice z's pixel (y, x).
	for z := 0; z < vol.Depth; z++ {
		assert.Equal(t, float64(z), vol.At(1, 2, z))
	}

	// X spacing is the column spacing, Y the row spacing, Z the position delta.
	assert.Equal(t, 0.75, vol.VoxelSize.X)
	assert.Equal(t, 0.5, vol.VoxelSize.Y)
	assert.Equal(t, 2.0, vol.VoxelSize.Z)
}

func TestBuildInsufficientSlices(t *testing.T) {
	ser := testSeries(MinSlices-1, 2, 2, 1.0)

	vol, err := Build(ser)
	assert.Nil(t, vol)

	var insufficient *InsufficientSlicesError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, MinSlices-1, insufficient.Got)
	assert.Equal(t, MinSlices, insufficient.Min)
}

func TestBuildDimensionMismatch(t *testing.T) {
	ser := testSeries(6, 4, 4, 1.0)
	ser.Slices[3].Rows = 8
	ser.Slices[3].Pixels = make([]float64, 8*4)
	ser.Slices[3].SourceFile = "odd.dcm"

	vol, err := Build(ser)
	assert.Nil(t, vol)

	var mismatch *DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "odd.dcm", mismatch.SourceFile)
	assert.Contains(t, err.Error(), "odd.dcm")
}

func TestBuildSpacingFallbacks(t *testing.T) {
	// Median of deltas beats an outlier gap.
	ser := testSeries(5, 2, 2, 1.0)
	ser.Slices[4].Position[2] = 13 // gap of 10 at the end
	vol, err := Build(ser)
	require.NoError(t, err)
	assert.Equal(t, 1.0, vol.VoxelSize.Z)

	// No positions: slice thickness wins.
	ser = testSeries(5, 2, 2, 1.0)
	for _, sl := range ser.Slices {
		sl.HasPosition = false
	}
	ser.Slices[0].SliceThickness = 3.5
	vol, err = Build(ser)
	require.NoError(t, err)
	assert.Equal(t, 3.5, vol.VoxelSize.Z)

	// Nothing known at all: unit spacing.
	ser.Slices[0].SliceThickness = 0
	vol, err = Build(ser)
	require.NoError(t, err)
	assert.Equal(t, 1.0, vol.VoxelSize.Z)
}

func TestOtsuThresholdBimodal(t *testing.T) {
	// Two tight populations at 10 and 200; the threshold must separate
	// them strictly.
	var data []float64
	for i := 0; i < 500; i++ {
		data = append(data, 10+float64(i%3))
	}
	for i := 0; i < 500; i++ {
		data = append(data, 200+float64(i%3))
	}

	level, err := OtsuThreshold(data)
	require.NoError(t, err)
	assert.Greater(t, level, 10.0)
	assert.Less(t, level, 100.0, "the cut belongs near the low cluster")
}

func TestOtsuThresholdTieBreak(t *testing.T) {
	// Two single-valued populations tie across every cut between them;
	// the smallest level wins deterministically.
	var data []float64
	for i := 0; i < 100; i++ {
		data = append(data, 0, 255)
	}

	level, err := OtsuThreshold(data)
	require.NoError(t, err)
	assert.Equal(t, 0.0, level)
}

func TestOtsuThresholdDegenerate(t *testing.T) {
	data := []float64{42, 42, 42, 42}

	level, err := OtsuThreshold(data)
	var degenerate *DegenerateVolumeError
	require.ErrorAs(t, err, &degenerate)
	assert.Equal(t, 42.0, level)
	assert.Equal(t, 42.0, degenerate.Value)
}

func TestOtsuThresholdEmpty(t *testing.T) {
	level, err := OtsuThreshold(nil)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, level)
}

func flatVolume(w, h, d int, value float64) *models.Volume {
	vol := &models.Volume{Width: w, Height: h, Depth: d, Data: make([]float64, w*h*d)}
	for i := range vol.Data {
		vol.Data[i] = value
	}
	return vol
}

func TestGaussianSmoothNoOp(t *testing.T) {
	vol := flatVolume(4, 4, 4, 7)
	vol.Data[0] = 99

	out := GaussianSmooth(vol, 0)
	assert.Same(t, vol, out, "sigma 0 must return the input untouched")

	out = GaussianSmooth(vol, -1)
	assert.Same(t, vol, out)
}

func TestGaussianSmoothUniformVolume(t *testing.T) {
	vol := flatVolume(5, 5, 5, 80)

	out := GaussianSmooth(vol, 1.5)
	require.NotSame(t, vol, out)
	for i, v := range out.Data {
		assert.InDelta(t, 80.0, v, 1e-9, "voxel %d drifted", i)
	}
}

func TestGaussianSmoothReducesSpike(t *testing.T) {
	vol := flatVolume(7, 7, 7, 0)
	center := 3*7*7 + 3*7 + 3
	vol.Data[center] = 100

	out := GaussianSmooth(vol, 1.0)

	assert.Less(t, out.Data[center], 100.0, "the spike must spread out")
	assert.Greater(t, out.Data[center], out.Data[center+1], "the center stays the maximum")
	assert.Greater(t, out.Data[center+1], 0.0, "neighbors pick up mass")

	// Blurring redistributes intensity, it does not create or destroy it.
	var sum float64
	for _, v := range out.Data {
		sum += v
	}
	assert.InDelta(t, 100.0, sum, 1e-6)
}

func TestGaussianKernel(t *testing.T) {
	kernel := gaussianKernel(1.0)
	assert.Len(t, kernel, 7, "radius ceil(3*sigma) gives 2r+1 taps")

	var sum float64
	for i, v := range kernel {
		sum += v
		assert.Equal(t, kernel[len(kernel)-1-i], v, "kernel must be symmetric")
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Greater(t, kernel[3], kernel[2])
}
