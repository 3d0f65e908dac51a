// Package volume assembles sorted slice series into dense 3D intensity grids
// and prepares them for surface extraction: adaptive Otsu thresholding and
// optional separable Gaussian smoothing.
package volume

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"dcmtoolbox/internal/models"
	"dcmtoolbox/pkg/series"
)

// MinSlices is the minimum series length for a non-degenerate reconstruction.
const MinSlices = 5

// defaultSpacing is used for any axis whose physical spacing is unknown (mm).
const defaultSpacing = 1.0

// Build stacks a sorted series into a Volume. The voxel at (z, y, x) equals
// the intensity of slice z at pixel (y, x). Physical X/Y spacing comes from
// the first slice's pixel spacing; Z spacing is the median of consecutive
// position deltas (median rather than mean, so a single outlier position
// cannot corrupt the global scale), falling back to the slice thickness and
// finally to 1.0.
//
// Returns *InsufficientSlicesError when the series is shorter than MinSlices
// and *DimensionMismatchError when slice dimensions disagree. Both are fatal
// for this series only; sibling series are unaffected.
func Build(ser *models.Series) (*models.Volume, error) {
	if ser.Len() < MinSlices {
		return nil, &InsufficientSlicesError{Got: ser.Len(), Min: MinSlices}
	}

	first := ser.Slices[0]
	rows, cols := first.Rows, first.Cols
	sliceSize := rows * cols

	vol := &models.Volume{
		Data:   make([]float64, sliceSize*ser.Len()),
		Width:  cols,
		Height: rows,
		Depth:  ser.Len(),
	}

	for z, sl := range ser.Slices {
		if sl.Rows != rows || sl.Cols != cols {
			return nil, &DimensionMismatchError{
				SourceFile: sl.SourceFile,
				WantRows:   rows, WantCols: cols,
				GotRows: sl.Rows, GotCols: sl.Cols,
			}
		}
		copy(vol.Data[z*sliceSize:(z+1)*sliceSize], sl.Pixels)
	}

	vol.VoxelSize.X = spacingOrDefault(first.PixelSpacing[1])
	vol.VoxelSize.Y = spacingOrDefault(first.PixelSpacing[0])
	vol.VoxelSize.Z = depthSpacing(ser)

	return vol, nil
}

func spacingOrDefault(v float64) float64 {
	if v > 0 {
		return v
	}
	return defaultSpacing
}

// depthSpacing derives the inter-slice gap from the sorted series' position
// deltas. Fewer than two usable positions falls back to the slice thickness,
// then to 1.0.
func depthSpacing(ser *models.Series) float64 {
	deltas := series.PositionDeltas(ser)
	if len(deltas) > 0 {
		sort.Float64s(deltas)
		return stat.Quantile(0.5, stat.Empirical, deltas, nil)
	}
	if t := ser.Slices[0].SliceThickness; t > 0 {
		return t
	}
	return defaultSpacing
}
