package models

// Slice represents a single decoded cross-section image with the metadata
// needed for grouping, ordering and volume reconstruction. A Slice is
// immutable once read.
type Slice struct {
	// Pixels holds the decoded grayscale intensities in row-major order
	// (Rows*Cols values in the 0-255 range).
	Pixels []float64

	// Rows and Cols are the pixel dimensions of the slice.
	Rows int
	Cols int

	// Key is the raw value of the grouping tag chosen for this run.
	// Empty when the tag is missing from the source file.
	Key string

	// Position is the ImagePositionPatient vector (x, y, z) in mm.
	Position [3]float64

	// HasPosition reports whether Position was present in the metadata.
	HasPosition bool

	// Orientation holds the six direction cosines of the image plane
	// (row cosines followed by column cosines).
	Orientation [6]float64

	// HasOrientation reports whether Orientation was present.
	HasOrientation bool

	// PixelSpacing is the physical spacing in mm (row spacing, col spacing).
	PixelSpacing [2]float64

	// SliceThickness is the nominal slice thickness in mm, 0 when unknown.
	SliceThickness float64

	// SourceFile is the path of the file this slice was read from.
	SourceFile string

	// Index is the original encounter order within the input directory.
	// It is the tie-break for slices with equal spatial position.
	Index int
}

// Series is an ordered sequence of slices sharing one grouping-key value.
type Series struct {
	// Key is the normalized grouping-key value shared by all slices.
	Key string

	// Slices are the members of the series, in insertion order until
	// sorted by spatial position.
	Slices []*Slice
}

// Len returns the number of slices in the series.
func (s *Series) Len() int { return len(s.Slices) }

// Volume represents a dense 3D grid of scalar intensities reconstructed
// from a sorted series.
type Volume struct {
	// Data is the voxel intensities as a flat array, X varying fastest
	// and Z slowest: Data[z*Width*Height + y*Width + x].
	Data []float64

	// Width is the number of columns (X dimension).
	Width int

	// Height is the number of rows (Y dimension).
	Height int

	// Depth is the number of slices (Z dimension).
	Depth int

	// VoxelSize is the physical size of each voxel in mm.
	VoxelSize struct {
		X, Y, Z float64
	}
}

// At returns the intensity at voxel (x, y, z). No bounds checking.
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[z*v.Width*v.Height+y*v.Width+x]
}
