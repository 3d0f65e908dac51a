package volume

import "fmt"

// DimensionMismatchError reports a slice whose pixel dimensions disagree with
// the rest of its series. It is fatal for that series only.
type DimensionMismatchError struct {
	// SourceFile identifies the offending slice.
	SourceFile string

	// WantRows, WantCols are the dimensions established by the first slice.
	WantRows, WantCols int

	// GotRows, GotCols are the offending slice's dimensions.
	GotRows, GotCols int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("inconsistent slice dimensions: expected %dx%d, got %dx%d in %s",
		e.WantCols, e.WantRows, e.GotCols, e.GotRows, e.SourceFile)
}

// InsufficientSlicesError reports a series too short for a non-degenerate 3D
// reconstruction. It is fatal for that series only.
type InsufficientSlicesError struct {
	// Got is the number of slices in the series.
	Got int

	// Min is the minimum required.
	Min int
}

func (e *InsufficientSlicesError) Error() string {
	return fmt.Sprintf("need at least %d slices for 3D reconstruction, got %d", e.Min, e.Got)
}

// DegenerateVolumeError reports a volume with a single intensity value
// everywhere. The threshold equals that value and the surface extraction
// yields an empty mesh; this is a diagnostic, not a failure.
type DegenerateVolumeError struct {
	// Value is the flat intensity of the volume.
	Value float64
}

func (e *DegenerateVolumeError) Error() string {
	return fmt.Sprintf("volume has uniform intensity %.2f; no foreground/background separation exists", e.Value)
}
