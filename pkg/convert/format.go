// Package convert orchestrates the batch conversion of a DICOM folder into
// per-series output artifacts. It loads and groups the slices, fans the
// series out to bounded workers, dispatches each one to the requested output
// format and collects per-series outcomes so one broken series never takes
// down its siblings.
package convert

import "fmt"

// Format is the closed set of output formats a conversion run can produce.
// The unexported marker keeps the set sealed to this package's variants.
type Format interface {
	// Name returns the format's CLI spelling, used in logs and summaries.
	Name() string

	isFormat()
}

// JPEG exports each slice of a series as a numbered JPEG image.
type JPEG struct{}

func (JPEG) Name() string { return "jpeg" }
func (JPEG) isFormat()    {}

// Video encodes each series as an MP4, one frame per slice.
type Video struct {
	// FPS is the output frame rate; values below 1 fall back to the default.
	FPS int
}

func (Video) Name() string { return "video" }
func (Video) isFormat()    {}

// STL reconstructs each series into a volume and extracts a surface mesh.
type STL struct {
	// IsoLevel is the explicit surface threshold. Nil selects an adaptive
	// threshold per series via Otsu's method.
	IsoLevel *float64

	// SmoothSigma is the Gaussian smoothing width applied to the volume
	// before extraction; zero or negative disables smoothing.
	SmoothSigma float64
}

func (STL) Name() string { return "stl" }
func (STL) isFormat()    {}

func (f STL) String() string {
	if f.IsoLevel == nil {
		return fmt.Sprintf("stl(iso=auto, sigma=%g)", f.SmoothSigma)
	}
	return fmt.Sprintf("stl(iso=%g, sigma=%g)", *f.IsoLevel, f.SmoothSigma)
}
