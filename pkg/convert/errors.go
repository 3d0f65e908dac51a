package convert

import "fmt"

// EmptySurfaceError reports that marching cubes produced no triangles for a
// series, meaning the iso-level never crosses the volume's intensities.
type EmptySurfaceError struct {
	// Key is the series the extraction ran on.
	Key string

	// IsoLevel is the threshold that produced the empty surface.
	IsoLevel float64
}

func (e *EmptySurfaceError) Error() string {
	return fmt.Sprintf("series %q produced an empty surface at iso-level %g, try a different iso-level", e.Key, e.IsoLevel)
}

// SerializationError reports a failure writing an output artifact to disk.
type SerializationError struct {
	// Path is the artifact that could not be written.
	Path string

	// Err is the underlying write failure.
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
