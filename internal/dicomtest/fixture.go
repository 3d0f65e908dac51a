// Package dicomtest writes minimal synthetic DICOM files for tests that
// exercise folder-level behavior. Files carry just enough metadata for
// grouping, sorting and volume reconstruction plus an uncompressed 16-bit
// monochrome frame.
package dicomtest

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// FileSpec describes one synthetic slice file.
type FileSpec struct {
	// SeriesUID is the SeriesInstanceUID value. Empty derives one from
	// SeriesNumber so slices of a series share a UID.
	SeriesUID string

	// SeriesNumber is the SeriesNumber tag value.
	SeriesNumber string

	// Description is the SeriesDescription tag value.
	Description string

	// Rows, Cols are the frame dimensions.
	Rows, Cols int

	// Position is the ImagePositionPatient vector in mm.
	Position [3]float64

	// Pixels holds the raw 16-bit intensities in row-major order,
	// Rows*Cols values.
	Pixels []uint16
}

var uidCounter uint64

// Write serializes one synthetic slice as an uncompressed little-endian
// DICOM file.
func Write(path string, spec FileSpec) error {
	if len(spec.Pixels) != spec.Rows*spec.Cols {
		return fmt.Errorf("pixel count %d does not match %dx%d", len(spec.Pixels), spec.Cols, spec.Rows)
	}

	seriesUID := spec.SeriesUID
	if seriesUID == "" {
		seriesUID = "1.2.826.0.1.3680043.9.7.1." + spec.SeriesNumber
	}
	sopUID := fmt.Sprintf("1.2.826.0.1.3680043.9.7.2.%d", atomic.AddUint64(&uidCounter, 1))

	nativeFrame := frame.NativeFrame{
		BitsPerSample: 16,
		Rows:          spec.Rows,
		Cols:          spec.Cols,
		Data:          make([][]int, spec.Rows*spec.Cols),
	}
	for i, v := range spec.Pixels {
		nativeFrame.Data[i] = []int{int(v)}
	}

	pixelDataInfo := dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{
				Encapsulated: false,
				NativeData:   nativeFrame,
			},
		},
	}

	elements := []*dicom.Element{
		mustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		mustNewElement(tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{sopUID}),
		mustNewElement(tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
		mustNewElement(tag.SOPInstanceUID, []string{sopUID}),
		mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
		mustNewElement(tag.SeriesNumber, []string{spec.SeriesNumber}),
		mustNewElement(tag.SeriesDescription, []string{spec.Description}),
		mustNewElement(tag.Modality, []string{"MR"}),
		mustNewElement(tag.ImagePositionPatient, []string{
			fmt.Sprintf("%.6f", spec.Position[0]),
			fmt.Sprintf("%.6f", spec.Position[1]),
			fmt.Sprintf("%.6f", spec.Position[2]),
		}),
		mustNewElement(tag.ImageOrientationPatient, []string{"1", "0", "0", "0", "1", "0"}),
		mustNewElement(tag.PixelSpacing, []string{"1.000000", "1.000000"}),
		mustNewElement(tag.Rows, []int{spec.Rows}),
		mustNewElement(tag.Columns, []int{spec.Cols}),
		mustNewElement(tag.BitsAllocated, []int{16}),
		mustNewElement(tag.BitsStored, []int{16}),
		mustNewElement(tag.HighBit, []int{15}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustNewElement(tag.PixelData, pixelDataInfo),
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return dicom.Write(f, dicom.Dataset{Elements: elements})
}

// DiscPixels renders a centered bright disc on a black background. The value
// is the raw 16-bit intensity; Gray255(v) picks one that decodes to v on the
// 8-bit scale.
func DiscPixels(rows, cols int, radius float64, value uint16) []uint16 {
	pixels := make([]uint16, rows*cols)
	cx, cy := float64(cols)/2, float64(rows)/2
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if math.Sqrt(dx*dx+dy*dy) < radius {
				pixels[y*cols+x] = value
			}
		}
	}
	return pixels
}

// Gray255 converts an 8-bit gray level to the raw 16-bit intensity that
// decodes back to exactly that level (65535 = 255*257).
func Gray255(v uint8) uint16 {
	return uint16(v) * 257
}

func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	el, err := dicom.NewElement(t, value)
	if err != nil {
		panic(err)
	}
	return el
}
