// Package export renders sorted slice series into viewable artifacts: JPEG
// image stacks and MP4 videos. STL output lives in the stl package; export
// covers the 2D representations.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"dcmtoolbox/internal/models"
)

// JPEGQuality is the encoder quality for exported slice images.
const JPEGQuality = 90

// framePadding returns the zero-pad width for frame numbering: at least four
// digits, widened when the series has 10000 or more slices.
func framePadding(count int) int {
	digits := len(fmt.Sprintf("%d", count))
	if digits < 4 {
		return 4
	}
	return digits
}

// sliceImage converts a slice's grayscale intensities to an 8-bit image.
func sliceImage(sl *models.Slice) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, sl.Cols, sl.Rows))
	for y := 0; y < sl.Rows; y++ {
		for x := 0; x < sl.Cols; x++ {
			v := sl.Pixels[y*sl.Cols+x]
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

// WriteJPEGs writes every slice of the series as a numbered JPEG file in
// outDir, in series order. Numbering is 1-based and zero-padded so
// lexicographic and numeric order agree. Returns the written file paths.
func WriteJPEGs(ser *models.Series, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating output folder %s", outDir)
	}

	pad := framePadding(ser.Len())
	paths := make([]string, 0, ser.Len())
	for i, sl := range ser.Slices {
		path := filepath.Join(outDir, fmt.Sprintf("%0*d.jpg", pad, i+1))
		if err := writeJPEG(path, sliceImage(sl)); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating image file %s", path)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		f.Close()
		return errors.Wrapf(err, "encoding JPEG %s", path)
	}
	return errors.Wrapf(f.Close(), "closing image file %s", path)
}
