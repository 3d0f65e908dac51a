// Package dicomio reads DICOM (.dcm) files from disk and turns them into the
// decoded slice records the conversion pipeline works on. It extracts the
// grouping tags, spatial metadata and grayscale pixel intensities; everything
// downstream is container-format agnostic.
package dicomio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"golang.org/x/sync/errgroup"

	"dcmtoolbox/internal/models"
	"dcmtoolbox/pkg/series"
)

// stackIDTag is StackID (0020,9056), not covered by the standard tag list.
var stackIDTag = tag.Tag{Group: 0x0020, Element: 0x9056}

// ListFiles returns the .dcm files directly inside dir, sorted by filename so
// the encounter order is deterministic across runs.
func ListFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "input folder does not exist: %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("input path is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading input folder %s", dir)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".dcm") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadSlices parses the given files concurrently (bounded by workers) and
// returns one slice record per readable file, in the original file order.
// Files that cannot be parsed or decoded are logged and skipped; they never
// abort the batch. The splitBy tag decides which metadata value becomes the
// slice's grouping key.
func ReadSlices(ctx context.Context, files []string, splitBy series.SplitBy, workers int) ([]*models.Slice, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]*models.Slice, len(files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sl, err := ReadSlice(path, splitBy)
			if err != nil {
				logrus.WithField("file", path).WithError(err).Warn("skipping unreadable DICOM file")
				return nil
			}
			mu.Lock()
			results[i] = sl
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices := make([]*models.Slice, 0, len(results))
	for _, sl := range results {
		if sl == nil {
			continue
		}
		sl.Index = len(slices)
		slices = append(slices, sl)
	}
	return slices, nil
}

// ReadKeys extracts the raw grouping-key value for every split tag from one
// file, skipping pixel data entirely. Used by analysis, which only needs
// metadata.
func ReadKeys(path string) (map[series.SplitBy]string, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, errors.Wrapf(err, "parsing DICOM file %s", path)
	}
	keys := make(map[series.SplitBy]string, len(series.AllSplitBy))
	for _, splitBy := range series.AllSplitBy {
		keys[splitBy] = groupingKey(&ds, splitBy)
	}
	return keys, nil
}

// ReadSlice parses a single DICOM file into a slice record.
func ReadSlice(path string, splitBy series.SplitBy) (*models.Slice, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing DICOM file %s", path)
	}

	pixels, rows, cols, err := decodePixels(&ds)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding pixel data from %s", path)
	}

	sl := &models.Slice{
		Pixels:     pixels,
		Rows:       rows,
		Cols:       cols,
		Key:        groupingKey(&ds, splitBy),
		SourceFile: path,
	}

	if pos, ok := floatsValue(&ds, tag.ImagePositionPatient, 3); ok {
		copy(sl.Position[:], pos)
		sl.HasPosition = true
	}
	if orient, ok := floatsValue(&ds, tag.ImageOrientationPatient, 6); ok {
		copy(sl.Orientation[:], orient)
		sl.HasOrientation = true
	}
	if spacing, ok := floatsValue(&ds, tag.PixelSpacing, 2); ok {
		sl.PixelSpacing[0] = spacing[0]
		sl.PixelSpacing[1] = spacing[1]
	}
	if thickness, ok := floatsValue(&ds, tag.SliceThickness, 1); ok {
		sl.SliceThickness = thickness[0]
	}

	return sl, nil
}

// groupingKey extracts the raw value of the requested split tag. A missing
// or unreadable tag yields an empty key, which the grouper routes to the
// unknown bucket.
func groupingKey(ds *dicom.Dataset, splitBy series.SplitBy) string {
	var t tag.Tag
	switch splitBy {
	case series.BySeriesUID:
		t = tag.SeriesInstanceUID
	case series.BySeriesNumber:
		t = tag.SeriesNumber
	case series.ByAcquisitionNumber:
		t = tag.AcquisitionNumber
	case series.ByDescription:
		t = tag.SeriesDescription
	case series.ByOrientation:
		t = tag.ImageOrientationPatient
	case series.ByStackID:
		t = stackIDTag
	default:
		return ""
	}
	val, _ := stringValue(ds, t)
	return val
}

// stringValue renders a dataset element as a backslash-joined string, the
// way multi-valued DICOM attributes are conventionally written.
func stringValue(ds *dicom.Dataset, t tag.Tag) (string, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return "", false
	}
	switch v := el.Value.GetValue().(type) {
	case []string:
		return strings.Join(v, `\`), true
	case []int:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, `\`), true
	case []float64:
		parts := make([]string, len(v))
		for i, f := range v {
			parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return strings.Join(parts, `\`), true
	}
	return "", false
}

// floatsValue extracts at least want numeric components from a dataset
// element, tolerating the decimal-string encodings DICOM uses.
func floatsValue(ds *dicom.Dataset, t tag.Tag, want int) ([]float64, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return nil, false
	}

	var out []float64
	switch v := el.Value.GetValue().(type) {
	case []float64:
		out = v
	case []int:
		for _, n := range v {
			out = append(out, float64(n))
		}
	case []string:
		for _, s := range v {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, false
			}
			out = append(out, f)
		}
	default:
		return nil, false
	}

	if len(out) < want {
		return nil, false
	}
	return out, true
}

// decodePixels converts the first pixel-data frame to a row-major grayscale
// intensity grid in the 0-255 range.
func decodePixels(ds *dicom.Dataset) ([]float64, int, int, error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, 0, 0, errors.Wrap(err, "no pixel data element")
	}

	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) == 0 {
		return nil, 0, 0, errors.New("pixel data contains no frames")
	}

	img, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, 0, 0, errors.Wrap(err, "converting frame to image")
	}

	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return nil, 0, 0, fmt.Errorf("invalid image dimensions: %dx%d", cols, rows)
	}

	pixels := make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// 16-bit color scaled to the 0-255 range the pipeline works in.
			pixels[y*cols+x] = float64(r) / 65535.0 * 255.0
		}
	}
	return pixels, rows, cols, nil
}
