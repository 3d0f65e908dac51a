package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dcmtoolbox/internal/models"
	"dcmtoolbox/pkg/dicomio"
	"dcmtoolbox/pkg/export"
	"dcmtoolbox/pkg/series"
	"dcmtoolbox/pkg/stl"
	"dcmtoolbox/pkg/volume"
)

// Options configures a batch conversion run.
type Options struct {
	// InputDir is the folder scanned (non-recursively) for .dcm files.
	InputDir string

	// OutputDir is the root folder that receives one subfolder per series.
	OutputDir string

	// Format selects the output artifact produced per series.
	Format Format

	// SplitBy is the metadata tag that partitions slices into series.
	SplitBy series.SplitBy

	// OrientationPrecision is the direction-cosine rounding used when
	// grouping by orientation. Zero selects the default.
	OrientationPrecision int

	// Workers bounds concurrent file decoding and series conversion.
	// Values below 1 mean one worker.
	Workers int

	// Prompter resolves conflicts with existing output. Nil skips
	// conflicting series without asking.
	Prompter CleanupPrompter
}

// Result is the outcome of converting one series.
type Result struct {
	// Key is the normalized series key.
	Key string

	// Outputs are the artifact paths written for this series.
	Outputs []string

	// Skipped is set when existing output was kept and the series was
	// not converted.
	Skipped bool

	// Err is the conversion failure, nil on success.
	Err error
}

// Run converts every series found under the input folder. Series are
// processed concurrently but failures stay local: each series yields exactly
// one Result and an error in one never aborts the others. The returned error
// covers setup problems only (unreadable input folder, no usable files,
// prompt failures).
func Run(ctx context.Context, opts Options) ([]Result, error) {
	if opts.Format == nil {
		return nil, errors.New("no output format selected")
	}

	files, err := dicomio.ListFiles(opts.InputDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no .dcm files found in %s", opts.InputDir)
	}
	logrus.WithFields(logrus.Fields{
		"files":    len(files),
		"split-by": opts.SplitBy.String(),
		"format":   opts.Format.Name(),
	}).Info("starting conversion")

	slices, err := dicomio.ReadSlices(ctx, files, opts.SplitBy, opts.Workers)
	if err != nil {
		return nil, err
	}
	if len(slices) == 0 {
		return nil, errors.Errorf("none of the %d files in %s could be decoded", len(files), opts.InputDir)
	}

	grouper := series.NewGrouper(opts.SplitBy, opts.OrientationPrecision)
	groups := grouper.Group(slices)
	logrus.WithField("series", len(groups)).Info("slices grouped")

	dirs := outputDirs(groups, opts.OutputDir)
	prompter := opts.Prompter
	if prompter == nil {
		prompter = noPrompter{}
	}
	allowed, err := cleanupPass(dirs, prompter)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(groups))
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ser := range groups {
		i, ser, dir := i, ser, dirs[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Result{Key: ser.Key}
			if !allowed[dir] {
				logrus.WithField("series", ser.Key).Info("existing output kept, series skipped")
				results[i].Skipped = true
				return nil
			}
			outputs, err := convertSeries(ser, dir, opts.Format)
			results[i].Outputs = outputs
			results[i].Err = err
			if err != nil {
				logrus.WithField("series", ser.Key).WithError(err).Error("series conversion failed")
			} else {
				logrus.WithFields(logrus.Fields{
					"series":  ser.Key,
					"outputs": len(outputs),
				}).Info("series converted")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// noPrompter keeps all existing output untouched.
type noPrompter struct{}

func (noPrompter) Ask(string) (CleanupChoice, error) { return CleanupNoToAll, nil }

// outputDirs maps each series to its sanitized output folder, appending a
// numeric suffix when two keys sanitize to the same name. The suffix is bumped
// until the name is free, since a suffixed name can itself collide with a
// literal key.
func outputDirs(groups []*models.Series, outputDir string) []string {
	dirs := make([]string, len(groups))
	taken := make(map[string]bool, len(groups))
	for i, ser := range groups {
		name := SanitizeFilename(ser.Key)
		candidate := name
		for n := 2; taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		taken[candidate] = true
		dirs[i] = filepath.Join(outputDir, candidate)
	}
	return dirs
}

// convertSeries sorts one series spatially and dispatches it to the selected
// format. Returns the written artifact paths.
func convertSeries(ser *models.Series, dir string, format Format) ([]string, error) {
	series.Sort(ser)

	switch f := format.(type) {
	case JPEG:
		return export.WriteJPEGs(ser, dir)
	case Video:
		out := filepath.Join(dir, filepath.Base(dir)+".mp4")
		if err := export.WriteVideo(ser, out, f.FPS); err != nil {
			return nil, err
		}
		return []string{out}, nil
	case STL:
		out := filepath.Join(dir, filepath.Base(dir)+".stl")
		if err := convertToSTL(ser, out, f); err != nil {
			return nil, err
		}
		return []string{out}, nil
	}
	return nil, errors.Errorf("unsupported format %s", format.Name())
}

// convertToSTL runs the surface reconstruction pipeline for one series:
// stack, smooth, threshold, extract, serialize.
func convertToSTL(ser *models.Series, outPath string, f STL) error {
	vol, err := volume.Build(ser)
	if err != nil {
		return err
	}

	vol = volume.GaussianSmooth(vol, f.SmoothSigma)

	isoLevel, err := resolveIsoLevel(vol, f)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"series": ser.Key,
		"iso":    isoLevel,
		"voxels": fmt.Sprintf("%dx%dx%d", vol.Width, vol.Height, vol.Depth),
	}).Debug("extracting surface")

	mc := stl.NewMarchingCubes(vol.Data, vol.Width, vol.Height, vol.Depth, isoLevel)
	mc.SetScale(float32(vol.VoxelSize.X), float32(vol.VoxelSize.Y), float32(vol.VoxelSize.Z))
	triangles := mc.GenerateTriangles()
	if len(triangles) == 0 {
		return &EmptySurfaceError{Key: ser.Key, IsoLevel: isoLevel}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return &SerializationError{Path: outPath, Err: err}
	}
	if err := stl.SaveToSTL(outPath, triangles); err != nil {
		return &SerializationError{Path: outPath, Err: err}
	}
	return nil
}

// resolveIsoLevel picks the surface threshold: the explicit level when given,
// otherwise an adaptive Otsu threshold over the (smoothed) volume. A
// degenerate volume is reported but still converted with the fallback level,
// producing the empty-surface diagnostic downstream.
func resolveIsoLevel(vol *models.Volume, f STL) (float64, error) {
	if f.IsoLevel != nil {
		return *f.IsoLevel, nil
	}
	level, err := volume.OtsuThreshold(vol.Data)
	if err != nil {
		var degenerate *volume.DegenerateVolumeError
		if errors.As(err, &degenerate) {
			logrus.WithError(err).Warn("volume has no intensity contrast")
			return level, nil
		}
		return 0, err
	}
	return level, nil
}

// Summarize logs the batch outcome and returns the number of failed series.
func Summarize(results []Result) int {
	var converted, skipped, failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Skipped:
			skipped++
		default:
			converted++
		}
	}
	logrus.WithFields(logrus.Fields{
		"converted": converted,
		"skipped":   skipped,
		"failed":    failed,
	}).Info("conversion finished")
	return failed
}
