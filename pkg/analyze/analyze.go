// Package analyze inspects a DICOM folder's metadata and reports how each
// supported split tag would partition the files, then recommends the tag
// whose partition count lands closest to what the user expects. It reads
// metadata only; pixel data is never decoded.
package analyze

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dcmtoolbox/pkg/dicomio"
	"dcmtoolbox/pkg/series"
)

// TagCount is the partition size one split tag would produce.
type TagCount struct {
	// SplitBy is the tag this count belongs to.
	SplitBy series.SplitBy

	// Groups is the number of distinct normalized key values.
	Groups int
}

// Report summarizes a folder analysis.
type Report struct {
	// Files is the number of .dcm files found.
	Files int

	// Readable is the number of files whose metadata could be parsed.
	Readable int

	// Counts holds one entry per supported split tag, in AllSplitBy order.
	Counts []TagCount

	// Recommended is the tag whose group count is closest to the expected
	// number of series. Ties prefer the coarser partition.
	Recommended series.SplitBy
}

// Run analyzes the folder. expectedGroups below 1 is treated as 1; workers
// bounds concurrent metadata parsing.
func Run(ctx context.Context, dir string, expectedGroups, workers int) (*Report, error) {
	if expectedGroups < 1 {
		expectedGroups = 1
	}
	if workers < 1 {
		workers = 1
	}

	files, err := dicomio.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no .dcm files found in %s", dir)
	}

	// One normalized key set per tag, shared across workers.
	keySets := make(map[series.SplitBy]map[string]struct{}, len(series.AllSplitBy))
	groupers := make(map[series.SplitBy]*series.Grouper, len(series.AllSplitBy))
	for _, splitBy := range series.AllSplitBy {
		keySets[splitBy] = make(map[string]struct{})
		groupers[splitBy] = series.NewGrouper(splitBy, series.DefaultOrientationPrecision)
	}

	var mu sync.Mutex
	readable := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys, err := dicomio.ReadKeys(path)
			if err != nil {
				logrus.WithField("file", path).WithError(err).Warn("skipping unreadable DICOM file")
				return nil
			}
			mu.Lock()
			readable++
			for splitBy, raw := range keys {
				keySets[splitBy][groupers[splitBy].NormalizeKey(raw)] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if readable == 0 {
		return nil, errors.Errorf("none of the %d files in %s could be parsed", len(files), dir)
	}

	report := &Report{Files: len(files), Readable: readable}
	for _, splitBy := range series.AllSplitBy {
		report.Counts = append(report.Counts, TagCount{
			SplitBy: splitBy,
			Groups:  len(keySets[splitBy]),
		})
	}
	report.Recommended = recommend(report.Counts, expectedGroups)
	return report, nil
}

// recommend picks the tag whose group count is closest to the expected
// series count. On a distance tie the smaller group count wins, since a
// coarser split is cheaper to undo than a fragmented one.
func recommend(counts []TagCount, expected int) series.SplitBy {
	best := counts[0]
	for _, c := range counts[1:] {
		dc, db := distance(c.Groups, expected), distance(best.Groups, expected)
		if dc < db || (dc == db && c.Groups < best.Groups) {
			best = c
		}
	}
	return best.SplitBy
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
