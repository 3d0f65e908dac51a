package dicomio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcmtoolbox/pkg/series"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("not a real dicom"), 0644))
	return path
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.dcm")
	touch(t, dir, "a.DCM")
	touch(t, dir, "c.txt")
	touch(t, dir, "noext")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub.dcm"), 0755))

	files, err := ListFiles(dir)
	require.NoError(t, err)

	// Extension matching is case-insensitive, folders and other files are
	// ignored, and the result is sorted.
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a.DCM"), files[0])
	assert.Equal(t, filepath.Join(dir, "b.dcm"), files[1])
}

func TestListFilesMissingDir(t *testing.T) {
	_, err := ListFiles(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestListFilesNotADir(t *testing.T) {
	dir := t.TempDir()
	file := touch(t, dir, "plain.dcm")
	_, err := ListFiles(file)
	assert.Error(t, err)
}

func TestReadSlicesSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		touch(t, dir, "bad1.dcm"),
		touch(t, dir, "bad2.dcm"),
	}

	slices, err := ReadSlices(context.Background(), files, series.BySeriesNumber, 2)
	require.NoError(t, err, "unreadable files are skipped, not fatal")
	assert.Empty(t, slices)
}

func TestReadSliceRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, dir, "garbage.dcm")

	_, err := ReadSlice(path, series.BySeriesNumber)
	assert.Error(t, err)
}
