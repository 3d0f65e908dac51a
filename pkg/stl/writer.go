package stl

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
)

// headerSignature is written at the start of the 80-byte STL header. Readers
// ignore the header content, but a fixed signature keeps output files
// byte-identical for identical mesh input.
const headerSignature = "Binary STL exported by dcmtoolbox"

// TriangleRecordSize is the on-disk size of one STL triangle record: a
// 3-float normal, three 3-float vertices and a 2-byte attribute count.
const TriangleRecordSize = 50

// HeaderSize is the on-disk size of the STL header plus triangle count.
const HeaderSize = 84

// WriteSTL serializes the triangle soup to w in the binary STL layout:
// an 80-byte header, a little-endian uint32 triangle count, then one 50-byte
// record per triangle. Normals are recomputed from the vertex positions so
// the file never depends on upstream normal bookkeeping; degenerate
// triangles get a zero normal. All floats are 32-bit little-endian.
func WriteSTL(w io.Writer, triangles []Triangle) error {
	var header [80]byte
	copy(header[:], headerSignature)
	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "writing STL header")
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return errors.Wrap(err, "writing triangle count")
	}

	record := make([]byte, TriangleRecordSize)
	for i, tri := range triangles {
		normal := FaceNormal(tri.Vertex1, tri.Vertex2, tri.Vertex3)

		off := 0
		for _, vec := range [][3]float32{normal, tri.Vertex1, tri.Vertex2, tri.Vertex3} {
			for _, f := range vec {
				binary.LittleEndian.PutUint32(record[off:], math.Float32bits(f))
				off += 4
			}
		}
		// Trailing attribute byte count, always zero.
		record[off] = 0
		record[off+1] = 0

		if _, err := w.Write(record); err != nil {
			return errors.Wrapf(err, "writing triangle %d", i)
		}
	}
	return nil
}

// SaveToSTL writes the triangle soup to a binary STL file at path.
func SaveToSTL(path string, triangles []Triangle) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating STL file %s", path)
	}

	buf := bufio.NewWriter(f)
	if err := WriteSTL(buf, triangles); err != nil {
		f.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "flushing STL file %s", path)
	}
	return errors.Wrapf(f.Close(), "closing STL file %s", path)
}
