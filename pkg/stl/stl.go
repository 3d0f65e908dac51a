// Package stl extracts triangulated isosurfaces from scalar volumes using
// the marching cubes algorithm and serializes them as binary STL files.
//
// The mesh is a triangle soup: triangles are stored independently with no
// shared-vertex topology, which is exactly what the binary STL layout wants.
package stl

import (
	"math"
	"runtime"
	"sync"
)

// Triangle represents a single triangle with an outward-facing normal, in
// physical (spacing-scaled) coordinates.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// MarchingCubes extracts an isosurface from a dense scalar volume at a given
// iso-level. The volume is a flat array indexed data[z*width*height + y*width
// + x] with X varying fastest.
type MarchingCubes struct {
	data     []float64
	width    int
	height   int
	depth    int
	isoLevel float64

	// scale converts voxel-index coordinates to physical coordinates.
	scaleX, scaleY, scaleZ float32
}

// NewMarchingCubes creates a marching cubes instance over the given volume.
// The default scale is 1.0 per axis (voxel-index coordinates).
func NewMarchingCubes(data []float64, width, height, depth int, isoLevel float64) *MarchingCubes {
	return &MarchingCubes{
		data:     data,
		width:    width,
		height:   height,
		depth:    depth,
		isoLevel: isoLevel,
		scaleX:   1,
		scaleY:   1,
		scaleZ:   1,
	}
}

// SetScale sets the physical voxel spacing per axis. Output vertex
// coordinates are multiplied by these factors so the mesh has real-world
// proportions instead of raw voxel-index proportions.
func (mc *MarchingCubes) SetScale(x, y, z float32) {
	mc.scaleX, mc.scaleY, mc.scaleZ = x, y, z
}

// GenerateTriangles runs marching cubes over every unit cube of the volume
// and returns the resulting triangle soup. Cube rows are processed in
// parallel across z-slabs; each worker appends to its own buffer and the
// buffers are concatenated in slab order, so the output is deterministic for
// a given volume. An empty result means the iso-level does not intersect any
// voxel transition; that is a valid outcome, not an error.
func (mc *MarchingCubes) GenerateTriangles() []Triangle {
	if mc.width < 2 || mc.height < 2 || mc.depth < 2 {
		return nil
	}

	slabs := mc.depth - 1
	buffers := make([][]Triangle, slabs)

	workers := runtime.NumCPU()
	if workers > slabs {
		workers = slabs
	}

	var wg sync.WaitGroup
	next := make(chan int, slabs)
	for z := 0; z < slabs; z++ {
		next <- z
	}
	close(next)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for z := range next {
				buffers[z] = mc.marchSlab(z)
			}
		}()
	}
	wg.Wait()

	var triangles []Triangle
	for _, buf := range buffers {
		triangles = append(triangles, buf...)
	}
	return triangles
}

// marchSlab processes all cubes whose lower corner sits at depth z.
func (mc *MarchingCubes) marchSlab(z int) []Triangle {
	var out []Triangle
	for y := 0; y < mc.height-1; y++ {
		for x := 0; x < mc.width-1; x++ {
			out = mc.marchCube(x, y, z, out)
		}
	}
	return out
}

// marchCube classifies one cube against the iso-level, looks up its
// triangulation and appends the interpolated, orientation-checked, scaled
// triangles.
func (mc *MarchingCubes) marchCube(x, y, z int, out []Triangle) []Triangle {
	var corner [8]float64
	cubeIndex := 0
	for i, off := range cornerOffsets {
		corner[i] = mc.at(x+off[0], y+off[1], z+off[2])
		// Inside means strictly above the iso-level, so a threshold equal
		// to the background intensity still separates the foreground.
		if corner[i] <= mc.isoLevel {
			cubeIndex |= 1 << i
		}
	}
	if cubeIndex == 0 || cubeIndex == 0xFF {
		return out
	}

	// Interpolated crossing point for each edge the triangulation uses.
	var edgePoint [12][3]float64
	var computed [12]bool
	triangulation := &triTable[cubeIndex]

	for i := 0; triangulation[i] != -1; i += 3 {
		var verts [3][3]float64
		for j := 0; j < 3; j++ {
			e := triangulation[i+j]
			if !computed[e] {
				edgePoint[e] = mc.interpolateEdge(x, y, z, int(e), corner)
				computed[e] = true
			}
			verts[j] = edgePoint[e]
		}

		if degenerate(verts) {
			continue
		}

		// Enforce outward orientation: the scalar gradient points toward
		// the foreground interior, so a correct face normal opposes it.
		if mc.facesInterior(verts) {
			verts[1], verts[2] = verts[2], verts[1]
		}

		out = append(out, mc.scaledTriangle(verts))
	}
	return out
}

// interpolateEdge finds where the iso-level crosses the given cube edge by
// linear interpolation between the edge's corner values.
func (mc *MarchingCubes) interpolateEdge(x, y, z, edge int, corner [8]float64) [3]float64 {
	a, b := edgeVertices[edge][0], edgeVertices[edge][1]
	va, vb := corner[a], corner[b]

	t := 0.5
	if math.Abs(vb-va) > 1e-12 {
		t = (mc.isoLevel - va) / (vb - va)
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	oa, ob := cornerOffsets[a], cornerOffsets[b]
	return [3]float64{
		float64(x) + float64(oa[0]) + t*float64(ob[0]-oa[0]),
		float64(y) + float64(oa[1]) + t*float64(ob[1]-oa[1]),
		float64(z) + float64(oa[2]) + t*float64(ob[2]-oa[2]),
	}
}

// facesInterior reports whether the triangle's right-hand normal points into
// the foreground (high-intensity) side of the surface, i.e. along the
// intensity gradient at the triangle's centroid.
func (mc *MarchingCubes) facesInterior(v [3][3]float64) bool {
	e1 := sub(v[1], v[0])
	e2 := sub(v[2], v[0])
	n := cross(e1, e2)

	cx := (v[0][0] + v[1][0] + v[2][0]) / 3
	cy := (v[0][1] + v[1][1] + v[2][1]) / 3
	cz := (v[0][2] + v[1][2] + v[2][2]) / 3
	g := mc.gradient(int(math.Round(cx)), int(math.Round(cy)), int(math.Round(cz)))

	return n[0]*g[0]+n[1]*g[1]+n[2]*g[2] > 0
}

// gradient estimates the intensity gradient at a voxel by central
// differences, clamping at the volume faces.
func (mc *MarchingCubes) gradient(x, y, z int) [3]float64 {
	cx := func(i, n int) int {
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
	x, y, z = cx(x, mc.width), cx(y, mc.height), cx(z, mc.depth)
	return [3]float64{
		mc.at(cx(x+1, mc.width), y, z) - mc.at(cx(x-1, mc.width), y, z),
		mc.at(x, cx(y+1, mc.height), z) - mc.at(x, cx(y-1, mc.height), z),
		mc.at(x, y, cx(z+1, mc.depth)) - mc.at(x, y, cx(z-1, mc.depth)),
	}
}

// scaledTriangle scales the voxel-space vertices to physical coordinates and
// computes the face normal from the scaled geometry.
func (mc *MarchingCubes) scaledTriangle(v [3][3]float64) Triangle {
	scale := func(p [3]float64) [3]float32 {
		return [3]float32{
			float32(p[0]) * mc.scaleX,
			float32(p[1]) * mc.scaleY,
			float32(p[2]) * mc.scaleZ,
		}
	}
	tri := Triangle{
		Vertex1: scale(v[0]),
		Vertex2: scale(v[1]),
		Vertex3: scale(v[2]),
	}
	tri.Normal = FaceNormal(tri.Vertex1, tri.Vertex2, tri.Vertex3)
	return tri
}

// FaceNormal computes the unit normal of a triangle from its vertices via
// the cross product of two edges. A degenerate (zero-area) triangle yields a
// zero normal rather than propagating NaN.
func FaceNormal(v1, v2, v3 [3]float32) [3]float32 {
	e1 := [3]float64{float64(v2[0] - v1[0]), float64(v2[1] - v1[1]), float64(v2[2] - v1[2])}
	e2 := [3]float64{float64(v3[0] - v1[0]), float64(v3[1] - v1[1]), float64(v3[2] - v1[2])}
	n := cross(e1, e2)
	length := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if length == 0 {
		return [3]float32{}
	}
	return [3]float32{
		float32(n[0] / length),
		float32(n[1] / length),
		float32(n[2] / length),
	}
}

func (mc *MarchingCubes) at(x, y, z int) float64 {
	return mc.data[z*mc.width*mc.height+y*mc.width+x]
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func degenerate(v [3][3]float64) bool {
	n := cross(sub(v[1], v[0]), sub(v[2], v[0]))
	return n[0] == 0 && n[1] == 0 && n[2] == 0
}
