// Package series groups decoded slices into coherent stacks and establishes
// their spatial ordering. Grouping partitions a flat slice collection by a
// chosen metadata tag; sorting orders each group along the axis orthogonal to
// the image plane so the stack forms a proper anatomical sequence.
package series

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"dcmtoolbox/internal/models"
)

// SplitBy identifies the metadata tag used to partition slices into series.
type SplitBy int

const (
	// BySeriesUID groups by SeriesInstanceUID (0020,000E).
	BySeriesUID SplitBy = iota
	// BySeriesNumber groups by SeriesNumber (0020,0011).
	BySeriesNumber
	// ByAcquisitionNumber groups by AcquisitionNumber (0020,0012).
	ByAcquisitionNumber
	// ByDescription groups by SeriesDescription (0008,103E).
	ByDescription
	// ByOrientation groups by ImageOrientationPatient (0020,0037).
	ByOrientation
	// ByStackID groups by StackID (0020,9056).
	ByStackID
)

// AllSplitBy lists every supported split tag, in CLI documentation order.
var AllSplitBy = []SplitBy{
	BySeriesUID,
	BySeriesNumber,
	ByAcquisitionNumber,
	ByDescription,
	ByOrientation,
	ByStackID,
}

// UnknownKey is the bucket for slices missing the requested grouping tag.
const UnknownKey = "unknown"

// DefaultOrientationPrecision is the number of decimal places direction
// cosines are rounded to before they become part of a grouping key.
const DefaultOrientationPrecision = 3

// ParseSplitBy converts a CLI/config string into a SplitBy value.
func ParseSplitBy(s string) (SplitBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "series-uid", "seriesuid":
		return BySeriesUID, nil
	case "series-number", "seriesnumber":
		return BySeriesNumber, nil
	case "acquisition-number", "acquisitionnumber":
		return ByAcquisitionNumber, nil
	case "description":
		return ByDescription, nil
	case "orientation":
		return ByOrientation, nil
	case "stack-id", "stackid":
		return ByStackID, nil
	}
	return 0, fmt.Errorf("unknown split tag %q (want series-uid, series-number, acquisition-number, description, orientation or stack-id)", s)
}

// String returns the CLI spelling of the split tag.
func (s SplitBy) String() string {
	switch s {
	case BySeriesUID:
		return "series-uid"
	case BySeriesNumber:
		return "series-number"
	case ByAcquisitionNumber:
		return "acquisition-number"
	case ByDescription:
		return "description"
	case ByOrientation:
		return "orientation"
	case ByStackID:
		return "stack-id"
	}
	return fmt.Sprintf("SplitBy(%d)", int(s))
}

// Grouper partitions slices into series by their grouping-key value.
type Grouper struct {
	// splitBy is the tag the keys were extracted from. Orientation keys
	// get numeric normalization, everything else gets whitespace cleanup.
	splitBy SplitBy

	// orientationPrecision is the decimal precision used when rounding
	// direction cosines for orientation keys.
	orientationPrecision int
}

// NewGrouper returns a grouper for the given split tag. A non-positive
// precision falls back to DefaultOrientationPrecision.
func NewGrouper(splitBy SplitBy, orientationPrecision int) *Grouper {
	if orientationPrecision <= 0 {
		orientationPrecision = DefaultOrientationPrecision
	}
	return &Grouper{splitBy: splitBy, orientationPrecision: orientationPrecision}
}

// Group partitions the slices into series keyed by the normalized grouping
// value. Every input slice lands in exactly one series; slices without a key
// value collect in the UnknownKey bucket. The returned series appear in batch
// processing order: numeric keys ascending, then the rest lexicographically.
func (g *Grouper) Group(slices []*models.Slice) []*models.Series {
	byKey := make(map[string]*models.Series)
	var order []string

	for _, sl := range slices {
		key := g.NormalizeKey(sl.Key)
		ser, ok := byKey[key]
		if !ok {
			ser = &models.Series{Key: key}
			byKey[key] = ser
			order = append(order, key)
		}
		ser.Slices = append(ser.Slices, sl)
	}

	// Numeric keys sort numerically so "2" comes before "10", matching
	// how series numbers are reported by scanners.
	sort.SliceStable(order, func(i, j int) bool {
		ni, errI := strconv.Atoi(order[i])
		nj, errJ := strconv.Atoi(order[j])
		if errI == nil && errJ == nil {
			return ni < nj
		}
		return order[i] < order[j]
	})

	result := make([]*models.Series, 0, len(order))
	for _, key := range order {
		result = append(result, byKey[key])
	}
	return result
}

// NormalizeKey canonicalizes a raw grouping-key value. Whitespace is trimmed
// and internal runs collapse to single spaces so cosmetic differences do not
// fragment a series. Orientation keys additionally round each direction
// cosine so floating-point noise in the source metadata maps to one group.
// An empty value normalizes to UnknownKey.
func (g *Grouper) NormalizeKey(raw string) string {
	key := strings.Join(strings.Fields(raw), " ")
	if key == "" {
		return UnknownKey
	}
	if g.splitBy == ByOrientation {
		if normalized, ok := g.normalizeOrientation(key); ok {
			return normalized
		}
	}
	return key
}

// normalizeOrientation parses a 6-component direction-cosine value in the
// DICOM backslash-separated form and re-renders it at fixed precision.
func (g *Grouper) normalizeOrientation(key string) (string, bool) {
	parts := strings.Split(key, `\`)
	if len(parts) != 6 {
		return "", false
	}
	rounded := make([]string, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", false
		}
		scale := math.Pow(10, float64(g.orientationPrecision))
		v = math.Round(v*scale) / scale
		// Normalize negative zero so -0.000 and 0.000 share a key.
		if v == 0 {
			v = 0
		}
		rounded[i] = strconv.FormatFloat(v, 'f', g.orientationPrecision, 64)
	}
	return strings.Join(rounded, `\`), true
}

// Sort orders the series in place by ascending spatial position along the
// stack axis. The sort is stable: slices with equal position keep their
// original encounter order. Series with fewer than two slices are already
// sorted.
func Sort(ser *models.Series) {
	if ser.Len() < 2 {
		return
	}
	axis := stackAxis(ser)
	sort.SliceStable(ser.Slices, func(i, j int) bool {
		return sortPosition(ser.Slices[i], axis) < sortPosition(ser.Slices[j], axis)
	})
}

// stackAxis picks the position component to order by: the greatest-magnitude
// component of the plane normal (cross product of the row and column
// direction cosines). Without orientation metadata the stack is assumed
// axial and Z is used.
func stackAxis(ser *models.Series) int {
	for _, sl := range ser.Slices {
		if !sl.HasOrientation {
			continue
		}
		r := sl.Orientation[:3]
		c := sl.Orientation[3:]
		normal := [3]float64{
			r[1]*c[2] - r[2]*c[1],
			r[2]*c[0] - r[0]*c[2],
			r[0]*c[1] - r[1]*c[0],
		}
		axis := 2
		best := 0.0
		for i, v := range normal {
			if math.Abs(v) > best {
				best = math.Abs(v)
				axis = i
			}
		}
		if best > 0 {
			return axis
		}
	}
	return 2
}

// sortPosition returns the ordering value for a slice. Slices without
// position metadata sort last, preserving encounter order among themselves.
func sortPosition(sl *models.Slice, axis int) float64 {
	if !sl.HasPosition {
		return math.MaxFloat64
	}
	return sl.Position[axis]
}

// PositionDeltas returns the consecutive position differences along the
// stack axis of an already sorted series, skipping pairs without position
// metadata. Used to derive the inter-slice spacing.
func PositionDeltas(ser *models.Series) []float64 {
	axis := stackAxis(ser)
	var deltas []float64
	for i := 1; i < ser.Len(); i++ {
		a, b := ser.Slices[i-1], ser.Slices[i]
		if !a.HasPosition || !b.HasPosition {
			continue
		}
		d := math.Abs(b.Position[axis] - a.Position[axis])
		if d > 0 {
			deltas = append(deltas, d)
		}
	}
	return deltas
}
