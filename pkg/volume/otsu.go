package volume

import "gonum.org/v1/gonum/floats"

// HistogramBins is the number of bins used for Otsu thresholding.
const HistogramBins = 256

// OtsuThreshold computes a binarization level for the volume data using
// Otsu's method: build an intensity histogram over the observed range, then
// pick the level maximizing the between-class variance of the foreground and
// background voxel populations. All candidate levels are scanned and the
// global maximum wins; ties break toward the smallest level so the result is
// deterministic.
//
// A flat (single-valued) volume has no separation to find. The threshold is
// that single value and a *DegenerateVolumeError diagnostic is returned with
// it; downstream surface extraction then produces an empty mesh, which is an
// expected outcome rather than a failure.
func OtsuThreshold(data []float64) (float64, error) {
	if len(data) == 0 {
		return 0, nil
	}

	minVal := floats.Min(data)
	maxVal := floats.Max(data)
	valueRange := maxVal - minVal
	if valueRange <= 0 {
		return minVal, &DegenerateVolumeError{Value: minVal}
	}

	var histogram [HistogramBins]float64
	scale := float64(HistogramBins-1) / valueRange
	for _, v := range data {
		bin := int((v - minVal) * scale)
		if bin > HistogramBins-1 {
			bin = HistogramBins - 1
		}
		histogram[bin]++
	}

	total := float64(len(data))
	totalSum := 0.0
	for i, count := range histogram {
		totalSum += float64(i) * count
	}

	bestBin := 0
	bestVariance := -1.0
	bgCount := 0.0
	bgSum := 0.0

	for t, count := range histogram {
		bgCount += count
		if bgCount == 0 {
			continue
		}
		fgCount := total - bgCount
		if fgCount == 0 {
			break
		}
		bgSum += float64(t) * count

		meanBG := bgSum / bgCount
		meanFG := (totalSum - bgSum) / fgCount
		diff := meanBG - meanFG
		variance := bgCount * fgCount * diff * diff

		// Strict comparison keeps the first (smallest) level on ties.
		if variance > bestVariance {
			bestVariance = variance
			bestBin = t
		}
	}

	return minVal + float64(bestBin)/scale, nil
}
