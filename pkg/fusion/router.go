package fusion

import (
	"sort"

	"github.com/menta2k/meal-analyzer/pkg/types"
)

// Route splits filtered detections at highConfidence. Detections at or above
// it are trusted; the rest are uncertain and limited to the maxUncertain
// lowest-confidence entries. Both buckets keep the input order.
func Route(dets []types.Detection, highConfidence float64, maxUncertain int) (confident, uncertain []types.Detection) {
	var uncertainIdx []int
	for i, d := range dets {
		if d.Confidence >= highConfidence {
			confident = append(confident, d)
		} else {
			uncertainIdx = append(uncertainIdx, i)
		}
	}

	if maxUncertain <= 0 || len(uncertainIdx) == 0 {
		return confident, nil
	}

	if len(uncertainIdx) > maxUncertain {
		lowest := append([]int(nil), uncertainIdx...)
		sort.SliceStable(lowest, func(a, b int) bool {
			return dets[lowest[a]].Confidence < dets[lowest[b]].Confidence
		})
		lowest = lowest[:maxUncertain]
		sort.Ints(lowest)
		uncertainIdx = lowest
	}

	uncertain = make([]types.Detection, 0, len(uncertainIdx))
	for _, i := range uncertainIdx {
		uncertain = append(uncertain, dets[i])
	}
	return confident, uncertain
}
