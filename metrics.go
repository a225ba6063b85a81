package pitchtrack

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics summarizes how well a detected contour follows a reference.
type Metrics struct {
	MAE         float64 `json:"mae"`
	RMSE        float64 `json:"rmse"`
	Correlation float64 `json:"correlation"`
	ValidPoints int     `json:"validPoints"`
	TotalPoints int     `json:"totalPoints"`
}

// Compare scores detected against reference point by point. When
// confidence is non-nil only points with confidence >= threshold count.
// Error fields are NaN when no point qualifies.
func Compare(reference, detected, confidence []float64, threshold float64) (Metrics, error) {
	if len(detected) != len(reference) || (confidence != nil && len(confidence) != len(reference)) {
		return Metrics{}, fmt.Errorf("%w: reference %d, detected %d, confidence %d",
			ErrShapeMismatch, len(reference), len(detected), len(confidence))
	}
	m := Metrics{TotalPoints: len(reference)}

	var ref, det []float64
	for i := range reference {
		if confidence != nil && confidence[i] < threshold {
			continue
		}
		ref = append(ref, reference[i])
		det = append(det, detected[i])
	}
	m.ValidPoints = len(ref)
	if len(ref) == 0 {
		m.MAE, m.RMSE, m.Correlation = math.NaN(), math.NaN(), math.NaN()
		return m, nil
	}

	abs := make([]float64, len(ref))
	sq := make([]float64, len(ref))
	for i := range ref {
		d := ref[i] - det[i]
		abs[i] = math.Abs(d)
		sq[i] = d * d
	}
	m.MAE = stat.Mean(abs, nil)
	m.RMSE = math.Sqrt(stat.Mean(sq, nil))
	if len(ref) > 1 {
		m.Correlation = stat.Correlation(ref, det, nil)
	} else {
		m.Correlation = math.NaN()
	}
	return m, nil
}

// CompareNotes is Compare in the MIDI domain, restricted to frames that are
// voiced in both contours.
func CompareNotes(reference, detected []float64) (Metrics, error) {
	if len(detected) != len(reference) {
		return Metrics{}, fmt.Errorf("%w: reference %d, detected %d", ErrShapeMismatch, len(reference), len(detected))
	}
	ref := make([]float64, len(reference))
	det := make([]float64, len(detected))
	both := make([]float64, len(reference))
	for i := range reference {
		ref[i] = FreqToMidi(reference[i])
		det[i] = FreqToMidi(detected[i])
		if reference[i] > 0 && detected[i] > 0 {
			both[i] = 1
		}
	}
	return Compare(ref, det, both, 1)
}
