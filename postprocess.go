package pitchtrack

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrShapeMismatch    = errors.New("pitchtrack: input sequences differ in length")
	ErrInvalidParameter = errors.New("pitchtrack: invalid parameter")
)

// a jump counts as an octave error when |log2 ratio| is this close to 1
const octaveWindow = 0.1

// Params controls the post-processing pipeline.
type Params struct {
	// EnergyThreshold is compared against the detector confidence, not the
	// energy signal, unless GateOnEnergy is set.
	EnergyThreshold     float64 `yaml:"energy_threshold" json:"energyThreshold"`
	ContinuityTolerance float64 `yaml:"continuity_tolerance" json:"continuityTolerance"`
	OctaveCost          float64 `yaml:"octave_cost" json:"octaveCost"`
	MedianFilterSize    int     `yaml:"median_filter_size" json:"medianFilterSize"`
	// GateOnEnergy gates stage 1 on the energy signal instead of confidence.
	GateOnEnergy bool `yaml:"gate_on_energy" json:"gateOnEnergy"`
}

func DefaultParams() Params {
	return Params{
		EnergyThreshold:     0.05,
		ContinuityTolerance: 0.2,
		OctaveCost:          0.9,
		MedianFilterSize:    11,
	}
}

// Validate reports every out-of-range parameter. Each returned error
// matches ErrInvalidParameter.
func (p Params) Validate() error {
	var errs []error
	if math.IsNaN(p.EnergyThreshold) || p.EnergyThreshold < 0 || p.EnergyThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: energy threshold must be in [0,1]: %v", ErrInvalidParameter, p.EnergyThreshold))
	}
	if p.MedianFilterSize < 1 || p.MedianFilterSize%2 == 0 {
		errs = append(errs, fmt.Errorf("%w: median filter size must be a positive odd integer: %d", ErrInvalidParameter, p.MedianFilterSize))
	}
	if math.IsNaN(p.ContinuityTolerance) || p.ContinuityTolerance < 0 {
		errs = append(errs, fmt.Errorf("%w: continuity tolerance must be >= 0: %v", ErrInvalidParameter, p.ContinuityTolerance))
	}
	if math.IsNaN(p.OctaveCost) || p.OctaveCost < 0 {
		errs = append(errs, fmt.Errorf("%w: octave cost must be >= 0: %v", ErrInvalidParameter, p.OctaveCost))
	}
	return errors.Join(errs...)
}

// Process runs gating, octave correction and segment-aware median
// smoothing over one frame-aligned stream. The result has the same length
// as the inputs; rejected frames are 0. Inputs are not modified.
func Process(rawFrequency, confidence, energy []float64, p Params) ([]float64, error) {
	if len(confidence) != len(rawFrequency) || len(energy) != len(rawFrequency) {
		return nil, fmt.Errorf("%w: frequency %d, confidence %d, energy %d",
			ErrShapeMismatch, len(rawFrequency), len(confidence), len(energy))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	score := confidence
	if p.GateOnEnergy {
		score = energy
	}
	pitch := Gate(rawFrequency, score, p.EnergyThreshold)
	pitch = CorrectOctaves(pitch, confidence, p.ContinuityTolerance, p.OctaveCost)
	return SmoothSegments(pitch, p.MedianFilterSize), nil
}

// Gate keeps frequency[i] when score[i] > threshold and the frequency is a
// usable positive value. NaN and +Inf frequencies are treated as unvoiced.
func Gate(frequency, score []float64, threshold float64) []float64 {
	out := make([]float64, len(frequency))
	for i, f := range frequency {
		if score[i] > threshold && f > 0 && !math.IsInf(f, 1) {
			out[i] = f
		}
	}
	return out
}

// CorrectOctaves folds suspected octave errors back next to the previous
// voiced frame. It is a single causal pass: each decision only looks at the
// already corrected previous frame. Transitions touching an unvoiced frame
// are never corrected.
func CorrectOctaves(pitch, confidence []float64, tolerance, octaveCost float64) []float64 {
	out := make([]float64, len(pitch))
	copy(out, pitch)
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		diff := math.Abs(math.Log2(cur / prev))
		if diff <= tolerance || math.Abs(diff-1) >= octaveWindow {
			continue
		}
		if confidence[i] >= confidence[i-1]*(1+octaveCost) {
			continue
		}
		if cur > prev {
			out[i] = cur / 2
		} else {
			out[i] = cur * 2
		}
	}
	return out
}

// Segment is a half-open [Start, End) run of voiced frames.
type Segment struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Segment) Len() int {
	return s.End - s.Start
}

// VoicedSegments returns the maximal runs of frames with pitch > 0.
func VoicedSegments(pitch []float64) []Segment {
	var segments []Segment
	start := -1
	for i, f := range pitch {
		switch {
		case f > 0 && start < 0:
			start = i
		case !(f > 0) && start >= 0:
			segments = append(segments, Segment{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		segments = append(segments, Segment{Start: start, End: len(pitch)})
	}
	return segments
}

// SmoothSegments median filters every voiced segment longer than size on
// its own. Shorter segments and unvoiced frames are copied through.
func SmoothSegments(pitch []float64, size int) []float64 {
	out := make([]float64, len(pitch))
	copy(out, pitch)
	for _, seg := range VoicedSegments(pitch) {
		if seg.Len() <= size {
			continue
		}
		copy(out[seg.Start:seg.End], MedianFilter(pitch[seg.Start:seg.End], size))
	}
	return out
}
