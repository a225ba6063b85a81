package pitchtrack

import "fmt"

// Estimates is the raw output of a pitch detector, one entry per hop.
// Frequency is 0 where the detector found no pitch.
type Estimates struct {
	Frequency   []float64
	Probability []float64
}

type Detector interface {
	Detect(samples []float64) Estimates
}

const (
	DetectorPyin = "pyin"
	DetectorYin  = "yin"
)

// NewDetector builds the detector named by cfg.Detector.
func NewDetector(cfg Config, sampleRate int) (Detector, error) {
	switch cfg.Detector {
	case DetectorPyin, "":
		return NewPyin(sampleRate, cfg.FrameLength, cfg.HopLength, cfg.Fmin, cfg.Fmax), nil
	case DetectorYin:
		y := NewYin(sampleRate, cfg.FrameLength, cfg.HopLength, cfg.Fmin, cfg.Fmax)
		if cfg.YinThreshold > 0 {
			y.Threshold = cfg.YinThreshold
		}
		return y, nil
	}
	return nil, fmt.Errorf("%w: unknown detector %q", ErrInvalidParameter, cfg.Detector)
}

// FrameCount is the number of centered frames for n samples.
func FrameCount(n, hop int) int {
	return 1 + n/hop
}

// centeredFrame copies the frame centered on sample center into dst,
// zero-padding past either end of samples.
func centeredFrame(dst, samples []float64, center int) {
	start := center - len(dst)/2
	for i := range dst {
		j := start + i
		if j < 0 || j >= len(samples) {
			dst[i] = 0
		} else {
			dst[i] = samples[j]
		}
	}
}
