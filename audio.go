package pitchtrack

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/unixpickle/wav"
	"golang.org/x/sync/errgroup"
)

// Frame is one analysis hop.
type Frame struct {
	Time         float64 `json:"time"`
	RawFrequency float64 `json:"rawFrequency"`
	Confidence   float64 `json:"confidence"`
	Energy       float64 `json:"energy"`
	Pitch        float64 `json:"pitch"`
}

// Contour is the fully processed result of one analysis run. Frames are in
// time order, one per hop, unvoiced frames have Pitch 0.
type Contour struct {
	Source     string  `json:"source,omitempty"`
	SampleRate int     `json:"sampleRate"`
	HopLength  int     `json:"hopLength"`
	Frames     []Frame `json:"frames"`
}

func (c Contour) Pitch() []float64 {
	out := make([]float64, len(c.Frames))
	for i := range c.Frames {
		out[i] = c.Frames[i].Pitch
	}
	return out
}

func (c Contour) Segments() []Segment {
	return VoicedSegments(c.Pitch())
}

// Notes returns the voiced frames as MIDI note numbers, dropping silence.
func (c Contour) Notes() []float64 {
	out := make([]float64, 0, len(c.Frames))
	for _, f := range c.Frames {
		if f.Pitch > 0 {
			out = append(out, FreqToMidi(f.Pitch))
		}
	}
	return out
}

// LoadWav reads a wav file and mixes it down to mono.
func LoadWav(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("pitchtrack: open %q: %w", path, err)
	}
	defer f.Close()
	s, err := wav.ReadSound(f)
	if err != nil {
		return nil, 0, fmt.Errorf("pitchtrack: read %q: %w", path, err)
	}
	ch := IntMax(s.Channels(), 1)
	raw := s.Samples()
	out := make([]float64, len(raw)/ch)
	for i := range out {
		sum := 0.0
		for c := 0; c < ch; c++ {
			sum += float64(raw[i*ch+c])
		}
		out[i] = sum / float64(ch)
	}
	return out, s.SampleRate(), nil
}

// FrameEnergy computes centered RMS per hop, normalized so the loudest
// frame is 1. A silent stream stays all zero.
func FrameEnergy(samples []float64, frameLength, hop int) []float64 {
	n := FrameCount(len(samples), hop)
	out := make([]float64, n)
	buf := make([]float64, frameLength)
	peak := 0.0
	for i := range out {
		centeredFrame(buf, samples, i*hop)
		sum := 0.0
		for _, x := range buf {
			sum += x * x
		}
		out[i] = math.Sqrt(sum / float64(frameLength))
		peak = math.Max(peak, out[i])
	}
	if peak > 0 {
		for i := range out {
			out[i] /= peak
		}
	}
	return out
}

// CombineConfidence weights the detector probability by loudness:
// prob*(0.5+0.5*energy) on voiced frames, 0 elsewhere.
func CombineConfidence(est Estimates, energy []float64) []float64 {
	out := make([]float64, len(est.Frequency))
	for i, f := range est.Frequency {
		if f > 0 {
			out[i] = est.Probability[i] * (0.5 + 0.5*energy[i])
		}
	}
	return out
}

// Analyze runs detection and post-processing over one mono buffer.
func Analyze(samples []float64, sampleRate int, cfg Config) (Contour, error) {
	if err := cfg.Validate(); err != nil {
		return Contour{}, err
	}
	if sampleRate <= 0 {
		return Contour{}, fmt.Errorf("%w: sample rate must be > 0: %d", ErrInvalidParameter, sampleRate)
	}
	det, err := NewDetector(cfg, sampleRate)
	if err != nil {
		return Contour{}, err
	}

	energy := FrameEnergy(samples, cfg.HopLength*2, cfg.HopLength)
	est := det.Detect(samples)
	confidence := CombineConfidence(est, energy)
	pitch, err := Process(est.Frequency, confidence, energy, cfg.Params)
	if err != nil {
		return Contour{}, err
	}

	frames := make([]Frame, len(pitch))
	hopSeconds := float64(cfg.HopLength) / float64(sampleRate)
	for i := range frames {
		frames[i] = Frame{
			Time:         float64(i) * hopSeconds,
			RawFrequency: est.Frequency[i],
			Confidence:   confidence[i],
			Energy:       energy[i],
			Pitch:        pitch[i],
		}
	}
	return Contour{
		SampleRate: sampleRate,
		HopLength:  cfg.HopLength,
		Frames:     frames,
	}, nil
}

func AnalyzeFile(path string, cfg Config) (Contour, error) {
	samples, sr, err := LoadWav(path)
	if err != nil {
		return Contour{}, err
	}
	c, err := Analyze(samples, sr, cfg)
	if err != nil {
		return Contour{}, fmt.Errorf("pitchtrack: analyze %q: %w", path, err)
	}
	c.Source = path
	return c, nil
}

// AnalyzeFiles analyzes paths in parallel, at most cfg.Workers at a time
// (0 means unbounded). Results are index-aligned with paths. The first
// failure cancels the remaining files.
func AnalyzeFiles(ctx context.Context, paths []string, cfg Config) ([]Contour, error) {
	out := make([]Contour, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := AnalyzeFile(path, cfg)
			if err != nil {
				return err
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
