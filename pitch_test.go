package pitchtrack

import (
	"math"
	"testing"
)

func sine(freq float64, sr int, seconds float64) []float64 {
	out := make([]float64, int(float64(sr)*seconds))
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr))
	}
	return out
}

// middle frames only; edge frames are half zero padding
func checkTracksTone(t *testing.T, est Estimates, freq float64) {
	t.Helper()
	n := len(est.Frequency)
	if n != len(est.Probability) {
		t.Fatalf("frequency %d vs probability %d frames", n, len(est.Probability))
	}
	for i := 4; i < n-4; i++ {
		if math.Abs(CentsDeviation(est.Frequency[i], freq)) > 30 {
			t.Errorf("frame %d: %v Hz, want ~%v", i, est.Frequency[i], freq)
		}
		if est.Probability[i] < 0.5 {
			t.Errorf("frame %d: probability %v", i, est.Probability[i])
		}
	}
}

func TestPyinSine(t *testing.T) {
	const sr = 22050
	samples := sine(220, sr, 1)
	p := NewPyin(sr, 2048, 512, 80, 800)
	est := p.Detect(samples)
	if len(est.Frequency) != FrameCount(len(samples), 512) {
		t.Fatalf("got %d frames", len(est.Frequency))
	}
	checkTracksTone(t, est, 220)
}

func TestPyinSilence(t *testing.T) {
	p := NewPyin(16000, 1024, 256, 80, 800)
	est := p.Detect(make([]float64, 16000))
	for i, f := range est.Frequency {
		if f != 0 {
			t.Fatalf("frame %d: %v Hz in silence", i, f)
		}
	}
}

func TestPyinCandidates(t *testing.T) {
	const sr = 22050
	p := NewPyin(sr, 2048, 512, 80, 800)
	frame := sine(330, sr, 1)[:2048]
	c := p.FindCandidates(frame)
	if len(c) == 0 {
		t.Fatal("no candidates")
	}
	if math.Abs(CentsDeviation(c[0].Frequency, 330)) > 30 {
		t.Errorf("best candidate %v Hz, want ~330", c[0].Frequency)
	}
	for i := 1; i < len(c); i++ {
		if c[i].Probability > c[i-1].Probability {
			t.Errorf("candidates not sorted: %v", c)
		}
	}
}

func TestYinSine(t *testing.T) {
	const sr = 22050
	samples := sine(220, sr, 1)
	y := NewYin(sr, 2048, 512, 80, 800)
	checkTracksTone(t, y.Detect(samples), 220)
}

func TestYinSilence(t *testing.T) {
	y := NewYin(16000, 1024, 256, 80, 800)
	est := y.Detect(make([]float64, 8000))
	for i := range est.Frequency {
		if est.Frequency[i] != 0 || est.Probability[i] != 0 {
			t.Fatalf("frame %d: %v Hz p=%v in silence", i, est.Frequency[i], est.Probability[i])
		}
	}
}

func TestNewDetector(t *testing.T) {
	cfg := DefaultConfig()
	if _, ok := mustDetector(t, cfg).(*Pyin); !ok {
		t.Error("default detector is not pyin")
	}
	cfg.Detector = DetectorYin
	cfg.YinThreshold = 0.2
	y, ok := mustDetector(t, cfg).(*Yin)
	if !ok || y.Threshold != 0.2 {
		t.Errorf("got %#v", y)
	}
	cfg.Detector = "crepe"
	if _, err := NewDetector(cfg, 44100); err == nil {
		t.Error("unknown detector accepted")
	}
}

func mustDetector(t *testing.T, cfg Config) Detector {
	t.Helper()
	d, err := NewDetector(cfg, 44100)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
