package pitchtrack

import (
	"math"
	"testing"
)

func TestFreqToMidi(t *testing.T) {
	if got := FreqToMidi(440); got != 69 {
		t.Errorf("FreqToMidi(440) = %v", got)
	}
	if got := FreqToMidi(880); math.Abs(got-81) > 1e-9 {
		t.Errorf("FreqToMidi(880) = %v", got)
	}
	if got := FreqToMidi(0); got != 0 {
		t.Errorf("FreqToMidi(0) = %v", got)
	}
	if got := MidiToFreq(FreqToMidi(261.63)); math.Abs(got-261.63) > 1e-9 {
		t.Errorf("round trip gave %v", got)
	}
}

func TestNoteName(t *testing.T) {
	tests := map[float64]string{
		69:    "A4",
		60:    "C4",
		61.4:  "C#4",
		83.6:  "C6",
		-3:    "N/A",
		40.49: "E2",
	}
	for midi, want := range tests {
		if got := NoteName(midi); got != want {
			t.Errorf("NoteName(%v) = %q, want %q", midi, got, want)
		}
	}
}

func TestParseNote(t *testing.T) {
	tests := map[string]float64{"A4": 69, "C4": 60, "C#5": 73, "Bb3": 58, "E2": 40}
	for name, want := range tests {
		got, err := ParseNote(name)
		if err != nil {
			t.Errorf("ParseNote(%q): %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("ParseNote(%q) = %v, want %v", name, got, want)
		}
	}
	for _, bad := range []string{"", "H4", "C", "C#x"} {
		if _, err := ParseNote(bad); err == nil {
			t.Errorf("ParseNote(%q) should fail", bad)
		}
	}
}

func TestCentsDeviation(t *testing.T) {
	if got := CentsDeviation(880, 440); math.Abs(got-1200) > 1e-9 {
		t.Errorf("octave = %v cents", got)
	}
	if got := CentsDeviation(0, 440); !math.IsNaN(got) {
		t.Errorf("unvoiced = %v, want NaN", got)
	}
}
