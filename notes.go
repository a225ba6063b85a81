package pitchtrack

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	A4Freq = 440.0
	A4Midi = 69
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var noteOffsets = map[string]int{
	"C": 0, "C#": 1, "Db": 1, "D": 2, "D#": 3, "Eb": 3,
	"E": 4, "F": 5, "F#": 6, "Gb": 6, "G": 7, "G#": 8,
	"Ab": 8, "A": 9, "A#": 10, "Bb": 10, "B": 11,
}

// FreqToMidi maps Hz to a fractional MIDI note number. Unvoiced (<= 0)
// frequencies map to 0.
func FreqToMidi(frequency float64) float64 {
	if !(frequency > 0) {
		return 0
	}
	return 12*math.Log2(frequency/A4Freq) + A4Midi
}

func MidiToFreq(midi float64) float64 {
	return A4Freq * math.Pow(2, (midi-A4Midi)/12)
}

// NoteName returns the nearest note, e.g. "A4" for 69. It returns "N/A"
// for negative input.
func NoteName(midi float64) string {
	n := int(math.Round(midi))
	if n < 0 {
		return "N/A"
	}
	return noteNames[n%12] + strconv.Itoa(n/12-1)
}

// ParseNote is the inverse of NoteName and accepts flats: "Bb3", "C#5".
func ParseNote(name string) (float64, error) {
	name = strings.TrimSpace(name)
	split := 1
	if len(name) > 1 && (name[1] == '#' || name[1] == 'b') {
		split = 2
	}
	if len(name) <= split {
		return 0, fmt.Errorf("pitchtrack: bad note %q", name)
	}
	offset, ok := noteOffsets[name[:split]]
	if !ok {
		return 0, fmt.Errorf("pitchtrack: bad note %q", name)
	}
	octave, err := strconv.Atoi(name[split:])
	if err != nil {
		return 0, fmt.Errorf("pitchtrack: bad octave in %q: %w", name, err)
	}
	return float64((octave+1)*12 + offset), nil
}

// CentsDeviation is 1200*log2(detected/reference), NaN if either is not
// a positive frequency.
func CentsDeviation(detected, reference float64) float64 {
	if !(detected > 0) || !(reference > 0) {
		return math.NaN()
	}
	return 1200 * math.Log2(detected/reference)
}
