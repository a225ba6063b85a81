package pitchtrack

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
)

// Melody is a target melody as a frame-wise MIDI note sequence.
type Melody struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Notes  []float64 `json:"notes"`
	Median float64   `json:"median"`
	Low    float64   `json:"low"`
	High   float64   `json:"high"`
}

// Library holds the target melodies a sung contour is scored against.
type Library struct {
	melodies map[string]*Melody
	lock     sync.RWMutex
}

type MelodyScore struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Score         float64 `json:"score"`
	Transposition float64 `json:"transposition"`
}

func NewLibrary() *Library {
	return &Library{
		melodies: make(map[string]*Melody),
	}
}

// MIDI note range accepted in a melody.
const (
	MinMidiNote = 0
	MaxMidiNote = 127
)

// NewMelody computes the transposition range from the medians of
// 128-frame windows, widened by two semitones around the overall median.
// Notes that are not finite or fall outside the MIDI range are dropped.
func NewMelody(id, name string, notes []float64) *Melody {
	notes = midiNotes(notes)
	med := Median(notes)
	lo := med - 2
	hi := med + 2
	for i := 0; i+128 <= len(notes); i += 16 {
		m := Median(notes[i : i+128])
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	return &Melody{
		ID:     id,
		Name:   name,
		Notes:  notes,
		Median: med,
		Low:    math.Floor(lo),
		High:   math.Ceil(hi),
	}
}

// Add stores m, replacing any melody with the same ID. An empty melody
// removes the ID instead.
func (l *Library) Add(m *Melody) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if len(m.Notes) == 0 {
		delete(l.melodies, m.ID)
		return
	}
	l.melodies[m.ID] = m
}

func (l *Library) Get(id string) (*Melody, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	m, ok := l.melodies[id]
	return m, ok
}

func (l *Library) Len() int {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return len(l.melodies)
}

// Score ranks every melody against query (MIDI notes), best first. Query
// notes outside the MIDI range are ignored. Each
// melody is tried at every semitone transposition that moves one of its
// local medians onto the query median; the DTW cost is divided by the
// query length.
func (l *Library) Score(query []float64) []MelodyScore {
	result := make([]MelodyScore, 0)
	query = midiNotes(query)
	if len(query) == 0 {
		return result
	}
	qMedian := Median(query)

	var a Aligner
	l.lock.RLock()
	for id, m := range l.melodies {
		best := math.Inf(1)
		bestShift := 0.0
		steps := int(m.High - m.Low)
		for k := 0; k <= steps; k++ {
			shift := qMedian - (m.Low + float64(k))
			if sco := a.Distance(m.Notes, query, shift); sco < best {
				best = sco
				bestShift = shift
			}
		}
		result = append(result, MelodyScore{
			ID:            id,
			Name:          m.Name,
			Score:         best / float64(len(query)),
			Transposition: bestShift,
		})
	}
	l.lock.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Score == result[j].Score {
			return result[i].ID < result[j].ID
		}
		return result[i].Score < result[j].Score
	})
	return result
}

// AddFromFile loads melodies from a text file with one melody per line:
// id<TAB>name<TAB>space separated MIDI notes. Blank lines and lines
// starting with # are skipped.
func (l *Library) AddFromFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("pitchtrack: open melodies %q: %w", path, err)
	}
	defer f.Close()

	added := 0
	scan := bufio.NewScanner(f)
	scan.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			return added, fmt.Errorf("pitchtrack: %s:%d: want id<TAB>name<TAB>notes", path, lineNo)
		}
		l.Add(NewMelody(parts[0], parts[1], ParseSeries(parts[2])))
		added++
	}
	if err := scan.Err(); err != nil {
		return added, fmt.Errorf("pitchtrack: read melodies %q: %w", path, err)
	}
	return added, nil
}

func midiNotes(notes []float64) []float64 {
	out := make([]float64, 0, len(notes))
	for _, n := range notes {
		if n >= MinMidiNote && n <= MaxMidiNote {
			out = append(out, n)
		}
	}
	return out
}
