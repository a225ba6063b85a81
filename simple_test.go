package pitchtrack

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func randNotes(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(48 + rng.Intn(24))
	}
	return out
}

func TestAdd(t *testing.T) {
	lib := NewLibrary()
	lib.Add(NewMelody("1", "one", []float64{60, 62, 64}))
	if _, ok := lib.Get("1"); !ok {
		t.Error("melody 1 not found")
	}
	lib.Add(NewMelody("1", "one", nil))
	if _, ok := lib.Get("1"); ok {
		t.Error("empty melody did not remove 1")
	}
	if lib.Len() != 0 {
		t.Errorf("len = %d", lib.Len())
	}
}

func TestNewMelodyRange(t *testing.T) {
	notes := make([]float64, 0, 512)
	for i := 0; i < 256; i++ {
		notes = append(notes, 60)
	}
	for i := 0; i < 256; i++ {
		notes = append(notes, 72)
	}
	m := NewMelody("x", "jump", notes)
	if m.Low > 60 || m.High < 72 {
		t.Errorf("range [%v, %v] misses a section median", m.Low, m.High)
	}
}

func TestNewMelodyDropsOutOfRangeNotes(t *testing.T) {
	tests := []struct {
		notes string
		want  int
	}{
		{"Inf", 0},
		{"NaN -Inf", 0},
		{"1e17 1e17 1e17", 0},
		{"-1 60 128 62 Inf 64", 3},
	}
	for _, tt := range tests {
		m := NewMelody("x", "x", ParseSeries(tt.notes))
		if len(m.Notes) != tt.want {
			t.Errorf("%q: kept %v", tt.notes, m.Notes)
		}
		if len(m.Notes) > 0 && (m.Low < -2 || m.High > MaxMidiNote+2) {
			t.Errorf("%q: range [%v, %v]", tt.notes, m.Low, m.High)
		}
	}
}

func TestScoreFinishesOnHugeNotes(t *testing.T) {
	lib := NewLibrary()
	lib.Add(NewMelody("ok", "ok", []float64{60, 62, 64, 65}))
	for _, notes := range []string{"Inf", "1e17 1e17 1e17"} {
		lib.Add(NewMelody(notes, notes, ParseSeries(notes)))
	}
	// a range built by hand where t+1 == t in float64
	lib.Add(&Melody{ID: "far", Notes: []float64{60}, Low: 1e17, High: 1e17 + 64})
	done := make(chan []MelodyScore, 1)
	go func() {
		done <- lib.Score([]float64{60, 62, 64, math.Inf(1), 1e17})
	}()
	select {
	case res := <-done:
		if len(res) != 2 || res[0].ID != "ok" || math.IsInf(res[0].Score, 0) {
			t.Errorf("got %+v", res)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Score did not return")
	}
	// the library is still writable afterwards
	lib.Add(NewMelody("late", "late", []float64{70}))
	if lib.Len() != 3 {
		t.Errorf("len = %d", lib.Len())
	}
}

func TestDTWExactSubsequence(t *testing.T) {
	song := []float64{50, 60, 62, 64, 65, 40}
	if d := DTW(song, []float64{60, 62, 64}, 0); d != 0 {
		t.Errorf("distance = %v, want 0", d)
	}
	// transposed query is found with the matching shift
	if d := DTW(song, []float64{63, 65, 67}, 3); d != 0 {
		t.Errorf("distance = %v, want 0", d)
	}
	// time-stretched query still aligns
	if d := DTW(song, []float64{60, 60, 62, 62, 64}, 0); d != 0 {
		t.Errorf("distance = %v, want 0", d)
	}
	if d := DTW(nil, []float64{1}, 0); !math.IsInf(d, 1) {
		t.Errorf("empty song distance = %v", d)
	}
}

func TestAlignerMatchesDTW(t *testing.T) {
	var a Aligner
	for i := 1; i <= 10; i++ {
		for j := 1; j <= 10; j++ {
			rng := rand.New(rand.NewSource(int64(i + j)))
			query := randNotes(rng, i)
			song := randNotes(rng, j)
			if got, want := a.Distance(song, query, 2), DTW(song, query, 2); got != want {
				t.Errorf("query %d song %d: reused aligner %v, fresh %v", i, j, got, want)
			}
		}
	}
}

func TestScore(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	lib := NewLibrary()
	pattern := []float64{60, 62, 64, 65, 67, 65, 64, 62}
	a := make([]float64, 0, 200)
	for len(a) < 200 {
		a = append(a, pattern...)
	}
	lib.Add(NewMelody("a", "Song A", a))
	lib.Add(NewMelody("b", "Song B", randNotes(rng, 200)))
	lib.Add(NewMelody("c", "Song C", randNotes(rng, 200)))

	// a sung excerpt, two semitones up
	query := make([]float64, 41)
	for i := range query {
		query[i] = a[50+i] + 2
	}
	res := lib.Score(query)
	if len(res) != 3 {
		t.Fatalf("got %d results", len(res))
	}
	if res[0].ID != "a" {
		t.Errorf("best match %s, want a: %+v", res[0].ID, res)
	}
	if res[0].Score != 0 || res[0].Transposition != 2 {
		t.Errorf("best score %v at shift %v", res[0].Score, res[0].Transposition)
	}
	for i := 1; i < len(res); i++ {
		if res[i].Score < res[i-1].Score {
			t.Errorf("results not sorted: %+v", res)
		}
	}
	if got := lib.Score(nil); len(got) != 0 {
		t.Errorf("empty query gave %v", got)
	}
}

func TestAddFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "melodies.txt")
	data := "# id\tname\tnotes\n1\tLittle Bee\t67 64 64 65 62 62\n\n2\tScale\t60 62 64 65 67\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	lib := NewLibrary()
	n, err := lib.AddFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || lib.Len() != 2 {
		t.Fatalf("added %d, len %d", n, lib.Len())
	}
	m, _ := lib.Get("1")
	if m.Name != "Little Bee" || len(m.Notes) != 6 {
		t.Errorf("got %+v", m)
	}

	bad := filepath.Join(t.TempDir(), "bad.txt")
	os.WriteFile(bad, []byte("only-an-id\n"), 0o644)
	if _, err := lib.AddFromFile(bad); err == nil {
		t.Error("malformed line accepted")
	}
}

func BenchmarkScore(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	lib := NewLibrary()
	for i := 0; i < 10; i++ {
		lib.Add(NewMelody(string(rune('a'+i)), "", randNotes(rng, 1000)))
	}
	query := randNotes(rng, 128)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lib.Score(query)
	}
}
