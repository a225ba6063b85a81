package main

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stdio2016/pitchtrack"
	"github.com/unixpickle/wav"
)

func writeTone(t *testing.T, path string, freq float64, sr int) {
	t.Helper()
	s := wav.NewPCM16Sound(1, sr)
	samples := make([]wav.Sample, sr/2)
	for i := range samples {
		samples[i] = wav.Sample(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr)))
	}
	s.SetSamples(samples)
	if err := wav.WriteFile(s, path); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzeTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a4.wav")
	writeTone(t, path, 440, 16000)

	var out bytes.Buffer
	if err := analyze([]string{path}, &out); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	if !strings.HasPrefix(text, "# "+path) {
		t.Errorf("missing header: %q", text[:min(len(text), 80)])
	}
	if !strings.Contains(text, "A4") {
		t.Error("no frame labelled A4")
	}
}

func TestAnalyzeJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a4.wav")
	writeTone(t, path, 440, 16000)

	var out bytes.Buffer
	if err := analyze([]string{"-json", path}, &out); err != nil {
		t.Fatal(err)
	}
	var contours []pitchtrack.Contour
	if err := json.Unmarshal(out.Bytes(), &contours); err != nil {
		t.Fatal(err)
	}
	if len(contours) != 1 || contours[0].Source != path || len(contours[0].Frames) == 0 {
		t.Fatalf("unexpected contours: %+v", contours)
	}
}

func TestAnalyzeNoFiles(t *testing.T) {
	if err := analyze(nil, &bytes.Buffer{}); err == nil {
		t.Error("expected an error without input files")
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("PITCHTRACK_TEST_ADDR", "")
	if got := envOr("PITCHTRACK_TEST_ADDR", ":1606"); got != ":1606" {
		t.Errorf("got %q", got)
	}
	t.Setenv("PITCHTRACK_TEST_ADDR", ":9000")
	if got := envOr("PITCHTRACK_TEST_ADDR", ":1606"); got != ":9000" {
		t.Errorf("got %q", got)
	}
}
