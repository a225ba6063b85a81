package pitchtrack

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

func Median(arr []float64) float64 {
	if len(arr) == 0 {
		return 0
	}
	tmp := make([]float64, len(arr))
	copy(tmp, arr)
	sort.Float64s(tmp)
	mid := len(arr) / 2
	if len(arr)%2 == 0 {
		return (tmp[mid-1] + tmp[mid]) / 2
	}
	return tmp[mid]
}

// MedianFilter applies a sliding median of odd width size. Samples beyond
// either end count as zero, so for positive input the edge outputs are the
// smallest values near the edge, never zero.
func MedianFilter(x []float64, size int) []float64 {
	out := make([]float64, len(x))
	half := size / 2
	window := make([]float64, size)
	for i := range x {
		for k := range window {
			j := i - half + k
			if j < 0 || j >= len(x) {
				window[k] = 0
			} else {
				window[k] = x[j]
			}
		}
		sort.Float64s(window)
		out[i] = window[half]
	}
	return out
}

func IntMin(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func IntMax(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func seriesFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '\r'
	})
}

// ParseSeries reads whitespace or comma separated numbers, skipping tokens
// that do not parse.
func ParseSeries(line string) []float64 {
	toks := seriesFields(line)
	out := make([]float64, 0, len(toks))
	for i := range toks {
		n, err := strconv.ParseFloat(toks[i], 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// ParseFiniteSeries is ParseSeries for untrusted input: any token that is
// not a finite number fails the whole line with ErrInvalidParameter.
func ParseFiniteSeries(line string) ([]float64, error) {
	toks := seriesFields(line)
	out := make([]float64, 0, len(toks))
	for i, tok := range toks {
		n, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
			return nil, fmt.Errorf("%w: value %d (%q) is not a finite number", ErrInvalidParameter, i, tok)
		}
		out = append(out, n)
	}
	return out, nil
}
