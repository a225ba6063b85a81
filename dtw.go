package pitchtrack

import "math"

// Aligner runs subsequence DTW with reusable row buffers. It is not safe
// for concurrent use.
type Aligner struct {
	dp1 []float64
	dp2 []float64
}

// Distance is the cheapest alignment of the whole query against any
// contiguous part of song, with song transposed by shift semitones.
func (a *Aligner) Distance(song, query []float64, shift float64) float64 {
	n2 := len(query)
	if n2 == 0 {
		return 0
	}
	if len(a.dp1) < n2+1 {
		a.dp1 = make([]float64, n2+1)
		a.dp2 = make([]float64, n2+1)
	}
	dp1, dp2 := a.dp1[:n2+1], a.dp2[:n2+1]
	// the query may start anywhere in the song
	dp1[0], dp2[0] = 0, 0
	for j := 1; j <= n2; j++ {
		dp1[j] = math.Inf(1)
	}
	ans := math.Inf(1)
	for i := range song {
		for j := 0; j < n2; j++ {
			diff := math.Abs(song[i] + shift - query[j])
			v := math.Min(dp1[j+1], math.Min(dp1[j], dp2[j]))
			dp2[j+1] = v + diff
		}
		dp1, dp2 = dp2, dp1
		if dp1[n2] < ans {
			ans = dp1[n2]
		}
	}
	return ans
}

func DTW(song, query []float64, shift float64) float64 {
	var a Aligner
	return a.Distance(song, query, shift)
}
