package pitchtrack

import (
	"math"
	"sort"

	"github.com/mjibson/go-dsp/fft"
)

type BetaParameters struct {
	Alpha float64
	Beta  float64
}

// Pyin is a probabilistic YIN tracker. Call Init after changing any
// exported field.
type Pyin struct {
	// parameters
	Fmin              float64
	Fmax              float64
	Sr                int
	FrameLength       int
	HopLength         int
	NThresholds       int
	BetaParameters    BetaParameters
	Resolution        float64
	MaxTransitionRate float64
	SwitchProb        float64
	NoTroughProb      float64

	// buffers
	buffer          []complex128
	d               []float64
	prior           []float64
	transition      [][]float64
	transitionStart []int
	nPitchBins      int
}

type PyinCandidate struct {
	Frequency   float64
	Probability float64
}

func NewPyin(samplerate, frameLength, hopLength int, fmin, fmax float64) *Pyin {
	pyin := &Pyin{
		Fmin:              fmin,
		Fmax:              fmax,
		Sr:                samplerate,
		FrameLength:       frameLength,
		HopLength:         hopLength,
		NThresholds:       100,
		BetaParameters:    BetaParameters{2, 18},
		Resolution:        0.1,
		MaxTransitionRate: 35.92,
		SwitchProb:        0.01,
		NoTroughProb:      0.01,
	}
	pyin.Init()
	return pyin
}

func (pyin *Pyin) Init() {
	pyin.nPitchBins = int(12*math.Log2(pyin.Fmax/pyin.Fmin)/pyin.Resolution) + 1

	// beta distribution over thresholds
	pyin.prior = make([]float64, pyin.NThresholds)
	alpha := pyin.BetaParameters.Alpha
	beta := pyin.BetaParameters.Beta
	psum := 0.0
	for i := range pyin.prior {
		x := float64(i+1) / float64(pyin.NThresholds)
		pyin.prior[i] = math.Pow(x, alpha-1) * math.Pow(1-x, beta-1)
		psum += pyin.prior[i]
	}
	for i := range pyin.prior {
		pyin.prior[i] /= psum
	}

	// HMM transitions; even states are voiced, odd states unvoiced
	maxStep := pyin.MaxTransitionRate * 12 / pyin.Resolution * float64(pyin.HopLength) / float64(pyin.Sr)
	nStates := pyin.nPitchBins * 2
	pyin.transition = make([][]float64, nStates)
	pyin.transitionStart = make([]int, nStates)
	for i := range pyin.transition {
		p := i / 2
		a := IntMax(p-int(maxStep), 0)
		b := IntMin(p+int(maxStep), pyin.nPitchBins-1)
		row := make([]float64, (b-a+1)*2)
		pyin.transitionStart[i] = a * 2

		stay, change := 1-pyin.SwitchProb, pyin.SwitchProb
		voicedProb, unvoicedProb := stay, change
		if i&1 == 1 {
			voicedProb, unvoicedProb = change, stay
		}
		sum := 0.0
		for j := a; j <= b; j++ {
			pitchProb := maxStep + 1 - math.Abs(float64(j-p))
			idx := (j - a) * 2
			row[idx] = voicedProb * pitchProb
			row[idx+1] = unvoicedProb * pitchProb
			sum += row[idx] + row[idx+1]
		}
		for j := range row {
			row[j] /= sum
		}
		pyin.transition[i] = row
	}

	pyin.buffer = make([]complex128, pyin.FrameLength*2)
	pyin.d = make([]float64, pyin.FrameLength)
}

// Detect tracks the whole signal and decodes the most likely pitch path.
// Probability is the per-frame voiced probability.
func (pyin *Pyin) Detect(samples []float64) Estimates {
	n := FrameCount(len(samples), pyin.HopLength)
	frames := make([][]PyinCandidate, n)
	paths := make([][]int, n)
	voiced := make([]float64, n)
	buf := make([]float64, pyin.FrameLength)

	prob := pyin.initialProbabilities()
	for i := 0; i < n; i++ {
		centeredFrame(buf, samples, i*pyin.HopLength)
		frames[i] = pyin.FindCandidates(buf)
		prob, paths[i], voiced[i] = pyin.forward(frames[i], prob)
	}
	return Estimates{
		Frequency:   pyin.viterbi(frames, paths, prob),
		Probability: voiced,
	}
}

// FindCandidates returns the pitch candidates of one frame sorted by
// descending probability. frame must hold FrameLength samples.
func (pyin *Pyin) FindCandidates(frame []float64) []PyinCandidate {
	pyin.difference(frame)
	pyin.cumulativeMean()
	return pyin.findDips()
}

func (pyin *Pyin) difference(frame []float64) {
	n := len(frame)
	x := pyin.buffer
	for i := range x {
		if i < n {
			x[i] = complex(frame[i], 0)
		} else {
			x[i] = 0
		}
	}
	x = fft.FFT(x)
	// power spectrum, its inverse is the autocorrelation
	for i := range x {
		re := real(x[i])
		im := imag(x[i])
		x[i] = complex(re*re+im*im, 0)
	}
	x = fft.IFFT(x)

	y := pyin.d
	sum := 0.0
	for i := range frame {
		sum += frame[i] * frame[i]
		y[n-1-i] = sum
	}
	partsum := 0.0
	for i := range frame {
		y[i] = y[i] + (sum - partsum) - 2*real(x[i])
		partsum += frame[i] * frame[i]
	}
}

// cumulativeMean normalizes d in place. Silent frames become all ones.
func (pyin *Pyin) cumulativeMean() {
	partsum := 0.0
	pyin.d[0] = 1
	for i := 1; i < len(pyin.d); i++ {
		partsum += pyin.d[i]
		if partsum > 0 {
			pyin.d[i] = pyin.d[i] * float64(i) / partsum
		} else {
			pyin.d[i] = 1
		}
	}
}

func (pyin *Pyin) findDips() []PyinCandidate {
	dips := make([]PyinCandidate, 0)
	thres := pyin.NThresholds
	argminD := 0.0
	minD := math.Inf(1)
	minPeriod := IntMax(int(float64(pyin.Sr)/pyin.Fmax), 2)
	maxPeriod := IntMin(int(float64(pyin.Sr)/pyin.Fmin)+1, pyin.FrameLength-1)
	for tau := minPeriod; tau < maxPeriod; tau++ {
		d := pyin.d[tau]
		if !(d < pyin.d[tau-1] && d <= pyin.d[tau+1]) {
			continue
		}
		candidate := PyinCandidate{
			Frequency: float64(pyin.Sr) / pyin.parabolicInterpolation(tau),
		}
		if d < minD {
			argminD = candidate.Frequency
			minD = d
		}
		// each threshold goes to the first dip below it
		for thres > 0 && d < float64(thres)/float64(pyin.NThresholds) {
			candidate.Probability += pyin.prior[thres-1]
			thres--
		}
		if candidate.Probability > 0 {
			dips = append(dips, candidate)
		}
	}
	if argminD == 0 {
		return dips
	}

	// thresholds below every dip go to the global minimum
	lastProb := 0.0
	for i := 0; i < thres; i++ {
		lastProb += pyin.prior[i]
	}
	lastProb *= pyin.NoTroughProb
	if len(dips) > 0 && dips[len(dips)-1].Frequency == argminD {
		dips[len(dips)-1].Probability += lastProb
	} else if lastProb > 0 {
		dips = append(dips, PyinCandidate{
			Frequency:   argminD,
			Probability: lastProb,
		})
	}
	sort.SliceStable(dips, func(i, j int) bool {
		return dips[i].Probability > dips[j].Probability
	})
	return dips
}

func (pyin *Pyin) parabolicInterpolation(pos int) float64 {
	s0 := pyin.d[pos-1]
	s1 := pyin.d[pos]
	s2 := pyin.d[pos+1]
	denom := (s2 + s0 - s1*2) * 2
	if denom == 0 {
		return float64(pos)
	}
	return float64(pos) - (s2-s0)/denom
}

func (pyin *Pyin) initialProbabilities() []float64 {
	out := make([]float64, pyin.nPitchBins*2)
	for i := range out {
		out[i] = 1.0 / float64(len(out))
	}
	return out
}

func (pyin *Pyin) bin(frequency float64) (int, float64) {
	pos := math.Log2(frequency/pyin.Fmin) * 12 / pyin.Resolution
	b := int(math.Round(pos))
	if b < 0 {
		b = 0
	} else if b >= pyin.nPitchBins {
		b = pyin.nPitchBins - 1
	}
	return b, math.Abs(pos - math.Round(pos))
}

func (pyin *Pyin) binFrequency(b int) float64 {
	return pyin.Fmin * math.Pow(2, float64(b)*pyin.Resolution/12)
}

// nearestCandidates maps each pitch bin to the index+1 of the candidate
// closest to its center, 0 if none.
func (pyin *Pyin) nearestCandidates(frame []PyinCandidate) []int {
	nearest := make([]int, pyin.nPitchBins)
	dist := make([]float64, len(frame))
	for i := range frame {
		b, frac := pyin.bin(frame[i].Frequency)
		dist[i] = frac
		if nearest[b] == 0 || frac < dist[nearest[b]-1] {
			nearest[b] = i + 1
		}
	}
	return nearest
}

func (pyin *Pyin) forward(frame []PyinCandidate, prob []float64) ([]float64, []int, float64) {
	newprob := make([]float64, len(prob))
	path := make([]int, len(prob))
	for i := range prob {
		jbase := pyin.transitionStart[i]
		for j, t := range pyin.transition[i] {
			nxtProb := prob[i] * t
			if nxtProb > newprob[jbase+j] {
				newprob[jbase+j] = nxtProb
				path[jbase+j] = i
			}
		}
	}

	nearest := pyin.nearestCandidates(frame)
	voicedProb := 0.0
	for _, c := range nearest {
		if c > 0 {
			voicedProb += frame[c-1].Probability
		}
	}
	voicedProb = math.Min(math.Max(voicedProb, 0), 1)

	// observation probabilities
	unvoiced := (1 - voicedProb) / float64(pyin.nPitchBins)
	for i := range newprob {
		var p float64
		if i&1 == 0 {
			if c := nearest[i/2]; c > 0 {
				p = frame[c-1].Probability
			}
		} else {
			p = unvoiced
		}
		newprob[i] *= p
	}

	sum := 0.0
	for i := range newprob {
		sum += newprob[i]
	}
	if sum == 0.0 {
		for i := range newprob {
			newprob[i] = 1.0 / float64(len(newprob))
			path[i] = i
		}
	} else {
		for i := range newprob {
			newprob[i] /= sum
		}
	}
	return newprob, path, voicedProb
}

func (pyin *Pyin) viterbi(frames [][]PyinCandidate, paths [][]int, finalProb []float64) []float64 {
	out := make([]float64, len(frames))
	state := 0
	for i := range finalProb {
		if finalProb[i] > finalProb[state] {
			state = i
		}
	}
	for i := len(frames) - 1; i >= 0; i-- {
		if state&1 == 0 {
			b := state / 2
			if c := pyin.nearestCandidates(frames[i])[b]; c > 0 {
				out[i] = frames[i][c-1].Frequency
			} else {
				out[i] = pyin.binFrequency(b)
			}
		}
		state = paths[i][state]
	}
	return out
}
