// YIN pitch detection, after the C implementation at
// https://github.com/ashokfernandez/Yin-Pitch-Tracking and its Go port by
// Joao Nuno Carvalho (MIT License).
//
// Reference: http://audition.ens.fr/adc/pdf/2002_JASA_YIN.pdf

package pitchtrack

const YIN_DEFAULT_THRESHOLD float64 = 0.15

// Yin is the classic YIN tracker: one independent estimate per frame, no
// temporal model.
type Yin struct {
	SampleRate  int
	FrameLength int
	HopLength   int
	Fmin        float64
	Fmax        float64
	Threshold   float64 // allowed aperiodicity, 0.15 accepts ~85% periodic frames

	yinBuffer   []float64
	probability float64
}

func NewYin(sampleRate, frameLength, hopLength int, fmin, fmax float64) *Yin {
	return &Yin{
		SampleRate:  sampleRate,
		FrameLength: frameLength,
		HopLength:   hopLength,
		Fmin:        fmin,
		Fmax:        fmax,
		Threshold:   YIN_DEFAULT_THRESHOLD,
	}
}

func (Y *Yin) Detect(samples []float64) Estimates {
	n := FrameCount(len(samples), Y.HopLength)
	out := Estimates{
		Frequency:   make([]float64, n),
		Probability: make([]float64, n),
	}
	buf := make([]float64, Y.FrameLength)
	for i := 0; i < n; i++ {
		centeredFrame(buf, samples, i*Y.HopLength)
		f := Y.GetPitch(buf)
		if f < Y.Fmin || f > Y.Fmax {
			continue
		}
		out.Frequency[i] = f
		out.Probability[i] = Y.probability
	}
	return out
}

// GetPitch returns the fundamental frequency of one frame in Hz, or -1 if
// no period passes the threshold. Lags are searched up to the period of
// Fmin or half the frame, whichever is shorter.
func (Y *Yin) GetPitch(buffer []float64) float64 {
	half := len(buffer) / 2
	maxTau := half
	if Y.Fmin > 0 {
		maxTau = IntMin(half, int(float64(Y.SampleRate)/Y.Fmin)+2)
	}
	if cap(Y.yinBuffer) < maxTau {
		Y.yinBuffer = make([]float64, maxTau)
	}
	Y.yinBuffer = Y.yinBuffer[:maxTau]
	Y.probability = 0

	Y.difference(buffer, half)
	Y.cumulativeMeanNormalizedDifference()
	tau := Y.absoluteThreshold()
	if tau == -1 {
		return -1
	}
	return float64(Y.SampleRate) / Y.parabolicInterpolation(tau)
}

// Probability of the last pitch found, 1 - aperiodicity.
func (Y *Yin) Probability() float64 {
	return Y.probability
}

// squared difference of the signal with a shifted copy of itself
func (Y *Yin) difference(buffer []float64, window int) {
	for tau := range Y.yinBuffer {
		sum := 0.0
		for i := 0; i < window; i++ {
			delta := buffer[i] - buffer[i+tau]
			sum += delta * delta
		}
		Y.yinBuffer[tau] = sum
	}
}

func (Y *Yin) cumulativeMeanNormalizedDifference() {
	runningSum := 0.0
	Y.yinBuffer[0] = 1
	for tau := 1; tau < len(Y.yinBuffer); tau++ {
		runningSum += Y.yinBuffer[tau]
		if runningSum > 0 {
			Y.yinBuffer[tau] *= float64(tau) / runningSum
		} else {
			Y.yinBuffer[tau] = 1
		}
	}
}

// absoluteThreshold returns the first lag under the threshold, walked down
// to its local minimum, or -1.
func (Y *Yin) absoluteThreshold() int {
	n := len(Y.yinBuffer)
	for tau := 2; tau < n; tau++ {
		if Y.yinBuffer[tau] >= Y.Threshold {
			continue
		}
		for tau+1 < n && Y.yinBuffer[tau+1] < Y.yinBuffer[tau] {
			tau++
		}
		Y.probability = 1 - Y.yinBuffer[tau]
		return tau
	}
	return -1
}

func (Y *Yin) parabolicInterpolation(tauEstimate int) float64 {
	x0 := tauEstimate - 1
	x2 := tauEstimate + 1
	if x2 >= len(Y.yinBuffer) {
		if Y.yinBuffer[tauEstimate] <= Y.yinBuffer[x0] {
			return float64(tauEstimate)
		}
		return float64(x0)
	}
	s0 := Y.yinBuffer[x0]
	s1 := Y.yinBuffer[tauEstimate]
	s2 := Y.yinBuffer[x2]
	denom := 2 * (2*s1 - s2 - s0)
	if denom == 0 {
		return float64(tauEstimate)
	}
	return float64(tauEstimate) + (s2-s0)/denom
}
