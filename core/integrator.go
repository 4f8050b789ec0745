package core

import "math"

// Dormand–Prince 5(4) tableau.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	dpB5 = [7]float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0}
	dpB4 = [7]float64{5179.0 / 57600, 0, 7571.0 / 16695, 393.0 / 640, -92097.0 / 339200, 187.0 / 2100, 1.0 / 40}
)

// derivative evaluates dy/dt at (t, y) into out.
type derivative func(t float64, y, out []float64)

// stepper advances a system with adaptive Dormand–Prince steps.
type stepper struct {
	f       derivative
	rtol    float64
	atol    float64
	minStep float64
	maxStep float64

	k     [7][]float64
	tmp   []float64
	evals int
}

func newStepper(f derivative, dim int, rtol, atol, minStep, maxStep float64) *stepper {
	s := &stepper{f: f, rtol: rtol, atol: atol, minStep: minStep, maxStep: maxStep, tmp: make([]float64, dim)}
	for i := range s.k {
		s.k[i] = make([]float64, dim)
	}
	return s
}

// step attempts to advance y from t by at most h. It returns the state at the
// accepted time, the step actually taken and a proposal for the next step.
func (s *stepper) step(t float64, y []float64, h float64) (next []float64, taken, proposal float64) {
	dim := len(y)
	next = make([]float64, dim)
	for {
		h = clamp(h, s.minStep, s.maxStep)
		s.f(t, y, s.k[0])
		for stage := 1; stage < 7; stage++ {
			for i := 0; i < dim; i++ {
				acc := y[i]
				for j := 0; j < stage; j++ {
					acc += h * dpA[stage][j] * s.k[j][i]
				}
				s.tmp[i] = acc
			}
			s.f(t+dpC[stage]*h, s.tmp, s.k[stage])
		}
		s.evals += 7

		errSum := 0.0
		for i := 0; i < dim; i++ {
			y5, y4 := y[i], y[i]
			for j := 0; j < 7; j++ {
				y5 += h * dpB5[j] * s.k[j][i]
				y4 += h * dpB4[j] * s.k[j][i]
			}
			next[i] = y5
			scale := s.atol + s.rtol*math.Max(math.Abs(y[i]), math.Abs(y5))
			e := (y5 - y4) / scale
			errSum += e * e
		}
		errNorm := math.Sqrt(errSum / float64(dim))
		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
			// the caller rejects non-finite states.
			return next, h, h
		}

		factor := 10.0
		if errNorm > 0 {
			factor = clamp(0.9*math.Pow(errNorm, -0.2), 0.2, 10)
		}
		if errNorm <= 1 || h <= s.minStep {
			return next, h, h * factor
		}
		h *= factor
	}
}
