package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Interpolation selects how a sampled Function is evaluated between samples.
type Interpolation string

const (
	InterpLinear     Interpolation = "linear"
	InterpSpline     Interpolation = "spline"
	InterpAkima      Interpolation = "akima"
	InterpPolynomial Interpolation = "polynomial"
	InterpShepard    Interpolation = "shepard"
)

// Extrapolation selects how a sampled Function is evaluated outside its samples.
type Extrapolation string

const (
	ExtrapConstant Extrapolation = "constant"
	ExtrapZero     Extrapolation = "zero"
	ExtrapNatural  Extrapolation = "natural"
)

// ErrInvalidFunction is returned when a Function cannot be built from its source.
var ErrInvalidFunction = errors.New("invalid function source")

// Function is a one-dimensional scalar function of a single input. It is
// either backed by ordered samples and an interpolation scheme or by a Go
// callable.
type Function struct {
	Input  string
	Output string

	x, y   []float64
	interp Interpolation
	extrap Extrapolation

	// second derivatives for natural cubic splines, slopes for Akima.
	coeffs []float64

	callable func(float64) float64
}

// NewFunction builds a sampled Function. Points are sorted by x; duplicate x
// values keep the last sample.
func NewFunction(points [][2]float64, input, output string, interp Interpolation, extrap Extrapolation) (*Function, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidFunction)
	}
	sorted := make([][2]float64, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })

	x := make([]float64, 0, len(sorted))
	y := make([]float64, 0, len(sorted))
	for _, p := range sorted {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return nil, fmt.Errorf("%w: non-finite sample (%v, %v)", ErrInvalidFunction, p[0], p[1])
		}
		if n := len(x); n > 0 && x[n-1] == p[0] {
			y[n-1] = p[1]
			continue
		}
		x = append(x, p[0])
		y = append(y, p[1])
	}

	if interp == "" {
		interp = InterpLinear
	}
	if extrap == "" {
		extrap = ExtrapConstant
	}
	f := &Function{Input: input, Output: output, x: x, y: y, interp: interp, extrap: extrap}
	switch interp {
	case InterpLinear, InterpPolynomial, InterpShepard:
	case InterpSpline:
		if len(x) >= 3 {
			f.coeffs = naturalSplineSecondDerivatives(x, y)
		} else {
			f.interp = InterpLinear
		}
	case InterpAkima:
		if len(x) >= 3 {
			f.coeffs = akimaSlopes(x, y)
		} else {
			f.interp = InterpLinear
		}
	default:
		return nil, fmt.Errorf("%w: unknown interpolation %q", ErrInvalidFunction, interp)
	}
	return f, nil
}

// MustFunction is NewFunction for sources known to be valid.
func MustFunction(points [][2]float64, input, output string) *Function {
	f, err := NewFunction(points, input, output, InterpLinear, ExtrapConstant)
	if err != nil {
		panic(err)
	}
	return f
}

// NewCallable wraps a Go function.
func NewCallable(fn func(float64) float64, input, output string) *Function {
	return &Function{Input: input, Output: output, callable: fn}
}

// Constant returns a callable Function with a fixed value.
func Constant(v float64, input, output string) *Function {
	return NewCallable(func(float64) float64 { return v }, input, output)
}

// IsCallable reports whether f is backed by a Go callable rather than samples.
func (f *Function) IsCallable() bool { return f.callable != nil }

// Len returns the number of samples, or zero for callables.
func (f *Function) Len() int { return len(f.x) }

// Samples returns a copy of the (x, y) samples.
func (f *Function) Samples() [][2]float64 {
	out := make([][2]float64, len(f.x))
	for i := range f.x {
		out[i] = [2]float64{f.x[i], f.y[i]}
	}
	return out
}

// Domain returns the sampled input range.
func (f *Function) Domain() (lo, hi float64, ok bool) {
	if len(f.x) == 0 {
		return 0, 0, false
	}
	return f.x[0], f.x[len(f.x)-1], true
}

// Interpolation returns the scheme used between samples.
func (f *Function) Interpolation() Interpolation { return f.interp }

// String describes the function the way the projection renders opaque ones.
func (f *Function) String() string {
	return fmt.Sprintf("Function from R1 to R1 : (%s) → (%s)", f.Input, f.Output)
}

// Eval evaluates f at x.
func (f *Function) Eval(x float64) float64 {
	if f == nil {
		return 0
	}
	if f.callable != nil {
		return f.callable(x)
	}
	n := len(f.x)
	if n == 1 {
		if f.extrap == ExtrapZero && x != f.x[0] {
			return 0
		}
		return f.y[0]
	}
	if x < f.x[0] || x > f.x[n-1] {
		switch f.extrap {
		case ExtrapZero:
			return 0
		case ExtrapConstant:
			if x < f.x[0] {
				return f.y[0]
			}
			return f.y[n-1]
		}
	}

	switch f.interp {
	case InterpPolynomial:
		return lagrange(f.x, f.y, x)
	case InterpShepard:
		return shepard(f.x, f.y, x)
	}

	i := segment(f.x, x)
	switch f.interp {
	case InterpSpline:
		return evalSpline(f.x, f.y, f.coeffs, i, x)
	case InterpAkima:
		return evalHermite(f.x, f.y, f.coeffs, i, x)
	default:
		x0, x1 := f.x[i], f.x[i+1]
		y0, y1 := f.y[i], f.y[i+1]
		return y0 + (y1-y0)*(x-x0)/(x1-x0)
	}
}

// SetDiscrete samples f at n evenly spaced points on [lo, hi] and returns the
// linearly interpolated result.
func (f *Function) SetDiscrete(lo, hi float64, n int) *Function {
	if n < 2 {
		n = 2
	}
	points := make([][2]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := 0; i < n; i++ {
		x := lo + step*float64(i)
		points[i] = [2]float64{x, f.Eval(x)}
	}
	out, err := NewFunction(points, f.Input, f.Output, InterpLinear, ExtrapConstant)
	if err != nil {
		// non-finite values: keep the callable as is.
		return f
	}
	return out
}

// Derivative approximates df/dx at x with a central difference.
func (f *Function) Derivative(x float64) float64 {
	h := 1e-6 * math.Max(1, math.Abs(x))
	return (f.Eval(x+h) - f.Eval(x-h)) / (2 * h)
}

// Integral integrates f over [a, b]. Sampled linear functions are integrated
// exactly on their samples; everything else uses composite Simpson's rule.
func (f *Function) Integral(a, b float64) float64 {
	if a == b {
		return 0
	}
	if a > b {
		return -f.Integral(b, a)
	}
	if f.callable == nil && f.interp == InterpLinear {
		total := 0.0
		prevX, prevY := a, f.Eval(a)
		for i := range f.x {
			if f.x[i] <= a || f.x[i] >= b {
				continue
			}
			total += (f.x[i] - prevX) * (f.y[i] + prevY) / 2
			prevX, prevY = f.x[i], f.y[i]
		}
		total += (b - prevX) * (f.Eval(b) + prevY) / 2
		return total
	}
	const n = 400
	h := (b - a) / n
	sum := f.Eval(a) + f.Eval(b)
	for i := 1; i < n; i++ {
		w := 2.0
		if i%2 == 1 {
			w = 4.0
		}
		sum += w * f.Eval(a+float64(i)*h)
	}
	return sum * h / 3
}

// Max returns the sample with the greatest output.
func (f *Function) Max() (x, y float64) {
	if len(f.x) == 0 {
		return 0, math.NaN()
	}
	x, y = f.x[0], f.y[0]
	for i := range f.x {
		if f.y[i] > y {
			x, y = f.x[i], f.y[i]
		}
	}
	return x, y
}

// Min returns the sample with the smallest output.
func (f *Function) Min() (x, y float64) {
	if len(f.x) == 0 {
		return 0, math.NaN()
	}
	x, y = f.x[0], f.y[0]
	for i := range f.x {
		if f.y[i] < y {
			x, y = f.x[i], f.y[i]
		}
	}
	return x, y
}

// Map returns a sampled function with g applied to every output.
func (f *Function) Map(output string, g func(x, y float64) float64) *Function {
	if f.callable != nil {
		inner := f.callable
		return NewCallable(func(x float64) float64 { return g(x, inner(x)) }, f.Input, output)
	}
	points := make([][2]float64, len(f.x))
	for i := range f.x {
		points[i] = [2]float64{f.x[i], g(f.x[i], f.y[i])}
	}
	out, err := NewFunction(points, f.Input, output, f.interp, f.extrap)
	if err != nil {
		return NewCallable(func(x float64) float64 { return g(x, f.Eval(x)) }, f.Input, output)
	}
	return out
}

// segment returns i such that xs[i] <= x <= xs[i+1], clamped to the ends.
func segment(xs []float64, x float64) int {
	n := len(xs)
	i := sort.SearchFloat64s(xs, x) - 1
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	return i
}

func naturalSplineSecondDerivatives(x, y []float64) []float64 {
	n := len(x)
	m := make([]float64, n)
	u := make([]float64, n)
	for i := 1; i < n-1; i++ {
		sig := (x[i] - x[i-1]) / (x[i+1] - x[i-1])
		p := sig*m[i-1] + 2
		m[i] = (sig - 1) / p
		d := (y[i+1]-y[i])/(x[i+1]-x[i]) - (y[i]-y[i-1])/(x[i]-x[i-1])
		u[i] = (6*d/(x[i+1]-x[i-1]) - sig*u[i-1]) / p
	}
	m[n-1] = 0
	for k := n - 2; k >= 0; k-- {
		m[k] = m[k]*m[k+1] + u[k]
	}
	return m
}

func evalSpline(x, y, m []float64, i int, v float64) float64 {
	h := x[i+1] - x[i]
	a := (x[i+1] - v) / h
	b := (v - x[i]) / h
	return a*y[i] + b*y[i+1] + ((a*a*a-a)*m[i]+(b*b*b-b)*m[i+1])*h*h/6
}

func akimaSlopes(x, y []float64) []float64 {
	n := len(x)
	// secant slopes padded with two extrapolated values on each side
	d := make([]float64, n+3)
	for i := 0; i < n-1; i++ {
		d[i+2] = (y[i+1] - y[i]) / (x[i+1] - x[i])
	}
	d[1] = 2*d[2] - d[3]
	d[0] = 2*d[1] - d[2]
	d[n+1] = 2*d[n] - d[n-1]
	d[n+2] = 2*d[n+1] - d[n]

	t := make([]float64, n)
	for i := 0; i < n; i++ {
		w1 := math.Abs(d[i+3] - d[i+2])
		w2 := math.Abs(d[i+1] - d[i])
		if w1+w2 == 0 {
			t[i] = (d[i+1] + d[i+2]) / 2
			continue
		}
		t[i] = (w1*d[i+1] + w2*d[i+2]) / (w1 + w2)
	}
	return t
}

func evalHermite(x, y, t []float64, i int, v float64) float64 {
	h := x[i+1] - x[i]
	s := (v - x[i]) / h
	h00 := 2*s*s*s - 3*s*s + 1
	h10 := s*s*s - 2*s*s + s
	h01 := -2*s*s*s + 3*s*s
	h11 := s*s*s - s*s
	return h00*y[i] + h10*h*t[i] + h01*y[i+1] + h11*h*t[i+1]
}

func lagrange(x, y []float64, v float64) float64 {
	total := 0.0
	for i := range x {
		term := y[i]
		for j := range x {
			if i != j {
				term *= (v - x[j]) / (x[i] - x[j])
			}
		}
		total += term
	}
	return total
}

func shepard(x, y []float64, v float64) float64 {
	num, den := 0.0, 0.0
	for i := range x {
		d := math.Abs(v - x[i])
		if d == 0 {
			return y[i]
		}
		w := 1 / (d * d)
		num += w * y[i]
		den += w
	}
	return num / den
}
