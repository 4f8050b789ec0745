package core

import (
	"errors"
	"math"
	"testing"
)

func TestFunctionLinearEval(t *testing.T) {
	f := MustFunction([][2]float64{{0, 0}, {1, 10}, {2, 0}}, "x", "y")

	cases := []struct{ x, want float64 }{
		{0, 0}, {0.5, 5}, {1, 10}, {1.5, 5}, {-1, 0}, {3, 0},
	}
	for _, c := range cases {
		if got := f.Eval(c.x); math.Abs(got-c.want) > 1e-12 {
			t.Fatalf("Eval(%v) = %v, want %v", c.x, got, c.want)
		}
	}
}

func TestFunctionRejectsNonFinite(t *testing.T) {
	_, err := NewFunction([][2]float64{{0, math.NaN()}}, "x", "y", InterpLinear, ExtrapConstant)
	if !errors.Is(err, ErrInvalidFunction) {
		t.Fatalf("NewFunction(NaN) error = %v, want ErrInvalidFunction", err)
	}
}

func TestFunctionSortsAndDeduplicates(t *testing.T) {
	f := MustFunction([][2]float64{{2, 4}, {0, 0}, {1, 1}, {1, 2}}, "x", "y")
	if f.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", f.Len())
	}
	if got := f.Eval(1); got != 2 {
		t.Fatalf("Eval(1) = %v, want 2 (last duplicate wins)", got)
	}
}

func TestFunctionSplinePassesThroughSamples(t *testing.T) {
	pts := [][2]float64{{0, 0}, {1, 1}, {2, 4}, {3, 9}}
	for _, interp := range []Interpolation{InterpSpline, InterpAkima, InterpPolynomial} {
		f, err := NewFunction(pts, "x", "y", interp, ExtrapNatural)
		if err != nil {
			t.Fatalf("NewFunction(%s): %v", interp, err)
		}
		for _, p := range pts {
			if got := f.Eval(p[0]); math.Abs(got-p[1]) > 1e-9 {
				t.Fatalf("%s Eval(%v) = %v, want %v", interp, p[0], got, p[1])
			}
		}
	}
}

func TestFunctionIntegral(t *testing.T) {
	f := MustFunction([][2]float64{{0, 0}, {1, 1}, {2, 0}}, "x", "y")
	if got := f.Integral(0, 2); math.Abs(got-1) > 1e-12 {
		t.Fatalf("Integral(0, 2) = %v, want 1", got)
	}
	if got := f.Integral(2, 0); math.Abs(got+1) > 1e-12 {
		t.Fatalf("Integral(2, 0) = %v, want -1", got)
	}

	sq := NewCallable(func(x float64) float64 { return x * x }, "x", "y")
	if got := sq.Integral(0, 3); math.Abs(got-9) > 1e-6 {
		t.Fatalf("callable Integral(0, 3) = %v, want 9", got)
	}
}

func TestFunctionSetDiscrete(t *testing.T) {
	sq := NewCallable(func(x float64) float64 { return x * x }, "x", "y")
	d := sq.SetDiscrete(0, 10, 11)
	if d.IsCallable() {
		t.Fatalf("SetDiscrete returned a callable")
	}
	if d.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", d.Len())
	}
	lo, hi, ok := d.Domain()
	if !ok || lo != 0 || hi != 10 {
		t.Fatalf("Domain() = (%v, %v, %v), want (0, 10, true)", lo, hi, ok)
	}
	if got := d.Eval(5); got != 25 {
		t.Fatalf("Eval(5) = %v, want 25", got)
	}
}

func TestFunctionMaxMin(t *testing.T) {
	f := MustFunction([][2]float64{{0, 3}, {1, -2}, {2, 7}}, "x", "y")
	if x, y := f.Max(); x != 2 || y != 7 {
		t.Fatalf("Max() = (%v, %v), want (2, 7)", x, y)
	}
	if x, y := f.Min(); x != 1 || y != -2 {
		t.Fatalf("Min() = (%v, %v), want (1, -2)", x, y)
	}
}

func TestFunctionString(t *testing.T) {
	f := Constant(1, "Time (s)", "Thrust (N)")
	want := "Function from R1 to R1 : (Time (s)) → (Thrust (N))"
	if got := f.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
