package types

import (
	"math"
	"testing"
)

func TestVec3Ops(t *testing.T) {
	a := XYZ(1, 2, 3)
	b := XYZ(4, 5, 6)

	if got := a.Add(b); got != XYZ(5, 7, 9) {
		t.Fatalf("expected add to be (5, 7, 9); got %v", got)
	}
	if got := b.Sub(a); got != XYZ(3, 3, 3) {
		t.Fatalf("expected sub to be (3, 3, 3); got %v", got)
	}
	if got := a.Mul(2); got != XYZ(2, 4, 6) {
		t.Fatalf("expected mul to be (2, 4, 6); got %v", got)
	}
	if got := a.Dot(b); got != 32 {
		t.Fatalf("expected dot to be 32; got %f", got)
	}
	if got := XYZ(1, 0, 0).Cross(XYZ(0, 1, 0)); got != XYZ(0, 0, 1) {
		t.Fatalf("expected cross to be (0, 0, 1); got %v", got)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := XYZ(3, 0, 4).Normalize()
	if math.Abs(v.Len()-1.0) > 1e-12 {
		t.Fatalf("expected normalized length to be 1; got %f", v.Len())
	}
	if !ApproxEqual(v, XYZ(0.6, 0, 0.8), 1e-12) {
		t.Fatalf("expected (0.6, 0, 0.8); got %v", v)
	}

	if z := (Vec3{}).Normalize(); z != (Vec3{}) {
		t.Fatalf("expected zero vector to normalize to zero; got %v", z)
	}
}

func TestVec3IsFinite(t *testing.T) {
	if !XYZ(1, 2, 3).IsFinite() {
		t.Fatal("expected vector to be finite")
	}
	if XYZ(math.NaN(), 0, 0).IsFinite() {
		t.Fatal("expected NaN vector to be reported as non-finite")
	}
	if XYZ(0, math.Inf(-1), 0).IsFinite() {
		t.Fatal("expected Inf vector to be reported as non-finite")
	}
}

func TestColorClamp(t *testing.T) {
	type spec struct {
		in  Color
		exp Color
	}
	specs := []spec{
		{RGB(0.5, 0.25, 0), RGB(0.5, 0.25, 0)},
		{RGB(2, -1, 1), RGB(1, 0, 1)},
		{RGB(math.NaN(), math.Inf(1), math.Inf(-1)), RGB(0, 1, 0)},
	}

	for index, s := range specs {
		if got := s.in.Clamp(); got != s.exp {
			t.Fatalf("[spec %d] expected clamp to be %v; got %v", index, s.exp, got)
		}
	}
}

func TestColorRGB8(t *testing.T) {
	r, g, b := RGB(1, 0, 7).RGB8()
	if r != 255 || g != 0 || b != 255 {
		t.Fatalf("expected (255, 0, 255); got (%d, %d, %d)", r, g, b)
	}
}
