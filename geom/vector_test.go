package geom

import (
	"testing"
)

func TestVector2(t *testing.T) {
	zero := NewVector2(0, 0)
	if zero.Len() != 0 || zero.LenSqr() != 0 || zero.Dot(zero) != 0 {
		t.Error("len != 0")
	}

	if *NewVector2(1, 0).Add(NewVector2(0, 1)) != *NewVector2(1, 1) {
		t.Error("Vector.Add()")
	}
}

func TestVector3(t *testing.T) {
	zero := NewVector3(0, 0, 0)
	if zero.Len() != 0 || zero.LenSqr() != 0 || zero.Dot(zero) != 0 {
		t.Error("len != 0")
	}

	if *zero.Normalize() != *NewVector3(1, 0, 0) {
		t.Error("Normalize shoud returns unit vector.", zero.Normalize())
	}

	if *NewVector3(1, 0, 0).Add(NewVector3(0, 1, 0)) != *NewVector3(1, 1, 0) {
		t.Error("Vector.Add()")
	}

	v := NewVector3(1.5, -2, 3)
	if !v.Add(v.Neg()).IsZero() {
		t.Error("Vector.Neg()")
	}
}

func TestMatrix4(t *testing.T) {
	m := NewTranslateMatrix4(1, 2, 3).Mul(NewScaleMatrix4(2, 2, 2))
	v := m.ApplyTo(NewVector3(1, 1, 1))
	if *v != *NewVector3(3, 4, 5) {
		t.Error("translate * scale: ", v)
	}
}
