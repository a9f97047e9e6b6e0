package kinematics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// UnitTolerance bounds the deviation from unit norm accepted by IsUnit.
const UnitTolerance = 1e-12

var ErrZeroRotation = errors.New("pose has zero rotation part")

// Pose is a rigid transform encoded as a dual quaternion r + ε·½·t·r, where r
// is the rotation and t the translation as a pure quaternion. The zero value
// is not unit.
type Pose struct {
	dq dualquat.Number
}

// Identity returns the pose with no rotation and no translation.
func Identity() Pose {
	return Pose{dq: dualquat.Number{Real: quat.Number{Real: 1}}}
}

// PoseFromComponents builds a Pose from its eight coefficients in the order
// (w, x, y, z, w', x', y', z'). No normalization is applied.
func PoseFromComponents(c [8]float64) Pose {
	return Pose{dq: dualquat.Number{
		Real: quat.Number{Real: c[0], Imag: c[1], Jmag: c[2], Kmag: c[3]},
		Dual: quat.Number{Real: c[4], Imag: c[5], Jmag: c[6], Kmag: c[7]},
	}}
}

// Components returns the eight coefficients in (w, x, y, z, w', x', y', z')
// order.
func (p Pose) Components() [8]float64 {
	r, d := p.dq.Real, p.dq.Dual
	return [8]float64{r.Real, r.Imag, r.Jmag, r.Kmag, d.Real, d.Imag, d.Jmag, d.Kmag}
}

// FromTranslationRotation composes a pose from a translation and a rotation
// quaternion. The rotation is expected to be unit.
func FromTranslationRotation(t [3]float64, r quat.Number) Pose {
	tq := quat.Number{Imag: t[0], Jmag: t[1], Kmag: t[2]}
	return Pose{dq: dualquat.Number{
		Real: r,
		Dual: quat.Scale(0.5, quat.Mul(tq, r)),
	}}
}

// RotationZ returns the unit quaternion for a rotation of angle radians about
// the z axis.
func RotationZ(angle float64) quat.Number {
	return quat.Number{Real: math.Cos(angle / 2), Kmag: math.Sin(angle / 2)}
}

// Rotation returns the primal (rotation) part of the pose.
func (p Pose) Rotation() quat.Number {
	return p.dq.Real
}

// Translation recovers t = 2·D·conj(P).
func (p Pose) Translation() [3]float64 {
	t := quat.Scale(2, quat.Mul(p.dq.Dual, quat.Conj(p.dq.Real)))
	return [3]float64{t.Imag, t.Jmag, t.Kmag}
}

// Norm returns the primal and dual parts of the dual-quaternion norm
// sqrt(conj(p)·p) = |P| + ε·(P·D)/|P|.
func (p Pose) Norm() (primal, dual float64) {
	primal = quat.Abs(p.dq.Real)
	if primal == 0 {
		return 0, 0
	}
	return primal, dot(p.dq.Real, p.dq.Dual) / primal
}

// IsUnit reports whether the pose has unit dual-quaternion norm.
func (p Pose) IsUnit() bool {
	primal, dual := p.Norm()
	return math.Abs(primal-1) < UnitTolerance && math.Abs(dual) < UnitTolerance
}

// Normalize projects p onto the unit dual quaternions.
func (p Pose) Normalize() (Pose, error) {
	n := quat.Abs(p.dq.Real)
	if n == 0 {
		return Pose{}, ErrZeroRotation
	}
	r := quat.Scale(1/n, p.dq.Real)
	d := quat.Scale(1/n, p.dq.Dual)
	// Remove the component of the dual part parallel to the rotation.
	d = quat.Sub(d, quat.Scale(dot(r, d), r))
	return Pose{dq: dualquat.Number{Real: r, Dual: d}}, nil
}

// EqualApprox compares all eight components within tol.
func (p Pose) EqualApprox(q Pose, tol float64) bool {
	a, b := p.Components(), q.Components()
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}
