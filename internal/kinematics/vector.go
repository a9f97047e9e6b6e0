package kinematics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var ErrLengthMismatch = errors.New("joint vector length mismatch")

// JointVector holds one value per robot joint.
type JointVector []float64

// FromFloat64s copies a raw slice into a JointVector. A nil input yields an
// empty vector.
func FromFloat64s(values []float64) JointVector {
	out := make(JointVector, len(values))
	copy(out, values)
	return out
}

// Float64s returns a copy of v as a plain slice for wire encoding.
func (v JointVector) Float64s() []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// Clone returns an independent copy of v.
func (v JointVector) Clone() JointVector {
	return FromFloat64s(v)
}

// IsEmpty reports whether v carries no joints.
func (v JointVector) IsEmpty() bool {
	return len(v) == 0
}

// EqualApprox reports element-wise equality within tol.
func (v JointVector) EqualApprox(other JointVector, tol float64) bool {
	return len(v) == len(other) && floats.EqualApprox(v, other, tol)
}

// StepToward moves current toward target by at most maxStep per joint.
func StepToward(current, target JointVector, maxStep float64) (JointVector, error) {
	if len(current) != len(target) {
		return nil, fmt.Errorf("%w: current has %d joints, target has %d",
			ErrLengthMismatch, len(current), len(target))
	}

	delta := make([]float64, len(current))
	floats.SubTo(delta, target, current)

	next := current.Clone()
	for i, d := range delta {
		next[i] += math.Max(-maxStep, math.Min(maxStep, d))
	}
	return next, nil
}

// JointLimits holds the lower and upper joint bounds. The two sides are
// updated independently and no ordering between them is enforced here.
type JointLimits struct {
	Min JointVector
	Max JointVector
}

// Clone returns an independent copy of l.
func (l JointLimits) Clone() JointLimits {
	return JointLimits{Min: l.Min.Clone(), Max: l.Max.Clone()}
}

// Validate checks that both bounds have the same non-zero length and that
// Min does not exceed Max for any joint.
func (l JointLimits) Validate() error {
	if l.Min.IsEmpty() || l.Max.IsEmpty() {
		return errors.New("joint limits are empty")
	}
	if len(l.Min) != len(l.Max) {
		return fmt.Errorf("%w: min has %d joints, max has %d",
			ErrLengthMismatch, len(l.Min), len(l.Max))
	}
	for i := range l.Min {
		if l.Min[i] > l.Max[i] {
			return fmt.Errorf("joint %d: min %g exceeds max %g", i, l.Min[i], l.Max[i])
		}
	}
	return nil
}

// Clamp limits every joint of v to [Min, Max].
func (l JointLimits) Clamp(v JointVector) (JointVector, error) {
	if len(v) != len(l.Min) || len(v) != len(l.Max) {
		return nil, fmt.Errorf("%w: vector has %d joints, limits have %d/%d",
			ErrLengthMismatch, len(v), len(l.Min), len(l.Max))
	}

	out := v.Clone()
	for i := range out {
		out[i] = math.Max(l.Min[i], math.Min(l.Max[i], out[i]))
	}
	return out, nil
}
