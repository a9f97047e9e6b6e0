package transport

import (
	"fmt"
	"time"

	"github.com/GriffinCanCode/robotdriver/internal/kinematics"
)

// JointStateMessage carries the current joint positions.
type JointStateMessage struct {
	Stamp    time.Time `json:"stamp"`
	Name     []string  `json:"name,omitempty"`
	Position []float64 `json:"position"`
}

// Validate checks that names, when present, match the positions.
func (m *JointStateMessage) Validate() error {
	if len(m.Name) > 0 && len(m.Name) != len(m.Position) {
		return fmt.Errorf("%d joint names for %d positions", len(m.Name), len(m.Position))
	}
	return nil
}

// Float64ArrayMessage carries a bare vector: limits and targets.
type Float64ArrayMessage struct {
	Data []float64 `json:"data"`
}

// PoseMessage carries a reference frame as the eight dual-quaternion
// coefficients (w, x, y, z, w', x', y', z').
type PoseMessage struct {
	Stamp   time.Time `json:"stamp"`
	FrameID string    `json:"frame_id,omitempty"`
	DQ      []float64 `json:"dq"`
}

// Validate checks the coefficient count. Unit norm is not checked here; a
// non-unit pose is a valid message that simply keeps consumers not ready.
func (m *PoseMessage) Validate() error {
	if len(m.DQ) != 8 {
		return fmt.Errorf("pose needs 8 coefficients, got %d", len(m.DQ))
	}
	return nil
}

// NewPoseMessage encodes a pose.
func NewPoseMessage(p kinematics.Pose, frameID string, stamp time.Time) PoseMessage {
	c := p.Components()
	return PoseMessage{Stamp: stamp, FrameID: frameID, DQ: c[:]}
}

// Pose decodes the coefficients. Validate must have passed.
func (m PoseMessage) Pose() kinematics.Pose {
	var c [8]float64
	copy(c[:], m.DQ)
	return kinematics.PoseFromComponents(c)
}
