package transport

import "strings"

// Channel names relative to a robot prefix.
const (
	JointStatesName          = "get/joint_states"
	JointPositionsMinName    = "get/joint_positions_min"
	JointPositionsMaxName    = "get/joint_positions_max"
	ReferenceFrameName       = "get/reference_frame"
	TargetJointPositionsName = "set/target_joint_positions"
)

// Topics holds the fully qualified channel names of one robot.
type Topics struct {
	Prefix               string
	JointStates          string
	JointPositionsMin    string
	JointPositionsMax    string
	ReferenceFrame       string
	TargetJointPositions string
}

// NewTopics qualifies every channel with prefix.
func NewTopics(prefix string) Topics {
	prefix = NormalizePrefix(prefix)
	return Topics{
		Prefix:               prefix,
		JointStates:          prefix + JointStatesName,
		JointPositionsMin:    prefix + JointPositionsMinName,
		JointPositionsMax:    prefix + JointPositionsMaxName,
		ReferenceFrame:       prefix + ReferenceFrameName,
		TargetJointPositions: prefix + TargetJointPositionsName,
	}
}

// NormalizePrefix trims surrounding whitespace and makes a non-empty prefix
// end in exactly one "/".
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// All lists the topics in a stable order.
func (t Topics) All() []string {
	return []string{
		t.JointStates,
		t.JointPositionsMin,
		t.JointPositionsMax,
		t.ReferenceFrame,
		t.TargetJointPositions,
	}
}
