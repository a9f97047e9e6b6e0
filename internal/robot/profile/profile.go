// Package profile describes a robot: its joints, limits, start pose and base
// frame. Profiles are read from YAML or TOML files.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"gonum.org/v1/gonum/num/quat"

	"github.com/GriffinCanCode/robotdriver/internal/kinematics"
)

// Format is a profile file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// rotationTolerance is looser than kinematics.UnitTolerance because profile
// quaternions are typed by hand.
const rotationTolerance = 1e-6

// Profile is a robot description.
type Profile struct {
	Name string `yaml:"name" toml:"name"`
	// MaxVelocity overrides the simulator joint speed in rad/s when set.
	MaxVelocity    float64 `yaml:"max_velocity,omitempty" toml:"max_velocity,omitempty"`
	Joints         []Joint `yaml:"joints" toml:"joints"`
	ReferenceFrame Frame   `yaml:"reference_frame" toml:"reference_frame"`
}

// Joint is one actuated joint.
type Joint struct {
	Name    string  `yaml:"name" toml:"name"`
	Min     float64 `yaml:"min" toml:"min"`
	Max     float64 `yaml:"max" toml:"max"`
	Initial float64 `yaml:"initial" toml:"initial"`
}

// Frame is the robot base pose. An empty rotation means identity.
type Frame struct {
	ID          string    `yaml:"frame_id,omitempty" toml:"frame_id,omitempty"`
	Translation []float64 `yaml:"translation,omitempty" toml:"translation,omitempty"`
	// Rotation is a quaternion in (w, x, y, z) order.
	Rotation []float64 `yaml:"rotation,omitempty" toml:"rotation,omitempty"`
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported profile extension %q", filepath.Ext(path))
	}
}

// Load reads and validates a profile file.
func Load(path string) (*Profile, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a profile. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Profile, error) {
	var p Profile
	switch format {
	case FormatYAML:
		if err := yaml.UnmarshalWithOptions(data, &p, yaml.DisallowUnknownField()); err != nil {
			return nil, fmt.Errorf("failed to parse YAML profile: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to parse TOML profile: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported profile format %q", format)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the profile for internal consistency.
func (p *Profile) Validate() error {
	var errs []error

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if p.MaxVelocity < 0 {
		errs = append(errs, fmt.Errorf("max_velocity must not be negative, got %g", p.MaxVelocity))
	}
	if len(p.Joints) == 0 {
		errs = append(errs, errors.New("at least one joint is required"))
	}

	seen := make(map[string]bool, len(p.Joints))
	for i, j := range p.Joints {
		switch {
		case j.Name == "":
			errs = append(errs, fmt.Errorf("joint %d: name is required", i))
		case seen[j.Name]:
			errs = append(errs, fmt.Errorf("joint %d: duplicate name %q", i, j.Name))
		}
		seen[j.Name] = true

		if j.Min <= j.Max && (j.Initial < j.Min || j.Initial > j.Max) {
			errs = append(errs, fmt.Errorf("joint %q: initial %g outside [%g, %g]", j.Name, j.Initial, j.Min, j.Max))
		}
	}
	if len(p.Joints) > 0 {
		if err := p.JointLimits().Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if n := len(p.ReferenceFrame.Translation); n != 0 && n != 3 {
		errs = append(errs, fmt.Errorf("reference_frame.translation needs 3 values, got %d", n))
	}
	if n := len(p.ReferenceFrame.Rotation); n != 0 {
		if n != 4 {
			errs = append(errs, fmt.Errorf("reference_frame.rotation needs 4 values, got %d", n))
		} else if norm := quat.Abs(p.rotation()); math.Abs(norm-1) > rotationTolerance {
			errs = append(errs, fmt.Errorf("reference_frame.rotation is not unit (norm %g)", norm))
		}
	}

	return errors.Join(errs...)
}

// JointNames lists the joint names in order.
func (p *Profile) JointNames() []string {
	names := make([]string, len(p.Joints))
	for i, j := range p.Joints {
		names[i] = j.Name
	}
	return names
}

// JointLimits returns the per-joint bounds.
func (p *Profile) JointLimits() kinematics.JointLimits {
	limits := kinematics.JointLimits{
		Min: make(kinematics.JointVector, len(p.Joints)),
		Max: make(kinematics.JointVector, len(p.Joints)),
	}
	for i, j := range p.Joints {
		limits.Min[i] = j.Min
		limits.Max[i] = j.Max
	}
	return limits
}

// InitialPositions returns the start configuration.
func (p *Profile) InitialPositions() kinematics.JointVector {
	q := make(kinematics.JointVector, len(p.Joints))
	for i, j := range p.Joints {
		q[i] = j.Initial
	}
	return q
}

// Pose returns the reference frame as a unit pose.
func (p *Profile) Pose() (kinematics.Pose, error) {
	var t [3]float64
	copy(t[:], p.ReferenceFrame.Translation)

	pose, err := kinematics.FromTranslationRotation(t, p.rotation()).Normalize()
	if err != nil {
		return kinematics.Pose{}, fmt.Errorf("reference frame: %w", err)
	}
	return pose, nil
}

// FrameID returns the reference frame id, defaulting to "world".
func (p *Profile) FrameID() string {
	if p.ReferenceFrame.ID == "" {
		return "world"
	}
	return p.ReferenceFrame.ID
}

func (p *Profile) rotation() quat.Number {
	r := p.ReferenceFrame.Rotation
	if len(r) != 4 {
		return quat.Number{Real: 1}
	}
	return quat.Number{Real: r[0], Imag: r[1], Jmag: r[2], Kmag: r[3]}
}

// Default returns a seven-joint arm at the origin.
func Default() *Profile {
	const limit = 2.8973
	joints := []Joint{
		{Name: "joint_1", Min: -limit, Max: limit},
		{Name: "joint_2", Min: -1.7628, Max: 1.7628},
		{Name: "joint_3", Min: -limit, Max: limit},
		{Name: "joint_4", Min: -3.0718, Max: -0.0698, Initial: -1.5708},
		{Name: "joint_5", Min: -limit, Max: limit},
		{Name: "joint_6", Min: -0.0175, Max: 3.7525, Initial: 1.5708},
		{Name: "joint_7", Min: -limit, Max: limit, Initial: 0.7854},
	}
	return &Profile{
		Name:   "arm7",
		Joints: joints,
		ReferenceFrame: Frame{
			ID:          "world",
			Translation: []float64{0, 0, 0},
			Rotation:    []float64{1, 0, 0, 0},
		},
	}
}
