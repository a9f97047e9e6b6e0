package profile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/robotdriver/internal/kinematics"
)

const yamlProfile = `
name: planar2
max_velocity: 0.5
joints:
  - name: shoulder
    min: -1.5
    max: 1.5
    initial: 0.25
  - name: elbow
    min: -2
    max: 2
reference_frame:
  frame_id: base
  translation: [0.1, 0.0, 0.5]
  rotation: [0.7071067811865476, 0, 0, 0.7071067811865476]
`

const tomlProfile = `
name = "planar2"
max_velocity = 0.5

[[joints]]
name = "shoulder"
min = -1.5
max = 1.5
initial = 0.25

[[joints]]
name = "elbow"
min = -2.0
max = 2.0

[reference_frame]
frame_id = "base"
translation = [0.1, 0.0, 0.5]
rotation = [0.7071067811865476, 0.0, 0.0, 0.7071067811865476]
`

func TestParseFormatsAgree(t *testing.T) {
	fromYAML, err := Parse([]byte(yamlProfile), FormatYAML)
	require.NoError(t, err)
	fromTOML, err := Parse([]byte(tomlProfile), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromTOML)
	assert.Equal(t, "planar2", fromYAML.Name)
	assert.Equal(t, []string{"shoulder", "elbow"}, fromYAML.JointNames())
	assert.Equal(t, kinematics.JointVector{0.25, 0}, fromYAML.InitialPositions())
	assert.Equal(t, kinematics.JointLimits{
		Min: kinematics.JointVector{-1.5, -2},
		Max: kinematics.JointVector{1.5, 2},
	}, fromYAML.JointLimits())
	assert.Equal(t, "base", fromYAML.FrameID())
}

func TestProfilePose(t *testing.T) {
	p, err := Parse([]byte(yamlProfile), FormatYAML)
	require.NoError(t, err)

	pose, err := p.Pose()
	require.NoError(t, err)
	assert.True(t, pose.IsUnit())

	tr := pose.Translation()
	assert.InDelta(t, 0.1, tr[0], 1e-9)
	assert.InDelta(t, 0.0, tr[1], 1e-9)
	assert.InDelta(t, 0.5, tr[2], 1e-9)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("name: x\nlinks: []\njoints: [{name: a}]\n"), FormatYAML)
	assert.Error(t, err)

	_, err = Parse([]byte("name = \"x\"\nlinks = 3\n[[joints]]\nname = \"a\"\n"), FormatTOML)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Profile)
		wantErr string
	}{
		{name: "default is valid", mutate: func(*Profile) {}},
		{name: "missing name", mutate: func(p *Profile) { p.Name = " " }, wantErr: "name is required"},
		{name: "no joints", mutate: func(p *Profile) { p.Joints = nil }, wantErr: "at least one joint"},
		{name: "duplicate joint", mutate: func(p *Profile) { p.Joints[1].Name = p.Joints[0].Name }, wantErr: "duplicate name"},
		{name: "inverted limits", mutate: func(p *Profile) { p.Joints[0].Min = 3 }, wantErr: "exceeds max"},
		{name: "initial outside limits", mutate: func(p *Profile) { p.Joints[0].Initial = 10 }, wantErr: "outside"},
		{name: "short translation", mutate: func(p *Profile) { p.ReferenceFrame.Translation = []float64{1} }, wantErr: "translation needs 3"},
		{name: "non-unit rotation", mutate: func(p *Profile) { p.ReferenceFrame.Rotation = []float64{1, 1, 0, 0} }, wantErr: "not unit"},
		{name: "negative velocity", mutate: func(p *Profile) { p.MaxVelocity = -1 }, wantErr: "max_velocity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEmptyRotationIsIdentity(t *testing.T) {
	p := Default()
	p.ReferenceFrame = Frame{}
	require.NoError(t, p.Validate())

	pose, err := p.Pose()
	require.NoError(t, err)
	assert.True(t, pose.EqualApprox(kinematics.Identity(), 1e-12))
	assert.Equal(t, "world", p.FrameID())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "robot.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlProfile), 0o644))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "planar2", p.Name)

	_, err = Load(filepath.Join(dir, "robot.json"))
	assert.ErrorContains(t, err, "unsupported profile extension")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read profile")
}

func TestWatcherReloadsValidChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "robot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlProfile), 0o644))

	var latest atomic.Pointer[Profile]
	w, err := NewWatcher(path, func(p *Profile) { latest.Store(p) }, nil, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Invalid edits are ignored.
	require.NoError(t, os.WriteFile(path, []byte("name: broken\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, latest.Load())

	updated := strings.Replace(yamlProfile, "name: planar2", "name: renamed", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		p := latest.Load()
		return p != nil && p.Name == "renamed"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
