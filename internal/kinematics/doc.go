// Package kinematics provides the minimal robot state representations shared
// by both sides of the driver link.
//
// Types:
//   - JointVector: one real value per joint, length set by the robot
//   - JointLimits: independent lower and upper joint bounds
//   - Pose: rigid transform encoded as a unit dual quaternion
//
// Sentinels:
//   - An empty JointVector means "not yet received"
//   - The zero Pose is not unit and means "not yet received"
//
// Example Usage:
//
//	frame := kinematics.FromTranslationRotation(
//		[3]float64{0.1, 0, 0.3},
//		kinematics.RotationZ(math.Pi/2),
//	)
//	frame.IsUnit() // true
package kinematics
