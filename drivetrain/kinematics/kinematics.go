package kinematics

import (
	"math"

	"github.com/pkg/errors"
)

// ChassisSpeeds is a robot-relative velocity: forward in m/s and rotation in
// rad/s, counter-clockwise positive.
type ChassisSpeeds struct {
	Forward  float64
	Rotation float64
}

// WheelSpeeds are the linear speeds of each side in m/s.
type WheelSpeeds struct {
	Left  float64
	Right float64
}

// Desaturate scales both wheels by the same factor so neither exceeds
// maxSpeed, keeping their ratio and so the path curvature.
func (w WheelSpeeds) Desaturate(maxSpeed float64) WheelSpeeds {
	highest := math.Max(math.Abs(w.Left), math.Abs(w.Right))
	if highest <= maxSpeed || highest == 0 {
		return w
	}
	scale := maxSpeed / highest
	return WheelSpeeds{Left: w.Left * scale, Right: w.Right * scale}
}

// Kinematics converts between chassis motion and wheel motion.
type Kinematics interface {
	ToWheelSpeeds(ChassisSpeeds) WheelSpeeds
	ToChassisSpeeds(WheelSpeeds) ChassisSpeeds
}

// DifferentialDrive is the kinematics of a skid-steer chassis.
type DifferentialDrive struct {
	trackWidth float64
}

// NewDifferentialDrive validates the track width, the distance between the
// left and right wheel contact lines.
func NewDifferentialDrive(trackWidth float64) (DifferentialDrive, error) {
	if !(trackWidth > 0) || math.IsInf(trackWidth, 0) {
		return DifferentialDrive{}, errors.Errorf("track width must be positive, got %v", trackWidth)
	}
	return DifferentialDrive{trackWidth: trackWidth}, nil
}

func (d DifferentialDrive) TrackWidth() float64 { return d.trackWidth }

func (d DifferentialDrive) ToWheelSpeeds(s ChassisSpeeds) WheelSpeeds {
	half := s.Rotation * d.trackWidth / 2
	return WheelSpeeds{
		Left:  s.Forward - half,
		Right: s.Forward + half,
	}
}

func (d DifferentialDrive) ToChassisSpeeds(w WheelSpeeds) ChassisSpeeds {
	return ChassisSpeeds{
		Forward:  (w.Left + w.Right) / 2,
		Rotation: (w.Right - w.Left) / d.trackWidth,
	}
}

// Twist is the chassis motion over an interval given wheel distance deltas.
func (d DifferentialDrive) Twist(leftDelta, rightDelta float64) (forward, rotation float64) {
	s := d.ToChassisSpeeds(WheelSpeeds{Left: leftDelta, Right: rightDelta})
	return s.Forward, s.Rotation
}
