// Package odometry integrates wheel distances and gyro heading into a field pose.
package odometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
)

// Pose2D is a field position in meters and a heading, counter-clockwise
// positive from the field +X axis.
type Pose2D struct {
	Translation r2.Point
	Heading     s1.Angle
}

// NewPose builds a pose from coordinates and a heading in radians.
func NewPose(x, y, heading float64) Pose2D {
	return Pose2D{Translation: r2.Point{X: x, Y: y}, Heading: s1.Angle(heading).Normalized()}
}

func (p Pose2D) X() float64 { return p.Translation.X }

func (p Pose2D) Y() float64 { return p.Translation.Y }

// Exp moves the pose along a constant-curvature arc given in the robot frame:
// dx forward, dy to the left, dtheta of rotation.
func (p Pose2D) Exp(dx, dy, dtheta float64) Pose2D {
	var s, c float64
	if math.Abs(dtheta) < 1e-9 {
		s = 1 - dtheta*dtheta/6
		c = dtheta / 2
	} else {
		s = math.Sin(dtheta) / dtheta
		c = (1 - math.Cos(dtheta)) / dtheta
	}
	local := r2.Point{X: dx*s - dy*c, Y: dx*c + dy*s}
	return Pose2D{
		Translation: p.Translation.Add(rotate(local, p.Heading)),
		Heading:     (p.Heading + s1.Angle(dtheta)).Normalized(),
	}
}

func (p Pose2D) String() string {
	return fmt.Sprintf("Pose2D(x=%.4f, y=%.4f, heading=%.2f°)", p.X(), p.Y(), p.Heading.Degrees())
}

func rotate(v r2.Point, a s1.Angle) r2.Point {
	sin, cos := math.Sincos(a.Radians())
	return r2.Point{X: v.X*cos - v.Y*sin, Y: v.X*sin + v.Y*cos}
}

// Odometry tracks the robot pose from cumulative wheel distances and a gyro.
// Not safe for concurrent use.
type Odometry struct {
	pose       Pose2D
	gyroOffset s1.Angle
	prevLeft   float64
	prevRight  float64
}

// New starts tracking at initial. gyroHeading, left and right are the
// current raw sensor values.
func New(gyroHeading, left, right float64, initial Pose2D) *Odometry {
	o := &Odometry{}
	o.ResetPosition(gyroHeading, left, right, initial)
	return o
}

// ResetPosition declares that the robot is at pose given the current sensor
// readings. The gyro is not assumed to read the field heading.
func (o *Odometry) ResetPosition(gyroHeading, left, right float64, pose Pose2D) {
	pose.Heading = pose.Heading.Normalized()
	o.pose = pose
	o.gyroOffset = pose.Heading - s1.Angle(gyroHeading)
	o.prevLeft = left
	o.prevRight = right
}

// Update integrates the motion since the previous call and returns the new pose.
func (o *Odometry) Update(gyroHeading, left, right float64) Pose2D {
	dl := left - o.prevLeft
	dr := right - o.prevRight
	heading := (s1.Angle(gyroHeading) + o.gyroOffset).Normalized()
	dtheta := (heading - o.pose.Heading).Normalized()

	next := o.pose.Exp((dl+dr)/2, 0, dtheta.Radians())
	next.Heading = heading

	o.prevLeft = left
	o.prevRight = right
	o.pose = next
	return next
}

func (o *Odometry) Pose() Pose2D { return o.pose }
