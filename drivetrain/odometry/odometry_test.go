package odometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertPose(t *testing.T, want, got Pose2D) {
	t.Helper()
	assert.InDelta(t, want.X(), got.X(), 1e-9, "x")
	assert.InDelta(t, want.Y(), got.Y(), 1e-9, "y")
	assert.InDelta(t, want.Heading.Radians(), got.Heading.Radians(), 1e-9, "heading")
}

func TestStraightLine(t *testing.T) {
	o := New(0, 0, 0, Pose2D{})
	assertPose(t, NewPose(1, 0, 0), o.Update(0, 1, 1))
	assertPose(t, NewPose(1.5, 0, 0), o.Update(0, 1.5, 1.5))
}

func TestStraightAlongHeading(t *testing.T) {
	o := New(0, 0, 0, NewPose(2, 3, math.Pi/4))
	got := o.Update(0, 1, 1)
	assertPose(t, NewPose(2+math.Sqrt2/2, 3+math.Sqrt2/2, math.Pi/4), got)
}

func TestQuarterArc(t *testing.T) {
	const radius = 2.0
	const track = 0.6
	o := New(0, 0, 0, Pose2D{})

	// center travels radius*pi/2; wheels sit half a track inside and outside
	left := (radius - track/2) * math.Pi / 2
	right := (radius + track/2) * math.Pi / 2
	got := o.Update(math.Pi/2, left, right)

	assertPose(t, NewPose(radius, radius, math.Pi/2), got)
}

func TestArcInSteps(t *testing.T) {
	const radius = 1.5
	o := New(0, 0, 0, Pose2D{})
	steps := 50
	for i := 1; i <= steps; i++ {
		theta := math.Pi / 2 * float64(i) / float64(steps)
		o.Update(theta, radius*theta, radius*theta)
	}
	assertPose(t, NewPose(radius, radius, math.Pi/2), o.Pose())
}

func TestSpinInPlace(t *testing.T) {
	o := New(0, 0, 0, NewPose(1, 1, 0))
	got := o.Update(math.Pi, -0.5, 0.5)
	assertPose(t, NewPose(1, 1, math.Pi), got)
}

func TestResetPosition(t *testing.T) {
	o := New(0, 0, 0, Pose2D{})
	o.Update(0.3, 4, 4.2)

	// the gyro keeps reading 0.3 but the robot is declared to face +Y
	o.ResetPosition(0.3, 4, 4.2, NewPose(5, -1, math.Pi/2))
	assertPose(t, NewPose(5, -1, math.Pi/2), o.Pose())

	got := o.Update(0.3, 5, 5.2)
	assertPose(t, NewPose(5, 0, math.Pi/2), got)
}

func TestHeadingWraps(t *testing.T) {
	o := New(0, 0, 0, NewPose(0, 0, math.Pi-0.1))
	got := o.Update(0.2, 0, 0)
	assert.InDelta(t, -math.Pi+0.1, got.Heading.Radians(), 1e-9)
}

func TestExpSmallAngle(t *testing.T) {
	p := Pose2D{}.Exp(1, 0, 1e-12)
	assert.InDelta(t, 1, p.X(), 1e-12)
	assert.InDelta(t, 0, p.Y(), 1e-9)
	assert.Contains(t, NewPose(1, 2, 0).String(), "x=1.0000")
}
