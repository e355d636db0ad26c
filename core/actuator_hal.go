package core

// MotorDriver is the capability set the controllers need from a motor
// controller and its encoder. Positions are raw encoder counts and velocities
// raw counts per second. Implementations never block the control loop; a driver
// that cannot reach its hardware reports the last good reading.
type MotorDriver interface {
	ReadPosition() float64
	ReadVelocity() float64
	SetVoltage(volts float64)
	Stop()
}

// PositionResetter is implemented by drivers whose encoder can be re-zeroed
// at the source.
type PositionResetter interface {
	ResetPosition()
}

// HeadingSource reports the robot heading in radians, counter-clockwise positive.
type HeadingSource interface {
	Heading() float64
}

// HeadingFunc adapts a function to HeadingSource.
type HeadingFunc func() float64

func (f HeadingFunc) Heading() float64 { return f() }
