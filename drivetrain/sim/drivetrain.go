package sim

import (
	"math"
	"sync"

	"github.com/golang/geo/s1"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"rebelmotion/core"
	"rebelmotion/drivetrain/odometry"
	"rebelmotion/mechanism"
)

// state vector layout
const (
	stateX = iota
	stateY
	stateHeading
	stateLeftVelocity
	stateRightVelocity
	stateLeftDistance
	stateRightDistance
	stateSize
)

const (
	left  = 0
	right = 1
)

// State is a read-only snapshot of the simulated drivetrain.
type State struct {
	Pose          odometry.Pose2D
	Heading       float64
	LeftPosition  float64
	RightPosition float64
	LeftVelocity  float64
	RightVelocity float64
	LeftVoltage   float64
	RightVoltage  float64
	LeftCurrent   float64
	RightCurrent  float64
	TotalCurrent  float64
}

// Drivetrain simulates a differential drive from motor, mass and geometry.
// Wheel velocities follow the linear plant ẋ = A·x + B·u; pose, heading and
// wheel distances are integrated from them with fixed-step RK4, so identical
// inputs give identical trajectories.
type Drivetrain struct {
	mu sync.Mutex

	motor        DCMotor
	gearing      float64
	wheelRadius  float64
	trackWidth   float64
	countsPerRev float64
	maxVoltage   float64
	rightSign    float64

	a, b *mat.Dense

	x             [stateSize]float64
	u             [2]float64
	encoderOffset [2]float64
}

// NewDrivetrain builds the plant from cfg.
func NewDrivetrain(cfg mechanism.DrivetrainConfig) (*Drivetrain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	motor, err := MotorByName(cfg.Motor, cfg.MotorsPerSide)
	if err != nil {
		return nil, errors.Wrap(err, "drivetrain sim")
	}

	d := &Drivetrain{
		motor:        motor,
		gearing:      cfg.Gearing,
		wheelRadius:  cfg.WheelRadius,
		trackWidth:   cfg.TrackWidth,
		countsPerRev: cfg.EncoderCountsPerRev,
		maxVoltage:   motor.NominalVoltage,
		rightSign:    1,
	}
	if cfg.RightInverted {
		d.rightSign = -1
	}
	d.a, d.b = velocitySystem(motor, cfg.Mass, cfg.WheelRadius, cfg.TrackWidth/2, cfg.MomentOfInertia, cfg.Gearing)
	return d, nil
}

// velocitySystem is the left/right wheel velocity plant of a differential
// drive with mass m, wheel radius r, half track rb, moment of inertia j and
// gearing g.
func velocitySystem(motor DCMotor, m, r, rb, j, g float64) (a, b *mat.Dense) {
	c1 := -(g * g) * motor.Kt / (motor.Kv * motor.R * r * r)
	c2 := g * motor.Kt / (motor.R * r)
	same := 1/m + rb*rb/j
	cross := 1/m - rb*rb/j

	a = mat.NewDense(2, 2, []float64{
		same * c1, cross * c1,
		cross * c1, same * c1,
	})
	b = mat.NewDense(2, 2, []float64{
		same * c2, cross * c2,
		cross * c2, same * c2,
	})
	return a, b
}

// SetInputs sets the left and right voltages, each limited to the battery.
// Voltages are in the drivetrain's frame: positive drives forward.
func (d *Drivetrain) SetInputs(leftVolts, rightVolts float64) {
	d.mu.Lock()
	d.u[left] = clampAbs(leftVolts, d.maxVoltage)
	d.u[right] = clampAbs(rightVolts, d.maxVoltage)
	d.mu.Unlock()
}

func (d *Drivetrain) dynamics(x [stateSize]float64) [stateSize]float64 {
	var dx [stateSize]float64
	vl, vr := x[stateLeftVelocity], x[stateRightVelocity]
	v := (vl + vr) / 2
	sin, cos := math.Sincos(x[stateHeading])
	dx[stateX] = v * cos
	dx[stateY] = v * sin
	dx[stateHeading] = (vr - vl) / d.trackWidth

	var accel, drive mat.VecDense
	accel.MulVec(d.a, mat.NewVecDense(2, []float64{vl, vr}))
	drive.MulVec(d.b, mat.NewVecDense(2, []float64{d.u[left], d.u[right]}))
	accel.AddVec(&accel, &drive)
	dx[stateLeftVelocity] = accel.AtVec(0)
	dx[stateRightVelocity] = accel.AtVec(1)

	dx[stateLeftDistance] = vl
	dx[stateRightDistance] = vr
	return dx
}

// Update advances the simulation by dt seconds with one RK4 step.
func (d *Drivetrain) Update(dt float64) {
	if dt <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	step := func(x, k [stateSize]float64, h float64) [stateSize]float64 {
		var out [stateSize]float64
		for i := range x {
			out[i] = x[i] + h*k[i]
		}
		return out
	}
	x := d.x
	k1 := d.dynamics(x)
	k2 := d.dynamics(step(x, k1, dt/2))
	k3 := d.dynamics(step(x, k2, dt/2))
	k4 := d.dynamics(step(x, k3, dt))
	for i := range x {
		d.x[i] = x[i] + dt/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	d.x[stateHeading] = s1.Angle(d.x[stateHeading]).Normalized().Radians()
}

// State returns a snapshot.
func (d *Drivetrain) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	lc := d.sideCurrent(left)
	rc := d.sideCurrent(right)
	return State{
		Pose:          odometry.NewPose(d.x[stateX], d.x[stateY], d.x[stateHeading]),
		Heading:       d.x[stateHeading],
		LeftPosition:  d.x[stateLeftDistance],
		RightPosition: d.x[stateRightDistance],
		LeftVelocity:  d.x[stateLeftVelocity],
		RightVelocity: d.x[stateRightVelocity],
		LeftVoltage:   d.u[left],
		RightVoltage:  d.u[right],
		LeftCurrent:   lc,
		RightCurrent:  rc,
		TotalCurrent:  lc + rc,
	}
}

// sideCurrent is the magnitude of current drawn by one gearbox.
func (d *Drivetrain) sideCurrent(side int) float64 {
	speed := d.x[stateLeftVelocity+side] * d.gearing / d.wheelRadius
	return math.Abs(d.motor.Current(speed, d.u[side]))
}

// SetPose moves the robot and zeroes the wheel distances.
func (d *Drivetrain) SetPose(pose odometry.Pose2D) {
	d.mu.Lock()
	d.x[stateX] = pose.X()
	d.x[stateY] = pose.Y()
	d.x[stateHeading] = pose.Heading.Radians()
	d.x[stateLeftDistance] = 0
	d.x[stateRightDistance] = 0
	d.encoderOffset = [2]float64{}
	d.mu.Unlock()
}

func (d *Drivetrain) countsPerMeter() float64 {
	return d.countsPerRev / (2 * math.Pi * d.wheelRadius)
}

// LeftDriver exposes the left gearbox and encoder as a motor driver.
func (d *Drivetrain) LeftDriver() *WheelDriver {
	return &WheelDriver{sim: d, side: left, sign: 1}
}

// RightDriver exposes the right gearbox. When the right side is mounted
// mirrored its voltage and encoder are reversed, like the real wiring.
func (d *Drivetrain) RightDriver() *WheelDriver {
	return &WheelDriver{sim: d, side: right, sign: d.rightSign}
}

// Gyro reports the simulated heading.
func (d *Drivetrain) Gyro() core.HeadingSource {
	return core.HeadingFunc(func() float64 {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.x[stateHeading]
	})
}

// WheelDriver implements core.MotorDriver and core.PositionResetter for one
// side of a simulated drivetrain, in raw encoder counts.
type WheelDriver struct {
	sim  *Drivetrain
	side int
	sign float64
}

func (w *WheelDriver) ReadPosition() float64 {
	d := w.sim
	d.mu.Lock()
	defer d.mu.Unlock()
	return w.sign*d.x[stateLeftDistance+w.side]*d.countsPerMeter() - d.encoderOffset[w.side]
}

func (w *WheelDriver) ReadVelocity() float64 {
	d := w.sim
	d.mu.Lock()
	defer d.mu.Unlock()
	return w.sign * d.x[stateLeftVelocity+w.side] * d.countsPerMeter()
}

func (w *WheelDriver) SetVoltage(volts float64) {
	d := w.sim
	d.mu.Lock()
	d.u[w.side] = clampAbs(w.sign*volts, d.maxVoltage)
	d.mu.Unlock()
}

func (w *WheelDriver) Stop() {
	w.SetVoltage(0)
}

func (w *WheelDriver) ResetPosition() {
	d := w.sim
	d.mu.Lock()
	d.encoderOffset[w.side] = w.sign * d.x[stateLeftDistance+w.side] * d.countsPerMeter()
	d.mu.Unlock()
}

func clampAbs(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
