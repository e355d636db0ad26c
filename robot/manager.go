// Package robot assembles the mechanisms and drivetrain into one robot and
// runs them from the control loop.
package robot

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"rebelmotion/core"
	"rebelmotion/drivetrain"
	"rebelmotion/mechanism"
	"rebelmotion/mechanism/actuator"
)

// Telemetry keys published every cycle.
const (
	ElevatorHeightKey = "Elevator Height"
	ArmAngleKey       = "Arm Angle"
)

type scheduledCommand struct {
	task *core.Task
	cmd  core.Command
}

// Manager coordinates the subsystems.
type Manager struct {
	cfg       mechanism.RobotConfig
	loop      *core.Loop
	logger    golog.Logger
	telemetry core.Telemetry

	Arm        *actuator.Controller
	Elevator   *actuator.Controller
	Drivetrain *drivetrain.Drivetrain

	sim      *Simulation
	periodic *core.Task
	commands []scheduledCommand
	running  bool
}

// NewManager builds every subsystem from cfg on top of hw. The loop supplies
// the clock and period.
func NewManager(
	cfg mechanism.RobotConfig,
	hw Hardware,
	loop *core.Loop,
	logger golog.Logger,
	telemetry core.Telemetry,
) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := hw.validate(); err != nil {
		return nil, err
	}
	if loop == nil {
		return nil, errors.New("control loop is required")
	}
	if logger == nil {
		logger = golog.Global()
	}
	if telemetry == nil {
		telemetry = core.NopTelemetry{}
	}

	clock := loop.Clock()
	arm, err := actuator.New(cfg.Arm, hw.Arm, clock, logger, telemetry)
	if err != nil {
		return nil, err
	}
	elevator, err := actuator.New(cfg.Elevator, hw.Elevator, clock, logger, telemetry)
	if err != nil {
		return nil, err
	}
	drive, err := drivetrain.New(cfg.Drivetrain, loop.Period(), hw.Left, hw.Right, hw.Gyro, clock, logger, telemetry)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:        cfg,
		loop:       loop,
		logger:     logger.Named("robot"),
		telemetry:  telemetry,
		Arm:        arm,
		Elevator:   elevator,
		Drivetrain: drive,
	}, nil
}

// AttachSimulation steps sim after every control cycle.
func (m *Manager) AttachSimulation(sim *Simulation) {
	m.sim = sim
	m.Drivetrain.AttachSimulation(sim.Drivetrain)
}

// Start registers the per-cycle task with the loop.
func (m *Manager) Start() error {
	if m.running {
		return errors.New("already running")
	}
	m.periodic = m.loop.Scheduler.Every("robot", m.loop.Clock().Now(), m.loop.Period(), m.cycle)
	m.running = true
	m.logger.Infow("started", "period", m.loop.Period(), "simulated", m.sim != nil)
	return nil
}

func (m *Manager) IsRunning() bool { return m.running }

func (m *Manager) cycle() {
	m.Periodic()
	if m.sim != nil {
		m.SimulationPeriodic(m.loop.Period())
	}
}

// Periodic runs every subsystem once and publishes the headline values.
func (m *Manager) Periodic() {
	m.Arm.Periodic()
	m.Elevator.Periodic()
	m.Drivetrain.Periodic()

	m.telemetry.PutNumber(ElevatorHeightKey, m.Elevator.State().Position)
	m.telemetry.PutNumber(ArmAngleKey, m.Arm.State().Position)
}

// SimulationPeriodic advances the attached plants by dt.
func (m *Manager) SimulationPeriodic(dt float64) {
	if m.sim == nil {
		return
	}
	m.sim.Arm.Update(dt)
	m.sim.Elevator.Update(dt)
	m.Drivetrain.SimulationPeriodic(dt)
}

// Schedule runs cmd on the loop, starting next dispatch, until it finishes or
// is cancelled.
func (m *Manager) Schedule(cmd core.Command) *core.Task {
	live := m.commands[:0]
	for _, c := range m.commands {
		if m.loop.Scheduler.Scheduled(c.task) {
			live = append(live, c)
		}
	}
	task := m.loop.Scheduler.ScheduleCommand(cmd, m.loop.Clock().Now(), m.loop.Period())
	m.commands = append(live, scheduledCommand{task: task, cmd: cmd})
	return task
}

// CancelCommands interrupts every running command.
func (m *Manager) CancelCommands() {
	for _, c := range m.commands {
		if m.loop.Scheduler.Cancel(c.task) {
			c.cmd.End(true)
		}
	}
	m.commands = nil
}

// Stop interrupts commands and leaves every subsystem holding zero velocity.
// The control loop keeps running so gravity stays compensated.
func (m *Manager) Stop() {
	m.CancelCommands()
	for _, c := range []*actuator.Controller{m.Arm, m.Elevator} {
		c.SetMode(mechanism.VelocityHold)
		c.Stop()
	}
	m.Drivetrain.Stop()
}

// EmergencyStop stops everything and removes the robot from the loop, so no
// further voltage is issued.
func (m *Manager) EmergencyStop() {
	m.Stop()
	if m.periodic != nil {
		m.loop.Scheduler.Cancel(m.periodic)
		m.periodic = nil
	}
	m.running = false
	m.logger.Warnw("emergency stop")
}
