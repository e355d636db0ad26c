// Command rebelmotion runs the robot's mechanisms and drivetrain, either
// against the built-in simulator or against the motor controller board.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"tinygo.org/x/drivers/lsm6ds3tr"

	"rebelmotion/core"
	"rebelmotion/host/imu"
	"rebelmotion/host/motorlink"
	"rebelmotion/host/serial"
	"rebelmotion/mechanism"
	"rebelmotion/mechanism/actuator"
	"rebelmotion/mechanism/config"
	"rebelmotion/robot"
)

// Object IDs configured on the motor controller board.
const (
	armOID uint8 = iota
	elevatorOID
	leftOID
	rightOID
	imuOID
)

type options struct {
	configPath  string
	device      string
	duration    float64
	arm         float64
	elevator    float64
	forward     float64
	turn        float64
	plotPath    string
	calibration int
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("rebelmotion", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", "", "YAML tuning file (defaults built in)")
	fs.StringVar(&opts.device, "device", "", "serial device of the motor controller board; empty runs the simulator")
	fs.Float64Var(&opts.duration, "duration", 5, "seconds to run")
	fs.Float64Var(&opts.arm, "arm", 0, "arm goal in radians")
	fs.Float64Var(&opts.elevator, "elevator", 0, "elevator goal in meters")
	fs.Float64Var(&opts.forward, "forward", 0, "drive speed in m/s")
	fs.Float64Var(&opts.turn, "turn", 0, "turn rate in rad/s")
	fs.StringVar(&opts.plotPath, "plot", "", "write a telemetry plot to this PNG")
	fs.IntVar(&opts.calibration, "gyro-samples", 200, "gyro samples averaged for bias at startup")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if !(opts.duration > 0) || math.IsInf(opts.duration, 0) {
		return opts, errors.Errorf("duration must be positive, got %v", opts.duration)
	}
	return opts, nil
}

func main() {
	logger := golog.NewDevelopmentLogger("rebelmotion")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Errorw("exiting", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, logger golog.Logger) (err error) {
	opts, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	cfg := config.DefaultRobotConfig()
	if opts.configPath != "" {
		if cfg, err = config.LoadFile(opts.configPath); err != nil {
			return err
		}
	}

	var clock core.Clock
	if opts.device == "" {
		clock = core.NewSimClock(0)
	} else {
		clock = core.NewWallClock()
	}
	loop := core.NewLoop(clock, cfg.Period)
	rec := core.NewRecorder(clock, 0, core.LogTelemetry{Logger: logger.Named("telemetry")})

	var (
		hw  robot.Hardware
		sim *robot.Simulation
	)
	if opts.device == "" {
		if sim, err = robot.NewSimulation(*cfg); err != nil {
			return err
		}
		hw = sim.Hardware()
	} else {
		var (
			board *motorlink.Board
			gyro  *imu.Gyro
		)
		if board, gyro, err = connect(opts, logger); err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, board.Close()) }()
		hw = robot.Hardware{
			Arm:      board.Motor(armOID),
			Elevator: board.Motor(elevatorOID),
			Left:     board.Motor(leftOID),
			Right:    board.Motor(rightOID),
			Gyro:     gyro,
		}
		loop.Scheduler.Every("gyro", clock.Now(), loop.Period(), func() {
			if err := gyro.Update(clock.Now()); err != nil {
				logger.Debugw("gyro update failed", "error", err)
			}
		})
	}

	mgr, err := robot.NewManager(*cfg, hw, loop, logger, rec)
	if err != nil {
		return err
	}
	if sim != nil {
		mgr.AttachSimulation(sim)
	}
	if err := mgr.Start(); err != nil {
		return err
	}
	mgr.Schedule(actuator.NewMoveTo(mgr.Arm, mechanism.MotionGoal{Position: opts.arm}))
	mgr.Schedule(actuator.NewMoveTo(mgr.Elevator, mechanism.MotionGoal{Position: opts.elevator}))
	mgr.Drivetrain.Drive(opts.forward, opts.turn)

	if sim != nil {
		cycles := int(math.Round(opts.duration / loop.Period()))
		for i := 0; i < cycles && ctx.Err() == nil; i++ {
			loop.Step()
		}
	} else {
		runCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.duration*float64(time.Second)))
		runErr := loop.Run(runCtx)
		cancel()
		if !finished(runErr) {
			mgr.EmergencyStop()
			return runErr
		}
	}
	fmt.Fprintf(out, "arm %.3f rad (goal %.3f, at goal %v)\n", mgr.Arm.State().Position, opts.arm, mgr.Arm.AtGoal())
	fmt.Fprintf(out, "elevator %.3f m (goal %.3f, at goal %v)\n", mgr.Elevator.State().Position, opts.elevator, mgr.Elevator.AtGoal())
	fmt.Fprintf(out, "pose %s\n", mgr.Drivetrain.Pose())
	mgr.Stop()

	if opts.plotPath != "" {
		if err := savePlot(rec, opts.plotPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "plot written to %s\n", opts.plotPath)
	}
	return nil
}

// finished reports whether a run ended by timing out or by interrupt rather
// than by failure.
func finished(err error) bool {
	return err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// connect opens the board and brings up the gyro behind it.
func connect(opts options, logger golog.Logger) (*motorlink.Board, *imu.Gyro, error) {
	board, err := motorlink.Open(serial.DefaultConfig(opts.device), 0, logger)
	if err != nil {
		return nil, nil, err
	}
	gyro := imu.New(board.I2C(imuOID, lsm6ds3tr.Address), logger)
	if err := gyro.Configure(); err != nil {
		return nil, nil, multierr.Append(err, board.Close())
	}
	if err := gyro.Calibrate(opts.calibration); err != nil {
		return nil, nil, multierr.Append(err, board.Close())
	}
	return board, gyro, nil
}
