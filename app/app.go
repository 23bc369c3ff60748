// Package app wires the HAL, console, machine, kernel and loader into a
// running system.
package app

import (
	"context"
	"errors"
	"fmt"

	"egos/abi"
	"egos/apps"
	"egos/console"
	"egos/hal"
	"egos/internal/buildinfo"
	"egos/kernel"
	"egos/loader"
	"egos/machine"

	"golang.org/x/sync/errgroup"
)

// DefaultQuantum is the time slice in base ticks.
const DefaultQuantum = 10

type Config struct {
	// Quantum is the time slice in base ticks.
	Quantum uint64
	// Manifest lists the processes to boot; nil means loader.Default().
	Manifest *loader.Manifest
	// Trace logs every scheduling decision.
	Trace bool
	// ExitOnHalt makes the step function report a halted machine.
	ExitOnHalt bool
}

type system struct {
	h     hal.HAL
	log   hal.Logger
	con   *console.Console
	tty   *console.TTY
	mmu   *hal.MMU
	timer *hal.Timer
	m     *machine.Machine
	k     *kernel.Kernel
}

// New builds and starts the system with the default config.
func New(h hal.HAL) func() error {
	return NewWithConfig(h, Config{})
}

// NewWithConfig builds and starts the system. The returned step function
// is polled by the host runner.
func NewWithConfig(h hal.HAL, cfg Config) func() error {
	s, err := newSystem(h, cfg)
	if err != nil {
		logf(h.Logger(), "[CRITICAL] boot: %v", err)
		return func() error { return err }
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		runErr = s.run(ctx)
	}()

	return func() error {
		select {
		case <-done:
			cancel()
			if cfg.ExitOnHalt {
				return runErr
			}
		default:
		}
		return nil
	}
}

// Run starts the system and blocks forever (TinyGo/native entrypoint).
func Run(h hal.HAL) {
	RunWithConfig(h, Config{})
}

func RunWithConfig(h hal.HAL, cfg Config) {
	s, err := newSystem(h, cfg)
	if err != nil {
		logf(h.Logger(), "[CRITICAL] boot: %v", err)
		select {}
	}
	_ = s.run(context.Background())
	select {}
}

func newSystem(h hal.HAL, cfg Config) (*system, error) {
	if cfg.Quantum == 0 {
		cfg.Quantum = DefaultQuantum
	}
	manifest := cfg.Manifest
	if manifest == nil {
		manifest = loader.Default()
	}

	s := &system{h: h, log: h.Logger()}
	logf(s.log, "[INFO] %s", buildinfo.Line())
	bootStep(s.log, "console")
	s.con = console.New(h.Display(), s.log)
	s.tty = console.NewTTY(s.con)

	bootStep(s.log, "machine")
	s.mmu = hal.NewMMU(abi.UserBase, abi.UserSize)
	s.timer = hal.NewTimer(cfg.Quantum)
	s.m = machine.New(s.mmu, s.timer,
		machine.WithConsole(s.con),
		machine.WithLogger(s.log),
	)
	s.k = kernel.New(s.m, s.mmu, s.timer,
		kernel.WithTTY(s.tty),
		kernel.WithLogger(s.log),
		kernel.WithTrace(cfg.Trace),
	)
	s.k.SetHaltHandler(func(info kernel.HaltInfo) {
		showHalt(s.con, s.log, info)
	})
	s.k.Attach(s.m)

	bootStep(s.log, "loader")
	l := &loader.Loader{
		Table:  s.k,
		Images: s.m,
		Memory: s.mmu,
		Lookup: apps.Lookup,
		Log:    s.log,
	}
	if err := l.Load(manifest); err != nil {
		return nil, err
	}

	fmt.Fprintf(s.con, "egos %s: %d processes, quantum %d ticks\n",
		buildinfo.Short(), len(s.k.Processes()), s.timer.Quantum())
	return s, nil
}

// run drives the machine, the tick pump and the keyboard pump until ctx
// is done or the machine halts.
func (s *system) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.m.Run(ctx, s.k.Boot)
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		var fatal *kernel.FatalError
		if !errors.As(err, &fatal) {
			// The kernel's halt handler has not seen this one.
			showHalt(s.con, s.log, machineHalt(err))
		}
		return err
	})

	if t := s.h.Time(); t != nil {
		if ticks := t.Ticks(); ticks != nil {
			g.Go(func() error {
				for {
					select {
					case <-ctx.Done():
						return nil
					case seq, ok := <-ticks:
						if !ok {
							return nil
						}
						s.timer.TickTo(seq)
					}
				}
			})
		}
	}

	if in := s.h.Input(); in != nil {
		if kbd := in.Keyboard(); kbd != nil {
			g.Go(func() error {
				if err := s.tty.Pump(ctx, kbd); !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
	}

	return g.Wait()
}

// machineHalt describes a halt the machine raised on its own. The pid is
// the faulting process's, or 0 when no process is to blame.
func machineHalt(err error) kernel.HaltInfo {
	var pid int32
	var fault *machine.Fault
	if errors.As(err, &fault) {
		pid = fault.PID
	}
	return kernel.HaltInfo{
		PID: pid,
		Err: &kernel.FatalError{PID: pid, Err: err, Msg: err.Error()},
	}
}

func logf(l hal.Logger, format string, args ...any) {
	if l == nil {
		return
	}
	l.WriteLineString(fmt.Sprintf(format, args...))
}
