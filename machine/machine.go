// Package machine models a single hart running user processes as
// goroutine fibers. Exactly one fiber holds the hart at a time; traps run
// the kernel on the trapping fiber's goroutine and hand the hart to
// whichever fiber the kernel resumes.
package machine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"egos/abi"
	"egos/hal"
	"egos/kernel"
)

var (
	ErrNoImage   = errors.New("machine: no image loaded")
	ErrBadImage  = errors.New("machine: image has no main")
	ErrNoProcess = errors.New("machine: boot did not resume a process")
)

// Fault is a halt caused by one process rather than by the kernel.
type Fault struct {
	PID int32
	Err error
}

func (e *Fault) Error() string {
	return fmt.Sprintf("machine: pid %d: %v", e.PID, e.Err)
}

func (e *Fault) Unwrap() error { return e.Err }

// Memory is the active address space as seen by user code.
type Memory interface {
	ReadAt(p []byte, addr uint32) (int, error)
	WriteAt(p []byte, addr uint32) (int, error)
}

// Timer is the preemption timer as seen by the interrupt logic.
type Timer interface {
	Expired() bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithConsole sets where User.Write output goes.
func WithConsole(w io.Writer) Option {
	return func(m *Machine) { m.out = w }
}

// WithLogger sets where the machine reports why it stopped.
func WithLogger(l hal.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// Machine implements kernel.CPU and kernel.InterruptController.
type Machine struct {
	mem   Memory
	timer Timer
	out   io.Writer
	log   hal.Logger

	images map[int32]Image

	// Hart state. Only the goroutine holding the hart touches it; the
	// hand-off channels order every access.
	handlers map[kernel.IntrID]func(kernel.IntrID)
	enabled  bool
	msip     bool
	epc      uint32
	cur      *fiber
	target   *fiber

	stopped  atomic.Bool
	done     chan struct{}
	haltOnce sync.Once
	err      error
}

func New(mem Memory, timer Timer, opts ...Option) *Machine {
	m := &Machine{
		mem:      mem,
		timer:    timer,
		images:   make(map[int32]Image),
		handlers: make(map[kernel.IntrID]func(kernel.IntrID)),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load registers the image pid runs once the kernel first schedules it.
func (m *Machine) Load(pid int32, img Image) error {
	if img.Main == nil {
		return fmt.Errorf("load pid %d: %w", pid, ErrBadImage)
	}
	m.images[pid] = img
	return nil
}

// Run executes boot on the hart and then runs processes until ctx is
// done or the machine halts. It returns ctx.Err() or the halt reason,
// a *kernel.FatalError when the kernel gave up.
func (m *Machine) Run(ctx context.Context, boot func()) error {
	go m.reset(boot)

	select {
	case <-ctx.Done():
		m.halt(ctx.Err())
		return ctx.Err()
	case <-m.done:
		return m.err
	}
}

// Done is closed once the machine has halted.
func (m *Machine) Done() <-chan struct{} { return m.done }

// Err returns why the machine halted, or nil while it runs.
func (m *Machine) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

func (m *Machine) reset(boot func()) {
	if fe := m.dispatch(boot); fe != nil {
		m.halt(fe)
		return
	}
	t := m.target
	if t == nil {
		m.halt(ErrNoProcess)
		return
	}
	m.cur = t
	t.wake <- m.epc
}

func (m *Machine) halt(err error) {
	m.haltOnce.Do(func() {
		m.err = err
		m.stopped.Store(true)
		if m.log != nil && !errors.Is(err, context.Canceled) {
			m.log.WriteLineString(fmt.Sprintf("[CRITICAL] machine halted: %v", err))
		}
		close(m.done)
	})
}

func (m *Machine) fault(f *fiber, err error) {
	m.halt(&Fault{PID: f.pid, Err: err})
}

// trap enters the kernel for interrupt id on f's goroutine and returns
// once f holds the hart again.
func (m *Machine) trap(f *fiber, id kernel.IntrID) {
	h := m.handlers[id]
	if h == nil {
		m.fault(f, fmt.Errorf("%s interrupt with no handler", id))
		runtime.Goexit()
	}

	m.enabled = false
	m.target, m.epc = f, f.pc
	if fe := m.dispatch(func() { h(id) }); fe != nil {
		m.halt(fe)
		runtime.Goexit()
	}
	m.enabled = true

	pc := m.epc
	if t := m.target; t != f {
		m.cur = t
		t.wake <- pc
		pc = m.wait(f)
	}
	m.arrive(f, pc)
}

// dispatch runs kernel code and turns a kernel fatal error into a value.
func (m *Machine) dispatch(fn func()) (fatal *kernel.FatalError) {
	defer func() {
		if v := recover(); v != nil {
			fe, ok := v.(*kernel.FatalError)
			if !ok {
				panic(v)
			}
			fatal = fe
		}
	}()
	fn()
	return nil
}

// poll delivers a pending interrupt at an instruction boundary.
func (m *Machine) poll(f *fiber) {
	if !m.enabled {
		return
	}
	switch {
	case m.msip:
		m.trap(f, kernel.IntrSoftware)
	case m.timer.Expired():
		m.trap(f, kernel.IntrTimer)
	}
}

// wait parks f until the hart is handed to it. A halted machine ends the
// goroutine instead.
func (m *Machine) wait(f *fiber) uint32 {
	select {
	case pc := <-f.wake:
		if !m.stopped.Load() {
			m.cur = f
			return pc
		}
	case <-m.done:
	}
	runtime.Goexit()
	return 0
}

// arrive continues f at pc. Execution can only continue where it was
// suspended or at the application exit path.
func (m *Machine) arrive(f *fiber, pc uint32) {
	switch pc {
	case f.pc:
	case abi.AppsExit:
		f.pc = abi.AppsExit
		panic(errAbort)
	default:
		m.fault(f, fmt.Errorf("resumed at %#x, suspended at %#x", pc, f.pc))
		runtime.Goexit()
	}
}

// kernel.InterruptController

func (m *Machine) Register(id kernel.IntrID, handler func(kernel.IntrID)) {
	m.handlers[id] = handler
}

func (m *Machine) Enable()  { m.enabled = true }
func (m *Machine) Disable() { m.enabled = false }

// kernel.CPU

func (m *Machine) EPC() uint32             { return m.epc }
func (m *Machine) SetEPC(pc uint32)        { m.epc = pc }
func (m *Machine) Suspend() kernel.Context { return m.cur }
func (m *Machine) ClearSoftware()          { m.msip = false }

func (m *Machine) Resume(ctx kernel.Context, pc uint32) {
	m.target = ctx.(*fiber)
	m.epc = pc
}

// Enter creates the fiber for pid's registered image. It does not run
// until the kernel resumes it at entry.
func (m *Machine) Enter(pid int32, entry uint32, argc int32, argv uint32) kernel.Context {
	f := &fiber{
		pid:   pid,
		img:   m.images[pid],
		entry: entry,
		argc:  argc,
		argv:  argv,
		wake:  make(chan uint32, 1),
	}
	go m.run(f)
	return f
}
