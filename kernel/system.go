package kernel

import (
	"fmt"
	"sync"
	"sync/atomic"

	"egos/abi"
	"egos/hal"
)

// IntrID identifies an interrupt source.
type IntrID uint8

const (
	IntrSoftware IntrID = 3
	IntrTimer    IntrID = 7
)

func (id IntrID) String() string {
	switch id {
	case IntrSoftware:
		return "software"
	case IntrTimer:
		return "timer"
	default:
		return fmt.Sprintf("intr#%d", uint8(id))
	}
}

// Context is an opaque handle to a suspended execution (registers + stack).
// The kernel stores and hands it back; only the CPU looks inside.
type Context interface{}

// CPU is the privileged processor state the trap path works with.
type CPU interface {
	// EPC returns the address the interrupted code continues at.
	EPC() uint32
	// SetEPC overwrites the address the interrupted code continues at.
	SetEPC(pc uint32)
	// Suspend captures the interrupted execution.
	Suspend() Context
	// Resume switches to ctx at pc once the trap returns.
	Resume(ctx Context, pc uint32)
	// Enter creates a fresh execution for pid that starts at entry
	// with main's argc and argv loaded.
	Enter(pid int32, entry uint32, argc int32, argv uint32) Context
	// ClearSoftware acknowledges the software interrupt.
	ClearSoftware()
}

// MMU switches the active address space. ReadAt and WriteAt act on
// the active mapping.
type MMU interface {
	Switch(pid int32) error
	ReadAt(p []byte, addr uint32) (int, error)
	WriteAt(p []byte, addr uint32) (int, error)
}

// Timer rearms the preemption tick.
type Timer interface {
	Reset()
}

// TTY reports (and clears) a pending ctrl+c from the console.
type TTY interface {
	Intr() bool
}

// InterruptController is used once, when the kernel is attached.
type InterruptController interface {
	Register(id IntrID, handler func(IntrID))
	Enable()
	Disable()
}

// Kernel is the process table plus everything that mutates it.
// All methods run with interrupts masked; none of them lock.
type Kernel struct {
	procs [MaxProcesses]Process
	curr  int

	cpu   CPU
	mmu   MMU
	timer Timer
	tty   TTY
	log   hal.Logger
	trace bool

	buf [abi.SyscallLen]byte

	haltOnce sync.Once
	onHalt   func(HaltInfo)
	halted   atomic.Bool
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithTTY installs the ctrl+c probe consulted on every trap.
func WithTTY(tty TTY) Option {
	return func(k *Kernel) { k.tty = tty }
}

// WithLogger sets where kernel diagnostics go.
func WithLogger(l hal.Logger) Option {
	return func(k *Kernel) { k.log = l }
}

// WithTrace logs every scheduling decision.
func WithTrace(on bool) Option {
	return func(k *Kernel) { k.trace = on }
}

// New creates a kernel with an empty process table.
func New(cpu CPU, mmu MMU, timer Timer, opts ...Option) *Kernel {
	k := &Kernel{cpu: cpu, mmu: mmu, timer: timer}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Attach registers the trap entry for the timer and software interrupts.
func (k *Kernel) Attach(ic InterruptController) {
	ic.Disable()
	ic.Register(IntrTimer, k.Trap)
	ic.Register(IntrSoftware, k.Trap)
	ic.Enable()
}

// Boot enters the first runnable process. It is called once, after the
// loader has populated the table, and leaves the CPU resuming that process.
func (k *Kernel) Boot() {
	// Start the circular scan at slot 0.
	k.curr = len(k.procs) - 1
	k.yield()
	p := &k.procs[k.curr]
	k.logf("[INFO] boot: entering pid %d", p.PID)
	k.cpu.Resume(p.Context, p.ResumePoint)
}

func (k *Kernel) logf(format string, args ...any) {
	if k.log == nil {
		return
	}
	k.log.WriteLineString(fmt.Sprintf(format, args...))
}
