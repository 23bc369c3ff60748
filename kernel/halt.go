package kernel

import (
	"errors"
	"fmt"
)

var (
	ErrNoRunnable       = errors.New("no more runnable process")
	ErrUnknownInterrupt = errors.New("unknown interrupt")
	ErrUnknownSyscall   = errors.New("unknown syscall type")
	ErrMemoryFault      = errors.New("memory fault")

	ErrInvalidPID   = errors.New("invalid pid")
	ErrDuplicatePID = errors.New("pid already installed")
	ErrTableFull    = errors.New("process table full")
)

// FatalError is raised, via panic, when a kernel invariant is violated.
// The system cannot continue past it.
type FatalError struct {
	PID int32
	Err error
	Msg string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("kernel: %s (pid %d)", e.Msg, e.PID)
}

func (e *FatalError) Unwrap() error { return e.Err }

// HaltInfo describes why the kernel halted.
type HaltInfo struct {
	PID   int32
	Err   *FatalError
	Stack []byte
}

// SetHaltHandler installs fn, invoked at most once on the first fatal error.
// It must not panic.
func (k *Kernel) SetHaltHandler(fn func(HaltInfo)) {
	k.onHalt = fn
}

// Halted reports whether a fatal error has been raised.
func (k *Kernel) Halted() bool {
	return k.halted.Load()
}

func (k *Kernel) fatalf(err error, format string, args ...any) {
	fe := &FatalError{
		PID: k.procs[k.curr].PID,
		Err: err,
		Msg: fmt.Sprintf(format, args...),
	}
	k.logf("[FATAL] %s", fe.Msg)
	k.haltOnce.Do(func() {
		k.halted.Store(true)
		if k.onHalt != nil {
			k.onHalt(HaltInfo{PID: fe.PID, Err: fe, Stack: captureStack()})
		}
	})
	panic(fe)
}
