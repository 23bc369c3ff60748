package machine

import (
	"errors"
	"fmt"
	"runtime"
)

// ExitAborted is the status an image's Exit receives when main was
// abandoned at the exit path instead of returning.
const ExitAborted = -1

// Image is a program the machine can run as a process. Main is entered at
// the application entry point; Exit is the code at the exit path and must
// not return.
type Image struct {
	Name string
	Main func(u *User, argc int32, argv uint32) int
	Exit func(u *User, status int)
}

var errAbort = errors.New("machine: resumed at exit path")

// fiber is the execution context of one process: a goroutine plus the
// synthetic program counter of its next instruction.
type fiber struct {
	pid   int32
	img   Image
	entry uint32
	argc  int32
	argv  uint32

	pc   uint32
	wake chan uint32
}

func (m *Machine) run(f *fiber) {
	defer func() {
		if v := recover(); v != nil {
			m.fault(f, fmt.Errorf("panic: %v", v))
		}
	}()

	pc := m.wait(f)
	if pc != f.entry {
		m.fault(f, fmt.Errorf("started at %#x, want %#x", pc, f.entry))
		return
	}
	f.pc = pc
	if f.img.Main == nil {
		m.fault(f, ErrNoImage)
		return
	}

	u := &User{m: m, f: f}
	status := ExitAborted
	guard(func() { status = f.img.Main(u, f.argc, f.argv) })

	for {
		if f.img.Exit == nil {
			m.fault(f, fmt.Errorf("%s has no exit path", f.img.Name))
			return
		}
		if guard(func() { f.img.Exit(u, status) }) {
			m.fault(f, fmt.Errorf("%s returned from exit", f.img.Name))
			return
		}
		status = ExitAborted
	}
}

// guard runs fn and reports whether it returned normally. An abort
// unwinds fn and reports false; any other panic propagates.
func guard(fn func()) (completed bool) {
	defer func() {
		if completed {
			return
		}
		if v := recover(); v != nil && v != errAbort {
			panic(v)
		}
	}()
	fn()
	return true
}

// User is a process's view of the machine: its own address space, the
// console and the two ways of entering the kernel.
type User struct {
	m *Machine
	f *fiber
}

func (u *User) PID() int32 { return u.f.pid }

// PC returns the address of the process's next instruction.
func (u *User) PC() uint32 { return u.f.pc }

func (u *User) ReadAt(p []byte, addr uint32) (int, error) {
	return u.m.mem.ReadAt(p, addr)
}

func (u *User) WriteAt(p []byte, addr uint32) (int, error) {
	return u.m.mem.WriteAt(p, addr)
}

// Write prints to the console.
func (u *User) Write(p []byte) (int, error) {
	if u.m.out == nil {
		return len(p), nil
	}
	return u.m.out.Write(p)
}

// Step executes one instruction. Pending interrupts are taken after it.
func (u *User) Step() {
	u.retire()
	u.m.poll(u.f)
	runtime.Gosched()
}

// Ecall raises the software interrupt and returns once the kernel has
// served it and resumed this process.
func (u *User) Ecall() {
	u.retire()
	u.m.msip = true
	u.m.poll(u.f)
}

func (u *User) retire() {
	if u.m.stopped.Load() {
		runtime.Goexit()
	}
	u.f.pc += 4
}
