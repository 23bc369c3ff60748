// Package ulib is the library linked into every application: system call
// stubs, console printing and the startup and exit code around main.
package ulib

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"egos/abi"
	"egos/machine"
)

var ErrNoReceiver = errors.New("ulib: no such receiver")

// Sys is one process's handle on the kernel.
type Sys struct {
	u   *machine.User
	buf [abi.SyscallLen]byte
}

func New(u *machine.User) *Sys {
	return &Sys{u: u}
}

// PID returns the calling process's pid.
func (s *Sys) PID() int32 { return s.u.PID() }

// Send blocks until receiver has taken msg.
func (s *Sys) Send(receiver int32, msg string) error {
	sc := abi.Syscall{Type: abi.SysSend}
	sc.Msg.Receiver = receiver
	sc.Msg.SetText(msg)
	got, err := s.call(&sc)
	if err != nil {
		return err
	}
	if got.Retval != 0 {
		return fmt.Errorf("send to pid %d: %w", receiver, ErrNoReceiver)
	}
	return nil
}

// Recv blocks until some process sends to the caller.
func (s *Sys) Recv() (abi.Message, error) {
	got, err := s.call(&abi.Syscall{Type: abi.SysRecv})
	if err != nil {
		return abi.Message{}, err
	}
	return got.Msg, nil
}

// call fills the mailbox, traps and returns the mailbox as the kernel
// left it.
func (s *Sys) call(sc *abi.Syscall) (abi.Syscall, error) {
	sc.Encode(s.buf[:])
	if _, err := s.u.WriteAt(s.buf[:], abi.SyscallArg); err != nil {
		return abi.Syscall{}, fmt.Errorf("ulib: %s: %w", sc.Type, err)
	}
	s.u.Ecall()
	if _, err := s.u.ReadAt(s.buf[:], abi.SyscallArg); err != nil {
		return abi.Syscall{}, fmt.Errorf("ulib: %s: %w", sc.Type, err)
	}
	return abi.DecodeSyscall(s.buf[:]), nil
}

// Printf writes to the console.
func (s *Sys) Printf(format string, args ...any) {
	fmt.Fprintf(s.u, format, args...)
}

// Step burns one instruction; long computations call it so the timer can
// preempt them.
func (s *Sys) Step() { s.u.Step() }

// Args decodes main's argc and argv.
func (s *Sys) Args(argc int32, argv uint32) ([]string, error) {
	if argc <= 0 {
		return nil, nil
	}
	if argc > abi.ArgMax {
		return nil, fmt.Errorf("ulib: argc %d: %w", argc, abi.ErrTooManyArgs)
	}
	b := make([]byte, int(argc)*abi.ArgLen)
	if _, err := s.u.ReadAt(b, argv); err != nil {
		return nil, fmt.Errorf("ulib: argv: %w", err)
	}
	return abi.DecodeArgv(b, argc), nil
}

// Main is an application's entry point.
type Main func(s *Sys, args []string) int

// Image wraps main with the startup and exit code every application gets.
func Image(name string, main Main) machine.Image {
	return machine.Image{
		Name: name,
		Main: func(u *machine.User, argc int32, argv uint32) int {
			s := New(u)
			args, err := s.Args(argc, argv)
			if err != nil {
				s.Printf("%s: %v\n", name, err)
				return 1
			}
			return main(s, args)
		},
		Exit: func(u *machine.User, status int) {
			Exit(New(u), status)
		},
	}
}

// Exit reports status to the process server and parks the process for
// good. It never returns.
func Exit(s *Sys, status int) {
	if err := s.Send(abi.GPIDProcess, ExitNotice(status)); err != nil {
		s.Printf("pid %d: exit %d: %v\n", s.PID(), status, err)
	}
	for {
		if _, err := s.Recv(); err != nil {
			s.Step()
		}
	}
}

const exitPrefix = "exit "

// ExitNotice is the message a process sends the process server on exit.
func ExitNotice(status int) string {
	return exitPrefix + strconv.Itoa(status)
}

// ParseExitNotice returns the status carried by an exit notice.
func ParseExitNotice(msg string) (status int, ok bool) {
	rest, found := strings.CutPrefix(msg, exitPrefix)
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
