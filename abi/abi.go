// Package abi is the binary contract between the kernel and user images:
// well-known pids, fixed virtual addresses and the syscall mailbox layout.
package abi

// Well-known process ids.
//
// Pids below GPIDShell belong to privileged kernel processes; pids at or
// above GPIDUserStart belong to user applications. GPIDFile and GPIDDir
// are not started here; they mark the rest of the reserved kernel range,
// so a manifest that puts a server there gets kernel scheduling policy.
const (
	GPIDProcess   int32 = 1
	GPIDFile      int32 = 2
	GPIDDir       int32 = 3
	GPIDShell     int32 = 4
	GPIDUserStart int32 = 5
)

// NoSender is the Message.Sender value of a mailbox nobody has written yet.
const NoSender int32 = 0

// Fixed virtual addresses, identical in every address space.
const (
	// AppsArg holds argc followed by the argv block.
	AppsArg uint32 = 0x08004000
	// SyscallArg holds the syscall mailbox.
	SyscallArg uint32 = 0x08004400
	// AppsEntry is where every application image starts.
	AppsEntry uint32 = 0x08005000
	// AppsExit is the crt0 call into exit() after main returns.
	AppsExit uint32 = AppsEntry + 6
)

// The per-process region backed by the MMU: argument block, mailbox and
// application image.
const (
	UserBase uint32 = AppsArg
	UserSize uint32 = 0x00100000
)

// IsKernel reports whether pid is a privileged kernel process.
func IsKernel(pid int32) bool { return pid < GPIDShell }

// IsUser reports whether pid is a user application.
func IsUser(pid int32) bool { return pid >= GPIDUserStart }
