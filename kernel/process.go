package kernel

import "fmt"

// MaxProcesses is the number of process table slots.
const MaxProcesses = 16

// Status is the scheduling state of a process table slot.
type Status uint8

const (
	StatusUnused Status = iota
	StatusReady
	StatusRunning
	StatusRunnable
	StatusWaitToSend
	StatusWaitToRecv
)

func (s Status) String() string {
	switch s {
	case StatusUnused:
		return "UNUSED"
	case StatusReady:
		return "READY"
	case StatusRunning:
		return "RUNNING"
	case StatusRunnable:
		return "RUNNABLE"
	case StatusWaitToSend:
		return "WAIT_TO_SEND"
	case StatusWaitToRecv:
		return "WAIT_TO_RECV"
	default:
		return "unknown"
	}
}

// schedulable reports whether yield may pick a slot in this state.
func (s Status) schedulable() bool {
	return s == StatusReady || s == StatusRunning || s == StatusRunnable
}

// Process is one process table entry.
type Process struct {
	PID    int32
	Status Status

	// ResumePoint is where the process continues when it is next
	// scheduled. Valid while the process is not running.
	ResumePoint uint32

	// Context is the suspended execution, owned by this entry.
	Context Context

	// ReceiverPID is the intended recipient while StatusWaitToSend.
	ReceiverPID int32
}

// Install populates a free slot with pid in StatusReady.
// It is the loader's half of the boot contract and must run before Boot.
func (k *Kernel) Install(pid int32) error {
	if pid <= 0 {
		return fmt.Errorf("kernel: install pid %d: %w", pid, ErrInvalidPID)
	}
	free := -1
	for i := range k.procs {
		p := &k.procs[i]
		if p.Status == StatusUnused {
			if free < 0 {
				free = i
			}
			continue
		}
		if p.PID == pid {
			return fmt.Errorf("kernel: install pid %d: %w", pid, ErrDuplicatePID)
		}
	}
	if free < 0 {
		return fmt.Errorf("kernel: install pid %d: %w", pid, ErrTableFull)
	}
	k.procs[free] = Process{PID: pid, Status: StatusReady}
	return nil
}

// Processes returns a snapshot of every slot in use, in table order.
func (k *Kernel) Processes() []Process {
	var out []Process
	for _, p := range k.procs {
		if p.Status != StatusUnused {
			out = append(out, p)
		}
	}
	return out
}

// Process returns a snapshot of the slot holding pid.
func (k *Kernel) Process(pid int32) (Process, bool) {
	idx := k.lookup(pid)
	if idx < 0 {
		return Process{}, false
	}
	return k.procs[idx], true
}

// Current returns a snapshot of the current process.
func (k *Kernel) Current() Process {
	return k.procs[k.curr]
}

// lookup returns the slot holding pid, or -1.
func (k *Kernel) lookup(pid int32) int {
	for i := range k.procs {
		if k.procs[i].Status != StatusUnused && k.procs[i].PID == pid {
			return i
		}
	}
	return -1
}

func (k *Kernel) current() *Process {
	return &k.procs[k.curr]
}
