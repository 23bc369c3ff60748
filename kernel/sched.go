package kernel

import (
	"encoding/binary"

	"egos/abi"
)

// yield switches to the next schedulable slot after the current one,
// wrapping around the table.
func (k *Kernel) yield() {
	next := -1
	for i := 1; i <= len(k.procs); i++ {
		idx := (k.curr + i) % len(k.procs)
		if k.procs[idx].Status.schedulable() {
			next = idx
			break
		}
	}
	if next == -1 {
		k.fatalf(ErrNoRunnable, "proc_yield: no more runnable process")
	}

	prev := k.current()
	if prev.Status == StatusRunning {
		prev.Status = StatusRunnable
	}
	if k.trace {
		k.logf("[INFO] yield: pid %d (%s) -> pid %d", prev.PID, prev.Status, k.procs[next].PID)
	}

	k.curr = next
	p := k.current()
	k.switchTo(p.PID)
	k.timer.Reset()

	if p.Status == StatusReady {
		p.Status = StatusRunning
		argc := k.loadArgc()
		p.Context = k.cpu.Enter(p.PID, abi.AppsEntry, argc, abi.AppsArg+abi.ArgvOffset)
		p.ResumePoint = abi.AppsEntry
		return
	}
	p.Status = StatusRunning
}

func (k *Kernel) loadArgc() int32 {
	b := k.buf[:4]
	k.read(b, abi.AppsArg)
	return int32(binary.LittleEndian.Uint32(b))
}
