package kernel

import "egos/abi"

// Trap is the entry for every interrupt. It runs on the kernel stack with
// interrupts masked and, unless the dispatch policy returns early, leaves
// the CPU resuming whichever process is current once the handler is done.
func (k *Kernel) Trap(id IntrID) {
	p := k.current()

	if abi.IsKernel(p.PID) && id == IntrTimer {
		// Kernel processes may be in the middle of device I/O.
		k.timer.Reset()
		return
	}

	if abi.IsUser(p.PID) && k.tty != nil && k.tty.Intr() {
		// ctrl+c: continue at the exit path of the application.
		k.cpu.SetEPC(abi.AppsExit)
		return
	}

	var handler func()
	switch id {
	case IntrTimer:
		handler = k.yield
	case IntrSoftware:
		handler = k.syscall
	default:
		k.fatalf(ErrUnknownInterrupt, "got unknown interrupt #%d", uint8(id))
	}

	p.Context = k.cpu.Suspend()
	p.ResumePoint = k.cpu.EPC()

	handler()

	p = k.current()
	k.cpu.Resume(p.Context, p.ResumePoint)
}
