package kernel

import (
	"encoding/binary"

	"egos/abi"
)

// syscall serves the request in the current process's mailbox.
func (k *Kernel) syscall() {
	sc := k.loadSyscall()
	typ := sc.Type

	sc.Type = abi.SysUnused
	sc.Retval = 0
	k.storeHeader(&sc)
	k.cpu.ClearSoftware()

	switch typ {
	case abi.SysUnused:
		// Already served; the mailbox has not been refreshed since.
	case abi.SysRecv:
		k.recv(&sc)
	case abi.SysSend:
		k.send(&sc)
	default:
		k.fatalf(ErrUnknownSyscall, "proc_syscall: got unknown syscall type=%d", int32(typ))
	}
}

// switchTo makes pid's address space the active mapping.
func (k *Kernel) switchTo(pid int32) {
	if err := k.mmu.Switch(pid); err != nil {
		k.fatalf(ErrMemoryFault, "mmu switch to pid %d: %v", pid, err)
	}
}

// mapAs maps pid's address space and returns the function that maps the
// current process back. Callers defer it so every exit path restores.
func (k *Kernel) mapAs(pid int32) (restore func()) {
	self := k.current().PID
	k.switchTo(pid)
	return func() { k.switchTo(self) }
}

func (k *Kernel) read(b []byte, addr uint32) {
	if _, err := k.mmu.ReadAt(b, addr); err != nil {
		k.fatalf(ErrMemoryFault, "read %d bytes at %#x: %v", len(b), addr, err)
	}
}

func (k *Kernel) write(b []byte, addr uint32) {
	if _, err := k.mmu.WriteAt(b, addr); err != nil {
		k.fatalf(ErrMemoryFault, "write %d bytes at %#x: %v", len(b), addr, err)
	}
}

func (k *Kernel) loadSyscall() abi.Syscall {
	b := k.buf[:abi.SyscallLen]
	k.read(b, abi.SyscallArg)
	return abi.DecodeSyscall(b)
}

func (k *Kernel) storeHeader(sc *abi.Syscall) {
	b := k.buf[:abi.MsgOffset]
	binary.LittleEndian.PutUint32(b[abi.TypeOffset:], uint32(sc.Type))
	binary.LittleEndian.PutUint32(b[abi.RetvalOffset:], uint32(sc.Retval))
	k.write(b, abi.SyscallArg)
}

func (k *Kernel) storeRetval(retval int32) {
	b := k.buf[:4]
	binary.LittleEndian.PutUint32(b, uint32(retval))
	k.write(b, abi.SyscallArg+abi.RetvalOffset)
}

func (k *Kernel) loadMessage() abi.Message {
	b := k.buf[:abi.MsgLen]
	k.read(b, abi.SyscallArg+abi.MsgOffset)
	return abi.DecodeMessage(b)
}

func (k *Kernel) storeMessage(m *abi.Message) {
	b := k.buf[:abi.MsgLen]
	m.Encode(b)
	k.write(b, abi.SyscallArg+abi.MsgOffset)
}
