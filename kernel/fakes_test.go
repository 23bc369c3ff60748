package kernel

import (
	"errors"
	"fmt"
	"testing"

	"egos/abi"
)

type fakeCtx struct {
	pid  int32
	argc int32
	argv uint32
}

type resumption struct {
	ctx Context
	pc  uint32
}

// fakeCPU records what the kernel asks of the processor. running is the
// context the hardware is executing; epc is its interrupted address.
type fakeCPU struct {
	running Context
	epc     uint32

	resumes []resumption
	entered []*fakeCtx
	acks    int
}

func (c *fakeCPU) EPC() uint32        { return c.epc }
func (c *fakeCPU) SetEPC(pc uint32)   { c.epc = pc }
func (c *fakeCPU) Suspend() Context   { return c.running }
func (c *fakeCPU) ClearSoftware()     { c.acks++ }
func (c *fakeCPU) last() resumption   { return c.resumes[len(c.resumes)-1] }
func (c *fakeCPU) lastCtx() *fakeCtx  { return c.last().ctx.(*fakeCtx) }
func (c *fakeCPU) lastPID() int32     { return c.lastCtx().pid }
func (c *fakeCPU) Resume(ctx Context, pc uint32) {
	c.resumes = append(c.resumes, resumption{ctx: ctx, pc: pc})
	c.running = ctx
	c.epc = pc
}

func (c *fakeCPU) Enter(pid int32, entry uint32, argc int32, argv uint32) Context {
	ctx := &fakeCtx{pid: pid, argc: argc, argv: argv}
	c.entered = append(c.entered, ctx)
	return ctx
}

const (
	fakeBase = abi.AppsArg
	fakeSize = abi.SyscallArg + abi.SyscallLen - abi.AppsArg
)

// fakeMMU keeps one small window of memory per pid covering the argument
// block and the mailbox.
type fakeMMU struct {
	cur      int32
	spaces   map[int32]*[fakeSize]byte
	switches []int32
}

func newFakeMMU() *fakeMMU {
	return &fakeMMU{spaces: map[int32]*[fakeSize]byte{}}
}

func (m *fakeMMU) space(pid int32) *[fakeSize]byte {
	s, ok := m.spaces[pid]
	if !ok {
		s = new([fakeSize]byte)
		m.spaces[pid] = s
	}
	return s
}

func (m *fakeMMU) Switch(pid int32) error {
	if pid <= 0 {
		return fmt.Errorf("no address space for pid %d", pid)
	}
	m.cur = pid
	m.switches = append(m.switches, pid)
	return nil
}

func (m *fakeMMU) window(n int, addr uint32) ([]byte, error) {
	if m.cur <= 0 {
		return nil, errors.New("no active mapping")
	}
	if addr < fakeBase || uint64(addr)+uint64(n) > uint64(fakeBase)+uint64(fakeSize) {
		return nil, fmt.Errorf("address %#x out of range", addr)
	}
	off := addr - fakeBase
	return m.space(m.cur)[off : off+uint32(n)], nil
}

func (m *fakeMMU) ReadAt(p []byte, addr uint32) (int, error) {
	w, err := m.window(len(p), addr)
	if err != nil {
		return 0, err
	}
	return copy(p, w), nil
}

func (m *fakeMMU) WriteAt(p []byte, addr uint32) (int, error) {
	w, err := m.window(len(p), addr)
	if err != nil {
		return 0, err
	}
	return copy(w, p), nil
}

func (m *fakeMMU) mailbox(pid int32) abi.Syscall {
	s := m.space(pid)
	off := abi.SyscallArg - fakeBase
	return abi.DecodeSyscall(s[off : off+abi.SyscallLen])
}

func (m *fakeMMU) setMailbox(pid int32, sc abi.Syscall) {
	s := m.space(pid)
	off := abi.SyscallArg - fakeBase
	sc.Encode(s[off : off+abi.SyscallLen])
}

func (m *fakeMMU) setArgs(pid int32, args ...string) {
	b, err := abi.EncodeArgs(args)
	if err != nil {
		panic(err)
	}
	copy(m.space(pid)[:], b)
}

type fakeTimer struct{ resets int }

func (t *fakeTimer) Reset() { t.resets++ }

type fakeTTY struct{ pending bool }

func (t *fakeTTY) Intr() bool {
	p := t.pending
	t.pending = false
	return p
}

type fakeIC struct {
	handlers map[IntrID]func(IntrID)
	enabled  bool
}

func (ic *fakeIC) Register(id IntrID, h func(IntrID)) {
	if ic.handlers == nil {
		ic.handlers = map[IntrID]func(IntrID){}
	}
	ic.handlers[id] = h
}
func (ic *fakeIC) Enable()  { ic.enabled = true }
func (ic *fakeIC) Disable() { ic.enabled = false }

type rig struct {
	k     *Kernel
	cpu   *fakeCPU
	mmu   *fakeMMU
	timer *fakeTimer
	tty   *fakeTTY
}

// newRig installs pids in table order and boots the first one.
func newRig(t *testing.T, pids ...int32) *rig {
	t.Helper()
	r := &rig{cpu: &fakeCPU{}, mmu: newFakeMMU(), timer: &fakeTimer{}, tty: &fakeTTY{}}
	r.k = New(r.cpu, r.mmu, r.timer, WithTTY(r.tty))
	for _, pid := range pids {
		if err := r.k.Install(pid); err != nil {
			t.Fatalf("Install(%d): %v", pid, err)
		}
	}
	if len(pids) > 0 {
		r.k.Boot()
	}
	return r
}

// tick delivers a timer interrupt to whatever is running.
func (r *rig) tick() {
	r.k.Trap(IntrTimer)
}

// syscall has the current process fill its mailbox and trap.
func (r *rig) syscall(sc abi.Syscall) {
	r.mmu.setMailbox(r.k.Current().PID, sc)
	r.k.Trap(IntrSoftware)
}

func (r *rig) send(to int32, text string) {
	sc := abi.Syscall{Type: abi.SysSend}
	sc.Msg.Receiver = to
	sc.Msg.SetText(text)
	r.syscall(sc)
}

func (r *rig) recv() {
	r.syscall(abi.Syscall{Type: abi.SysRecv})
}

func (r *rig) status(t *testing.T, pid int32) Status {
	t.Helper()
	p, ok := r.k.Process(pid)
	if !ok {
		t.Fatalf("Process(%d) not found", pid)
	}
	return p.Status
}

func (r *rig) wantStatus(t *testing.T, pid int32, want Status) {
	t.Helper()
	if got := r.status(t, pid); got != want {
		t.Fatalf("pid %d status = %s, want %s", pid, got, want)
	}
}

func (r *rig) wantCurrent(t *testing.T, pid int32) {
	t.Helper()
	if got := r.k.Current().PID; got != pid {
		t.Fatalf("current pid = %d, want %d", got, pid)
	}
	if got := r.cpu.lastPID(); got != pid {
		t.Fatalf("cpu resumed pid %d, want %d", got, pid)
	}
	if r.mmu.cur != pid {
		t.Fatalf("active mapping = pid %d, want %d", r.mmu.cur, pid)
	}
}

// expectFatal runs fn and checks it raised a FatalError wrapping want.
func expectFatal(t *testing.T, want error, fn func()) *FatalError {
	t.Helper()
	var got any
	func() {
		defer func() { got = recover() }()
		fn()
	}()
	if got == nil {
		t.Fatalf("expected fatal %v, got none", want)
	}
	fe, ok := got.(*FatalError)
	if !ok {
		t.Fatalf("panic value = %T(%v), want *FatalError", got, got)
	}
	if !errors.Is(fe, want) {
		t.Fatalf("fatal = %v, want %v", fe, want)
	}
	return fe
}

func countRunning(k *Kernel) int {
	n := 0
	for _, p := range k.Processes() {
		if p.Status == StatusRunning {
			n++
		}
	}
	return n
}

func TestFakeMMUBounds(t *testing.T) {
	m := newFakeMMU()
	if err := m.Switch(5); err != nil {
		t.Fatalf("Switch(5): %v", err)
	}
	if _, err := m.window(abi.SyscallLen, abi.SyscallArg); err != nil {
		t.Fatalf("window(mailbox) error = %v", err)
	}
	if _, err := m.window(1, abi.SyscallArg+abi.SyscallLen); err == nil {
		t.Fatal("window(past end) error = nil, want out of range")
	}
	if _, err := m.window(1, fakeBase-1); err == nil {
		t.Fatal("window(before base) error = nil, want out of range")
	}
}
