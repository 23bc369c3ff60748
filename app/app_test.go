package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"egos/hal"
	"egos/kernel"
	"egos/loader"
	"egos/machine"
)

// testLogger calls hit once every line in want has been logged.
type testLogger struct {
	mu    sync.Mutex
	lines []string
	want  []string
	hit   func()
}

func (l *testLogger) WriteLineString(s string) {
	l.mu.Lock()
	l.lines = append(l.lines, s)
	out := strings.Join(l.lines, "\n")
	hit := l.hit != nil
	for _, w := range l.want {
		hit = hit && strings.Contains(out, w)
	}
	l.mu.Unlock()
	if hit {
		l.hit()
	}
}

func (l *testLogger) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

func (l *testLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

type testKeyboard struct{ ch chan hal.KeyEvent }

func (k testKeyboard) Events() <-chan hal.KeyEvent { return k.ch }

// testTime ticks every millisecond until stopped.
type testTime struct {
	ch   chan uint64
	stop chan struct{}
}

func newTestTime() *testTime {
	t := &testTime{ch: make(chan uint64, 1), stop: make(chan struct{})}
	go func() {
		tk := time.NewTicker(time.Millisecond)
		defer tk.Stop()
		var seq uint64
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				seq++
				select {
				case t.ch <- seq:
				default:
				}
			}
		}
	}()
	return t
}

func (t *testTime) Ticks() <-chan uint64 { return t.ch }

type testHAL struct {
	log  *testLogger
	kbd  testKeyboard
	time *testTime
}

func newTestHAL(t *testing.T) *testHAL {
	h := &testHAL{
		log:  &testLogger{},
		kbd:  testKeyboard{ch: make(chan hal.KeyEvent, 1)},
		time: newTestTime(),
	}
	t.Cleanup(func() { close(h.time.stop) })
	return h
}

func (h *testHAL) Logger() hal.Logger   { return h.log }
func (h *testHAL) Display() hal.Display { return nil }
func (h *testHAL) Input() hal.Input     { return h }
func (h *testHAL) Time() hal.Time       { return h.time }

func (h *testHAL) Keyboard() hal.Keyboard { return h.kbd }

func manifest(t *testing.T, src string) *loader.Manifest {
	t.Helper()
	m, err := loader.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return m
}

// runUntil runs the system until the log shows all of want.
func runUntil(t *testing.T, h *testHAL, cfg Config, want []string, during func(*system)) string {
	t.Helper()
	s, err := newSystem(h, cfg)
	if err != nil {
		t.Fatalf("newSystem() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h.log.mu.Lock()
	h.log.want, h.log.hit = want, cancel
	h.log.mu.Unlock()

	if during != nil {
		during(s)
	}
	err = s.run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("run() = %v, want %v; log:\n%s", err, context.Canceled, h.log)
	}
	return h.log.String()
}

func TestDefaultManifestBoots(t *testing.T) {
	h := newTestHAL(t)
	out := runUntil(t, h, Config{Quantum: 1}, []string{
		"process 6 exited, status 0",
		"process 7 exited, status 0",
	}, nil)
	for _, want := range []string{
		"[INFO] loader: pid 6: ping 5 3",
		`ping: 5 says "pong: ping 2 from 6"`,
		"hello, egos grass (pid 7)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
}

func TestCtrlCAbortsUserProcess(t *testing.T) {
	h := newTestHAL(t)
	cfg := Config{Quantum: 1, Manifest: manifest(t, `
processes:
  - {pid: 1, cmd: sysproc}
  - {pid: 4, cmd: idle}
  - {pid: 5, cmd: spin}
`)}
	out := runUntil(t, h, cfg, []string{"process 5 exited, status -1"}, func(*system) {
		h.kbd.ch <- hal.KeyEvent{Press: true, Rune: 0x03}
	})
	if !strings.Contains(out, "^C") {
		t.Fatalf("log missing ^C echo:\n%s", out)
	}
}

func TestNoRunnableProcessHalts(t *testing.T) {
	h := newTestHAL(t)
	s, err := newSystem(h, Config{Manifest: manifest(t, "processes:\n  - {pid: 5, cmd: pong}\n")})
	if err != nil {
		t.Fatalf("newSystem() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = s.run(ctx)
	if !errors.Is(err, kernel.ErrNoRunnable) {
		t.Fatalf("run() = %v, want %v", err, kernel.ErrNoRunnable)
	}
	out := h.log.String()
	if !strings.Contains(out, "egos halted") || !strings.Contains(out, "pid: 5") {
		t.Fatalf("log missing halt report:\n%s", out)
	}
}

func TestBadManifestFailsBoot(t *testing.T) {
	h := newTestHAL(t)
	_, err := newSystem(h, Config{Manifest: manifest(t, "processes:\n  - {pid: 5, cmd: nosuch}\n")})
	if !errors.Is(err, loader.ErrUnknownImage) {
		t.Fatalf("newSystem() error = %v, want %v", err, loader.ErrUnknownImage)
	}

	step := NewWithConfig(h, Config{Manifest: manifest(t, "processes:\n  - {pid: 5, cmd: nosuch}\n")})
	if err := step(); !errors.Is(err, loader.ErrUnknownImage) {
		t.Fatalf("step() = %v, want %v", err, loader.ErrUnknownImage)
	}
}

func TestHaltLines(t *testing.T) {
	info := kernel.HaltInfo{
		PID:   5,
		Err:   &kernel.FatalError{PID: 5, Err: kernel.ErrNoRunnable, Msg: "proc_yield: no more runnable process"},
		Stack: []byte("goroutine 1\n\nmain.f()\n"),
	}
	got := strings.Join(haltLines(info), "|")
	want := "egos halted|pid: 5|error: kernel: proc_yield: no more runnable process (pid 5)|stack:|goroutine 1|main.f()"
	if got != want {
		t.Fatalf("haltLines() = %q, want %q", got, want)
	}

	got = strings.Join(haltLines(kernel.HaltInfo{PID: 1}), "|")
	if want := "egos halted|pid: 1|stack: unavailable"; got != want {
		t.Fatalf("haltLines() = %q, want %q", got, want)
	}
}

func TestTakeRunes(t *testing.T) {
	prefix, rest := takeRunes("héllo", 2)
	if prefix != "hé" || rest != "llo" {
		t.Fatalf("takeRunes() = %q, %q, want %q, %q", prefix, rest, "hé", "llo")
	}
	prefix, rest = takeRunes("ab", 5)
	if prefix != "ab" || rest != "" {
		t.Fatalf("takeRunes() = %q, %q, want %q, %q", prefix, rest, "ab", "")
	}
}

func TestMachineHaltNamesFaultingProcess(t *testing.T) {
	info := machineHalt(&machine.Fault{PID: 6, Err: machine.ErrNoImage})
	if info.PID != 6 || info.Err.PID != 6 || !errors.Is(info.Err, machine.ErrNoImage) {
		t.Fatalf("machineHalt() = %+v, want pid 6 wrapping %v", info, machine.ErrNoImage)
	}

	info = machineHalt(machine.ErrNoProcess)
	if info.PID != 0 || !errors.Is(info.Err, machine.ErrNoProcess) {
		t.Fatalf("machineHalt() = %+v, want pid 0 wrapping %v", info, machine.ErrNoProcess)
	}
}
