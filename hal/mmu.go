package hal

import (
	"errors"
	"fmt"
	"sync"
)

const PageSize = 4096

var (
	ErrNoMapping  = errors.New("no active mapping")
	ErrBadAddress = errors.New("address outside the mapped region")
	ErrBadPID     = errors.New("pid has no address space")
)

type page [PageSize]byte

// MMU gives every pid its own copy of the virtual region
// [base, base+size). Exactly one pid is mapped at a time and ReadAt and
// WriteAt act on that mapping. Pages are allocated on first write;
// untouched memory reads as zero.
type MMU struct {
	mu    sync.Mutex
	base  uint32
	size  uint32
	cur   int32
	space map[int32]map[uint32]*page
}

func NewMMU(base, size uint32) *MMU {
	return &MMU{
		base:  base,
		size:  size,
		space: make(map[int32]map[uint32]*page),
	}
}

// Switch maps pid's address space.
func (m *MMU) Switch(pid int32) error {
	if pid <= 0 {
		return fmt.Errorf("hal: mmu switch: pid %d: %w", pid, ErrBadPID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = pid
	return nil
}

// Mapped returns the pid whose address space is active, or 0.
func (m *MMU) Mapped() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

func (m *MMU) ReadAt(p []byte, addr uint32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(len(p), addr); err != nil {
		return 0, fmt.Errorf("hal: mmu read: %w", err)
	}
	pages := m.space[m.cur]
	n := 0
	for n < len(p) {
		pn, off := m.split(addr + uint32(n))
		chunk := PageSize - int(off)
		if chunk > len(p)-n {
			chunk = len(p) - n
		}
		if pg := pages[pn]; pg != nil {
			copy(p[n:n+chunk], pg[off:])
		} else {
			clear(p[n : n+chunk])
		}
		n += chunk
	}
	return n, nil
}

func (m *MMU) WriteAt(p []byte, addr uint32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(len(p), addr); err != nil {
		return 0, fmt.Errorf("hal: mmu write: %w", err)
	}
	pages := m.space[m.cur]
	if pages == nil {
		pages = make(map[uint32]*page)
		m.space[m.cur] = pages
	}
	n := 0
	for n < len(p) {
		pn, off := m.split(addr + uint32(n))
		pg := pages[pn]
		if pg == nil {
			pg = new(page)
			pages[pn] = pg
		}
		n += copy(pg[off:], p[n:])
	}
	return n, nil
}

func (m *MMU) check(n int, addr uint32) error {
	if m.cur <= 0 {
		return ErrNoMapping
	}
	end := uint64(addr) + uint64(n)
	if addr < m.base || end > uint64(m.base)+uint64(m.size) {
		return fmt.Errorf("%#x+%d: %w", addr, n, ErrBadAddress)
	}
	return nil
}

func (m *MMU) split(addr uint32) (pn, off uint32) {
	rel := addr - m.base
	return rel / PageSize, rel % PageSize
}
