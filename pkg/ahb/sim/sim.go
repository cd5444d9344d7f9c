// Package sim provides an in-memory AHB useful for unit tests and for running
// the tool without hardware attached.
package sim

import (
	"fmt"
	"sync"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
)

// AccessHook lets callers emulate register side effects. It is invoked after
// the access has been applied to the backing store. Returning an error fails
// the access.
type AccessHook func(op Op, addr, val uint32) error

// Op identifies a bus access direction.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
)

func (o Op) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

// Access records a single bus transaction.
type Access struct {
	Op   Op
	Addr uint32
	Val  uint32
}

// Bus is a sparse word-addressed memory. Unwritten addresses read as zero.
type Bus struct {
	OnAccess AccessHook

	mu     sync.Mutex
	kind   ahb.Kind
	mem    map[uint32]uint32
	log    []Access
	failAt map[uint32]error
}

var _ ahb.AHB = (*Bus)(nil)

// New constructs a simulated bus reporting the given kind.
func New(kind ahb.Kind) *Bus {
	return &Bus{
		kind:   kind,
		mem:    make(map[uint32]uint32),
		failAt: make(map[uint32]error),
	}
}

func (b *Bus) Kind() ahb.Kind { return b.kind }

// Poke stores a value without recording an access.
func (b *Bus) Poke(addr, val uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mem[addr] = val
}

// Peek reads a value without recording an access.
func (b *Bus) Peek(addr uint32) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mem[addr]
}

// FailAt makes every access to addr return err.
func (b *Bus) FailAt(addr uint32, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAt[addr] = err
}

// Accesses returns a copy of the access log.
func (b *Bus) Accesses() []Access {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Access(nil), b.log...)
}

// Writes returns only the write accesses, in order.
func (b *Bus) Writes() []Access {
	var out []Access
	for _, a := range b.Accesses() {
		if a.Op == OpWrite {
			out = append(out, a)
		}
	}
	return out
}

func (b *Bus) Read32(addr uint32) (uint32, error) {
	if err := ahb.CheckAligned(addr); err != nil {
		return 0, err
	}
	b.mu.Lock()
	if err := b.failAt[addr]; err != nil {
		b.mu.Unlock()
		return 0, fmt.Errorf("sim: read 0x%08x: %w", addr, err)
	}
	val := b.mem[addr]
	b.log = append(b.log, Access{Op: OpRead, Addr: addr, Val: val})
	hook := b.OnAccess
	b.mu.Unlock()

	if hook != nil {
		if err := hook(OpRead, addr, val); err != nil {
			return 0, err
		}
	}
	return val, nil
}

func (b *Bus) Write32(addr, val uint32) error {
	if err := ahb.CheckAligned(addr); err != nil {
		return err
	}
	b.mu.Lock()
	if err := b.failAt[addr]; err != nil {
		b.mu.Unlock()
		return fmt.Errorf("sim: write 0x%08x: %w", addr, err)
	}
	b.mem[addr] = val
	b.log = append(b.log, Access{Op: OpWrite, Addr: addr, Val: val})
	hook := b.OnAccess
	b.mu.Unlock()

	if hook != nil {
		return hook(OpWrite, addr, val)
	}
	return nil
}
