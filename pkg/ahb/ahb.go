package ahb

import (
	"errors"
	"fmt"
)

// Kind identifies the transport that produced an AHB handle.
type Kind string

const (
	KindDebug  Kind = "debug"
	KindDevmem Kind = "devmem"
	KindILPC   Kind = "ilpc"
	KindL2A    Kind = "l2a"
	KindP2A    Kind = "p2a"
	KindSim    Kind = "sim"
)

// Direct reports whether the kind maps the SoC address space into the
// caller's own address space, i.e. the tool is running on the BMC itself.
func (k Kind) Direct() bool {
	return k == KindDevmem
}

// AHB abstracts a path from the host process to the SoC's internal bus.
// Implementations are produced by bridge drivers and compared by identity,
// so they must be pointer types.
type AHB interface {
	Kind() Kind
	Read32(addr uint32) (uint32, error)
	Write32(addr uint32, val uint32) error
}

// ErrUnaligned is returned for word accesses that are not 4-byte aligned.
var ErrUnaligned = errors.New("ahb: unaligned access")

// CheckAligned validates a 32-bit access address.
func CheckAligned(addr uint32) error {
	if addr&3 != 0 {
		return fmt.Errorf("%w: 0x%08x", ErrUnaligned, addr)
	}
	return nil
}

// Modify32 performs a read-modify-write, clearing mask and setting val&mask.
func Modify32(a AHB, addr, mask, val uint32) error {
	cur, err := a.Read32(addr)
	if err != nil {
		return err
	}
	return a.Write32(addr, (cur&^mask)|(val&mask))
}
