// Package uasm is a boneless assembler and linker for 32-bit ARM code. It
// knows just enough instructions to build small copy stubs at runtime, without
// relying on a cross toolchain or shipping prebuilt blobs.
package uasm

import (
	"fmt"
)

// Program is a snippet of ARM code to be run at a given address.
type Program struct {
	Address uint32
	Listing []Statement
}

// Error is returned by Assemble when a statement cannot be encoded.
type Error struct {
	Addr uint32
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("at 0x%08x: %s", e.Addr, e.Msg)
}

// Assemble returns the machine code for p, followed by its constant pool.
func (p *Program) Assemble() (res []byte, err error) {
	var size uint32
	for _, l := range p.Listing {
		size += l.size()
	}

	c := ctx{
		instrAddr: p.Address,

		constantPoolStart: p.Address + size,
		constantPool:      make(map[uint32]uint32),

		labels: make(map[string]uint32),
	}

	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			res, err = nil, e
		}
	}()

	// First pass: labels must be created.
	for _, l := range p.Listing {
		l.preprocess(&c)
		c.instrAddr += l.size()
	}

	// Second pass: bytes must be emitted.
	c.instrAddr = p.Address
	for _, l := range p.Listing {
		isize := l.size()
		if isize == 0 {
			continue
		}
		res = append(res, l.hydrate(&c)...)
		c.instrAddr += isize
	}

	for _, v := range c.constantPoolList {
		res = append(res, p32(v)...)
	}
	return res, nil
}

type Register int

const (
	R0  Register = 0
	R1  Register = 1
	R2  Register = 2
	R3  Register = 3
	R4  Register = 4
	R5  Register = 5
	R6  Register = 6
	R7  Register = 7
	R8  Register = 8
	R9  Register = 9
	R10 Register = 10
	R11 Register = 11
	R12 Register = 12
	SP  Register = 13
	LR  Register = 14
	PC  Register = 15
)

func (r Register) Encode() uint32 {
	return uint32(r) & 0xf
}

type Condition string

const (
	AL Condition = ""
	EQ Condition = "EQ"
	NE Condition = "NE"
)

func (cond Condition) encode(c *ctx) uint32 {
	switch cond {
	case AL:
		return 0b1110 << 28
	case EQ:
		return 0b0000 << 28
	case NE:
		return 0b0001 << 28
	}
	c.failf("invalid condition %q", string(cond))
	return 0
}

// Statement is a listing line, eg. instruction or label.
type Statement interface {
	// preprocess is a first pass assemble function, giving the statements an
	// opportunity to register labels.
	preprocess(c *ctx)
	// hydrate is the second pass assemble function, in which a statement must
	// return concrete data.
	hydrate(c *ctx) []byte
	// size of the statement in bytes.
	size() uint32
}

type ctx struct {
	instrAddr uint32

	constantPoolStart uint32
	constantPool      map[uint32]uint32
	constantPoolList  []uint32

	labels map[string]uint32
}

func (c *ctx) failf(format string, args ...any) {
	panic(&Error{Addr: c.instrAddr, Msg: fmt.Sprintf(format, args...)})
}

func (c *ctx) allocateConstant(val uint32) uint32 {
	if a, ok := c.constantPool[val]; ok {
		return a
	}
	a := c.constantPoolStart
	c.constantPoolStart += 4
	c.constantPool[val] = a
	c.constantPoolList = append(c.constantPoolList, val)
	return a
}

func (c *ctx) label(name string) uint32 {
	addr, ok := c.labels[name]
	if !ok {
		c.failf("unknown label %q", name)
	}
	return addr
}

// pcRelative returns the offset of a constant pool entry from the PC as seen
// by the current instruction.
func (c *ctx) pcRelative(to uint32) uint16 {
	pcAddr := c.instrAddr + 8
	if to < pcAddr {
		c.failf("constant at 0x%08x is behind the PC", to)
	}
	offset := to - pcAddr
	if offset >= (1 << 12) {
		c.failf("constant at 0x%08x too far away", to)
	}
	return uint16(offset)
}

// instruction is an embeddable struct to be put in any 'typical' 4-byte ARM
// instruction that has no preprocess step.
type instruction struct{}

func (i instruction) size() uint32 {
	return 4
}

func (i instruction) preprocess(c *ctx) {}

func p32(u uint32) []byte {
	return []byte{
		byte(u),
		byte(u >> 8),
		byte(u >> 16),
		byte(u >> 24),
	}
}

type Label string

func (l Label) size() uint32 {
	return 0
}

func (l Label) preprocess(c *ctx) {
	v := string(l)
	if _, ok := c.labels[v]; ok {
		c.failf("duplicate label %q", v)
	}
	c.labels[v] = c.instrAddr
}

func (l Label) hydrate(c *ctx) []byte {
	return nil
}
