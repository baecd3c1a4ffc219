package uasm

const (
	opSub = 0b0010
	opAdd = 0b0100
	opCmp = 0b1010
	opMov = 0b1101
)

// dataProcessing encodes an unconditional data processing instruction.
func dataProcessing(c *ctx, op uint32, setFlags bool, rn, rd Register, src DataSource) []byte {
	var res uint32
	res |= AL.encode(c)
	res |= op << 21
	if setFlags {
		res |= 1 << 20
	}
	res |= rn.Encode() << 16
	res |= rd.Encode() << 12
	res |= src.encodeDataSource(c)
	return p32(res)
}

// singleTransfer encodes a word load or store with an immediate offset.
func singleTransfer(c *ctx, load bool, rd Register, addr Address) []byte {
	var res uint32
	res |= AL.encode(c)
	res |= 0b01 << 26
	// Offsets are always added.
	res |= 1 << 23
	if load {
		res |= 1 << 20
	}
	res |= rd.Encode() << 12
	res |= addr.encodeAddress(c)
	return p32(res)
}

type Ldr struct {
	instruction
	Dest Register
	Src  Address
}

func (l Ldr) hydrate(c *ctx) []byte {
	return singleTransfer(c, true, l.Dest, l.Src)
}

type Str struct {
	instruction
	Src  Register
	Dest Address
}

func (s Str) hydrate(c *ctx) []byte {
	return singleTransfer(c, false, s.Src, s.Dest)
}

type Bx struct {
	instruction
	Dest Register
}

func (b Bx) hydrate(c *ctx) []byte {
	var res uint32
	res |= b.Dest.Encode()
	res |= 0b1110000100101111111111110001 << 4
	return p32(res)
}

type B struct {
	instruction
	Cond Condition
	Dest BranchTarget
}

func (b B) hydrate(c *ctx) []byte {
	addr := b.Dest.resolveBranchTarget(c)
	pcAddr := c.instrAddr + 8
	offset := (int64(addr) - int64(pcAddr)) / 4
	if offset >= (1<<23) || offset < -(1<<23) {
		c.failf("branch target 0x%08x too far away", addr)
	}

	var res uint32
	res |= uint32(offset) & ((1 << 24) - 1)
	res |= 0b1010 << 24
	res |= b.Cond.encode(c)
	return p32(res)
}

type Mov struct {
	instruction
	Dest Register
	Src  DataSource
}

func (m Mov) hydrate(c *ctx) []byte {
	return dataProcessing(c, opMov, false, 0, m.Dest, m.Src)
}

type Add struct {
	instruction
	Dest  Register
	Src   Register
	Compl DataSource
}

func (a Add) hydrate(c *ctx) []byte {
	return dataProcessing(c, opAdd, false, a.Src, a.Dest, a.Compl)
}

type Sub struct {
	instruction
	Dest  Register
	Src   Register
	Compl DataSource
}

func (s Sub) hydrate(c *ctx) []byte {
	return dataProcessing(c, opSub, false, s.Src, s.Dest, s.Compl)
}

type Cmp struct {
	instruction
	A Register
	B DataSource
}

func (m Cmp) hydrate(c *ctx) []byte {
	return dataProcessing(c, opCmp, true, m.A, 0, m.B)
}
