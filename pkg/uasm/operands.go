package uasm

// DataSource is an operand which can be a source of data to a non-memory
// operation.
type DataSource interface {
	encodeDataSource(c *ctx) uint32
}

// Address is an operand which can be used by a load or a store. The returned
// bits include the P (pre-index) flag, base register and offset.
type Address interface {
	encodeAddress(c *ctx) uint32
}

// BranchTarget is an operand that can be interpreted as a program address.
type BranchTarget interface {
	resolveBranchTarget(c *ctx) uint32
}

const bitPreIndex = 1 << 24

// Constant is a 32-bit number that will end up in the constant pool. Loading
// it is PC-relative, so code using constants must move together with its
// pool.
type Constant uint32

func (t Constant) encodeAddress(c *ctx) uint32 {
	addr := c.allocateConstant(uint32(t))
	return Deref(PC, c.pcRelative(addr)).encodeAddress(c)
}

// MemoryDeref is [Reg, #Offset], or [Reg], #Offset when PostIndex is set.
type MemoryDeref struct {
	Reg       Register
	Offset    uint16
	PostIndex bool
}

func (m MemoryDeref) encodeAddress(c *ctx) uint32 {
	if m.Offset >= (1 << 12) {
		c.failf("offset 0x%x too large", m.Offset)
	}

	var res uint32
	res |= uint32(m.Offset)
	res |= m.Reg.Encode() << 16
	if !m.PostIndex {
		res |= bitPreIndex
	}
	return res
}

func Deref(r Register, offset uint16) MemoryDeref {
	return MemoryDeref{Reg: r, Offset: offset}
}

// PostInc dereferences r, then adds offset to it.
func PostInc(r Register, offset uint16) MemoryDeref {
	return MemoryDeref{Reg: r, Offset: offset, PostIndex: true}
}

// Immediate is a data source (for operations like mov, add, etc). It must be
// expressible as an 8-bit value rotated right by an even amount.
type Immediate uint32

func (i Immediate) encodeDataSource(c *ctx) uint32 {
	val := uint32(i)
	for rot := uint32(0); rot < 16; rot++ {
		m := val<<(rot*2) | val>>((32-rot*2)%32)
		if m < 256 {
			return 1<<25 | rot<<8 | m
		}
	}
	c.failf("unencodable immediate 0x%x", val)
	return 0
}

func (r Register) encodeDataSource(c *ctx) uint32 {
	return r.Encode()
}

type LabelRef string

func (r LabelRef) resolveBranchTarget(c *ctx) uint32 {
	return c.label(string(r))
}

// LabelRef loads the absolute address of the label through the constant pool.
func (r LabelRef) encodeAddress(c *ctx) uint32 {
	return Constant(r.resolveBranchTarget(c)).encodeAddress(c)
}
