package payload

import (
	"fmt"

	"github.com/rcmhax/gelee/pkg/rcm"
	"github.com/rcmhax/gelee/pkg/uasm"
)

// stageSize is how much of the relocator is moved out of the way before the
// payload is copied over it.
const stageSize = 0x200

// copyLoop copies R2 bytes, a word at a time, from R1 to R0.
func copyLoop(name string) []uasm.Statement {
	done := name + "_done"
	return []uasm.Statement{
		uasm.Label(name),
		uasm.Cmp{A: uasm.R2, B: uasm.Immediate(0)},
		uasm.B{Cond: uasm.EQ, Dest: uasm.LabelRef(done)},
		uasm.Ldr{Dest: uasm.R3, Src: uasm.PostInc(uasm.R1, 4)},
		uasm.Str{Src: uasm.R3, Dest: uasm.PostInc(uasm.R0, 4)},
		uasm.Sub{Dest: uasm.R2, Src: uasm.R2, Compl: uasm.Immediate(4)},
		uasm.B{Dest: uasm.LabelRef(name)},
		uasm.Label(done),
	}
}

func instructions(l []uasm.Statement) int {
	n := 0
	for _, s := range l {
		if _, ok := s.(uasm.Label); !ok {
			n += 1
		}
	}
	return n
}

// BuiltinRelocator assembles a relocator for p, for when no intermezzo
// binary is around. Once the boot ROM returns into it, it moves its second
// stage into the unused low DMA buffer, then stitches the payload back
// together at RCMPayloadAddr (the part before the stack spray, then the part
// after it) and jumps there.
func BuiltinRelocator(p *rcm.Parameters) ([]byte, error) {
	scratch := p.CopyBufferAddrs[0]
	head := p.StackSprayStart - p.PayloadStartAddr
	payloadEnd := p.RCMPayloadAddr + p.MaxLength - uint32(p.HeaderSize)
	var tail uint32
	if payloadEnd > p.StackSprayEnd {
		tail = payloadEnd - p.StackSprayEnd
	}

	stage1 := []uasm.Statement{
		uasm.Ldr{Dest: uasm.R0, Src: uasm.Constant(scratch)},
		uasm.Ldr{Dest: uasm.R1, Src: uasm.LabelRef("stage2")},
		uasm.Ldr{Dest: uasm.R2, Src: uasm.Constant(stageSize)},
	}
	stage1 = append(stage1, copyLoop("relocate")...)
	stage1 = append(stage1,
		uasm.Ldr{Dest: uasm.R0, Src: uasm.Constant(scratch)},
		uasm.Bx{Dest: uasm.R0},
	)

	stage2 := []uasm.Statement{
		uasm.Label("stage2"),
		uasm.Ldr{Dest: uasm.R0, Src: uasm.Constant(p.RCMPayloadAddr)},
		uasm.Ldr{Dest: uasm.R1, Src: uasm.Constant(p.PayloadStartAddr)},
		uasm.Ldr{Dest: uasm.R2, Src: uasm.Constant(head)},
	}
	stage2 = append(stage2, copyLoop("head")...)
	// R0 already points right behind the head.
	stage2 = append(stage2,
		uasm.Ldr{Dest: uasm.R1, Src: uasm.Constant(p.StackSprayEnd)},
		uasm.Ldr{Dest: uasm.R2, Src: uasm.Constant(tail)},
	)
	stage2 = append(stage2, copyLoop("tail")...)
	stage2 = append(stage2,
		uasm.Ldr{Dest: uasm.R0, Src: uasm.Constant(p.RCMPayloadAddr)},
		uasm.Bx{Dest: uasm.R0},
	)

	prog := uasm.Program{
		Address: p.RCMPayloadAddr,
		Listing: append(stage1, stage2...),
	}
	res, err := prog.Assemble()
	if err != nil {
		return nil, fmt.Errorf("could not assemble relocator: %w", err)
	}
	// The second stage loads its constants PC-relative, so the constant pool
	// has to move along with it.
	if moved := len(res) - 4*instructions(stage1); moved > stageSize {
		return nil, fmt.Errorf("relocator second stage is %d bytes, max %d", moved, stageSize)
	}
	return res, nil
}
