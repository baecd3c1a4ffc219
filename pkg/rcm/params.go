package rcm

import (
	"time"

	"github.com/rcmhax/gelee/pkg/devices"
)

// Parameters is the fixed address map and USB contract of a given boot ROM.
// Everything that depends on the silicon lives here, so that other device
// families can be targeted by providing another set.
type Parameters struct {
	// RCMPayloadAddr is where the boot ROM places the RCM command body.
	RCMPayloadAddr uint32
	// PayloadStartAddr is where the user payload is expected to begin.
	PayloadStartAddr uint32
	// [StackSprayStart, StackSprayEnd) gets filled with RCMPayloadAddr.
	StackSprayStart uint32
	StackSprayEnd   uint32
	// CopyBufferAddrs are the two DMA buffers the vulnerable memcpy can
	// copy from, low first.
	CopyBufferAddrs [2]uint32
	// StackEnd is the address just after the end of the device's stack.
	StackEnd uint32

	// MaxLength is the largest RCM transfer accepted, and is also the value
	// of the length field of the command header.
	MaxLength uint32
	// HeaderSize is the size of the RCM command header the relocator
	// follows.
	HeaderSize int
	// ChunkSize is the size of a single RCM buffer.
	ChunkSize int
	// Alignment is what the final blob gets padded to.
	Alignment int
	// DeviceIDLength is how many bytes the device sends on connection.
	DeviceIDLength int

	EndpointIn  uint8
	EndpointOut uint8
	// OverflowLength is the wLength of the oversized control reads issued by
	// escalation strategies.
	OverflowLength int

	// TransferTimeout applies to all reads, writes and the trigger.
	TransferTimeout time.Duration
}

var T210Parameters = Parameters{
	RCMPayloadAddr:   0x40010000,
	PayloadStartAddr: 0x40010e40,
	StackSprayStart:  0x40014e40,
	StackSprayEnd:    0x40017000,
	CopyBufferAddrs:  [2]uint32{0x40005000, 0x40009000},
	StackEnd:         0x40010000,

	MaxLength:      0x30298,
	HeaderSize:     680,
	ChunkSize:      0x1000,
	Alignment:      0x1000,
	DeviceIDLength: 16,

	EndpointIn:     0x81,
	EndpointOut:    0x01,
	OverflowLength: 0xffff,

	TransferTimeout: time.Second,
}

var ParametersForKind = map[devices.Kind]*Parameters{
	devices.T210: &T210Parameters,
}
