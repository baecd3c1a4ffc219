// Package devicestest provides a scripted, in-memory devices.Usb for tests.
package devicestest

import (
	"time"

	"github.com/google/gousb"

	"github.com/rcmhax/gelee/pkg/devices"
)

type Op string

const (
	OpClaim     Op = "claim"
	OpControl   Op = "control"
	OpReadBulk  Op = "read"
	OpWriteBulk Op = "write"
	OpReset     Op = "reset"
	OpClearHalt Op = "clearhalt"
	OpClose     Op = "close"
)

// Call records a single operation performed on a Fake.
type Call struct {
	Op      Op
	RType   uint8
	Request uint8
	Val     uint16
	Idx     uint16
	Ep      uint8
	Length  int
	Timeout time.Duration
	// Data is a copy of what was written, for bulk writes.
	Data []byte
}

// Fake implements devices.Usb. Every hook is optional; when unset the
// corresponding operation succeeds and transfers the full buffer.
type Fake struct {
	ClaimErr error
	ResetErr error

	OnControl   func(c Call) (int, error)
	OnReadBulk  func(c Call, buf []byte) (int, error)
	OnWriteBulk func(c Call) (int, error)

	Calls  []Call
	Closed bool
}

var _ devices.Usb = &Fake{}

func (f *Fake) UseDefaultInterface() error {
	f.Calls = append(f.Calls, Call{Op: OpClaim})
	return f.ClaimErr
}

func (f *Fake) Control(rType, request uint8, val, idx uint16, data []byte, timeout time.Duration) (int, error) {
	c := Call{Op: OpControl, RType: rType, Request: request, Val: val, Idx: idx, Length: len(data), Timeout: timeout}
	f.Calls = append(f.Calls, c)
	if f.OnControl != nil {
		return f.OnControl(c)
	}
	return len(data), nil
}

func (f *Fake) ReadBulk(ep uint8, buf []byte, timeout time.Duration) (int, error) {
	c := Call{Op: OpReadBulk, Ep: ep, Length: len(buf), Timeout: timeout}
	f.Calls = append(f.Calls, c)
	if f.OnReadBulk != nil {
		return f.OnReadBulk(c, buf)
	}
	return len(buf), nil
}

func (f *Fake) WriteBulk(ep uint8, buf []byte, timeout time.Duration) (int, error) {
	c := Call{Op: OpWriteBulk, Ep: ep, Length: len(buf), Timeout: timeout, Data: append([]byte(nil), buf...)}
	f.Calls = append(f.Calls, c)
	if f.OnWriteBulk != nil {
		return f.OnWriteBulk(c)
	}
	return len(buf), nil
}

func (f *Fake) Reset() error {
	f.Calls = append(f.Calls, Call{Op: OpReset})
	return f.ResetErr
}

func (f *Fake) ClearHalt(ep uint8) error {
	f.Calls = append(f.Calls, Call{Op: OpClearHalt, Ep: ep})
	return nil
}

func (f *Fake) Close() error {
	f.Calls = append(f.Calls, Call{Op: OpClose})
	f.Closed = true
	return nil
}

// Count returns how many calls of the given kind were recorded.
func (f *Fake) Count(op Op) int {
	n := 0
	for _, c := range f.Calls {
		if c.Op == op {
			n += 1
		}
	}
	return n
}

// Filter returns the recorded calls of the given kind, in order.
func (f *Fake) Filter(op Op) []Call {
	var res []Call
	for _, c := range f.Calls {
		if c.Op == op {
			res = append(res, c)
		}
	}
	return res
}

// Backend hands out Dev, after Misses lookups that find nothing.
type Backend struct {
	Dev    *Fake
	Misses int
	Err    error

	Lookups  int
	VID, PID gousb.ID
}

func (b *Backend) FindDevice(vid, pid gousb.ID) (devices.Usb, error) {
	b.Lookups += 1
	b.VID, b.PID = vid, pid
	if b.Err != nil {
		return nil, b.Err
	}
	if b.Lookups <= b.Misses || b.Dev == nil {
		return nil, nil
	}
	return b.Dev, nil
}
