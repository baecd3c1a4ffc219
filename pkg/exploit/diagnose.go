package exploit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/rcmhax/gelee/pkg/devices"
)

var ErrNotAcceptingBulk = errors.New("device not accepting bulk transfers, may not be in proper RCM state")

// Diagnose checks that the device answers a plain control request and takes
// a small bulk write.
func Diagnose(usb devices.Usb, ep uint8) error {
	glog.Infof("Running device diagnostics...")

	rType := devices.RequestDirectionIn | devices.RequestTypeStandard | devices.RecipientDevice
	status := make([]byte, 2)
	n, err := usb.Control(rType, devices.RequestGetStatus, 0, 0, status, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("control transfer test failed: %w", err)
	}
	glog.Infof("  Control transfer test: %d bytes received", n)

	n, err = usb.WriteBulk(ep, make([]byte, 0x40), 50*time.Millisecond)
	switch {
	case err == nil:
		glog.Infof("  Minimal bulk transfer test: %d bytes sent", n)
		return nil
	case devices.IsTimeout(err):
		return ErrNotAcceptingBulk
	default:
		return fmt.Errorf("bulk transfer test failed: %w", err)
	}
}
