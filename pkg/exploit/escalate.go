package exploit

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"

	"github.com/rcmhax/gelee/pkg/devices"
)

var ErrAllStrategiesFailed = errors.New("all exploit strategies failed")

// Troubleshooting is shown to the user once every strategy has failed.
const Troubleshooting = `Troubleshooting suggestions:
  - Make sure the Switch is properly in RCM mode (hold VOL+ and VOL- while pressing POWER with the RCM jig in place)
  - Try replugging the USB cable
  - Try a different USB port on your computer
  - Make sure no other programs are accessing the USB device
  - Try power cycling the Switch and entering RCM again
  - Check if your Switch is supported (most unpatched units are vulnerable)

If the issue persists, the device may be in an error state or not actually in RCM mode.`

// Escalate runs strategies in order until one succeeds. A running strategy
// is never interrupted; ctx is only checked between strategies.
func Escalate(ctx context.Context, usb devices.Usb, ep uint8, payload []byte, strategies []Strategy) (string, error) {
	var errs error
	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		glog.Infof("Strategy %d: %s", i+1, s.Name())
		msg, err := s.Run(usb, ep, payload)
		if err == nil {
			return msg, nil
		}
		glog.Warningf("Strategy %d failed: %v", i+1, err)
		errs = multierror.Append(errs, fmt.Errorf("strategy %d (%s): %w", i+1, s.Name(), err))
	}
	if errs == nil {
		return "", ErrAllStrategiesFailed
	}
	return "", fmt.Errorf("%w: %w", ErrAllStrategiesFailed, errs)
}
