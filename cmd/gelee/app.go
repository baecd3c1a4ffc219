package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/gousb"

	"github.com/rcmhax/gelee/pkg/devices"
	"github.com/rcmhax/gelee/pkg/rcm"
)

// desktopBackend finds devices through libusb.
type desktopBackend struct {
	ctx *gousb.Context
}

func newBackend() (*desktopBackend, error) {
	ctx, err := newContext()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rcm.ErrNoBackend, err)
	}
	return &desktopBackend{ctx: ctx}, nil
}

func (b *desktopBackend) FindDevice(vid, pid gousb.ID) (devices.Usb, error) {
	usb, err := b.ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		return nil, err
	}
	if usb == nil {
		return nil, nil
	}
	return &desktopUsb{usb: usb}, nil
}

func (b *desktopBackend) Close() error {
	if err := b.ctx.Close(); err != nil {
		return fmt.Errorf("when closing context: %w", err)
	}
	return nil
}

// enumerate lists up to max attached devices accepted by want. Devices that
// cannot be opened are still listed, without their string descriptors.
func (b *desktopBackend) enumerate(max int, want func(desc *gousb.DeviceDesc) bool) []devices.Info {
	var descs []*gousb.DeviceDesc
	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if len(descs) >= max || !want(desc) {
			return false
		}
		descs = append(descs, desc)
		return true
	})
	if err != nil {
		slog.Debug("Some devices could not be opened", "err", err)
	}
	type location struct{ bus, address int }
	opened := make(map[location]*gousb.Device)
	for _, d := range devs {
		opened[location{d.Desc.Bus, d.Desc.Address}] = d
		defer d.Close()
	}

	var res []devices.Info
	for _, desc := range descs {
		info := devices.Info{VID: desc.Vendor, PID: desc.Product}
		if d, ok := opened[location{desc.Bus, desc.Address}]; ok {
			info.Manufacturer, _ = d.Manufacturer()
			info.Product, _ = d.Product()
			info.SerialNumber, _ = d.SerialNumber()
		}
		res = append(res, info)
	}
	return res
}

var errNoInterface = errors.New("interface not claimed")

type desktopUsb struct {
	usb  *gousb.Device
	intf *gousb.Interface
	done func()

	in  map[uint8]*gousb.InEndpoint
	out map[uint8]*gousb.OutEndpoint
}

func (d *desktopUsb) UseDefaultInterface() error {
	intf, done, err := d.usb.DefaultInterface()
	if err != nil {
		return err
	}
	d.intf = intf
	d.done = done
	d.in = make(map[uint8]*gousb.InEndpoint)
	d.out = make(map[uint8]*gousb.OutEndpoint)
	return nil
}

// mapTimeout turns every flavour of libusb timeout into
// devices.UsbTimeoutError. Bulk transfers bounded by a context report
// cancellation rather than a timeout.
func mapTimeout(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gousb.ErrorTimeout),
		errors.Is(err, gousb.TransferTimedOut),
		errors.Is(err, gousb.TransferCancelled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", devices.UsbTimeoutError, err)
	}
	return err
}

func (d *desktopUsb) Control(rType, request uint8, val, idx uint16, data []byte, timeout time.Duration) (int, error) {
	// libusb takes whole milliseconds, and 0 means forever.
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	d.usb.ControlTimeout = timeout
	n, err := d.usb.Control(rType, request, val, idx, data)
	return n, mapTimeout(err)
}

func (d *desktopUsb) inEndpoint(ep uint8) (*gousb.InEndpoint, error) {
	if d.intf == nil {
		return nil, errNoInterface
	}
	num := ep &^ devices.RequestDirectionIn
	if e, ok := d.in[num]; ok {
		return e, nil
	}
	e, err := d.intf.InEndpoint(int(num))
	if err != nil {
		return nil, fmt.Errorf("IN endpoint 0x%02x: %w", ep, err)
	}
	d.in[num] = e
	return e, nil
}

func (d *desktopUsb) outEndpoint(ep uint8) (*gousb.OutEndpoint, error) {
	if d.intf == nil {
		return nil, errNoInterface
	}
	if e, ok := d.out[ep]; ok {
		return e, nil
	}
	e, err := d.intf.OutEndpoint(int(ep))
	if err != nil {
		return nil, fmt.Errorf("OUT endpoint 0x%02x: %w", ep, err)
	}
	d.out[ep] = e
	return e, nil
}

func (d *desktopUsb) ReadBulk(ep uint8, buf []byte, timeout time.Duration) (int, error) {
	e, err := d.inEndpoint(ep)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := e.ReadContext(ctx, buf)
	return n, mapTimeout(err)
}

func (d *desktopUsb) WriteBulk(ep uint8, buf []byte, timeout time.Duration) (int, error) {
	e, err := d.outEndpoint(ep)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := e.WriteContext(ctx, buf)
	return n, mapTimeout(err)
}

func (d *desktopUsb) Reset() error {
	return d.usb.Reset()
}

// ClearHalt sends CLEAR_FEATURE(ENDPOINT_HALT) by hand, gousb does not
// expose libusb_clear_halt.
func (d *desktopUsb) ClearHalt(ep uint8) error {
	rType := devices.RequestTypeStandard | devices.RecipientEndpoint
	_, err := d.Control(rType, devices.RequestClearFeature, devices.FeatureEndpointHalt, uint16(ep), nil, time.Second)
	return err
}

func (d *desktopUsb) Close() error {
	if d.done != nil {
		d.done()
		d.done = nil
	}
	d.intf = nil
	if err := d.usb.Close(); err != nil {
		return fmt.Errorf("when closing USB device: %w", err)
	}
	return nil
}

func newContext() (*gousb.Context, error) {
	resC := make(chan *gousb.Context)
	errC := make(chan error)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errC <- fmt.Errorf("%v", r)
			}
		}()

		resC <- gousb.NewContext()
	}()

	select {
	case err := <-errC:
		return nil, err
	case res := <-resC:
		return res, nil
	}
}

// openOptions builds session options out of the persistent flags.
func openOptions() (rcm.Options, error) {
	vid, err := parseID("vid", flagVID)
	if err != nil {
		return rcm.Options{}, err
	}
	pid, err := parseID("pid", flagPID)
	if err != nil {
		return rcm.Options{}, err
	}
	return rcm.Options{
		VID:  gousb.ID(vid),
		PID:  gousb.ID(pid),
		Wait: flagWait,
	}, nil
}
