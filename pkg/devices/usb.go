package devices

import (
	"errors"
	"time"
)

// Usb describes a common API to access a device in RCM mode over USB. All
// transfers take an explicit timeout, as the exploit relies on them being
// short and precise.
type Usb interface {
	// UseDefaultInterface requests the underlying provider to claim the first
	// interface of the active configuration, granting access to its bulk
	// endpoints.
	UseDefaultInterface() error

	// Control sends a control request to the device. Whether data is read or
	// written depends on the direction bit of rType.
	Control(rType, request uint8, val, idx uint16, data []byte, timeout time.Duration) (int, error)

	// ReadBulk reads up to len(buf) bytes from the given IN endpoint address
	// (eg. 0x81).
	ReadBulk(ep uint8, buf []byte, timeout time.Duration) (int, error)

	// WriteBulk writes buf to the given OUT endpoint address (eg. 0x01).
	WriteBulk(ep uint8, buf []byte, timeout time.Duration) (int, error)

	// Reset performs a USB port reset of the device.
	Reset() error

	// ClearHalt clears a halt/stall condition on the given endpoint address.
	ClearHalt(ep uint8) error

	// Close releases the claimed interface and disposes of this device. No
	// other functions may be called on the interface afterwards.
	Close() error
}

// UsbTimeoutError is returned by Usb implementations whenever a transfer did
// not complete within its timeout, regardless of the underlying provider.
var UsbTimeoutError = errors.New("USB timeout error")

// IsTimeout returns whether err is, or wraps, UsbTimeoutError.
func IsTimeout(err error) bool {
	return errors.Is(err, UsbTimeoutError)
}

// Standard request bits used to build bmRequestType values.
const (
	RequestDirectionIn  uint8 = 0x80
	RequestTypeStandard uint8 = 0x00
	RecipientDevice     uint8 = 0x00
	RecipientEndpoint   uint8 = 0x02

	RequestGetStatus    uint8 = 0x00
	RequestClearFeature uint8 = 0x01

	FeatureEndpointHalt uint16 = 0x00
)
