package devices

import (
	"fmt"

	"github.com/google/gousb"
)

type Kind string

const (
	T210 Kind = "t210"
)

func (k Kind) String() string {
	switch k {
	case T210:
		return "Tegra X1 (T210)"
	}
	return "UNKNOWN"
}

// Description identifies a device in RCM mode on the bus.
type Description struct {
	VID, PID gousb.ID
	Kind     Kind
}

func (d Description) String() string {
	return fmt.Sprintf("%s (%s:%s)", d.Kind, d.VID, d.PID)
}

const (
	// RCMVID and RCMPID are the identifiers the boot ROM enumerates with
	// while in USB Recovery Mode.
	RCMVID gousb.ID = 0x0955
	RCMPID gousb.ID = 0x7321

	// NintendoVID is what a Switch enumerates with when booted normally
	// (ie. not in RCM).
	NintendoVID gousb.ID = 0x057e
)

var Descriptions = []Description{
	{
		VID:  RCMVID,
		PID:  RCMPID,
		Kind: T210,
	},
}

// Describe returns the description for the given identifiers, defaulting
// unset (zero) values to the RCM pair. Identifiers that do not match a known
// description are still returned, attributed to T210, so that other boards
// with the same boot ROM can be targeted explicitly.
func Describe(vid, pid gousb.ID) Description {
	if vid == 0 {
		vid = RCMVID
	}
	if pid == 0 {
		pid = RCMPID
	}
	for _, d := range Descriptions {
		if d.VID == vid && d.PID == pid {
			return d
		}
	}
	return Description{VID: vid, PID: pid, Kind: T210}
}
