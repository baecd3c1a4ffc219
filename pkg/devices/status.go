package devices

import "github.com/google/gousb"

// Info is what can be learned about an attached device without claiming it.
// String fields are empty when the device could not be opened to read them.
type Info struct {
	VID, PID     gousb.ID
	Manufacturer string
	Product      string
	SerialNumber string
}

// Status summarizes whether a device is attached and whether it is in RCM.
type Status struct {
	DeviceConnected bool
	RCMDetected     bool
	// NotInRCM is set when a Nintendo device is attached, but enumerates as
	// something other than the RCM boot ROM.
	NotInRCM bool
	Device   *Info
}

func (s Status) String() string {
	switch {
	case s.RCMDetected:
		return "device in RCM mode detected"
	case s.NotInRCM:
		return "device connected, but not in RCM mode"
	}
	return "no device connected"
}

// Classify picks the most relevant device out of infos. An RCM device always
// wins over a normally booted one, regardless of bus order.
func Classify(infos []Info) Status {
	for i := range infos {
		if infos[i].VID == RCMVID && infos[i].PID == RCMPID {
			return Status{
				DeviceConnected: true,
				RCMDetected:     true,
				Device:          &infos[i],
			}
		}
	}
	for i := range infos {
		if infos[i].VID == NintendoVID {
			return Status{
				DeviceConnected: true,
				NotInRCM:        true,
				Device:          &infos[i],
			}
		}
	}
	return Status{}
}
