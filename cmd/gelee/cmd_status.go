package main

import (
	"fmt"

	"github.com/google/gousb"
	"github.com/spf13/cobra"

	"github.com/rcmhax/gelee/pkg/devices"
)

// Only this many devices are looked at when checking status.
const statusMaxDevices = 20

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether a device in RCM mode is connected",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		infos := b.enumerate(statusMaxDevices, func(desc *gousb.DeviceDesc) bool {
			return desc.Vendor == devices.RCMVID || desc.Vendor == devices.NintendoVID
		})
		st := devices.Classify(infos)
		fmt.Println(st)
		if st.Device != nil {
			printInfo(*st.Device)
		}
		return nil
	},
}

func printInfo(info devices.Info) {
	fmt.Printf("  %s:%s", info.VID, info.PID)
	for _, s := range []string{info.Manufacturer, info.Product} {
		if s != "" {
			fmt.Printf(" %s", s)
		}
	}
	if info.SerialNumber != "" {
		fmt.Printf(" (serial %s)", info.SerialNumber)
	}
	fmt.Println()
}
