package main

import (
	"fmt"

	"github.com/google/gousb"
	"github.com/google/gousb/usbid"
	"github.com/spf13/cobra"
)

const listMaxDevices = 50

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached USB devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		var descs = make(map[[2]gousb.ID]*gousb.DeviceDesc)
		infos := b.enumerate(listMaxDevices, func(desc *gousb.DeviceDesc) bool {
			if desc.Vendor == 0 || desc.Product == 0 {
				return false
			}
			descs[[2]gousb.ID{desc.Vendor, desc.Product}] = desc
			return true
		})
		for _, info := range infos {
			printInfo(info)
			if desc, ok := descs[[2]gousb.ID{info.VID, info.PID}]; ok {
				fmt.Printf("    %s\n", usbid.Describe(desc))
			}
		}
		if len(infos) == 0 {
			fmt.Println("No devices found.")
		}
		return nil
	},
}
