package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "gelee",
	Short: "gelee is a Fusée Gelée payload injector for the Tegra X1",
	Long: `Sends payloads to a Nintendo Switch (or any other Tegra X1 device) in RCM
mode, using the Fusée Gelée coldboot vulnerability in the boot ROM's USB
recovery stack.

gelee comes with ABSOLUTELY NO WARRANTY.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verboseLog {
			slog.SetLogLoggerLevel(slog.LevelDebug)
			flag.Set("v", "1")
		}
		return nil
	},
}

var (
	verboseLog    bool
	flagVID       string
	flagPID       string
	flagWait      bool
	flagRelocator string
)

func main() {
	// glog writes to files by default, which is not what a CLI wants.
	flag.Set("logtostderr", "true")

	escalateCmd.Flags().StringVarP(&escalateEndpoint, "endpoint", "e", "0x01", "Bulk OUT endpoint to target")
	escalateCmd.Flags().BoolVarP(&escalateDiagnose, "diagnose", "d", false, "Run device diagnostics before attempting the exploit")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	// -v belongs to glog.
	rootCmd.PersistentFlags().BoolVar(&verboseLog, "verbose", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().StringVar(&flagVID, "vid", "0x0955", "USB vendor ID of the device in RCM mode")
	rootCmd.PersistentFlags().StringVar(&flagPID, "pid", "0x7321", "USB product ID of the device in RCM mode")
	rootCmd.PersistentFlags().BoolVarP(&flagWait, "wait", "w", false, "Wait for a device to show up instead of failing")
	rootCmd.PersistentFlags().StringVarP(&flagRelocator, "relocator", "r", "", "Path to intermezzo.bin, or 'builtin' to assemble one (default: gelee/intermezzo.bin in the XDG data directories)")
	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(escalateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(downloadCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
}

func parseNumber(s string) (uint32, error) {
	var err error
	var res uint64
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		res, err = strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid number")
		}
	} else {
		res, err = strconv.ParseUint(s, 10, 32)
		if err != nil {
			res, err = strconv.ParseUint(s, 16, 32)
			if err != nil {
				return 0, fmt.Errorf("invalid number")
			}
		}
	}
	return uint32(res), nil
}

func parseID(name, s string) (uint16, error) {
	n, err := parseNumber(s)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	if n > 0xffff {
		return 0, fmt.Errorf("--%s: %s does not fit in 16 bits", name, s)
	}
	return uint16(n), nil
}
