package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rcmhax/gelee/pkg/exploit"
)

var (
	escalateEndpoint string
	escalateDiagnose bool
)

var escalateCmd = &cobra.Command{
	Use:   "escalate [payload]",
	Short: "Inject a payload, trying increasingly aggressive strategies",
	Long:  "Runs a series of exploit strategies against the device's bulk endpoint, stopping at the first one that crashes the boot ROM. Use when inject does not work.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := parseNumber(escalateEndpoint)
		if err != nil {
			return fmt.Errorf("--endpoint: %w", err)
		}
		if ep == 0 || ep > 0x0f {
			return fmt.Errorf("--endpoint: 0x%x is not an OUT endpoint", ep)
		}
		req, err := newRequest(args[0])
		if err != nil {
			return err
		}
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		msg, err := exploit.InjectEscalating(ctx, b, exploit.EscalateRequest{
			Request:  req,
			Endpoint: uint8(ep),
			Diagnose: escalateDiagnose,
		})
		if err != nil {
			if errors.Is(err, exploit.ErrAllStrategiesFailed) {
				fmt.Fprintln(os.Stderr, exploit.Troubleshooting)
			}
			return err
		}
		fmt.Println(msg)
		return nil
	},
}
