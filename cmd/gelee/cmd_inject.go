package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rcmhax/gelee/pkg/cache"
	"github.com/rcmhax/gelee/pkg/exploit"
	"github.com/rcmhax/gelee/pkg/payload"
)

// builtinRelocator selects the relocator assembled at runtime.
const builtinRelocator = "builtin"

func relocatorPath() (string, error) {
	if flagRelocator != "" {
		return flagRelocator, nil
	}
	p, err := cache.RelocatorPath()
	if err != nil {
		return "", fmt.Errorf("%w: %w", payload.ErrRelocatorNotFound, err)
	}
	return p, nil
}

func newRequest(payloadPath string) (exploit.Request, error) {
	opts, err := openOptions()
	if err != nil {
		return exploit.Request{}, err
	}
	req := exploit.Request{
		PayloadPath: payloadPath,
		Options:     opts,
	}
	if flagRelocator == builtinRelocator {
		req.BuiltinRelocator = true
	} else if req.RelocatorPath, err = relocatorPath(); err != nil {
		return exploit.Request{}, err
	}
	slog.Debug("Request", "payload", payloadPath, "relocator", req.RelocatorPath, "builtin", req.BuiltinRelocator, "vid", opts.VID, "pid", opts.PID)
	return req, nil
}

var injectCmd = &cobra.Command{
	Use:   "inject [payload]",
	Short: "Inject a payload into a device in RCM mode",
	Long:  "Uploads the payload behind the intermezzo relocator and triggers the Fusée Gelée vulnerability, so that the boot ROM jumps into it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		msg, err := exploit.Inject(ctx, b, req)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}
