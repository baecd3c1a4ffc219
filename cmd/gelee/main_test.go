package main

import (
	"context"
	"errors"
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"

	"github.com/rcmhax/gelee/pkg/devices"
)

func TestParseNumber(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "0x0955", want: 0x955},
		{in: "0X7321", want: 0x7321},
		{in: "1", want: 1},
		{in: "ff", want: 0xff},
		{in: "0xzz", wantErr: true},
		{in: "", wantErr: true},
	} {
		got, err := parseNumber(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseNumber(%q): err = %v, want error %t", tc.in, err, tc.wantErr)
			continue
		}
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := parseID("vid", "0x10000")
	assert.ErrorContains(t, err, "16 bits")
}

func TestMapTimeout(t *testing.T) {
	assert.NoError(t, mapTimeout(nil))
	for _, err := range []error{gousb.ErrorTimeout, gousb.TransferTimedOut, gousb.TransferCancelled, context.DeadlineExceeded} {
		assert.True(t, devices.IsTimeout(mapTimeout(err)), "%v", err)
	}
	stall := errors.New("pipe")
	assert.Equal(t, stall, mapTimeout(stall))
	assert.False(t, devices.IsTimeout(mapTimeout(gousb.ErrorPipe)))
}
