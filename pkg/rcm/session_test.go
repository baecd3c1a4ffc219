package rcm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcmhax/gelee/pkg/devices"
	"github.com/rcmhax/gelee/pkg/devices/devicestest"
)

func TestOpenNoDeviceNoWait(t *testing.T) {
	b := &devicestest.Backend{}
	start := time.Now()
	s, err := Open(context.Background(), b, Options{PollInterval: time.Hour})
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.Equal(t, 1, b.Lookups)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOpenDefaultsToRCM(t *testing.T) {
	b := &devicestest.Backend{Dev: &devicestest.Fake{}}
	s, err := Open(context.Background(), b, Options{})
	require.NoError(t, err)
	assert.Equal(t, devices.RCMVID, b.VID)
	assert.Equal(t, devices.RCMPID, b.PID)
	assert.Equal(t, BufferLow, s.CurrentBuffer())
	assert.Equal(t, 1, b.Dev.Count(devicestest.OpClaim))
	assert.Equal(t, &T210Parameters, s.P)
}

func TestOpenWaits(t *testing.T) {
	b := &devicestest.Backend{Dev: &devicestest.Fake{}, Misses: 3}
	s, err := Open(context.Background(), b, Options{Wait: true, PollInterval: time.Millisecond})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 4, b.Lookups)
}

func TestOpenWaitCancelled(t *testing.T) {
	b := &devicestest.Backend{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Open(ctx, b, Options{Wait: true, PollInterval: time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, b.Lookups, 1)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrNoBackend)

	access := errors.New("access denied")
	_, err = Open(context.Background(), &devicestest.Backend{Err: access}, Options{})
	assert.ErrorIs(t, err, access)

	dev := &devicestest.Fake{ClaimErr: errors.New("busy")}
	_, err = Open(context.Background(), &devicestest.Backend{Dev: dev}, Options{})
	assert.Error(t, err)
	assert.True(t, dev.Closed, "device should be released when claiming fails")
}

func newTestSession(f *devicestest.Fake) *Session {
	return NewSession(f, devices.Describe(0, 0), &T210Parameters)
}

func TestBufferParity(t *testing.T) {
	for n := 0; n < 7; n++ {
		s := newTestSession(&devicestest.Fake{})
		for i := 0; i < n; i++ {
			require.NoError(t, s.WriteSingleBuffer(make([]byte, 0x1000)))
		}
		want := BufferLow
		if n%2 == 1 {
			want = BufferHigh
		}
		assert.Equal(t, want, s.CurrentBuffer(), "after %d writes", n)
	}
}

func TestFailedWriteDoesNotToggle(t *testing.T) {
	f := &devicestest.Fake{
		OnWriteBulk: func(c devicestest.Call) (int, error) {
			return 0, devices.UsbTimeoutError
		},
	}
	s := newTestSession(f)
	err := s.WriteSingleBuffer(make([]byte, 0x1000))
	assert.True(t, devices.IsTimeout(err))
	assert.Equal(t, BufferLow, s.CurrentBuffer())
	assert.Equal(t, 0, s.Written())
}

func TestWriteChunks(t *testing.T) {
	f := &devicestest.Fake{}
	s := newTestSession(f)
	data := make([]byte, 0x2800)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, s.Write(data))

	writes := f.Filter(devicestest.OpWriteBulk)
	require.Len(t, writes, 3)
	assert.Equal(t, 0x1000, writes[0].Length)
	assert.Equal(t, 0x1000, writes[1].Length)
	assert.Equal(t, 0x800, writes[2].Length)
	for _, w := range writes {
		assert.Equal(t, uint8(0x01), w.Ep)
		assert.Equal(t, time.Second, w.Timeout)
	}
	assert.Equal(t, data[0x2000:], writes[2].Data)
	assert.Equal(t, BufferHigh, s.CurrentBuffer())
	assert.Equal(t, 0x2800, s.Written())
}

func TestSwitchToHighBuf(t *testing.T) {
	f := &devicestest.Fake{}
	s := newTestSession(f)
	require.NoError(t, s.SwitchToHighBuf())
	assert.Equal(t, BufferHigh, s.CurrentBuffer())
	writes := f.Filter(devicestest.OpWriteBulk)
	require.Len(t, writes, 1)
	assert.Equal(t, make([]byte, 0x1000), writes[0].Data)

	require.NoError(t, s.SwitchToHighBuf())
	assert.Equal(t, 1, f.Count(devicestest.OpWriteBulk), "already on the high buffer")
	assert.Equal(t, uint32(0x40009000), s.CurrentBufferAddress())
}

func TestTriggerControlledMemcpy(t *testing.T) {
	f := &devicestest.Fake{
		OnControl: func(c devicestest.Call) (int, error) {
			return 0, devices.UsbTimeoutError
		},
	}
	s := newTestSession(f)
	require.NoError(t, s.SwitchToHighBuf())
	outcome, err := s.TriggerControlledMemcpy(0)
	require.NoError(t, err)
	assert.Equal(t, TriggerTimedOut, outcome)

	ctrl := f.Filter(devicestest.OpControl)
	require.Len(t, ctrl, 1)
	assert.Equal(t, uint8(0x82), ctrl[0].RType)
	assert.Equal(t, uint8(0x00), ctrl[0].Request)
	assert.Equal(t, uint16(0), ctrl[0].Val)
	assert.Equal(t, uint16(0), ctrl[0].Idx)
	assert.Equal(t, 0x7000, ctrl[0].Length)

	_, err = s.TriggerControlledMemcpy(0x1234)
	require.NoError(t, err)
	assert.Equal(t, 0x1234, f.Filter(devicestest.OpControl)[1].Length)
}

func TestTriggerOutcomes(t *testing.T) {
	stall := errors.New("pipe error")
	testCases := []struct {
		desc        string
		err         error
		wantOutcome TriggerOutcome
		wantErr     bool
	}{
		{desc: "timeout means the device crashed", err: devices.UsbTimeoutError, wantOutcome: TriggerTimedOut},
		{desc: "normal completion", err: nil, wantOutcome: TriggerCompleted},
		{desc: "other errors are failures", err: stall, wantErr: true},
	}
	for _, tc := range testCases {
		f := &devicestest.Fake{
			OnControl: func(c devicestest.Call) (int, error) {
				return 0, tc.err
			},
		}
		tr := &Transport{Usb: f, P: &T210Parameters}
		outcome, err := tr.TriggerVulnerability(0x7000)
		if (err != nil) != tc.wantErr {
			t.Fatalf("Test %q: failed = %t (%v), want %t", tc.desc, err != nil, err, tc.wantErr)
		}
		if err != nil {
			assert.ErrorIs(t, err, stall, tc.desc)
			continue
		}
		assert.Equal(t, tc.wantOutcome, outcome, tc.desc)
	}
}

func TestReadDeviceID(t *testing.T) {
	f := &devicestest.Fake{
		OnReadBulk: func(c devicestest.Call, buf []byte) (int, error) {
			return copy(buf, []byte{0xde, 0xad, 0xbe, 0xef}), nil
		},
	}
	s := newTestSession(f)
	id, err := s.ReadDeviceID()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, id)

	reads := f.Filter(devicestest.OpReadBulk)
	require.Len(t, reads, 1)
	assert.Equal(t, uint8(0x81), reads[0].Ep)
	assert.Equal(t, 16, reads[0].Length)
	assert.Equal(t, BufferLow, s.CurrentBuffer(), "reads do not touch the DMA buffers")
}
