package devices

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		desc       string
		infos      []Info
		wantRCM    bool
		wantNotRCM bool
		wantPID    uint16
	}{
		{
			desc: "nothing attached",
		},
		{
			desc:  "unrelated devices only",
			infos: []Info{{VID: 0x046d, PID: 0xc52b}, {VID: 0x8087, PID: 0x0a2b}},
		},
		{
			desc:    "switch in RCM",
			infos:   []Info{{VID: 0x046d, PID: 0xc52b}, {VID: 0x0955, PID: 0x7321, Product: "APX"}},
			wantRCM: true,
			wantPID: 0x7321,
		},
		{
			desc:       "switch booted normally",
			infos:      []Info{{VID: 0x057e, PID: 0x2000}},
			wantNotRCM: true,
			wantPID:    0x2000,
		},
		{
			desc:    "RCM wins over a normally booted switch listed first",
			infos:   []Info{{VID: 0x057e, PID: 0x2000}, {VID: 0x0955, PID: 0x7321}},
			wantRCM: true,
			wantPID: 0x7321,
		},
		{
			desc:  "nvidia device that is not RCM",
			infos: []Info{{VID: 0x0955, PID: 0x7020}},
		},
	}

	for _, tc := range testCases {
		st := Classify(tc.infos)
		assert.Equal(t, tc.wantRCM, st.RCMDetected, tc.desc)
		assert.Equal(t, tc.wantNotRCM, st.NotInRCM, tc.desc)
		assert.Equal(t, tc.wantRCM || tc.wantNotRCM, st.DeviceConnected, tc.desc)
		if st.Device != nil {
			assert.EqualValues(t, tc.wantPID, st.Device.PID, tc.desc)
		} else {
			assert.False(t, st.DeviceConnected, tc.desc)
		}
	}
}

func TestDescribe(t *testing.T) {
	d := Describe(0, 0)
	assert.Equal(t, RCMVID, d.VID)
	assert.Equal(t, RCMPID, d.PID)
	assert.Equal(t, T210, d.Kind)

	d = Describe(0x0955, 0x7330)
	assert.EqualValues(t, 0x7330, d.PID)
	assert.Equal(t, T210, d.Kind)
}
