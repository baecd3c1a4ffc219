package exploit

import "time"

// Timing holds the delays and timeouts used by the escalation strategies.
// Whether the exact values matter is not known; the defaults are the ones
// the strategies were developed against, and should be changed with care.
type Timing struct {
	// ClassicWrite bounds the first bulk write of the classic strategy.
	ClassicWrite time.Duration

	// OverflowRead bounds the oversized control read sent after a bulk
	// write timed out. ShortOverflowRead is used for the interleaved reads of
	// the primed strategy and after a successful write in the reset
	// strategy.
	OverflowRead      time.Duration
	ShortOverflowRead time.Duration

	// Settle is waited before probing, Probe bounds the probe write itself.
	// The Short variants are used in the middle of a transfer.
	Settle      time.Duration
	Probe       time.Duration
	ShortSettle time.Duration
	ShortProbe  time.Duration
	// ProbeLength is how many payload bytes a probe writes.
	ProbeLength int

	PrimeReads       int
	PrimeRead        time.Duration
	PrimeSpacing     time.Duration
	PrimedFirstWrite time.Duration
	PrimedChunkWrite time.Duration
	// ChunkRetries is how many times a chunk is resent after it timed out
	// but the device still answered the probe.
	ChunkRetries int

	AggressiveChunkSize int
	AggressiveRead      time.Duration
	AggressiveWrite     time.Duration
	AggressiveProbe     time.Duration
	AggressiveDelay     time.Duration

	ResetSettle time.Duration
	ResetWrite  time.Duration
}

var DefaultTiming = Timing{
	ClassicWrite: 50 * time.Millisecond,

	OverflowRead:      100 * time.Millisecond,
	ShortOverflowRead: 50 * time.Millisecond,

	Settle:      50 * time.Millisecond,
	Probe:       50 * time.Millisecond,
	ShortSettle: 20 * time.Millisecond,
	ShortProbe:  20 * time.Millisecond,
	ProbeLength: 0x100,

	PrimeReads:       5,
	PrimeRead:        200 * time.Millisecond,
	PrimeSpacing:     10 * time.Millisecond,
	PrimedFirstWrite: time.Second,
	PrimedChunkWrite: 200 * time.Millisecond,
	ChunkRetries:     3,

	AggressiveChunkSize: 0x800,
	AggressiveRead:      10 * time.Millisecond,
	AggressiveWrite:     10 * time.Millisecond,
	AggressiveProbe:     500 * time.Microsecond,
	AggressiveDelay:     500 * time.Microsecond,

	ResetSettle: 100 * time.Millisecond,
	ResetWrite:  10 * time.Millisecond,
}
