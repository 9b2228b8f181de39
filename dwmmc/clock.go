// Monotonic tick source and bounded delay helpers
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

import "time"

// Clock is the monotonic tick source the driver requires: a free-running
// counter that never decreases (it may wrap only at very long horizons)
// plus the counter's rate, so that durations can be converted to a tick
// count. Production code supplies a real hardware counter (see
// soc/riscv/clint); tests supply a deterministic fake.
type Clock interface {
	// Ticks returns the current value of the free-running counter.
	Ticks() uint64
	// TicksPerMicrosecond returns the counter's rate of advance.
	TicksPerMicrosecond() uint64
}

// deadline returns the tick value at which d will have elapsed from now.
func deadline(c Clock, d time.Duration) uint64 {
	ticks := uint64(d.Microseconds()) * c.TicksPerMicrosecond()
	return c.Ticks() + ticks
}

// expired reports whether the tick-counter has reached or passed dl.
func expired(c Clock, dl uint64) bool {
	return c.Ticks() >= dl
}

// delay busy-waits for d to elapse on the tick counter. No OS scheduler
// exists and interrupts are masked during enumeration, so this is a tight
// spin rather than a yielding sleep (see spec.md §9, "Busy-wait vs.
// sleep").
func delay(c Clock, d time.Duration) {
	dl := deadline(c, d)
	for !expired(c, dl) {
	}
}

// pollUntil spins, calling pred, until either pred returns true (success)
// or d elapses (timeout). It is the single pattern behind every bounded
// wait helper in wait.go.
func pollUntil(c Clock, d time.Duration, pred func() bool) bool {
	dl := deadline(c, d)
	for {
		if pred() {
			return true
		}
		if expired(c, dl) {
			return false
		}
	}
}
