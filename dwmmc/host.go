// SD/MMC controller host handle
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

import "sync"

// Host is a single DesignWare-compatible SD/MMC controller instance bound
// to one physical card slot. The zero value is not ready for use; obtain a
// Host through NewHost.
//
// A Host is safe for concurrent use: every exported method takes the
// embedded mutex for its duration, matching this driver's single-card,
// single-transfer-in-flight model (spec.md §2).
type Host struct {
	sync.Mutex

	// Base is the controller's register base address.
	Base uint32

	// Bus performs the actual register and FIFO accesses. Production
	// callers pass NewMemoryBus(base); tests inject dwmmctest.Mock.
	Bus Bus

	// Clock supplies the monotonic tick source used by every bounded
	// wait. Production callers wire a concrete Clock (see
	// soc/riscv/clint); tests inject a fake.
	Clock Clock

	// Log receives structured driver events. A nil Log is replaced with
	// a no-op sink.
	Log Logger

	rca          uint16
	initialized  bool
	highCapacity bool
}

// NewHost returns a Host bound to base, using bus for register access and
// clk as the tick source. Production callers pass NewMemoryBus(base) for
// bus; tests may pass nil and assign a fake before calling Init.
func NewHost(base uint32, bus Bus, clk Clock) *Host {
	return &Host{
		Base:  base,
		Bus:   bus,
		Clock: clk,
	}
}

// bus returns the Bus in use, which already encodes Base internally (see
// NewMemoryBus); every register access below passes a bare offset.
func (h *Host) bus() Bus {
	return h.Bus
}

func (h *Host) clk() Clock {
	return h.Clock
}
