// RISC-V Core-Local Interruptor (CLINT) tick source
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package clint provides a dwmmc.Clock backed by a RISC-V Core-Local
// Interruptor's free-running mtime register, adopting the following
// reference specification:
//   - FU540C00RM - SiFive FU540-C000 Manual - v1p4 2021/03/25
//
// This package is only meant to be used with `GOOS=tamago GOARCH=riscv64`
// as supported by the TamaGo framework for bare metal Go on RISC-V SoCs,
// see https://github.com/usbarmory/tamago.
package clint

import (
	"sync/atomic"
	"unsafe"
)

// mtimeOffset is the CLINT's free-running timer register offset, relative
// to Base.
const mtimeOffset = 0xbff8

// CLINT reads a RISC-V CLINT block's mtime register as a dwmmc.Clock tick
// source.
type CLINT struct {
	// Base is the CLINT's register base address.
	Base uint64

	// RTCCLK is the real-time clock input frequency in Hz that drives
	// mtime's increment rate.
	RTCCLK uint64
}

// Ticks returns the current value of mtime, implementing dwmmc.Clock.
func (c *CLINT) Ticks() uint64 {
	addr := (*uint64)(unsafe.Pointer(uintptr(c.Base + mtimeOffset)))
	return atomic.LoadUint64(addr)
}

// TicksPerMicrosecond returns mtime's rate of advance, implementing
// dwmmc.Clock.
func (c *CLINT) TicksPerMicrosecond() uint64 {
	return c.RTCCLK / 1_000_000
}
