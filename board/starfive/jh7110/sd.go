// StarFive JH7110 support for tamago/riscv64
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package jh7110 wires the dwmmc driver to the StarFive JH7110's SD/MMC
// controller and CLINT tick source, the way board/usbarmory/mk2 wires the
// uSDHC driver on the USB armory Mk II.
package jh7110

import (
	"github.com/usbarmory/dwmmc/dwmmc"
	"github.com/usbarmory/dwmmc/soc/riscv/clint"
)

// Peripheral base addresses, per the JH7110 datasheet.
const (
	SDIO0Base = 0x16020000
	CLINTBase = 0x02000000

	// RTCCLK is the CLINT's input reference clock.
	RTCCLK = 4_000_000
)

// SD is the SD/MMC controller instance wired to the external microSD
// card slot.
var SD = dwmmc.NewHost(SDIO0Base, dwmmc.NewMemoryBus(SDIO0Base), &clint.CLINT{
	Base:   CLINTBase,
	RTCCLK: RTCCLK,
})

func init() {
	SD.Log = nil
}
