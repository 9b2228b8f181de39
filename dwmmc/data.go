// PIO FIFO data-transfer loop
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

import "time"

// dataWatchdog bounds a single-block PIO transfer: the block must clear
// the FIFO in this long before DTO is expected (spec.md §4.H).
const dataWatchdog = 2 * time.Second

// dataPollDelay is the fixed per-iteration pace of the PIO drain/fill
// loops, per spec.md §4.H step 4.
const dataPollDelay = 10 * time.Microsecond

// dataErrorMask is every RINTSTS bit the PIO loop treats as fatal while
// waiting for DTO, checked in the priority order classifyInterrupt
// implements (spec.md §4.H): EBE, SBE, HLE, FRUN, DRTO, DCRC.
const dataErrorMask = 1<<intEBE | 1<<intSBE | 1<<intHLE | 1<<intFRUN | 1<<intDRTO | 1<<intDCRC

// readBlock512 drains exactly one 512-byte block from the FIFO into buf,
// polling RXDR/DTO and the error bits until the full block has been
// drained and DTO (data-transfer-over) observed, or dataWatchdog expires.
func (h *Host) readBlock512(buf []byte) error {
	if len(buf) != blkSizeDefault {
		panic("dwmmc: readBlock512: buffer must be exactly one block")
	}

	n := 0
	ok := pollUntil(h.clk(), dataWatchdog, func() bool {
		status := h.readReg(regRINTSTS)

		if n >= len(buf) && getBit(status, intDTO) {
			return true
		}
		if status&dataErrorMask != 0 {
			return true
		}

		delay(h.clk(), dataPollDelay)

		// The controller may signal the final sub-watermark bytes with
		// DTO alone, with no accompanying RXDR, so the drain is gated
		// on either bit (spec.md §4.H step 6).
		if getBit(status, intRXDR) || getBit(status, intDTO) {
			for n < len(buf) && h.fifoHasData() {
				buf[n] = h.bus().ReadFIFOByte(n % fifoWindowSize)
				n++
			}
			h.writeReg(regRINTSTS, 1<<intRXDR)
		}

		return false
	})

	status := h.readReg(regRINTSTS)
	h.writeReg(regRINTSTS, intAllMask)

	if err := classifyInterrupt(status); err != nil {
		return err
	}
	if !ok {
		return ErrDataTransferTimeout
	}
	return nil
}

// writeBlock512 pushes exactly one 512-byte block from buf into the FIFO,
// polling TXDR and the error bits until DTO is observed or dataWatchdog
// expires.
func (h *Host) writeBlock512(buf []byte) error {
	if len(buf) != blkSizeDefault {
		panic("dwmmc: writeBlock512: buffer must be exactly one block")
	}

	n := 0
	ok := pollUntil(h.clk(), dataWatchdog, func() bool {
		status := h.readReg(regRINTSTS)

		if n >= len(buf) && getBit(status, intDTO) {
			return true
		}
		if status&dataErrorMask != 0 {
			return true
		}

		delay(h.clk(), dataPollDelay)

		if getBit(status, intTXDR) {
			for n < len(buf) && h.fifoHasRoom() {
				h.bus().WriteFIFOByte(n%fifoWindowSize, buf[n])
				n++
			}
			h.writeReg(regRINTSTS, 1<<intTXDR)
		}

		return false
	})

	status := h.readReg(regRINTSTS)
	h.writeReg(regRINTSTS, intAllMask)

	if err := classifyInterrupt(status); err != nil {
		return err
	}
	if !ok {
		return ErrDataTransferTimeout
	}
	return nil
}

// fifoWindowSize is the FIFO's addressable byte window; single-block
// transfers never need more than this to be outstanding at once given the
// controller drains/fills it between RXDR/TXDR events.
const fifoWindowSize = blkSizeDefault

func (h *Host) fifoCount() uint32 {
	return getBitsN(h.readReg(regSTATUS), statusFIFOCountPos, (1<<statusFIFOCountLen)-1)
}

func (h *Host) fifoHasData() bool {
	return h.fifoCount() > 0
}

func (h *Host) fifoHasRoom() bool {
	return h.fifoCount() < fifoWindowSize
}
