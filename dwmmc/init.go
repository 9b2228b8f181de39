// Card enumeration sequencer
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

import "time"

// postIdleDelay is the settle time after CMD0 before probing the card's
// voltage window (spec.md §4.I step 6). opCondPollDelay is the spacing
// between ACMD41 polls while the card reports it is still powering up
// (spec.md §4.I step 8).
const (
	postIdleDelay   = 10 * time.Millisecond
	opCondPollDelay = 10 * time.Millisecond
)

// cicVoltagePattern and cicCheckPattern are the values CMD8 sends and
// expects echoed back unchanged (spec.md §4.I step 7, PLSS "Physical
// Layer Specification" 4.3.13).
const (
	cicVoltagePattern = 0x1
	cicCheckPattern   = 0xaa
)

// switchFunctionArg is CMD6's fixed argument during init: a PLSS-defined
// function-group switch encoding (0x00FF_FFF1) that selects the default
// function in every group (spec.md §4.I step 13).
const switchFunctionArg = 0x00ff_fff1

// Init takes the card from power-up through the full enumeration sequence
// and leaves it in the transfer state, ready for ReadBlock/WriteBlock
// (spec.md §4.I). It may be called concurrently with itself or with
// ReadBlock/WriteBlock on the same Host; callers do not need their own
// lock because Init takes h's for its duration.
func (h *Host) Init() error {
	h.Lock()
	defer h.Unlock()

	h.initialized = false
	h.rca = 0
	h.highCapacity = false

	// Step 1: HCON is read for diagnostic purposes only; this driver does
	// not branch on its contents (spec.md §4.I step 1).
	h.log().Debug("controller capabilities", "hcon", h.readReg(regHCON))

	if err := h.resetController(); err != nil {
		return err
	}

	h.writeReg(regPWREN, 1)

	if err := h.setClockDivider(identFreqDivider); err != nil {
		return err
	}

	h.writeReg(regTMOUT, 0xffff_ffff)
	h.writeReg(regRINTSTS, intAllMask)
	h.writeReg(regINTMASK, 0)
	h.writeReg(regCTYPE, 1)
	h.writeReg(regBMOD, 1)
	h.writeReg(regBLKSIZ, blkSizeDefault)
	h.writeReg(regBYTCNT, blkSizeDefault)

	if _, err := h.send(cmdGoIdle()); err != nil {
		return err
	}
	delay(h.clk(), postIdleDelay)

	cicResp, err := h.send(cmdSendIfCond(cicVoltagePattern, cicCheckPattern))
	if err != nil {
		return err
	}
	cic := decodeCIC(cicResp.resp0)
	if cic.VoltageAccepted() != cicVoltagePattern || cic.Pattern() != cicCheckPattern {
		return ErrVoltagePattern
	}

	ocr, err := h.sendOpCondUntilReady()
	if err != nil {
		return err
	}
	h.highCapacity = ocr.HighCapacity()

	cidResp, err := h.send(cmdAllSendCID())
	if err != nil {
		return err
	}
	cid := decodeCID(cidResp.resp0, cidResp.resp1, cidResp.resp2, cidResp.resp3)
	h.log().Info("card identified", "manufacturer", cid.ManufacturerID(), "product", cid.ProductName())

	rcaResp, err := h.send(cmdSendRelativeAddress())
	if err != nil {
		return err
	}
	rca := decodeRCA(rcaResp.resp0)
	h.rca = rca.Address()

	csdResp, err := h.send(cmdSendCSD(h.rca))
	if err != nil {
		return err
	}
	csd := decodeCSD(csdResp.resp0, csdResp.resp1, csdResp.resp2, csdResp.resp3)
	h.log().Info("card CSD", "blocks", csd.BlockCount(), "size_bytes", csd.CardSize())

	// CMD7 carries an R1b response (the data line signals busy while the
	// card completes selection), but per spec.md §4.I step 12 this driver
	// does not poll for the busy release before moving on.
	if _, err := h.send(cmdSelectCard(h.rca)); err != nil {
		return err
	}

	// Function-group switch, PLSS-defined encoding; the fixed argument
	// selects the default/no-op function in every group (spec.md §4.I
	// step 13).
	if _, err := h.send(cmdSwitchFunction(switchFunctionArg)); err != nil {
		return err
	}

	if _, err := h.send(cmdAppCmd(h.rca)); err != nil {
		return err
	}
	if _, err := h.send(cmdSetBusWidth(2)); err != nil {
		return err
	}
	h.writeReg(regCTYPE, 1<<ctypeCardWidth4)

	if err := h.setClockDivider(fullFreqDivider); err != nil {
		return err
	}

	h.initialized = true
	return nil
}

// resetController asserts the controller, FIFO and DMA reset bits and
// waits for hardware to self-clear all three (spec.md §4.I step 2).
func (h *Host) resetController() error {
	mask := uint32(1<<ctrlControllerReset | 1<<ctrlFIFOReset | 1<<ctrlDMAReset)
	h.writeReg(regCTRL, mask)
	return h.waitResetClear(mask)
}

// setClockDivider reprograms CLKDIV via the three-phase sequence the
// controller requires: disable the clock, load the new divider and latch
// it with a clock-update-only command, then re-enable the clock and latch
// again (spec.md §4.I steps 4 and 15). Each latch goes through
// updateClockRegisters, not send: a clock-update-only command never
// raises command-done, only command-line idle.
func (h *Host) setClockDivider(div uint32) error {
	h.writeReg(regCLKENA, 0)
	if err := h.updateClockRegisters(); err != nil {
		return err
	}

	h.writeReg(regCLKDIV, div)
	if err := h.updateClockRegisters(); err != nil {
		return err
	}

	h.writeReg(regCLKENA, 1<<clkenaEnable)
	if err := h.updateClockRegisters(); err != nil {
		return err
	}

	return nil
}

// maxOpCondPolls bounds how many ACMD41 round trips Init will issue while
// waiting for the card to leave its busy-powering-up state. A real card
// never needs more than a handful; this guards against a wedged or absent
// card spinning Init forever.
const maxOpCondPolls = 1000

// sendOpCondUntilReady issues CMD55+ACMD41 until the card reports it has
// finished powering up, per spec.md §4.I step 8.
func (h *Host) sendOpCondUntilReady() (OCR, error) {
	for i := 0; i < maxOpCondPolls; i++ {
		if _, err := h.send(cmdAppCmd(0)); err != nil {
			return OCR{}, err
		}

		resp, err := h.send(cmdSDSendOpCond(true, true))
		if err != nil {
			return OCR{}, err
		}

		ocr := decodeOCR(resp.resp0)
		if !ocr.Busy() {
			return ocr, nil
		}
		delay(h.clk(), opCondPollDelay)
	}
	return OCR{}, ErrCardInit
}
