// Command issuance and response collection
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

// response carries back whatever the controller latched in RESP0..RESP3
// for a completed command, interpreted according to the command's
// responseKind.
type response struct {
	kind    responseKind
	resp0   uint32
	resp1   uint32
	resp2   uint32
	resp3   uint32
}

// maxHardwareLockRetries bounds the retry loop send runs when the
// controller reports a hardware-locked-error (HLE) on CMD.start_cmd.
// Per spec.md's Open Question resolution, HLE is treated as a transient
// arbitration loss against the command FIFO rather than a fatal fault,
// but the retry is capped rather than unbounded so a genuinely wedged
// controller still surfaces an error.
const maxHardwareLockRetries = 8

// send issues cmd against the controller and returns its response, or the
// first error encountered. It implements the seven-step command protocol
// from spec.md §4.G:
//
//  1. wait for the data line, then the command line, to go idle
//  2. clear sticky RINTSTS bits
//  3. program CMDARG
//  4. write CMD (this starts the command); read RINTSTS once, retrying
//     from step 1 if the controller reports HLE
//  5. wait for command-done
//  6. classify any interrupt-status error bits, including response-level
//     RTO/RE
//  7. read back the response registers, if one is expected, and for a
//     data command reset the FIFO and program BLKSIZ/BYTCNT for one block
func (h *Host) send(cmd command) (response, error) {
	var resp response

	for attempt := 0; ; attempt++ {
		if err := h.waitDataLineIdle(); err != nil {
			return resp, err
		}
		if err := h.waitCmdLineIdle(); err != nil {
			return resp, err
		}

		h.writeReg(regRINTSTS, intAllMask)
		h.writeReg(regCMDARG, cmd.arg)
		h.writeReg(regCMD, cmd.cmdRegisterValue())

		// Step 4: a single read, not a poll. HLE means the controller
		// rejected the write outright and CMD-done may never arrive for
		// it, so this must be checked before waiting on it.
		if getBit(h.readReg(regRINTSTS), intHLE) {
			h.writeReg(regRINTSTS, 1<<intHLE)
			if attempt < maxHardwareLockRetries {
				continue
			}
			return resp, &InterruptError{Kind: HardwareLock}
		}

		if err := h.waitCmdDone(); err != nil {
			return resp, err
		}

		status := h.readReg(regRINTSTS)

		if err := classifyInterrupt(status); err != nil {
			return resp, err
		}

		if cmd.responseExpected() {
			if getBit(status, intRTO) {
				h.writeReg(regRINTSTS, 1<<intRTO)
				return resp, &InterruptError{Kind: ResponseTimeout}
			}
			if getBit(status, intRE) {
				h.writeReg(regRINTSTS, 1<<intRE)
				return resp, &InterruptError{Kind: ResponseErr}
			}
		}

		break
	}

	if !cmd.responseExpected() {
		resp.kind = respNone
		return resp, nil
	}

	resp.kind = cmd.resp
	resp.resp0 = h.readReg(regRESP0)
	if cmd.longResponse() {
		resp.resp1 = h.readReg(regRESP1)
		resp.resp2 = h.readReg(regRESP2)
		resp.resp3 = h.readReg(regRESP3)
	}

	if cmd.dataExpected() {
		h.writeReg(regCTRL, 1<<ctrlFIFOReset)
		if err := h.waitResetClear(1 << ctrlFIFOReset); err != nil {
			return resp, err
		}
		h.writeReg(regBLKSIZ, blkSizeDefault)
		h.writeReg(regBYTCNT, blkSizeDefault)
	}

	return resp, nil
}

// updateClockRegisters issues a clock-update-only command (CMD with
// update_clock_registers_only set) directly against the controller,
// bypassing send: this command family never raises the command-done
// interrupt (RINTSTS.cmd), so waiting on it would hang forever. The
// controller only signals completion by idling CMD.start_cmd back out,
// per spec.md §4.I step 4; original_source/src/sd/ops.rs's reset_clock
// does the same — it writes CMD directly and calls only wait_for_cmd_line,
// never send_cmd.
func (h *Host) updateClockRegisters() error {
	cmd := cmdUpdateClock()

	h.writeReg(regRINTSTS, intAllMask)
	h.writeReg(regCMDARG, cmd.arg)
	h.writeReg(regCMD, cmd.cmdRegisterValue())

	return h.waitCmdLineIdle()
}

func (h *Host) readReg(offset uint32) uint32 {
	return h.bus().Read32(offset)
}

func (h *Host) writeReg(offset uint32, v uint32) {
	h.bus().Write32(offset, v)
}
