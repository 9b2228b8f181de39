// Single-block PIO read/write operations
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

// blockAddress converts a zero-based block index into the argument
// CMD17/CMD24 expect: a byte address for SDSC cards, the block index
// itself for SDHC/SDXC/SDUC cards (spec.md P4).
func (h *Host) blockAddress(block uint32) uint32 {
	if h.highCapacity {
		return block
	}
	return block * blkSizeDefault
}

// ReadBlock reads the single 512-byte block at the given block index into
// buf, which must be exactly 512 bytes long.
//
// Stop-transmission recovery (CMD12) runs only on the error path, per
// spec.md §4.J: a command-level or data-level failure triggers recovery
// and the call returns CMD12's own result, not the original error (see
// DESIGN.md Open Questions) — the original error is logged, not
// propagated. The success path never issues CMD12 at all.
func (h *Host) ReadBlock(block uint32, buf []byte) (CardStatus, error) {
	h.Lock()
	defer h.Unlock()

	if !h.initialized {
		return CardStatus{}, ErrNotInitialized
	}
	if len(buf) != blkSizeDefault {
		panic("dwmmc: ReadBlock: buf must be exactly one block")
	}

	resp, err := h.send(cmdReadSingleBlock(h.blockAddress(block)))
	if err != nil {
		h.log().Error("CMD17 failed, recovering", "block", block, "err", err)
		return h.stopTransmission()
	}

	readStatus := decodeCardStatus(resp.resp0)
	if readStatus.Error() || readStatus.OutOfRange() {
		h.log().Error("CMD17 reported card error, recovering", "block", block, "status", readStatus)
		return h.stopTransmission()
	}

	if transferErr := h.readBlock512(buf); transferErr != nil {
		h.log().Error("read block failed, recovering", "block", block, "err", transferErr)
		return h.stopTransmission()
	}

	return readStatus, nil
}

// WriteBlock writes buf, which must be exactly 512 bytes long, to the
// single block at the given block index. Recovery follows the same
// error-path-only policy as ReadBlock.
func (h *Host) WriteBlock(block uint32, buf []byte) (CardStatus, error) {
	h.Lock()
	defer h.Unlock()

	if !h.initialized {
		return CardStatus{}, ErrNotInitialized
	}
	if len(buf) != blkSizeDefault {
		panic("dwmmc: WriteBlock: buf must be exactly one block")
	}

	resp, err := h.send(cmdWriteSingleBlock(h.blockAddress(block)))
	if err != nil {
		h.log().Error("CMD24 failed, recovering", "block", block, "err", err)
		return h.stopTransmission()
	}

	writeStatus := decodeCardStatus(resp.resp0)
	if writeStatus.Error() || writeStatus.OutOfRange() {
		h.log().Error("CMD24 reported card error, recovering", "block", block, "status", writeStatus)
		return h.stopTransmission()
	}

	if transferErr := h.writeBlock512(buf); transferErr != nil {
		h.log().Error("write block failed, recovering", "block", block, "err", transferErr)
		return h.stopTransmission()
	}

	return writeStatus, nil
}

// stopTransmission issues CMD12 and waits for the data line to return to
// idle before returning its decoded status.
func (h *Host) stopTransmission() (CardStatus, error) {
	resp, err := h.send(cmdStopTransmission())
	if err != nil {
		return CardStatus{}, err
	}
	status := decodeCardStatus(resp.resp0)

	if err := h.waitDataLineIdle(); err != nil {
		return status, err
	}

	return status, nil
}
