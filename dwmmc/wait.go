// Bounded register-polling wait helpers
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

import "time"

// Bounded wait horizons (spec.md §4.F). None of these is configurable: a
// fixed card and a fixed controller clock make the same horizons correct
// on every boot.
const (
	cmdLineTimeout   = 255 * time.Millisecond
	cmdDoneTimeout   = 255 * time.Millisecond
	resetTimeout     = 10 * time.Millisecond
	dataLineTimeout  = 5 * time.Second
)

// waitCmdLineIdle blocks until CMD.start_cmd has been cleared by hardware,
// signalling the command FIFO accepted the previous command, or returns a
// WaitCmdLine TimeoutError.
func (h *Host) waitCmdLineIdle() error {
	ok := pollUntil(h.clk(), cmdLineTimeout, func() bool {
		return !getBit(h.readReg(regCMD), cmdStartCmd)
	})
	if !ok {
		return &TimeoutError{Kind: WaitCmdLine}
	}
	return nil
}

// waitDataLineIdle blocks until STATUS.data_busy clears. Per spec.md's
// Open Question resolution, a stalled data line is architecturally
// equivalent to a dead card: the horizon here is generous (dataLineTimeout)
// rather than infinite, but callers should treat its expiry as fatal.
func (h *Host) waitDataLineIdle() error {
	ok := pollUntil(h.clk(), dataLineTimeout, func() bool {
		return !getBit(h.readReg(regSTATUS), statusDataBusy)
	})
	if !ok {
		return &TimeoutError{Kind: WaitDataLine}
	}
	return nil
}

// waitCmdDone blocks until RINTSTS.CMD (command-done) is set, or returns a
// WaitCmdDone TimeoutError.
func (h *Host) waitCmdDone() error {
	ok := pollUntil(h.clk(), cmdDoneTimeout, func() bool {
		return getBit(h.readReg(regRINTSTS), intCMD)
	})
	if !ok {
		return &TimeoutError{Kind: WaitCmdDone}
	}
	return nil
}

// waitResetClear blocks until every reset bit in mask has self-cleared in
// CTRL, or returns a WaitReset TimeoutError.
func (h *Host) waitResetClear(mask uint32) error {
	ok := pollUntil(h.clk(), resetTimeout, func() bool {
		return h.readReg(regCTRL)&mask == 0
	})
	if !ok {
		return &TimeoutError{Kind: WaitReset}
	}
	return nil
}
