// Error taxonomy
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

import (
	"errors"
	"fmt"
)

// TimeoutKind identifies which bounded wait gave up (spec.md §4.F/§7).
type TimeoutKind int

const (
	WaitReset TimeoutKind = iota
	WaitCmdLine
	WaitDataLine
	WaitCmdDone
	// FifoStatus is reserved: no code path in this driver raises it, but
	// the kind is kept so callers matching on TimeoutKind exhaustively
	// don't need a default case that silently swallows a future use.
	FifoStatus
)

func (k TimeoutKind) String() string {
	switch k {
	case WaitReset:
		return "wait-reset"
	case WaitCmdLine:
		return "wait-cmd-line"
	case WaitDataLine:
		return "wait-data-line"
	case WaitCmdDone:
		return "wait-cmd-done"
	case FifoStatus:
		return "fifo-status"
	default:
		return "unknown-timeout"
	}
}

// TimeoutError reports that a bounded poll (§4.F) never observed its
// predicate before its deadline.
type TimeoutError struct {
	Kind TimeoutKind
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("dwmmc: timeout waiting for %s", e.Kind)
}

// InterruptKind classifies a hardware interrupt-status condition raised
// during a command or data transfer (spec.md §7).
type InterruptKind int

const (
	ResponseTimeout InterruptKind = iota
	ResponseErr
	EndBitErr
	StartBitErr
	HardwareLock
	Fifo
	DataReadTimeout
	DataCrc
)

func (k InterruptKind) String() string {
	switch k {
	case ResponseTimeout:
		return "response-timeout"
	case ResponseErr:
		return "response-error"
	case EndBitErr:
		return "end-bit-error"
	case StartBitErr:
		return "start-bit-error"
	case HardwareLock:
		return "hardware-locked-error"
	case Fifo:
		return "fifo-error"
	case DataReadTimeout:
		return "data-read-timeout"
	case DataCrc:
		return "data-crc-error"
	default:
		return "unknown-interrupt"
	}
}

// InterruptError reports a hardware-reported interrupt condition classified
// from RINTSTS.
type InterruptError struct {
	Kind InterruptKind
}

func (e *InterruptError) Error() string {
	return fmt.Sprintf("dwmmc: interrupt error: %s", e.Kind)
}

var (
	// ErrCardInit is reserved for unclassified init-sequence failures.
	ErrCardInit = errors.New("dwmmc: card initialization failed")

	// ErrVoltagePattern is raised when CMD8's echoed voltage/check
	// pattern does not match what was sent (spec.md §4.I step 7).
	ErrVoltagePattern = errors.New("dwmmc: voltage/check pattern mismatch")

	// ErrDataTransferTimeout is raised when the PIO data watchdog
	// expires before DTO is observed.
	ErrDataTransferTimeout = errors.New("dwmmc: data transfer timeout")

	// ErrNotInitialized is raised by ReadBlock/WriteBlock when called
	// before Init has completed successfully.
	ErrNotInitialized = errors.New("dwmmc: card not initialized")
)

// classifyInterrupt maps a RINTSTS snapshot to the highest-priority
// interrupt error present, or nil if mask carries none of the errors this
// driver checks for. Priority, highest first, per spec.md §4.H: EBE > SBE
// > HLE > FRUN > DRTO > DCRC.
func classifyInterrupt(mask uint32) error {
	switch {
	case getBit(mask, intEBE):
		return &InterruptError{Kind: EndBitErr}
	case getBit(mask, intSBE):
		return &InterruptError{Kind: StartBitErr}
	case getBit(mask, intHLE):
		return &InterruptError{Kind: HardwareLock}
	case getBit(mask, intFRUN):
		return &InterruptError{Kind: Fifo}
	case getBit(mask, intDRTO):
		return &InterruptError{Kind: DataReadTimeout}
	case getBit(mask, intDCRC):
		return &InterruptError{Kind: DataCrc}
	default:
		return nil
	}
}
