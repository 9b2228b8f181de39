// Card enumeration sequencer tests
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

import (
	"testing"

	"github.com/usbarmory/dwmmc/dwmmc/dwmmctest"
)

// scriptHappyCard wires m.OnCommand to answer every command Init issues
// during a normal enumeration, completing ACMD41 busy on its first two
// polls and ready on the third (spec.md S1).
func scriptHappyCard(m *dwmmctest.Mock) {
	opCondPolls := 0

	m.OnCommand = func(mock *dwmmctest.Mock, cmdReg, arg uint32) {
		ack := func(resp0, resp1, resp2, resp3 uint32) {
			mock.SetReg(regRESP0, resp0)
			mock.SetReg(regRESP1, resp1)
			mock.SetReg(regRESP2, resp2)
			mock.SetReg(regRESP3, resp3)
			mock.SetReg(regRINTSTS, 1<<intCMD)
			mock.SetReg(regCMD, cmdReg&^(1<<cmdStartCmd))
		}

		switch {
		case getBit(cmdReg, cmdUpdateClockRegsOnly):
			ack(0, 0, 0, 0)
		case getBit(cmdReg, cmdSendInitialization):
			ack(0, 0, 0, 0)
		default:
			switch cmdReg & cmdIndexMask {
			case cmdIdxSendIfCond:
				ack(arg, 0, 0, 0)
			case acmdIdxSDSendOpCond:
				opCondPolls++
				if opCondPolls < 3 {
					ack(0x40ff8000, 0, 0, 0) // busy (bit31 clear)
				} else {
					ack(0xc0ff8000, 0, 0, 0) // ready, high-capacity
				}
			case cmdIdxAllSendCID:
				ack(0, 0, 0, 0x03534400) // manufacturer 0x03, OEM "SD"
			case cmdIdxSendRelativeAddr:
				ack(0xaaaa0000, 0, 0, 0)
			case cmdIdxSendCSD:
				ack(0, 0, 0, 0x40000000) // CSD version 1
			case cmdIdxSelectCard, acmdIdxSetBusWidth, cmdIdxAppCmd:
				ack(uint32(StateTransfer)<<9|1<<8, 0, 0, 0)
			default:
				ack(0, 0, 0, 0)
			}
		}
	}
}

func TestInitHappyPath(t *testing.T) {
	m := &dwmmctest.Mock{}
	scriptHappyCard(m)
	m.SetReg(regCTRL, 0)
	m.SetReg(regSTATUS, 0)

	h := NewHost(0, m, &dwmmctest.Clock{})

	if err := h.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if h.rca != 0xaaaa {
		t.Fatalf("rca = %#04x, want %#04x", h.rca, 0xaaaa)
	}
	if !h.highCapacity {
		t.Fatal("highCapacity = false, want true")
	}
}

func TestInitRejectsWrongEchoPattern(t *testing.T) {
	m := &dwmmctest.Mock{}
	scriptHappyCard(m)
	// Override CMD8 to echo back a mismatched pattern.
	inner := m.OnCommand
	m.OnCommand = func(mock *dwmmctest.Mock, cmdReg, arg uint32) {
		if cmdReg&cmdIndexMask == cmdIdxSendIfCond && !getBit(cmdReg, cmdSendInitialization) {
			mock.SetReg(regRESP0, 0x55)
			mock.SetReg(regRINTSTS, 1<<intCMD)
			mock.SetReg(regCMD, cmdReg&^(1<<cmdStartCmd))
			return
		}
		inner(mock, cmdReg, arg)
	}
	m.SetReg(regCTRL, 0)
	m.SetReg(regSTATUS, 0)

	h := NewHost(0, m, &dwmmctest.Clock{})

	err := h.Init()
	if err != ErrVoltagePattern {
		t.Fatalf("Init() error = %v, want %v", err, ErrVoltagePattern)
	}
}
