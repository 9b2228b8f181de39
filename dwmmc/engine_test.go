// Command issuance and response collection tests
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

func newTestHost(bus *dwmmctest.Mock, clk *dwmmctest.Clock) *Host {
	return &Host{Bus: bus, Clock: clk}
}

func TestSendRetriesOnHardwareLock(t *testing.T) {
	m := &dwmmctest.Mock{}
	calls := 0

	m.OnCommand = func(mock *dwmmctest.Mock, cmdReg, arg uint32) {
		calls++
		status := mock.Reg(regRINTSTS)
		status |= 1 << intCMD
		if calls == 1 {
			status |= 1 << intHLE
		} else {
			mock.SetReg(regRESP0, 0xcafefeed)
		}
		mock.SetReg(regRINTSTS, status)
		mock.SetReg(regCMD, cmdReg&^(1<<cmdStartCmd))
	}

	h := newTestHost(m, &dwmmctest.Clock{})

	resp, err := h.send(cmdSelectCard(0xaaaa))
	if err != nil {
		t.Fatalf("send() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("controller issued %d times, want 2 (one retry after HLE)", calls)
	}
	if resp.resp0 != 0xcafefeed {
		t.Fatalf("resp0 = %#x, want %#x", resp.resp0, 0xcafefeed)
	}
}

func TestSendOrdersRintstsClearBeforeCmdArgBeforeCmd(t *testing.T) {
	m := &dwmmctest.Mock{}
	m.OnCommand = func(mock *dwmmctest.Mock, cmdReg, arg uint32) {
		mock.SetReg(regRINTSTS, 1<<intCMD)
		mock.SetReg(regCMD, cmdReg&^(1<<cmdStartCmd))
	}

	h := newTestHost(m, &dwmmctest.Clock{})
	if _, err := h.send(cmdSelectCard(0)); err != nil {
		t.Fatalf("send() error = %v", err)
	}

	var offsets []int
	for _, c := range m.Calls {
		if c.Op != "write32" {
			continue
		}
		switch c.Offset {
		case 0x044, 0x028, 0x02c:
			offsets = append(offsets, c.Offset)
		}
	}

	if len(offsets) < 3 {
		t.Fatalf("expected at least 3 relevant writes, got %d: %v", len(offsets), offsets)
	}
	if offsets[0] != 0x044 || offsets[1] != 0x028 || offsets[2] != 0x02c {
		t.Fatalf("write order = %v, want [RINTSTS(0x044) CMDARG(0x028) CMD(0x02c)]", offsets)
	}
}

func TestClassifyInterruptPriority(t *testing.T) {
	mask := uint32(1<<intDCRC | 1<<intFRUN | 1<<intSBE)

	err := classifyInterrupt(mask)
	ie, ok := err.(*InterruptError)
	if !ok {
		t.Fatalf("classifyInterrupt returned %T, want *InterruptError", err)
	}
	if ie.Kind != StartBitErr {
		t.Fatalf("classifyInterrupt priority = %v, want %v (SBE beats FRUN/DCRC)", ie.Kind, StartBitErr)
	}
}

func TestClassifyInterruptNoError(t *testing.T) {
	if err := classifyInterrupt(1 << intRXDR); err != nil {
		t.Fatalf("classifyInterrupt(RXDR only) = %v, want nil", err)
	}
}

func TestSendRejectsWithoutWaitingOnCmdDoneAfterHLE(t *testing.T) {
	m := &dwmmctest.Mock{}
	m.OnCommand = func(mock *dwmmctest.Mock, cmdReg, arg uint32) {
		mock.SetReg(regRINTSTS, 1<<intHLE)
		mock.SetReg(regCMD, cmdReg&^(1<<cmdStartCmd))
	}

	h := newTestHost(m, &dwmmctest.Clock{Step: 1000})

	_, err := h.send(cmdSelectCard(0))
	ie, ok := err.(*InterruptError)
	if !ok {
		t.Fatalf("send() error = %v (%T), want *InterruptError", err, err)
	}
	if ie.Kind != HardwareLock {
		t.Fatalf("InterruptError.Kind = %v, want %v", ie.Kind, HardwareLock)
	}
}

func TestSendClassifiesResponseErr(t *testing.T) {
	m := &dwmmctest.Mock{}
	m.OnCommand = func(mock *dwmmctest.Mock, cmdReg, arg uint32) {
		mock.SetReg(regRINTSTS, 1<<intCMD|1<<intRE)
		mock.SetReg(regCMD, cmdReg&^(1<<cmdStartCmd))
	}

	h := newTestHost(m, &dwmmctest.Clock{})

	_, err := h.send(cmdSelectCard(0))
	ie, ok := err.(*InterruptError)
	if !ok {
		t.Fatalf("send() error = %v (%T), want *InterruptError", err, err)
	}
	if ie.Kind != ResponseErr {
		t.Fatalf("InterruptError.Kind = %v, want %v", ie.Kind, ResponseErr)
	}
}

func TestSendTimesOutWhenCmdNeverCompletes(t *testing.T) {
	m := &dwmmctest.Mock{}
	h := newTestHost(m, &dwmmctest.Clock{Step: 1000})

	_, err := h.send(cmdSelectCard(0))
	te, ok := err.(*TimeoutError)
	if !ok {
		t.Fatalf("send() error = %v (%T), want *TimeoutError", err, err)
	}
	if te.Kind != WaitCmdDone {
		t.Fatalf("TimeoutError.Kind = %v, want %v", te.Kind, WaitCmdDone)
	}
}
