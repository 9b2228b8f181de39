// In-memory dwmmc.Bus and dwmmc.Clock fakes for testing
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dwmmctest provides a scriptable, in-memory fake of dwmmc.Bus
// and dwmmc.Clock for testing the driver without real hardware.
package dwmmctest

import "sync"

// Mock is an in-memory register file and FIFO standing in for real
// DesignWare-compatible hardware. Its zero value is ready to use; callers
// install command behavior with OnCommand before driving it through
// dwmmc.Host.
type Mock struct {
	mu sync.Mutex

	regs [0x100]uint32
	fifo []byte
	pos  int

	// OnCommand, if set, is invoked every time the CMD register is
	// written with cmd.start_cmd set. It lets a test script RINTSTS,
	// RESPn and the FIFO contents before the driver's poll loops observe
	// them, modeling the controller's asynchronous completion.
	OnCommand func(m *Mock, cmdReg, arg uint32)

	// Calls records every register access in order, for assertions
	// about what a test exercised.
	Calls []Call
}

// Call is one recorded Bus access.
type Call struct {
	Op     string // "read32", "write32", "fifo-read", "fifo-write"
	Offset int
	Value  uint32
}

const regCount = 0x100 / 4

func regIndex(offset uint32) int {
	return int(offset) / 4
}

// Read32 implements dwmmc.Bus.
func (m *Mock) Read32(offset uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := regIndex(offset)
	var v uint32
	if i >= 0 && i < regCount {
		v = m.regs[i]
	}
	m.Calls = append(m.Calls, Call{Op: "read32", Offset: int(offset), Value: v})
	return v
}

// Write32 implements dwmmc.Bus.
func (m *Mock) Write32(offset uint32, val uint32) {
	m.mu.Lock()
	i := regIndex(offset)
	if i >= 0 && i < regCount {
		switch offset {
		case 0x044:
			// RINTSTS is write-1-to-clear on real hardware.
			m.regs[i] &^= val
		case 0x000:
			// CTRL's reset bits (0..2) self-clear quickly on real
			// hardware; this fake has no reset latency to model, so
			// it clears them immediately rather than leaving a test
			// to simulate hardware timing it doesn't care about.
			m.regs[i] = val &^ 0x7
		default:
			m.regs[i] = val
		}
	}
	m.Calls = append(m.Calls, Call{Op: "write32", Offset: int(offset), Value: val})

	cmdWrite := offset == 0x02c && val&(1<<31) != 0
	var arg uint32
	if cmdWrite {
		arg = m.regs[regIndex(0x028)]
	}
	hook := m.OnCommand
	m.mu.Unlock()

	if cmdWrite && hook != nil {
		hook(m, val, arg)
	}
}

// ReadFIFOByte implements dwmmc.Bus.
func (m *Mock) ReadFIFOByte(offset int) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset < 0 || offset >= len(m.fifo) {
		return 0
	}
	b := m.fifo[offset]
	m.Calls = append(m.Calls, Call{Op: "fifo-read", Offset: offset, Value: uint32(b)})
	return b
}

// WriteFIFOByte implements dwmmc.Bus.
func (m *Mock) WriteFIFOByte(offset int, val byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.fifo) <= offset {
		m.fifo = append(m.fifo, 0)
	}
	m.fifo[offset] = val
	m.Calls = append(m.Calls, Call{Op: "fifo-write", Offset: offset, Value: uint32(val)})
}

// SetReg directly sets a register's value, bypassing Write32's
// write-1-to-clear handling for RINTSTS. Tests use this to seed
// controller state before a command runs.
func (m *Mock) SetReg(offset uint32, val uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := regIndex(offset)
	if i >= 0 && i < regCount {
		m.regs[i] = val
	}
}

// Reg returns a register's current value.
func (m *Mock) Reg(offset uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[regIndex(offset)]
}

// SetFIFO loads the FIFO window's backing contents, for read-path tests.
func (m *Mock) SetFIFO(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fifo = append([]byte(nil), data...)
}

// FIFO returns the FIFO window's current backing contents, for
// write-path assertions.
func (m *Mock) FIFO() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.fifo...)
}

// Clock is a deterministic fake dwmmc.Clock: each call to Ticks advances
// the counter by Step, so a bounded poll loop that calls Ticks N times
// without its predicate succeeding always reaches its deadline in finite,
// reproducible steps.
type Clock struct {
	mu    sync.Mutex
	ticks uint64
	// Step is how far Ticks advances the counter on every call. Defaults
	// to 1 if zero.
	Step uint64
	// Rate is returned by TicksPerMicrosecond. Defaults to 1 if zero.
	Rate uint64
}

func (c *Clock) Ticks() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	step := c.Step
	if step == 0 {
		step = 1
	}
	c.ticks += step
	return c.ticks
}

func (c *Clock) TicksPerMicrosecond() uint64 {
	if c.Rate == 0 {
		return 1
	}
	return c.Rate
}
