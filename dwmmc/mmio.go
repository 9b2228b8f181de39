// Volatile MMIO register and FIFO access
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

import (
	"sync/atomic"
	"unsafe"
)

// Bus abstracts the controller's register file and FIFO window so that the
// command/data engines can run unmodified against either real, volatile
// memory-mapped hardware or an in-memory fake for testing.
//
// All offsets are relative to the controller's base address; Read32/Write32
// operate on the 32-bit word registers (§4.C), ReadFIFOByte/WriteFIFOByte
// on the byte-addressable FIFO window at base+0x200.
type Bus interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, val uint32)
	ReadFIFOByte(offset int) byte
	WriteFIFOByte(offset int, val byte)
}

// memoryBus is the production Bus: every access is a volatile load/store
// against a fixed physical base address, ported from the teacher's
// internal/reg primitives.
type memoryBus struct {
	base uintptr
}

// NewMemoryBus returns a Bus that addresses controller registers and FIFO
// directly at base in physical memory. base is normally the value also
// passed as Host.Base.
func NewMemoryBus(base uint32) Bus {
	return &memoryBus{base: uintptr(base)}
}

func (b *memoryBus) Read32(offset uint32) uint32 {
	addr := (*uint32)(unsafe.Pointer(b.base + uintptr(offset)))
	return atomic.LoadUint32(addr)
}

func (b *memoryBus) Write32(offset uint32, val uint32) {
	addr := (*uint32)(unsafe.Pointer(b.base + uintptr(offset)))
	atomic.StoreUint32(addr, val)
}

func (b *memoryBus) ReadFIFOByte(offset int) byte {
	addr := (*byte)(unsafe.Pointer(b.base + uintptr(fifoOffset) + uintptr(offset)))
	return *addr
}

func (b *memoryBus) WriteFIFOByte(offset int, val byte) {
	addr := (*byte)(unsafe.Pointer(b.base + uintptr(fifoOffset) + uintptr(offset)))
	*addr = val
}
