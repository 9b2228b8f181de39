// PIO FIFO data-transfer loop tests
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

func patternBuf(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestReadBlock512Happy(t *testing.T) {
	m := &dwmmctest.Mock{}
	m.SetFIFO(patternBuf(blkSizeDefault))
	m.SetReg(regSTATUS, uint32(blkSizeDefault)<<statusFIFOCountPos)
	m.SetReg(regRINTSTS, 1<<intRXDR|1<<intDTO)

	h := newTestHost(m, &dwmmctest.Clock{})

	buf := make([]byte, blkSizeDefault)
	if err := h.readBlock512(buf); err != nil {
		t.Fatalf("readBlock512() error = %v", err)
	}
	for i, b := range buf {
		if b != byte(i) {
			t.Fatalf("buf[%d] = %#x, want %#x", i, b, byte(i))
		}
	}
}

func TestReadBlock512DataCRCError(t *testing.T) {
	m := &dwmmctest.Mock{}
	m.SetReg(regRINTSTS, 1<<intRXDR|1<<intDTO|1<<intDCRC)

	h := newTestHost(m, &dwmmctest.Clock{})

	buf := make([]byte, blkSizeDefault)
	err := h.readBlock512(buf)
	ie, ok := err.(*InterruptError)
	if !ok {
		t.Fatalf("readBlock512() error = %v (%T), want *InterruptError", err, err)
	}
	if ie.Kind != DataCrc {
		t.Fatalf("InterruptError.Kind = %v, want %v", ie.Kind, DataCrc)
	}
}

func TestReadBlock512Watchdog(t *testing.T) {
	m := &dwmmctest.Mock{}
	h := newTestHost(m, &dwmmctest.Clock{Step: 100_000})

	buf := make([]byte, blkSizeDefault)
	err := h.readBlock512(buf)
	if err != ErrDataTransferTimeout {
		t.Fatalf("readBlock512() error = %v, want %v", err, ErrDataTransferTimeout)
	}
}

func TestWriteBlock512Happy(t *testing.T) {
	m := &dwmmctest.Mock{}
	m.SetReg(regSTATUS, 0) // FIFO reports empty -> full room available
	m.SetReg(regRINTSTS, 1<<intTXDR|1<<intDTO)

	h := newTestHost(m, &dwmmctest.Clock{})

	src := patternBuf(blkSizeDefault)
	if err := h.writeBlock512(src); err != nil {
		t.Fatalf("writeBlock512() error = %v", err)
	}

	got := m.FIFO()
	if len(got) != blkSizeDefault {
		t.Fatalf("FIFO() length = %d, want %d", len(got), blkSizeDefault)
	}
	for i, b := range got {
		if b != byte(i) {
			t.Fatalf("FIFO()[%d] = %#x, want %#x", i, b, byte(i))
		}
	}
}
