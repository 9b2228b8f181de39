// Typed response register decoders
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dwmmc

import "fmt"

// OCR is the card's Operation Conditions Register, returned by ACMD41.
type OCR struct {
	raw uint32
}

func decodeOCR(raw uint32) OCR {
	return OCR{raw: raw}
}

// Busy reports whether the card is still powering up (bit 31 clear means
// busy).
func (o OCR) Busy() bool {
	return o.raw&0x8000_0000 == 0
}

// HighCapacity reports the card capacity status (CCS, bit 30): true means
// SDHC/SDXC/SDUC, false means SDSC.
func (o OCR) HighCapacity() bool {
	return o.raw&0x4000_0000 != 0
}

// UHS2 reports the UHS-II card status (bit 29). Unused beyond logging:
// this driver never negotiates UHS-II (spec.md §1 non-goal).
func (o OCR) UHS2() bool {
	return o.raw&0x2000_0000 != 0
}

// Over2TB reports the SDUC over-2TB flag (bit 27).
func (o OCR) Over2TB() bool {
	return o.raw&0x0800_0000 != 0
}

// S18Allowed reports whether the card can switch to 1.8V signaling
// (bit 24). This driver never performs the switch (spec.md §1 non-goal);
// the bit is surfaced only for logging.
func (o OCR) S18Allowed() bool {
	return o.raw&0x0100_0000 != 0
}

// VoltageWindowMv returns the card's supported VDD window in millivolts,
// derived from bits 15..24, or false if the window is empty.
func (o OCR) VoltageWindowMv() (min, max uint16, ok bool) {
	window := (o.raw >> 15) & 0x1ff
	min = 2700

	for window&1 == 0 && window != 0 {
		min += 100
		window >>= 1
	}

	max = min
	for window != 0 {
		max += 100
		window >>= 1
	}

	if max == min {
		return 0, 0, false
	}
	return min, max, true
}

// CIC is the response to CMD8: the echoed voltage supply flag and check
// pattern.
type CIC struct {
	raw uint32
}

func decodeCIC(raw uint32) CIC {
	return CIC{raw: raw}
}

// VoltageAccepted returns the echoed voltage-supply nibble (bits 8..12).
func (c CIC) VoltageAccepted() uint8 {
	return uint8(c.raw>>8) & 0xf
}

// Pattern returns the echoed check pattern (bits 0..8).
func (c CIC) Pattern() uint8 {
	return uint8(c.raw)
}

// RCA is the response to CMD3: the card's assigned relative address and
// its status bits.
type RCA struct {
	raw uint32
}

func decodeRCA(raw uint32) RCA {
	return RCA{raw: raw}
}

// Address returns the card-assigned 16-bit relative address.
func (r RCA) Address() uint16 {
	return uint16(r.raw >> 16)
}

// Status returns the lower 16 status bits that accompany CMD3's response.
func (r RCA) Status() uint16 {
	return uint16(r.raw)
}

// CurrentState is the card's CURRENT_STATE field, decoded from
// CardStatus (spec.md §3, bits 9..13).
type CurrentState uint8

const (
	StateReady          CurrentState = 1
	StateIdentification CurrentState = 2
	StateStandby        CurrentState = 3
	StateTransfer       CurrentState = 4
	StateSending        CurrentState = 5
	StateReceiving      CurrentState = 6
	StateProgramming    CurrentState = 7
	StateDisconnected   CurrentState = 8
	StateBusTest        CurrentState = 9
	StateSleep          CurrentState = 10
	StateError          CurrentState = 128
)

func decodeCurrentState(n uint8) CurrentState {
	switch n {
	case 1, 2, 3, 4, 5, 6, 7, 8, 9, 10:
		return CurrentState(n)
	default:
		return StateError
	}
}

func (s CurrentState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateIdentification:
		return "identification"
	case StateStandby:
		return "standby"
	case StateTransfer:
		return "transfer"
	case StateSending:
		return "sending"
	case StateReceiving:
		return "receiving"
	case StateProgramming:
		return "programming"
	case StateDisconnected:
		return "disconnected"
	case StateBusTest:
		return "bus-test"
	case StateSleep:
		return "sleep"
	default:
		return "error"
	}
}

// CardStatus is the card's response status word, returned alongside most
// R1/R1b responses (spec.md §3).
type CardStatus struct {
	raw uint32
}

func decodeCardStatus(raw uint32) CardStatus {
	return CardStatus{raw: raw}
}

func (s CardStatus) bit(pos uint) bool {
	return s.raw&(1<<pos) != 0
}

func (s CardStatus) OutOfRange() bool       { return s.bit(31) }
func (s CardStatus) AddressError() bool     { return s.bit(30) }
func (s CardStatus) BlockLenError() bool    { return s.bit(29) }
func (s CardStatus) EraseSeqError() bool    { return s.bit(28) }
func (s CardStatus) EraseParam() bool       { return s.bit(27) }
func (s CardStatus) WPViolation() bool      { return s.bit(26) }
func (s CardStatus) CardIsLocked() bool     { return s.bit(25) }
func (s CardStatus) LockUnlockFailed() bool { return s.bit(24) }
func (s CardStatus) ComCRCError() bool      { return s.bit(23) }
func (s CardStatus) IllegalCommand() bool   { return s.bit(22) }
func (s CardStatus) CardECCFailed() bool    { return s.bit(21) }
func (s CardStatus) CCError() bool          { return s.bit(20) }
func (s CardStatus) Error() bool            { return s.bit(19) }
func (s CardStatus) CSDOverwrite() bool     { return s.bit(16) }
func (s CardStatus) WPEraseSkip() bool      { return s.bit(15) }
func (s CardStatus) ECCDisabled() bool      { return s.bit(14) }
func (s CardStatus) EraseReset() bool       { return s.bit(13) }
func (s CardStatus) ReadyForData() bool     { return s.bit(8) }
func (s CardStatus) AppCmd() bool           { return s.bit(5) }
func (s CardStatus) FXEvent() bool          { return s.bit(6) }
func (s CardStatus) AKESeqError() bool      { return s.bit(3) }

// State returns the card's CURRENT_STATE field (bits 9..13).
func (s CardStatus) State() CurrentState {
	return decodeCurrentState(uint8(getBitsN(s.raw, 9, 0xf)))
}

func (s CardStatus) String() string {
	return fmt.Sprintf("card status: state=%s ready=%t error=%t illegal_cmd=%t",
		s.State(), s.ReadyForData(), s.Error(), s.IllegalCommand())
}

// CID is the card's 128-bit identification register, composed
// LSW-first from the four response words (spec.md §3/P3).
type CID struct {
	bytes [16]byte
}

func decodeCID(w0, w1, w2, w3 uint32) CID {
	var inner [16]byte
	// big-endian serialization of w3<<96 | w2<<64 | w1<<32 | w0
	put32be(inner[0:4], w3)
	put32be(inner[4:8], w2)
	put32be(inner[8:12], w1)
	put32be(inner[12:16], w0)
	return CID{bytes: inner}
}

func put32be(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

// Bytes returns the CID's 16-byte big-endian serialization.
func (c CID) Bytes() [16]byte {
	return c.bytes
}

func (c CID) ManufacturerID() uint8 {
	return c.bytes[0]
}

func (c CID) OEMID() string {
	return string(c.bytes[1:3])
}

func (c CID) ProductName() string {
	return string(c.bytes[3:8])
}

func (c CID) ProductRevision() uint8 {
	return c.bytes[8]
}

// Serial returns the card's 32-bit product serial number (bytes 9..13).
func (c CID) Serial() uint32 {
	return uint32(c.bytes[9])<<24 | uint32(c.bytes[10])<<16 | uint32(c.bytes[11])<<8 | uint32(c.bytes[12])
}

// ManufacturingDate returns (month, year) decoded from bytes 13..15.
func (c CID) ManufacturingDate() (month uint8, year uint16) {
	month = c.bytes[14] & 0xf
	year = uint16(c.bytes[13]&0xf)<<4 | uint16(c.bytes[14]>>4)
	year += 2000
	return
}

func (c CID) String() string {
	month, year := c.ManufacturingDate()
	return fmt.Sprintf("CID: manufacturer=%#02x oem=%q product=%q rev=%d serial=%#x date=%d/%d",
		c.ManufacturerID(), c.OEMID(), c.ProductName(), c.ProductRevision(), c.Serial(), month, year)
}

// BlockLength is the CSD's READ_BL_LEN/WRITE_BL_LEN field, expressed as a
// power-of-two exponent.
type BlockLength uint8

// Bytes returns 2^n bytes for a BlockLength of n.
func (b BlockLength) Bytes() uint64 {
	return uint64(1) << uint(b)
}

// CurrentConsumption is one of the discrete VDD current draw classes the
// CSD expresses for read/write, minimum/maximum current.
//
// from_minimum_reg/from_maximum_reg preserve the original driver's mapping
// verbatim, including that from_minimum_reg never produces I_45mA (reg
// value 6 maps to I_60mA there, while the same raw value maps to I_80mA
// under from_maximum_reg) — see DESIGN.md Open Questions.
type CurrentConsumption uint32

const (
	I0mA   CurrentConsumption = 0
	I1mA   CurrentConsumption = 1
	I5mA   CurrentConsumption = 5
	I10mA  CurrentConsumption = 10
	I25mA  CurrentConsumption = 25
	I35mA  CurrentConsumption = 35
	I45mA  CurrentConsumption = 45
	I60mA  CurrentConsumption = 60
	I80mA  CurrentConsumption = 80
	I100mA CurrentConsumption = 100
	I200mA CurrentConsumption = 200
)

func currentFromMinimumReg(reg uint8) CurrentConsumption {
	switch reg & 0x7 {
	case 0:
		return I0mA
	case 1:
		return I1mA
	case 2:
		return I5mA
	case 3:
		return I10mA
	case 4:
		return I25mA
	case 5:
		return I35mA
	case 6:
		return I60mA
	default:
		return I100mA
	}
}

func currentFromMaximumReg(reg uint8) CurrentConsumption {
	switch reg & 0x7 {
	case 0:
		return I1mA
	case 1:
		return I5mA
	case 2:
		return I10mA
	case 3:
		return I25mA
	case 4:
		return I35mA
	case 5:
		return I45mA
	case 6:
		return I80mA
	default:
		return I200mA
	}
}

// CSD is the card's 128-bit Card Specific Data register, composed
// LSW-first from the four response words.
type CSD struct {
	bytes [16]byte
}

func decodeCSD(w0, w1, w2, w3 uint32) CSD {
	var inner [16]byte
	put32be(inner[0:4], w3)
	put32be(inner[4:8], w2)
	put32be(inner[8:12], w1)
	put32be(inner[12:16], w0)
	return CSD{bytes: inner}
}

func (c CSD) bits128() (hi, lo uint64) {
	hi = beUint64(c.bytes[0:8])
	lo = beUint64(c.bytes[8:16])
	return
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// field extracts the length-bit field starting at bit start (bit 0 is the
// LSB of lo) from the 128-bit value represented as hi:lo, handling fields
// that straddle the 64-bit boundary between the two halves.
func field(hi, lo uint64, start, length int) uint64 {
	mask := uint64(1)<<uint(length) - 1

	if start >= 64 {
		return (hi >> uint(start-64)) & mask
	}
	if start+length <= 64 {
		return (lo >> uint(start)) & mask
	}

	lowWidth := 64 - start
	lowPart := lo >> uint(start)
	highPart := hi & (uint64(1)<<uint(length-lowWidth) - 1)
	return lowPart | (highPart << uint(lowWidth))
}

// Version returns the CSD structure version: 0 (SDSC), 1 (SDHC/SDXC) or
// 2 (SDUC).
func (c CSD) Version() uint8 {
	hi, lo := c.bits128()
	return uint8(field(hi, lo, 126, 2))
}

// TransferRate returns the raw TRAN_SPEED byte.
func (c CSD) TransferRate() uint8 {
	hi, lo := c.bits128()
	return uint8(field(hi, lo, 96, 8))
}

// BlockLength returns the READ_BL_LEN field.
func (c CSD) BlockLength() BlockLength {
	hi, lo := c.bits128()
	return BlockLength(field(hi, lo, 80, 4))
}

func (c CSD) ReadCurrentMinimumVdd() CurrentConsumption {
	hi, lo := c.bits128()
	return currentFromMinimumReg(uint8(field(hi, lo, 59, 3)))
}

func (c CSD) WriteCurrentMinimumVdd() CurrentConsumption {
	hi, lo := c.bits128()
	return currentFromMinimumReg(uint8(field(hi, lo, 56, 3)))
}

func (c CSD) ReadCurrentMaximumVdd() CurrentConsumption {
	hi, lo := c.bits128()
	return currentFromMaximumReg(uint8(field(hi, lo, 53, 3)))
}

func (c CSD) WriteCurrentMaximumVdd() CurrentConsumption {
	hi, lo := c.bits128()
	return currentFromMaximumReg(uint8(field(hi, lo, 50, 3)))
}

// BlockCount returns the number of BlockLength()-sized blocks the card
// holds, per the version-dependent C_SIZE encoding (spec.md P5).
func (c CSD) BlockCount() uint64 {
	hi, lo := c.bits128()
	switch c.Version() {
	case 0:
		// SDSC: C_SIZE spans bits 62..73, C_SIZE_MULT spans 47..49.
		cSize := field(hi, lo, 62, 12)
		cSizeMult := field(hi, lo, 47, 3)
		return (cSize + 1) * (1 << (cSizeMult + 2))
	case 1:
		// SDHC/SDXC: C_SIZE spans bits 48..69.
		cSize := field(hi, lo, 48, 22)
		return (cSize + 1) * 1024
	case 2:
		// SDUC: C_SIZE spans bits 48..75.
		cSize := field(hi, lo, 48, 28)
		return (cSize + 1) * 1024
	default:
		return 0
	}
}

// CardSize returns the card's total capacity in bytes.
func (c CSD) CardSize() uint64 {
	return c.BlockCount() * c.BlockLength().Bytes()
}

// EraseSizeBlocks returns the erase sector size in write blocks.
func (c CSD) EraseSizeBlocks() uint32 {
	hi, lo := c.bits128()
	if field(hi, lo, 46, 1) == 1 {
		return 1
	}
	sectorSizeTens := uint32(field(hi, lo, 43, 3))
	sectorSizeUnits := uint32(field(hi, lo, 39, 4))
	return sectorSizeTens*10 + sectorSizeUnits
}
