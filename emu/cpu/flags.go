/*
   x86emu - flag engine.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

package cpu

// width carries the bit width an ALU op is operating at, so the flag
// engine can locate the sign bit and the above-width carry-out bit
// without the caller repeating masks everywhere.
type width uint8

const (
	w8  width = 8
	w16 width = 16
)

func (w width) msb() uint16 {
	if w == w8 {
		return 0x80
	}
	return 0x8000
}

func (w width) mask() uint32 {
	if w == w8 {
		return 0xff
	}
	return 0xffff
}

// setFlagsAdd updates Z/S/P/C/A/O after dst = a + b (+carryIn), per
// §4.3: C is any bit set above the operand width, A is the nibble
// carry, O is computed from the sign bits of operands and result.
func (c *CPU) setFlagsAdd(w width, a, b uint32, carryIn uint32, full uint32) {
	dst := full & w.mask()
	c.setFlag(FlagCF, full&^w.mask() != 0 || full > w.mask())
	c.setCommonFlags(w, dst)
	c.setFlag(FlagAF, ((a^b^dst)>>4)&1 != 0)
	msb := w.msb()
	c.setFlag(FlagOF, (uint32(msb)&(dst^a)&(dst^b)) != 0)
	_ = carryIn
}

// setFlagsSub updates flags after dst = a - b (-borrowIn); C is the
// borrow out, O compares the sign of the minuend against both the
// subtrahend and the result.
func (c *CPU) setFlagsSub(w width, a, b uint32, full uint32) {
	dst := full & w.mask()
	c.setFlag(FlagCF, b > a)
	c.setCommonFlags(w, dst)
	c.setFlag(FlagAF, ((a^b^dst)>>4)&1 != 0)
	msb := w.msb()
	c.setFlag(FlagOF, (uint32(msb)&(dst^a)&(a^b)) != 0)
}

// setFlagsLogic updates flags after AND/OR/XOR/TEST: C and O are
// cleared, Z/S/P come from the result.
func (c *CPU) setFlagsLogic(w width, dst uint32) {
	c.setFlag(FlagCF, false)
	c.setFlag(FlagOF, false)
	c.setCommonFlags(w, dst&w.mask())
	c.setFlag(FlagAF, false)
}

// setCommonFlags sets Z, S and P from a result already masked to width w.
func (c *CPU) setCommonFlags(w width, dst uint32) {
	c.setFlag(FlagZF, dst == 0)
	c.setFlag(FlagSF, uint32(w.msb())&dst != 0)
	c.setFlag(FlagPF, parityTable[dst&0xff])
}

func addFull(a, b uint32, carryIn uint32) uint32 { return a + b + carryIn }
func subFull(a, b uint32, borrowIn uint32) uint32 {
	return uint32(int64(a) - int64(b) - int64(borrowIn))
}

// add8/add16/sub8/sub16 perform the arithmetic, update flags, and
// return the masked result — the shared core the ALU opcode table
// dispatches into for ADD/ADC/SUB/SBB/CMP.
func (c *CPU) add8(a, b uint8, withCarry bool) uint8 {
	carry := uint32(0)
	if withCarry && c.flag(FlagCF) {
		carry = 1
	}
	full := addFull(uint32(a), uint32(b), carry)
	c.setFlagsAdd(w8, uint32(a), uint32(b), carry, full)
	return uint8(full)
}

func (c *CPU) add16(a, b uint16, withCarry bool) uint16 {
	carry := uint32(0)
	if withCarry && c.flag(FlagCF) {
		carry = 1
	}
	full := addFull(uint32(a), uint32(b), carry)
	c.setFlagsAdd(w16, uint32(a), uint32(b), carry, full)
	return uint16(full)
}

func (c *CPU) sub8(a, b uint8, withBorrow bool) uint8 {
	borrow := uint32(0)
	if withBorrow && c.flag(FlagCF) {
		borrow = 1
	}
	full := subFull(uint32(a), uint32(b), borrow)
	c.setFlagsSub(w8, uint32(a), uint32(b)+borrow, full)
	return uint8(full)
}

func (c *CPU) sub16(a, b uint16, withBorrow bool) uint16 {
	borrow := uint32(0)
	if withBorrow && c.flag(FlagCF) {
		borrow = 1
	}
	full := subFull(uint32(a), uint32(b), borrow)
	c.setFlagsSub(w16, uint32(a), uint32(b)+borrow, full)
	return uint16(full)
}

// shlFlags/shrFlags/sarFlags apply the per-sub-opcode edge rules of
// §4.3 for the shift/rotate group. count is the already 5-bit-masked
// shift amount.
func (c *CPU) shlFlags(w width, before, after uint32, count uint8, lastBit uint32) {
	if count == 0 {
		return
	}
	c.setFlag(FlagCF, lastBit != 0)
	c.setCommonFlags(w, after&w.mask())
	if count == 1 {
		newMSB := uint32(w.msb())&after != 0
		c.setFlag(FlagOF, (lastBit != 0) != newMSB)
	}
}

func (c *CPU) shrFlags(w width, before, after uint32, count uint8, lastBit uint32) {
	if count == 0 {
		return
	}
	c.setFlag(FlagCF, lastBit != 0)
	c.setCommonFlags(w, after&w.mask())
	if count == 1 {
		c.setFlag(FlagOF, uint32(w.msb())&before != 0)
	}
}

func (c *CPU) sarFlags(w width, before, after uint32, count uint8, lastBit uint32) {
	if count == 0 {
		return
	}
	c.setFlag(FlagCF, lastBit != 0)
	c.setCommonFlags(w, after&w.mask())
	if count == 1 {
		c.setFlag(FlagOF, false)
	}
}

// rclFlags/rcrFlags compute OF for the single-bit rotate-through-carry
// forms per §4.3: RCL's OF is CF XOR new-MSB; RCR's OF is the XOR of
// the two top result bits.
func (c *CPU) rclFlags(w width, after uint32, count uint8) {
	if count == 1 {
		newMSB := uint32(w.msb())&after != 0
		c.setFlag(FlagOF, c.flag(FlagCF) != newMSB)
	}
}

func (c *CPU) rcrFlags(w width, after uint32, count uint8) {
	if count == 1 {
		top1 := uint32(w.msb())&after != 0
		top2 := uint32(w.msb()>>1)&after != 0
		c.setFlag(FlagOF, top1 != top2)
	}
}
