/*
   x86emu - general register and flag accessors.

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

// Reg16 returns the word value of general register r (one of AX..DI).
func (c *CPU) Reg16(r int) uint16 { return c.regs[r] }

// SetReg16 stores a word value into general register r.
func (c *CPU) SetReg16(r int, v uint16) { c.regs[r] = v }

// RegLo8 returns the low byte of AX/CX/DX/BX (AL/CL/DL/BL).
func (c *CPU) RegLo8(r int) uint8 { return uint8(c.regs[r]) }

// SetRegLo8 stores the low byte of AX/CX/DX/BX, leaving the high byte.
func (c *CPU) SetRegLo8(r int, v uint8) { c.regs[r] = (c.regs[r] &^ 0xff) | uint16(v) }

// RegHi8 returns the high byte of AX/CX/DX/BX (AH/CH/DH/BH).
func (c *CPU) RegHi8(r int) uint8 { return uint8(c.regs[r] >> 8) }

// SetRegHi8 stores the high byte of AX/CX/DX/BX, leaving the low byte.
func (c *CPU) SetRegHi8(r int, v uint8) { c.regs[r] = (c.regs[r] & 0xff) | uint16(v)<<8 }

// byteReg decomposes a ModR/M reg/rm field (0-7) for 8-bit operand forms
// into (register index, isHigh). 0-3 are AL/CL/DL/BL, 4-7 are AH/CH/DH/BH.
func byteReg(f uint8) (idx int, hi bool) {
	return int(f & 3), f >= 4
}

func (c *CPU) readByteReg(f uint8) uint8 {
	idx, hi := byteReg(f)
	if hi {
		return c.RegHi8(idx)
	}
	return c.RegLo8(idx)
}

func (c *CPU) writeByteReg(f uint8, v uint8) {
	idx, hi := byteReg(f)
	if hi {
		c.SetRegHi8(idx, v)
	} else {
		c.SetRegLo8(idx, v)
	}
}

// Seg returns the selector currently loaded in segment register s.
func (c *CPU) Seg(s int) uint16 { return c.sreg[s] }

// IP returns the current instruction pointer.
func (c *CPU) IP() uint16 { return c.ip }

// Flags returns the full 16-bit flags register.
func (c *CPU) Flags() uint16 { return c.flags }

// SetFlags replaces the flags register, preserving the always-one bit.
func (c *CPU) SetFlags(v uint16) { c.flags = v | flagR1 }

func (c *CPU) flag(mask uint16) bool { return c.flags&mask != 0 }

func (c *CPU) setFlag(mask uint16, v bool) {
	if v {
		c.flags |= mask
	} else {
		c.flags &^= mask
	}
}

// MSW returns the machine status word.
func (c *CPU) MSW() uint16 { return c.msw }

// protectedMode reports whether MSW bit 0 (PE) is set.
func (c *CPU) protectedMode() bool { return c.msw&mswPE != 0 }

// cpl returns the current privilege level: the RPL of CS in protected
// mode, 0 (most privileged) in real mode.
func (c *CPU) cpl() uint8 {
	if !c.protectedMode() {
		return 0
	}
	return uint8(c.sreg[CS] & 3)
}

var parityTable [256]bool

func init() {
	for i := 0; i < 256; i++ {
		bits := 0
		for b := i; b != 0; b >>= 1 {
			bits += b & 1
		}
		parityTable[i] = bits%2 == 0
	}
}
