/*
   x86emu - multiply/divide and decimal-adjust instructions.

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

// mulByte implements MUL/IMUL AL,Eb: result into AX. CF/OF are set
// when the upper half is significant (MUL: nonzero; IMUL: not a sign
// extension of the lower half).
func (c *CPU) mulByte(src uint8, signed bool) {
	al := c.RegLo8(AX)
	var result uint16
	var overflow bool
	if signed {
		r := int16(int8(al)) * int16(int8(src))
		result = uint16(r)
		overflow = r != int16(int8(uint8(r)))
	} else {
		result = uint16(al) * uint16(src)
		overflow = result>>8 != 0
	}
	c.SetReg16(AX, result)
	c.setFlag(FlagCF, overflow)
	c.setFlag(FlagOF, overflow)
}

// mulWord implements MUL/IMUL AX,Ev: DX:AX := AX*src.
func (c *CPU) mulWord(src uint16, signed bool) {
	ax := c.Reg16(AX)
	var dx, lo uint16
	var overflow bool
	if signed {
		r := int32(int16(ax)) * int32(int16(src))
		lo = uint16(r)
		dx = uint16(r >> 16)
		overflow = r != int32(int16(lo))
	} else {
		full := uint32(ax) * uint32(src)
		lo = uint16(full)
		dx = uint16(full >> 16)
		overflow = dx != 0
	}
	c.SetReg16(AX, lo)
	c.SetReg16(DX, dx)
	c.setFlag(FlagCF, overflow)
	c.setFlag(FlagOF, overflow)
}

// divByte implements DIV/IDIV Eb: AX / src -> AL quotient, AH
// remainder. Divide-by-zero and quotient overflow both raise vector 0.
func (c *CPU) divByte(src uint8, signed bool) {
	if src == 0 {
		c.interrupt(vecDivide)
		return
	}
	ax := c.Reg16(AX)
	if signed {
		q := int16(ax) / int16(int8(src))
		r := int16(ax) % int16(int8(src))
		if q > 127 || q < -128 {
			c.interrupt(vecDivide)
			return
		}
		c.SetRegLo8(AX, uint8(q))
		c.SetRegHi8(AX, uint8(r))
		return
	}
	q := ax / uint16(src)
	r := ax % uint16(src)
	if q > 0xff {
		c.interrupt(vecDivide)
		return
	}
	c.SetRegLo8(AX, uint8(q))
	c.SetRegHi8(AX, uint8(r))
}

// divWord implements DIV/IDIV Ev: DX:AX / src -> AX quotient, DX remainder.
func (c *CPU) divWord(src uint16, signed bool) {
	if src == 0 {
		c.interrupt(vecDivide)
		return
	}
	dividend := uint32(c.Reg16(DX))<<16 | uint32(c.Reg16(AX))
	if signed {
		sd := int32(int16(c.Reg16(DX)))<<16 | int32(c.Reg16(AX))
		q := sd / int32(int16(src))
		r := sd % int32(int16(src))
		if q > 32767 || q < -32768 {
			c.interrupt(vecDivide)
			return
		}
		c.SetReg16(AX, uint16(q))
		c.SetReg16(DX, uint16(r))
		return
	}
	q := dividend / uint32(src)
	r := dividend % uint32(src)
	if q > 0xffff {
		c.interrupt(vecDivide)
		return
	}
	c.SetReg16(AX, uint16(q))
	c.SetReg16(DX, uint16(r))
}

// daa/das implement DAA/DAS on AL using the standard BCD adjustment.
func (c *CPU) daa() {
	al := c.RegLo8(AX)
	cf := c.flag(FlagCF)
	af := c.flag(FlagAF)
	oldAL := al
	if al&0xf > 9 || af {
		al += 6
		c.setFlag(FlagAF, true)
	} else {
		c.setFlag(FlagAF, false)
	}
	if oldAL > 0x99 || cf {
		al += 0x60
		c.setFlag(FlagCF, true)
	} else {
		c.setFlag(FlagCF, false)
	}
	c.SetRegLo8(AX, al)
	c.setCommonFlags(w8, uint32(al))
}

func (c *CPU) das() {
	al := c.RegLo8(AX)
	cf := c.flag(FlagCF)
	af := c.flag(FlagAF)
	oldAL := al
	if al&0xf > 9 || af {
		al -= 6
		c.setFlag(FlagAF, true)
	} else {
		c.setFlag(FlagAF, false)
	}
	if oldAL > 0x99 || cf {
		al -= 0x60
		c.setFlag(FlagCF, true)
	} else {
		c.setFlag(FlagCF, false)
	}
	c.SetRegLo8(AX, al)
	c.setCommonFlags(w8, uint32(al))
}

func (c *CPU) aaa() {
	al := c.RegLo8(AX)
	if al&0xf > 9 || c.flag(FlagAF) {
		c.SetRegLo8(AX, al+6)
		c.SetRegHi8(AX, c.RegHi8(AX)+1)
		c.setFlag(FlagAF, true)
		c.setFlag(FlagCF, true)
	} else {
		c.setFlag(FlagAF, false)
		c.setFlag(FlagCF, false)
	}
	c.SetRegLo8(AX, c.RegLo8(AX)&0xf)
}

func (c *CPU) aas() {
	al := c.RegLo8(AX)
	if al&0xf > 9 || c.flag(FlagAF) {
		c.SetRegLo8(AX, al-6)
		c.SetRegHi8(AX, c.RegHi8(AX)-1)
		c.setFlag(FlagAF, true)
		c.setFlag(FlagCF, true)
	} else {
		c.setFlag(FlagAF, false)
		c.setFlag(FlagCF, false)
	}
	c.SetRegLo8(AX, c.RegLo8(AX)&0xf)
}

// aam/aad implement the 80186-generalized base-imm8 forms (default 10).
func (c *CPU) aam(base uint8) {
	if base == 0 {
		c.interrupt(vecDivide)
		return
	}
	al := c.RegLo8(AX)
	ah := al / base
	al = al % base
	c.SetRegHi8(AX, ah)
	c.SetRegLo8(AX, al)
	c.setCommonFlags(w8, uint32(al))
}

func (c *CPU) aad(base uint8) {
	al := c.RegLo8(AX)
	ah := c.RegHi8(AX)
	al = al + ah*base
	c.SetRegLo8(AX, al)
	c.SetRegHi8(AX, 0)
	c.setCommonFlags(w8, uint32(al))
}
