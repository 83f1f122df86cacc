/*
   x86emu - ModR/M reg-field opcode groups: shifts, immediate ALU,
   unary, and INC/DEC/CALL/JMP/PUSH.

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

// aluOp names the eight ALU functions shared by the 0x00-0x3D block,
// the 0x80-0x83 immediate group, and a handful of others.
const (
	aluAdd = iota
	aluOr
	aluAdc
	aluSbb
	aluAnd
	aluSub
	aluXor
	aluCmp
)

func (c *CPU) aluOp8(op uint8, a, b uint8) uint8 {
	switch op {
	case aluAdd:
		return c.add8(a, b, false)
	case aluOr:
		r := a | b
		c.setFlagsLogic(w8, uint32(r))
		return r
	case aluAdc:
		return c.add8(a, b, true)
	case aluSbb:
		return c.sub8(a, b, true)
	case aluAnd:
		r := a & b
		c.setFlagsLogic(w8, uint32(r))
		return r
	case aluSub:
		return c.sub8(a, b, false)
	case aluXor:
		r := a ^ b
		c.setFlagsLogic(w8, uint32(r))
		return r
	case aluCmp:
		c.sub8(a, b, false)
		return a
	}
	return a
}

func (c *CPU) aluOp16(op uint8, a, b uint16) uint16 {
	switch op {
	case aluAdd:
		return c.add16(a, b, false)
	case aluOr:
		r := a | b
		c.setFlagsLogic(w16, uint32(r))
		return r
	case aluAdc:
		return c.add16(a, b, true)
	case aluSbb:
		return c.sub16(a, b, true)
	case aluAnd:
		r := a & b
		c.setFlagsLogic(w16, uint32(r))
		return r
	case aluSub:
		return c.sub16(a, b, false)
	case aluXor:
		r := a ^ b
		c.setFlagsLogic(w16, uint32(r))
		return r
	case aluCmp:
		c.sub16(a, b, false)
		return a
	}
	return a
}

// execAlu dispatches the 0x00-0x3D block: opcode bits 3-5 select the
// ALU function, bits 0-2 select the operand form.
func (c *CPU) execAlu(code uint8) {
	op := (code >> 3) & 7
	form := code & 7
	switch form {
	case 0: // Eb, Gb
		d := c.decodeModRM()
		g := c.readByteReg(d.reg)
		r := c.aluOp8(op, c.readEA8(&d), g)
		if op != aluCmp {
			c.writeEA8(&d, r)
		}
	case 1: // Ev, Gv
		d := c.decodeModRM()
		g := c.regs[d.reg]
		r := c.aluOp16(op, c.readEA16(&d), g)
		if op != aluCmp {
			c.writeEA16(&d, r)
		}
	case 2: // Gb, Eb
		d := c.decodeModRM()
		r := c.aluOp8(op, c.readByteReg(d.reg), c.readEA8(&d))
		if op != aluCmp {
			c.writeByteReg(d.reg, r)
		}
	case 3: // Gv, Ev
		d := c.decodeModRM()
		r := c.aluOp16(op, c.regs[d.reg], c.readEA16(&d))
		if op != aluCmp {
			c.regs[d.reg] = r
		}
	case 4: // AL, Ib
		imm := c.fetchByte()
		r := c.aluOp8(op, c.RegLo8(AX), imm)
		if op != aluCmp {
			c.SetRegLo8(AX, r)
		}
	case 5: // AX, Iv
		imm := c.fetchWord()
		r := c.aluOp16(op, c.Reg16(AX), imm)
		if op != aluCmp {
			c.SetReg16(AX, r)
		}
	}
}

// group1 implements 0x80-0x83: ALU function (ModR/M reg field) applied
// to Eb/Ev and an immediate (ib, iv, or sign-extended ib for 0x83).
func (c *CPU) group1(wide, signExtend bool) {
	d := c.decodeModRM()
	if !wide {
		imm := c.fetchByte()
		r := c.aluOp8(d.reg, c.readEA8(&d), imm)
		if d.reg != aluCmp {
			c.writeEA8(&d, r)
		}
		return
	}
	var imm uint16
	if signExtend {
		imm = signExtend8(c.fetchByte())
	} else {
		imm = c.fetchWord()
	}
	r := c.aluOp16(d.reg, c.readEA16(&d), imm)
	if d.reg != aluCmp {
		c.writeEA16(&d, r)
	}
}

func signExtend8(b uint8) uint16 {
	return uint16(int16(int8(b)))
}

// shift group: 0xD0-0xD3 (count 1 or CL) and 0xC0-0xC1 (immediate
// count). ModR/M reg field selects ROL/ROR/RCL/RCR/SHL/SHR/SHL/SAR
// (reg==6 duplicates SHL).
const (
	shROL = iota
	shROR
	shRCL
	shRCR
	shSHL
	shSHR
	_
	shSAR
)

// Shift-group count sources for the 0xC0/0xC1, 0xD0-0xD3 forms: the
// ModR/M must be decoded before an 0xC0/0xC1 count immediate is
// fetched, so the count source is threaded through as a tag rather
// than a pre-fetched value.
const (
	countOne = iota
	countCL
	countImm8
)

func (c *CPU) shiftGroup8(source int) {
	d := c.decodeModRM()
	count := c.shiftCount(source)
	v := uint32(c.readEA8(&d))
	before := v
	var lastBit uint32
	for i := uint8(0); i < count; i++ {
		v, lastBit = c.shiftStep8(d.reg, v)
	}
	c.applyShiftFlags8(d.reg, w8, before, v, count, lastBit)
	c.writeEA8(&d, uint8(v))
}

func (c *CPU) shiftGroup16(source int) {
	d := c.decodeModRM()
	count := c.shiftCount(source)
	v := uint32(c.readEA16(&d))
	before := v
	var lastBit uint32
	for i := uint8(0); i < count; i++ {
		v, lastBit = c.shiftStep16(d.reg, v)
	}
	c.applyShiftFlags8(d.reg, w16, before, v, count, lastBit)
	c.writeEA16(&d, uint16(v))
}

func (c *CPU) shiftCount(source int) uint8 {
	switch source {
	case countCL:
		return c.RegLo8(CX) & 0x1f
	case countImm8:
		return c.fetchByte() & 0x1f
	default:
		return 1
	}
}

func (c *CPU) shiftStep8(op uint8, v uint32) (uint32, uint32) {
	return c.shiftStep(op, v, w8)
}
func (c *CPU) shiftStep16(op uint8, v uint32) (uint32, uint32) {
	return c.shiftStep(op, v, w16)
}

func (c *CPU) shiftStep(op uint8, v uint32, w width) (uint32, uint32) {
	msb := uint32(w.msb())
	cf := uint32(0)
	if c.flag(FlagCF) {
		cf = 1
	}
	switch op {
	case shROL:
		out := (v & msb) >> (msbShift(w))
		v = ((v << 1) | out) & uint32(w.mask())
		c.setFlag(FlagCF, out != 0)
		return v, out
	case shROR:
		out := v & 1
		v = (v >> 1) | (out << msbShift(w))
		c.setFlag(FlagCF, out != 0)
		return v, out
	case shRCL:
		out := (v & msb) >> msbShift(w)
		v = ((v << 1) | cf) & uint32(w.mask())
		c.setFlag(FlagCF, out != 0)
		return v, out
	case shRCR:
		out := v & 1
		v = (v >> 1) | (cf << msbShift(w))
		c.setFlag(FlagCF, out != 0)
		return v, out
	case shSHL, 6:
		out := (v & msb) >> msbShift(w)
		v = (v << 1) & uint32(w.mask())
		return v, out
	case shSHR:
		out := v & 1
		v = v >> 1
		return v, out
	case shSAR:
		out := v & 1
		sign := v & msb
		v = (v >> 1) | sign
		return v, out
	}
	return v, 0
}

func msbShift(w width) uint32 {
	if w == w8 {
		return 7
	}
	return 15
}

func (c *CPU) applyShiftFlags8(op uint8, w width, before, after uint32, count uint8, lastBit uint32) {
	switch op {
	case shROL:
		if count > 0 {
			c.setFlag(FlagCF, lastBit != 0)
			if count == 1 {
				newMSB := uint32(w.msb())&after != 0
				c.setFlag(FlagOF, (lastBit != 0) != newMSB)
			}
		}
	case shROR:
		if count > 0 {
			c.setFlag(FlagCF, lastBit != 0)
			if count == 1 {
				top1 := uint32(w.msb())&after != 0
				top2 := uint32(w.msb()>>1)&after != 0
				c.setFlag(FlagOF, top1 != top2)
			}
		}
	case shRCL:
		if count > 0 {
			c.setFlag(FlagCF, lastBit != 0)
			c.rclFlags(w, after, count)
		}
	case shRCR:
		if count > 0 {
			c.setFlag(FlagCF, lastBit != 0)
			c.rcrFlags(w, after, count)
		}
	case shSHL, 6:
		c.shlFlags(w, before, after, count, lastBit)
	case shSHR:
		c.shrFlags(w, before, after, count, lastBit)
	case shSAR:
		c.sarFlags(w, before, after, count, lastBit)
	}
}

// unaryGroup implements 0xF6/0xF7: reg field selects TEST(0,1)/NOT(2)/
// NEG(3)/MUL(4)/IMUL(5)/DIV(6)/IDIV(7).
func (c *CPU) unaryGroup8() {
	d := c.decodeModRM()
	switch d.reg {
	case 0, 1:
		imm := c.fetchByte()
		c.setFlagsLogic(w8, uint32(c.readEA8(&d)&imm))
	case 2:
		c.writeEA8(&d, ^c.readEA8(&d))
	case 3:
		v := c.readEA8(&d)
		r := c.sub8(0, v, false)
		c.writeEA8(&d, r)
	case 4:
		c.mulByte(c.readEA8(&d), false)
	case 5:
		c.mulByte(c.readEA8(&d), true)
	case 6:
		c.divByte(c.readEA8(&d), false)
	case 7:
		c.divByte(c.readEA8(&d), true)
	}
}

func (c *CPU) unaryGroup16() {
	d := c.decodeModRM()
	switch d.reg {
	case 0, 1:
		imm := c.fetchWord()
		c.setFlagsLogic(w16, uint32(c.readEA16(&d)&imm))
	case 2:
		c.writeEA16(&d, ^c.readEA16(&d))
	case 3:
		v := c.readEA16(&d)
		r := c.sub16(0, v, false)
		c.writeEA16(&d, r)
	case 4:
		c.mulWord(c.readEA16(&d), false)
	case 5:
		c.mulWord(c.readEA16(&d), true)
	case 6:
		c.divWord(c.readEA16(&d), false)
	case 7:
		c.divWord(c.readEA16(&d), true)
	}
}

// incDecGroup implements 0xFE (INC/DEC Eb, reg 0/1 only) and 0xFF
// (INC/DEC Ev plus CALL/JMP/PUSH near and far, reg 2-6).
func (c *CPU) incDecGroup8() {
	d := c.decodeModRM()
	v := c.readEA8(&d)
	cf := c.flag(FlagCF)
	switch d.reg {
	case 0:
		c.writeEA8(&d, c.add8(v, 1, false))
	case 1:
		c.writeEA8(&d, c.sub8(v, 1, false))
	}
	c.setFlag(FlagCF, cf) // INC/DEC never touch CF
}

func (c *CPU) incDecGroup16() {
	d := c.decodeModRM()
	cf := c.flag(FlagCF)
	switch d.reg {
	case 0:
		v := c.readEA16(&d)
		c.writeEA16(&d, c.add16(v, 1, false))
	case 1:
		v := c.readEA16(&d)
		c.writeEA16(&d, c.sub16(v, 1, false))
	case 2: // CALL near indirect
		target := c.readEA16(&d)
		c.push(c.ip)
		c.ip = target
		return
	case 3: // CALL far indirect
		seg, off := c.eaAddr(&d)
		newIP := c.readMem16(seg, off)
		newCS := c.readMem16(seg, off+2)
		c.push(c.sreg[CS])
		c.push(c.ip)
		c.loadSegment(CS, newCS)
		c.ip = newIP
		return
	case 4: // JMP near indirect
		c.ip = c.readEA16(&d)
		return
	case 5: // JMP far indirect
		seg, off := c.eaAddr(&d)
		newIP := c.readMem16(seg, off)
		newCS := c.readMem16(seg, off+2)
		c.loadSegment(CS, newCS)
		c.ip = newIP
		return
	case 6: // PUSH Ev
		c.push(c.readEA16(&d))
		return
	}
	c.setFlag(FlagCF, cf)
}
