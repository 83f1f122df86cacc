/*
   x86emu - control flow, stack, and data movement instructions.

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

// condCodes maps the low nibble of a Jcc/SETcc/LOOPcc opcode to a
// condition evaluator over the current flags.
var condCodes = [16]func(c *CPU) bool{
	func(c *CPU) bool { return c.flag(FlagOF) },                              // JO
	func(c *CPU) bool { return !c.flag(FlagOF) },                             // JNO
	func(c *CPU) bool { return c.flag(FlagCF) },                              // JB/JC
	func(c *CPU) bool { return !c.flag(FlagCF) },                             // JNB/JNC
	func(c *CPU) bool { return c.flag(FlagZF) },                              // JZ/JE
	func(c *CPU) bool { return !c.flag(FlagZF) },                             // JNZ/JNE
	func(c *CPU) bool { return c.flag(FlagCF) || c.flag(FlagZF) },            // JBE
	func(c *CPU) bool { return !c.flag(FlagCF) && !c.flag(FlagZF) },          // JA
	func(c *CPU) bool { return c.flag(FlagSF) },                              // JS
	func(c *CPU) bool { return !c.flag(FlagSF) },                             // JNS
	func(c *CPU) bool { return c.flag(FlagPF) },                              // JP/JPE
	func(c *CPU) bool { return !c.flag(FlagPF) },                             // JNP/JPO
	func(c *CPU) bool { return c.flag(FlagSF) != c.flag(FlagOF) },            // JL
	func(c *CPU) bool { return c.flag(FlagSF) == c.flag(FlagOF) },            // JGE
	func(c *CPU) bool { return c.flag(FlagZF) || c.flag(FlagSF) != c.flag(FlagOF) }, // JLE
	func(c *CPU) bool { return !c.flag(FlagZF) && c.flag(FlagSF) == c.flag(FlagOF) }, // JG
}

func (c *CPU) jcc(cc uint8) {
	rel := signExtend8(c.fetchByte())
	if condCodes[cc&0xf](c) {
		c.ip += rel
	}
}

func (c *CPU) loop(kind uint8) {
	rel := signExtend8(c.fetchByte())
	cx := c.Reg16(CX) - 1
	c.SetReg16(CX, cx)
	take := false
	switch kind {
	case 0: // LOOPNE/LOOPNZ
		take = cx != 0 && !c.flag(FlagZF)
	case 1: // LOOPE/LOOPZ
		take = cx != 0 && c.flag(FlagZF)
	case 2: // LOOP
		take = cx != 0
	}
	if take {
		c.ip += rel
	}
}

func (c *CPU) jcxz() {
	rel := signExtend8(c.fetchByte())
	if c.Reg16(CX) == 0 {
		c.ip += rel
	}
}

func (c *CPU) callNear() {
	rel := int16(c.fetchWord())
	c.push(c.ip)
	c.ip = uint16(int32(c.ip) + int32(rel))
}

func (c *CPU) jmpNear() {
	rel := int16(c.fetchWord())
	c.ip = uint16(int32(c.ip) + int32(rel))
}

func (c *CPU) jmpShort() {
	rel := signExtend8(c.fetchByte())
	c.ip += rel
}

// callFar/jmpFar load a new CS:IP from an immediate ptr16:16. Far
// JMP/CALL in protected mode loads CS before flags are updated; that
// ordering is preserved here even though it only matters once IRET
// restores flags afterward.
func (c *CPU) callFar() {
	newIP := c.fetchWord()
	newCS := c.fetchWord()
	c.push(c.sreg[CS])
	c.push(c.ip)
	c.loadSegment(CS, newCS)
	c.ip = newIP
}

func (c *CPU) jmpFar() {
	newIP := c.fetchWord()
	newCS := c.fetchWord()
	c.loadSegment(CS, newCS)
	c.ip = newIP
}

func (c *CPU) retNear(popBytes uint16) {
	c.ip = c.pop()
	c.regs[SP] += popBytes
}

func (c *CPU) retFar(popBytes uint16) {
	newIP := c.pop()
	newCS := c.pop()
	c.loadSegment(CS, newCS)
	c.ip = newIP
	c.regs[SP] += popBytes
}

func (c *CPU) iret() {
	newIP := c.pop()
	newCS := c.pop()
	newFlags := c.pop()
	c.loadSegment(CS, newCS)
	c.ip = newIP
	c.SetFlags(newFlags)
}

func (c *CPU) pushf() { c.push(c.flags) }
func (c *CPU) popf()  { c.SetFlags(c.pop()) }

func (c *CPU) sahf() {
	ah := c.RegHi8(AX)
	c.flags = (c.flags &^ 0xff) | uint16(ah) | flagR1
}

func (c *CPU) lahf() {
	c.SetRegHi8(AX, uint8(c.flags&0xff))
}

// pushSeg/popSeg push/pop a segment register's selector.
func (c *CPU) pushSeg(s int) { c.push(c.sreg[s]) }
func (c *CPU) popSeg(s int)  { c.loadSegment(s, c.pop()) }

// pusha/popa implement the documented 80186 quirk: PUSHA pushes the
// *original* SP (not the post-decrement value), so POPA discards it
// by adding 2 rather than restoring it.
func (c *CPU) pusha() {
	sp := c.Reg16(SP)
	order := [8]int{AX, CX, DX, BX, -1, BP, SI, DI}
	for _, r := range order {
		if r == -1 {
			c.push(sp)
		} else {
			c.push(c.regs[r])
		}
	}
}

func (c *CPU) popa() {
	c.regs[DI] = c.pop()
	c.regs[SI] = c.pop()
	c.regs[BP] = c.pop()
	c.regs[SP] += 2 // discard the saved SP rather than restoring it
	c.regs[BX] = c.pop()
	c.regs[DX] = c.pop()
	c.regs[CX] = c.pop()
	c.regs[AX] = c.pop()
}

// bound implements the 80186 BOUND instruction. §9 open question 3:
// the reference decodes the array-bounds effective address as
// ea>>4 / ea&15 rather than a proper segment:offset pair; preserved.
func (c *CPU) bound() {
	d := c.decodeModRM()
	idx := int16(c.regs[d.reg])
	_, off := c.eaAddr(&d)
	seg := uint32(off >> 4)
	disp := uint32(off & 15)
	phys := seg<<4 + disp
	lower := int16(c.mem.ReadWord(phys))
	upper := int16(c.mem.ReadWord(phys + 2))
	if idx < lower || idx > upper {
		c.interrupt(vecBounds)
	}
}

func (c *CPU) lea() {
	d := c.decodeModRM()
	_, off := c.eaAddr(&d)
	c.regs[d.reg] = off
}

func (c *CPU) loadFarPtr(destSeg int) {
	d := c.decodeModRM()
	seg, off := c.eaAddr(&d)
	c.regs[d.reg] = c.readMem16(seg, off)
	c.loadSegment(destSeg, c.readMem16(seg, off+2))
}

func (c *CPU) xlat() {
	seg := c.dataSeg()
	addr := c.Reg16(BX) + uint16(c.RegLo8(AX))
	c.SetRegLo8(AX, c.readMem8(seg, addr))
}

func (c *CPU) cbw() {
	al := int8(c.RegLo8(AX))
	c.SetReg16(AX, uint16(int16(al)))
}

func (c *CPU) cwd() {
	ax := int16(c.Reg16(AX))
	if ax < 0 {
		c.SetReg16(DX, 0xffff)
	} else {
		c.SetReg16(DX, 0)
	}
}

// enter/leave implement the 80186 stack-frame instructions.
func (c *CPU) enter() {
	size := c.fetchWord()
	level := c.fetchByte() & 0x1f
	c.push(c.regs[BP])
	frameTemp := c.regs[SP]
	bp := c.regs[BP]
	for i := uint8(1); i < level; i++ {
		bp -= 2
		c.push(c.readMem16(SS, bp))
	}
	if level > 0 {
		c.push(frameTemp)
	}
	c.regs[BP] = frameTemp
	c.regs[SP] = frameTemp - size
}

func (c *CPU) leave() {
	c.regs[SP] = c.regs[BP]
	c.regs[BP] = c.pop()
}

func (c *CPU) xchg8(d *decoded) {
	a := c.readByteReg(d.reg)
	b := c.readEA8(d)
	c.writeByteReg(d.reg, b)
	c.writeEA8(d, a)
}

func (c *CPU) xchg16(d *decoded) {
	a := c.regs[d.reg]
	b := c.readEA16(d)
	c.regs[d.reg] = b
	c.writeEA16(d, a)
}

func (c *CPU) movEGb() {
	d := c.decodeModRM()
	c.writeEA8(&d, c.readByteReg(d.reg))
}
func (c *CPU) movGEb() {
	d := c.decodeModRM()
	c.writeByteReg(d.reg, c.readEA8(&d))
}
func (c *CPU) movEGv() {
	d := c.decodeModRM()
	c.writeEA16(&d, c.regs[d.reg])
}
func (c *CPU) movGEv() {
	d := c.decodeModRM()
	c.regs[d.reg] = c.readEA16(&d)
}

func (c *CPU) movEwSw() {
	d := c.decodeModRM()
	c.writeEA16(&d, c.sreg[d.reg&3])
}
func (c *CPU) movSwEw() {
	d := c.decodeModRM()
	c.loadSegment(int(d.reg&3), c.readEA16(&d))
}

func (c *CPU) imulImm(signExtendImm bool) {
	d := c.decodeModRM()
	src := int32(int16(c.readEA16(&d)))
	var imm int32
	if signExtendImm {
		imm = int32(int16(signExtend8(c.fetchByte())))
	} else {
		imm = int32(int16(c.fetchWord()))
	}
	full := src * imm
	c.regs[d.reg] = uint16(full)
	overflow := full != int32(int16(uint16(full)))
	c.setFlag(FlagCF, overflow)
	c.setFlag(FlagOF, overflow)
}
