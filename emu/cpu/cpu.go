/*
   x86emu - fetch/dispatch loop and the main opcode table.

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

type opFunc func(c *CPU)

// opcodeTable is the 256-entry dispatch table keyed by the first
// non-prefix opcode byte. Built once in createTable; entries needing
// an immediate parameter (which ALU function, which condition code)
// are small closures over that constant rather than separate methods.
var opcodeTable [256]opFunc

func init() {
	opcodeTable = createTable()
}

func createTable() [256]opFunc {
	var t [256]opFunc

	for i := 0; i < 0x40; i++ {
		code := uint8(i)
		if code&7 <= 5 {
			t[i] = func(c *CPU) { c.execAlu(code) }
		}
	}
	// segment push/pop interleaved in the ALU block's unused rows.
	t[0x06] = func(c *CPU) { c.pushSeg(ES) }
	t[0x07] = func(c *CPU) { c.popSeg(ES) }
	t[0x0e] = func(c *CPU) { c.pushSeg(CS) }
	t[0x16] = func(c *CPU) { c.pushSeg(SS) }
	t[0x17] = func(c *CPU) { c.popSeg(SS) }
	t[0x1e] = func(c *CPU) { c.pushSeg(DS) }
	t[0x1f] = func(c *CPU) { c.popSeg(DS) }
	t[0x27] = (*CPU).daa
	t[0x2f] = (*CPU).das
	t[0x37] = (*CPU).aaa
	t[0x3f] = (*CPU).aas

	for r := 0; r < 8; r++ {
		reg := r
		t[0x40+r] = func(c *CPU) { cf := c.flag(FlagCF); c.regs[reg] = c.add16(c.regs[reg], 1, false); c.setFlag(FlagCF, cf) }
		t[0x48+r] = func(c *CPU) { cf := c.flag(FlagCF); c.regs[reg] = c.sub16(c.regs[reg], 1, false); c.setFlag(FlagCF, cf) }
		t[0x50+r] = func(c *CPU) { c.push(c.regs[reg]) }
		t[0x58+r] = func(c *CPU) { c.regs[reg] = c.pop() }
		if r != AX {
			t[0x91+r] = func(c *CPU) { a := c.regs[AX]; c.regs[AX] = c.regs[reg]; c.regs[reg] = a }
		}
	}

	t[0x60] = (*CPU).pusha
	t[0x61] = (*CPU).popa
	t[0x62] = (*CPU).bound
	t[0x68] = func(c *CPU) { c.push(c.fetchWord()) }
	t[0x69] = func(c *CPU) { c.imulImm(false) }
	t[0x6a] = func(c *CPU) { c.push(signExtend8(c.fetchByte())) }
	t[0x6b] = func(c *CPU) { c.imulImm(true) }
	t[0x6c] = (*CPU).insb
	t[0x6d] = (*CPU).insw
	t[0x6e] = (*CPU).outsb
	t[0x6f] = (*CPU).outsw

	for cc := 0; cc < 16; cc++ {
		code := uint8(cc)
		t[0x70+cc] = func(c *CPU) { c.jcc(code) }
	}

	t[0x80] = func(c *CPU) { c.group1(false, false) }
	t[0x81] = func(c *CPU) { c.group1(true, false) }
	t[0x82] = func(c *CPU) { c.group1(false, false) }
	t[0x83] = func(c *CPU) { c.group1(true, true) }
	t[0x84] = func(c *CPU) { d := c.decodeModRM(); c.setFlagsLogic(w8, uint32(c.readByteReg(d.reg)&c.readEA8(&d))) }
	t[0x85] = func(c *CPU) { d := c.decodeModRM(); c.setFlagsLogic(w16, uint32(c.regs[d.reg]&c.readEA16(&d))) }
	t[0x86] = func(c *CPU) { d := c.decodeModRM(); c.xchg8(&d) }
	t[0x87] = func(c *CPU) { d := c.decodeModRM(); c.xchg16(&d) }
	t[0x88] = (*CPU).movEGb
	t[0x89] = (*CPU).movEGv
	t[0x8a] = (*CPU).movGEb
	t[0x8b] = (*CPU).movGEv
	t[0x8c] = (*CPU).movEwSw
	t[0x8d] = (*CPU).lea
	t[0x8e] = (*CPU).movSwEw
	t[0x8f] = func(c *CPU) { d := c.decodeModRM(); c.writeEA16(&d, c.pop()) }
	t[0x90] = func(c *CPU) {}
	t[0x98] = (*CPU).cbw
	t[0x99] = (*CPU).cwd
	t[0x9a] = (*CPU).callFar
	t[0x9b] = func(c *CPU) {}
	t[0x9c] = (*CPU).pushf
	t[0x9d] = (*CPU).popf
	t[0x9e] = (*CPU).sahf
	t[0x9f] = (*CPU).lahf

	t[0xa0] = func(c *CPU) { c.SetRegLo8(AX, c.readMem8(c.dataSeg(), c.fetchWord())) }
	t[0xa1] = func(c *CPU) { c.SetReg16(AX, c.readMem16(c.dataSeg(), c.fetchWord())) }
	t[0xa2] = func(c *CPU) { c.writeMem8(c.dataSeg(), c.fetchWord(), c.RegLo8(AX)) }
	t[0xa3] = func(c *CPU) { c.writeMem16(c.dataSeg(), c.fetchWord(), c.Reg16(AX)) }
	t[0xa4] = (*CPU).movsb
	t[0xa5] = (*CPU).movsw
	t[0xa6] = (*CPU).cmpsb
	t[0xa7] = (*CPU).cmpsw
	t[0xa8] = func(c *CPU) { c.setFlagsLogic(w8, uint32(c.RegLo8(AX)&c.fetchByte())) }
	t[0xa9] = func(c *CPU) { c.setFlagsLogic(w16, uint32(c.Reg16(AX)&c.fetchWord())) }
	t[0xaa] = (*CPU).stosb
	t[0xab] = (*CPU).stosw
	t[0xac] = (*CPU).lodsb
	t[0xad] = (*CPU).lodsw
	t[0xae] = (*CPU).scasb
	t[0xaf] = (*CPU).scasw

	for r := 0; r < 8; r++ {
		reg := r
		t[0xb0+r] = func(c *CPU) { c.writeByteReg(uint8(reg), c.fetchByte()) }
		t[0xb8+r] = func(c *CPU) { c.regs[reg] = c.fetchWord() }
	}

	t[0xc0] = func(c *CPU) { c.shiftGroup8(countImm8) }
	t[0xc1] = func(c *CPU) { c.shiftGroup16(countImm8) }
	t[0xc2] = func(c *CPU) { n := c.fetchWord(); c.retNear(n) }
	t[0xc3] = func(c *CPU) { c.retNear(0) }
	t[0xc4] = func(c *CPU) { c.loadFarPtr(ES) }
	t[0xc5] = func(c *CPU) { c.loadFarPtr(DS) }
	t[0xc6] = func(c *CPU) { d := c.decodeModRM(); c.writeEA8(&d, c.fetchByte()) }
	t[0xc7] = func(c *CPU) { d := c.decodeModRM(); c.writeEA16(&d, c.fetchWord()) }
	t[0xc8] = (*CPU).enter
	t[0xc9] = (*CPU).leave
	t[0xca] = func(c *CPU) { n := c.fetchWord(); c.retFar(n) }
	t[0xcb] = func(c *CPU) { c.retFar(0) }
	t[0xcc] = func(c *CPU) { c.interrupt(vecBreakpoint) }
	t[0xcd] = func(c *CPU) { v := c.fetchByte(); c.interrupt(v) }
	t[0xce] = func(c *CPU) { if c.flag(FlagOF) { c.interrupt(vecOverflow) } }
	t[0xcf] = (*CPU).iret

	t[0xd0] = func(c *CPU) { c.shiftGroup8(countOne) }
	t[0xd1] = func(c *CPU) { c.shiftGroup16(countOne) }
	t[0xd2] = func(c *CPU) { c.shiftGroup8(countCL) }
	t[0xd3] = func(c *CPU) { c.shiftGroup16(countCL) }
	t[0xd4] = func(c *CPU) { c.aam(c.fetchByte()) }
	t[0xd5] = func(c *CPU) { c.aad(c.fetchByte()) }
	t[0xd7] = (*CPU).xlat
	for op := uint8(0xd8); op <= 0xdf; op++ {
		t[op] = func(c *CPU) { c.fpuDispatch(op) }
	}

	t[0xe0] = func(c *CPU) { c.loop(0) }
	t[0xe1] = func(c *CPU) { c.loop(1) }
	t[0xe2] = func(c *CPU) { c.loop(2) }
	t[0xe3] = (*CPU).jcxz
	t[0xe4] = func(c *CPU) { p := c.fetchByte(); c.SetRegLo8(AX, c.io.InByte(uint16(p))) }
	t[0xe5] = func(c *CPU) { p := c.fetchByte(); c.SetReg16(AX, c.io.InWord(uint16(p))) }
	t[0xe6] = func(c *CPU) { p := c.fetchByte(); c.io.OutByte(uint16(p), c.RegLo8(AX)) }
	t[0xe7] = func(c *CPU) { p := c.fetchByte(); c.io.OutWord(uint16(p), c.Reg16(AX)) }
	t[0xe8] = (*CPU).callNear
	t[0xe9] = (*CPU).jmpNear
	t[0xea] = (*CPU).jmpFar
	t[0xeb] = (*CPU).jmpShort
	t[0xec] = func(c *CPU) { c.SetRegLo8(AX, c.io.InByte(c.Reg16(DX))) }
	t[0xed] = func(c *CPU) { c.SetReg16(AX, c.io.InWord(c.Reg16(DX))) }
	t[0xee] = func(c *CPU) { c.io.OutByte(c.Reg16(DX), c.RegLo8(AX)) }
	t[0xef] = func(c *CPU) { c.io.OutWord(c.Reg16(DX), c.Reg16(AX)) }

	t[0xf4] = func(c *CPU) { c.halted = true }
	t[0xf5] = func(c *CPU) { c.setFlag(FlagCF, !c.flag(FlagCF)) }
	t[0xf6] = (*CPU).unaryGroup8
	t[0xf7] = (*CPU).unaryGroup16
	t[0xf8] = func(c *CPU) { c.setFlag(FlagCF, false) }
	t[0xf9] = func(c *CPU) { c.setFlag(FlagCF, true) }
	t[0xfa] = func(c *CPU) { c.setFlag(FlagIF, false) }
	t[0xfb] = func(c *CPU) { c.setFlag(FlagIF, true) }
	t[0xfc] = func(c *CPU) { c.setFlag(FlagDF, false) }
	t[0xfd] = func(c *CPU) { c.setFlag(FlagDF, true) }
	t[0xfe] = (*CPU).incDecGroup8
	t[0xff] = (*CPU).incDecGroup16

	t[0x0f] = (*CPU).exec0F

	for i := range t {
		if t[i] == nil {
			t[i] = func(c *CPU) { c.interrupt(vecInvalidOp) }
		}
	}
	return t
}

// Step executes exactly one instruction, implementing the fetch/
// decode loop of §4.4.
func (c *CPU) Step() {
	if c.trapLatch {
		c.trapLatch = false
		c.interrupt(vecSingleStep)
	}

	if c.halted {
		return
	}

	opcode, ok := c.collectPrefixes()
	if !ok {
		return
	}

	opcodeTable[opcode](c)

	c.trapLatch = c.flag(FlagTF)
}

// CheckExternalIRQ is the host-driven external-IRQ acceptance call of
// §4.4/§5: call once per dispatcher iteration between instructions.
func (c *CPU) CheckExternalIRQ() { c.checkExternalIRQ() }
