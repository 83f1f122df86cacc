/*
   x86emu - 80286 system instructions: the 0x0F secondary table.

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

// loadAllAddr is the fixed physical address LOADALL reads its 102-byte
// save block from.
const loadAllAddr = 0x800

// exec0F dispatches the extended opcode table entered via the 0x0F
// prefix byte: descriptor-table group 6/7, LAR/LSL, LOADALL, CLTS.
func (c *CPU) exec0F() {
	op := c.fetchByte()
	switch op {
	case 0x00:
		c.group6()
	case 0x01:
		c.group7()
	case 0x02:
		c.lar()
	case 0x03:
		c.lsl()
	case 0x05:
		c.loadAll()
	case 0x06:
		c.clts()
	default:
		c.interrupt(vecInvalidOp)
	}
}

// group6 implements SLDT/STR/LLDT/LTR/VERR/VERW, selected by the
// ModR/M reg field. All six require protected mode.
func (c *CPU) group6() {
	if !c.protectedMode() {
		c.interrupt(vecInvalidOp)
		return
	}
	d := c.decodeModRM()
	switch d.reg {
	case 0: // SLDT
		c.writeEA16(&d, c.ldtr)
	case 1: // STR
		c.writeEA16(&d, c.tr)
	case 2: // LLDT
		if f := c.loadLDTR(c.readEA16(&d)); f != 0 {
			c.interrupt(f)
		}
	case 3: // LTR
		if f := c.loadTR(c.readEA16(&d)); f != 0 {
			c.interrupt(f)
		}
	case 4, 5: // VERR/VERW
		sel := c.readEA16(&d)
		ok := c.verifyAccess(sel, d.reg == 5)
		c.setFlag(FlagZF, ok)
	default:
		c.interrupt(vecInvalidOp)
	}
}

// verifyAccess implements VERR (checkWrite=false) / VERW
// (checkWrite=true): does the selector name a present, appropriately
// typed descriptor accessible at the current privilege level.
func (c *CPU) verifyAccess(sel uint16, checkWrite bool) bool {
	if sel&0xfffc == 0 {
		return false
	}
	idx := sel >> 3
	tblBase, tblLimit := c.descriptorTable(sel)
	if uint32(idx)*8+7 > uint32(tblLimit) {
		return false
	}
	_, _, access := c.readDescriptor(tblBase, idx)
	d := descriptor{access: access}
	if !d.present() {
		return false
	}
	rpl := uint8(sel & 3)
	cpl := c.cpl()
	if rpl > d.dpl() || cpl > d.dpl() {
		if !d.isCode() || d.access&0x04 == 0 { // conforming code segments are exempt from the privilege check
			return false
		}
	}
	if checkWrite {
		return d.isWritableData()
	}
	return d.isWritableData() || d.isReadableCode()
}

// group7 implements SGDT/SIDT/LGDT/LIDT/SMSW/LMSW. Reg fields 4 and 6
// operate on the MSW rather than a table register.
func (c *CPU) group7() {
	d := c.decodeModRM()
	switch d.reg {
	case 0: // SGDT
		seg, off := c.eaAddr(&d)
		c.writeMem16(seg, off, c.gdtr.limit)
		c.writeMem16(seg, off+2, uint16(c.gdtr.base))
		c.writeMem8(seg, off+4, uint8(c.gdtr.base>>16))
	case 1: // SIDT
		seg, off := c.eaAddr(&d)
		c.writeMem16(seg, off, c.idtr.limit)
		c.writeMem16(seg, off+2, uint16(c.idtr.base))
		c.writeMem8(seg, off+4, uint8(c.idtr.base>>16))
	case 2: // LGDT
		seg, off := c.eaAddr(&d)
		c.gdtr.limit = c.readMem16(seg, off)
		lo := c.readMem16(seg, off+2)
		hi := c.readMem8(seg, off+4)
		c.gdtr.base = uint32(lo) | uint32(hi)<<16
	case 3: // LIDT
		seg, off := c.eaAddr(&d)
		c.idtr.limit = c.readMem16(seg, off)
		lo := c.readMem16(seg, off+2)
		hi := c.readMem8(seg, off+4)
		c.idtr.base = uint32(lo) | uint32(hi)<<16
	case 4: // SMSW
		c.writeEA16(&d, c.msw)
	case 6: // LMSW
		v := c.readEA16(&d)
		c.msw = (c.msw &^ 0xf) | (v & 0xf) | mswAlwaysOne(c.msw)
	default:
		c.interrupt(vecInvalidOp)
	}
}

// mswAlwaysOne preserves bits above the low nibble that LMSW cannot clear.
func mswAlwaysOne(msw uint16) uint16 { return msw &^ 0xf }

func (c *CPU) clts() {
	c.msw &^= mswTS
}

// lar/lsl implement LAR/LSL: load the access-rights byte or the
// segment limit of a selector's descriptor, setting ZF on success.
func (c *CPU) lar() {
	d := c.decodeModRM()
	sel := c.readEA16(&d)
	access, ok := c.descriptorAccess(sel)
	c.setFlag(FlagZF, ok)
	if ok {
		c.regs[d.reg] = uint16(access) << 8
	}
}

func (c *CPU) lsl() {
	d := c.decodeModRM()
	sel := c.readEA16(&d)
	_, limit, access, ok := c.descriptorFull(sel)
	c.setFlag(FlagZF, ok)
	if ok {
		_ = access
		c.regs[d.reg] = limit
	}
}

func (c *CPU) descriptorAccess(sel uint16) (access uint8, ok bool) {
	_, _, access, ok = c.descriptorFull(sel)
	return access, ok
}

func (c *CPU) descriptorFull(sel uint16) (base uint32, limit uint16, access uint8, ok bool) {
	if sel&0xfffc == 0 {
		return 0, 0, 0, false
	}
	idx := sel >> 3
	tblBase, tblLimit := c.descriptorTable(sel)
	if uint32(idx)*8+7 > uint32(tblLimit) {
		return 0, 0, 0, false
	}
	base, limit, access = c.readDescriptor(tblBase, idx)
	d := descriptor{access: access}
	if !d.present() {
		return base, limit, access, false
	}
	return base, limit, access, true
}

// loadAll implements the undocumented 80286 LOADALL opcode: read a
// fixed 102-byte block at physical 0x800 and repopulate almost every
// piece of CPU state from it. The exact field layout is not specified
// by Intel documentation surviving in this pack; the order below is a
// fixed design decision (see DESIGN.md and SPEC_FULL.md §4): PC saved
// flag word, MSW, GDTR, IDTR, LDTR selector and cache, TR selector and
// cache, the four segment descriptor caches in CS/SS/DS/ES order, the
// eight general registers, the four segment selectors in CS/SS/DS/ES
// order, IP and flags, then six reserved bytes padding the block out to
// the full 102 bytes.
func (c *CPU) loadAll() {
	a := uint32(loadAllAddr)
	rd16 := func() uint16 { v := c.mem.ReadWord(a); a += 2; return v }
	rd32 := func() uint32 { lo := c.mem.ReadWord(a); hi := c.mem.ReadWord(a + 2); a += 4; return uint32(lo) | uint32(hi)<<16 }
	readCache := func() descriptor {
		base := rd32()
		limit := rd16()
		access := uint8(rd16())
		return descriptor{base: base, limit: limit, access: access, valid: true}
	}

	_ = rd16() // PC saved flag word: not meaningful to this implementation, consumed for block alignment
	c.msw = rd16()
	c.gdtr.base = rd32()
	c.gdtr.limit = rd16()
	c.idtr.base = rd32()
	c.idtr.limit = rd16()
	c.ldtr = rd16()
	c.ldtrCache = readCache()
	c.tr = rd16()
	c.trCache = readCache()

	c.cache[CS] = readCache()
	c.cache[SS] = readCache()
	c.cache[DS] = readCache()
	c.cache[ES] = readCache()

	c.regs[AX] = rd16()
	c.regs[CX] = rd16()
	c.regs[DX] = rd16()
	c.regs[BX] = rd16()
	c.regs[SP] = rd16()
	c.regs[BP] = rd16()
	c.regs[SI] = rd16()
	c.regs[DI] = rd16()

	c.sreg[CS] = rd16()
	c.sreg[SS] = rd16()
	c.sreg[DS] = rd16()
	c.sreg[ES] = rd16()

	c.ip = rd16()
	c.SetFlags(rd16())
	// Six reserved bytes follow, completing the 102-byte block; nothing
	// in this implementation reads them.
}
