/*
   x86emu - segment translation and descriptor loading.

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

// translate turns (segment register, offset) into a 24-bit physical
// address. Real mode shifts the selector and masks to 20 bits when A20
// is gated off; protected mode walks through the segment's descriptor
// cache and signals a fault vector (nonzero) when the offset runs past
// the cached limit.
func (c *CPU) translate(seg int, off uint16) (phys uint32, fault uint8) {
	if !c.protectedMode() {
		phys = (uint32(c.sreg[seg]) << 4) + uint32(off)
		if c.a20 != nil && !c.a20.Enabled() {
			phys &= 0xfffff
		}
		return phys, 0
	}

	d := &c.cache[seg]
	if !d.valid {
		// No descriptor cache matches: the effective address is 0.
		// A recognized defect, preserved rather than faulted.
		return 0, 0
	}
	if off > d.limit {
		return 0, vecGeneralProt
	}
	return d.base + uint32(off), 0
}

// readDescriptor fetches the raw 8-byte descriptor at table base tbl
// for selector index idx, returning the decoded fields.
func (c *CPU) readDescriptor(tbl uint32, idx uint16) (base uint32, limit uint16, access uint8) {
	addr := tbl + uint32(idx)*8
	limit = c.mem.ReadWord(addr)
	baseLo := c.mem.ReadWord(addr + 2)
	baseHi := c.mem.ReadByte(addr + 4)
	access = c.mem.ReadByte(addr + 5)
	base = uint32(baseLo) | uint32(baseHi)<<16
	return base, limit, access
}

// descriptorTable resolves which table (GDT or LDT) a selector names,
// and that table's current (base, limit).
func (c *CPU) descriptorTable(sel uint16) (base uint32, limit uint16) {
	if sel&4 != 0 {
		return c.ldtrCache.base, c.ldtrCache.limit
	}
	return c.gdtr.base, c.gdtr.limit
}

// loadSegment implements the descriptor-loading protocol of the
// segment translator: walk GDT/LDT, bounds-check, apply the
// type/privilege rules for the named segment register, and update its
// cache. Returns a fault vector, or 0 on success.
func (c *CPU) loadSegment(seg int, sel uint16) uint8 {
	if !c.protectedMode() {
		c.sreg[seg] = sel
		c.cache[seg] = descriptor{base: uint32(sel) << 4, limit: 0xffff, access: 0x93, valid: true}
		return 0
	}

	idx := sel >> 3
	if idx == 0 && sel&0xfffc == 0 {
		if seg == SS {
			return vecGeneralProt
		}
		c.sreg[seg] = sel
		c.cache[seg] = descriptor{}
		return 0
	}

	tblBase, tblLimit := c.descriptorTable(sel)
	if uint32(idx)*8+7 > uint32(tblLimit) {
		return vecGeneralProt
	}
	base, limit, access := c.readDescriptor(tblBase, idx)
	d := descriptor{base: base, limit: limit, access: access}
	if !d.present() {
		return vecNotPresent
	}

	rpl := uint8(sel & 3)
	cpl := c.cpl()
	switch seg {
	case SS:
		if !d.isWritableData() || rpl != cpl || d.dpl() != cpl {
			return vecGeneralProt
		}
	case CS:
		if !d.isCode() || d.dpl() > cpl {
			return vecGeneralProt
		}
	default: // DS, ES
		if !d.isWritableData() && !d.isReadableCode() {
			return vecGeneralProt
		}
		if cpl > d.dpl() || rpl > d.dpl() {
			return vecGeneralProt
		}
	}

	d.valid = true
	c.cache[seg] = d
	c.sreg[seg] = sel
	return 0
}

const (
	descTypeLDT = 0x02
	descTypeTSS = 0x01
	descTypeTSSBusy = 0x03
)

// loadLDTR implements LLDT: walk the GDT for a type-0x02 LDT descriptor.
func (c *CPU) loadLDTR(sel uint16) uint8 {
	if sel&0xfffc == 0 {
		c.ldtr = sel
		c.ldtrCache = descriptor{}
		return 0
	}
	idx := sel >> 3
	if sel&4 != 0 || uint32(idx)*8+7 > uint32(c.gdtr.limit) {
		return vecGeneralProt
	}
	base, limit, access := c.readDescriptor(c.gdtr.base, idx)
	if access&0x1f != descTypeLDT {
		return vecGeneralProt
	}
	if access&0x80 == 0 {
		return vecNotPresent
	}
	c.ldtr = sel
	c.ldtrCache = descriptor{base: base, limit: limit, access: access, valid: true}
	return 0
}

// loadTR implements LTR: walk the GDT for a type-0x01/0x03 TSS
// descriptor, mark it busy, and snapshot sp0/ss0 from the TSS body.
func (c *CPU) loadTR(sel uint16) uint8 {
	if sel&4 != 0 || sel&0xfffc == 0 {
		return vecGeneralProt
	}
	idx := sel >> 3
	if uint32(idx)*8+7 > uint32(c.gdtr.limit) {
		return vecGeneralProt
	}
	base, limit, access := c.readDescriptor(c.gdtr.base, idx)
	if access&0x1d != descTypeTSS {
		return vecGeneralProt
	}
	if access&0x80 == 0 {
		return vecNotPresent
	}

	access |= 0x02 // mark busy in the GDT slot
	descAddr := c.gdtr.base + uint32(idx)*8 + 5
	c.mem.WriteByte(descAddr, access)

	sp0 := c.mem.ReadWord(base + 2)
	ss0 := c.mem.ReadWord(base + 4)

	c.tr = sel
	c.trCache = descriptor{base: base, limit: limit, access: access, valid: true, sp0: sp0, ss0: ss0}
	return 0
}
