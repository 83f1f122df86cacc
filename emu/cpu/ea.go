/*
   x86emu - ModR/M effective-address decoding and memory access helpers.

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

// eaBaseRegs is the classic 8086 mod!=11 rm table: which two registers
// (or one, or none) form the base of the address for each rm value.
// rm==6 with mod==0 is the direct-displacement special case, handled
// by the caller rather than here.
var eaBaseRegs = [8]struct {
	r1, r2  int
	useR2   bool
	useBP   bool
}{
	{BX, SI, true, false},
	{BX, DI, true, false},
	{BP, SI, true, true},
	{BP, DI, true, true},
	{SI, 0, false, false},
	{DI, 0, false, false},
	{BP, 0, false, true}, // mod!=0 only; mod==0 is direct disp16
	{BX, 0, false, false},
}

// effectiveAddress computes the 16-bit offset and default segment for
// a memory-form ModR/M (mod != 3), given the already-fetched
// displacement. BP-based forms default to SS unless a segment
// override prefix is active.
func (c *CPU) effectiveAddress(d *decoded) (offset uint16, defSeg int) {
	defSeg = DS
	row := eaBaseRegs[d.rm]

	if d.mod == 0 && d.rm == 6 {
		offset = d.disp // direct displacement, no base register
	} else {
		offset = c.regs[row.r1]
		if row.useR2 {
			offset += c.regs[row.r2]
		}
		offset += d.disp
		if row.useBP {
			defSeg = SS
		}
	}

	if d.haveSeg {
		defSeg = d.segOverride
	}
	return offset, defSeg
}

// readEA8/readEA16 fetch the byte/word operand named by a decoded
// ModR/M: register-direct when mod==3, else the memory operand at the
// ModR/M's effective address.
func (c *CPU) readEA8(d *decoded) uint8 {
	if d.mod == 3 {
		return c.readByteReg(d.rm)
	}
	off, seg := c.effectiveAddress(d)
	return c.readMem8(seg, off)
}

func (c *CPU) writeEA8(d *decoded, v uint8) {
	if d.mod == 3 {
		c.writeByteReg(d.rm, v)
		return
	}
	off, seg := c.effectiveAddress(d)
	c.writeMem8(seg, off, v)
}

func (c *CPU) readEA16(d *decoded) uint16 {
	if d.mod == 3 {
		return c.regs[d.rm]
	}
	off, seg := c.effectiveAddress(d)
	return c.readMem16(seg, off)
}

func (c *CPU) writeEA16(d *decoded, v uint16) {
	if d.mod == 3 {
		c.regs[d.rm] = v
		return
	}
	off, seg := c.effectiveAddress(d)
	c.writeMem16(seg, off, v)
}

// eaAddr returns the (segment, offset) pair for a memory-form operand,
// for instructions (LEA, LES, LDS, string ops' explicit forms) that
// need the address itself rather than its contents.
func (c *CPU) eaAddr(d *decoded) (seg int, off uint16) {
	off, seg = c.effectiveAddress(d)
	return seg, off
}

// readMem8/writeMem8/readMem16/writeMem16 translate (segment, offset)
// through the segment translator and fault if translation fails.
func (c *CPU) readMem8(seg int, off uint16) uint8 {
	phys, fault := c.translate(seg, off)
	if fault != 0 {
		c.interrupt(fault)
		return 0
	}
	return c.mem.ReadByte(phys)
}

func (c *CPU) writeMem8(seg int, off uint16, v uint8) {
	phys, fault := c.translate(seg, off)
	if fault != 0 {
		c.interrupt(fault)
		return
	}
	c.mem.WriteByte(phys, v)
}

func (c *CPU) readMem16(seg int, off uint16) uint16 {
	phys, fault := c.translate(seg, off)
	if fault != 0 {
		c.interrupt(fault)
		return 0
	}
	if phys&0xffffff == 0xffffff {
		lo := c.mem.ReadByte(phys)
		hi := c.readMem8(seg, off+1)
		return uint16(lo) | uint16(hi)<<8
	}
	return c.mem.ReadWord(phys)
}

func (c *CPU) writeMem16(seg int, off uint16, v uint16) {
	phys, fault := c.translate(seg, off)
	if fault != 0 {
		c.interrupt(fault)
		return
	}
	c.mem.WriteWord(phys, v)
}

// push/pop implement the stack discipline used throughout the
// dispatcher: SP is decremented/incremented by 2 around an SS-relative
// word access.
func (c *CPU) push(v uint16) {
	c.regs[SP] -= 2
	c.writeMem16(SS, c.regs[SP], v)
}

func (c *CPU) pop() uint16 {
	v := c.readMem16(SS, c.regs[SP])
	c.regs[SP] += 2
	return v
}

// fetchByte reads the byte at CS:IP and advances IP.
func (c *CPU) fetchByte() uint8 {
	v := c.readMem8(CS, c.ip)
	c.ip++
	return v
}

func (c *CPU) fetchWord() uint16 {
	v := c.readMem16(CS, c.ip)
	c.ip += 2
	return v
}
