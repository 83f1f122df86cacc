/*
   x86emu - prefix collection and ModR/M decode.

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

const maxPrefixes = 10

// collectPrefixes runs the prefix-collection loop of §4.4 step 4: it
// reads bytes from CS:IP until a non-prefix byte is found, recording
// segment overrides and the repetition latch along the way. LOCK is
// accepted and has no effect. A run longer than maxPrefixes raises
// interrupt 13.
func (c *CPU) collectPrefixes() (opcode uint8, ok bool) {
	c.pfx = decoded{start: c.ip}
	c.pfx.segOverride = -1

	for n := 0; ; n++ {
		if n > maxPrefixes {
			c.interrupt(vecGeneralProt)
			return 0, false
		}
		b := c.fetchByte()
		switch b {
		case 0x26:
			c.pfx.segOverride, c.pfx.haveSeg = ES, true
		case 0x2e:
			c.pfx.segOverride, c.pfx.haveSeg = CS, true
		case 0x36:
			c.pfx.segOverride, c.pfx.haveSeg = SS, true
		case 0x3e:
			c.pfx.segOverride, c.pfx.haveSeg = DS, true
		case 0xf0: // LOCK, no effect on a single-core interpreter
		case 0xf2:
			c.pfx.rep = repNE
		case 0xf3:
			c.pfx.rep = repE
		default:
			c.pfx.opcode = b
			return b, true
		}
	}
}

// decodeModRM reads the ModR/M byte and any displacement, inheriting
// the prefix state collected for this instruction.
func (c *CPU) decodeModRM() decoded {
	d := c.pfx
	b := c.fetchByte()
	d.mod = b >> 6
	d.reg = (b >> 3) & 7
	d.rm = b & 7
	d.hasRM = true

	switch {
	case d.mod == 0 && d.rm == 6:
		d.disp = c.fetchWord()
	case d.mod == 1:
		d.disp = signExtend8(c.fetchByte())
	case d.mod == 2:
		d.disp = c.fetchWord()
	}
	return d
}
