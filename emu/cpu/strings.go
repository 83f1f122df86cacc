/*
   x86emu - string instructions (MOVS/CMPS/SCAS/LODS/STOS/INS/OUTS).

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

// stringStep is the shared rep/no-rep envelope described in §4.4 step
// 6: with CX==0 under a repetition prefix the instruction is a no-op;
// otherwise body runs once, CX is decremented when repeating, and IP
// is rewound to reenter the fetch loop when more iterations remain.
// For CMPS/SCAS (opcodes A6/A7/AE/AF) ZF is also consulted after body
// to honor REPE/REPNE early termination.
func (c *CPU) stringStep(body func()) {
	rep := c.pfx.rep
	if rep != repNone {
		if c.Reg16(CX) == 0 {
			return
		}
	}
	body()
	if rep == repNone {
		return
	}
	c.SetReg16(CX, c.Reg16(CX)-1)
	if c.Reg16(CX) == 0 {
		return
	}
	checkZF := c.pfx.opcode&0xf6 == 0xa6
	if checkZF && rep == repE && !c.flag(FlagZF) {
		return
	}
	if checkZF && rep == repNE && c.flag(FlagZF) {
		return
	}
	c.ip = c.pfx.start
}

func (c *CPU) strideFor(wide bool) uint16 {
	d := uint16(1)
	if wide {
		d = 2
	}
	if c.flag(FlagDF) {
		return 0 - d
	}
	return d
}

func (c *CPU) movsb() {
	c.stringStep(func() {
		v := c.readMem8(c.dataSeg(), c.Reg16(SI))
		c.writeMem8(ES, c.Reg16(DI), v)
		stride := c.strideFor(false)
		c.SetReg16(SI, c.Reg16(SI)+stride)
		c.SetReg16(DI, c.Reg16(DI)+stride)
	})
}

func (c *CPU) movsw() {
	c.stringStep(func() {
		v := c.readMem16(c.dataSeg(), c.Reg16(SI))
		c.writeMem16(ES, c.Reg16(DI), v)
		stride := c.strideFor(true)
		c.SetReg16(SI, c.Reg16(SI)+stride)
		c.SetReg16(DI, c.Reg16(DI)+stride)
	})
}

func (c *CPU) cmpsb() {
	c.stringStep(func() {
		a := c.readMem8(c.dataSeg(), c.Reg16(SI))
		b := c.readMem8(ES, c.Reg16(DI))
		c.sub8(a, b, false)
		stride := c.strideFor(false)
		c.SetReg16(SI, c.Reg16(SI)+stride)
		c.SetReg16(DI, c.Reg16(DI)+stride)
	})
}

func (c *CPU) cmpsw() {
	c.stringStep(func() {
		a := c.readMem16(c.dataSeg(), c.Reg16(SI))
		b := c.readMem16(ES, c.Reg16(DI))
		c.sub16(a, b, false)
		stride := c.strideFor(true)
		c.SetReg16(SI, c.Reg16(SI)+stride)
		c.SetReg16(DI, c.Reg16(DI)+stride)
	})
}

func (c *CPU) scasb() {
	c.stringStep(func() {
		b := c.readMem8(ES, c.Reg16(DI))
		c.sub8(c.RegLo8(AX), b, false)
		c.SetReg16(DI, c.Reg16(DI)+c.strideFor(false))
	})
}

func (c *CPU) scasw() {
	c.stringStep(func() {
		b := c.readMem16(ES, c.Reg16(DI))
		c.sub16(c.Reg16(AX), b, false)
		c.SetReg16(DI, c.Reg16(DI)+c.strideFor(true))
	})
}

func (c *CPU) lodsb() {
	c.stringStep(func() {
		c.SetRegLo8(AX, c.readMem8(c.dataSeg(), c.Reg16(SI)))
		c.SetReg16(SI, c.Reg16(SI)+c.strideFor(false))
	})
}

func (c *CPU) lodsw() {
	c.stringStep(func() {
		c.SetReg16(AX, c.readMem16(c.dataSeg(), c.Reg16(SI)))
		c.SetReg16(SI, c.Reg16(SI)+c.strideFor(true))
	})
}

func (c *CPU) stosb() {
	c.stringStep(func() {
		c.writeMem8(ES, c.Reg16(DI), c.RegLo8(AX))
		c.SetReg16(DI, c.Reg16(DI)+c.strideFor(false))
	})
}

func (c *CPU) stosw() {
	c.stringStep(func() {
		c.writeMem16(ES, c.Reg16(DI), c.Reg16(AX))
		c.SetReg16(DI, c.Reg16(DI)+c.strideFor(true))
	})
}

func (c *CPU) insb() {
	c.stringStep(func() {
		c.writeMem8(ES, c.Reg16(DI), c.io.InByte(c.Reg16(DX)))
		c.SetReg16(DI, c.Reg16(DI)+c.strideFor(false))
	})
}

func (c *CPU) insw() {
	c.stringStep(func() {
		c.writeMem16(ES, c.Reg16(DI), c.io.InWord(c.Reg16(DX)))
		c.SetReg16(DI, c.Reg16(DI)+c.strideFor(true))
	})
}

func (c *CPU) outsb() {
	c.stringStep(func() {
		c.io.OutByte(c.Reg16(DX), c.readMem8(c.dataSeg(), c.Reg16(SI)))
		c.SetReg16(SI, c.Reg16(SI)+c.strideFor(false))
	})
}

func (c *CPU) outsw() {
	c.stringStep(func() {
		c.io.OutWord(c.Reg16(DX), c.readMem16(c.dataSeg(), c.Reg16(SI)))
		c.SetReg16(SI, c.Reg16(SI)+c.strideFor(true))
	})
}

// dataSeg returns the segment override in effect for this instruction,
// or DS by default (string sources use DS:SI; destinations always ES:DI).
func (c *CPU) dataSeg() int {
	if c.pfx.haveSeg {
		return c.pfx.segOverride
	}
	return DS
}
