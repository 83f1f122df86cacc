/*
   x86emu - interrupt dispatcher, fault escalation, and reset.

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

// faultVectors names the vectors that carry fault-in-flight semantics
// (escalate to double fault if one is already in progress).
var faultVectors = map[uint8]bool{8: true, 10: true, 11: true, 12: true, 13: true}

// interrupt implements §4.6. It never returns an error: faults unwind
// entirely inside this call, and the dispatcher loop never sees them.
func (c *CPU) interrupt(v uint8) {
	if c.faultInFlight {
		if v == vecDoubleFault {
			c.Reset()
			return
		}
		c.interrupt(vecDoubleFault)
		return
	}
	if faultVectors[v] {
		c.faultInFlight = true
	}

	if cb := c.callbacks[v]; cb != nil {
		cb(v)
		c.faultInFlight = false
		return
	}

	if !c.protectedMode() {
		c.push(c.flags)
		c.push(c.sreg[CS])
		c.push(c.ip)
		c.setFlag(FlagTF, false)
		c.setFlag(FlagIF, false)
		vecAddr := uint32(v) * 4
		newIP := c.mem.ReadWord(vecAddr)
		newCS := c.mem.ReadWord(vecAddr + 2)
		c.loadSegment(CS, newCS)
		c.ip = newIP
		c.faultInFlight = false
		return
	}

	gateAddr := uint32(v) * 8
	if gateAddr+7 > uint32(c.idtr.limit) {
		c.faultInFlight = false
		c.interrupt(vecDoubleFault)
		return
	}
	base, limit, access := c.readDescriptor(c.idtr.base, uint16(v))
	_ = limit
	if access&0x80 == 0 {
		c.faultInFlight = false
		c.interrupt(vecNotPresent)
		return
	}
	newIP := uint16(base & 0xffff)
	newCS := uint16(base >> 16)
	isInterruptGate := access&0x07 == 0x06

	csBase, csLimit := c.descriptorTable(newCS)
	_, _, csAccess := c.readDescriptor(csBase, newCS>>3)
	_ = csLimit
	targetDPL := (csAccess >> 5) & 3
	cpl := c.cpl()

	if targetDPL < cpl {
		newSP0, newSS0 := c.trCache.sp0, c.trCache.ss0
		oldSS, oldSP := c.sreg[SS], c.regs[SP]
		c.loadSegment(SS, newSS0)
		c.regs[SP] = newSP0
		c.push(oldSS)
		c.push(oldSP)
	}

	c.push(c.flags)
	c.push(c.sreg[CS])
	c.push(c.ip)
	if faultVectors[v] {
		c.push(0)
	}

	c.loadSegment(CS, newCS)
	c.ip = newIP
	c.setFlag(FlagTF, false)
	if isInterruptGate {
		c.setFlag(FlagIF, false)
	}
	c.faultInFlight = false
}

// checkExternalIRQ implements the external IRQ acceptance check the
// host calls once per dispatcher iteration: if the trap-toggle latch
// is clear and interrupts are enabled, ask the interrupt controller
// for the next pending unmasked line.
func (c *CPU) checkExternalIRQ() {
	if c.trapLatch || !c.flag(FlagIF) || c.pic == nil {
		return
	}
	if v, pending := c.pic.NextIntr(); pending {
		c.halted = false
		c.interrupt(v)
	}
}

// Reset implements §4.7: zero registers, set the documented power-on
// MSW/IDTR/GDTR/CS:IP, and reset the FPU. Triggered by power-on,
// triple fault, or a keyboard-controller reset-pulse command.
func (c *CPU) Reset() {
	c.regs = [numRegs]uint16{}
	c.sreg = [numSegs]uint16{}
	c.cache = [numSegs]descriptor{}
	c.flags = flagR1
	c.trapLatch = false
	c.faultInFlight = false
	c.halted = false

	c.msw = 0xfff0
	c.idtr = dtReg{base: 0, limit: 0x03ff}
	c.gdtr = dtReg{base: 0, limit: 0xffff}
	c.ldtr, c.tr = 0, 0
	c.ldtrCache, c.trCache = descriptor{}, descriptor{}

	c.sreg[CS] = 0xf000
	c.cache[CS] = descriptor{base: 0xf0000, limit: 0xffff, access: 0x93, valid: true}
	c.ip = 0xfff0

	c.resetFPU()
}
