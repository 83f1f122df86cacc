/*
   x86emu - 8253-class programmable interval timer.

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
   RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

// Package pit implements a three-channel 8253-class programmable
// interval timer, channel 0 tied to IRQ0. Unlike the teacher's
// goroutine-driven ticker, this timer has no background task: the host
// loop calls Tick once per dispatcher iteration (spec.md §5's "host
// controls wall-clock progress by choosing how many instructions to
// execute per outer iteration"), and the timer decrements its counters
// by that many host-chosen ticks.
package pit

const numChannels = 3

// Interrupts is the collaborator channel 0 raises IRQ0 through.
type Interrupts interface {
	DoIRQ(n int)
}

// channel is one 8253 counter: a 16-bit reload value, the live
// countdown, the operating mode, and the latch/access-byte bookkeeping
// the command register selects.
type channel struct {
	reload  uint16
	counter uint16
	mode    uint8 // bits 1-3 of the command byte written for this channel
	bcd     bool

	accessMode  uint8 // 1 = low byte, 2 = high byte, 3 = low then high
	writeHigh   bool  // access mode 3: next write is the high byte
	pendingLow  uint8

	latched    bool
	latchValue uint16
	readHigh   bool // access mode 3: next read is the high byte
}

// PIT is the three-channel timer.
type PIT struct {
	ch  [numChannels]channel
	pic Interrupts
}

// New returns a PIT with all channels stopped (reload 0) and channel 0
// wired to raise IRQ0 through pic.
func New(pic Interrupts) *PIT {
	return &PIT{pic: pic}
}

// Tick advances every channel's counter by n host-chosen ticks.
// Channel 0 reaching zero raises IRQ0 and, in the periodic modes (2
// and 3), reloads and keeps counting; in the one-shot modes it stops.
func (p *PIT) Tick(n int) {
	for i := range p.ch {
		p.tickChannel(i, n)
	}
}

func (p *PIT) tickChannel(i, n int) {
	c := &p.ch[i]
	if c.reload == 0 || n <= 0 {
		return
	}
	for n > 0 {
		if uint16(n) >= c.counter {
			n -= int(c.counter)
			c.counter = 0
		} else {
			c.counter -= uint16(n)
			n = 0
		}
		if c.counter == 0 {
			if i == 0 && p.pic != nil {
				p.pic.DoIRQ(0)
			}
			switch c.mode {
			case 2, 3: // rate generator / square wave: auto-reload
				c.counter = c.reload
			default: // one-shot modes: stop until reprogrammed
				c.reload = 0
				return
			}
		}
	}
}

// InByte implements ioport.Port for the classic 0x40-0x43 port block.
func (p *PIT) InByte(port uint16) uint8 {
	if port > 0x42 {
		return 0xff
	}
	return p.readData(&p.ch[port-0x40])
}

// OutByte implements ioport.Port for the classic 0x40-0x43 port block.
func (p *PIT) OutByte(port uint16, v uint8) {
	if port == 0x43 {
		p.command(v)
		return
	}
	if port > 0x42 {
		return
	}
	p.writeData(&p.ch[port-0x40], v)
}

// command decodes the mode/command register written at port 0x43:
// bits 6-7 select the channel, bits 4-5 the access mode, bits 1-3 the
// counting mode. An access mode of 0 latches the counter for readback
// instead of reprogramming it.
func (p *PIT) command(v uint8) {
	sel := v >> 6
	if sel >= numChannels {
		return // read-back command, not modeled
	}
	c := &p.ch[sel]
	access := (v >> 4) & 0x03
	if access == 0 {
		c.latched = true
		c.latchValue = c.counter
		c.readHigh = false
		return
	}
	c.accessMode = access
	c.writeHigh = false
	c.mode = (v >> 1) & 0x07
	c.bcd = v&0x01 != 0
}

func (p *PIT) writeData(c *channel, v uint8) {
	switch c.accessMode {
	case 1: // low byte only
		c.reload = uint16(v)
	case 2: // high byte only
		c.reload = uint16(v) << 8
	case 3: // low byte then high byte
		if !c.writeHigh {
			c.pendingLow = v
			c.writeHigh = true
			return
		}
		c.reload = uint16(c.pendingLow) | uint16(v)<<8
		c.writeHigh = false
	default:
		return
	}
	c.counter = c.reload
}

func (p *PIT) readData(c *channel) uint8 {
	if c.latched {
		return p.readLatched(c)
	}
	switch c.accessMode {
	case 2:
		return uint8(c.counter >> 8)
	case 3:
		if !c.readHigh {
			c.readHigh = true
			return uint8(c.counter)
		}
		c.readHigh = false
		return uint8(c.counter >> 8)
	default:
		return uint8(c.counter)
	}
}

func (p *PIT) readLatched(c *channel) uint8 {
	switch c.accessMode {
	case 2:
		c.latched = false
		return uint8(c.latchValue >> 8)
	case 3:
		if !c.readHigh {
			c.readHigh = true
			return uint8(c.latchValue)
		}
		c.readHigh = false
		c.latched = false
		return uint8(c.latchValue >> 8)
	default:
		c.latched = false
		return uint8(c.latchValue)
	}
}
