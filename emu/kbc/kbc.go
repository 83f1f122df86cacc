/*
   x86emu - 8042-class keyboard controller.

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

// Package kbc implements the keyboard controller of spec.md §6: ports
// 0x60/0x64, a 16-byte scan-code ring, the command-byte protocol, and
// the output-port/port-0x92 A20 gates the segment translator samples
// on every real-mode address formation.
package kbc

const ringSize = 16

// status byte bits (port 0x64 read).
const (
	statusOBF uint8 = 1 << 0 // output buffer full: a byte is waiting at 0x60
	statusSysFlag uint8 = 1 << 2
)

// command byte bits (internal, set via 0x60/0x64 command 0x60).
const (
	cmdIRQ1Enable   uint8 = 1 << 0
	cmdPort1Disable uint8 = 1 << 4
	cmdPort2Disable uint8 = 1 << 5
)

// Interrupts is the collaborator the controller raises IRQ1 through.
type Interrupts interface {
	DoIRQ(n int)
}

// Controller is the keyboard controller plus the port-0x92 fast A20/
// reset gate, grounded on the same small ring-buffer-and-status-byte
// device shape the teacher uses for its simplest console device.
type Controller struct {
	status  uint8
	cmdByte uint8
	output  uint8 // output port: bit 1 drives A20
	port92  uint8 // alternate A20 gate / fast reset, bit 1 is A20

	pendingWrite int // 0 = none, 1 = awaiting new command byte, 2 = awaiting new output port

	ring       [ringSize]uint8
	head, tail int
	count      int

	pic     Interrupts
	onReset func()
}

// New returns a controller with IRQ1 disabled and both A20 gates clear,
// matching real-mode power-on state before BIOS configures the A20 line.
func New(pic Interrupts, onReset func()) *Controller {
	return &Controller{pic: pic, onReset: onReset}
}

// Enabled implements cpu.A20Line: the gate is live if either the 8042
// output port or port 0x92 asserts bit 1.
func (c *Controller) Enabled() bool {
	return c.output&0x02 != 0 || c.port92&0x02 != 0
}

// push enqueues a byte for the next 0x60 read, raising IRQ1 if enabled.
func (c *Controller) push(v uint8) {
	if c.count == ringSize {
		return // ring full: drop, same as real hardware silently overrunning
	}
	c.ring[c.tail] = v
	c.tail = (c.tail + 1) % ringSize
	c.count++
	c.status |= statusOBF
	if c.pic != nil && c.cmdByte&cmdIRQ1Enable != 0 {
		c.pic.DoIRQ(1)
	}
}

// InByte implements ioport.Port for ports 0x60 and 0x64.
func (c *Controller) InByte(port uint16) uint8 {
	switch port {
	case 0x60:
		if c.count == 0 {
			return 0
		}
		v := c.ring[c.head]
		c.head = (c.head + 1) % ringSize
		c.count--
		if c.count == 0 {
			c.status &^= statusOBF
		}
		return v
	case 0x64:
		return c.status
	}
	return 0xff
}

// OutByte implements ioport.Port for ports 0x60 and 0x64.
func (c *Controller) OutByte(port uint16, v uint8) {
	switch port {
	case 0x60:
		switch c.pendingWrite {
		case 1:
			c.cmdByte = v
		case 2:
			c.output = v
		}
		c.pendingWrite = 0
	case 0x64:
		c.command(v)
	}
}

// command handles the 0x64 command byte protocol named in spec.md §6.
func (c *Controller) command(cmd uint8) {
	switch cmd {
	case 0x20: // read command byte
		c.push(c.cmdByte)
	case 0x60: // write command byte: next 0x60 write supplies it
		c.pendingWrite = 1
	case 0xaa: // self test
		c.push(0x55)
	case 0xad: // disable first port
		c.cmdByte |= cmdPort1Disable
	case 0xae: // enable first port
		c.cmdByte &^= cmdPort1Disable
	case 0xa7: // disable second port
		c.cmdByte |= cmdPort2Disable
	case 0xa8: // enable second port
		c.cmdByte &^= cmdPort2Disable
	case 0xd0: // read output port
		c.push(c.output)
	case 0xd1: // write output port: next 0x60 write supplies it
		c.pendingWrite = 2
	case 0xfe: // pulse reset
		if c.onReset != nil {
			c.onReset()
		}
	}
}

// Port92 is the alternate A20 gate at I/O port 0x92, a separate
// ioport.Port so the host can attach it independently of 0x60/0x64.
type Port92 struct{ c *Controller }

// NewPort92 returns the port-0x92 view of c.
func NewPort92(c *Controller) Port92 { return Port92{c: c} }

func (p Port92) InByte(_ uint16) uint8 { return p.c.port92 }

func (p Port92) OutByte(_ uint16, v uint8) {
	p.c.port92 = v
	if v&0x01 != 0 && p.c.onReset != nil { // bit 0: fast CPU reset pulse
		p.c.onReset()
	}
}

// ForceA20 sets port 0x92's A20 bit directly, for a boot-time config
// override rather than the BIOS's usual command-byte/port-92 dance.
func (c *Controller) ForceA20(enabled bool) {
	if enabled {
		c.port92 |= 0x02
	} else {
		c.port92 &^= 0x02
	}
}

// PushScanCode lets the host feed a scan code into the ring buffer
// (keyboard input is outside the core's scope, but the ring and IRQ1
// delivery it drives are in scope).
func (c *Controller) PushScanCode(code uint8) { c.push(code) }
