/*
   x86emu - cascaded 8259-class interrupt controller.

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

// Package pic implements two cascaded 8-line interrupt controller units
// (master and slave, the slave's output tied to the master's line 2),
// the collaborator the CPU core polls through the InterruptController
// contract (NextIntr). Devices post requests through DoIRQ; the host
// wires the two units' ports onto the port bus at construction.
package pic

const cascadeLine = 2

// unit is one 8-line controller: a request register, a mask register,
// an in-service register, and the ICW/OCW state needed to answer the
// handful of byte sequences real BIOS/OS code issues at boot.
type unit struct {
	irr uint8 // interrupt request register: lines asserted, awaiting service
	imr uint8 // interrupt mask register: 1 bit disables that line
	isr uint8 // in-service register: lines currently being handled

	intOffset uint8 // ICW2: vector base for this unit's eight lines

	icwStep    int  // 0 = idle, else next ICW byte expected on the odd port
	icw4Needed bool // ICW1 bit 0: host will send an ICW4 byte
	readISR    bool // OCW3 read-register select: true reads ISR, false IRR
}

// PIC is the master/slave pair: ports 0x20/0x21 (master) and 0xA0/0xA1
// (slave), per spec.md §6.
type PIC struct {
	master unit
	slave  unit
}

// New returns a PIC with the documented reset vector offsets (master
// 0x08, slave 0x70) and everything else unmasked and idle.
func New() *PIC {
	p := &PIC{}
	p.master.intOffset = 0x08
	p.slave.intOffset = 0x70
	return p
}

// DoIRQ sets IRR bit n (0-15; 8-15 are the slave's lines 0-7) masked by
// the owning unit's IMR, cascading the slave's output onto the master's
// line 2 when the slave accepts a request.
func (p *PIC) DoIRQ(n int) {
	if n < 0 || n > 15 {
		return
	}
	if n < 8 {
		bit := uint8(1) << uint(n)
		if p.master.imr&bit == 0 {
			p.master.irr |= bit
		}
		return
	}
	bit := uint8(1) << uint(n-8)
	if p.slave.imr&bit == 0 {
		p.slave.irr |= bit
		cbit := uint8(1) << cascadeLine
		if p.master.imr&cbit == 0 {
			p.master.irr |= cbit
		}
	}
}

// NextIntr returns `(icw2 & 0xF8) + n` for the highest-priority pending,
// unmasked line (lowest line number wins), resolving a pending cascade
// line on the master by asking the slave for its own highest-priority
// line instead. It reports (0, false) when nothing is pending.
func (p *PIC) NextIntr() (uint8, bool) {
	for i := 0; i < 8; i++ {
		bit := uint8(1) << uint(i)
		if p.master.irr&bit == 0 || p.master.imr&bit != 0 {
			continue
		}
		if i == cascadeLine {
			if v, ok := p.slave.highestPending(); ok {
				p.master.isr |= bit
				return v, true
			}
			p.master.irr &^= bit
			continue
		}
		p.master.irr &^= bit
		p.master.isr |= bit
		return (p.master.intOffset &^ 0x07) + uint8(i), true
	}
	return 0, false
}

// highestPending is the single-unit priority scan NextIntr builds on.
func (u *unit) highestPending() (uint8, bool) {
	for i := 0; i < 8; i++ {
		bit := uint8(1) << uint(i)
		if u.irr&bit != 0 && u.imr&bit == 0 {
			u.irr &^= bit
			u.isr |= bit
			return (u.intOffset &^ 0x07) + uint8(i), true
		}
	}
	return 0, false
}

// Master returns the master unit's port pair, for attaching to the port bus.
func (p *PIC) Master() *PortPair { return &PortPair{u: &p.master, clear: clearCascade(p)} }

// Slave returns the slave unit's port pair.
func (p *PIC) Slave() *PortPair { return &PortPair{u: &p.slave} }

// clearCascade lets the master's ISR-clearing EOI also retire a cascade
// line's ISR bit once the slave itself has no more lines in service.
func clearCascade(p *PIC) func() {
	return func() {
		if p.slave.isr == 0 {
			p.master.isr &^= 1 << cascadeLine
		}
	}
}

// PortPair wires one unit's even/odd port pair (command/status and
// data/mask) onto the ioport.Bus via ioport.Port's InByte/OutByte.
type PortPair struct {
	u     *unit
	clear func() // optional: called after a non-specific EOI retires ISR
}

// InByte implements ioport.Port for the even port (0x20/0xA0): OCW3
// read-select chooses IRR or ISR.
func (pp *PortPair) InByte(_ uint16) uint8 {
	if pp.u.readISR {
		return pp.u.isr
	}
	return pp.u.irr
}

// OutByte implements ioport.Port for the even port: ICW1 (bit 4 set)
// starts an initialization sequence; otherwise the byte is OCW2 (EOI)
// or OCW3 (read-register select / poll mode).
func (pp *PortPair) OutByte(_ uint16, v uint8) {
	u := pp.u
	switch {
	case v&0x10 != 0: // ICW1
		u.icw4Needed = v&0x01 != 0
		u.irr, u.imr, u.isr = 0, 0, 0
		u.icwStep = 2 // ICW2 arrives next, on the odd port
	case v&0x08 != 0: // OCW3
		if v&0x02 != 0 {
			u.readISR = v&0x01 != 0
		}
	default: // OCW2: EOI family
		switch v >> 5 {
		case 0x01: // non-specific EOI: clear the highest-priority in-service bit
			for i := 0; i < 8; i++ {
				bit := uint8(1) << uint(i)
				if u.isr&bit != 0 {
					u.isr &^= bit
					break
				}
			}
			if pp.clear != nil {
				pp.clear()
			}
		case 0x03: // specific EOI: clear the named line
			bit := uint8(1) << (v & 0x07)
			u.isr &^= bit
			if pp.clear != nil {
				pp.clear()
			}
		}
	}
}

// DataInByte implements the odd port (0x21/0xA1) read: the IMR.
func (pp *PortPair) DataInByte(_ uint16) uint8 { return pp.u.imr }

// DataOutByte implements the odd port write: ICW2/ICW3/ICW4 while an
// initialization sequence is in progress, else a new IMR value.
func (pp *PortPair) DataOutByte(_ uint16, v uint8) {
	u := pp.u
	switch u.icwStep {
	case 2:
		u.intOffset = v &^ 0x07
		u.icwStep = 3 // ICW3 always follows on this simplified cascade wiring
	case 3:
		if u.icw4Needed {
			u.icwStep = 4
		} else {
			u.icwStep = 0
		}
	case 4:
		u.icwStep = 0
	default:
		u.imr = v
	}
}

// dataPort adapts DataInByte/DataOutByte to the ioport.Port shape so the
// odd port can be attached to the bus as its own device.
type dataPort struct{ pp *PortPair }

func (d dataPort) InByte(port uint16) uint8     { return d.pp.DataInByte(port) }
func (d dataPort) OutByte(port uint16, v uint8) { d.pp.DataOutByte(port, v) }

// DataPort returns the odd-port view of pp.
func (pp *PortPair) DataPort() dataPort { return dataPort{pp: pp} }
