/*
   x86emu - I/O port bus.

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

// Package ioport implements the 16-bit I/O port space the CPU's IN/OUT
// family of instructions address, and the Port interface a device
// registers against to claim one or more ports.
package ioport

// Port is implemented by any device attached to the port bus.
type Port interface {
	InByte(port uint16) uint8
	OutByte(port uint16, v uint8)
}

// Bus routes byte and word port accesses to registered devices. Word
// accesses synthesize two byte accesses, little-endian, same as the
// physical memory bus.
type Bus struct {
	ports map[uint16]Port
}

// New returns an empty port bus.
func New() *Bus {
	return &Bus{ports: make(map[uint16]Port)}
}

// Attach registers dev to handle the given port.
func (b *Bus) Attach(port uint16, dev Port) {
	b.ports[port] = dev
}

// InByte reads a byte from port, or 0xff if nothing is attached (open bus).
func (b *Bus) InByte(port uint16) uint8 {
	if dev, ok := b.ports[port]; ok {
		return dev.InByte(port)
	}
	return 0xff
}

// OutByte writes a byte to port; a no-op if nothing is attached.
func (b *Bus) OutByte(port uint16, v uint8) {
	if dev, ok := b.ports[port]; ok {
		dev.OutByte(port, v)
	}
}

// InWord reads a little-endian word across port and port+1.
func (b *Bus) InWord(port uint16) uint16 {
	lo := b.InByte(port)
	hi := b.InByte(port + 1)
	return uint16(lo) | uint16(hi)<<8
}

// OutWord writes a little-endian word across port and port+1.
func (b *Bus) OutWord(port uint16, v uint16) {
	b.OutByte(port, uint8(v&0xff))
	b.OutByte(port+1, uint8(v>>8))
}
