/*
   x86emu - Physical memory bus.

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

// Package membus implements the flat physical memory bus the CPU core
// reads instructions and data from. The core reaches it only through the
// cpu.Memory interface, as it reaches the port bus, the PIC and the A20
// gate through small interfaces of their own.
package membus

const (
	// Size is the physical address space: 16MB, the 80286's 24-bit bus.
	Size = 1 << 24
	// AddrMask masks an address down to the 24-bit physical range.
	AddrMask = Size - 1
)

// Bus is a flat byte-addressable physical memory.
type Bus struct {
	mem [Size]byte
}

// New returns a zeroed memory bus.
func New() *Bus {
	return &Bus{}
}

// ReadByte returns the byte at addr (wrapping into the 24-bit bus).
func (b *Bus) ReadByte(addr uint32) uint8 {
	return b.mem[addr&AddrMask]
}

// WriteByte stores a byte at addr.
func (b *Bus) WriteByte(addr uint32, v uint8) {
	b.mem[addr&AddrMask] = v
}

// ReadWord synthesizes a little-endian 16-bit read from two byte reads.
func (b *Bus) ReadWord(addr uint32) uint16 {
	lo := b.ReadByte(addr)
	hi := b.ReadByte(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

// WriteWord synthesizes a little-endian 16-bit write from two byte writes.
func (b *Bus) WriteWord(addr uint32, v uint16) {
	b.WriteByte(addr, uint8(v&0xff))
	b.WriteByte(addr+1, uint8(v>>8))
}

// LoadImage copies data into the bus starting at addr, for BIOS/ROM image
// loading. Bytes that would fall outside the bus are silently dropped.
func (b *Bus) LoadImage(addr uint32, data []byte) {
	for i, v := range data {
		a := addr + uint32(i)
		if a >= Size {
			return
		}
		b.mem[a] = v
	}
}
