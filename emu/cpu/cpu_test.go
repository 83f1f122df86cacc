/*
   x86emu - CPU core tests.

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

import "testing"

// fakeMem is a flat 1MB backing array, enough to exercise real-mode
// addressing without reaching for the membus package - the core's own
// tests get their own tiny memory stub, the same way the teacher's
// cpu_test.go never imports emu/memory for its register-level tests.
type fakeMem [1 << 20]byte

func (m *fakeMem) ReadByte(addr uint32) uint8     { return m[addr&0xfffff] }
func (m *fakeMem) WriteByte(addr uint32, v uint8)  { m[addr&0xfffff] = v }
func (m *fakeMem) ReadWord(addr uint32) uint16 {
	return uint16(m[addr&0xfffff]) | uint16(m[(addr+1)&0xfffff])<<8
}
func (m *fakeMem) WriteWord(addr uint32, v uint16) {
	m[addr&0xfffff] = uint8(v)
	m[(addr+1)&0xfffff] = uint8(v >> 8)
}

type fakePorts struct {
	in  map[uint16]uint8
	out map[uint16]uint8
}

func newFakePorts() *fakePorts {
	return &fakePorts{in: map[uint16]uint8{}, out: map[uint16]uint8{}}
}
func (p *fakePorts) InByte(port uint16) uint8      { return p.in[port] }
func (p *fakePorts) OutByte(port uint16, v uint8)   { p.out[port] = v }
func (p *fakePorts) InWord(port uint16) uint16      { return uint16(p.InByte(port)) | uint16(p.InByte(port+1))<<8 }
func (p *fakePorts) OutWord(port uint16, v uint16) {
	p.OutByte(port, uint8(v))
	p.OutByte(port+1, uint8(v>>8))
}

type fakePIC struct {
	vector  uint8
	pending bool
}

func (f *fakePIC) NextIntr() (uint8, bool) {
	if !f.pending {
		return 0, false
	}
	f.pending = false
	return f.vector, true
}

type fakeA20 struct{ enabled bool }

func (a *fakeA20) Enabled() bool { return a.enabled }

// newTestCPU returns a CPU reset to power-on state (CS:IP = F000:FFF0)
// with test-double collaborators, and the memory it can load code into.
func newTestCPU() (*CPU, *fakeMem) {
	mem := &fakeMem{}
	c := New(mem, newFakePorts(), &fakePIC{}, &fakeA20{}, nil)
	return c, mem
}

// loadAt writes code at the CPU's current CS:IP physical address.
func loadAt(c *CPU, mem *fakeMem, code ...uint8) {
	phys := uint32(c.Seg(CS))<<4 + uint32(c.IP())
	for i, b := range code {
		mem.WriteByte(phys+uint32(i), b)
	}
}

func TestMovImmAndHalt(t *testing.T) {
	c, mem := newTestCPU()
	loadAt(c, mem, 0xb8, 0x34, 0x12, 0xf4) // MOV AX,0x1234 ; HLT

	c.Step()
	if got := c.Reg16(AX); got != 0x1234 {
		t.Fatalf("AX = %#04x, want 0x1234", got)
	}
	if c.Halted() {
		t.Fatal("CPU halted before executing HLT")
	}

	c.Step()
	if !c.Halted() {
		t.Fatal("CPU not halted after HLT")
	}

	// Step must be a no-op once halted.
	ip := c.IP()
	c.Step()
	if c.IP() != ip {
		t.Fatalf("IP advanced past HLT: %#04x -> %#04x", ip, c.IP())
	}
}

func TestAddSetsZeroAndCarry(t *testing.T) {
	c, mem := newTestCPU()
	c.SetRegLo8(AX, 0xff)
	loadAt(c, mem, 0x04, 0x01) // ADD AL,1

	c.Step()
	if got := c.RegLo8(AX); got != 0 {
		t.Fatalf("AL = %#02x, want 0", got)
	}
	if !c.flag(FlagZF) {
		t.Error("ZF not set after 0xff+1 wrapped to 0")
	}
	if !c.flag(FlagCF) {
		t.Error("CF not set after 0xff+1 carried out")
	}
}

func TestSoftwareInterruptRealModeVector(t *testing.T) {
	c, mem := newTestCPU()
	// IVT entry for vector 0x21: IP=0x5678, CS=0x9abc.
	mem.WriteWord(0x21*4, 0x5678)
	mem.WriteWord(0x21*4+2, 0x9abc)
	loadAt(c, mem, 0xcd, 0x21) // INT 0x21

	startFlags := c.Flags()
	c.Step()

	if c.Seg(CS) != 0x9abc || c.IP() != 0x5678 {
		t.Fatalf("CS:IP = %04x:%04x, want 9abc:5678", c.Seg(CS), c.IP())
	}
	if c.flag(FlagIF) || c.flag(FlagTF) {
		t.Error("IF/TF should be cleared on real-mode interrupt gate entry")
	}
	// The pushed FLAGS/CS/IP should be readable back off the new stack:
	// the return address is just past the two-byte INT instruction.
	poppedIP := c.pop()
	poppedCS := c.pop()
	poppedFlags := c.pop()
	const wantRetIP = 0xfff0 + 2
	if poppedIP != wantRetIP || poppedCS != 0xf000 {
		t.Errorf("pushed return address = %04x:%04x, want f000:%04x", poppedCS, poppedIP, wantRetIP)
	}
	if poppedFlags != startFlags {
		t.Errorf("pushed flags = %#04x, want %#04x", poppedFlags, startFlags)
	}
}

func TestRegisteredCallbackPreemptsGateEntry(t *testing.T) {
	c, mem := newTestCPU()
	loadAt(c, mem, 0xcd, 0x21)

	var gotVector uint8
	c.RegisterCallback(0x21, func(v uint8) { gotVector = v })

	startCS := c.Seg(CS)
	const wantIP = 0xfff0 + 2 // two opcode bytes (0xcd, vector) fetched
	c.Step()

	if gotVector != 0x21 {
		t.Fatalf("callback vector = %#02x, want 0x21", gotVector)
	}
	if c.Seg(CS) != startCS || c.IP() != wantIP {
		t.Errorf("callback dispatch should not touch CS:IP, got %04x:%04x", c.Seg(CS), c.IP())
	}
}

func TestCheckExternalIRQDeliversWhenEnabled(t *testing.T) {
	c, mem := newTestCPU()
	mem.WriteWord(0x08*4, 0x1111)
	mem.WriteWord(0x08*4+2, 0x2222)
	loadAt(c, mem, 0xfb) // STI
	c.Step()

	pic := c.pic.(*fakePIC)
	pic.vector = 0x08
	pic.pending = true

	c.CheckExternalIRQ()
	if c.Seg(CS) != 0x2222 || c.IP() != 0x1111 {
		t.Fatalf("external IRQ not delivered: CS:IP = %04x:%04x", c.Seg(CS), c.IP())
	}
}

func TestCheckExternalIRQMaskedByIF(t *testing.T) {
	c, _ := newTestCPU()
	pic := c.pic.(*fakePIC)
	pic.vector = 0x08
	pic.pending = true

	c.CheckExternalIRQ() // IF is clear at power-on: must not be delivered.
	if !pic.pending {
		t.Error("external IRQ consumed while IF was clear")
	}
}

func TestResetRestoresPowerOnState(t *testing.T) {
	c, mem := newTestCPU()
	loadAt(c, mem, 0xb8, 0xff, 0xff) // MOV AX,0xffff
	c.Step()

	c.Reset()
	if c.Reg16(AX) != 0 {
		t.Errorf("AX = %#04x after reset, want 0", c.Reg16(AX))
	}
	if c.Seg(CS) != 0xf000 || c.IP() != 0xfff0 {
		t.Errorf("CS:IP = %04x:%04x after reset, want f000:fff0", c.Seg(CS), c.IP())
	}
	if c.Halted() {
		t.Error("CPU halted after reset")
	}
}

func TestTripleFaultResets(t *testing.T) {
	c, mem := newTestCPU()
	loadAt(c, mem, 0xb8, 0xff, 0xff) // MOV AX,0xffff, marker to detect reset
	c.Step()

	c.faultInFlight = true
	c.interrupt(vecDoubleFault)

	if c.Reg16(AX) != 0 {
		t.Error("double fault while one was already in flight should reset the CPU")
	}
	if c.faultInFlight {
		t.Error("faultInFlight should be cleared by reset")
	}
}

func TestInOutPorts(t *testing.T) {
	c, mem := newTestCPU()
	ports := c.io.(*fakePorts)
	ports.in[0x60] = 0x42
	loadAt(c, mem, 0xe4, 0x60, 0xe6, 0x61) // IN AL,0x60 ; OUT 0x61,AL

	c.Step()
	if got := c.RegLo8(AX); got != 0x42 {
		t.Fatalf("AL = %#02x after IN, want 0x42", got)
	}
	c.Step()
	if got := ports.out[0x61]; got != 0x42 {
		t.Fatalf("port 0x61 = %#02x after OUT, want 0x42", got)
	}
}
