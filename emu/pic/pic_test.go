/*
   x86emu - PIC tests.

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

package pic

import "testing"

func TestDoIRQAndNextIntr(t *testing.T) {
	p := New()
	p.DoIRQ(3)
	v, ok := p.NextIntr()
	if !ok {
		t.Fatalf("expected pending interrupt")
	}
	if v != 0x08+3 {
		t.Errorf("vector = %#02x, want %#02x", v, 0x08+3)
	}
	if _, ok := p.NextIntr(); ok {
		t.Errorf("NextIntr should have nothing pending after delivery")
	}
}

func TestPriorityLowestLineWins(t *testing.T) {
	p := New()
	p.DoIRQ(5)
	p.DoIRQ(1)
	v, ok := p.NextIntr()
	if !ok || v != 0x08+1 {
		t.Errorf("vector = %#02x, ok=%v, want %#02x", v, ok, 0x08+1)
	}
}

func TestMaskedLineNotDelivered(t *testing.T) {
	p := New()
	p.Slave().DataPort().OutByte(0xa1, 0) // odd port: no ICW in progress, sets IMR
	pp := p.Master()
	pp.DataPort().OutByte(0x21, 1<<4) // mask line 4
	p.DoIRQ(4)
	if _, ok := p.NextIntr(); ok {
		t.Errorf("masked line should not be posted to IRR")
	}
}

func TestCascadeToSlave(t *testing.T) {
	p := New()
	p.DoIRQ(10) // slave line 2 -> master cascade line 2
	v, ok := p.NextIntr()
	if !ok {
		t.Fatalf("expected cascaded interrupt")
	}
	if v != 0x70+2 {
		t.Errorf("vector = %#02x, want %#02x", v, 0x70+2)
	}
}

func TestNonSpecificEOI(t *testing.T) {
	p := New()
	p.DoIRQ(0)
	if _, ok := p.NextIntr(); !ok {
		t.Fatalf("expected pending interrupt")
	}
	if p.master.isr&1 == 0 {
		t.Fatalf("ISR should be set while in service")
	}
	p.Master().OutByte(0x20, 0x20) // non-specific EOI
	if p.master.isr != 0 {
		t.Errorf("EOI should clear ISR, got %#02x", p.master.isr)
	}
}

func TestICW1ResetsState(t *testing.T) {
	p := New()
	p.master.irr = 0xff
	p.master.imr = 0xff
	p.Master().OutByte(0x20, 0x11) // ICW1, ICW4 to follow
	if p.master.irr != 0 || p.master.imr != 0 {
		t.Errorf("ICW1 should clear IRR/IMR")
	}
	pp := p.Master()
	pp.DataPort().OutByte(0x21, 0x08) // ICW2: vector base 0x08
	pp.DataPort().OutByte(0x21, 0x04) // ICW3: ignored in this simplified model
	pp.DataPort().OutByte(0x21, 0x01) // ICW4
	pp.DataPort().OutByte(0x21, 0x02) // now a normal IMR write
	if p.master.imr != 0x02 {
		t.Errorf("IMR after ICW sequence = %#02x, want 0x02", p.master.imr)
	}
}
