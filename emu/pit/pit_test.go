/*
   x86emu - PIT tests.

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

package pit

import "testing"

type fakePIC struct{ count int }

func (f *fakePIC) DoIRQ(n int) {
	if n == 0 {
		f.count++
	}
}

func TestChannel0PeriodicIRQ(t *testing.T) {
	pic := &fakePIC{}
	p := New(pic)

	p.OutByte(0x43, 0x36) // channel 0, lo/hi access, mode 3, binary
	p.OutByte(0x40, 100)
	p.OutByte(0x40, 0)

	p.Tick(250)
	if pic.count != 2 {
		t.Errorf("irq count = %d, want 2 (250 ticks / 100-tick period)", pic.count)
	}
}

func TestLatchedReadback(t *testing.T) {
	p := New(nil)
	p.OutByte(0x43, 0x30) // channel 0, lo/hi access, mode 0
	p.OutByte(0x40, 0x34)
	p.OutByte(0x40, 0x12) // reload = 0x1234

	p.Tick(0x10)
	p.OutByte(0x43, 0x00) // latch channel 0

	lo := p.InByte(0x40)
	hi := p.InByte(0x40)
	got := uint16(lo) | uint16(hi)<<8
	want := uint16(0x1234 - 0x10)
	if got != want {
		t.Errorf("latched counter = %#04x, want %#04x", got, want)
	}
}

func TestOneShotModeStopsAtZero(t *testing.T) {
	pic := &fakePIC{}
	p := New(pic)
	p.OutByte(0x43, 0x30) // mode 0: interrupt on terminal count, one-shot
	p.OutByte(0x40, 5)
	p.OutByte(0x40, 0)

	p.Tick(20)
	if pic.count != 1 {
		t.Errorf("one-shot channel should fire exactly once, got %d", pic.count)
	}
}
