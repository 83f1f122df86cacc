/*
   x86emu - RTC tests.

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

package rtc

import (
	"testing"
	"time"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestBCDTimeFields(t *testing.T) {
	fixed := time.Date(2026, time.July, 30, 13, 45, 9, 0, time.UTC)
	r := New(640, 0, fixedClock(fixed))

	r.OutByte(0x70, regSeconds)
	if got := r.InByte(0x71); got != 0x09 {
		t.Errorf("seconds = %#02x, want 0x09", got)
	}
	r.OutByte(0x70, regMinutes)
	if got := r.InByte(0x71); got != 0x45 {
		t.Errorf("minutes = %#02x, want 0x45", got)
	}
	r.OutByte(0x70, regHours)
	if got := r.InByte(0x71); got != 0x13 {
		t.Errorf("hours = %#02x, want 0x13", got)
	}
}

func TestStatusDefaults(t *testing.T) {
	r := New(640, 0, fixedClock(time.Now()))
	r.OutByte(0x70, regStatusA)
	if got := r.InByte(0x71); got != 0x26 {
		t.Errorf("status A = %#02x, want 0x26", got)
	}
	r.OutByte(0x70, regStatusB)
	if got := r.InByte(0x71); got != 0x02 {
		t.Errorf("status B = %#02x, want 0x02", got)
	}
	r.OutByte(0x70, regStatusD)
	if got := r.InByte(0x71); got != 0x80 {
		t.Errorf("status D = %#02x, want 0x80", got)
	}
}

func TestStatusCReadAndClear(t *testing.T) {
	r := New(640, 0, fixedClock(time.Now()))
	r.ram[regStatusC] = 0xf0
	r.OutByte(0x70, regStatusC)
	if got := r.InByte(0x71); got != 0xf0 {
		t.Errorf("status C first read = %#02x, want 0xf0", got)
	}
	if got := r.InByte(0x71); got != 0 {
		t.Errorf("status C should clear on read, got %#02x", got)
	}
}

func TestChecksumRecomputed(t *testing.T) {
	r := New(640, 15360, fixedClock(time.Now()))
	before := uint16(r.ram[0x2e])<<8 | uint16(r.ram[0x2f])

	r.OutByte(0x70, 0x12)
	r.OutByte(0x71, 0x55)

	after := uint16(r.ram[0x2e])<<8 | uint16(r.ram[0x2f])
	if after == before {
		t.Errorf("checksum should change after writing a configuration byte")
	}

	var sum uint16
	for i := 0x10; i <= 0x2d; i++ {
		sum += uint16(r.ram[i])
	}
	if after != sum {
		t.Errorf("checksum = %#04x, want %#04x", after, sum)
	}
}

func TestMemorySizeFields(t *testing.T) {
	r := New(640, 15360, fixedClock(time.Now()))
	if got := uint16(r.ram[0x15]) | uint16(r.ram[0x16])<<8; got != 640 {
		t.Errorf("base memory KB = %d, want 640", got)
	}
	if got := uint16(r.ram[0x17]) | uint16(r.ram[0x18])<<8; got != 15360 {
		t.Errorf("extended memory KB = %d, want 15360", got)
	}
}
