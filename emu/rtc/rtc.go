/*
   x86emu - MC146818-class real-time clock / CMOS RAM.

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

// Package rtc implements the indexed 128-byte CMOS real-time clock of
// spec.md §6: ports 0x70/0x71, BCD time fields read live off the host
// clock, and the checksum the BIOS setup utility expects over the
// configuration bytes at 0x10-0x2D.
package rtc

import "time"

// register indices named by spec.md §6.
const (
	regSeconds = 0x00
	regMinutes = 0x02
	regHours   = 0x04
	regWeekday = 0x06
	regDay     = 0x07
	regMonth   = 0x08
	regYear    = 0x09
	regStatusA = 0x0a
	regStatusB = 0x0b
	regStatusC = 0x0c
	regStatusD = 0x0d
	regCentury = 0x14

	ramSize = 128
)

// Clock lets tests inject a fixed time; defaults to time.Now.
type Clock func() time.Time

// RTC is the CMOS image and its index latch.
type RTC struct {
	index uint8
	ram   [ramSize]byte
	now   Clock
}

// New returns an RTC with the documented status-register defaults and
// base/extended memory sizes (in KB) recorded at their CMOS offsets.
func New(baseKB, extKB uint16, now Clock) *RTC {
	if now == nil {
		now = time.Now
	}
	r := &RTC{now: now}
	r.ram[regStatusA] = 0x26
	r.ram[regStatusB] = 0x02
	r.ram[regStatusD] = 0x80
	r.ram[regCentury] = 0x25
	r.ram[0x15] = uint8(baseKB)
	r.ram[0x16] = uint8(baseKB >> 8)
	r.ram[0x17] = uint8(extKB)
	r.ram[0x18] = uint8(extKB >> 8)
	r.ram[0x30] = uint8(extKB)
	r.ram[0x31] = uint8(extKB >> 8)
	r.recomputeChecksum()
	return r
}

// LoadImage overwrites the CMOS RAM with a previously saved battery-
// backed image, as many bytes as are supplied up to the 128-byte RAM
// size, and recomputes the configuration checksum over the result.
func (r *RTC) LoadImage(data []byte) {
	copy(r.ram[:], data)
	r.recomputeChecksum()
}

// Image returns a copy of the current CMOS RAM, suitable for writing
// back to the battery-backed image file the RTC option names.
func (r *RTC) Image() []byte {
	img := make([]byte, ramSize)
	copy(img, r.ram[:])
	return img
}

func toBCD(v int) uint8 {
	return uint8(((v / 10) % 10 << 4) | (v % 10))
}

// InByte implements ioport.Port for ports 0x70 and 0x71.
func (r *RTC) InByte(port uint16) uint8 {
	if port == 0x70 {
		return r.index
	}
	return r.read(r.index)
}

// OutByte implements ioport.Port for ports 0x70 and 0x71.
func (r *RTC) OutByte(port uint16, v uint8) {
	if port == 0x70 {
		r.index = v & 0x7f
		return
	}
	r.write(r.index, v)
}

func (r *RTC) read(idx uint8) uint8 {
	now := r.now()
	switch idx {
	case regSeconds:
		return toBCD(now.Second())
	case regMinutes:
		return toBCD(now.Minute())
	case regHours:
		return toBCD(now.Hour())
	case regWeekday:
		return toBCD(int(now.Weekday()) + 1)
	case regDay:
		return toBCD(now.Day())
	case regMonth:
		return toBCD(int(now.Month()))
	case regYear:
		return toBCD(now.Year() % 100)
	case regStatusC:
		v := r.ram[regStatusC]
		r.ram[regStatusC] = 0 // read-and-clear
		return v
	}
	if int(idx) >= ramSize {
		return 0xff
	}
	return r.ram[idx]
}

func (r *RTC) write(idx uint8, v uint8) {
	if int(idx) >= ramSize {
		return
	}
	r.ram[idx] = v
	if idx >= 0x10 && idx <= 0x2d {
		r.recomputeChecksum()
	}
}

// recomputeChecksum sums bytes 0x10-0x2D and stores the 16-bit result
// big-endian at 0x2E/0x2F, the layout the BIOS setup checksum check
// expects.
func (r *RTC) recomputeChecksum() {
	var sum uint16
	for i := 0x10; i <= 0x2d; i++ {
		sum += uint16(r.ram[i])
	}
	r.ram[0x2e] = uint8(sum >> 8)
	r.ram[0x2f] = uint8(sum)
}
