/*
   x86emu - 80287-compatible floating point unit.

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

import "math"

// resetFPU implements the FPU half of §4.7: control=0x037F, status=0,
// tag=0xFFFF (every physical slot empty).
func (c *CPU) resetFPU() {
	c.fpu = fpuState{control: 0x037f, status: 0}
	for i := range c.fpu.tag {
		c.fpu.tag[i] = tagEmpty
	}
}

// logical_to_physical(i, top) = (i + top) & 7, the one helper standing
// in for direct pointer arithmetic into the stack via top.
func (f *fpuState) phys(logical uint8) uint8 { return logicalToPhysical(logical, f.top()) }

// st reads logical register i (ST(i)), returning −NaN and setting the
// stack-underflow bits if the physical slot is marked empty.
func (c *CPU) st(i uint8) float64 {
	p := c.fpu.phys(i)
	if c.fpu.tag[p] == tagEmpty {
		c.fpu.status |= swIE | swSF
		return math.Copysign(math.NaN(), -1)
	}
	return c.fpu.st[p]
}

func (c *CPU) setSt(i uint8, v float64) {
	p := c.fpu.phys(i)
	c.fpu.st[p] = v
	c.fpu.tag[p] = classifyTag(v)
}

func classifyTag(v float64) uint8 {
	switch {
	case v == 0:
		return tagZero
	case math.IsNaN(v) || math.IsInf(v, 0):
		return tagSpecial
	default:
		return tagValid
	}
}

// push implements the FPU push discipline of §4.5: overflow into a
// non-empty slot at logical −1 sets {IE, C1, SF} before top moves.
func (c *CPU) fpush(v float64) {
	newTop := (c.fpu.top() - 1) & 7
	if c.fpu.tag[newTop] != tagEmpty {
		c.fpu.status |= swIE | swC1 | swSF
	}
	c.fpu.setTop(newTop)
	c.fpu.st[newTop] = v
	c.fpu.tag[newTop] = classifyTag(v)
}

// fpop implements the pop discipline: underflow on an empty top sets
// {IE, SF} and returns −NaN; otherwise the slot is marked empty and
// top advances.
func (c *CPU) fpop() float64 {
	top := c.fpu.top()
	if c.fpu.tag[top] == tagEmpty {
		c.fpu.status |= swIE | swSF
		return math.Copysign(math.NaN(), -1)
	}
	v := c.fpu.st[top]
	c.fpu.tag[top] = tagEmpty
	c.fpu.setTop((top + 1) & 7)
	return v
}

// fpuDispatch implements the escape-opcode decode of §4.5: opcode in
// 0xD8-0xDF; the ModR/M byte is fetched here. The decode key is
// ((opcode&7)<<4)|(ismemory<<3)|reg_field, exactly as specified; rows
// are handled per opcode&7 below since Go's switch reads cleaner than
// a 128-entry function array for the mixed-width memory operand forms.
func (c *CPU) fpuDispatch(opcode uint8) {
	if c.msw&mswTS != 0 {
		c.ip = c.pfx.start
		c.interrupt(vecDeviceNA)
		return
	}
	d := c.decodeModRM()
	row := opcode & 7
	isMem := d.mod != 3
	_ = fpuKey(row, isMem, d.reg) // computed for parity with the spec's decode key; dispatch below mirrors it

	switch row {
	case 0:
		c.fpuD8(&d, isMem)
	case 1:
		c.fpuD9(&d, isMem)
	case 2:
		c.fpuDA(&d, isMem)
	case 3:
		c.fpuDB(&d, isMem)
	case 4:
		c.fpuDC(&d, isMem)
	case 5:
		c.fpuDD(&d, isMem)
	case 6:
		c.fpuDE(&d, isMem)
	case 7:
		c.fpuDF(&d, isMem)
	}
}

func fpuKey(row uint8, isMem bool, reg uint8) uint8 {
	mem := uint8(0)
	if isMem {
		mem = 1
	}
	return (row << 4) | (mem << 3) | reg
}

func (c *CPU) fpuMemAddr(d *decoded) uint32 {
	seg, off := c.eaAddr(d)
	phys, fault := c.translate(seg, off)
	if fault != 0 {
		c.interrupt(fault)
	}
	return phys
}

func (c *CPU) loadFloat32(d *decoded) float64 {
	phys := c.fpuMemAddr(d)
	bits := uint32(c.mem.ReadWord(uint32(phys))) | uint32(c.mem.ReadWord(phys+2))<<16
	return float64(math.Float32frombits(bits))
}

func (c *CPU) storeFloat32(d *decoded, v float64) {
	phys := c.fpuMemAddr(d)
	bits := math.Float32bits(float32(v))
	c.mem.WriteWord(phys, uint16(bits))
	c.mem.WriteWord(phys+2, uint16(bits>>16))
}

func (c *CPU) loadFloat64(d *decoded) float64 {
	phys := c.fpuMemAddr(d)
	var bits uint64
	for i := 0; i < 4; i++ {
		bits |= uint64(c.mem.ReadWord(phys+uint32(i)*2)) << (16 * i)
	}
	return math.Float64frombits(bits)
}

func (c *CPU) storeFloat64(d *decoded, v float64) {
	phys := c.fpuMemAddr(d)
	bits := math.Float64bits(v)
	for i := 0; i < 4; i++ {
		c.mem.WriteWord(phys+uint32(i)*2, uint16(bits>>(16*i)))
	}
}

func (c *CPU) loadInt16(d *decoded) float64 {
	phys := c.fpuMemAddr(d)
	return float64(int16(c.mem.ReadWord(phys)))
}

func (c *CPU) storeInt16(d *decoded, v float64) {
	phys := c.fpuMemAddr(d)
	c.mem.WriteWord(phys, uint16(int16(v)))
}

func (c *CPU) loadInt32(d *decoded) float64 {
	phys := c.fpuMemAddr(d)
	lo := c.mem.ReadWord(phys)
	hi := c.mem.ReadWord(phys + 2)
	return float64(int32(uint32(lo) | uint32(hi)<<16))
}

func (c *CPU) storeInt32(d *decoded, v float64) {
	phys := c.fpuMemAddr(d)
	iv := uint32(int32(v))
	c.mem.WriteWord(phys, uint16(iv))
	c.mem.WriteWord(phys+2, uint16(iv>>16))
}

func (c *CPU) loadInt64(d *decoded) float64 {
	phys := c.fpuMemAddr(d)
	var bits uint64
	for i := 0; i < 4; i++ {
		bits |= uint64(c.mem.ReadWord(phys+uint32(i)*2)) << (16 * i)
	}
	return float64(int64(bits))
}

func (c *CPU) storeInt64(d *decoded, v float64) {
	phys := c.fpuMemAddr(d)
	bits := uint64(int64(v))
	for i := 0; i < 4; i++ {
		c.mem.WriteWord(phys+uint32(i)*2, uint16(bits>>(16*i)))
	}
}

// arith applies one of the six basic operations to (a, b).
func fpArith(op uint8, a, b float64) float64 {
	switch op {
	case 0:
		return a + b
	case 1:
		return a * b
	case 4:
		return a - b
	case 5:
		return b - a // the forward "subtract reversed" operand order
	case 6:
		return a / b
	case 7:
		return b / a
	}
	return a
}

// fpuD8: memory form operates on a float32 at EA; register form
// operates ST(0) against ST(rm). reg selects add/mul/com/comp/sub/
// subr/div/divr.
func (c *CPU) fpuD8(d *decoded, isMem bool) {
	st0 := c.st(0)
	var b float64
	if isMem {
		b = c.loadFloat32(d)
	} else {
		b = c.st(d.rm)
	}
	switch d.reg {
	case 0, 1, 4, 5, 6, 7:
		c.setSt(0, fpArith(d.reg, st0, b))
	case 2: // FCOM
		c.fcompare(st0, b, false)
	case 3: // FCOMP
		c.fcompare(st0, b, true)
	}
}

// fpuD9 covers loads/control ops; reg-form (mod==3) selects among
// FLD/FXCH/FNOP/stack-free-form/FCHS/FABS/FTST/FXAM/constants/
// transcendentals keyed by rm, matching the classic D9 register map.
func (c *CPU) fpuD9(d *decoded, isMem bool) {
	if isMem {
		switch d.reg {
		case 0: // FLD m32real
			c.fpush(c.loadFloat32(d))
		case 2: // FST m32real
			c.storeFloat32(d, c.st(0))
		case 3: // FSTP m32real
			c.storeFloat32(d, c.fpop())
		case 4: // FLDENV (treated as FLDCW-equivalent load of control word only)
			phys := c.fpuMemAddr(d)
			c.fpu.control = c.mem.ReadWord(phys)
		case 5: // FLDCW
			phys := c.fpuMemAddr(d)
			c.fpu.control = c.mem.ReadWord(phys)
		case 6: // FSTENV
			phys := c.fpuMemAddr(d)
			c.mem.WriteWord(phys, c.fpu.control)
		case 7: // FSTCW
			phys := c.fpuMemAddr(d)
			c.mem.WriteWord(phys, c.fpu.control)
		}
		return
	}
	switch d.reg {
	case 0: // FLD ST(i)
		c.fpush(c.st(d.rm))
	case 1: // FXCH
		a, b := c.st(0), c.st(d.rm)
		c.setSt(0, b)
		c.setSt(d.rm, a)
	case 2: // FNOP (D9 D0)
	case 4:
		switch d.rm {
		case 0: // FCHS
			c.setSt(0, -c.st(0))
		case 1: // FABS
			c.setSt(0, math.Abs(c.st(0)))
		case 4: // FTST
			c.fcompare(c.st(0), 0, false)
		case 5: // FXAM
			c.fxam()
		}
	case 5: // constant loads keyed by rm
		c.fpush(fpuConstants[d.rm&7])
	case 6: // transcendentals
		c.ftranscend1(d.rm)
	case 7:
		c.ftranscend2(d.rm)
	}
}

var fpuConstants = [8]float64{
	1.0,                 // FLD1
	math.Log2(10),       // FLDL2T
	math.Log2(math.E),   // FLDL2E
	math.Pi,             // FLDPI
	1.0 / math.Log2(10), // FLDLG2
	1.0 / math.Log2(math.E), // FLDLN2
	0.0,                 // FLDZ
	0.0,
}

// ftranscend1 implements the D9/F0-F7 row: F2XM1, FYL2X, FYL2XP1,
// FPTAN, FPATAN, FXTRACT, FPREM, FYL2XP1 variants keyed by the rm field;
// domain restrictions raise IE and leave the stack unchanged.
func (c *CPU) ftranscend1(reg uint8) {
	x := c.st(0)
	switch reg {
	case 0: // F2XM1, domain 0<=x<=0.5
		if x < 0 || x > 0.5 {
			c.fpu.status |= swIE
			return
		}
		c.setSt(0, math.Exp2(x)-1)
	case 1: // FYL2X
		y := c.st(1)
		c.setSt(1, y*math.Log2(x))
		c.fpop()
	case 2: // FYL2XP1, domain |x| < 1-sqrt(0.5)
		if math.Abs(x) >= 1-math.Sqrt2/2 {
			c.fpu.status |= swIE
			return
		}
		y := c.st(1)
		c.setSt(1, y*math.Log2(x+1))
		c.fpop()
	case 3: // FPTAN, domain |x| < pi/4
		if math.Abs(x) >= math.Pi/4 {
			c.fpu.status |= swIE
			return
		}
		c.setSt(0, math.Tan(x))
		c.fpush(1.0)
	case 4: // FPATAN, domain |y| <= |x|
		y := c.st(1)
		if math.Abs(y) > math.Abs(x) {
			c.fpu.status |= swIE
			return
		}
		c.setSt(1, math.Atan2(y, x))
		c.fpop()
	case 5: // FXTRACT
		frac, exp := math.Frexp(x)
		c.setSt(0, float64(exp))
		c.fpush(frac)
	case 6: // FPREM
		y := c.st(1)
		c.setSt(0, math.Mod(x, y))
	case 7: // FYL2XP1 duplicate slot on some encodings; treat as no-op
	}
}

// ftranscend2 implements the D9/F8-FF-adjacent row: FSQRT, FSINCOS,
// FRNDINT, FSCALE, FSIN, FCOS and friends, keyed by the rm field.
func (c *CPU) ftranscend2(reg uint8) {
	x := c.st(0)
	switch reg {
	case 0: // FPREM1
		y := c.st(1)
		c.setSt(0, math.Mod(x, y))
	case 1: // FYL2XP1 (alt slot)
	case 2: // FSQRT
		if x < 0 {
			c.fpu.status |= swIE
			return
		}
		c.setSt(0, math.Sqrt(x))
	case 3: // FSINCOS
		c.setSt(0, math.Sin(x))
		c.fpush(math.Cos(x))
	case 4: // FRNDINT
		c.setSt(0, math.Round(x))
	case 5: // FSCALE
		c.setSt(0, x*math.Pow(2, math.Trunc(c.st(1))))
	case 6: // FSIN
		c.setSt(0, math.Sin(x))
	case 7: // FCOS
		c.setSt(0, math.Cos(x))
	}
}

// fpuDA: memory form is a 32-bit integer arithmetic operand; the
// 80287 has no register-form compare-move variants, so register form
// is unassigned (invalid opcode).
func (c *CPU) fpuDA(d *decoded, isMem bool) {
	if !isMem {
		c.interrupt(vecInvalidOp)
		return
	}
	st0 := c.st(0)
	b := c.loadInt32(d)
	switch d.reg {
	case 0, 1, 4, 5, 6, 7:
		c.setSt(0, fpArith(d.reg, st0, b))
	case 2:
		c.fcompare(st0, b, false)
	case 3:
		c.fcompare(st0, b, true)
	}
}

// fpuDB: memory form is a 32-bit integer load/store; register form
// carries the FPU environment commands (FENI/FDISI/FNCLEX/FNINIT).
func (c *CPU) fpuDB(d *decoded, isMem bool) {
	if isMem {
		switch d.reg {
		case 0:
			c.fpush(c.loadInt32(d))
		case 2:
			c.storeInt32(d, c.st(0))
		case 3:
			c.storeInt32(d, c.fpop())
		}
		return
	}
	switch d.rm {
	case 0, 1: // FENI/FDISI: no interrupt masking modeled, accepted as no-ops
	case 2: // FNCLEX
		c.fpu.status &^= swIE | swDE | swZE | swOE | swUE | swPE | swSF | swIR
	case 3: // FNINIT
		c.resetFPU()
	}
}

// fpuDC: memory form is a 64-bit float arithmetic operand. Register
// form preserves the swap documented in §9 open question 1: the
// forward "FSUB"-named slot computes StRm−St0 and the "FSUBR"-named
// slot computes St0−StRm, the reverse of an Intel-faithful encoding.
func (c *CPU) fpuDC(d *decoded, isMem bool) {
	st0 := c.st(0)
	var b float64
	if isMem {
		b = c.loadFloat64(d)
	} else {
		b = c.st(d.rm)
	}
	switch d.reg {
	case 0:
		c.setSt(0, st0+b)
	case 1:
		c.setSt(0, st0*b)
	case 2:
		c.fcompare(st0, b, false)
	case 3:
		c.fcompare(st0, b, true)
	case 4: // OpFsubEstSt — preserved swapped: StRm − St0
		if isMem {
			c.setSt(0, st0-b)
		} else {
			c.setSt(0, b-st0)
		}
	case 5: // OpFsubrEstSt — preserved swapped: St0 − StRm
		if isMem {
			c.setSt(0, b-st0)
		} else {
			c.setSt(0, st0-b)
		}
	case 6:
		c.setSt(0, st0/b)
	case 7:
		c.setSt(0, b/st0)
	}
}

// fpuDD: memory form is a 64-bit float load/store, or FRSTOR/FSAVE;
// register form is FFREE/FST/FSTP.
func (c *CPU) fpuDD(d *decoded, isMem bool) {
	if isMem {
		switch d.reg {
		case 0:
			c.fpush(c.loadFloat64(d))
		case 2:
			c.storeFloat64(d, c.st(0))
		case 3:
			c.storeFloat64(d, c.fpop())
		case 4:
			c.frstor(d)
		case 6:
			c.fsave(d)
		}
		return
	}
	switch d.reg {
	case 0: // FFREE
		p := c.fpu.phys(d.rm)
		c.fpu.tag[p] = tagEmpty
	case 2: // FST ST(i)
		c.setSt(d.rm, c.st(0))
	case 3: // FSTP ST(i)
		c.setSt(d.rm, c.st(0))
		c.fpop()
	}
}

// fpuDE: memory form is a 16-bit integer arithmetic operand; register
// form is the popping arithmetic variants (FADDP/FMULP/.../FCOMPP).
func (c *CPU) fpuDE(d *decoded, isMem bool) {
	if isMem {
		st0 := c.st(0)
		b := c.loadInt16(d)
		switch d.reg {
		case 0, 1, 4, 5, 6, 7:
			c.setSt(0, fpArith(d.reg, st0, b))
		case 2:
			c.fcompare(st0, b, false)
		case 3:
			c.fcompare(st0, b, true)
		}
		return
	}
	if d.reg == 3 && d.rm == 1 { // DE D9: FCOMPP
		a, b := c.st(0), c.st(1)
		c.fcompare(a, b, false)
		c.fpop()
		c.fpop()
		return
	}
	st0 := c.st(0)
	b := c.st(d.rm)
	var r float64
	switch d.reg {
	case 0:
		r = st0 + b
	case 1:
		r = st0 * b
	case 4:
		r = b - st0
	case 5:
		r = st0 - b
	case 6:
		r = b / st0
	case 7:
		r = st0 / b
	default:
		r = st0
	}
	c.setSt(d.rm, r)
	c.fpop()
}

// fpuDF: memory form is a 16-bit integer load/store (reg 0/2/3), a
// packed-BCD load/store (reg 4/6), or a 64-bit integer load/store
// (reg 5/7); register form is FSTSW AX on DF E0, otherwise unassigned.
func (c *CPU) fpuDF(d *decoded, isMem bool) {
	if isMem {
		switch d.reg {
		case 0:
			c.fpush(c.loadInt16(d))
		case 2:
			c.storeInt16(d, c.st(0))
		case 3:
			c.storeInt16(d, c.fpop())
		case 4:
			c.fbld(d)
		case 5:
			c.fpush(c.loadInt64(d))
		case 6:
			c.fbstp(d)
		case 7:
			c.storeInt64(d, c.fpop())
		}
		return
	}
	if d.reg == 4 && d.rm == 0 { // FSTSW AX
		c.SetReg16(AX, c.fpu.status)
	}
}

// fbld/fbstp implement packed-BCD load/store for an 18-digit m80bcd operand.
func (c *CPU) fbld(d *decoded) {
	phys := c.fpuMemAddr(d)
	var v float64
	mul := 1.0
	for i := 0; i < 9; i++ {
		b := c.mem.ReadByte(phys + uint32(i))
		v += float64(b&0xf) * mul
		mul *= 10
		v += float64((b>>4)&0xf) * mul
		mul *= 10
	}
	sign := c.mem.ReadByte(phys + 9)
	if sign&0x80 != 0 {
		v = -v
	}
	c.fpush(v)
}

func (c *CPU) fbstp(d *decoded) {
	phys := c.fpuMemAddr(d)
	v := c.fpop()
	sign := uint8(0)
	if v < 0 {
		sign = 0x80
		v = -v
	}
	iv := uint64(v)
	for i := 0; i < 9; i++ {
		lo := uint8(iv % 10)
		iv /= 10
		hi := uint8(iv % 10)
		iv /= 10
		c.mem.WriteByte(phys+uint32(i), lo|(hi<<4))
	}
	c.mem.WriteByte(phys+9, sign)
}

// fcompare clears C0-C3 then sets them per an unordered/less/equal
// table; NaN operands set all three plus the invalid-operation bit.
func (c *CPU) fcompare(a, b float64, pop bool) {
	c.fpu.status &^= swC0 | swC1 | swC2 | swC3
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		c.fpu.status |= swC0 | swC2 | swC3 | swIE
	case a < b:
		c.fpu.status |= swC0
	case a == b:
		c.fpu.status |= swC3
	}
	if pop {
		c.fpop()
	}
}

// fxam classifies the top of stack using IEEE categories, encoding the
// category in C0/C2/C3 and the sign in C1. An empty slot produces
// C0=C3=1 without reading the (possibly garbage) value.
func (c *CPU) fxam() {
	top := c.fpu.top()
	c.fpu.status &^= swC0 | swC1 | swC2 | swC3
	if c.fpu.tag[top] == tagEmpty {
		c.fpu.status |= swC0 | swC3
		return
	}
	v := c.fpu.st[top]
	if math.Signbit(v) {
		c.fpu.status |= swC1
	}
	switch {
	case math.IsNaN(v):
		c.fpu.status |= swC0
	case math.IsInf(v, 0):
		c.fpu.status |= swC0 | swC2
	case v == 0:
		c.fpu.status |= swC3
	default:
		c.fpu.status |= swC2
	}
}

// frstor reads a 94-byte block: control, status, tag, IP, CS, then
// eight 10-byte extended-precision floats. §9 open question 2: the
// reference implementation reads only the low 8 bytes of each 10-byte
// slot, reinterpreted directly as a float64 — this truncates and
// misreads any operand whose extended-precision encoding isn't
// bit-identical to its double form. Preserved rather than widened.
func (c *CPU) frstor(d *decoded) {
	phys := c.fpuMemAddr(d)
	c.fpu.control = c.mem.ReadWord(phys)
	c.fpu.status = c.mem.ReadWord(phys + 2)
	tagw := c.mem.ReadWord(phys + 4)
	for i := 0; i < 8; i++ {
		c.fpu.tag[i] = uint8(tagw>>(i*2)) & 3
	}
	c.fpu.lastIP = c.mem.ReadWord(phys + 6)
	c.fpu.lastOp = c.mem.ReadWord(phys + 8)
	base := phys + 14
	for i := 0; i < 8; i++ {
		slot := base + uint32(i)*10
		var bits uint64
		for j := 0; j < 4; j++ {
			bits |= uint64(c.mem.ReadWord(slot+uint32(j)*2)) << (16 * j)
		}
		c.fpu.st[i] = math.Float64frombits(bits)
	}
}

// fsave writes the mirror image of frstor's 94-byte block; the same
// truncate-to-double fidelity gap applies to the written extended
// precision slots (the high two bytes are zero-filled).
func (c *CPU) fsave(d *decoded) {
	phys := c.fpuMemAddr(d)
	c.mem.WriteWord(phys, c.fpu.control)
	c.mem.WriteWord(phys+2, c.fpu.status)
	var tagw uint16
	for i := 0; i < 8; i++ {
		tagw |= uint16(c.fpu.tag[i]&3) << (i * 2)
	}
	c.mem.WriteWord(phys+4, tagw)
	c.mem.WriteWord(phys+6, c.fpu.lastIP)
	c.mem.WriteWord(phys+8, c.fpu.lastOp)
	base := phys + 14
	for i := 0; i < 8; i++ {
		slot := base + uint32(i)*10
		bits := math.Float64bits(c.fpu.st[i])
		for j := 0; j < 4; j++ {
			c.mem.WriteWord(slot+uint32(j)*2, uint16(bits>>(16*j)))
		}
		c.mem.WriteWord(slot+8, 0)
	}
	c.resetFPU()
}
