/*
   x86emu - CPU/FPU state definitions.

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

// Package cpu implements the 80186/80286 integer core, its 80287-style
// floating point unit, and the segmented memory/interrupt machinery
// around them. It owns no concrete devices: it is handed small
// interfaces for the memory bus, the I/O port bus and the interrupt
// controller, and a machine wires the concrete collaborators in.
package cpu

import "log/slog"

// Register file indices for the general-purpose word registers.
const (
	AX = iota
	CX
	DX
	BX
	SP
	BP
	SI
	DI
	numRegs
)

// Segment register indices.
const (
	ES = iota
	CS
	SS
	DS
	numSegs
)

// Flag bits, standard 8086 FLAGS layout.
const (
	FlagCF = 1 << 0
	flagR1 = 1 << 1 // always reads 1 on real hardware
	FlagPF = 1 << 2
	flagR3 = 1 << 3
	FlagAF = 1 << 4
	flagR5 = 1 << 5
	FlagZF = 1 << 6
	FlagSF = 1 << 7
	FlagTF = 1 << 8
	FlagIF = 1 << 9
	FlagDF = 1 << 10
	FlagOF = 1 << 11
)

// MSW bits.
const (
	mswPE = 1 << 0 // protected-mode enable
	mswTS = 1 << 3 // task switched
)

// Interrupt vectors named in the fault taxonomy.
const (
	vecDivide       = 0
	vecSingleStep   = 1
	vecNMI          = 2
	vecBreakpoint   = 3
	vecOverflow     = 4
	vecBounds       = 5
	vecInvalidOp    = 6
	vecDeviceNA     = 7
	vecDoubleFault  = 8
	vecNotPresent   = 11
	vecStackFault   = 12
	vecGeneralProt  = 13
)

// descriptor is the cached form of a loaded segment, LDT or task
// descriptor: {base, limit, access, valid} per segment register, with
// sp0/ss0 additionally populated for the task register.
type descriptor struct {
	base   uint32
	limit  uint16
	access uint8
	valid  bool
	sp0    uint16
	ss0    uint16
}

// present reports whether the descriptor's access-rights present bit is set.
func (d *descriptor) present() bool { return d.access&0x80 != 0 }

// dpl returns the descriptor privilege level, bits 5-6 of access.
func (d *descriptor) dpl() uint8 { return (d.access >> 5) & 3 }

// isCode reports whether the descriptor describes a code segment (type bit 3 set).
func (d *descriptor) isCode() bool { return d.access&0x18 == 0x18 }

// isWritableData reports whether the descriptor is a writable data segment.
func (d *descriptor) isWritableData() bool { return d.access&0x1a == 0x12 }

// isReadableCode reports whether the descriptor is a readable code segment.
func (d *descriptor) isReadableCode() bool { return d.access&0x1a == 0x1a }

// dtReg is a descriptor-table register: base + limit, used for GDTR/IDTR.
type dtReg struct {
	base  uint32
	limit uint16
}

// Memory is the physical memory bus the core reads and writes through.
type Memory interface {
	ReadByte(addr uint32) uint8
	WriteByte(addr uint32, v uint8)
	ReadWord(addr uint32) uint16
	WriteWord(addr uint32, v uint16)
}

// Ports is the 16-bit I/O port space the IN/OUT family addresses.
type Ports interface {
	InByte(port uint16) uint8
	OutByte(port uint16, v uint8)
	InWord(port uint16) uint16
	OutWord(port uint16, v uint16)
}

// InterruptController is the collaborator contract a PIC-shaped device
// must satisfy: it reports the next unmasked, pending interrupt vector.
type InterruptController interface {
	NextIntr() (vector uint8, pending bool)
}

// A20Line reports the live state of the A20 gate, shared mutable state
// the core samples on every real-mode address formation.
type A20Line interface {
	Enabled() bool
}

// prefixes accumulates the state collected during prefix collection for
// one instruction: segment override, repetition mode, and the default
// segment in effect for this instruction's memory operands.
type prefixes struct {
	segOverride int // -1 when none, else one of ES/CS/SS/DS
	rep         int // repNone, repE or repNE
	haveSeg     bool
}

const (
	repNone = iota
	repE
	repNE
)

// decoded holds the pieces of one decoded instruction: the opcode byte(s),
// any ModR/M triple and displacement, and the prefix state that was in
// effect when it was fetched. It plays the same role the teacher's
// decoded-step struct plays for its own dispatcher: one value threaded
// through fetch, decode and execute instead of re-deriving fields.
type decoded struct {
	prefixes
	opcode uint8
	mod    uint8
	reg    uint8
	rm     uint8
	hasRM  bool
	disp   uint16
	start  uint16 // IP at the first prefix byte, for string-instruction rewind
}

// fpuState is the 80287-compatible register stack and control state.
type fpuState struct {
	st      [8]float64
	tag     [8]uint8 // per physical slot: tagValid/tagZero/tagSpecial/tagEmpty
	control uint16
	status  uint16
	lastOp  uint16
	lastIP  uint16
	lastPtr uint32
}

const (
	tagValid = iota
	tagZero
	tagSpecial
	tagEmpty
)

// status word bit layout.
const (
	swIE   = 1 << 0 // invalid operation
	swDE   = 1 << 1 // denormalized operand
	swZE   = 1 << 2 // zero divide
	swOE   = 1 << 3 // overflow
	swUE   = 1 << 4 // underflow
	swPE   = 1 << 5 // precision
	swSF   = 1 << 6 // stack fault
	swIR   = 1 << 7 // interrupt request (unmasked exception summary)
	swC0   = 1 << 8
	swC1   = 1 << 9
	swC2   = 1 << 10
	swTopS = 11 // top field starts at bit 11, 3 bits wide
	swC3   = 1 << 14
	swBusy = 1 << 15
)

func (f *fpuState) top() uint8          { return uint8(f.status>>swTopS) & 7 }
func (f *fpuState) setTop(t uint8)      { f.status = (f.status &^ (7 << swTopS)) | (uint16(t&7) << swTopS) }
func logicalToPhysical(i, top uint8) uint8 { return (i + top) & 7 }

// CPU is the whole interpreter: register file, segmentation state,
// FPU, and handles to its four collaborators.
type CPU struct {
	regs [numRegs]uint16
	sreg [numSegs]uint16
	cache [numSegs]descriptor

	ip      uint16
	savedIP uint16

	flags     uint16
	trapLatch bool // copy of TF from the previous instruction boundary

	msw uint16

	gdtr dtReg
	idtr dtReg
	ldtr uint16
	ldtrCache descriptor
	tr        uint16
	trCache   descriptor

	faultInFlight bool
	halted        bool

	callbacks [256]func(vector uint8)

	fpu fpuState

	pfx decoded

	mem  Memory
	io   Ports
	pic  InterruptController
	a20  A20Line

	log *slog.Logger
}

// New returns a CPU wired to its collaborators and reset to power-on state.
func New(mem Memory, io Ports, pic InterruptController, a20 A20Line, log *slog.Logger) *CPU {
	if log == nil {
		log = slog.Default()
	}
	c := &CPU{mem: mem, io: io, pic: pic, a20: a20, log: log}
	c.Reset()
	return c
}

// RegisterCallback installs a host callback that preempts normal gate
// entry for the given interrupt vector. Passing nil removes it.
func (c *CPU) RegisterCallback(vector uint8, fn func(vector uint8)) {
	c.callbacks[vector] = fn
}

// Halted reports whether HLT has latched the core off.
func (c *CPU) Halted() bool { return c.halted }
