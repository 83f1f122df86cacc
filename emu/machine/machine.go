/*
   x86emu - single-owner machine: wires the CPU to its collaborators.

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

// Package machine is the single owner spec.md §9's first re-architecture
// note calls for: one struct holding the CPU and every collaborator
// device, wiring interface handles into the CPU at construction instead
// of the cyclic back-pointers the teacher's device model used. The host
// loop (the root main package) drives it synchronously, one Step per iteration, per
// spec.md §5 - there is no goroutine or background ticker anywhere here.
package machine

import (
	"log/slog"

	cpu "github.com/rcornwell/x86emu/emu/cpu"
	"github.com/rcornwell/x86emu/emu/ioport"
	"github.com/rcornwell/x86emu/emu/kbc"
	"github.com/rcornwell/x86emu/emu/membus"
	"github.com/rcornwell/x86emu/emu/pic"
	"github.com/rcornwell/x86emu/emu/pit"
	"github.com/rcornwell/x86emu/emu/rtc"
)

// resetVectorTop is the physical address one past the real-mode reset
// vector (CS:IP = F000:FFF0 -> 0xFFFF0); a BIOS image is placed so its
// last byte lands at resetVectorTop-1, matching real 8086/80286 BIOS
// ROM placement at the top of the first megabyte.
const resetVectorTop = 0x100000

// Machine owns the CPU and every device it talks to.
type Machine struct {
	Mem    *membus.Bus
	Ports  *ioport.Bus
	PIC    *pic.PIC
	KBC    *kbc.Controller
	Port92 kbc.Port92
	RTC    *rtc.RTC
	PIT    *pit.PIT
	CPU    *cpu.CPU

	Running bool

	breakpoints map[uint32]bool
	log         *slog.Logger
}

// New builds a machine with baseKB/extKB reported to the RTC's CMOS
// memory-size fields and every device wired onto the port bus at its
// documented address, per spec.md §6 and SPEC_FULL.md §3.
func New(baseKB, extKB uint16, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	m := &Machine{
		Mem:         membus.New(),
		Ports:       ioport.New(),
		PIC:         pic.New(),
		PIT:         nil,
		breakpoints: make(map[uint32]bool),
		log:         log,
	}
	m.PIT = pit.New(m.PIC)
	m.KBC = kbc.New(m.PIC, m.Reset)
	m.Port92 = kbc.NewPort92(m.KBC)
	m.RTC = rtc.New(baseKB, extKB, nil)
	m.CPU = cpu.New(m.Mem, m.Ports, m.PIC, m.KBC, log)

	master := m.PIC.Master()
	m.Ports.Attach(0x20, master)
	m.Ports.Attach(0x21, master.DataPort())
	slave := m.PIC.Slave()
	m.Ports.Attach(0xa0, slave)
	m.Ports.Attach(0xa1, slave.DataPort())

	m.Ports.Attach(0x60, m.KBC)
	m.Ports.Attach(0x64, m.KBC)
	m.Ports.Attach(0x92, m.Port92)

	m.Ports.Attach(0x70, m.RTC)
	m.Ports.Attach(0x71, m.RTC)

	for p := uint16(0x40); p <= 0x43; p++ {
		m.Ports.Attach(p, m.PIT)
	}

	return m
}

// LoadBIOS copies a ROM image so its last byte lands at the real-mode
// reset vector's segment top (physical 0xFFFFF), the placement BIOS
// images of this class use so CS:IP = F000:FFF0 lands inside them.
func (m *Machine) LoadBIOS(data []byte) {
	base := resetVectorTop - uint32(len(data))
	m.Mem.LoadImage(base, data)
}

// LoadRTCImage restores a previously saved battery-backed CMOS image
// into the RTC, per the RTC config option documented in SPEC_FULL.md §2.
func (m *Machine) LoadRTCImage(data []byte) {
	m.RTC.LoadImage(data)
}

// SaveRTCImage returns the current CMOS RAM for the host to persist
// back to the RTC config option's path, so configuration bytes set by
// a prior run (or by the guest BIOS setup utility) survive a restart.
func (m *Machine) SaveRTCImage() []byte {
	return m.RTC.Image()
}

// Reset reinitializes the CPU, satisfying spec.md §4.7's power-on,
// triple-fault and keyboard-controller-reset-pulse triggers alike:
// the keyboard controller and port-0x92 fast-reset gates both call
// this through the onReset callback passed to kbc.New.
func (m *Machine) Reset() {
	m.CPU.Reset()
}

// SetBreakpoint/ClearBreakpoint/HasBreakpoint manage a debug-console
// breakpoint set keyed by (CS<<4)+IP physical address, consulted by
// the host loop between instructions - the core itself has no concept
// of a breakpoint.
func (m *Machine) SetBreakpoint(addr uint32)   { m.breakpoints[addr] = true }
func (m *Machine) ClearBreakpoint(addr uint32) { delete(m.breakpoints, addr) }

func (m *Machine) atBreakpoint() bool {
	if len(m.breakpoints) == 0 {
		return false
	}
	addr := uint32(m.CPU.Seg(cpu.CS))<<4 + uint32(m.CPU.IP())
	return m.breakpoints[addr]
}

// Step executes exactly one instruction, then performs the external-IRQ
// acceptance check and advances every device's timers by one tick -
// spec.md §5's host-chosen progress unit.
func (m *Machine) Step() {
	m.CPU.Step()
	m.CPU.CheckExternalIRQ()
	m.PIT.Tick(1)
}

// Run executes up to n instructions, stopping early if Running is
// cleared or a breakpoint is hit (after at least one instruction has
// executed, so a breakpoint at the current IP doesn't block Run).
func (m *Machine) Run(n int) {
	m.Running = true
	for i := 0; i < n && m.Running; i++ {
		m.Step()
		if m.atBreakpoint() {
			break
		}
	}
}

// Stop clears the run flag observed by Run's loop.
func (m *Machine) Stop() { m.Running = false }
