/*
   x86emu - command console parser.

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

// Package parser implements the interactive debug console's command
// set. Unlike the teacher's attach/detach vocabulary built around
// addressable channel devices, this machine has no attachable units -
// the whole command set collapses to registers, memory and run
// control, so one file replaces the teacher's command/options/
// completion split.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/rcornwell/x86emu/emu/cpu"
	"github.com/rcornwell/x86emu/emu/machine"
	"github.com/rcornwell/x86emu/util/hex"
)

// cmd is one console command: its name, the minimum unambiguous prefix
// length, and the function that executes it.
type cmd struct {
	Name    string
	Min     int
	Process func(args []string, m *machine.Machine) (bool, error)
}

var cmdList = []cmd{
	{Name: "registers", Min: 1, Process: registers},
	{Name: "set", Min: 3, Process: setRegister},
	{Name: "memory", Min: 1, Process: dumpMemory},
	{Name: "deposit", Min: 3, Process: deposit},
	{Name: "load", Min: 1, Process: loadImage},
	{Name: "step", Min: 2, Process: step},
	{Name: "go", Min: 2, Process: run},
	{Name: "continue", Min: 1, Process: run},
	{Name: "break", Min: 2, Process: setBreak},
	{Name: "unbreak", Min: 2, Process: clearBreak},
	{Name: "reset", Min: 5, Process: reset},
	{Name: "quit", Min: 1, Process: quit},
	{Name: "exit", Min: 4, Process: quit},
}

var regNames = map[string]int{
	"ax": cpu.AX, "cx": cpu.CX, "dx": cpu.DX, "bx": cpu.BX,
	"sp": cpu.SP, "bp": cpu.BP, "si": cpu.SI, "di": cpu.DI,
}

var segNames = map[string]int{
	"es": cpu.ES, "cs": cpu.CS, "ss": cpu.SS, "ds": cpu.DS,
}

// ProcessCommand tokenizes and dispatches one console line. It returns
// true when the command requests the console to exit.
func ProcessCommand(line string, m *machine.Machine) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name := strings.ToLower(fields[0])
	for _, c := range cmdList {
		if len(name) < c.Min || len(name) > len(c.Name) {
			continue
		}
		if c.Name[:len(name)] != name {
			continue
		}
		return c.Process(fields[1:], m)
	}
	return false, fmt.Errorf("unknown command: %s", fields[0])
}

// CompleteCmd returns the command names matching the word being typed,
// for liner's tab-completion hook.
func CompleteCmd(line string) []string {
	var matches []string
	for _, c := range cmdList {
		if strings.HasPrefix(c.Name, strings.ToLower(line)) {
			matches = append(matches, c.Name)
		}
	}
	return matches
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex address %q: %w", s, err)
	}
	return uint32(v), nil
}

// formatRegLine renders a row of "NAME=xxxx " fields with hex.FormatHalf,
// the same fixed-width word formatter the teacher dumps register/memory
// traces through.
func formatRegLine(names []string, vals []uint16) string {
	var b strings.Builder
	for i, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		hex.FormatHalf(&b, false, vals[i:i+1])
	}
	return b.String()
}

func registers(_ []string, m *machine.Machine) (bool, error) {
	c := m.CPU
	fmt.Println(formatRegLine(
		[]string{"AX", "CX", "DX", "BX", "SP", "BP", "SI", "DI"},
		[]uint16{c.Reg16(cpu.AX), c.Reg16(cpu.CX), c.Reg16(cpu.DX), c.Reg16(cpu.BX),
			c.Reg16(cpu.SP), c.Reg16(cpu.BP), c.Reg16(cpu.SI), c.Reg16(cpu.DI)}))
	fmt.Println(formatRegLine(
		[]string{"ES", "CS", "SS", "DS", "IP", "FLAGS"},
		[]uint16{c.Seg(cpu.ES), c.Seg(cpu.CS), c.Seg(cpu.SS), c.Seg(cpu.DS), c.IP(), c.Flags()}))
	return false, nil
}

func setRegister(args []string, m *machine.Machine) (bool, error) {
	if len(args) != 2 {
		return false, errors.New("usage: set <register> <hex-value>")
	}
	v, err := strconv.ParseUint(args[1], 16, 16)
	if err != nil {
		return false, fmt.Errorf("invalid hex value %q: %w", args[1], err)
	}
	name := strings.ToLower(args[0])
	if r, ok := regNames[name]; ok {
		m.CPU.SetReg16(r, uint16(v))
		return false, nil
	}
	if name == "flags" {
		m.CPU.SetFlags(uint16(v))
		return false, nil
	}
	return false, fmt.Errorf("unknown register: %s", args[0])
}

func dumpMemory(args []string, m *machine.Machine) (bool, error) {
	if len(args) < 1 {
		return false, errors.New("usage: memory <hex-addr> [length]")
	}
	addr, err := parseUint32(args[0])
	if err != nil {
		return false, err
	}
	length := uint32(64)
	if len(args) > 1 {
		n, err := strconv.ParseUint(args[1], 16, 32)
		if err != nil {
			return false, fmt.Errorf("invalid length %q: %w", args[1], err)
		}
		length = uint32(n)
	}
	for i := uint32(0); i < length; i += 16 {
		var b strings.Builder
		hex.FormatWord(&b, []uint32{addr + i})
		b.WriteByte(':')
		b.WriteByte(' ')
		row := make([]uint8, 0, 16)
		for j := uint32(0); j < 16 && i+j < length; j++ {
			row = append(row, m.Mem.ReadByte(addr+i+j))
		}
		hex.FormatBytes(&b, true, row)
		fmt.Println(b.String())
	}
	return false, nil
}

func deposit(args []string, m *machine.Machine) (bool, error) {
	if len(args) != 2 {
		return false, errors.New("usage: deposit <hex-addr> <hex-byte>")
	}
	addr, err := parseUint32(args[0])
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseUint(args[1], 16, 8)
	if err != nil {
		return false, fmt.Errorf("invalid byte value %q: %w", args[1], err)
	}
	m.Mem.WriteByte(addr, uint8(v))
	return false, nil
}

func loadImage(args []string, m *machine.Machine) (bool, error) {
	if len(args) != 2 {
		return false, errors.New("usage: load <path> <hex-addr>")
	}
	addr, err := parseUint32(args[1])
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", args[0], err)
	}
	m.Mem.LoadImage(addr, data)
	return false, nil
}

func step(args []string, m *machine.Machine) (bool, error) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("invalid count %q: %w", args[0], err)
		}
		n = v
	}
	for i := 0; i < n; i++ {
		m.Step()
	}
	return registers(nil, m)
}

func run(args []string, m *machine.Machine) (bool, error) {
	n := 1 << 30
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("invalid count %q: %w", args[0], err)
		}
		n = v
	}
	slog.Debug("running", "count", n)
	m.Run(n)
	return false, nil
}

func setBreak(args []string, m *machine.Machine) (bool, error) {
	if len(args) != 1 {
		return false, errors.New("usage: break <hex-addr>")
	}
	addr, err := parseUint32(args[0])
	if err != nil {
		return false, err
	}
	m.SetBreakpoint(addr)
	return false, nil
}

func clearBreak(args []string, m *machine.Machine) (bool, error) {
	if len(args) != 1 {
		return false, errors.New("usage: unbreak <hex-addr>")
	}
	addr, err := parseUint32(args[0])
	if err != nil {
		return false, err
	}
	m.ClearBreakpoint(addr)
	return false, nil
}

func reset(_ []string, m *machine.Machine) (bool, error) {
	m.Reset()
	return false, nil
}

func quit(_ []string, _ *machine.Machine) (bool, error) {
	return true, nil
}
