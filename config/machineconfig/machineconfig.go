/*
   x86emu - Machine configuration options.

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

// Package machineconfig registers the bare configuration-file options
// this machine reads: MEMSIZE, A20, BIOS and RTC, each a single line in
// the teacher's model/address/string config format. It mirrors
// util/debug's DEBUGFILE registration - a package-level RegisterOption
// call in init, writing into package state main reads after
// config.LoadConfigFile returns.
package machineconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	config "github.com/rcornwell/x86emu/config/configparser"
)

// Settings holds every value gathered from the config file, defaulted
// to a 1MB real-mode-addressable machine with A20 disabled and no BIOS.
var Settings = struct {
	MemSizeKB uint16
	ExtSizeKB uint16
	A20       bool
	BIOSPath  string
	RTCPath   string
}{
	MemSizeKB: 640,
}

func init() {
	config.RegisterOption("MEMSIZE", setMemSize)
	config.RegisterOption("A20", setA20)
	config.RegisterOption("BIOS", setBIOS)
	config.RegisterOption("RTC", setRTC)
}

func setMemSize(_ uint16, value string, _ []config.Option) error {
	kb, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return fmt.Errorf("MEMSIZE must be a decimal KB count: %w", err)
	}
	if kb <= 1024 {
		Settings.MemSizeKB = uint16(kb)
		Settings.ExtSizeKB = 0
		return nil
	}
	Settings.MemSizeKB = 1024
	Settings.ExtSizeKB = uint16(kb - 1024)
	return nil
}

func setA20(_ uint16, value string, _ []config.Option) error {
	switch strings.ToUpper(value) {
	case "ON", "ENABLE", "ENABLED":
		Settings.A20 = true
	case "OFF", "DISABLE", "DISABLED":
		Settings.A20 = false
	default:
		return fmt.Errorf("A20 must be ON or OFF, got %q", value)
	}
	return nil
}

func setBIOS(_ uint16, value string, _ []config.Option) error {
	if _, err := os.Stat(value); err != nil {
		return fmt.Errorf("BIOS image %q: %w", value, err)
	}
	Settings.BIOSPath = value
	return nil
}

func setRTC(_ uint16, value string, _ []config.Option) error {
	Settings.RTCPath = value
	return nil
}
