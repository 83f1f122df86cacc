/*
   x86emu - Main process.

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

package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rcornwell/x86emu/command/reader"
	config "github.com/rcornwell/x86emu/config/configparser"
	"github.com/rcornwell/x86emu/config/machineconfig"
	"github.com/rcornwell/x86emu/emu/machine"
	logger "github.com/rcornwell/x86emu/util/logger"

	"log/slog"
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optBIOS := getopt.StringLong("bios", 'b', "", "BIOS image (overrides config file)")
	optMemSize := getopt.Uint16Long("memsize", 'm', 640, "Base memory size in KB")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optInteractive := getopt.BoolLong("interactive", 'i', "Start the debug console instead of free-running")
	optDebug := getopt.BoolLong("debug", 'd', "Echo log records to stderr regardless of level")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var out io.Writer
	if *optLogFile != "" {
		if file, err := os.Create(*optLogFile); err == nil {
			out = file
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	Logger = slog.New(logger.NewHandler(out, &slog.HandlerOptions{Level: programLevel, AddSource: false}, optDebug))
	slog.SetDefault(Logger)

	Logger.Info("x86emu started")

	machineconfig.Settings.MemSizeKB = *optMemSize
	if *optConfig != "" {
		if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
			Logger.Error("configuration file not found", "path", *optConfig)
			os.Exit(1)
		}
		// A MEMSIZE line in the config file takes priority over the
		// command-line value set above; a -b flag, applied below,
		// overrides any BIOS line.
		if err := config.LoadConfigFile(*optConfig); err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
	}
	if *optBIOS != "" {
		machineconfig.Settings.BIOSPath = *optBIOS
	}

	m := machine.New(machineconfig.Settings.MemSizeKB, machineconfig.Settings.ExtSizeKB, Logger)
	m.KBC.ForceA20(machineconfig.Settings.A20)

	if machineconfig.Settings.RTCPath != "" {
		if data, err := os.ReadFile(machineconfig.Settings.RTCPath); err == nil {
			m.LoadRTCImage(data)
			Logger.Info("RTC image loaded", "path", machineconfig.Settings.RTCPath)
		} else if !os.IsNotExist(err) {
			Logger.Error("reading RTC image", "path", machineconfig.Settings.RTCPath, "error", err)
			os.Exit(1)
		}
		defer func() {
			img := m.SaveRTCImage()
			if err := os.WriteFile(machineconfig.Settings.RTCPath, img, 0o600); err != nil {
				Logger.Error("saving RTC image", "path", machineconfig.Settings.RTCPath, "error", err)
			}
		}()
	}

	if machineconfig.Settings.BIOSPath != "" {
		data, err := os.ReadFile(machineconfig.Settings.BIOSPath)
		if err != nil {
			Logger.Error("reading BIOS image", "path", machineconfig.Settings.BIOSPath, "error", err)
			os.Exit(1)
		}
		m.LoadBIOS(data)
		Logger.Info("BIOS image loaded", "path", machineconfig.Settings.BIOSPath, "bytes", len(data))
	}

	if *optInteractive {
		reader.ConsoleReader(m)
		Logger.Info("console exited, shutting down")
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Single-threaded host loop (spec's synchronous progress model): run
	// a batch of instructions, then check for a pending signal, with no
	// background goroutine driving the CPU.
	const batch = 1 << 16
	running := true
	for running {
		select {
		case <-sigChan:
			Logger.Info("got quit signal")
			running = false
		default:
			for i := 0; i < batch; i++ {
				m.Step()
			}
		}
	}

	Logger.Info("shutting down")
}
