// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/lassandro/gosos/pkg/debugger"
	"github.com/lassandro/gosos/pkg/disk"
	"github.com/lassandro/gosos/pkg/kernel"
)

var helpvar bool
var debugvar bool
var tracevar bool
var configvar string
var diskvar string

const usage = "gosos [-config file.json] [-disk image] [-debug] [-trace]"

func init() {
	exe, _ := os.Executable()
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", filepath.Base(exe)))
	log.SetOutput(os.Stderr)
}

func init() {
	flag.BoolVar(&helpvar, "help", false, "Displays command usage")
	flag.BoolVar(&debugvar, "debug", false, "Runs programs under the debug REPL")
	flag.BoolVar(&tracevar, "trace", false, "Logs kernel trace output")
	flag.StringVar(&configvar, "config", "", "Path to a JSON config file")
	flag.StringVar(&diskvar, "disk", "", "Path to a persistent disk image")
	flag.Parse()
}

func loadDisk(path string) (*disk.Driver, error) {
	file, err := os.Open(path)

	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	defer file.Close()
	return disk.ReadImage(file)
}

func saveDisk(path string, d *disk.Driver) error {
	file, err := os.Create(path)

	if err != nil {
		return err
	}

	defer file.Close()
	return d.WriteImage(file)
}

func gosos() int {
	if helpvar {
		fmt.Println(usage)
		return 0
	}

	cfg := kernel.DefaultConfig()

	if configvar != "" {
		var err error

		if cfg, err = kernel.LoadConfig(configvar); err != nil {
			log.Println(err)
			return 1
		}
	}

	cfg.Trace = cfg.Trace || tracevar

	var dsk *disk.Driver

	if diskvar != "" {
		var err error

		if dsk, err = loadDisk(diskvar); err != nil {
			log.Println(err)
			return 1
		}
	}

	console := newConsole(os.Stdout)
	krn, err := kernel.New(cfg, console, log.Default(), dsk)

	if err != nil {
		log.Println(err)
		return 1
	}

	sh := &shell{krn: krn, console: console}

	if debugvar {
		dbg := &debugger.Debugger{
			HandleBreak: handleBreak,
			HandleRead:  handleRead,
			HandleWrite: handleWrite,
		}
		krn.CPU.Tracer = dbg
		sh.dbg = dbg
	}

	c := make(chan os.Signal, 1)
	defer close(c)

	signal.Notify(c, os.Interrupt)
	go func() {
		for range c {
			fmt.Println()

			if sh.dbg != nil {
				sh.dbg.Break = true
			} else {
				sh.interrupted = true
			}
		}
	}()

	sh.repl()

	if diskvar != "" {
		if err := saveDisk(diskvar, krn.Disk); err != nil {
			log.Println(err)
			return 1
		}
	}

	return 0
}

func main() {
	os.Exit(gosos())
}
