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
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/k0kubun/pp/v3"

	"github.com/lassandro/gosos/pkg/debugger"
	"github.com/lassandro/gosos/pkg/encoding"
	"github.com/lassandro/gosos/pkg/machine"
)

const debugHelp = `debug commands:
  c             continue
  s             single-step by keypress (space steps, q stops)
  r             print registers
  d             dump the CPU state
  m 0x#### [n]  dump physical memory
  b 0x####      toggle a breakpoint on the logical PC
  w 0x####      add a read/write watchpoint
  q             leave the debugger and continue`

func handleBreak(dbg *debugger.Debugger, c *machine.CPU) {
	dbg.Break = false
	dbg.PrintRegisters(c)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("(dbg) ")

		if !scanner.Scan() {
			return
		}

		args := strings.Fields(scanner.Text())

		if len(args) == 0 {
			continue
		}

		switch args[0] {

		case "h", "help":
			fmt.Println(debugHelp)

		case "c", "continue":
			return

		case "s", "step":
			stepByKey(dbg, c)

		case "r", "registers":
			dbg.PrintRegisters(c)

		case "d", "dump":
			pp.Println(c)

		case "m", "mem":
			if len(args) < 2 {
				log.Println("m 0x#### [count]")
				continue
			}

			addr, err := encoding.DecodeHex(args[1])

			if err != nil {
				log.Println(err)
				continue
			}

			count := uint16(16)

			if len(args) == 3 {
				if count, err = encoding.DecodeHex(args[2]); err != nil {
					log.Println(err)
					continue
				}
			}

			dbg.PrintMem(c.Mem.Memory(), addr, count)

		case "b", "break":
			if len(args) != 2 {
				log.Println("b 0x####")
				continue
			}

			addr, err := encoding.DecodeHex(args[1])

			if err != nil {
				log.Println(err)
				continue
			}

			toggleBreakpoint(dbg, addr)

		case "w", "watch":
			if len(args) != 2 {
				log.Println("w 0x####")
				continue
			}

			addr, err := encoding.DecodeHex(args[1])

			if err != nil {
				log.Println(err)
				continue
			}

			dbg.Watchpoints = append(dbg.Watchpoints, debugger.Watchpoint{
				Addr: addr,
				Type: debugger.ReadWriteWatch,
			})

		case "q", "quit":
			return

		default:
			log.Printf("unknown command %q, try help", args[0])
		}
	}
}

// stepByKey pulses the CPU one instruction per keypress in raw terminal
// mode, showing the register file after each step.
func stepByKey(dbg *debugger.Debugger, c *machine.CPU) {
	fmt.Println("space steps, q returns to the debugger")

	enterRawTerm()
	defer exitRawTerm()

	buf := make([]byte, 1)

	for c.IsExecuting {
		n, err := os.Stdin.Read(buf)

		if err != nil || (n == 1 && buf[0] == 'q') {
			return
		}

		if n == 0 || buf[0] != ' ' {
			continue
		}

		c.Pulse()
		dbg.PrintRegisters(c)
	}
}

func toggleBreakpoint(dbg *debugger.Debugger, addr uint16) {
	for i, breakpoint := range dbg.Breakpoints {
		if breakpoint.Addr == addr {
			dbg.Breakpoints = append(
				dbg.Breakpoints[:i], dbg.Breakpoints[i+1:]...,
			)

			fmt.Printf("Breakpoint removed [%#04x]\n", addr)
			return
		}
	}

	dbg.Breakpoints = append(dbg.Breakpoints, debugger.Breakpoint{Addr: addr})
	fmt.Printf("Breakpoint added [%#04x]\n", addr)
}

func handleRead(addr uint16, dbg *debugger.Debugger, c *machine.CPU) {
	fmt.Printf("Watchpoint read [%#04x]\n", addr)
	dbg.Break = true
}

func handleWrite(addr uint16, dbg *debugger.Debugger, c *machine.CPU) {
	fmt.Printf("Watchpoint write [%#04x]\n", addr)
	dbg.Break = true
}
