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

package debugger

import (
	"fmt"

	"github.com/lassandro/gosos/pkg/machine"
)

func (dbg *Debugger) Step(c *machine.CPU) {
	if dbg.Break {
		dbg.HandleBreak(dbg, c)
		return
	}

	for _, breakpoint := range dbg.Breakpoints {
		if c.PC == breakpoint.Addr {
			dbg.HandleBreak(dbg, c)
			break
		}
	}
}

func (dbg *Debugger) Read(addr uint16, c *machine.CPU) {
	if dbg.HandleRead == nil {
		return
	}

	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Type == WriteWatch {
			continue
		}

		if addr == watchpoint.Addr {
			dbg.HandleRead(addr, dbg, c)
			break
		}
	}
}

func (dbg *Debugger) Write(addr uint16, c *machine.CPU) {
	if dbg.HandleWrite == nil {
		return
	}

	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Type == ReadWatch {
			continue
		}

		if addr == watchpoint.Addr {
			dbg.HandleWrite(addr, dbg, c)
			break
		}
	}
}

// PrintRegisters dumps the CPU register file on a single line.
func (dbg *Debugger) PrintRegisters(c *machine.CPU) {
	fmt.Printf(
		"PC:%#04x IR:%#02x AC:%#02x X:%#02x Y:%#02x Z:%d C:%d [%s]\n",
		c.PC, c.IR, c.AC, c.X, c.Y, c.Z, c.Carry, c.Step,
	)
}

// PrintMem dumps a physical memory range, four cells per row, dimming
// zero bytes.
func (dbg *Debugger) PrintMem(mem *machine.Memory, addr, count uint16) {
	for i := addr; i < addr+count && int(i) < mem.Size(); i++ {
		if i == addr {
			fmt.Printf("\033[1m[%#04x]\033[0m ", i)
		} else if (i-addr)%4 == 0 {
			fmt.Println()
			fmt.Printf("\033[1m[%#04x]\033[0m ", i)
		}

		result := mem.ReadImmediate(i)

		if result == 0 {
			fmt.Printf("\033[1;30m%#02x\033[0m ", result)
		} else {
			fmt.Printf("%#02x ", result)
		}
	}

	fmt.Println()
}
