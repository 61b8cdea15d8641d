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
	"github.com/lassandro/gosos/pkg/machine"
)

type WatchpointType uint

const (
	ReadWatch WatchpointType = iota
	WriteWatch
	ReadWriteWatch
)

// Watchpoint observes memory traffic at one physical address.
type Watchpoint struct {
	Addr uint16
	Type WatchpointType
}

// Breakpoint stops execution when the running process's logical program
// counter reaches Addr.
type Breakpoint struct {
	Addr uint16
}

// Debugger hooks into the CPU's tracer interface, pausing the pulse
// clock at breakpoints and watchpoints. The host supplies the handlers.
type Debugger struct {
	Break bool

	Breakpoints []Breakpoint
	Watchpoints []Watchpoint

	HandleBreak func(*Debugger, *machine.CPU)
	HandleRead  func(uint16, *Debugger, *machine.CPU)
	HandleWrite func(uint16, *Debugger, *machine.CPU)
}
