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

package kernel

import (
	"github.com/lassandro/gosos/pkg/machine"
)

type ProcessState uint8

const (
	StateResident ProcessState = iota
	StateReady
	StateRunning
	StateTerminated
)

var stateNames = []string{"RESIDENT", "READY", "RUNNING", "TERMINATED"}

func (s ProcessState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}

	return "UNKNOWN"
}

type Location uint8

const (
	LocationRAM Location = iota
	LocationDisk
)

func (l Location) String() string {
	if l == LocationRAM {
		return "RAM"
	}

	return "DSK"
}

// DefaultPriority applies when a program is loaded without one. Lower
// values schedule first.
const DefaultPriority = 32

// NoAddress is the starting address of a disk-resident process.
const NoAddress = -1

// PCB is the process control block: the saved register file plus the
// metadata the kernel tracks per process.
type PCB struct {
	ProcessID       int
	StartingAddress int
	Location        Location
	State           ProcessState
	Priority        int

	ProgramCounter      uint16
	InstructionRegister byte
	Accumulator         byte
	XRegister           byte
	YRegister           byte
	ZFlag               byte

	// quantumUsed counts CPU pulses consumed in the current dispatch.
	quantumUsed int

	// dispatchSeq and enqueueSeq order swap victim selection and
	// same-priority ties respectively.
	dispatchSeq uint64
	enqueueSeq  uint64
}

// Snapshot copies the CPU registers into the PCB.
func (p *PCB) Snapshot(c *machine.CPU) {
	p.ProgramCounter = c.PC
	p.InstructionRegister = c.IR
	p.Accumulator = c.AC
	p.XRegister = c.X
	p.YRegister = c.Y
	p.ZFlag = c.Z
}

// Restore loads the saved registers into the CPU. The carry flag is not
// part of the saved state and starts cleared.
func (p *PCB) Restore(c *machine.CPU) {
	c.PC = p.ProgramCounter
	c.IR = p.InstructionRegister
	c.AC = p.Accumulator
	c.X = p.XRegister
	c.Y = p.YRegister
	c.Z = p.ZFlag
	c.Carry = 0
	c.Step = machine.Fetch
}

func (p *PCB) SetState(s ProcessState) {
	p.State = s
}
