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

package machine

import (
	"fmt"
	"strconv"

	"github.com/lassandro/gosos/pkg/encoding"
)

func NewCPU(acc *Accessor, console Console) *CPU {
	c := &CPU{Mem: acc, Console: console}
	acc.cpu = c
	return c
}

// Reset clears the register file and pipeline state. Execution state and
// wiring (accessor, console, tracer) are untouched.
func (c *CPU) Reset() {
	c.PC = 0
	c.IR = 0
	c.AC = 0
	c.X = 0
	c.Y = 0
	c.Z = 0
	c.Carry = 0
	c.Step = Fetch
}

// Pulse advances execution by one clock pulse: a full instruction cycle
// by default, a single pipeline stage with StepPerPulse set.
func (c *CPU) Pulse() {
	if !c.IsExecuting {
		return
	}

	if c.StepPerPulse {
		c.cycle()
	} else {
		for c.IsExecuting && !c.cycle() {
		}
	}

	if c.Tracer != nil {
		c.Tracer.Step(c)
	}
}

// Abort stops execution without running the halt path. The kernel uses
// it when a process is killed from outside rather than by its own BRK.
func (c *CPU) Abort() {
	c.IsExecuting = false
	c.Step = Fetch
}

// cycle runs the current pipeline stage and reports whether the
// instruction cycle completed (the interrupt check ran).
func (c *CPU) cycle() bool {
	switch c.Step {

	// Fetch: IR = mem[PC + base]; PC++
	case Fetch:
		b, err := c.fetchByte()

		if err != nil {
			c.trap(err)
			return false
		}

		c.IR = b
		c.Step = Decode1

	// Decode1: resolve the operand count. Immediate loads finish here,
	// branches latch their offset and skip Decode2.
	case Decode1:
		op := Lookup(c.IR)

		if op == nil {
			c.trap(ErrInvalidInstruction)
			return false
		}

		n := op.Operands

		if n == OperandsBySyscall {
			if c.X == 3 {
				n = 2
			} else {
				n = 0
			}
		}

		switch {
		case n == 0:
			c.Step = Execute1

		case op.Immediate:
			b, err := c.fetchByte()

			if err != nil {
				c.trap(err)
				return false
			}

			switch c.IR {
			case opLDAi:
				c.AC = b
			case opLDXi:
				c.X = b
			case opLDYi:
				c.Y = b
			}

			c.Step = InterruptCheck

		case n == 1:
			b, err := c.fetchByte()

			if err != nil {
				c.trap(err)
				return false
			}

			c.Mem.SetLowOrder(b)
			c.Step = Execute1

		default:
			b, err := c.fetchByte()

			if err != nil {
				c.trap(err)
				return false
			}

			c.Mem.SetLowOrder(b)
			c.Step = Decode2
		}

	// Decode2: latch the high-order byte with the partition relocation
	// offset added, making the MAR physical.
	case Decode2:
		b, err := c.fetchByte()

		if err != nil {
			c.trap(err)
			return false
		}

		c.Mem.SetHighOrder(b + byte(c.Mem.Base()>>8))
		c.Step = Execute1

	case Execute1:
		c.execute()

	// Execute2: INC bounds-checks the staged value and increments it.
	case Execute2:
		if c.AC == 0xFF {
			c.trap(ErrBounds)
			return false
		}

		c.AC++
		c.Step = WriteBack

	// WriteBack: INC stores the incremented value back through the MAR.
	case WriteBack:
		if err := c.Mem.Write(c.AC); err != nil {
			c.trap(err)
			return false
		}

		c.Step = InterruptCheck

	// InterruptCheck: deferred kernel work runs between pulses in the
	// cooperative clock model, so this stage only closes the cycle.
	case InterruptCheck:
		c.Step = Fetch
		return true
	}

	return false
}

func (c *CPU) execute() {
	switch c.IR {

	// BRK: halt
	case opBRK:
		c.halt(nil)
		return

	// ADC: AC += mem[MAR], wrapping with carry
	case opADC:
		v, err := c.Mem.Read()

		if err != nil {
			c.trap(err)
			return
		}

		sum := uint16(c.AC) + uint16(v)

		if sum > 0xFF {
			c.Carry = 1
		} else {
			c.Carry = 0
		}

		c.AC = byte(sum)

	// TXA: AC = X
	case opTXA:
		c.AC = c.X

	// STA: mem[MAR] = AC
	case opSTA:
		if err := c.Mem.Write(c.AC); err != nil {
			c.trap(err)
			return
		}

	// TYA: AC = Y
	case opTYA:
		c.AC = c.Y

	// TAY: Y = AC
	case opTAY:
		c.Y = c.AC

	// TAX: X = AC
	case opTAX:
		c.X = c.AC

	// LDY absolute: Y = mem[MAR]
	case opLDYa:
		v, err := c.Mem.Read()

		if err != nil {
			c.trap(err)
			return
		}

		c.Y = v

	// LDA absolute: AC = mem[MAR]
	case opLDAa:
		v, err := c.Mem.Read()

		if err != nil {
			c.trap(err)
			return
		}

		c.AC = v

	// LDX absolute: X = mem[MAR]
	case opLDXa:
		v, err := c.Mem.Read()

		if err != nil {
			c.trap(err)
			return
		}

		c.X = v

	// BNE: branch by signed offset when the Z flag is clear. The offset
	// is relative to the PC after the branch byte was consumed.
	case opBNE:
		if c.Z == 0 {
			offset := encoding.SignedOffset(byte(c.Mem.MAR()))
			c.PC = uint16(int(c.PC) + offset)
		}

	// NOP
	case opNOP:

	// CPX: Z = (X == mem[MAR])
	case opCPX:
		v, err := c.Mem.Read()

		if err != nil {
			c.trap(err)
			return
		}

		if c.X == v {
			c.Z = 1
		} else {
			c.Z = 0
		}

	// INC: stage mem[MAR] in AC and continue through Execute2/WriteBack
	case opINC:
		v, err := c.Mem.Read()

		if err != nil {
			c.trap(err)
			return
		}

		c.AC = v
		c.Step = Execute2
		return

	// SYS: dispatch on X
	case opSYS:
		if err := c.syscall(); err != nil {
			c.trap(err)
			return
		}
	}

	c.Step = InterruptCheck
}

func (c *CPU) syscall() error {
	switch c.X {

	// Print the decimal value of Y
	case 1:
		if c.Console != nil {
			c.Console.PutText(strconv.Itoa(int(c.Y)))
		}

	// Print the NUL-terminated string at the logical address in Y
	case 2:
		s, err := c.readString(c.Mem.Base() + uint16(c.Y))

		if err != nil {
			return err
		}

		if c.Console != nil {
			c.Console.PutText(s)
		}

	// Print the NUL-terminated string at the MAR
	case 3:
		s, err := c.readString(c.Mem.MAR())

		if err != nil {
			return err
		}

		if c.Console != nil {
			c.Console.PutText(s)
		}
	}

	return nil
}

func (c *CPU) readString(addr uint16) (string, error) {
	var sb []byte

	for {
		b, err := c.Mem.ReadAt(addr)

		if err != nil {
			return "", err
		}

		if b == 0x00 {
			break
		}

		sb = append(sb, b)
		addr++
	}

	return string(sb), nil
}

// fetchByte reads the byte at the relocated PC and advances the PC.
func (c *CPU) fetchByte() (byte, error) {
	b, err := c.Mem.ReadAt(c.Mem.Base() + c.PC)

	if err != nil {
		return 0, err
	}

	c.PC++
	return b, nil
}

func (c *CPU) trap(err error) {
	if c.Console != nil {
		var msg string

		switch err {
		case ErrInvalidInstruction:
			msg = fmt.Sprintf(
				"ERR: %02X is not a valid instruction. Halting program...",
				c.IR,
			)
		case ErrBounds:
			msg = "ERR: memory access out of bounds. Halting program..."
		default:
			msg = fmt.Sprintf("ERR: %v. Halting program...", err)
		}

		c.Console.PutText(msg)
		c.Console.AdvanceLine()
	}

	c.halt(err)
}

func (c *CPU) halt(err error) {
	c.IsExecuting = false
	c.Step = Fetch

	if c.OnHalt != nil {
		c.OnHalt(err)
	}
}
