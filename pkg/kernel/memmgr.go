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
	"fmt"
	"strings"

	"github.com/lassandro/gosos/pkg/disk"
	"github.com/lassandro/gosos/pkg/encoding"
	"github.com/lassandro/gosos/pkg/machine"
)

// swapFileFormat names the hidden disk file holding a swapped process's
// program image. It is the one contract between the memory manager and
// the disk driver.
const swapFileFormat = ".process%d.swp"

// MemoryManager places new programs into RAM partitions and overflows
// them onto disk as hidden swap files when no partition is free.
type MemoryManager struct {
	mem   *machine.Memory
	dsk   *disk.Driver
	trace func(msg string)

	procs   []*PCB
	nextPID int
}

func NewMemoryManager(
	mem *machine.Memory,
	dsk *disk.Driver,
	trace func(msg string),
) *MemoryManager {
	return &MemoryManager{mem: mem, dsk: dsk, trace: trace}
}

// Allocate registers a new process for a program image, RAM-resident
// when a partition is free and disk-resident otherwise.
func (mm *MemoryManager) Allocate(program []byte, priority int) (*PCB, error) {
	limit := mm.mem.PartitionSize()

	if len(program) > limit {
		return nil, machine.ErrProgramTooLarge
	}

	pcb := &PCB{
		ProcessID: mm.nextPID,
		Priority:  priority,
		State:     StateResident,
	}

	if base, ok := mm.freePartition(); ok {
		pcb.Location = LocationRAM
		pcb.StartingAddress = int(base)

		if err := mm.mem.WriteProgram(program, base, uint16(limit)); err != nil {
			return nil, err
		}
	} else {
		pcb.Location = LocationDisk
		pcb.StartingAddress = NoAddress

		name := mm.swapFileName(pcb.ProcessID)

		if err := mm.dsk.Create(name); err != nil {
			return nil, fmt.Errorf("swap file %s: %w", name, err)
		}

		text := encoding.FormatProgram(program)

		if err := mm.dsk.Write(name, []byte(text)); err != nil {
			return nil, fmt.Errorf("swap file %s: %w", name, err)
		}

		mm.traceMsg(fmt.Sprintf(
			"no free partition, process %d rolled out to %s",
			pcb.ProcessID, name,
		))
	}

	mm.nextPID++
	mm.procs = append(mm.procs, pcb)
	return pcb, nil
}

// Deallocate releases a process's partition or swap file and terminates
// it. Safe to call on an already terminated PCB.
func (mm *MemoryManager) Deallocate(pcb *PCB) {
	if pcb.State == StateTerminated {
		return
	}

	if pcb.Location == LocationRAM && pcb.StartingAddress != NoAddress {
		mm.mem.ClearProgram(
			uint16(pcb.StartingAddress),
			uint16(mm.mem.PartitionSize()),
		)
	}

	if pcb.Location == LocationDisk {
		name := mm.swapFileName(pcb.ProcessID)

		if err := mm.dsk.Delete(name); err != nil && err != disk.ErrNotFound {
			mm.traceMsg(fmt.Sprintf("deleting %s: %v", name, err))
		}
	}

	pcb.SetState(StateTerminated)
}

// HasFreePartition reports whether some partition is free: its base byte
// reads zero and no live process claims it.
func (mm *MemoryManager) HasFreePartition() bool {
	_, ok := mm.freePartition()
	return ok
}

// freePartition scans partition bases in order for the first free one.
// A zero base byte is advisory; a live process claiming the partition
// keeps it occupied regardless.
func (mm *MemoryManager) freePartition() (uint16, bool) {
	for _, base := range mm.mem.PartitionBases() {
		if mm.mem.ReadImmediate(base) != 0x00 {
			continue
		}

		if mm.claimed(base) {
			continue
		}

		return base, true
	}

	return 0, false
}

func (mm *MemoryManager) claimed(base uint16) bool {
	for _, p := range mm.procs {
		if p.State != StateTerminated &&
			p.Location == LocationRAM &&
			p.StartingAddress == int(base) {
			return true
		}
	}

	return false
}

// Processes returns every registered PCB in allocation order.
func (mm *MemoryManager) Processes() []*PCB {
	return mm.procs
}

// ByID resolves a process id to its PCB.
func (mm *MemoryManager) ByID(pid int) (*PCB, bool) {
	for _, p := range mm.procs {
		if p.ProcessID == pid {
			return p, true
		}
	}

	return nil, false
}

// SwapOut rolls a RAM-resident process's partition image out to a swap
// file and returns the freed partition base.
func (mm *MemoryManager) SwapOut(victim *PCB) (uint16, error) {
	base := uint16(victim.StartingAddress)
	limit := mm.mem.PartitionSize()

	image := make([]byte, limit)

	for i := 0; i < limit; i++ {
		image[i] = mm.mem.ReadImmediate(base + uint16(i))
	}

	name := mm.swapFileName(victim.ProcessID)

	if err := mm.dsk.Create(name); err != nil {
		return 0, fmt.Errorf("swap file %s: %w", name, err)
	}

	text := encoding.FormatProgram(image)

	if err := mm.dsk.Write(name, []byte(text)); err != nil {
		return 0, fmt.Errorf("swap file %s: %w", name, err)
	}

	mm.mem.ClearProgram(base, uint16(limit))

	victim.Location = LocationDisk
	victim.StartingAddress = NoAddress

	mm.traceMsg(fmt.Sprintf("process %d rolled out of %#04x", victim.ProcessID, base))
	return base, nil
}

// SwapIn installs a disk-resident process's program image into a free
// partition and removes its swap file.
func (mm *MemoryManager) SwapIn(pcb *PCB, base uint16) error {
	name := mm.swapFileName(pcb.ProcessID)

	content, err := mm.dsk.Read(name)

	if err != nil {
		return fmt.Errorf("swap file %s: %w", name, err)
	}

	program, err := parseSwapImage(string(content))

	if err != nil {
		return fmt.Errorf("swap file %s: %w", name, err)
	}

	limit := uint16(mm.mem.PartitionSize())

	if err := mm.mem.WriteProgram(program, base, limit); err != nil {
		return err
	}

	if err := mm.dsk.Delete(name); err != nil {
		mm.traceMsg(fmt.Sprintf("deleting %s: %v", name, err))
	}

	pcb.Location = LocationRAM
	pcb.StartingAddress = int(base)

	mm.traceMsg(fmt.Sprintf("process %d rolled in to %#04x", pcb.ProcessID, base))
	return nil
}

// parseSwapImage decodes swap file content. Disk reads strip trailing
// pad characters, which can clip a digit off the final hex token; an
// odd-length tail gets its '0' restored before parsing.
func parseSwapImage(content string) ([]byte, error) {
	tokens := strings.Fields(content)

	if n := len(tokens); n > 0 && len(tokens[n-1]) == 1 {
		tokens[n-1] += "0"
		content = strings.Join(tokens, " ")
	}

	return encoding.ParseProgram(content)
}

func (mm *MemoryManager) swapFileName(pid int) string {
	return fmt.Sprintf(swapFileFormat, pid)
}

func (mm *MemoryManager) traceMsg(msg string) {
	if mm.trace != nil {
		mm.trace(msg)
	}
}
