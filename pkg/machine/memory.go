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

// Memory is the physical byte store, divided into equally sized,
// contiguous, non-overlapping partitions.
type Memory struct {
	cells     []byte
	partSize  int
	partCount int
}

func NewMemory(partitionSize, partitionCount int) *Memory {
	return &Memory{
		cells:     make([]byte, partitionSize*partitionCount),
		partSize:  partitionSize,
		partCount: partitionCount,
	}
}

func (m *Memory) Size() int {
	return len(m.cells)
}

func (m *Memory) PartitionSize() int {
	return m.partSize
}

func (m *Memory) PartitionCount() int {
	return m.partCount
}

// PartitionBases returns the base address of each partition in order.
func (m *Memory) PartitionBases() []uint16 {
	bases := make([]uint16, m.partCount)

	for i := range bases {
		bases[i] = uint16(i * m.partSize)
	}

	return bases
}

// ReadImmediate reads a byte by physical address, no translation.
func (m *Memory) ReadImmediate(addr uint16) byte {
	return m.cells[addr]
}

// WriteImmediate writes a byte by physical address, no translation.
func (m *Memory) WriteImmediate(addr uint16, value byte) {
	m.cells[addr] = value
}

// WriteProgram installs a program image into [base, base+limit) and
// zero-fills the unused tail.
func (m *Memory) WriteProgram(image []byte, base, limit uint16) error {
	if len(image) > int(limit) {
		return ErrProgramTooLarge
	}

	for i := uint16(0); i < limit; i++ {
		if int(i) < len(image) {
			m.cells[base+i] = image[int(i)]
		} else {
			m.cells[base+i] = 0x00
		}
	}

	return nil
}

// ClearProgram zeroes [base, base+limit).
func (m *Memory) ClearProgram(base, limit uint16) {
	for i := uint16(0); i < limit; i++ {
		m.cells[base+i] = 0x00
	}
}
