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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/gosos/pkg/disk"
	"github.com/lassandro/gosos/pkg/machine"
)

func testMM(t *testing.T) *MemoryManager {
	t.Helper()

	mem := machine.NewMemory(256, 3)
	dsk := disk.NewDriver(disk.DefaultGeometry)
	dsk.Format()

	return NewMemoryManager(mem, dsk, nil)
}

var smokeProgram = []byte{0xA9, 0x05, 0x8D, 0x10, 0x00, 0xAD, 0x10, 0x00, 0x00}

func TestAllocateFillsPartitions(t *testing.T) {
	mm := testMM(t)

	for i := 0; i < 3; i++ {
		pcb, err := mm.Allocate(smokeProgram, DefaultPriority)
		require.NoError(t, err)

		assert.Equal(t, i, pcb.ProcessID)
		assert.Equal(t, LocationRAM, pcb.Location)
		assert.Equal(t, StateResident, pcb.State)
		assert.Equal(t, i*256, pcb.StartingAddress)
	}

	assert.False(t, mm.HasFreePartition())
}

func TestAllocateOverflowsToDisk(t *testing.T) {
	mm := testMM(t)

	for i := 0; i < 3; i++ {
		_, err := mm.Allocate(smokeProgram, DefaultPriority)
		require.NoError(t, err)
	}

	pcb, err := mm.Allocate(smokeProgram, DefaultPriority)
	require.NoError(t, err)

	assert.Equal(t, 3, pcb.ProcessID)
	assert.Equal(t, LocationDisk, pcb.Location)
	assert.Equal(t, NoAddress, pcb.StartingAddress)

	names, err := mm.dsk.List(true)
	require.NoError(t, err)
	assert.Contains(t, names, ".process3.swp")

	names, err = mm.dsk.List(false)
	require.NoError(t, err)
	assert.NotContains(t, names, ".process3.swp",
		"swap files should be hidden")
}

func TestOverflowNeedsFormattedDisk(t *testing.T) {
	mem := machine.NewMemory(256, 1)
	dsk := disk.NewDriver(disk.DefaultGeometry)
	mm := NewMemoryManager(mem, dsk, nil)

	_, err := mm.Allocate(smokeProgram, DefaultPriority)
	require.NoError(t, err)

	_, err = mm.Allocate(smokeProgram, DefaultPriority)
	assert.ErrorIs(t, err, disk.ErrNotFormatted)
}

func TestDeallocateZeroesPartition(t *testing.T) {
	mm := testMM(t)

	pcb, err := mm.Allocate(smokeProgram, DefaultPriority)
	require.NoError(t, err)

	mm.Deallocate(pcb)

	assert.Equal(t, StateTerminated, pcb.State)
	assert.True(t, mm.HasFreePartition())

	for i := uint16(0); i < 256; i++ {
		require.Equal(t, byte(0), mm.mem.ReadImmediate(i))
	}

	// Idempotent on terminated processes
	mm.Deallocate(pcb)
	assert.Equal(t, StateTerminated, pcb.State)
}

func TestDeallocateRemovesSwapFile(t *testing.T) {
	mm := testMM(t)

	for i := 0; i < 3; i++ {
		_, err := mm.Allocate(smokeProgram, DefaultPriority)
		require.NoError(t, err)
	}

	pcb, err := mm.Allocate(smokeProgram, DefaultPriority)
	require.NoError(t, err)

	mm.Deallocate(pcb)

	names, err := mm.dsk.List(true)
	require.NoError(t, err)
	assert.NotContains(t, names, ".process3.swp")
}

func TestProgramTooLarge(t *testing.T) {
	mm := testMM(t)

	_, err := mm.Allocate(make([]byte, 257), DefaultPriority)
	assert.Equal(t, machine.ErrProgramTooLarge, err)
	assert.Empty(t, mm.Processes())
}

func TestSwapRoundTrip(t *testing.T) {
	mm := testMM(t)

	pcb, err := mm.Allocate(smokeProgram, DefaultPriority)
	require.NoError(t, err)

	before := make([]byte, 256)

	for i := range before {
		before[i] = mm.mem.ReadImmediate(uint16(i))
	}

	base, err := mm.SwapOut(pcb)
	require.NoError(t, err)

	assert.Equal(t, uint16(0), base)
	assert.Equal(t, LocationDisk, pcb.Location)
	assert.Equal(t, NoAddress, pcb.StartingAddress)
	assert.True(t, mm.HasFreePartition())

	require.NoError(t, mm.SwapIn(pcb, base))

	assert.Equal(t, LocationRAM, pcb.Location)
	assert.Equal(t, 0, pcb.StartingAddress)

	for i := range before {
		require.Equal(t, before[i], mm.mem.ReadImmediate(uint16(i)),
			"partition image should survive the swap cycle")
	}

	names, err := mm.dsk.List(true)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestParseSwapImageRestoresClippedToken(t *testing.T) {
	// A trailing 0x30 byte loses its second digit to pad trimming
	image, err := parseSwapImage("A9 3")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA9, 0x30}, image)

	image, err = parseSwapImage("A9 05")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA9, 0x05}, image)

	image, err = parseSwapImage("")
	require.NoError(t, err)
	assert.Empty(t, image)
}
