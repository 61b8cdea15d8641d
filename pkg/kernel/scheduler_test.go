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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/gosos/pkg/disk"
	"github.com/lassandro/gosos/pkg/machine"
)

// tenPulseProgram executes in exactly ten full-cycle pulses.
var tenPulseProgram = []byte{
	0xEA, 0xEA, 0xEA, 0xEA, 0xEA, 0xEA, 0xEA, 0xEA, 0xEA, 0x00,
}

type schedRig struct {
	mm    *MemoryManager
	cpu   *machine.CPU
	sched *Scheduler

	dispatches []int
}

func newSchedRig(t *testing.T, partitions int) *schedRig {
	t.Helper()

	rig := &schedRig{}

	mem := machine.NewMemory(256, partitions)
	acc := machine.NewAccessor(mem)
	rig.cpu = machine.NewCPU(acc, nil)

	dsk := disk.NewDriver(disk.DefaultGeometry)
	dsk.Format()

	rig.mm = NewMemoryManager(mem, dsk, nil)
	rig.sched = NewScheduler(rig.cpu, rig.mm, func(msg string) {
		var pid int

		if _, err := fmt.Sscanf(
			msg, "dispatching process %d", &pid,
		); err == nil {
			rig.dispatches = append(rig.dispatches, pid)
		}
	})

	return rig
}

// runToIdle ticks until nothing is left to run, verifying the
// single-RUNNING invariant at every pulse.
func (rig *schedRig) runToIdle(t *testing.T, max int) int {
	t.Helper()

	ticks := 0

	for !rig.sched.Idle() {
		require.Less(t, ticks, max, "scheduler did not drain")
		rig.sched.Tick()
		ticks++

		running := 0

		for _, p := range rig.mm.Processes() {
			if p.State == StateRunning {
				running++
			}
		}

		require.LessOrEqual(t, running, 1,
			"more than one process RUNNING")
	}

	return ticks
}

func TestRoundRobinFairness(t *testing.T) {
	rig := newSchedRig(t, 3)
	require.NoError(t, rig.sched.SetQuantum(2))

	for i := 0; i < 2; i++ {
		pcb, err := rig.mm.Allocate(tenPulseProgram, DefaultPriority)
		require.NoError(t, err)
		require.NoError(t, rig.sched.Enqueue(pcb))
	}

	ticks := rig.runToIdle(t, 100)

	assert.Equal(t, 20, ticks, "two ten-pulse programs, one pulse per tick")
	assert.Equal(t, []int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1}, rig.dispatches,
		"round robin should alternate every quantum")

	for _, p := range rig.mm.Processes() {
		assert.Equal(t, StateTerminated, p.State)
	}
}

func TestFCFSRunsToCompletion(t *testing.T) {
	rig := newSchedRig(t, 3)
	rig.sched.SetSchedule(FCFS)
	require.NoError(t, rig.sched.SetQuantum(2))

	for i := 0; i < 2; i++ {
		pcb, err := rig.mm.Allocate(tenPulseProgram, DefaultPriority)
		require.NoError(t, err)
		require.NoError(t, rig.sched.Enqueue(pcb))
	}

	rig.runToIdle(t, 100)

	assert.Equal(t, []int{0, 1}, rig.dispatches,
		"FCFS should never preempt on quantum expiry")
}

func TestPriorityOrder(t *testing.T) {
	rig := newSchedRig(t, 3)
	rig.sched.SetSchedule(Priority)

	priorities := []int{20, 5, 32}

	for _, priority := range priorities {
		pcb, err := rig.mm.Allocate(tenPulseProgram, priority)
		require.NoError(t, err)
		require.NoError(t, rig.sched.Enqueue(pcb))
	}

	rig.runToIdle(t, 100)

	assert.Equal(t, []int{1, 0, 2}, rig.dispatches,
		"lowest priority value should dispatch first")
}

func TestPriorityFIFOAmongEquals(t *testing.T) {
	rig := newSchedRig(t, 3)
	rig.sched.SetSchedule(Priority)

	for i := 0; i < 3; i++ {
		pcb, err := rig.mm.Allocate(tenPulseProgram, 7)
		require.NoError(t, err)
		require.NoError(t, rig.sched.Enqueue(pcb))
	}

	rig.runToIdle(t, 100)

	assert.Equal(t, []int{0, 1, 2}, rig.dispatches)
}

func TestEnqueueRejectsTerminated(t *testing.T) {
	rig := newSchedRig(t, 3)

	pcb, err := rig.mm.Allocate(tenPulseProgram, DefaultPriority)
	require.NoError(t, err)

	rig.mm.Deallocate(pcb)

	err = rig.sched.Enqueue(pcb)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.True(t, rig.sched.Idle())
}

func TestQuantumValidation(t *testing.T) {
	rig := newSchedRig(t, 3)

	assert.ErrorIs(t, rig.sched.SetQuantum(0), ErrInvalidArgument)
	assert.ErrorIs(t, rig.sched.SetQuantum(-3), ErrInvalidArgument)
	assert.Equal(t, DefaultQuantum, rig.sched.Quantum())

	require.NoError(t, rig.sched.SetQuantum(9))
	assert.Equal(t, 9, rig.sched.Quantum())
}

func TestParseAlgorithm(t *testing.T) {
	for name, want := range map[string]Algorithm{
		"rr":          RoundRobin,
		"round robin": RoundRobin,
		"ROUND ROBIN": RoundRobin,
		"fcfs":        FCFS,
		"priority":    Priority,
	} {
		have, err := ParseAlgorithm(name)
		require.NoError(t, err)
		assert.Equal(t, want, have)
	}

	_, err := ParseAlgorithm("lottery")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExtractAndClear(t *testing.T) {
	rig := newSchedRig(t, 3)

	var pcbs []*PCB

	for i := 0; i < 3; i++ {
		pcb, err := rig.mm.Allocate(tenPulseProgram, DefaultPriority)
		require.NoError(t, err)
		require.NoError(t, rig.sched.Enqueue(pcb))
		pcbs = append(pcbs, pcb)
	}

	rig.sched.Extract(pcbs[1])
	rig.sched.Tick()

	assert.Equal(t, pcbs[0], rig.sched.Running())

	rig.sched.Clear()
	assert.Equal(t, pcbs[0], rig.sched.Running(),
		"clear should not touch the running process")

	// Only the running process is left; it drains alone.
	for !rig.sched.Idle() {
		rig.sched.Tick()
	}

	assert.Equal(t, StateTerminated, pcbs[0].State)
	assert.Equal(t, StateReady, pcbs[1].State)
	assert.Equal(t, StateReady, pcbs[2].State)
}

func TestSwapInOnDispatch(t *testing.T) {
	rig := newSchedRig(t, 3)

	var pcbs []*PCB

	for i := 0; i < 4; i++ {
		pcb, err := rig.mm.Allocate(tenPulseProgram, DefaultPriority)
		require.NoError(t, err)
		pcbs = append(pcbs, pcb)
	}

	require.Equal(t, LocationDisk, pcbs[3].Location)

	for _, pcb := range pcbs {
		require.NoError(t, rig.sched.Enqueue(pcb))
	}

	rig.runToIdle(t, 500)

	for _, pcb := range pcbs {
		assert.Equal(t, StateTerminated, pcb.State)
	}

	names, err := rig.mm.dsk.List(true)
	require.NoError(t, err)

	for _, name := range names {
		assert.False(t, strings.HasSuffix(name, ".swp"),
			"swap files should not outlive their processes")
	}
}

func TestSwapOutVictimIsLeastRecentlyDispatched(t *testing.T) {
	rig := newSchedRig(t, 2)
	require.NoError(t, rig.sched.SetQuantum(2))

	// Two residents fill RAM, the third overflows to disk.
	var pcbs []*PCB

	for i := 0; i < 3; i++ {
		pcb, err := rig.mm.Allocate(tenPulseProgram, DefaultPriority)
		require.NoError(t, err)
		pcbs = append(pcbs, pcb)
		require.NoError(t, rig.sched.Enqueue(pcb))
	}

	// Tick until process 2 gets dispatched for the first time.
	for i := 0; i < 100; i++ {
		rig.sched.Tick()

		if rig.sched.Running() == pcbs[2] {
			break
		}
	}

	require.Equal(t, pcbs[2], rig.sched.Running())
	assert.Equal(t, LocationRAM, pcbs[2].Location)

	// Process 0 ran first, so it was the roll-out victim.
	assert.Equal(t, LocationDisk, pcbs[0].Location)
	assert.Equal(t, NoAddress, pcbs[0].StartingAddress)
	assert.Equal(t, LocationRAM, pcbs[1].Location)
}
