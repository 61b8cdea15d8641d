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
	"errors"
	"fmt"
	"strings"

	"github.com/lassandro/gosos/pkg/machine"
)

var ErrInvalidArgument = errors.New("invalid argument")

type Algorithm uint8

const (
	RoundRobin Algorithm = iota
	FCFS
	Priority
)

var algorithmNames = []string{"ROUND ROBIN", "FCFS", "PRIORITY"}

func (a Algorithm) String() string {
	if int(a) < len(algorithmNames) {
		return algorithmNames[a]
	}

	return "UNKNOWN"
}

// ParseAlgorithm resolves a user-supplied algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ROUND ROBIN", "ROUNDROBIN", "RR":
		return RoundRobin, nil
	case "FCFS":
		return FCFS, nil
	case "PRIORITY":
		return Priority, nil
	}

	return 0, fmt.Errorf("%w: unknown schedule %q", ErrInvalidArgument, s)
}

const DefaultQuantum = 6

// Scheduler orders READY processes and dispatches them into the CPU,
// counting quantum pulses and swapping disk-resident processes in on
// demand.
type Scheduler struct {
	cpu   *machine.CPU
	mm    *MemoryManager
	trace func(msg string)

	quantum   int
	algorithm Algorithm

	ready   []*PCB
	running *PCB

	dispatchSeq uint64
	enqueueSeq  uint64
}

func NewScheduler(
	cpu *machine.CPU,
	mm *MemoryManager,
	trace func(msg string),
) *Scheduler {
	s := &Scheduler{
		cpu:     cpu,
		mm:      mm,
		trace:   trace,
		quantum: DefaultQuantum,
	}

	cpu.OnHalt = s.handleHalt
	return s
}

func (s *Scheduler) Quantum() int {
	return s.quantum
}

func (s *Scheduler) SetQuantum(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: quantum %d", ErrInvalidArgument, n)
	}

	s.quantum = n
	return nil
}

func (s *Scheduler) Schedule() Algorithm {
	return s.algorithm
}

func (s *Scheduler) SetSchedule(a Algorithm) {
	s.algorithm = a
}

func (s *Scheduler) Running() *PCB {
	return s.running
}

// Idle reports whether there is nothing to run.
func (s *Scheduler) Idle() bool {
	return s.running == nil && len(s.ready) == 0
}

// Enqueue admits a resident or ready process into the ready queue.
// Disk-resident processes are admitted as well; they swap in when
// dispatched.
func (s *Scheduler) Enqueue(p *PCB) error {
	if p.State != StateResident && p.State != StateReady {
		return fmt.Errorf(
			"%w: process %d is %s", ErrInvalidArgument, p.ProcessID, p.State,
		)
	}

	p.SetState(StateReady)

	s.enqueueSeq++
	p.enqueueSeq = s.enqueueSeq

	s.ready = append(s.ready, p)
	return nil
}

// Extract removes a process from the ready queue.
func (s *Scheduler) Extract(p *PCB) {
	for i, q := range s.ready {
		if q == p {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			return
		}
	}
}

// Clear empties the ready queue without touching the running process.
func (s *Scheduler) Clear() {
	s.ready = nil
}

// Tick consumes one clock pulse: dispatch if nothing is running, step
// the CPU, and preempt on quantum expiry under a preemptive policy.
func (s *Scheduler) Tick() {
	if s.running == nil {
		if len(s.ready) == 0 {
			return
		}

		if err := s.dispatch(); err != nil {
			s.traceMsg(fmt.Sprintf("dispatch failed: %v", err))
			return
		}
	}

	s.cpu.Pulse()

	if s.running == nil {
		// The running process halted this pulse; bring the next one in
		// so the following tick executes it.
		if len(s.ready) > 0 {
			if err := s.dispatch(); err != nil {
				s.traceMsg(fmt.Sprintf("dispatch failed: %v", err))
			}
		}

		return
	}

	s.running.quantumUsed++

	// The PCB saves no pipeline position, so preemption waits for an
	// instruction boundary when the CPU is stepped stage by stage.
	if s.algorithm == RoundRobin &&
		s.running.quantumUsed >= s.quantum &&
		s.cpu.Step == machine.Fetch &&
		len(s.ready) > 0 {
		s.preempt()
	}
}

// dispatch pops the next process by policy, swaps it in if it lives on
// disk, and loads its state into the CPU.
func (s *Scheduler) dispatch() error {
	p := s.pop()

	if p.Location == LocationDisk {
		if err := s.swapIn(p); err != nil {
			// The process cannot run without an image; put it back so
			// the queue is not silently drained.
			s.ready = append([]*PCB{p}, s.ready...)
			return err
		}
	}

	p.SetState(StateRunning)
	p.quantumUsed = 0

	s.dispatchSeq++
	p.dispatchSeq = s.dispatchSeq

	p.Restore(s.cpu)
	s.cpu.Mem.SetProcess(
		uint16(p.StartingAddress),
		uint16(s.mm.mem.PartitionSize()),
	)
	s.cpu.IsExecuting = true

	s.running = p
	s.traceMsg(fmt.Sprintf("dispatching process %d", p.ProcessID))
	return nil
}

// pop removes the next process from the ready queue by policy: FIFO for
// round robin and FCFS, lowest priority value first (FIFO among equals)
// for priority scheduling.
func (s *Scheduler) pop() *PCB {
	best := 0

	if s.algorithm == Priority {
		for i, p := range s.ready[1:] {
			q := s.ready[best]

			if p.Priority < q.Priority ||
				(p.Priority == q.Priority && p.enqueueSeq < q.enqueueSeq) {
				best = i + 1
			}
		}
	}

	p := s.ready[best]
	s.ready = append(s.ready[:best], s.ready[best+1:]...)
	return p
}

// preempt snapshots the running process back into its PCB, requeues it
// and dispatches the next one.
func (s *Scheduler) preempt() {
	p := s.running

	p.Snapshot(s.cpu)
	p.SetState(StateReady)
	s.cpu.Abort()

	s.enqueueSeq++
	p.enqueueSeq = s.enqueueSeq
	s.ready = append(s.ready, p)

	s.running = nil
	s.traceMsg(fmt.Sprintf("quantum expired for process %d", p.ProcessID))

	if err := s.dispatch(); err != nil {
		s.traceMsg(fmt.Sprintf("dispatch failed: %v", err))
	}
}

// swapIn finds a partition for a disk-resident process, rolling out the
// least recently dispatched resident process if none is free. The
// victim's roll-out completes before the roll-in starts.
func (s *Scheduler) swapIn(p *PCB) error {
	base, ok := s.mm.freePartition()

	if !ok {
		victim := s.swapVictim()

		if victim == nil {
			return errors.New("no partition free and no swap victim")
		}

		freed, err := s.mm.SwapOut(victim)

		if err != nil {
			return err
		}

		base = freed
	}

	return s.mm.SwapIn(p, base)
}

// swapVictim picks the least recently dispatched RAM-resident process
// that is not currently running.
func (s *Scheduler) swapVictim() *PCB {
	var victim *PCB

	for _, p := range s.mm.Processes() {
		if p == s.running ||
			p.State == StateTerminated ||
			p.Location != LocationRAM {
			continue
		}

		if victim == nil || p.dispatchSeq < victim.dispatchSeq {
			victim = p
		}
	}

	return victim
}

// handleHalt runs on the CPU's halt path: the halting process is
// deallocated and the CPU freed for the next dispatch.
func (s *Scheduler) handleHalt(err error) {
	p := s.running
	s.running = nil

	if p == nil {
		return
	}

	if err != nil {
		s.traceMsg(fmt.Sprintf("process %d trapped: %v", p.ProcessID, err))
	}

	p.Snapshot(s.cpu)
	s.mm.Deallocate(p)
}

func (s *Scheduler) traceMsg(msg string) {
	if s.trace != nil {
		s.trace(msg)
	}
}
