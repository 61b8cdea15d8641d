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
	"log"

	"github.com/lassandro/gosos/pkg/disk"
	"github.com/lassandro/gosos/pkg/encoding"
	"github.com/lassandro/gosos/pkg/machine"
)

// StdOut is the terminal surface the kernel and CPU print to.
type StdOut interface {
	PutText(s string)
	AdvanceLine()
	ClearScreen()
	ResetXY()
	CurrentXPosition() int
}

// Kernel owns every simulated component and threads them together. All
// state lives here; there are no package-level singletons.
type Kernel struct {
	Config Config
	Log    *log.Logger
	Out    StdOut

	Mem   *machine.Memory
	Acc   *machine.Accessor
	CPU   *machine.CPU
	Disk  *disk.Driver
	MM    *MemoryManager
	Sched *Scheduler
}

// New wires a kernel from a validated config. The disk may be supplied
// (restored from an image); pass nil for a fresh unformatted one.
func New(cfg Config, out StdOut, logger *log.Logger, dsk *disk.Driver) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	k := &Kernel{Config: cfg, Log: logger, Out: out}

	k.Mem = machine.NewMemory(cfg.PartitionSize, cfg.PartitionCount)
	k.Acc = machine.NewAccessor(k.Mem)
	k.CPU = machine.NewCPU(k.Acc, out)

	if dsk != nil {
		k.Disk = dsk
	} else {
		k.Disk = disk.NewDriver(disk.Geometry{
			Tracks:   cfg.Tracks,
			Sectors:  cfg.Sectors,
			Blocks:   cfg.BlocksPer,
			DataSize: cfg.BlockDataSize,
		})
	}

	k.Disk.Trace = k.Trace
	k.MM = NewMemoryManager(k.Mem, k.Disk, k.Trace)
	k.Sched = NewScheduler(k.CPU, k.MM, k.Trace)

	if err := k.Sched.SetQuantum(cfg.Quantum); err != nil {
		return nil, err
	}

	alg, err := ParseAlgorithm(cfg.Algorithm)

	if err != nil {
		return nil, err
	}

	k.Sched.SetSchedule(alg)
	return k, nil
}

// Trace logs a kernel diagnostic when tracing is enabled.
func (k *Kernel) Trace(msg string) {
	if k.Config.Trace && k.Log != nil {
		k.Log.Printf("TRACE: %s", msg)
	}
}

// TrapError reports an unrecoverable kernel condition to the user and
// the log.
func (k *Kernel) TrapError(msg string) {
	if k.Log != nil {
		k.Log.Printf("TRAP: %s", msg)
	}

	if k.Out != nil {
		k.Out.PutText("KERNEL TRAP: " + msg)
		k.Out.AdvanceLine()
	}
}

// Pulse is the external clock entry point; one call is one CPU pulse.
func (k *Kernel) Pulse() {
	k.Sched.Tick()
}

// Load validates a program text and registers it as a new process.
func (k *Kernel) Load(text string, priority int) (*PCB, error) {
	program, err := encoding.ParseProgram(text)

	if err != nil {
		return nil, err
	}

	return k.MM.Allocate(program, priority)
}

// Run admits a resident process into the ready queue.
func (k *Kernel) Run(pid int) error {
	p, ok := k.MM.ByID(pid)

	if !ok {
		return fmt.Errorf("%w: no process %d", ErrInvalidArgument, pid)
	}

	if p.State != StateResident {
		return fmt.Errorf(
			"%w: process %d is %s", ErrInvalidArgument, pid, p.State,
		)
	}

	return k.Sched.Enqueue(p)
}

// RunAll admits every resident process.
func (k *Kernel) RunAll() {
	for _, p := range k.MM.Processes() {
		if p.State == StateResident {
			k.Sched.Enqueue(p)
		}
	}
}

// PS returns every registered PCB in allocation order.
func (k *Kernel) PS() []*PCB {
	return k.MM.Processes()
}

// HaltProgramSilent stops a process without the trap message path: the
// CPU is aborted if the process is running, and the process deallocated.
func (k *Kernel) HaltProgramSilent(p *PCB) {
	if k.Sched.Running() == p {
		k.CPU.Abort()
		k.Sched.running = nil
	}

	k.MM.Deallocate(p)
}

// Kill terminates one process wherever it currently is.
func (k *Kernel) Kill(pid int) error {
	p, ok := k.MM.ByID(pid)

	if !ok {
		return fmt.Errorf("%w: no process %d", ErrInvalidArgument, pid)
	}

	if p.State == StateTerminated {
		return nil
	}

	k.Trace(fmt.Sprintf("killing process %d (%s)", pid, p.State))

	if p.State == StateReady {
		k.Sched.Extract(p)
	}

	k.HaltProgramSilent(p)
	return nil
}

// KillAll halts the running process, empties the ready queue and
// deallocates every process still alive.
func (k *Kernel) KillAll() {
	if p := k.Sched.Running(); p != nil {
		k.HaltProgramSilent(p)
	}

	k.Sched.Clear()

	for _, p := range k.MM.Processes() {
		if p.State != StateTerminated {
			k.MM.Deallocate(p)
		}
	}
}

// ClearMem deallocates every RAM-resident process. Refused while a
// process is running.
func (k *Kernel) ClearMem() error {
	if k.Sched.Running() != nil {
		return fmt.Errorf(
			"%w: cannot clear memory while a process is running",
			ErrInvalidArgument,
		)
	}

	for _, p := range k.MM.Processes() {
		if p.State == StateTerminated || p.Location != LocationRAM {
			continue
		}

		if p.State == StateReady {
			k.Sched.Extract(p)
		}

		k.MM.Deallocate(p)
	}

	return nil
}

// SetQuantum changes the round robin quantum.
func (k *Kernel) SetQuantum(n int) error {
	return k.Sched.SetQuantum(n)
}

// GetSchedule names the active scheduling algorithm.
func (k *Kernel) GetSchedule() string {
	return k.Sched.Schedule().String()
}

// SetSchedule switches the scheduling algorithm.
func (k *Kernel) SetSchedule(name string) error {
	alg, err := ParseAlgorithm(name)

	if err != nil {
		return err
	}

	k.Sched.SetSchedule(alg)
	return nil
}

// Disk passthroughs. Filesystem errors surface to the caller and never
// disturb resident processes.

func (k *Kernel) Format(quick bool) error {
	if quick {
		return k.Disk.FormatQuick()
	}

	k.Disk.Format()
	return nil
}

func (k *Kernel) CreateFile(name string) error {
	return k.Disk.Create(name)
}

func (k *Kernel) ReadFile(name string) ([]byte, error) {
	return k.Disk.Read(name)
}

func (k *Kernel) WriteFile(name string, data []byte) error {
	return k.Disk.Write(name, data)
}

func (k *Kernel) DeleteFile(name string) error {
	return k.Disk.Delete(name)
}

func (k *Kernel) CopyFile(existing, name string) error {
	return k.Disk.Copy(existing, name)
}

func (k *Kernel) RenameFile(old, name string) error {
	return k.Disk.Rename(old, name)
}

func (k *Kernel) ListFiles(all bool) ([]string, error) {
	return k.Disk.List(all)
}
