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

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/k0kubun/pp/v3"

	"github.com/lassandro/gosos/pkg/debugger"
	"github.com/lassandro/gosos/pkg/kernel"
)

const shellHelp = `commands:
  load <file> [priority]      validate and register a program
  run <pid> | runall          admit process(es) to the ready queue
  ps [-v]                     list processes (-v dumps full PCBs)
  kill <pid> | killall        terminate process(es)
  clearmem                    release all resident processes
  quantum <n>                 set the round robin quantum
  getschedule                 show the scheduling algorithm
  setschedule <alg>           one of: round robin, fcfs, priority
  format [-quick]             format the disk
  create|read|delete <file>   file operations
  write <file> <data>         replace file content
  copy|rename <old> <new>     file operations
  ls [-a]                     list files (-a includes hidden)
  pulse [n]                   drive the clock by hand
  status                      dump scheduler and disk state
  exit`

type shell struct {
	krn     *kernel.Kernel
	console *console
	dbg     *debugger.Debugger

	interrupted bool

	// autorun marks commands that should drive the clock to completion.
	autorun bool
}

func (s *shell) repl() {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("gosos> ")

		if !scanner.Scan() {
			return
		}

		args := strings.Fields(scanner.Text())

		if len(args) == 0 {
			continue
		}

		if s.dispatch(args[0], args[1:]) {
			return
		}

		if s.autorun {
			s.autorun = false
			s.clock()
		}
	}
}

// clock drives pulses until the scheduler idles, honoring interrupts.
func (s *shell) clock() {
	for !s.krn.Sched.Idle() {
		if s.interrupted {
			s.interrupted = false
			fmt.Println("execution interrupted")
			return
		}

		s.krn.Pulse()
	}
}

func (s *shell) dispatch(cmd string, args []string) bool {
	switch cmd {

	case "help":
		fmt.Println(shellHelp)

	case "load":
		if len(args) < 1 || len(args) > 2 {
			log.Println("load <file> [priority]")
			return false
		}

		priority := kernel.DefaultPriority

		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])

			if err != nil || n < 0 {
				log.Printf("invalid priority %q", args[1])
				return false
			}

			priority = n
		}

		text, err := os.ReadFile(args[0])

		if err != nil {
			log.Println(err)
			return false
		}

		pcb, err := s.krn.Load(string(text), priority)

		if err != nil {
			log.Println(err)
			return false
		}

		fmt.Printf(
			"process %d loaded (%s)\n", pcb.ProcessID, pcb.Location,
		)

	case "run":
		pid, ok := s.pidArg(args)

		if !ok {
			return false
		}

		if err := s.krn.Run(pid); err != nil {
			log.Println(err)
			return false
		}

		s.autorun = true

	case "runall":
		s.krn.RunAll()
		s.autorun = true

	case "ps":
		if len(args) == 1 && args[0] == "-v" {
			pp.Println(s.krn.PS())
			return false
		}

		for _, p := range s.krn.PS() {
			fmt.Printf(
				"%3d  %-10s %s\n", p.ProcessID, p.State, p.Location,
			)
		}

	case "kill":
		pid, ok := s.pidArg(args)

		if !ok {
			return false
		}

		if err := s.krn.Kill(pid); err != nil {
			log.Println(err)
		}

	case "killall":
		s.krn.KillAll()

	case "clearmem":
		if err := s.krn.ClearMem(); err != nil {
			log.Println(err)
		}

	case "quantum":
		if len(args) != 1 {
			log.Println("quantum <n>")
			return false
		}

		n, err := strconv.Atoi(args[0])

		if err != nil {
			log.Printf("invalid quantum %q", args[0])
			return false
		}

		if err := s.krn.SetQuantum(n); err != nil {
			log.Println(err)
		}

	case "getschedule":
		fmt.Println(s.krn.GetSchedule())

	case "setschedule":
		if len(args) == 0 {
			log.Println("setschedule <alg>")
			return false
		}

		if err := s.krn.SetSchedule(strings.Join(args, " ")); err != nil {
			log.Println(err)
		}

	case "format":
		quick := len(args) == 1 && args[0] == "-quick"

		if err := s.krn.Format(quick); err != nil {
			log.Println(err)
		}

	case "create":
		if len(args) != 1 {
			log.Println("create <file>")
			return false
		}

		if err := s.krn.CreateFile(args[0]); err != nil {
			log.Println(err)
		}

	case "read":
		if len(args) != 1 {
			log.Println("read <file>")
			return false
		}

		content, err := s.krn.ReadFile(args[0])

		if err != nil {
			log.Println(err)
			return false
		}

		s.console.PutText(string(content))
		s.console.AdvanceLine()

	case "write":
		if len(args) < 2 {
			log.Println("write <file> <data>")
			return false
		}

		data := strings.Trim(strings.Join(args[1:], " "), "\"")

		if err := s.krn.WriteFile(args[0], []byte(data)); err != nil {
			log.Println(err)
		}

	case "delete":
		if len(args) != 1 {
			log.Println("delete <file>")
			return false
		}

		if err := s.krn.DeleteFile(args[0]); err != nil {
			log.Println(err)
		}

	case "copy":
		if len(args) != 2 {
			log.Println("copy <existing> <new>")
			return false
		}

		if err := s.krn.CopyFile(args[0], args[1]); err != nil {
			log.Println(err)
		}

	case "rename":
		if len(args) != 2 {
			log.Println("rename <old> <new>")
			return false
		}

		if err := s.krn.RenameFile(args[0], args[1]); err != nil {
			log.Println(err)
		}

	case "ls":
		all := len(args) == 1 && args[0] == "-a"

		names, err := s.krn.ListFiles(all)

		if err != nil {
			log.Println(err)
			return false
		}

		for _, name := range names {
			s.console.PutText(name)
			s.console.AdvanceLine()
		}

	case "pulse":
		count := 1

		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])

			if err != nil || n < 1 {
				log.Printf("invalid pulse count %q", args[0])
				return false
			}

			count = n
		}

		for i := 0; i < count; i++ {
			s.krn.Pulse()
		}

	case "status":
		fmt.Printf(
			"schedule: %s  quantum: %d  formatted: %v\n",
			s.krn.GetSchedule(),
			s.krn.Sched.Quantum(),
			s.krn.Disk.Formatted(),
		)
		pp.Println(s.krn.PS())

	case "exit", "quit":
		return true

	default:
		log.Printf("unknown command %q, try help", cmd)
	}

	return false
}

func (s *shell) pidArg(args []string) (int, bool) {
	if len(args) != 1 {
		log.Println("expected <pid>")
		return 0, false
	}

	pid, err := strconv.Atoi(args[0])

	if err != nil {
		log.Printf("invalid pid %q", args[0])
		return 0, false
	}

	return pid, true
}
