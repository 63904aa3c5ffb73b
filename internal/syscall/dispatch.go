/*
Copyright 2026 The Perkeep Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package syscall

import (
	"x64emu.dev/emulator/internal/hostbridge"
	"x64emu.dev/emulator/internal/mmu"
	"x64emu.dev/emulator/internal/sched"
	"x64emu.dev/emulator/internal/vfs"
)

// Register indices into a Thread's RegisterFile slice, matching the
// ordering internal/sched.Thread.RegisterFile exposes (RAX, RBX, RCX,
// RDX, RSI, RDI, RSP, RBP, R8-R15).
const (
	RegRAX = 0
	RegRBX = 1
	RegRCX = 2
	RegRDX = 3
	RegRSI = 4
	RegRDI = 5
	RegRSP = 6
	RegRBP = 7
	RegR8  = 8
	RegR9  = 9
	RegR10 = 10
)

// Args is the Linux x86-64 syscall argument-passing convention: number in
// RAX, arguments in RDI, RSI, RDX, R10, R8, R9 in that order.
type Args struct {
	Num                      uint64
	A0, A1, A2, A3, A4, A5   uint64
}

// ArgsFromRegisters extracts a syscall's number and arguments from a
// thread's register file per the ABI above.
func ArgsFromRegisters(regs []uint64) Args {
	return Args{
		Num: regs[RegRAX],
		A0:  regs[RegRDI],
		A1:  regs[RegRSI],
		A2:  regs[RegRDX],
		A3:  regs[RegR10],
		A4:  regs[RegR8],
		A5:  regs[RegR9],
	}
}

// EncodeResult writes a syscall's result into RAX: a non-negative value,
// or -errno in two's-complement form for errno != vfs.OK.
func EncodeResult(regs []uint64, value int64, errno vfs.Errno) {
	if errno != vfs.OK {
		regs[RegRAX] = uint64(int64(-errno))
		return
	}
	regs[RegRAX] = uint64(value)
}

// Env bundles every external dependency a syscall handler may need: the
// guest's MMU, the process's VFS + FD table, the scheduler (for futex/
// sleep/poll blocking install), and the Host Bridge for syscalls that
// bypass the VFS entirely (e.g. raw socket option calls).
type Env struct {
	MMU       mmu.MMU
	VFS       *vfs.VFS
	Table     *vfs.FDTable
	Scheduler *sched.Scheduler
	Bridge    *hostbridge.Bridge
	Thread    *sched.Thread
	Cwd       *vfs.Directory
}

// Result is what a handler computes before EncodeResult writes it to RAX.
// Blocked is set when the handler installed a Blocker on the thread
// instead of returning a value immediately; the caller (internal/kernel)
// must not touch RAX in that case until the scheduler unblocks the thread
// and the syscall is retried/resumed.
type Result struct {
	Value   int64
	Errno   vfs.Errno
	Blocked bool
}

// Handler computes a syscall's effect given its decoded arguments and the
// environment, per spec §4.2's routing rules.
type Handler func(env *Env, a Args) Result

// dispatchTable maps syscall numbers to handlers. Built once at package init from
// the handler functions defined across this package's other files.
var dispatchTable = map[uint64]Handler{}

func register(num uint64, h Handler) { dispatchTable[num] = h }

// Dispatch looks up and invokes the handler for a.Num, returning ENOSYS if
// no handler is registered — matching syscalls.cpp's default switch case.
func Dispatch(env *Env, a Args) Result {
	h, ok := dispatchTable[a.Num]
	if !ok {
		return Result{Errno: vfs.ENOSYS}
	}
	return h(env, a)
}
