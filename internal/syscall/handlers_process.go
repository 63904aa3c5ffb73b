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
	"sync/atomic"

	"x64emu.dev/emulator/internal/hosttime"
	"x64emu.dev/emulator/internal/sched"
	"x64emu.dev/emulator/internal/vfs"
)

var nextTID int32 = 1000

func init() {
	register(SysGetpid, sysGetpid)
	register(SysGettid, sysGetpid) // single-process model: tid == pid
	register(SysGetppid, sysGetppid)
	register(SysExit, sysExit)
	register(SysExitGroup, sysExit)
	register(SysSchedYield, sysSchedYield)
	register(SysSetTidAddress, sysSetTidAddress)
	register(SysSetRobustList, sysSetRobustList)
	register(SysGetRobustList, sysGetRobustList)
	register(SysNanosleep, sysNanosleep)
	register(SysFutex, sysFutex)
	register(SysKill, sysKillNoop)
	register(SysTgkill, sysKillNoop)
	register(SysWait4, sysWait4Noop)
	register(SysClone, sysClone)
	register(SysFork, sysForkUnsupported)
}

func sysGetpid(env *Env, a Args) Result {
	return Result{Value: int64(env.Thread.ID)}
}

func sysGetppid(env *Env, a Args) Result {
	return Result{Value: 1}
}

// sysExit terminates the calling thread. Both exit(2) and exit_group(2)
// route here, so exit_group terminates only the calling thread; other
// threads created through clone keep running.
func sysExit(env *Env, a Args) Result {
	env.Scheduler.TerminateLocked(env.Thread)
	if addr := env.Thread.ClearChildTID(); addr != 0 {
		env.MMU.Write32(addr, 0)
	}
	return Result{Value: 0}
}

func sysSchedYield(env *Env, a Args) Result {
	return Result{Value: 0}
}

func sysSetTidAddress(env *Env, a Args) Result {
	env.Thread.SetClearChildTID(a.A0)
	return Result{Value: int64(env.Thread.ID)}
}

func sysSetRobustList(env *Env, a Args) Result {
	env.Thread.SetRobustListHead(a.A0)
	return Result{Value: 0}
}

func sysGetRobustList(env *Env, a Args) Result {
	head := env.Thread.RobustListHead()
	if err := env.MMU.Write64(a.A1, head); err != nil {
		return Result{Errno: vfs.EFAULT}
	}
	if err := env.MMU.Write64(a.A2, 24); err != nil {
		return Result{Errno: vfs.EFAULT}
	}
	return Result{Value: 0}
}

// sysNanosleep installs a Sleep blocker with a deadline computed from the
// guest timespec, rather than looping/spinning: the scheduler's
// tryUnblockThreads will make the thread runnable again once the deadline
// passes.
func sysNanosleep(env *Env, a Args) Result {
	sec, err := env.MMU.Read64(a.A0)
	if err != nil {
		return Result{Errno: vfs.EFAULT}
	}
	nsec, err := env.MMU.Read64(a.A0 + 8)
	if err != nil {
		return Result{Errno: vfs.EFAULT}
	}
	b := sched.NewBlocker(sched.BlockerSleep)
	b.Sleep = &sched.SleepData{}
	b.HasDeadline = true
	b.Deadline = hosttime.Now().Add(hosttime.FromTimespec(int64(sec), int64(nsec)))
	env.Scheduler.BlockLocked(env.Thread, b)
	return Result{Blocked: true}
}

const (
	futexWait        = 0
	futexWake        = 1
	futexWaitBitset  = 9
	futexWakeOp      = 5
	futexPrivateFlag = 128
)

// sysFutex implements the futex word-compare-and-block/wake protocol,
// including FUTEX_WAIT_BITSET's absolute timeout (SPEC_FULL.md supplemented
// feature) and FUTEX_WAKE_OP's conditional second-word wake.
func sysFutex(env *Env, a Args) Result {
	op := int(a.A1) &^ futexPrivateFlag
	switch op {
	case futexWait, futexWaitBitset:
		expected := uint32(a.A2)
		cur, err := env.MMU.Read32(a.A0)
		if err != nil {
			return Result{Errno: vfs.EFAULT}
		}
		if cur != expected {
			return Result{Errno: vfs.EAGAIN}
		}
		b := sched.NewBlocker(sched.BlockerFutex)
		addr := a.A0
		b.Futex = &sched.FutexData{
			Addr:        addr,
			ExpectedVal: expected,
			Load:        func() (uint32, error) { return env.MMU.Read32(addr) },
		}
		if op == futexWaitBitset {
			b.Futex.Mode = sched.FutexAbsolute
			if a.A3 != 0 {
				sec, _ := env.MMU.Read64(a.A3)
				nsec, _ := env.MMU.Read64(a.A3 + 8)
				b.HasDeadline = true
				b.Deadline = hosttime.FromUnixNano(int64(sec)*1_000_000_000 + int64(nsec))
			}
		} else {
			b.Futex.Mode = sched.FutexRelative
			if a.A3 != 0 {
				sec, _ := env.MMU.Read64(a.A3)
				nsec, _ := env.MMU.Read64(a.A3 + 8)
				b.HasDeadline = true
				b.Deadline = hosttime.Now().Add(hosttime.FromTimespec(int64(sec), int64(nsec)))
			}
		}
		env.Scheduler.BlockLocked(env.Thread, b)
		return Result{Blocked: true}

	case futexWake:
		return Result{Value: int64(a.A2)}

	case futexWakeOp:
		// uaddr2 (the word wakeOp actually operates on) is a.A4, not a.A1
		// (which holds the futex_op selector decoded above).
		wakeOp := sched.DecodeWakeOp(uint32(a.A5))
		old, err := env.MMU.Read32(a.A4)
		if err != nil {
			return Result{Errno: vfs.EFAULT}
		}
		if err := env.MMU.Write32(a.A4, wakeOp.Apply(old)); err != nil {
			return Result{Errno: vfs.EFAULT}
		}
		woken := int64(a.A2)
		if wakeOp.Compare(old) {
			woken += int64(a.A3)
		}
		return Result{Value: woken}

	default:
		return Result{Errno: vfs.ENOSYS}
	}
}

const cloneVM = 0x100
const cloneThread = 0x10000
const cloneChildSettid = 0x01000000

// sysClone implements the CLONE_VM|CLONE_THREAD pthread_create path: a new
// Thread is registered with the scheduler sharing the caller's ring, with
// the caller's saved registers copied over, RSP set to clone(2)'s child
// stack argument and RAX set to 0. Any other clone flag combination (fork-like address-space
// duplication) is rejected, since this emulator models one guest address
// space per run, not a process tree.
func sysClone(env *Env, a Args) Result {
	flags := uint64(a.A0)
	if flags&cloneVM == 0 || flags&cloneThread == 0 {
		return Result{Errno: vfs.ENOSYS}
	}
	childStack := a.A1
	childTID := atomic.AddInt32(&nextTID, 1)
	child := sched.NewThread(childTID, env.Thread.Ring)
	regs := child.RegisterFile()
	copy(regs, env.Thread.RegisterFile())
	regs[RegRSP] = childStack
	regs[RegRAX] = 0 // child's clone() return value is 0
	if flags&cloneChildSettid != 0 {
		env.MMU.Write32(a.A3, uint32(childTID))
	}
	env.Scheduler.AddThreadLocked(child)
	return Result{Value: int64(childTID)}
}

func sysForkUnsupported(env *Env, a Args) Result {
	return Result{Errno: vfs.ENOSYS}
}

func sysKillNoop(env *Env, a Args) Result {
	return Result{Value: 0}
}

func sysWait4Noop(env *Env, a Args) Result {
	return Result{Errno: vfs.ECHILD}
}
