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
	"testing"

	"x64emu.dev/emulator/internal/hostbridge"
	"x64emu.dev/emulator/internal/mmu"
	"x64emu.dev/emulator/internal/sched"
	"x64emu.dev/emulator/internal/vfs"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	m := mmu.NewFlatMMU(1 << 20)
	bridge := hostbridge.New()
	v := vfs.New(bridge, "", 64)
	table := vfs.NewFDTable()
	thread := sched.NewThread(1, sched.RingNormalUserspace)
	return &Env{
		MMU:       m,
		VFS:       v,
		Table:     table,
		Scheduler: sched.New(1),
		Bridge:    bridge,
		Thread:    thread,
		Cwd:       v.Root(),
	}
}

func writePath(t *testing.T, env *Env, addr uint64, path string) {
	t.Helper()
	buf := append([]byte(path), 0)
	if err := env.MMU.CopyToMMU(addr, buf); err != nil {
		t.Fatalf("CopyToMMU: %v", err)
	}
}

func TestOpenWriteReadCloseRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	writePath(t, env, 0x1000, "/greeting.txt")

	const oCreat, oWronly = hostbridge.OCreat, hostbridge.OWronly
	openRes := Dispatch(env, Args{Num: SysOpen, A0: 0x1000, A1: uint64(oCreat | oWronly), A2: 0o644})
	if openRes.Errno != vfs.OK {
		t.Fatalf("open: errno %v", openRes.Errno)
	}
	fd := openRes.Value

	writePath(t, env, 0x2000, "hello")
	writeRes := Dispatch(env, Args{Num: SysWrite, A0: uint64(fd), A1: 0x2000, A2: 5})
	if writeRes.Errno != vfs.OK || writeRes.Value != 5 {
		t.Fatalf("write: %+v", writeRes)
	}
	if closeRes := Dispatch(env, Args{Num: SysClose, A0: uint64(fd)}); closeRes.Errno != vfs.OK {
		t.Fatalf("close: errno %v", closeRes.Errno)
	}

	openRes = Dispatch(env, Args{Num: SysOpen, A0: 0x1000, A1: uint64(hostbridge.ORdonly)})
	if openRes.Errno != vfs.OK {
		t.Fatalf("reopen: errno %v", openRes.Errno)
	}
	fd = openRes.Value
	readRes := Dispatch(env, Args{Num: SysRead, A0: uint64(fd), A1: 0x3000, A2: 5})
	if readRes.Errno != vfs.OK || readRes.Value != 5 {
		t.Fatalf("read: %+v", readRes)
	}
	got, err := env.MMU.ReadString(0x3000, 6)
	if err != nil {
		t.Fatalf("ReadString after read: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}

func TestReadOnNonReadableFDReturnsEBADF(t *testing.T) {
	env := newTestEnv(t)
	writePath(t, env, 0x1000, "/write-only.txt")
	openRes := Dispatch(env, Args{Num: SysOpen, A0: 0x1000, A1: uint64(hostbridge.OCreat | hostbridge.OWronly), A2: 0o644})
	if openRes.Errno != vfs.OK {
		t.Fatalf("open: errno %v", openRes.Errno)
	}
	readRes := Dispatch(env, Args{Num: SysRead, A0: uint64(openRes.Value), A1: 0x2000, A2: 4})
	if readRes.Errno != vfs.EBADF {
		t.Fatalf("read on write-only fd: got errno %v, want EBADF", readRes.Errno)
	}
}

func TestDupSharesOFDOffset(t *testing.T) {
	env := newTestEnv(t)
	writePath(t, env, 0x1000, "/dup.txt")
	openRes := Dispatch(env, Args{Num: SysOpen, A0: 0x1000, A1: uint64(hostbridge.OCreat | hostbridge.ORdwr), A2: 0o644})
	fd := openRes.Value
	writePath(t, env, 0x2000, "abcdef")
	Dispatch(env, Args{Num: SysWrite, A0: uint64(fd), A1: 0x2000, A2: 6})

	dupRes := Dispatch(env, Args{Num: SysDup, A0: uint64(fd)})
	if dupRes.Errno != vfs.OK {
		t.Fatalf("dup: errno %v", dupRes.Errno)
	}
	dupFD := dupRes.Value

	seekRes := Dispatch(env, Args{Num: SysLseek, A0: uint64(fd), A1: 0, A2: 0})
	if seekRes.Value != 0 {
		t.Fatalf("lseek SEEK_SET 0: %+v", seekRes)
	}
	readRes := Dispatch(env, Args{Num: SysRead, A0: uint64(dupFD), A1: 0x3000, A2: 3})
	if readRes.Errno != vfs.OK || readRes.Value != 3 {
		t.Fatalf("read via dup'd fd: %+v", readRes)
	}
	// Reading 3 bytes via dupFD must advance the *shared* OFD offset, so a
	// subsequent read on the original fd continues from byte 3.
	readRes2 := Dispatch(env, Args{Num: SysRead, A0: uint64(fd), A1: 0x4000, A2: 3})
	if readRes2.Errno != vfs.OK || readRes2.Value != 3 {
		t.Fatalf("read via original fd after dup read: %+v", readRes2)
	}
	got, _ := env.MMU.ReadString(0x4000, 4)
	if got != "def" {
		t.Fatalf("got %q, want def", got)
	}
}

func TestMkdirGetdentsAndUnlink(t *testing.T) {
	env := newTestEnv(t)
	writePath(t, env, 0x1000, "/adir")
	if res := Dispatch(env, Args{Num: SysMkdir, A0: 0x1000, A1: 0o755}); res.Errno != vfs.OK {
		t.Fatalf("mkdir: errno %v", res.Errno)
	}
	writePath(t, env, 0x1100, "/adir/child.txt")
	openRes := Dispatch(env, Args{Num: SysOpen, A0: 0x1100, A1: uint64(hostbridge.OCreat | hostbridge.OWronly), A2: 0o644})
	if openRes.Errno != vfs.OK {
		t.Fatalf("open child: errno %v", openRes.Errno)
	}
	Dispatch(env, Args{Num: SysClose, A0: uint64(openRes.Value)})

	writePath(t, env, 0x1200, "/adir")
	dirOpen := Dispatch(env, Args{Num: SysOpen, A0: 0x1200, A1: uint64(hostbridge.ORdonly | hostbridge.ODirectory)})
	if dirOpen.Errno != vfs.OK {
		t.Fatalf("open dir: errno %v", dirOpen.Errno)
	}
	getdentsRes := Dispatch(env, Args{Num: SysGetdents64, A0: uint64(dirOpen.Value), A1: 0x5000, A2: 4096})
	if getdentsRes.Errno != vfs.OK || getdentsRes.Value == 0 {
		t.Fatalf("getdents64: %+v", getdentsRes)
	}

	writePath(t, env, 0x1300, "/adir/child.txt")
	if res := Dispatch(env, Args{Num: SysUnlink, A0: 0x1300}); res.Errno != vfs.OK {
		t.Fatalf("unlink: errno %v", res.Errno)
	}
}

func TestFutexWaitAgainOnMismatchedValue(t *testing.T) {
	env := newTestEnv(t)
	if err := env.MMU.Write32(0x8000, 5); err != nil {
		t.Fatalf("seed futex word: %v", err)
	}
	res := Dispatch(env, Args{Num: SysFutex, A0: 0x8000, A1: futexWait, A2: 99})
	if res.Errno != vfs.EAGAIN {
		t.Fatalf("futex wait on mismatched expected value: got errno %v, want EAGAIN", res.Errno)
	}
}

func TestFutexWaitBlocksOnMatchingValue(t *testing.T) {
	env := newTestEnv(t)
	env.MMU.Write32(0x8000, 5)
	res := Dispatch(env, Args{Num: SysFutex, A0: 0x8000, A1: futexWait, A2: 5})
	if !res.Blocked {
		t.Fatalf("expected futex wait on matching value to block, got %+v", res)
	}
	if env.Thread.Blocker() == nil {
		t.Fatalf("thread should carry a Blocker after blocking futex wait")
	}
}

func TestFutexWakeOpAppliesToUaddr2NotFutexOp(t *testing.T) {
	env := newTestEnv(t)
	const uaddr2 = 0x8100
	if err := env.MMU.Write32(uaddr2, 10); err != nil {
		t.Fatalf("seed uaddr2: %v", err)
	}
	// op=ADD(1), cmp=EQ(0), oparg=5, cmparg=10 packed into val3.
	val3 := uint32(1)<<28 | uint32(0)<<24 | uint32(5)<<12 | uint32(10)
	res := Dispatch(env, Args{Num: SysFutex, A0: 0x8000, A1: futexWakeOp, A2: 1, A3: 1, A4: uaddr2, A5: uint64(val3)})
	if res.Errno != vfs.OK {
		t.Fatalf("futex wake_op: errno %v", res.Errno)
	}
	got, err := env.MMU.Read32(uaddr2)
	if err != nil {
		t.Fatalf("read uaddr2 after wake_op: %v", err)
	}
	if got != 15 {
		t.Fatalf("wake_op should have applied ADD(5) to uaddr2 (0x%x): got %d, want 15", uaddr2, got)
	}
	if res.Value != 2 {
		t.Fatalf("wake_op compare EQ(10) against prior value 10 should hold: got woken=%d, want 2", res.Value)
	}
}

func TestNanosleepBlocksWithDeadline(t *testing.T) {
	env := newTestEnv(t)
	env.MMU.Write64(0x9000, 0)  // sec
	env.MMU.Write64(0x9008, 1000) // nsec
	res := Dispatch(env, Args{Num: SysNanosleep, A0: 0x9000})
	if !res.Blocked {
		t.Fatalf("expected nanosleep to block")
	}
	b := env.Thread.Blocker()
	if b == nil || !b.HasDeadline {
		t.Fatalf("nanosleep blocker should carry a deadline")
	}
}

func TestUnknownSyscallReturnsENOSYS(t *testing.T) {
	env := newTestEnv(t)
	res := Dispatch(env, Args{Num: 0xffffff})
	if res.Errno != vfs.ENOSYS {
		t.Fatalf("unregistered syscall: got errno %v, want ENOSYS", res.Errno)
	}
}

func TestEncodeResultNegatesErrno(t *testing.T) {
	regs := make([]uint64, 16)
	EncodeResult(regs, 0, vfs.EBADF)
	if int64(regs[RegRAX]) != -int64(vfs.EBADF) {
		t.Fatalf("EncodeResult errno path: got %d, want %d", int64(regs[RegRAX]), -int64(vfs.EBADF))
	}
	EncodeResult(regs, 42, vfs.OK)
	if regs[RegRAX] != 42 {
		t.Fatalf("EncodeResult value path: got %d, want 42", regs[RegRAX])
	}
}
