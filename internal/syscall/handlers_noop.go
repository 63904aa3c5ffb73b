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

import "x64emu.dev/emulator/internal/vfs"

// init registers the syscalls this emulator accepts but does not implement
// meaningfully: signal delivery (rt_sigaction/rt_sigprocmask/setitimer),
// scheduling-policy introspection, resource-limit queries, and a handful
// of process metadata calls real guest libcs invoke unconditionally during
// startup. Per the Non-goal on signal delivery, these return success
// rather than ENOSYS so the guest doesn't trip a libc abort path over a
// call whose absence it doesn't actually depend on for correctness within
// this emulator's scope.
func init() {
	register(SysRtSigaction, acceptNoop)
	register(SysRtSigprocmask, acceptNoop)
	register(SysSetitimer, acceptNoop)
	register(SysSchedGetparam, acceptNoop)
	register(SysSchedSetscheduler, acceptNoop)
	register(SysSchedGetscheduler, acceptNoop)
	register(SysSchedSetaffinity, acceptNoop)
	register(SysSetpriority, acceptNoop)
	register(SysMlock, acceptNoop)
	register(SysArchPrctl, acceptNoop)
	register(SysSetRlimit, acceptNoop)
	register(SysPrlimit64, acceptNoop)
	register(SysUtime, acceptNoop)
	register(SysMbind, acceptNoop)
	register(SysInotifyInit1, acceptNoop)
	register(SysFadvise64, acceptNoop)
	register(SysUmask, umaskNoop)
	register(SysGetuid, fixedUID)
	register(SysGeteuid, fixedUID)
	register(SysGetgid, fixedUID)
	register(SysGetegid, fixedUID)
	register(SysTime, acceptNoop)
	register(SysGettimeofday, acceptNoop)
	register(SysPrctl, prctlDispatch)
	register(SysStatfs, acceptNoop)
	register(SysFstatfs, acceptNoop)
}

func acceptNoop(env *Env, a Args) Result { return Result{Value: 0} }

func umaskNoop(env *Env, a Args) Result { return Result{Value: 0o022} }

func fixedUID(env *Env, a Args) Result { return Result{Value: 0} }

// prctlDispatch handles the vma-naming option PR_SET_VMA (address in A2,
// name pointer in A4), which this emulator has a home for
// (MMU.SetRegionName); every other prctl option, PR_SET_NAME and
// PR_GET_NAME included, is accepted as a no-op that returns 0.
func prctlDispatch(env *Env, a Args) Result {
	const prSetVMAAnonName = 0x53564d41
	if int(a.A0) == prSetVMAAnonName {
		name, err := env.MMU.ReadString(a.A4, 256)
		if err != nil {
			return Result{Errno: vfs.EFAULT}
		}
		if err := env.MMU.SetRegionName(a.A2, name); err != nil {
			return Result{Errno: vfs.EINVAL}
		}
		return Result{Value: 0}
	}
	return Result{Value: 0}
}
