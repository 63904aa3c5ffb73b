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

// Package syscall implements the register-dispatched syscall layer:
// translating Linux x86-64 syscall numbers (RAX) and their RDI/RSI/RDX/
// R10/R8/R9 arguments into VFS/Scheduler/Host-Bridge/MMU operations, and
// encoding the result back into RAX as either a non-negative value or a
// two's-complement negative errno. Grounded on
// original_source/emulator/src/kernel/syscalls.cpp's dispatch table and
// handler bodies, and spec.md §4.2.
package syscall

// Linux x86-64 syscall numbers this dispatcher names. Not every constant
// has a registered handler: ioctl, readv and writev have none, so they
// return ENOSYS. rt_sigaction, rt_sigprocmask, setitimer, and friends
// are accepted as harmless no-ops per the spec's Non-goal on signal
// delivery, rather than rejected outright, since real guest libcs call
// them unconditionally during startup).
const (
	SysRead            = 0
	SysWrite           = 1
	SysOpen            = 2
	SysClose           = 3
	SysStat            = 4
	SysFstat           = 5
	SysLstat           = 6
	SysPoll            = 7
	SysLseek           = 8
	SysMmap            = 9
	SysMprotect        = 10
	SysMunmap          = 11
	SysBrk             = 12
	SysRtSigaction     = 13
	SysRtSigprocmask   = 14
	SysIoctl           = 16
	SysPread64         = 17
	SysPwrite64        = 18
	SysReadv           = 19
	SysWritev          = 20
	SysAccess          = 21
	SysPipe            = 22
	SysMincore         = 27
	SysSelect          = 23
	SysDup             = 32
	SysDup2            = 33
	SysNanosleep       = 35
	SysGetpid          = 39
	SysSocket          = 41
	SysConnect         = 42
	SysSendto          = 44
	SysRecvfrom        = 45
	SysClone           = 56
	SysFork            = 57
	SysExit            = 60
	SysWait4           = 61
	SysKill            = 62
	SysSchedYield      = 24
	SysSetitimer       = 38
	SysGetppid         = 110
	SysTgkill          = 234
	SysFcntl           = 72
	SysFlock           = 73
	SysFtruncate       = 77
	SysGetcwd          = 79
	SysMkdir           = 83
	SysRmdir           = 84
	SysRename          = 82
	SysUnlink          = 87
	SysSymlink         = 88
	SysReadlink        = 89
	SysTruncate        = 76
	SysUmask           = 95
	SysGettimeofday    = 96
	SysGetuid          = 102
	SysGetgid          = 104
	SysGeteuid         = 107
	SysGetegid         = 108
	SysSetpriority     = 141
	SysStatfs          = 137
	SysFstatfs         = 138
	SysPrctl           = 157
	SysArchPrctl       = 158
	SysSchedGetparam   = 143
	SysSchedSetscheduler = 144
	SysSchedGetscheduler = 145
	SysMlock           = 149
	SysGettid          = 186
	SysTime            = 201
	SysFutex           = 202
	SysSchedSetaffinity = 203
	SysGetdents64      = 217
	SysSetTidAddress   = 218
	SysFadvise64       = 221
	SysExitGroup       = 231
	SysEpollWait       = 232
	SysEpollCtl        = 233
	SysGetRobustList   = 274
	SysSetRobustList   = 273
	SysUtime           = 132
	SysMbind           = 237
	SysOpenat          = 257
	SysMkdirat         = 258
	SysFstatat         = 262
	SysUnlinkat        = 263
	SysSetRlimit       = 160
	SysPrlimit64       = 302
	SysEpollCreate1    = 291
	SysDup3            = 292
	SysPipe2           = 293
	SysInotifyInit1    = 294
	SysPselect6        = 270
	SysPpoll           = 271
	SysEventfd2        = 290
	SysMemfdCreate      = 319
	SysGetrandom       = 318
	SysStatx           = 332
)
