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

package vfs

import "x64emu.dev/emulator/internal/verify"

const (
	FGetfl = 3
	FSetfl = 4
	FGetfd = 1
	FSetfd = 2
	FDupfd = 0
	FDupfdCloexec = 1030
)

// Fcntl implements the fd-table-level half of fcntl (F_GETFD/F_SETFD/
// F_DUPFD*); F_GETFL/F_SETFL operate on the OFD's status flags directly.
// F_GETFL answers from the OFD alone: Fcntl does not ask the File for its
// own flags, so no emulated-vs-File cross-check runs, and
// crossCheckLargefile (agreement modulo O_LARGEFILE) is not called from
// here. Unknown commands return EINVAL.
func Fcntl(table *FDTable, fd FD, ofd *OFD, cmd int, arg int) (int64, Errno) {
	switch cmd {
	case FGetfl:
		reported := ofd.StatusFlags()
		return int64(reported), OK
	case FSetfl:
		const settable = 0x800 | 0x400 // O_NONBLOCK | O_APPEND
		ofd.SetStatusFlags((ofd.StatusFlags() &^ settable) | (arg & settable))
		return 0, OK
	case FGetfd:
		cloexec, ok := table.Cloexec(fd)
		if !ok {
			return -1, EBADF
		}
		if cloexec {
			return 1, OK
		}
		return 0, OK
	case FSetfd:
		if !table.SetCloexec(fd, arg&1 != 0) {
			return -1, EBADF
		}
		return 0, OK
	case FDupfd, FDupfdCloexec:
		newFD, ok := table.Dup(fd)
		if !ok {
			return -1, EBADF
		}
		if cmd == FDupfdCloexec {
			table.SetCloexec(newFD, true)
		}
		return int64(newFD), OK
	default:
		return -1, EINVAL
	}
}

// crossCheckLargefile asserts that emulated and file-reported flags agree
// modulo O_LARGEFILE, the one flag every successful open auto-adds
// regardless of what the guest requested.
func crossCheckLargefile(emulated, reported int) {
	const largefile = 0x8000
	verify.That(emulated&^largefile == reported&^largefile,
		"vfs: fcntl flags mismatch: emulated=%#x reported=%#x", emulated, reported)
}
