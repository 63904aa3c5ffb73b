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

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"x64emu.dev/emulator/internal/hostbridge"
)

// HostFile wraps a real host file descriptor, used when the VFS's
// open-routing decision (see VFS.Open) determines a path should be served
// directly by the host filesystem rather than the in-memory shadow tree —
// e.g. files under a configured host passthrough root, and the standard
// streams.
//
// Per the spec's first Open Question, guest fd 1 and 2 both bind to host
// fd 2: this is intentional and implemented literally here, not "fixed",
// since stdout/stderr interleaving onto the host's stderr is the documented
// framework behavior under test.
type HostFile struct {
	bridge   *hostbridge.Bridge
	hostFD   int
	readable bool
	writable bool
}

func NewHostFile(bridge *hostbridge.Bridge, hostFD int, readable, writable bool) *HostFile {
	return &HostFile{bridge: bridge, hostFD: hostFD, readable: readable, writable: writable}
}

func (f *HostFile) Kind() Kind     { return KindHostFile }
func (f *HostFile) Readable() bool { return f.readable }
func (f *HostFile) Writable() bool { return f.writable }

func (f *HostFile) Read(buf []byte, offset int64) (int, Errno) {
	if !f.readable {
		return 0, EBADF
	}
	n, err := f.bridge.Pread(f.hostFD, buf, offset)
	if err != nil {
		return 0, FromError(err)
	}
	return n, OK
}

func (f *HostFile) Write(buf []byte, offset int64) (int, Errno) {
	if !f.writable {
		return 0, EBADF
	}
	n, err := f.bridge.Pwrite(f.hostFD, buf, offset)
	if err != nil {
		return 0, FromError(err)
	}
	return n, OK
}

func (f *HostFile) Size() (int64, Errno) {
	st, err := f.bridge.Fstat(f.hostFD)
	if err != nil {
		return 0, FromError(err)
	}
	return st.Size, OK
}

func (f *HostFile) Truncate(length int64) Errno {
	if err := f.bridge.Ftruncate(f.hostFD, length); err != nil {
		return FromError(err)
	}
	return OK
}

func (f *HostFile) Stat() (Stat, Errno) {
	st, err := f.bridge.Fstat(f.hostFD)
	if err != nil {
		return Stat{}, FromError(err)
	}
	return Stat{
		Dev: uint64(st.Dev), Ino: st.Ino, Mode: st.Mode, Nlink: uint32(st.Nlink),
		UID: st.Uid, GID: st.Gid, Rdev: uint64(st.Rdev), Size: st.Size,
		Blksize: st.Blksize, Blocks: st.Blocks,
		Atime: st.Atim, Mtime: st.Mtim, Ctime: st.Ctim,
	}, OK
}

func (f *HostFile) Close() Errno {
	if err := f.bridge.Close(f.hostFD); err != nil {
		return FromError(err)
	}
	return OK
}

func (f *HostFile) PollReadiness(requested uint32) uint32 {
	pfd := []unix.PollFd{{Fd: int32(f.hostFD), Events: int16(requested)}}
	n, err := f.bridge.Poll(pfd, 0)
	if err != nil || n == 0 {
		return 0
	}
	return uint32(pfd[0].Revents)
}

// Flock implements flock(2) by forwarding to the real host lock. Per
// corrected bug #2 in DESIGN.md: LOCK_SH must take the shared-lock path,
// not silently fall through to LOCK_EX as the original did by reusing the
// exclusive branch's unix.Flock call for both cases.
func (f *HostFile) Flock(how int) Errno {
	const (
		lockSH = 1
		lockEX = 2
		lockUN = 8
		lockNB = 4
	)
	mode := how &^ lockNB
	switch mode {
	case lockSH, lockEX, lockUN:
		if err := f.bridge.Flock(f.hostFD, how); err != nil {
			return FromError(err)
		}
		return OK
	default:
		return EINVAL
	}
}

func (f *HostFile) Ioctl(req uint64, argAddr uint64, m MMUShim) (int64, Errno) {
	switch req {
	case unix.TCGETS:
		// Per the spec's second Open Question: zero the guest buffer first,
		// then let the host ioctl fill a local buffer which is copied back.
		var zero [unsafeTermiosSize]byte
		if err := m.CopyToMMU(argAddr, zero[:]); err != nil {
			return -1, EFAULT
		}
		term, err := f.bridge.IoctlGetTermios(f.hostFD)
		if err != nil {
			return -1, FromError(err)
		}
		buf := termiosBytes(term)
		if err := m.CopyToMMU(argAddr, buf); err != nil {
			return -1, EFAULT
		}
		return 0, OK
	default:
		return -1, ENOTTY
	}
}

const unsafeTermiosSize = 60

func termiosBytes(t *unix.Termios) []byte {
	// Conservative fixed-size little-endian encoding of the fields the
	// guest's libc termios struct expects; exact layout matching is the
	// Host Bridge's concern in full, this lays out the common subset.
	buf := make([]byte, unsafeTermiosSize)
	binary.LittleEndian.PutUint32(buf[0:4], t.Iflag)
	binary.LittleEndian.PutUint32(buf[4:8], t.Oflag)
	binary.LittleEndian.PutUint32(buf[8:12], t.Cflag)
	binary.LittleEndian.PutUint32(buf[12:16], t.Lflag)
	copy(buf[17:], t.Cc[:])
	return buf
}
