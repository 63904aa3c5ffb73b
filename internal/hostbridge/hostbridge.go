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

// Package hostbridge adapts Host Bridge operations (open/read/write/ioctl/
// poll/socket/eventfd/epoll) to the real host kernel via golang.org/x/sys/unix,
// used by Host- and Shadow-backed VFS nodes. It returns raw host errno
// values (as syscall.Errno) rather than Go's wrapped *PathError/*os.SyscallError,
// so the syscall layer can propagate them to the guest unchanged.
package hostbridge

import (
	"time"

	"golang.org/x/sys/unix"
)

// AccessMode/StatusFlags decoding mirrors the guest-visible O_* bits; these
// constants are the Linux x86-64 values, not whatever the host Go runtime's
// GOOS happens to define, because the guest ABI is fixed regardless of host.
const (
	OAccModeMask = 0x3
	ORdonly      = 0x0
	OWronly      = 0x1
	ORdwr        = 0x2

	ONonblock  = 0x800
	OCreat     = 0x40
	OExcl      = 0x80
	OTrunc     = 0x200
	OAppend    = 0x400
	OCloexec   = 0x80000
	ODirectory = 0x10000
	OLargefile = 0x8000
)

// Bridge performs host-kernel operations on behalf of Host/Shadow file
// nodes. A Bridge is stateless; all state lives in the fds it is handed.
type Bridge struct{}

// New returns a Bridge bound to the real host kernel.
func New() *Bridge { return &Bridge{} }

func (b *Bridge) Open(path string, flags int, mode uint32) (int, error) {
	fd, err := unix.Open(path, flags, mode)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

func (b *Bridge) Close(fd int) error {
	return unix.Close(fd)
}

func (b *Bridge) Pread(fd int, buf []byte, offset int64) (int, error) {
	return unix.Pread(fd, buf, offset)
}

func (b *Bridge) Pwrite(fd int, buf []byte, offset int64) (int, error) {
	return unix.Pwrite(fd, buf, offset)
}

func (b *Bridge) Read(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func (b *Bridge) Write(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

func (b *Bridge) Seek(fd int, offset int64, whence int) (int64, error) {
	return unix.Seek(fd, offset, whence)
}

func (b *Bridge) Fstat(fd int) (unix.Stat_t, error) {
	var st unix.Stat_t
	err := unix.Fstat(fd, &st)
	return st, err
}

func (b *Bridge) Ftruncate(fd int, length int64) error {
	return unix.Ftruncate(fd, length)
}

func (b *Bridge) Fallocate(fd int, mode uint32, off, length int64) error {
	return unix.Fallocate(fd, mode, off, length)
}

func (b *Bridge) Dup(fd int) (int, error) {
	return unix.Dup(fd)
}

// Poll performs a host poll() over the given fd/events pairs with the
// given timeout in milliseconds (-1 for infinite, 0 for immediate).
func (b *Bridge) Poll(fds []unix.PollFd, timeoutMs int) (int, error) {
	return unix.Poll(fds, timeoutMs)
}

func (b *Bridge) EpollCreate1(flags int) (int, error) {
	return unix.EpollCreate1(flags)
}

func (b *Bridge) EpollCtl(epfd, op, fd int, event *unix.EpollEvent) error {
	return unix.EpollCtl(epfd, op, fd, event)
}

func (b *Bridge) EpollWait(epfd int, events []unix.EpollEvent, msec int) (int, error) {
	return unix.EpollWait(epfd, events, msec)
}

func (b *Bridge) Eventfd(initval uint, flags int) (int, error) {
	return unix.Eventfd(uint64(initval), flags)
}

func (b *Bridge) Pipe2(flags int) (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], flags); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func (b *Bridge) IoctlGetTermios(fd int) (*unix.Termios, error) {
	return unix.IoctlGetTermios(fd, unix.TCGETS)
}

func (b *Bridge) IoctlSetTermios(fd int, t *unix.Termios) error {
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

func (b *Bridge) Getdents64(fd int, buf []byte) (int, error) {
	return unix.Getdents(fd, buf)
}

func (b *Bridge) Flock(fd int, how int) error {
	return unix.Flock(fd, how)
}

func (b *Bridge) Socket(domain, typ, proto int) (int, error) {
	return unix.Socket(domain, typ, proto)
}

func (b *Bridge) Connect(fd int, sa unix.Sockaddr) error {
	return unix.Connect(fd, sa)
}

func (b *Bridge) Sendto(fd int, buf []byte, flags int, to unix.Sockaddr) error {
	return unix.Sendto(fd, buf, flags, to)
}

func (b *Bridge) Recvfrom(fd int, buf []byte, flags int) (int, unix.Sockaddr, error) {
	return unix.Recvfrom(fd, buf, flags)
}

func (b *Bridge) Getrandom(buf []byte, flags int) (int, error) {
	return unix.GetRandom(buf, flags)
}

// CPUUsage reports accumulated host user-mode CPU time consumed by this
// process, for the emulator's own diagnostics (not guest-visible); adapted
// from perkeep's internal/osutil cpuLinux helper.
func (b *Bridge) CPUUsage() time.Duration {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return time.Duration(ru.Utime.Nano())
}
