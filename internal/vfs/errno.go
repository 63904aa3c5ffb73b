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

import "golang.org/x/sys/unix"

// Errno is a Linux errno value. Zero means success. VFS operations return
// Errno rather than a Go error so the syscall layer can encode it directly
// into RAX as -errno without any translation step.
type Errno int32

const (
	OK       Errno = 0
	EPERM    Errno = Errno(unix.EPERM)
	ENOENT   Errno = Errno(unix.ENOENT)
	EBADF    Errno = Errno(unix.EBADF)
	EEXIST   Errno = Errno(unix.EEXIST)
	ENOTDIR  Errno = Errno(unix.ENOTDIR)
	EISDIR   Errno = Errno(unix.EISDIR)
	EINVAL   Errno = Errno(unix.EINVAL)
	EMFILE   Errno = Errno(unix.EMFILE)
	ENFILE   Errno = Errno(unix.ENFILE)
	ENOTEMPTY Errno = Errno(unix.ENOTEMPTY)
	ELOOP    Errno = Errno(unix.ELOOP)
	ENAMETOOLONG Errno = Errno(unix.ENAMETOOLONG)
	ENOSYS   Errno = Errno(unix.ENOSYS)
	EAGAIN   Errno = Errno(unix.EAGAIN)
	ENOTTY   Errno = Errno(unix.ENOTTY)
	ESPIPE   Errno = Errno(unix.ESPIPE)
	EXDEV    Errno = Errno(unix.EXDEV)
	ENOTSOCK Errno = Errno(unix.ENOTSOCK)
	EOPNOTSUPP Errno = Errno(unix.EOPNOTSUPP)
	EFAULT   Errno = Errno(unix.EFAULT)
	ENOMEM   Errno = Errno(unix.ENOMEM)
	EIO      Errno = Errno(unix.EIO)
	ESRCH    Errno = Errno(unix.ESRCH)
	ECHILD   Errno = Errno(unix.ECHILD)
	EDEADLK  Errno = Errno(unix.EDEADLK)
	ETIMEDOUT Errno = Errno(unix.ETIMEDOUT)
	EINTR    Errno = Errno(unix.EINTR)
)

// FromError converts a host error (typically a unix.Errno from
// internal/hostbridge) into an Errno, defaulting to EIO
// only when the host error isn't itself an errno (which should not happen
// for syscalls routed through hostbridge).
func FromError(err error) Errno {
	if err == nil {
		return OK
	}
	if errno, ok := err.(unix.Errno); ok {
		return Errno(errno)
	}
	return Errno(unix.EIO)
}
