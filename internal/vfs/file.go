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

// Package vfs implements the virtual file system: a polymorphic File node
// hierarchy behind a uniform capability interface, an OpenFileDescription
// + FD-table layer with dup/dup3/cloexec semantics, and host-vs-shadow
// open routing, modeled after perkeep's pkg/fs node-kind split (ro.go,
// mut.go, root.go) and grounded in detail on the fs.cpp implementation of
// the original kernel's VFS.
package vfs

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Kind discriminates the File sum-type. Every File implementation reports
// exactly one Kind; the VFS and syscall layer switch on it rather than
// relying on Go type assertions everywhere, mirroring the tagged-union
// style of the original kernel's File class hierarchy.
type Kind int

const (
	KindRegular Kind = iota
	KindHostFile
	KindHostDirectory
	KindShadowFile
	KindShadowDirectory
	KindShadowSymlink
	KindHostSymlink
	KindDirectory
	KindSymlink
	KindTTY
	KindNullDevice
	KindHostDevice
	KindPipeRead
	KindPipeWrite
	KindSocket
	KindEventfd
	KindEpoll
	KindProcfs
)

// Stat is the subset of struct stat/statx the VFS can always produce
// without delegating to the host, used to build both stat and statx
// results uniformly.
type Stat struct {
	Dev     uint64
	Ino     uint64
	Mode    uint32
	Nlink   uint32
	UID     uint32
	GID     uint32
	Rdev    uint64
	Size    int64
	Blksize int64
	Blocks  int64
	Atime, Mtime, Ctime unix.Timespec
}

// File is the capability interface every VFS node kind implements. Not
// every method is meaningful for every kind; nodes that do not support an
// operation return ENOSYS/EINVAL/ENOTTY as appropriate, matching the
// per-kind behavior enumerated in the node kind notes.
type File interface {
	Kind() Kind
	// Readable/Writable report the capabilities the file was actually
	// opened with, independent of the node kind's general capability
	// (e.g. a regular file opened O_WRONLY is not Readable).
	Readable() bool
	Writable() bool

	// Read/Write operate at the given OFD-tracked offset for seekable
	// files; pipes/sockets/ttys ignore offset. n is bytes actually moved.
	Read(buf []byte, offset int64) (n int, errno Errno)
	Write(buf []byte, offset int64) (n int, errno Errno)

	Stat() (Stat, Errno)

	// Close releases any host resources. Called each time an OFD
	// referencing this File drops its last fd reference; a File reached
	// through several OFDs (opened more than once) is closed once per OFD.
	Close() Errno

	// PollReadiness reports which of the requested poll events (POLLIN,
	// POLLOUT, ...) are immediately satisfiable, without blocking.
	PollReadiness(requested uint32) uint32
}

// Seekable is implemented by File kinds that support lseek (regular files
// and host files, including the TTY and HostDevice wrappers that embed
// HostFile); pipes, sockets, directories and the null device do not
// implement it and lseek on them yields ESPIPE.
type Seekable interface {
	Size() (int64, Errno)
}

// Truncatable is implemented by kinds supporting ftruncate/truncate.
type Truncatable interface {
	Truncate(length int64) Errno
}

// Ioctlable is implemented by kinds with ioctl semantics beyond ENOTTY
// (TTY, host devices, epoll/eventfd-adjacent control paths).
type Ioctlable interface {
	Ioctl(req uint64, argAddr uint64, mmu MMUShim) (ret int64, errno Errno)
}

// MMUShim is the minimal MMU surface Ioctl needs; kept separate from
// internal/mmu.MMU to avoid an import cycle between vfs and mmu (vfs is
// lower-level than the syscall layer that wires the two together). The
// syscall layer passes its concrete MMU implementation satisfying this.
type MMUShim interface {
	CopyFromMMU(dst []byte, addr uint64) error
	CopyToMMU(addr uint64, src []byte) error
}

// Lockable is implemented by kinds supporting flock.
type Lockable interface {
	Flock(how int) Errno
}

// refCounted is embedded by File implementations that need close-on-last-
// reference semantics distinct from OFD reference counting (e.g. a Regular
// file that was unlinked while open: deleteAfterClose per fs.cpp unlink).
type refCounted struct {
	mu            sync.Mutex
	refs          int
	deleteAfterClose bool
}

func (r *refCounted) addRef() {
	r.mu.Lock()
	r.refs++
	r.mu.Unlock()
}

// dropRef decrements the refcount and reports whether it reached zero.
func (r *refCounted) dropRef() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs--
	return r.refs <= 0
}
