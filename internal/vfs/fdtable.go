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

import "sync"

// FD is a guest-visible file descriptor number.
type FD int32

// fdEntry is one slot of a FDTable: a reference to a shared OFD plus this
// slot's own close-on-exec bit (FD_CLOEXEC is per-descriptor, not shared
// across dup'd fds, unlike O_APPEND/O_NONBLOCK which live in the OFD).
type fdEntry struct {
	ofd     *OFD
	cloexec bool
}

// FDTable is a process's (or thread-group's) file descriptor table.
// Allocation policy is one past the highest fd this table has ever held
// (closed fds included), not min-free, matching fs.cpp's
// allocateFd to keep fd numbers monotonically increasing within a table's
// lifetime rather than reusing the lowest free slot.
type FDTable struct {
	mu      sync.Mutex
	entries map[FD]*fdEntry
	highest FD
}

func NewFDTable() *FDTable {
	return &FDTable{entries: make(map[FD]*fdEntry), highest: -1}
}

// Install places ofd at a newly allocated fd (one past the highest fd the
// table has held) and returns the fd. It takes no lower bound.
func (t *FDTable) Install(ofd *OFD, cloexec bool) FD {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.highest + 1
	t.entries[fd] = &fdEntry{ofd: ofd, cloexec: cloexec}
	t.highest = fd
	return fd
}

// InstallAt installs ofd at exactly fd (dup2/dup3 semantics). It does not
// close the entry it replaces: it returns that entry's OFD, if any, so the
// caller can release it outside the table lock.
func (t *FDTable) InstallAt(fd FD, ofd *OFD, cloexec bool) (closed *OFD) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, exists := t.entries[fd]; exists {
		closed = old.ofd
	}
	t.entries[fd] = &fdEntry{ofd: ofd, cloexec: cloexec}
	if fd > t.highest {
		t.highest = fd
	}
	ofd.addRef()
	return closed
}

// Get returns the OFD installed at fd, or ok=false.
func (t *FDTable) Get(fd FD) (*OFD, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if !ok {
		return nil, false
	}
	return e.ofd, true
}

// Cloexec reports fd's FD_CLOEXEC bit.
func (t *FDTable) Cloexec(fd FD) (bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if !ok {
		return false, false
	}
	return e.cloexec, true
}

func (t *FDTable) SetCloexec(fd FD, v bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if !ok {
		return false
	}
	e.cloexec = v
	return true
}

// Remove detaches fd from the table and reports the OFD that was there
// (nil if none), so the caller can decide whether to actually Close it
// (only when its refcount reaches zero).
func (t *FDTable) Remove(fd FD) *OFD {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if !ok {
		return nil
	}
	delete(t.entries, fd)
	return e.ofd
}

// Dup duplicates oldFD onto a newly allocated fd, sharing the same OFD
// (so offset and status flags are shared, per dup(2) semantics).
func (t *FDTable) Dup(oldFD FD) (FD, bool) {
	t.mu.Lock()
	e, ok := t.entries[oldFD]
	if !ok {
		t.mu.Unlock()
		return 0, false
	}
	ofd := e.ofd
	fd := t.highest + 1
	t.entries[fd] = &fdEntry{ofd: ofd}
	t.highest = fd
	t.mu.Unlock()
	ofd.addRef()
	return fd, true
}

// Dup3 duplicates oldFD onto newFD (closing whatever was at newFD first),
// optionally setting FD_CLOEXEC on the new slot, per dup3(2). oldFD ==
// newFD is EINVAL per Linux semantics; callers must check before calling.
func (t *FDTable) Dup3(oldFD, newFD FD, cloexec bool) (closed *OFD, ok bool) {
	t.mu.Lock()
	e, exists := t.entries[oldFD]
	if !exists {
		t.mu.Unlock()
		return nil, false
	}
	ofd := e.ofd
	if old, had := t.entries[newFD]; had {
		closed = old.ofd
	}
	t.entries[newFD] = &fdEntry{ofd: ofd, cloexec: cloexec}
	if newFD > t.highest {
		t.highest = newFD
	}
	t.mu.Unlock()
	ofd.addRef()
	return closed, true
}

// CloseOnExec removes every fd marked FD_CLOEXEC, returning their OFDs for
// the caller to close, per the execve-time fd table scrub.
func (t *FDTable) CloseOnExec() []*OFD {
	t.mu.Lock()
	defer t.mu.Unlock()
	var closed []*OFD
	for fd, e := range t.entries {
		if e.cloexec {
			closed = append(closed, e.ofd)
			delete(t.entries, fd)
		}
	}
	return closed
}

// Fork returns a new FDTable sharing every OFD (fork(2)/clone without
// CLONE_FILES duplicates the table but not the underlying OFDs).
func (t *FDTable) Fork() *FDTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := NewFDTable()
	for fd, e := range t.entries {
		out.entries[fd] = &fdEntry{ofd: e.ofd, cloexec: e.cloexec}
		e.ofd.addRef()
		if fd > out.highest {
			out.highest = fd
		}
	}
	return out
}
