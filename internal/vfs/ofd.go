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

// OpenFileDescription is the kernel-level "open file" object: the file
// offset and status flags (O_APPEND, O_NONBLOCK, ...) live here, shared by
// every fd that was dup'd from the same open() call, separate from the
// File node itself which may be referenced by unrelated OFDs (e.g. two
// independent opens of the same path).
type OFD struct {
	mu          sync.Mutex
	file        File
	offset      int64
	statusFlags int
	refs        int
}

func NewOFD(file File, statusFlags int) *OFD {
	return &OFD{file: file, statusFlags: statusFlags, refs: 1}
}

func (o *OFD) File() File { return o.file }

func (o *OFD) Offset() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.offset
}

func (o *OFD) SetOffset(off int64) {
	o.mu.Lock()
	o.offset = off
	o.mu.Unlock()
}

// AdvanceAndReturn atomically reads the current offset, returns it for use
// by the caller's I/O, then advances it by delta (used by read/write's
// implicit offset semantics, keeping concurrent dup'd-fd writers from
// racing on the shared offset).
func (o *OFD) AdvanceAndReturn(delta int) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	cur := o.offset
	o.offset += int64(delta)
	return cur
}

func (o *OFD) StatusFlags() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusFlags
}

func (o *OFD) SetStatusFlags(flags int) {
	o.mu.Lock()
	o.statusFlags = flags
	o.mu.Unlock()
}

func (o *OFD) addRef() {
	o.mu.Lock()
	o.refs++
	o.mu.Unlock()
}

// dropRef decrements the OFD's reference count (number of fd-table slots
// pointing at it) and reports whether it should now be closed.
func (o *OFD) dropRef() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refs--
	return o.refs <= 0
}

// DropRef is the exported form of dropRef, for use by the syscall layer
// when it removes a table slot and must decide whether the underlying
// File should actually be closed (refcount reached zero) or is still
// referenced by another dup'd fd.
func (o *OFD) DropRef() bool { return o.dropRef() }
