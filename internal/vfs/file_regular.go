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

// RegularFile is an in-memory byte-buffer file node: used both for guest-
// created "shadow" files (content exists only in emulator memory, never
// persisted to the host — see Non-goals) and for memfd_create results.
// Grounded on fs.cpp's in-memory ShadowFile content buffer and its
// read/pread/write/pwrite bounds handling.
type RegularFile struct {
	refCounted
	mu       sync.Mutex
	data     []byte
	mode     uint32
	readable bool
	writable bool
}

func NewRegularFile(mode uint32, readable, writable bool) *RegularFile {
	return &RegularFile{mode: mode, readable: readable, writable: writable}
}

func (f *RegularFile) Kind() Kind      { return KindShadowFile }
func (f *RegularFile) Readable() bool  { return f.readable }
func (f *RegularFile) Writable() bool  { return f.writable }

func (f *RegularFile) Read(buf []byte, offset int64) (int, Errno) {
	if !f.readable {
		return 0, EBADF
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset < 0 || offset >= int64(len(f.data)) {
		return 0, OK
	}
	n := copy(buf, f.data[offset:])
	return n, OK
}

func (f *RegularFile) Write(buf []byte, offset int64) (int, Errno) {
	if !f.writable {
		return 0, EBADF
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	end := offset + int64(len(buf))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	n := copy(f.data[offset:end], buf)
	return n, OK
}

func (f *RegularFile) Size() (int64, Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.data)), OK
}

func (f *RegularFile) Truncate(length int64) Errno {
	f.mu.Lock()
	defer f.mu.Unlock()
	if length < 0 {
		return EINVAL
	}
	if length <= int64(len(f.data)) {
		f.data = f.data[:length]
		return OK
	}
	grown := make([]byte, length)
	copy(grown, f.data)
	f.data = grown
	return OK
}

func (f *RegularFile) Stat() (Stat, Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stat{Mode: f.mode, Nlink: 1, Size: int64(len(f.data))}, OK
}

func (f *RegularFile) Close() Errno { return OK }

func (f *RegularFile) PollReadiness(requested uint32) uint32 {
	const pollinOut = 0x001 | 0x004 // POLLIN | POLLOUT
	return requested & pollinOut
}
