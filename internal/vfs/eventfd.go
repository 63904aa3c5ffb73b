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
	"sync"
)

// Eventfd is an in-memory counter file implementing eventfd2 semantics
// (read returns and zeroes the 8-byte counter, or decrements by one in
// EFD_SEMAPHORE mode; write adds to the counter), grounded on fs.cpp's
// eventfd2 handler.
type Eventfd struct {
	mu        sync.Mutex
	counter   uint64
	semaphore bool
	nonblock  bool
}

func NewEventfd(initval uint64, semaphore, nonblock bool) *Eventfd {
	return &Eventfd{counter: initval, semaphore: semaphore, nonblock: nonblock}
}

func (e *Eventfd) Kind() Kind     { return KindEventfd }
func (e *Eventfd) Readable() bool { return true }
func (e *Eventfd) Writable() bool { return true }

func (e *Eventfd) Read(buf []byte, offset int64) (int, Errno) {
	if len(buf) < 8 {
		return 0, EINVAL
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counter == 0 {
		if e.nonblock {
			return 0, EAGAIN
		}
		return 0, EAGAIN // a blocking eventfd also gets EAGAIN; read never blocks
	}
	var out uint64
	if e.semaphore {
		out = 1
		e.counter--
	} else {
		out = e.counter
		e.counter = 0
	}
	binary.LittleEndian.PutUint64(buf, out)
	return 8, OK
}

func (e *Eventfd) Write(buf []byte, offset int64) (int, Errno) {
	if len(buf) < 8 {
		return 0, EINVAL
	}
	add := binary.LittleEndian.Uint64(buf)
	e.mu.Lock()
	defer e.mu.Unlock()
	if add == ^uint64(0) {
		return 0, EINVAL
	}
	if e.counter+add < e.counter {
		// would overflow; block in real Linux, report EAGAIN here since
		// Write never blocks in this model.
		return 0, EAGAIN
	}
	e.counter += add
	return 8, OK
}

func (e *Eventfd) Stat() (Stat, Errno) { return Stat{Mode: 0o600}, OK }
func (e *Eventfd) Close() Errno        { return OK }

func (e *Eventfd) PollReadiness(requested uint32) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ready uint32
	if requested&0x001 != 0 && e.counter > 0 {
		ready |= 0x001
	}
	if requested&0x004 != 0 && e.counter < ^uint64(0)-1 {
		ready |= 0x004
	}
	return ready
}
