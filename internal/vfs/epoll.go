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
	"sync"

	"github.com/google/uuid"
)

const (
	EpollCtlAdd = 1
	EpollCtlDel = 2
	EpollCtlMod = 3
)

// EpollEvent mirrors struct epoll_event's two fields relevant here.
type EpollEvent struct {
	Events uint32
	Data   uint64
}

type epollWatch struct {
	fd     int32
	file   File
	events uint32
	data   uint64
}

// Epoll is an epoll instance: a set of watched (fd, File, interest-mask)
// triples, identified by a UUID (replacing the original's pointer
// identity per the blocker-ID design note) so the scheduler can refer to
// "this epoll instance" without holding a Go pointer across blocking.
type Epoll struct {
	ID uuid.UUID

	mu      sync.Mutex
	watches map[int32]*epollWatch
}

func NewEpoll() *Epoll {
	return &Epoll{ID: uuid.New(), watches: make(map[int32]*epollWatch)}
}

func (e *Epoll) Kind() Kind     { return KindEpoll }
func (e *Epoll) Readable() bool { return true }
func (e *Epoll) Writable() bool { return false }

func (e *Epoll) Read(buf []byte, offset int64) (int, Errno)  { return 0, EINVAL }
func (e *Epoll) Write(buf []byte, offset int64) (int, Errno) { return 0, EINVAL }
func (e *Epoll) Stat() (Stat, Errno)                         { return Stat{Mode: 0o600}, OK }
func (e *Epoll) Close() Errno                                { return OK }
func (e *Epoll) PollReadiness(requested uint32) uint32 {
	if requested&0x001 != 0 && len(e.Ready()) > 0 {
		return 0x001
	}
	return 0
}

// Ctl adds/modifies/removes a watch, per fs.cpp's epoll_ctl handler.
func (e *Epoll) Ctl(op int, fd int32, file File, event EpollEvent) Errno {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch op {
	case EpollCtlAdd:
		if _, exists := e.watches[fd]; exists {
			return EEXIST
		}
		e.watches[fd] = &epollWatch{fd: fd, file: file, events: event.Events, data: event.Data}
	case EpollCtlMod:
		w, exists := e.watches[fd]
		if !exists {
			return ENOENT
		}
		w.events, w.data = event.Events, event.Data
	case EpollCtlDel:
		if _, exists := e.watches[fd]; !exists {
			return ENOENT
		}
		delete(e.watches, fd)
	default:
		return EINVAL
	}
	return OK
}

// Ready returns the set of currently-ready (fd, revents, data) triples
// without blocking, the way doEpollWait/epollWaitImmediate poll each
// watched file's readiness in fs.cpp.
type ReadyEvent struct {
	FD      int32
	Revents uint32
	Data    uint64
}

func (e *Epoll) Ready() []ReadyEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []ReadyEvent
	for _, w := range e.watches {
		if r := w.file.PollReadiness(w.events); r != 0 {
			out = append(out, ReadyEvent{FD: w.fd, Revents: r, Data: w.data})
		}
	}
	return out
}
