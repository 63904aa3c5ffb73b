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

// Package profiling persists per-thread profiling events to an embedded
// leveldb instance. internal/kernel appends a Thread's in-memory ring
// buffer contents when the thread terminates through a VM stop; entries
// the ring overwrote before then are not recovered. Grounded on perkeep's pkg/sorted/leveldb
// use of github.com/syndtr/goleveldb as an embedded ordered store for
// append-mostly, range-scanned data.
package profiling

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"x64emu.dev/emulator/internal/chanworker"
	"x64emu.dev/emulator/internal/hosttime"
	"x64emu.dev/emulator/internal/sched"
)

// Store persists profiling events keyed by (tid, tick) so they can later
// be range-scanned per thread in chronological order. Writes are funneled
// through a single chanworker-managed goroutine (the same pattern camput
// uses to bound concurrent uploads) rather than calling leveldb directly
// from Append's caller, so a burst of events from many guest threads
// backpressures against the worker's buffered channel instead of
// contending the leveldb handle directly; each Append still waits for its
// own write to complete.
type Store struct {
	db    *leveldb.DB
	tick  map[int32]uint64
	workc chan<- interface{}
	donec chan struct{}
}

type writeJob struct {
	key, val []byte
	done     chan error
}

// Open creates or opens a leveldb instance rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, tick: make(map[int32]uint64), donec: make(chan struct{})}
	s.workc = chanworker.NewWorker(1, s.write)
	return s, nil
}

func (s *Store) write(el interface{}, ok bool) {
	if !ok {
		close(s.donec)
		return
	}
	j := el.(writeJob)
	j.done <- s.db.Put(j.key, j.val, nil)
}

// Close drains any in-flight write before closing the underlying leveldb
// handle.
func (s *Store) Close() error {
	close(s.workc)
	<-s.donec
	return s.db.Close()
}

func key(tid int32, tick uint64) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:4], uint32(tid))
	binary.BigEndian.PutUint64(b[4:12], tick)
	return b
}

// Append persists one event for tid, assigning it the next tick. The write
// itself runs on the Store's worker goroutine; Append blocks until it
// completes so that a ScanThread call immediately after observes it.
func (s *Store) Append(tid int32, ev sched.ProfileEvent) error {
	tick := s.tick[tid]
	s.tick[tid] = tick + 1
	val := make([]byte, 8+len(ev.Kind)+8)
	binary.BigEndian.PutUint64(val[0:8], uint64(ev.Timestamp))
	binary.BigEndian.PutUint64(val[8:16], ev.Addr)
	copy(val[16:], ev.Kind)

	done := make(chan error, 1)
	s.workc <- writeJob{key: key(tid, tick), val: val, done: done}
	return <-done
}

// ScanThread returns every persisted event for tid in chronological order.
func (s *Store) ScanThread(tid int32) ([]sched.ProfileEvent, error) {
	lo := key(tid, 0)
	hi := key(tid, ^uint64(0))
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	var out []sched.ProfileEvent
	for iter.Seek(lo); iter.Valid(); iter.Next() {
		k := iter.Key()
		if string(k) > string(hi) {
			break
		}
		if len(k) < 4 || binary.BigEndian.Uint32(k[0:4]) != uint32(tid) {
			if len(out) > 0 {
				break
			}
			continue
		}
		v := iter.Value()
		if len(v) < 16 {
			return nil, fmt.Errorf("profiling: corrupt record for tid %d", tid)
		}
		out = append(out, sched.ProfileEvent{
			Timestamp: hosttime.Precise(binary.BigEndian.Uint64(v[0:8])),
			Addr:      binary.BigEndian.Uint64(v[8:16]),
			Kind:      string(v[16:]),
		})
	}
	return out, iter.Error()
}
