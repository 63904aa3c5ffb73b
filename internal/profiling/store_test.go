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

package profiling

import (
	"testing"

	"x64emu.dev/emulator/internal/hosttime"
	"x64emu.dev/emulator/internal/sched"
)

func TestAppendThenScanThreadRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	evs := []sched.ProfileEvent{
		{Timestamp: hosttime.Precise(1), Addr: 0x1000, Kind: "syscall"},
		{Timestamp: hosttime.Precise(2), Addr: 0x2000, Kind: "block"},
	}
	for _, ev := range evs {
		if err := s.Append(7, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	// A write for a different thread interleaved shouldn't appear in tid 7's scan.
	if err := s.Append(8, sched.ProfileEvent{Timestamp: hosttime.Precise(3), Addr: 0x3000, Kind: "other"}); err != nil {
		t.Fatalf("Append other tid: %v", err)
	}

	got, err := s.ScanThread(7)
	if err != nil {
		t.Fatalf("ScanThread: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[0].Kind != "syscall" || got[1].Kind != "block" {
		t.Fatalf("events out of order or wrong kind: %+v", got)
	}
}

func TestCloseDrainsPendingWrite(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Append(1, sched.ProfileEvent{Timestamp: hosttime.Precise(1), Addr: 1, Kind: "x"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
