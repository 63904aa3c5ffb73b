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

package kernel

import (
	"context"
	"testing"
	"time"

	"x64emu.dev/emulator/internal/config"
	"x64emu.dev/emulator/internal/mmu"
	"x64emu.dev/emulator/internal/sched"
	"x64emu.dev/emulator/internal/vm"
)

func TestProcessRunTerminatesImmediatelyWithNullVM(t *testing.T) {
	cfg := config.Process{Cores: 2, EnableJIT: false, MaxOpenFiles: 64}
	p := New(cfg, mmu.NewFlatMMU(1<<16), &vm.NullVM{})
	p.SpawnMainThread(1)
	p.SpawnMainThread(2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestProcessSpillsProfileOnTerminate(t *testing.T) {
	cfg := config.Process{Cores: 1, MaxOpenFiles: 64, EnableProfile: true, ProfileDir: t.TempDir()}
	p := New(cfg, mmu.NewFlatMMU(1<<16), &vm.NullVM{})
	defer p.Close()
	th := p.SpawnMainThread(1)
	th.RecordProfileEvent(sched.ProfileEvent{Kind: "syscall", Addr: 0x400000})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := p.profile.ScanThread(th.ID)
	if err != nil {
		t.Fatalf("ScanThread: %v", err)
	}
	if len(got) != 1 || got[0].Kind != "syscall" {
		t.Fatalf("expected terminated thread's profile to be spilled, got %+v", got)
	}
}

func TestProcessInitialStandardStreamsInstalled(t *testing.T) {
	cfg := config.Process{Cores: 1, MaxOpenFiles: 64}
	p := New(cfg, mmu.NewFlatMMU(1<<16), &vm.NullVM{})
	if _, ok := p.FDTable().Get(0); !ok {
		t.Fatalf("expected fd 0 installed by InitStandardStreams")
	}
	if _, ok := p.FDTable().Get(1); !ok {
		t.Fatalf("expected fd 1 installed by InitStandardStreams")
	}
	if _, ok := p.FDTable().Get(2); !ok {
		t.Fatalf("expected fd 2 installed by InitStandardStreams")
	}
}
