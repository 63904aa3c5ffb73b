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

// Command x64emu wires up the VFS, scheduler, syscall layer and MMU, then
// drives guest threads to completion, the way pk-mount wires pkg/fs to a
// FUSE connection and serves until told to stop. It does not load the ELF
// binary named on its command line: the VM it hands the kernel is
// vm.NullVM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"x64emu.dev/emulator/internal/config"
	"x64emu.dev/emulator/internal/kernel"
	"x64emu.dev/emulator/internal/mmu"
	"x64emu.dev/emulator/internal/vm"
)

var (
	cores         = flag.Int("cores", 4, "number of scheduler worker cores")
	enableJIT     = flag.Bool("jit", true, "enable JIT compilation of guest code")
	enableProfile = flag.Bool("profile", false, "record per-thread profiling events")
	profileDir    = flag.String("profile-dir", "", "directory to spill a thread's profiling events to when it terminates")
	hostRoot      = flag.String("host-root", "", "host directory absolute guest paths are routed to, if set")
	maxOpenFiles  = flag.Int("max-open-files", 1024, "maximum simultaneously open guest file descriptors")
	memSize       = flag.Uint64("mem", 1<<30, "guest address space size in bytes (FlatMMU backing store)")
)

func usage() {
	fmt.Fprint(os.Stderr, "usage: x64emu [opts] <elf-binary> [guest-args...]\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}

	cfg := config.Process{
		Cores:         *cores,
		EnableJIT:     *enableJIT,
		EnableProfile: *enableProfile,
		ProfileDir:    *profileDir,
		HostRoot:      *hostRoot,
		MaxOpenFiles:  *maxOpenFiles,
	}

	// The real decoder/IR/JIT execute loop that would load flag.Arg(0) and
	// populate guest memory from the ELF image is outside this
	// repository's scope (see internal/vm's package doc); NullVM lets the
	// kernel facade, scheduler and syscall layer run standalone against an
	// already-constructed MMU for development and testing.
	m := mmu.NewFlatMMU(*memSize)
	proc := kernel.New(cfg, m, &vm.NullVM{})
	defer proc.Close()
	proc.VFS().ResetProcFS(proc.FDTable(), nil, nil, nil)
	proc.SpawnMainThread(1)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigc
		log.Printf("signal received, shutting down")
		cancel()
	}()

	if err := proc.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
