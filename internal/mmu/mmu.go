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

// Package mmu declares the memory-management contract the syscall layer
// and VFS use to move data into and out of guest address space. The real
// implementation (decoder/IR/JIT-backed) is a black box to this
// repository; FlatMMU below is an in-memory test double.
package mmu

// Prot mirrors the guest's PROT_* mmap/mprotect bits.
type Prot uint32

const (
	ProtNone  Prot = 0
	ProtRead  Prot = 1 << 0
	ProtWrite Prot = 1 << 1
	ProtExec  Prot = 1 << 2
)

// MMU is the capability set the syscall layer and VFS depend on to touch
// guest memory. Every method operates on guest virtual addresses.
type MMU interface {
	Read8(addr uint64) (uint8, error)
	Read16(addr uint64) (uint16, error)
	Read32(addr uint64) (uint32, error)
	Read64(addr uint64) (uint64, error)

	Write8(addr uint64, v uint8) error
	Write16(addr uint64, v uint16) error
	Write32(addr uint64, v uint32) error
	Write64(addr uint64, v uint64) error

	// CopyFromMMU copies len(dst) bytes from guest memory at addr into dst.
	CopyFromMMU(dst []byte, addr uint64) error
	// CopyToMMU copies src into guest memory at addr.
	CopyToMMU(addr uint64, src []byte) error
	// ReadString reads a NUL-terminated string starting at addr, up to
	// maxLen bytes.
	ReadString(addr uint64, maxLen int) (string, error)

	// Mmap maps length bytes with the given protection/flags, optionally
	// backed by fd at the given offset (fd == -1 for anonymous), preferring
	// addrHint when fixed/non-zero.
	Mmap(addrHint uint64, length uint64, prot Prot, flags uint32, fd int32, offset uint64) (uint64, error)
	Mprotect(addr uint64, length uint64, prot Prot) error
	Munmap(addr uint64, length uint64) error
	// Brk moves the program break to addr (or, if addr is 0, reports the
	// current break) and returns the resulting break.
	Brk(addr uint64) (uint64, error)
	// Prot reports the current protection bits mapped at addr.
	Prot(addr uint64) (Prot, error)
	// SetRegionName attaches a debug name to the mapping containing addr
	// (used by PR_SET_VMA and /proc/<pid>/maps rendering).
	SetRegionName(addr uint64, name string) error
	// Mincore reports, for each page in [addr, addr+length), whether it is
	// resident.
	Mincore(addr uint64, length uint64) ([]bool, error)
}
