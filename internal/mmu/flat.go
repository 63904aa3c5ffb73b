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

package mmu

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// FlatMMU is an in-memory MMU backed by a single flat byte slice, for use
// in tests of the syscall layer and VFS that don't need a real decoder/JIT.
// It is not meant to emulate real page protection faithfully; it tracks
// protection per mapped region only well enough to exercise Prot/Mincore.
type FlatMMU struct {
	mu     sync.Mutex
	mem    []byte
	brkTop uint64
	regions []region
	next   uint64 // bump allocator for Mmap addr assignment
}

type region struct {
	start, end uint64
	prot       Prot
	name       string
}

// NewFlatMMU creates a FlatMMU with size bytes of backing memory, with the
// program break initially at size/2 and the mmap bump allocator starting
// just above it.
func NewFlatMMU(size uint64) *FlatMMU {
	return &FlatMMU{
		mem:    make([]byte, size),
		brkTop: size / 2,
		next:   size / 2,
	}
}

func (m *FlatMMU) checkRange(addr, n uint64) error {
	if addr+n > uint64(len(m.mem)) || addr+n < addr {
		return fmt.Errorf("mmu: out of range access at %#x len %d", addr, n)
	}
	return nil
}

func (m *FlatMMU) Read8(addr uint64) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(addr, 1); err != nil {
		return 0, err
	}
	return m.mem[addr], nil
}

func (m *FlatMMU) Read16(addr uint64) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.mem[addr:]), nil
}

func (m *FlatMMU) Read32(addr uint64) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.mem[addr:]), nil
}

func (m *FlatMMU) Read64(addr uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.mem[addr:]), nil
}

func (m *FlatMMU) Write8(addr uint64, v uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(addr, 1); err != nil {
		return err
	}
	m.mem[addr] = v
	return nil
}

func (m *FlatMMU) Write16(addr uint64, v uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.mem[addr:], v)
	return nil
}

func (m *FlatMMU) Write32(addr uint64, v uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.mem[addr:], v)
	return nil
}

func (m *FlatMMU) Write64(addr uint64, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.mem[addr:], v)
	return nil
}

func (m *FlatMMU) CopyFromMMU(dst []byte, addr uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(addr, uint64(len(dst))); err != nil {
		return err
	}
	copy(dst, m.mem[addr:addr+uint64(len(dst))])
	return nil
}

func (m *FlatMMU) CopyToMMU(addr uint64, src []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(addr, uint64(len(src))); err != nil {
		return err
	}
	copy(m.mem[addr:addr+uint64(len(src))], src)
	return nil
}

func (m *FlatMMU) ReadString(addr uint64, maxLen int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRange(addr, 0); err != nil {
		return "", err
	}
	end := addr
	limit := addr + uint64(maxLen)
	if limit > uint64(len(m.mem)) {
		limit = uint64(len(m.mem))
	}
	for end < limit && m.mem[end] != 0 {
		end++
	}
	if end >= limit {
		return "", fmt.Errorf("mmu: string at %#x not NUL-terminated within %d bytes", addr, maxLen)
	}
	return string(m.mem[addr:end]), nil
}

func (m *FlatMMU) Mmap(addrHint uint64, length uint64, prot Prot, flags uint32, fd int32, offset uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	length = (length + 0xfff) &^ 0xfff
	addr := addrHint
	if addr == 0 {
		addr = m.next
		m.next += length
	}
	if err := m.checkRange(addr, length); err != nil {
		return 0, err
	}
	m.regions = append(m.regions, region{start: addr, end: addr + length, prot: prot})
	return addr, nil
}

func (m *FlatMMU) Mprotect(addr uint64, length uint64, prot Prot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.regions {
		if m.regions[i].start == addr {
			m.regions[i].prot = prot
			return nil
		}
	}
	return fmt.Errorf("mmu: mprotect: no mapping at %#x", addr)
}

func (m *FlatMMU) Munmap(addr uint64, length uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.regions {
		if m.regions[i].start == addr {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *FlatMMU) Brk(addr uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr != 0 {
		m.brkTop = addr
	}
	return m.brkTop, nil
}

func (m *FlatMMU) Prot(addr uint64) (Prot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regions {
		if addr >= r.start && addr < r.end {
			return r.prot, nil
		}
	}
	return ProtNone, fmt.Errorf("mmu: no mapping at %#x", addr)
}

func (m *FlatMMU) SetRegionName(addr uint64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.regions {
		if addr >= m.regions[i].start && addr < m.regions[i].end {
			m.regions[i].name = name
			return nil
		}
	}
	return fmt.Errorf("mmu: no mapping at %#x", addr)
}

func (m *FlatMMU) Mincore(addr uint64, length uint64) ([]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pages := (length + 0xfff) / 0x1000
	out := make([]bool, pages)
	for i := range out {
		out[i] = true
	}
	return out, nil
}
