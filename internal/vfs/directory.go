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
	"sort"
	"sync"
)

// Directory is an in-memory directory node: a name -> Node table, mirroring
// fs.cpp's Directory::entries_ map and its insertNode/tryTakeEntry helpers.
type Directory struct {
	refCounted
	name    string
	parent  *Directory
	entries map[string]Node
	mu      sync.Mutex
}

// Node is anything a Directory can hold: either a nested Directory, a
// Symlink, or a leaf File.
type Node struct {
	Dir  *Directory
	Link *Symlink
	Leaf File
}

// NewDirectory creates a root or nested directory.
func NewDirectory(name string, parent *Directory) *Directory {
	return &Directory{name: name, parent: parent, entries: make(map[string]Node)}
}

func (d *Directory) Kind() Kind { return KindDirectory }

func (d *Directory) Name() string { return d.name }

func (d *Directory) Parent() *Directory { return d.parent }

// Lookup returns the entry named name, or ok=false if absent.
func (d *Directory) Lookup(name string) (Node, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.entries[name]
	return n, ok
}

// Insert adds (or replaces) an entry. Mirrors fs.cpp's insertNode.
func (d *Directory) Insert(name string, n Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[name] = n
}

// TryTakeEntry removes and returns the entry named name, the way fs.cpp's
// rename/unlink detach an entry before either destroying it or
// re-inserting it elsewhere.
func (d *Directory) TryTakeEntry(name string) (Node, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.entries[name]
	if ok {
		delete(d.entries, name)
	}
	return n, ok
}

// Names returns a sorted snapshot of entry names, for getdents64.
func (d *Directory) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty reports whether the directory has no entries (required before
// unlinking/rmdir'ing it).
func (d *Directory) Empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries) == 0
}

// Symlink is an in-memory symlink node holding its target text.
type Symlink struct {
	name   string
	target string
}

func NewSymlink(name, target string) *Symlink {
	return &Symlink{name: name, target: target}
}

func (s *Symlink) Name() string   { return s.name }
func (s *Symlink) Target() string { return s.target }
