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
	"strings"

	"x64emu.dev/emulator/internal/hostbridge"
	"x64emu.dev/emulator/internal/sieve"
	"x64emu.dev/emulator/internal/verify"
)

// dirCacheCapacity bounds the absolute-path directory resolution cache.
// Guest programs that repeatedly stat/open paths under the same few
// directories (shared library search paths, a working directory tree)
// dominate lookup traffic, so a modest cache pays for itself without
// needing to track per-process memory budgets.
const dirCacheCapacity = 512

// VFS is the emulated filesystem root. Its hostRoot, when non-empty, is a
// directory prefix under which guest absolute paths are routed directly to
// the real host filesystem instead of the in-memory shadow tree, mirroring
// fs.cpp's host-vs-shadow open routing policy.
type VFS struct {
	bridge   *hostbridge.Bridge
	root     *Directory
	hostRoot string

	maxOpenFiles int

	// dirCache memoizes resolveDir's walk for absolute paths so repeated
	// lookups into the same directory tree don't re-walk every path
	// component on every stat/open/access call. Invalidated wholesale on
	// any structural mutation (mkdir/rmdir/rename/unlink/symlink), which
	// is simple and correct even though coarser than strictly necessary.
	dirCache *sieve.Sieve[string, *Directory]
}

// New creates a VFS with an empty in-memory root directory. Standard
// streams must be installed via InitStandardStreams before ResetProcFS,
// matching fs.cpp's constructor-then-resetProcFS sequencing.
func New(bridge *hostbridge.Bridge, hostRoot string, maxOpenFiles int) *VFS {
	return &VFS{
		bridge:       bridge,
		root:         NewDirectory("", nil),
		hostRoot:     hostRoot,
		maxOpenFiles: maxOpenFiles,
		dirCache:     sieve.New[string, *Directory](dirCacheCapacity, nil),
	}
}

// invalidateDirCache drops every cached directory resolution. Called
// after any operation that can change the shape of the shadow tree.
func (v *VFS) invalidateDirCache() {
	for v.dirCache.Len() > 0 {
		v.dirCache.RemoveOldest()
	}
}

func (v *VFS) Root() *Directory { return v.root }

// InitStandardStreams installs guest fd 0/1/2 into table, binding fd 1 and
// 2 both to host fd 2 per the spec's first Open Question (stdout always
// routes to host fd 2 regardless of guest fd).
func (v *VFS) InitStandardStreams(table *FDTable) {
	stdin := NewHostFile(v.bridge, 0, true, false)
	stdout := NewHostFile(v.bridge, 2, false, true)
	stderr := NewHostFile(v.bridge, 2, false, true)
	table.Install(NewOFD(stdin, 0), false)
	table.Install(NewOFD(stdout, 0), false)
	table.Install(NewOFD(stderr, 0), false)
}

// ResetProcFS mounts /proc, asserting exactly 3 standard streams are open
// first, per fs.cpp's resetProcFS assertion.
func (v *VFS) ResetProcFS(table *FDTable, cmdline, maps, status func() []byte) {
	openCount := 0
	for fd := FD(0); fd <= 2; fd++ {
		if _, ok := table.Get(fd); ok {
			openCount++
		}
	}
	verify.That(openCount == 3, "vfs: ResetProcFS called with %d standard streams open, want 3", openCount)
	proc := NewDirectory("proc", v.root)
	v.root.Insert("proc", Node{Dir: proc})
	BuildProcFS(proc, cmdline, maps, status)
}

// isHostRouted reports whether an absolute path should be served directly
// by the host filesystem.
func (v *VFS) isHostRouted(p Path) bool {
	if v.hostRoot == "" {
		return false
	}
	return strings.HasPrefix(p.String(), v.hostRoot)
}

// resolveDir walks from cwd (or root, if p is absolute) through p's
// directory components, following symlinks along the way, mirroring
// fs.cpp's ensurePathImpl. Returns the final Directory and ok, or
// errno != OK on failure.
func (v *VFS) resolveDir(cwd *Directory, p Path, create bool) (*Directory, Errno) {
	dir := v.root
	if !p.Absolute {
		dir = cwd
	}
	comps := p.Components
	if len(comps) > 0 {
		comps = comps[:len(comps)-1]
	}

	// Only absolute, non-creating resolutions are cacheable: relative
	// paths depend on an arbitrary cwd identity, and create=true can
	// mutate the tree as it walks.
	cacheable := p.Absolute && !create && len(comps) > 0
	var cacheKey string
	if cacheable {
		cacheKey = "/" + strings.Join(comps, "/")
		if cached, ok := v.dirCache.Get(cacheKey); ok {
			return cached, OK
		}
	}

	for _, c := range comps {
		if c == ".." {
			if dir.Parent() != nil {
				dir = dir.Parent()
			}
			continue
		}
		n, ok := dir.Lookup(c)
		if !ok {
			if create {
				nd := NewDirectory(c, dir)
				dir.Insert(c, Node{Dir: nd})
				dir = nd
				continue
			}
			return nil, ENOENT
		}
		switch {
		case n.Dir != nil:
			dir = n.Dir
		case n.Link != nil:
			resolved, errno := v.resolveSymlinkDir(dir, n.Link)
			if errno != OK {
				return nil, errno
			}
			dir = resolved
		default:
			return nil, ENOTDIR
		}
	}
	if cacheable {
		v.dirCache.Add(cacheKey, dir)
	}
	return dir, OK
}

func (v *VFS) resolveSymlinkDir(cwd *Directory, link *Symlink) (*Directory, Errno) {
	target := ParsePath(link.Target())
	d, errno := v.resolveDir(cwd, target, false)
	if errno != OK {
		return nil, errno
	}
	if target.Base() == "" {
		return d, OK
	}
	n, ok := d.Lookup(target.Base())
	if !ok || n.Dir == nil {
		return nil, ENOTDIR
	}
	return n.Dir, OK
}

// Lookup resolves a full path to its final Node (without following a
// trailing symlink unless followLink is set), for use by stat/statx/open.
func (v *VFS) Lookup(cwd *Directory, p Path, followLink bool) (Node, Errno) {
	dir, errno := v.resolveDir(cwd, p, false)
	if errno != OK {
		return Node{}, errno
	}
	base := p.Base()
	if base == "" {
		return Node{Dir: dir}, OK
	}
	n, ok := dir.Lookup(base)
	if !ok {
		return Node{}, ENOENT
	}
	if followLink && n.Link != nil {
		target := ParsePath(n.Link.Target())
		return v.Lookup(dir, target, true)
	}
	return n, OK
}

// OpenOptions mirrors the decoded O_* bits passed to open/openat.
type OpenOptions struct {
	Flags int
	Mode  uint32
}

// Open resolves path, applying O_CREAT/O_EXCL/O_TRUNC semantics, and
// returns a ready-to-install File. O_DIRECTORY is not checked: opening a
// non-directory with it succeeds. This is the Go
// counterpart of fs.cpp's open() routing decision tree: host-routed
// absolute paths go straight to the Host Bridge; everything else resolves
// against the in-memory shadow tree.
func (v *VFS) Open(cwd *Directory, rawPath string, opt OpenOptions) (File, Errno) {
	p := ParsePath(rawPath)

	if v.isHostRouted(p) {
		flags := opt.Flags | hostbridge.OLargefile
		hostFD, err := v.bridge.Open(p.String(), flags, opt.Mode)
		if err != nil {
			return nil, FromError(err)
		}
		readable := (opt.Flags&hostbridge.OAccModeMask) != hostbridge.OWronly
		writable := (opt.Flags & hostbridge.OAccModeMask) != hostbridge.ORdonly
		return NewHostFile(v.bridge, hostFD, readable, writable), OK
	}

	dir, errno := v.resolveDir(cwd, p, false)
	if errno != OK {
		return nil, errno
	}
	base := p.Base()
	if base == "" {
		return &directoryFile{dir: dir}, OK
	}
	n, ok := dir.Lookup(base)
	if !ok {
		if opt.Flags&hostbridge.OCreat == 0 {
			return nil, ENOENT
		}
		readable := (opt.Flags&hostbridge.OAccModeMask) != hostbridge.OWronly
		writable := (opt.Flags & hostbridge.OAccModeMask) != hostbridge.ORdonly
		f := NewRegularFile(opt.Mode, readable, writable)
		dir.Insert(base, Node{Leaf: f})
		return f, OK
	}
	if opt.Flags&hostbridge.OExcl != 0 {
		return nil, EEXIST
	}
	if n.Dir != nil {
		if opt.Flags&hostbridge.OAccModeMask != hostbridge.ORdonly {
			return nil, EISDIR
		}
		return &directoryFile{dir: n.Dir}, OK
	}
	if n.Link != nil {
		return v.Open(dir, n.Link.Target(), opt)
	}
	if opt.Flags&hostbridge.OTrunc != 0 {
		if tr, ok := n.Leaf.(Truncatable); ok {
			tr.Truncate(0)
		}
	}
	return n.Leaf, OK
}

// directoryFile wraps a Directory so it can be handed out as a File for
// opens of directory paths (O_DIRECTORY, or a bare open on a dir for
// getdents64), without directories implementing the full File interface
// themselves (they have no byte-stream read/write).
type directoryFile struct {
	dir *Directory
}

// Dir exposes the wrapped Directory, used by openat(2)'s dirfd-relative
// resolution to find the directory a previously-opened dirfd refers to.
func (d *directoryFile) Dir() *Directory { return d.dir }

func (d *directoryFile) Kind() Kind      { return KindDirectory }
func (d *directoryFile) Readable() bool  { return true }
func (d *directoryFile) Writable() bool  { return false }
func (d *directoryFile) Read(buf []byte, offset int64) (int, Errno)  { return 0, EISDIR }
func (d *directoryFile) Write(buf []byte, offset int64) (int, Errno) { return 0, EISDIR }
func (d *directoryFile) Stat() (Stat, Errno)                         { return Stat{Mode: 0o40755, Nlink: 2}, OK }
func (d *directoryFile) Close() Errno                                { return OK }
func (d *directoryFile) PollReadiness(requested uint32) uint32       { return 0 }

// Getdents64 lists directory entry names for a File previously returned
// by Open on a directory path.
func (v *VFS) Getdents64(f File) ([]string, Errno) {
	df, ok := f.(*directoryFile)
	if !ok {
		return nil, ENOTDIR
	}
	return df.dir.Names(), OK
}

// Mkdir creates a directory at path.
func (v *VFS) Mkdir(cwd *Directory, rawPath string, mode uint32) Errno {
	p := ParsePath(rawPath)
	dir, errno := v.resolveDir(cwd, p, false)
	if errno != OK {
		return errno
	}
	base := p.Base()
	if base == "" {
		return EEXIST
	}
	if _, exists := dir.Lookup(base); exists {
		return EEXIST
	}
	dir.Insert(base, Node{Dir: NewDirectory(base, dir)})
	v.invalidateDirCache()
	return OK
}

// Rename implements fs.cpp's take-then-add rename: detach from the old
// directory, then insert under the new name/directory, rather than an
// in-place rename.
func (v *VFS) Rename(cwd *Directory, oldRaw, newRaw string) Errno {
	oldPath := ParsePath(oldRaw)
	newPath := ParsePath(newRaw)
	oldDir, errno := v.resolveDir(cwd, oldPath, false)
	if errno != OK {
		return errno
	}
	newDir, errno := v.resolveDir(cwd, newPath, false)
	if errno != OK {
		return errno
	}
	n, ok := oldDir.TryTakeEntry(oldPath.Base())
	if !ok {
		return ENOENT
	}
	newDir.Insert(newPath.Base(), n)
	v.invalidateDirCache()
	return OK
}

// Unlink detaches a directory entry and returns the File it named, without
// closing it: OFDs that still reference the File keep working on the
// detached node. The syscall handlers discard the returned File, and
// nothing sets refCounted's deleteAfterClose.
func (v *VFS) Unlink(cwd *Directory, rawPath string) (File, Errno) {
	p := ParsePath(rawPath)
	dir, errno := v.resolveDir(cwd, p, false)
	if errno != OK {
		return nil, errno
	}
	n, ok := dir.TryTakeEntry(p.Base())
	if !ok {
		return nil, ENOENT
	}
	if n.Dir != nil {
		dir.Insert(p.Base(), n) // put it back: use Rmdir for directories
		return nil, EISDIR
	}
	v.invalidateDirCache()
	return n.Leaf, OK
}

// Rmdir removes an empty directory entry.
func (v *VFS) Rmdir(cwd *Directory, rawPath string) Errno {
	p := ParsePath(rawPath)
	dir, errno := v.resolveDir(cwd, p, false)
	if errno != OK {
		return errno
	}
	n, ok := dir.Lookup(p.Base())
	if !ok {
		return ENOENT
	}
	if n.Dir == nil {
		return ENOTDIR
	}
	if !n.Dir.Empty() {
		return ENOTEMPTY
	}
	dir.TryTakeEntry(p.Base())
	v.invalidateDirCache()
	return OK
}

// Readlink resolves a symlink's target text without following it further.
func (v *VFS) Readlink(cwd *Directory, rawPath string) (string, Errno) {
	n, errno := v.Lookup(cwd, ParsePath(rawPath), false)
	if errno != OK {
		return "", errno
	}
	if n.Link == nil {
		return "", EINVAL
	}
	return n.Link.Target(), OK
}

// Symlink creates a symlink entry at path pointing at target.
func (v *VFS) Symlink(cwd *Directory, target, rawPath string) Errno {
	p := ParsePath(rawPath)
	dir, errno := v.resolveDir(cwd, p, false)
	if errno != OK {
		return errno
	}
	base := p.Base()
	if _, exists := dir.Lookup(base); exists {
		return EEXIST
	}
	dir.Insert(base, Node{Link: NewSymlink(base, target)})
	v.invalidateDirCache()
	return OK
}

// MemfdCreate creates an anonymous RegularFile not attached to any
// directory entry, per fs.cpp's memfd_create. Only MFD_CLOEXEC and
// MFD_ALLOW_SEALING are tolerated in flags (MFD_ALLOW_SEALING is accepted
// but ignored); any other bit is an internal invariant violation, not a
// guest-facing error, matching the original's verify(false, ...) for
// unrecognized flags.
func (v *VFS) MemfdCreate(flags uint32) *RegularFile {
	const mfdCloexec = 0x1
	const mfdAllowSealing = 0x2
	verify.That(flags&^(mfdCloexec|mfdAllowSealing) == 0, "vfs: memfd_create: unsupported flags %#x", flags)
	return NewRegularFile(0o600, true, true)
}

// Pipe2 creates a connected pipe pair.
func (v *VFS) Pipe2() (*PipeReadEnd, *PipeWriteEnd) {
	p := NewPipe()
	return NewPipeReadEnd(p), NewPipeWriteEnd(p)
}
