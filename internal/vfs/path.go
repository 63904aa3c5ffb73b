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

import "strings"

// Path is a parsed, normalized guest path: an absolute/relative flag plus
// its non-empty components, mirroring fs.cpp's toAbsolutePathname helpers
// which strip "." components and repeated slashes before resolution.
type Path struct {
	Absolute   bool
	Components []string
}

// ParsePath splits raw into components, dropping "." entries and empty
// segments produced by repeated or trailing slashes. ".." is preserved as
// a literal component; resolution logic (ensurePathImpl-equivalent) walks
// it at lookup time rather than here, since ".." through a symlink must
// resolve relative to the symlink's resolved parent, not textually.
func ParsePath(raw string) Path {
	p := Path{Absolute: strings.HasPrefix(raw, "/")}
	for _, part := range strings.Split(raw, "/") {
		if part == "" || part == "." {
			continue
		}
		p.Components = append(p.Components, part)
	}
	return p
}

// Base returns the final component ("" for the root path).
func (p Path) Base() string {
	if len(p.Components) == 0 {
		return ""
	}
	return p.Components[len(p.Components)-1]
}

// Dir returns the path with the final component removed.
func (p Path) Dir() Path {
	if len(p.Components) == 0 {
		return p
	}
	return Path{Absolute: p.Absolute, Components: p.Components[:len(p.Components)-1]}
}

// String renders the path back into slash-separated form.
func (p Path) String() string {
	s := strings.Join(p.Components, "/")
	if p.Absolute {
		return "/" + s
	}
	return s
}
