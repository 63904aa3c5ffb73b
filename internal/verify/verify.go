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

// Package verify provides the internal-invariant assertion used across the
// emulator's kernel packages. A failed verify means the guest-facing
// contract or an internal data structure has been violated in a way that
// cannot be reported as an errno; it is not a substitute for error
// handling at the syscall boundary.
package verify

import "fmt"

// That panics with msg (formatted with args) if cond is false.
func That(cond bool, msg string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(msg, args...))
	}
}

// Unreachable panics unconditionally; used for switch default cases that
// must not be hit given prior validation.
func Unreachable(msg string, args ...interface{}) {
	panic(fmt.Sprintf(msg, args...))
}
