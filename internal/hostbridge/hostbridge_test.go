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

package hostbridge

import "testing"

func TestCPUUsageNonNegative(t *testing.T) {
	b := New()
	if usage := b.CPUUsage(); usage < 0 {
		t.Fatalf("CPUUsage returned negative duration: %v", usage)
	}
}

func TestGetrandomFillsBuffer(t *testing.T) {
	b := New()
	buf := make([]byte, 16)
	n, err := b.Getrandom(buf, 0)
	if err != nil {
		t.Fatalf("Getrandom: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("Getrandom: got %d bytes, want %d", n, len(buf))
	}
}
