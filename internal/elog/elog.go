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

// Package elog is the emulator's ambient logger: a thin per-subsystem
// wrapper over the standard library log package, in the style of
// perkeep's pkg/syncutil debug logging rather than a structured logging
// framework.
package elog

import "log"

// Logger prefixes every line with a subsystem tag.
type Logger struct {
	tag string
}

// New returns a Logger that prefixes lines with "[tag] ".
func New(tag string) *Logger {
	return &Logger{tag: tag}
}

func (l *Logger) Printf(format string, args ...interface{}) {
	log.Printf("["+l.tag+"] "+format, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	log.Fatalf("["+l.tag+"] "+format, args...)
}
