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

// Package config reads the emulator's process-construction parameters
// (core count, JIT/profiling toggles, host passthrough root) from a JSON
// document, adapted from perkeep's pkg/jsonconfig accumulate-errors-then-
// validate pattern.
package config

import (
	"encoding/json"
	"fmt"
)

// Obj is a parsed JSON object with accessors that accumulate errors rather
// than failing on the first missing/mistyped key, the way
// perkeep.org/pkg/jsonconfig.Obj does.
type Obj struct {
	m       map[string]interface{}
	errs    []error
	touched map[string]bool
}

// Parse decodes raw JSON into an Obj.
func Parse(data []byte) (*Obj, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: invalid JSON: %w", err)
	}
	return &Obj{m: m, touched: make(map[string]bool)}, nil
}

func (o *Obj) note(key string) { o.touched[key] = true }

func (o *Obj) appendError(err error) { o.errs = append(o.errs, err) }

// OptionalInt returns the int at key, or def if absent.
func (o *Obj) OptionalInt(key string, def int) int {
	o.note(key)
	v, ok := o.m[key]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		o.appendError(fmt.Errorf("config: key %q: want number, got %T", key, v))
		return def
	}
	return int(f)
}

// OptionalBool returns the bool at key, or def if absent.
func (o *Obj) OptionalBool(key string, def bool) bool {
	o.note(key)
	v, ok := o.m[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		o.appendError(fmt.Errorf("config: key %q: want bool, got %T", key, v))
		return def
	}
	return b
}

// OptionalString returns the string at key, or def if absent.
func (o *Obj) OptionalString(key, def string) string {
	o.note(key)
	v, ok := o.m[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		o.appendError(fmt.Errorf("config: key %q: want string, got %T", key, v))
		return def
	}
	return s
}

// Validate reports the first accumulated error, and flags any key present
// in the document that no accessor ever touched — a likely typo, the way
// jsonconfig.Obj.Validate() does.
func (o *Obj) Validate() error {
	if len(o.errs) > 0 {
		return o.errs[0]
	}
	for key := range o.m {
		if !o.touched[key] {
			return fmt.Errorf("config: unknown key %q", key)
		}
	}
	return nil
}

// Process holds the fully-validated configuration for one emulator run.
type Process struct {
	Cores         int
	EnableJIT     bool
	EnableProfile bool
	ProfileDir    string
	HostRoot      string
	MaxOpenFiles  int
}

// Load parses and validates raw JSON into a Process configuration,
// applying the emulator's defaults for any absent key.
func Load(raw []byte) (Process, error) {
	o, err := Parse(raw)
	if err != nil {
		return Process{}, err
	}
	p := Process{
		Cores:         o.OptionalInt("cores", 4),
		EnableJIT:     o.OptionalBool("enableJIT", true),
		EnableProfile: o.OptionalBool("enableProfile", false),
		ProfileDir:    o.OptionalString("profileDir", ""),
		HostRoot:      o.OptionalString("hostRoot", ""),
		MaxOpenFiles:  o.OptionalInt("maxOpenFiles", 1024),
	}
	if err := o.Validate(); err != nil {
		return Process{}, err
	}
	return p, nil
}
