/*
Copyright 2025 The ModelTC Authors.

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

// Package logging defines the klog verbosity levels shared across this
// repo's components, so every package logs at a consistent granularity.
package logging

// klog.V() verbosity levels used throughout this repo.
const (
	// DEBUG is for per-call, per-session lifecycle messages: session
	// started/terminated, cache hit/miss, transport round trip issued.
	DEBUG = 2
	// TRACE is for per-step detail: individual Feed transitions, backtrack
	// depth, automaton state transitions.
	TRACE = 4
)
