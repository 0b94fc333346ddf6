/*
Copyright 2026 The NexusForge Authors.

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

// Package streaming turns an unbounded token stream from an LLM into
// durable, chunked, back-pressured writes to a knowledge store, with a
// dead-letter queue and a per-stream circuit breaker.
package streaming

import "time"

// StreamChunk is one unit of a stream's content, per spec.md §3. Sequence is
// strictly monotonic within a stream; at most one chunk per stream carries
// IsFinal = true, and it carries the maximum sequence.
type StreamChunk struct {
	ChunkID   string
	Sequence  int
	Content   []byte
	Tokens    int
	Timestamp time.Time
	StreamID  string
	Domain    string
	AgentID   string
	TaskID    string
	IsFinal   bool
}
