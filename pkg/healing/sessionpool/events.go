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

package sessionpool

// HealRequest describes one prompt tail that a caller wants re-tokenized. It
// is encoded as an array to keep the wire payload compact, the same
// convention the teacher's kvevents package uses for its vLLM-compatible
// event structs.
type HealRequest struct {
	_ struct{} `msgpack:",array"`
	// Text is the prompt tail to re-tokenize.
	Text string
	// StartFrom is the byte offset ParseChars should begin at.
	StartFrom int
	// VocabKey identifies which vocabulary to heal against; its meaning is up
	// to the VocabResolver the Pool was built with.
	VocabKey string
}

// HealBatch is a batch of HealRequests published together on one topic
// message, mirroring the teacher's EventBatch framing.
type HealBatch struct {
	_        struct{} `msgpack:",array"`
	Requests []HealRequest
}
