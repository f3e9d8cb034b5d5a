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

// Package oracle ships InferRequest/InferResponse pairs across a process
// boundary to an external inference engine. Transports are pure boundary
// glue: none of them compute a log-probability or sample a token, they only
// move already-computed values.
package oracle

import (
	"context"

	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
)

// Transport ships one InferRequest and blocks for the matching InferResponse.
type Transport interface {
	RoundTrip(ctx context.Context, req searchtree.InferRequest) (searchtree.InferResponse, error)
}
