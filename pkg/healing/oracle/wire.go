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

package oracle

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
)

// EncodeRequest and DecodeRequest/EncodeResponse/DecodeResponse are exported
// so that a process implementing the oracle side of the protocol (rather
// than calling through a Transport) can speak the same MessagePack wire
// format without reaching into this package's internals.

func encodeRequest(req searchtree.InferRequest) ([]byte, error) {
	return EncodeRequest(req)
}

func decodeRequest(b []byte) (searchtree.InferRequest, error) {
	return DecodeRequest(b)
}

func encodeResponse(res searchtree.InferResponse) ([]byte, error) {
	return EncodeResponse(res)
}

func decodeResponse(b []byte) (searchtree.InferResponse, error) {
	return DecodeResponse(b)
}

// EncodeRequest marshals req to the wire format a Transport sends.
func EncodeRequest(req searchtree.InferRequest) ([]byte, error) {
	b, err := msgpack.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode infer request: %w", err)
	}
	return b, nil
}

// DecodeRequest unmarshals b, the wire format a Transport sends, into an
// InferRequest.
func DecodeRequest(b []byte) (searchtree.InferRequest, error) {
	var req searchtree.InferRequest
	if err := msgpack.Unmarshal(b, &req); err != nil {
		return searchtree.InferRequest{}, fmt.Errorf("failed to decode infer request: %w", err)
	}
	return req, nil
}

// EncodeResponse marshals res to the wire format a Transport expects back.
func EncodeResponse(res searchtree.InferResponse) ([]byte, error) {
	b, err := msgpack.Marshal(&res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode infer response: %w", err)
	}
	return b, nil
}

// DecodeResponse unmarshals b, the wire format a Transport expects back, into
// an InferResponse.
func DecodeResponse(b []byte) (searchtree.InferResponse, error) {
	var res searchtree.InferResponse
	if err := msgpack.Unmarshal(b, &res); err != nil {
		return searchtree.InferResponse{}, fmt.Errorf("failed to decode infer response: %w", err)
	}
	return res, nil
}
