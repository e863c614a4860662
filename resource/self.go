package resource

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// SelfResponse is the outcome of a create or update call. Its data and meta
// are kept as raw JSON and read by key.
type SelfResponse struct {
	data json.RawMessage
	meta json.RawMessage
}

// NewSelfResponse builds a SelfResponse from raw data and meta documents.
func NewSelfResponse(data, meta json.RawMessage) *SelfResponse {
	return &SelfResponse{data: data, meta: meta}
}

// Get reads a top-level property of the returned resource.
func (s *SelfResponse) Get(key string) gjson.Result {
	return lookup(s.data, key)
}

// Meta reads a top-level property of the response meta.
func (s *SelfResponse) Meta(key string) gjson.Result {
	return lookup(s.meta, key)
}

// Data returns the raw resource document.
func (s *SelfResponse) Data() json.RawMessage { return s.data }

// RawMeta returns the raw meta document; nil when the response had none.
func (s *SelfResponse) RawMeta() json.RawMessage { return s.meta }

// Entity wraps the resource document for generic navigation.
func (s *SelfResponse) Entity() (*Entity, error) {
	return DecodeEntity(s.data)
}

func lookup(doc json.RawMessage, key string) gjson.Result {
	if len(doc) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(doc, gjson.Escape(key))
}
