package codec

import (
	"encoding/json"
)

// JSONCodec uses encoding/json. Human-readable on the wire, which helps when sniffing
// traffic to an editor; BinaryCodec is smaller and faster.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
