package wire

import "encoding/json"

// NewJSONSerializer creates a Serializer using json encoding.
func NewJSONSerializer() Serializer {
	return jsonSerializer{}
}

type jsonSerializer struct{}

func (jsonSerializer) Serialize(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonSerializer) Deserialize(b []byte, msg *Message) error {
	return json.Unmarshal(b, msg)
}
