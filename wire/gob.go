package wire

import (
	"bytes"
	"encoding/gob"
)

// NewGOBSerializer creates a Serializer using Go's gob encoding.
func NewGOBSerializer() Serializer {
	return gobSerializer{}
}

type gobSerializer struct{}

func (gobSerializer) Serialize(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobSerializer) Deserialize(b []byte, msg *Message) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(msg)
}
