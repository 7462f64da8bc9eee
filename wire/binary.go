package wire

import (
	"encoding/binary"
	"fmt"
)

// NewBinarySerializer creates a Serializer using a small hand-rolled
// binary format: a type byte, a flags byte indicating which optional
// fields are present, then each present field length-prefixed.
func NewBinarySerializer() Serializer {
	return binarySerializer{}
}

type binarySerializer struct{}

const (
	hasPayload     byte = 1 << 0
	hasClusterName byte = 1 << 1
	hasErr         byte = 1 << 2
)

func (binarySerializer) Serialize(msg Message) ([]byte, error) {
	size := 2
	if len(msg.Payload) > 0 {
		size += 4 + len(msg.Payload)
	}
	if msg.ClusterName != "" {
		size += 4 + len(msg.ClusterName)
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}

	result := make([]byte, size)
	result[0] = byte(msg.Type)

	var flags byte
	pos := 2

	if len(msg.Payload) > 0 {
		flags |= hasPayload
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Payload)))
		pos += 4
		copy(result[pos:], msg.Payload)
		pos += len(msg.Payload)
	}
	if msg.ClusterName != "" {
		flags |= hasClusterName
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.ClusterName)))
		pos += 4
		copy(result[pos:], msg.ClusterName)
		pos += len(msg.ClusterName)
	}
	if msg.Err != "" {
		flags |= hasErr
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Err)))
		pos += 4
		copy(result[pos:], msg.Err)
		pos += len(msg.Err)
	}

	result[1] = flags
	return result, nil
}

func (binarySerializer) Deserialize(data []byte, msg *Message) error {
	if len(data) < 2 {
		return fmt.Errorf("wire: message too short for header")
	}
	msg.Type = MessageType(data[0])
	flags := data[1]
	pos := 2

	readField := func() (string, error) {
		if pos+4 > len(data) {
			return "", fmt.Errorf("wire: truncated length prefix")
		}
		n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+n > len(data) {
			return "", fmt.Errorf("wire: truncated field")
		}
		s := string(data[pos : pos+n])
		pos += n
		return s, nil
	}

	msg.Payload = nil
	if flags&hasPayload != 0 {
		s, err := readField()
		if err != nil {
			return err
		}
		msg.Payload = []byte(s)
	}

	msg.ClusterName = ""
	if flags&hasClusterName != 0 {
		s, err := readField()
		if err != nil {
			return err
		}
		msg.ClusterName = s
	}

	msg.Err = ""
	if flags&hasErr != 0 {
		s, err := readField()
		if err != nil {
			return err
		}
		msg.Err = s
	}

	return nil
}
