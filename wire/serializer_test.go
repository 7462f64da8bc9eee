package wire

import (
	"reflect"
	"testing"
)

var testSerializers = map[string]func() Serializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

func testMessages() []Message {
	return []Message{
		{Type: MsgPing},
		{Type: MsgPong, ClusterName: "test-cluster"},
		{Type: MsgRequest, Payload: []byte("request-body")},
		{Type: MsgResponse, Payload: []byte("response-body")},
		{Type: MsgResponse, Err: "boom"},
		{Type: MsgResponse},
	}
}

func TestSerializerRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			for _, want := range testMessages() {
				data, err := s.Serialize(want)
				if err != nil {
					t.Fatalf("Serialize(%+v): %v", want, err)
				}

				var got Message
				if err := s.Deserialize(data, &got); err != nil {
					t.Fatalf("Deserialize: %v", err)
				}

				if len(want.Payload) == 0 {
					want.Payload = nil
				}
				if len(got.Payload) == 0 {
					got.Payload = nil
				}

				if !reflect.DeepEqual(want, got) {
					t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
				}
			}
		})
	}
}
