package wire

// Serializer converts a Message to and from its wire representation.
// hectorgo ships three: JSON for debuggability, GOB for zero-effort
// Go-to-Go framing, and a hand-rolled binary format for the default
// wire-size-sensitive path.
type Serializer interface {
	Serialize(msg Message) ([]byte, error)
	Deserialize(b []byte, msg *Message) error
}
