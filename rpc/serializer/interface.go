package serializer

// IRPCSerializer is the interface for all payload serializers used to fill and read parcels
type IRPCSerializer interface {
	// Serialize serializes a value into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(v any) ([]byte, error)
	// Deserialize deserializes a byte array into a value
	// It takes a byte array and a pointer to the target value as parameters
	// It returns an error if any
	Deserialize(b []byte, v any) error
	// Name returns the short name of the format (e.g. "json")
	Name() string
}

// ByName returns the serializer registered for the given format name
func ByName(name string) (IRPCSerializer, bool) {
	switch name {
	case "json":
		return NewJSONSerializer(), true
	case "gob":
		return NewGOBSerializer(), true
	case "binary":
		return NewBinarySerializer(), true
	default:
		return nil, false
	}
}
