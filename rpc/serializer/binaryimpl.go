package serializer

import (
	"encoding"
	"github.com/pkg/errors"
)

// ErrUnsupportedType is returned by the binary serializer for values it cannot encode
var ErrUnsupportedType = errors.New("unsupported type for binary serializer")

// NewBinarySerializer creates a new serializer that copies raw bytes and strings
// verbatim and delegates everything else to encoding.BinaryMarshaler
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer without any framing overhead
type binarySerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return val, nil
	case *[]byte:
		return *val, nil
	case string:
		return []byte(val), nil
	case *string:
		return []byte(*val), nil
	case encoding.BinaryMarshaler:
		return val.MarshalBinary()
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "%T", v)
	}
}

func (b binarySerializerImpl) Deserialize(data []byte, v any) error {
	switch val := v.(type) {
	case *[]byte:
		// copy so the value does not alias the frame buffer
		*val = append([]byte(nil), data...)
		return nil
	case *string:
		*val = string(data)
		return nil
	case encoding.BinaryUnmarshaler:
		return val.UnmarshalBinary(data)
	default:
		return errors.Wrapf(ErrUnsupportedType, "%T", v)
	}
}

func (b binarySerializerImpl) Name() string {
	return "binary"
}
