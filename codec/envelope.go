package codec

import (
	"bytes"
	"fmt"
)

// Envelope is the wire format used to carry a typed payload across a process
// boundary (the message bus, a persisted queue entry). Type identifies the
// payload's registered name so the receiver can decode Data into the correct
// Go type without out-of-band schema negotiation.
type Envelope struct {
	// Type is the registered name of the payload's Go type.
	Type string `json:"type" yaml:"type" xml:"type"`
	// Data is the encoded payload, in the content type the Envelope itself
	// was encoded with.
	Data []byte `json:"data" yaml:"data" xml:"data"`
}

// EncodeEnvelope encodes v using the codec for contentType, wraps the result
// in an Envelope tagged with typeName, and returns the Envelope encoded with
// the same codec.
func EncodeEnvelope(contentType, typeName string, v interface{}) ([]byte, error) {
	c, err := GetDefault(contentType)
	if err != nil {
		return nil, err
	}
	payload, err := c.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode payload: %w", err)
	}
	env := Envelope{Type: typeName, Data: payload}
	buf := &bytes.Buffer{}
	if err = c.Write(env, buf); err != nil {
		return nil, fmt.Errorf("codec: encode envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeEnvelope decodes an Envelope from b using the codec for contentType
// and returns it with Data still encoded. Callers decode env.Data into a
// concrete type with DecodePayload once they have resolved env.Type to a
// Go type.
func DecodeEnvelope(contentType string, b []byte) (Envelope, error) {
	c, err := GetDefault(contentType)
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err = c.DecodeBytes(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("codec: decode envelope: %w", err)
	}
	return env, nil
}

// DecodePayload decodes env.Data into v using the codec for contentType.
func DecodePayload(contentType string, env Envelope, v interface{}) error {
	c, err := GetDefault(contentType)
	if err != nil {
		return err
	}
	return c.DecodeBytes(env.Data, v)
}
