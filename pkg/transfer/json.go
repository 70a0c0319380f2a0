package transfer

import (
	"encoding/json"
	"fmt"
)

// JSONSerializer encodes envelopes as JSON. []byte payloads are base64
// encoded by encoding/json, which keeps raw chunk bytes intact on the wire.
type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (j *JSONSerializer) Marshal(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", env.Type, err)
	}
	return data, nil
}

func (j *JSONSerializer) Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return &env, nil
}

func (j *JSONSerializer) Name() string {
	return "json"
}
