package transport

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

const tagField = "_tag"

// ToStruct marshals an Envelope's payload into a structpb.Struct, stamping
// the tag under a reserved field so the receiver can dispatch by type
// before decoding the rest.
func ToStruct(tag Tag, payload any) (*structpb.Struct, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal payload to map: %w", err)
	}
	fields[tagField] = string(tag)
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return st, nil
}

// FromStruct extracts the Tag and the remaining fields as a generic map.
func FromStruct(s *structpb.Struct) (Tag, map[string]any) {
	m := s.AsMap()
	tag, _ := m[tagField].(string)
	delete(m, tagField)
	return Tag(tag), m
}

// DecodeInto re-marshals a generic field map into a typed payload struct.
func DecodeInto(fields map[string]any, out any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
