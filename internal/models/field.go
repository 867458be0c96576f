package models

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// TextField is an optional string that remembers whether the remote payload
// carried the field at all. A field absent from the payload means "not updated
// this poll"; a null or empty value means the authority reported no routing.
type TextField struct {
	Value string
	Known bool
}

func Text(value string) TextField {
	return TextField{Value: value, Known: true}
}

func (f TextField) Present() bool {
	return f.Known && f.Value != ""
}

// IsZero pairs with the omitzero tag: an unknown field is dropped from the
// payload entirely, so it unmarshals back as unknown instead of known-empty.
func (f TextField) IsZero() bool {
	return !f.Known
}

func (f *TextField) UnmarshalJSON(data []byte) error {
	f.Known = true
	if bytes.Equal(data, jsonNull) {
		f.Value = ""
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

func (f TextField) MarshalJSON() ([]byte, error) {
	if !f.Known || f.Value == "" {
		return jsonNull, nil
	}
	return json.Marshal(f.Value)
}

// IntField is the numeric counterpart of TextField. Callers must check Known
// before trusting Value: a missing queue position is unknown, not zero.
type IntField struct {
	Value int
	Known bool
}

func Int(value int) IntField {
	return IntField{Value: value, Known: true}
}

func (f IntField) IsZero() bool {
	return !f.Known
}

func (f *IntField) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		f.Known = false
		f.Value = 0
		return nil
	}
	if err := json.Unmarshal(data, &f.Value); err != nil {
		return err
	}
	f.Known = true
	return nil
}

func (f IntField) MarshalJSON() ([]byte, error) {
	if !f.Known {
		return jsonNull, nil
	}
	return json.Marshal(f.Value)
}
