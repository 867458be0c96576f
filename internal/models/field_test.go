package models

import (
	"encoding/json"
	"testing"
)

func TestTextFieldUnmarshal(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		known   bool
		value   string
	}{
		{"missing", `{}`, false, ""},
		{"null", `{"department":null}`, true, ""},
		{"empty", `{"department":""}`, true, ""},
		{"value", `{"department":"X-ray"}`, true, "X-ray"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var doc struct {
				Department TextField `json:"department"`
			}
			if err := json.Unmarshal([]byte(tc.payload), &doc); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if doc.Department.Known != tc.known || doc.Department.Value != tc.value {
				t.Fatalf("got known=%v value=%q, want known=%v value=%q", doc.Department.Known, doc.Department.Value, tc.known, tc.value)
			}
		})
	}
}

func TestTextFieldPresent(t *testing.T) {
	if (TextField{}).Present() {
		t.Fatal("unknown field must not be present")
	}
	if (TextField{Known: true}).Present() {
		t.Fatal("known-empty field must not be present")
	}
	if !Text("ER").Present() {
		t.Fatal("valued field must be present")
	}
}

func TestTextFieldMarshalRoundTrip(t *testing.T) {
	type doc struct {
		Department TextField `json:"department,omitzero"`
	}

	data, err := json.Marshal(doc{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{}` {
		t.Fatalf("unknown field must be omitted, got %s", data)
	}
	var back doc
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Department.Known {
		t.Fatal("unknown field became known after a round trip")
	}

	data, err = json.Marshal(doc{Department: TextField{Known: true}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"department":null}` {
		t.Fatalf("known-empty field must serialize as null, got %s", data)
	}

	data, err = json.Marshal(doc{Department: Text("ER")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"department":"ER"}` {
		t.Fatalf("unexpected payload %s", data)
	}
}

func TestIntFieldMarshalOmitsUnknown(t *testing.T) {
	type doc struct {
		Position IntField `json:"position,omitzero"`
	}
	data, err := json.Marshal(doc{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{}` {
		t.Fatalf("unknown position must be omitted, got %s", data)
	}
	data, err = json.Marshal(doc{Position: Int(0)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"position":0}` {
		t.Fatalf("explicit zero must survive, got %s", data)
	}
}

func TestIntFieldUnmarshal(t *testing.T) {
	var doc struct {
		Position IntField `json:"position"`
	}
	if err := json.Unmarshal([]byte(`{}`), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Position.Known {
		t.Fatal("missing position must stay unknown, not zero")
	}

	if err := json.Unmarshal([]byte(`{"position":0}`), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !doc.Position.Known || doc.Position.Value != 0 {
		t.Fatalf("explicit zero must be known: %+v", doc.Position)
	}
}

func TestSnapshotClamp(t *testing.T) {
	snap := QueueStatusSnapshot{Position: Int(-3)}
	snap.Clamp()
	if snap.Position.Value != 0 {
		t.Fatalf("expected clamped position 0, got %d", snap.Position.Value)
	}

	unknown := QueueStatusSnapshot{}
	unknown.Clamp()
	if unknown.Position.Known {
		t.Fatal("clamp must not invent a position")
	}
}

func TestStatusClassification(t *testing.T) {
	for _, status := range []string{StatusWaiting, StatusProcessing, StatusTransferred} {
		if !IsActiveStatus(status) {
			t.Fatalf("%s should be active", status)
		}
		if IsTerminalStatus(status) {
			t.Fatalf("%s should not be terminal", status)
		}
	}
	for _, status := range []string{StatusCompleted, StatusCancelled} {
		if IsActiveStatus(status) {
			t.Fatalf("%s should not be active", status)
		}
		if !IsTerminalStatus(status) {
			t.Fatalf("%s should be terminal", status)
		}
	}
	if IsValidStatus("held") {
		t.Fatal("unexpected status accepted")
	}
}
