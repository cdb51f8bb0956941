package codec

import (
	"bytes"
	"testing"

	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

type request struct {
	Action string        `cbor:"action"`
	Size   *value.Coords `cbor:"size,omitempty"`
	Names  []string      `cbor:"names,omitempty"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	a, err := Marshal(map[string]any{"b": 1, "a": 2, "c": "x"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(map[string]any{"c": "x", "a": 2, "b": 1})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("same map produced different bytes")
	}
}

func TestTextMarshalerTravelsAsString(t *testing.T) {
	size, err := value.ParseCoords("100%x30px")
	if err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(request{Action: "open", Size: &size})
	if err != nil {
		t.Fatal(err)
	}

	diag, err := Diagnose(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains([]byte(diag), []byte(`"100%x30px"`)) {
		t.Errorf("diagnostic %s should carry size as text", diag)
	}

	var got request
	if err := Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Size == nil || *got.Size != size {
		t.Errorf("size = %v, want %v", got.Size, size)
	}
}

func TestDecodeAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"outer": map[string]any{"k": "v"}})
	if err != nil {
		t.Fatal(err)
	}
	var got any
	if err := Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	outer, ok := got.(map[string]any)["outer"].(map[string]any)
	if !ok || outer["k"] != "v" {
		t.Errorf("decoded %#v", got)
	}
}

func TestStream(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(request{Action: "close-all"}); err != nil {
		t.Fatal(err)
	}
	var got request
	if err := NewDecoder(&buf).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Action != "close-all" {
		t.Errorf("Action = %q", got.Action)
	}
}
