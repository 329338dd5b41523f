package codec

import "encoding/json"

// JSON writes indented JSON so snapshots can be read with a text editor or
// jq. Float32 vectors round-trip exactly.
type JSON struct{}

// Marshal encodes v as indented JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

// Unmarshal decodes JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns "json".
func (JSON) Name() string { return "json" }
