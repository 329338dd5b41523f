// Package codec centralizes snapshot payload encoding.
//
// Snapshot frames record the codec name in their header, so a snapshot
// written with one codec is always decoded with the same one.
package codec

import "sort"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for newly written snapshots.
var Default Codec = Msgpack{}

var builtin = map[string]Codec{
	JSON{}.Name():    JSON{},
	Msgpack{}.Name(): Msgpack{},
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	c, ok := builtin[name]
	return c, ok
}

// Names returns the names of the built-in codecs, sorted.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
