package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/embeddb/codec"
	"github.com/hupe1980/embeddb/internal/hash"
)

// Frame layout (little endian):
//
//	magic        [4]byte  "EDBS"
//	version      uint16
//	compression  uint8
//	codecLen     uint8
//	codec        [codecLen]byte
//	rawSize      uint64   payload size before compression
//	payloadSize  uint64
//	checksum     uint32   CRC32C of the header fields above and the payload
//	payload      [payloadSize]byte
const (
	magic         = "EDBS"
	formatVersion = uint16(1)
	fixedHeader   = 4 + 2 + 1 + 1
	sizesTrailer  = 8 + 8 + 4
)

var (
	// ErrBadMagic is returned when a blob is not a snapshot frame.
	ErrBadMagic = errors.New("snapshot: bad magic")
	// ErrUnsupportedVersion is returned for frames written by a newer format.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported format version")
	// ErrTruncated is returned when a frame is shorter than its header claims.
	ErrTruncated = errors.New("snapshot: truncated frame")
	// ErrCorrupt is returned when the frame checksum does not match or a
	// header field is out of range.
	ErrCorrupt = errors.New("snapshot: corrupt frame")
)

// CorruptError wraps a checksum mismatch. It matches ErrCorrupt.
type CorruptError struct {
	Err *hash.ChecksumMismatchError
}

func (e *CorruptError) Error() string {
	return "snapshot: corrupt frame: " + e.Err.Error()
}

func (e *CorruptError) Unwrap() error { return e.Err }

func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

// Header describes a decoded frame.
type Header struct {
	Version     uint16
	Compression Compression
	Codec       string
	RawSize     uint64
	PayloadSize uint64
	Checksum    uint32
}

// Encode marshals v with c, compresses it and wraps it in a frame.
func Encode(v any, c codec.Codec, compression Compression) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}

	raw, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal with %s: %w", c.Name(), err)
	}

	payload, used, err := compress(raw, compression)
	if err != nil {
		return nil, fmt.Errorf("snapshot: compress with %s: %w", compression, err)
	}

	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("snapshot: codec name too long: %q", name)
	}

	buf := make([]byte, 0, fixedHeader+len(name)+sizesTrailer+len(payload))
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint16(buf, formatVersion)
	buf = append(buf, byte(used), byte(len(name)))
	buf = append(buf, name...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(raw)))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(payload)))
	buf = binary.LittleEndian.AppendUint32(buf, hash.CRC32C(buf, payload))
	buf = append(buf, payload...)

	return buf, nil
}

// ReadHeader parses the frame header and returns it with the payload slice.
func ReadHeader(data []byte) (Header, []byte, error) {
	var h Header

	if len(data) < fixedHeader {
		return h, nil, ErrTruncated
	}
	if string(data[:4]) != magic {
		return h, nil, ErrBadMagic
	}

	h.Version = binary.LittleEndian.Uint16(data[4:])
	if h.Version == 0 || h.Version > formatVersion {
		return h, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	h.Compression = Compression(data[6])

	codecLen := int(data[7])
	off := fixedHeader
	if len(data) < off+codecLen+sizesTrailer {
		return h, nil, ErrTruncated
	}
	h.Codec = string(data[off : off+codecLen])
	off += codecLen

	h.RawSize = binary.LittleEndian.Uint64(data[off:])
	h.PayloadSize = binary.LittleEndian.Uint64(data[off+8:])
	h.Checksum = binary.LittleEndian.Uint32(data[off+16:])
	off += sizesTrailer

	if uint64(len(data)-off) != h.PayloadSize {
		return h, nil, ErrTruncated
	}

	return h, data[off:], nil
}

// Decode verifies the frame and unmarshals its payload into v with the
// codec named in the header.
func Decode(data []byte, v any) (Header, error) {
	h, payload, err := ReadHeader(data)
	if err != nil {
		return h, err
	}

	// The checksum covers every header byte before the checksum field.
	header := data[:len(data)-len(payload)-4]
	if err := hash.Verify(h.Checksum, header, payload); err != nil {
		var mismatch *hash.ChecksumMismatchError
		if errors.As(err, &mismatch) {
			return h, &CorruptError{Err: mismatch}
		}
		return h, err
	}

	c, ok := codec.ByName(h.Codec)
	if !ok {
		return h, fmt.Errorf("snapshot: unknown codec %q", h.Codec)
	}

	raw, err := decompress(payload, h.Compression, h.RawSize)
	if err != nil {
		return h, fmt.Errorf("snapshot: decompress: %w", err)
	}

	if err := c.Unmarshal(raw, v); err != nil {
		return h, fmt.Errorf("snapshot: unmarshal with %s: %w", c.Name(), err)
	}

	return h, nil
}
