package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	// Version is bumped whenever the layout below changes. Entries written
	// with another version are treated as foreign, never unwrapped.
	Version byte = 1

	kindValue byte = 1
	kindNull  byte = 2

	headerLen = 4 + 1 + 1 + 4
)

var (
	// ErrNotEnvelope means b does not carry the current marker and version.
	ErrNotEnvelope = errors.New("guardcache: not an envelope")
	// ErrCorrupt means b carries the marker but its body is malformed.
	ErrCorrupt = errors.New("guardcache: corrupt envelope")

	magic4 = [...]byte{'G', 'R', 'D', 'C'}
)

// Envelope is a decoded cache entry. Null marks a deliberately cached negative result.
type Envelope struct {
	Null    bool
	Payload []byte
}

// IsEnvelope reports whether b carries the current marker and version.
func IsEnvelope(b []byte) bool {
	return len(b) >= 5 && bytes.Equal(b[:4], magic4[:]) && b[4] == Version
}

// Layout: magic(4) | ver(1) | kind(1) | vlen(u32 be) | payload(vlen)
func encode(kind byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(Version)
	buf.WriteByte(kind)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// EncodeValue wraps an encoded value.
func EncodeValue(payload []byte) []byte { return encode(kindValue, payload) }

// EncodeNull returns the envelope of a negative result.
func EncodeNull() []byte { return encode(kindNull, nil) }

// Decode unwraps b. ErrNotEnvelope is returned for anything written by
// someone else (or by another envelope version) and ErrCorrupt for bytes
// that carry the marker but not the exact shape; either way the caller
// decides what to do with the raw bytes.
func Decode(b []byte) (Envelope, error) {
	if !IsEnvelope(b) {
		return Envelope{}, ErrNotEnvelope
	}
	if len(b) < headerLen {
		return Envelope{}, ErrCorrupt
	}

	kind := b[5]
	vlen := int(binary.BigEndian.Uint32(b[6:headerLen]))
	if vlen != len(b)-headerLen { // rejects truncation and trailing junk
		return Envelope{}, ErrCorrupt
	}

	switch kind {
	case kindValue:
		return Envelope{Payload: b[headerLen:]}, nil
	case kindNull:
		if vlen != 0 {
			return Envelope{}, ErrCorrupt
		}
		return Envelope{Null: true}, nil
	default:
		return Envelope{}, ErrCorrupt
	}
}
