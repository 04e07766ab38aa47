// Package codec serializes cached values. The cache wraps the encoded bytes
// in its own envelope, so codecs never see envelope framing.
package codec

// Codec encodes/decodes values V to []byte for storage.
// Name identifies the format in logs when a cached entry fails to decode.
type Codec[V any] interface {
	Name() string
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
