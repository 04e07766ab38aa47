package codec

// Bytes is an identity codec for []byte values, e.g. raw registry
// payloads (XML from the tax service) cached as received.
type Bytes struct{}

func (Bytes) Name() string                    { return "bytes" }
func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String is a trivial codec for Go string values. By convention this
// assumes UTF-8 and performs no validation.
type String struct{}

func (String) Name() string                    { return "string" }
func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
