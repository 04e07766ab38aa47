package codec

import "google.golang.org/protobuf/proto"

var (
	protoMarshal   = proto.MarshalOptions{Deterministic: true}
	protoUnmarshal = proto.UnmarshalOptions{DiscardUnknown: true}
)

// Protobuf serializes generated messages. T is the pointer type of the message.
// Encoding is deterministic; fields unknown to T are dropped on decode so a
// newer writer does not break an older reader.
type Protobuf[T proto.Message] struct {
	new func() T // e.g. func() *pb.Company { return &pb.Company{} }
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (Protobuf[T]) Name() string { return "protobuf" }

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return protoMarshal.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := protoUnmarshal.Unmarshal(b, m)
	return m, err
}
