package codec

import (
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type company struct {
	ID      string   `json:"id" cbor:"id" msgpack:"id"`
	Name    string   `json:"name" cbor:"name" msgpack:"name"`
	Active  bool     `json:"active" cbor:"active" msgpack:"active"`
	Aliases []string `json:"aliases" cbor:"aliases" msgpack:"aliases"`
}

func TestStructCodecs(t *testing.T) {
	in := company{ID: "HRB-1", Name: "Acme GmbH", Active: true, Aliases: []string{"Acme"}}
	codecs := []Codec[company]{
		JSON[company]{},
		Msgpack[company]{},
		MustCBOR[company](true),
		MustCBOR[company](false),
	}
	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Encode(in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			out, err := c.Decode(b)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if out.ID != in.ID || out.Name != in.Name || !out.Active || len(out.Aliases) != 1 {
				t.Fatalf("got %+v", out)
			}
		})
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("DE123456789"))
	if err != nil {
		t.Fatal(err)
	}
	v, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if v.GetValue() != "DE123456789" {
		t.Fatalf("got %q", v.GetValue())
	}
}

func TestLimitRejectsOversized(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 4}
	if _, err := c.Decode([]byte("12345")); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
	if v, err := c.Decode([]byte("1234")); err != nil || v != "1234" {
		t.Fatalf("Decode = %q, %v", v, err)
	}
	if c.Name() != "string" {
		t.Fatalf("Name = %q", c.Name())
	}
}

type jsonOnly struct {
	TaxID string `json:"tax_id"`
	Count int    `json:"count"`
}

func TestMsgpackFallsBackToJSONTags(t *testing.T) {
	b, err := Msgpack[jsonOnly]{}.Encode(jsonOnly{TaxID: "DE1", Count: 3})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var raw map[string]any
	if err := msgpack.Unmarshal(b, &raw); err != nil {
		t.Fatalf("raw decode: %v", err)
	}
	if raw["tax_id"] != "DE1" {
		t.Fatalf("field not keyed by json tag: %v", raw)
	}
	out, err := Msgpack[jsonOnly]{}.Decode(b)
	if err != nil || out.TaxID != "DE1" || out.Count != 3 {
		t.Fatalf("Decode = %+v, %v", out, err)
	}
}

func TestCBORRejectsDuplicateKeys(t *testing.T) {
	// {"a": 1, "a": 2}
	dup := []byte{0xa2, 0x61, 'a', 0x01, 0x61, 'a', 0x02}
	if _, err := MustCBOR[map[string]int](false).Decode(dup); err == nil {
		t.Fatal("expected duplicate key error")
	}
}
