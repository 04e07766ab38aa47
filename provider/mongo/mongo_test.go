package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func TestExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if expiry(now, 0) != nil || expiry(now, -time.Second) != nil {
		t.Fatal("non-positive ttl must not set a deadline")
	}
	exp := expiry(now, time.Minute)
	if exp == nil || !exp.Equal(now.Add(time.Minute)) {
		t.Fatalf("expiry = %v", exp)
	}
	if expired(exp, now) {
		t.Fatal("fresh entry reported expired")
	}
	if !expired(exp, now.Add(time.Minute)) {
		t.Fatal("entry at its deadline must be expired")
	}
	if expired(nil, now.Add(100*time.Hour)) {
		t.Fatal("entries without deadline never expire")
	}
}

func TestDocumentOmitsMissingExpiry(t *testing.T) {
	raw, err := bson.Marshal(document{Key: "k", Value: []byte("v")})
	if err != nil {
		t.Fatal(err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["exp"]; ok {
		t.Fatalf("exp must be omitted, got %v", m)
	}
	if m["_id"] != "k" {
		t.Fatalf("_id = %v", m["_id"])
	}
}
