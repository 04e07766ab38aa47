// Package mongo stores cache entries in a MongoDB collection.
//
// Documents look like {_id: key, v: BinData, exp: Date}. A TTL index on exp
// lets the server reap expired entries; Get also checks exp itself because
// the reaper only runs about once a minute.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	pr "github.com/unkn0wn-root/guardcache/provider"
)

var ErrNilCollection = errors.New("mongo provider: nil collection")

type document struct {
	Key     string     `bson:"_id"`
	Value   []byte     `bson:"v"`
	Expires *time.Time `bson:"exp,omitempty"`
}

type Provider struct {
	coll        *mongo.Collection
	now         func() time.Time
	closeClient bool
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Collection *mongo.Collection
	// EnsureIndex creates the TTL index on exp when missing.
	EnsureIndex bool
	CloseClient bool
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Collection == nil {
		return nil, ErrNilCollection
	}
	if cfg.EnsureIndex {
		_, err := cfg.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "exp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("guardcache_exp_ttl"),
		})
		if err != nil {
			return nil, err
		}
	}
	return &Provider{coll: cfg.Collection, now: time.Now, closeClient: cfg.CloseClient}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc document
	err := p.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expired(doc.Expires, p.now()) {
		return nil, false, nil
	}
	return doc.Value, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	doc := document{Key: key, Value: value, Expires: expiry(p.now(), ttl)}
	_, err := p.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	_, err := p.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (p *Provider) Close(ctx context.Context) error {
	if p.closeClient {
		return p.coll.Database().Client().Disconnect(ctx)
	}
	return nil
}

func expiry(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	exp := now.Add(ttl).UTC()
	return &exp
}

func expired(exp *time.Time, now time.Time) bool {
	return exp != nil && !now.Before(*exp)
}
