package guardcache

import (
	"fmt"
	"strings"

	"github.com/unkn0wn-root/guardcache/internal/util"
)

// Key joins a logical domain and normalized lookup parameters:
//
//	Key("vat", "DE", "123456789") // "vat:DE:123456789"
func Key(domain string, parts ...string) string {
	if len(parts) == 0 {
		return domain
	}
	return domain + ":" + strings.Join(parts, ":")
}

// HashKey builds "<domain>:<sha256 of query>" for structured queries.
// query must be JSON-encodable; map keys are sorted so field order does not matter.
func HashKey(domain string, query any) (string, error) {
	sum, err := util.Digest(query)
	if err != nil {
		return "", fmt.Errorf("guardcache: hash key for %q: %w", domain, err)
	}
	return domain + ":" + sum, nil
}

func (cc *cache[V]) valueKey(userKey string) string {
	// isolate by namespace
	return "v:" + cc.ns + ":" + userKey
}

func (cc *cache[V]) lockKey(userLockKey string) string {
	return "l:" + cc.ns + ":" + userLockKey
}
