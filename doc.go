// Package guardcache is a cache-aside client that shields slow or flaky
// upstream registries behind a shared byte cache.
//
// Components:
//   - Provider: byte store with TTL (Redis, Ristretto, BigCache, sturdyc, MongoDB).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - lock.Locker: mutual exclusion per lock key (in-process or Redis).
//   - tagstore.TagStore: tag -> keys index for group invalidation.
//
// Keys:
//
//	v:<ns>:<key>      - entries, wrapped in a small binary envelope
//	l:<ns>:<lockKey>  - locks
//	t:<ns>:<tag>      - tag sets (Redis tag store)
//
// GetOrSet runs check -> lock -> recheck -> fetch -> store:
//
//	v, err := vat.GetOrSet(ctx, guardcache.Key("vat", country, number),
//		func(ctx context.Context) (*VATInfo, error) { return registry.Lookup(ctx, country, number) },
//		guardcache.GetOrSetOptions[VATInfo]{
//			LockKey:   "vat:" + country + number,
//			CacheNull: true,
//			TTL: func(v *VATInfo) time.Duration {
//				if v == nil {
//					return 5 * time.Minute
//				}
//				return 24 * time.Hour
//			},
//		})
//
// Entries written by other programs (no envelope) are decoded with the codec
// as-is, so a shared cache can be migrated without a flush.
package guardcache
