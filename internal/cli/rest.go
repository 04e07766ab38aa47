package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/guardcache"
	"github.com/unkn0wn-root/guardcache/fault"
	"github.com/unkn0wn-root/guardcache/retry"
)

type lookupFlags struct {
	key       string
	ttl       time.Duration
	tags      []string
	lockKey   string
	cacheNull bool
}

func (f *lookupFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.key, "key", "", "cache key (default: derived from the request)")
	cmd.Flags().DurationVar(&f.ttl, "ttl", 0, "entry lifetime (default: cache.default_ttl; negative skips storing)")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tag the entry for cache clear --tag (repeatable)")
	cmd.Flags().StringVar(&f.lockKey, "lock-key", "", "serialize fetches of this resource across processes")
	cmd.Flags().BoolVar(&f.cacheNull, "cache-null", false, "cache not-found answers for cache.null_ttl")
}

func lookupOptions[V any](f lookupFlags, validate func(*V) error) guardcache.GetOrSetOptions[V] {
	o := guardcache.GetOrSetOptions[V]{
		Validate:  validate,
		Tags:      f.tags,
		LockKey:   f.lockKey,
		CacheNull: f.cacheNull,
	}
	if f.ttl != 0 {
		o.TTL = guardcache.FixedTTL[V](f.ttl)
	}
	return o
}

func validJSON(v *json.RawMessage) error {
	if v == nil || !json.Valid(*v) {
		return errors.New("not a JSON document")
	}
	return nil
}

// restCommand creates the "rest" command.
func (c *CLI) restCommand() *cobra.Command {
	var flags lookupFlags
	cmd := &cobra.Command{
		Use:   "rest <url>",
		Short: "GET a JSON document through the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			key := flags.key
			if key == "" {
				k, err := guardcache.HashKey("rest", url)
				if err != nil {
					return fault.Validation("%v", err)
				}
				key = k
			}
			c.Logger.Debug("cache key", "key", key)
			policy := c.cfg.Retry.Policy()
			client := &retry.Client{
				Doer:    c.Doer,
				Timeout: c.cfg.Retry.Timeout.Duration,
				Policy:  &policy,
				Logger:  c.logger(),
			}
			fetch := func(ctx context.Context) (*json.RawMessage, error) {
				doc, err := retry.GetJSON[json.RawMessage](ctx, client, url)
				if flags.cacheNull && fault.StatusOf(err) == http.StatusNotFound {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				return &doc, nil
			}

			return withCache(cmd.Context(), c, c.cfg.Cache.Namespace, c.jsonCodec(), func(cache guardcache.Cache[json.RawMessage]) error {
				v, err := cache.GetOrSet(cmd.Context(), key, fetch, lookupOptions(flags, validJSON))
				if err != nil {
					return err
				}
				return c.printJSON(v)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// printJSON writes v indented, or null for a negative result.
func (c *CLI) printJSON(v *json.RawMessage) error {
	if v == nil {
		_, err := c.Out.Write([]byte("null\n"))
		return err
	}
	var doc any
	if err := json.Unmarshal(*v, &doc); err != nil {
		return err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	_, err = c.Out.Write(append(out, '\n'))
	return err
}
