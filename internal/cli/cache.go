package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/guardcache"
	"github.com/unkn0wn-root/guardcache/codec"
	"github.com/unkn0wn-root/guardcache/fault"
)

// cacheCommand creates the "cache" command and its subcommands.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate cached entries",
	}
	cmd.AddCommand(c.cacheGetCommand())
	cmd.AddCommand(c.cacheSetCommand())
	cmd.AddCommand(c.cacheClearCommand())
	return cmd
}

func (c *CLI) cacheGetCommand() *cobra.Command {
	var soapNS bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a cached entry; exits with an error on miss",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if soapNS {
				return withCache[string](cmd.Context(), c, c.soapNamespace(), codec.String{}, func(cache guardcache.Cache[string]) error {
					v, ok := cache.Get(cmd.Context(), key)
					if !ok {
						return fault.ClientRejection(0, "cache: no entry for %q", key)
					}
					if v == nil {
						_, err := fmt.Fprintln(c.Out, "null")
						return err
					}
					_, err := fmt.Fprintln(c.Out, *v)
					return err
				})
			}
			return withCache(cmd.Context(), c, c.cfg.Cache.Namespace, c.jsonCodec(), func(cache guardcache.Cache[json.RawMessage]) error {
				v, ok := cache.Get(cmd.Context(), key)
				if !ok {
					return fault.ClientRejection(0, "cache: no entry for %q", key)
				}
				return c.printJSON(v)
			})
		},
	}
	cmd.Flags().BoolVar(&soapNS, "soap", false, "read from the SOAP reply namespace")
	return cmd
}

func (c *CLI) cacheSetCommand() *cobra.Command {
	var (
		ttl  time.Duration
		tags []string
	)
	cmd := &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON document; the literal null stores a negative result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, body := args[0], args[1]
			var v *json.RawMessage
			if body != "null" {
				if !json.Valid([]byte(body)) {
					return fault.Validation("cache set: value is not valid JSON")
				}
				doc := json.RawMessage(body)
				v = &doc
			}
			return withCache(cmd.Context(), c, c.cfg.Cache.Namespace, c.jsonCodec(), func(cache guardcache.Cache[json.RawMessage]) error {
				cache.Set(cmd.Context(), key, v, ttl, tags...)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "entry lifetime (default: cache.default_ttl or cache.null_ttl)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag the entry (repeatable)")
	return cmd
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	var (
		keys   []string
		tags   []string
		soapNS bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove entries by key or by tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(keys) == 0 && len(tags) == 0 {
				return fault.Validation("cache clear: pass --key or --tag")
			}
			ns := c.cfg.Cache.Namespace
			if soapNS {
				ns = c.soapNamespace()
			}
			return withCache[[]byte](cmd.Context(), c, ns, codec.Bytes{}, func(cache guardcache.Cache[[]byte]) error {
				for _, k := range keys {
					cache.ClearByKey(cmd.Context(), k)
				}
				if len(tags) > 0 {
					cache.ClearByTags(cmd.Context(), tags...)
				}
				c.Logger.Info("cache cleared", "namespace", ns, "keys", len(keys), "tags", len(tags))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&keys, "key", nil, "key to remove (repeatable)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "remove every entry carrying this tag (repeatable)")
	cmd.Flags().BoolVar(&soapNS, "soap", false, "clear the SOAP reply namespace")
	return cmd
}
