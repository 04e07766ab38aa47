package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/guardcache"
	"github.com/unkn0wn-root/guardcache/codec"
	"github.com/unkn0wn-root/guardcache/fault"
	"github.com/unkn0wn-root/guardcache/soap"
)

// soapNamespace keeps XML replies apart from the JSON entries of rest.
func (c *CLI) soapNamespace() string { return c.cfg.Cache.Namespace + ".soap" }

func parseArgs(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, a := range raw {
		name, value, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("argument %q is not name=value", a)
		}
		out[name] = value
	}
	return out, nil
}

func nonEmptyXML(v *string) error {
	if v == nil || strings.TrimSpace(*v) == "" {
		return errors.New("empty reply element")
	}
	return nil
}

// soapCommand creates the "soap" command.
func (c *CLI) soapCommand() *cobra.Command {
	var (
		flags lookupFlags
		raw   []string
	)
	cmd := &cobra.Command{
		Use:   "soap <operation>",
		Short: "Call a SOAP operation through the cache and print the reply element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := args[0]
			params, err := parseArgs(raw)
			if err != nil {
				return fault.Validation("%v", err)
			}
			key := flags.key
			if key == "" {
				k, err := guardcache.HashKey("soap:"+op, params)
				if err != nil {
					return fault.Validation("%v", err)
				}
				key = k
			}

			c.Logger.Debug("cache key", "key", key)
			opts := c.cfg.SOAP.Options(c.logger())
			if c.Doer != nil {
				opts.Driver = &soap.HTTPDriver{Client: c.Doer}
			}
			client := soap.NewClient(opts)
			fetch := func(ctx context.Context) (*string, error) {
				reply, err := soap.Invoke[soap.RawXML](ctx, client, op, params, c.cfg.SOAP.CallTimeout.Duration, nil)
				if err != nil {
					return nil, err
				}
				s := string(reply)
				return &s, nil
			}

			return withCache[string](cmd.Context(), c, c.soapNamespace(), codec.String{}, func(cache guardcache.Cache[string]) error {
				v, err := cache.GetOrSet(cmd.Context(), key, fetch, lookupOptions(flags, nonEmptyXML))
				if err != nil {
					return err
				}
				if v == nil {
					_, err = fmt.Fprintln(c.Out, "null")
					return err
				}
				_, err = fmt.Fprintln(c.Out, *v)
				return err
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVarP(&raw, "arg", "a", nil, "operation argument as name=value (repeatable)")
	return cmd
}
