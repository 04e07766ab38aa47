// Package cli implements the guardctl command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/guardcache"
	"github.com/unkn0wn-root/guardcache/config"
	"github.com/unkn0wn-root/guardcache/fault"
	asynchook "github.com/unkn0wn-root/guardcache/hooks/async"
	promhook "github.com/unkn0wn-root/guardcache/hooks/prom"
	sloghook "github.com/unkn0wn-root/guardcache/hooks/slog"
	charmlog "github.com/unkn0wn-root/guardcache/log/charm"
	"github.com/unkn0wn-root/guardcache/retry"
)

// Exit codes returned by ExitCode.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitBadInput    = 2
	ExitTimeout     = 3
	ExitUpstream    = 4
	ExitInterrupted = 130
)

// CLI holds shared state for all commands.
type CLI struct {
	Out    io.Writer
	Logger *log.Logger
	// Doer replaces the HTTP transport used by rest and soap, mainly for tests.
	Doer retry.Doer

	cfgPath string
	verbose bool
	metrics bool

	cfg      config.Config
	registry *prometheus.Registry
	hooks    *asynchook.Hooks
}

func New(out, errOut io.Writer) *CLI {
	return &CLI{
		Out: out,
		Logger: log.NewWithOptions(errOut, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           log.InfoLevel,
		}),
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "guardctl",
		Short:         "guardctl reads slow registries through a shared cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	root.PersistentFlags().StringVarP(&c.cfgPath, "config", "c", "", "config file (.toml, .yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&c.metrics, "metrics", false, "print cache counters on exit")

	root.AddCommand(c.restCommand())
	root.AddCommand(c.soapCommand())
	root.AddCommand(c.cacheCommand())
	return root
}

func (c *CLI) setup() error {
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return fault.Validation("%v", err)
	}
	c.cfg = cfg

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fault.Validation("log.level: %v", err)
	}
	if c.verbose {
		level = log.DebugLevel
	}
	c.Logger.SetLevel(level)
	switch cfg.Log.Formatter {
	case "json":
		c.Logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		c.Logger.SetFormatter(log.LogfmtFormatter)
	default:
		c.Logger.SetFormatter(log.TextFormatter)
	}

	c.registry = prometheus.NewRegistry()
	prom, err := promhook.New(c.registry, "guardctl")
	if err != nil {
		return err
	}
	events := sloghook.New(slog.New(c.Logger), sloghook.Options{HitMissEvery: 1})
	c.hooks = asynchook.New(fanout{prom, events}, 1, 256)
	return nil
}

// teardown flushes hook events; it runs whether or not the command failed.
func (c *CLI) teardown() {
	if c.hooks == nil {
		return
	}
	c.hooks.Close()
	if d := c.hooks.Dropped(); d > 0 {
		c.Logger.Warn("hook events dropped", "count", d)
	}
	if c.metrics {
		c.printMetrics()
	}
}

func (c *CLI) logger() guardcache.Logger { return charmlog.New(c.Logger) }

// printMetrics writes every non-zero counter as "name{labels} value".
func (c *CLI) printMetrics() {
	families, err := c.registry.Gather()
	if err != nil {
		c.Logger.Warn("gather metrics", "err", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			sort.Strings(labels)
			fmt.Fprintf(c.Out, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
}

// ExitCode maps an error returned by a command to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case !fault.Classified(err):
		return ExitFailure
	}
	switch fault.HTTPStatus(err) {
	case 400:
		return ExitBadInput
	case 504:
		return ExitTimeout
	default:
		return ExitUpstream
	}
}

// Execute runs the CLI with args and reports failures on the logger.
func Execute(ctx context.Context, c *CLI, args []string) int {
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(c.Out)
	err := root.ExecuteContext(ctx)
	c.teardown()
	if err == nil {
		return ExitOK
	}
	if se := fault.ToServiceError(err); se != nil && fault.Classified(err) {
		c.Logger.Error(err.Error(), "code", se.TextCode, "status", se.Code, "category", se.Category)
	} else {
		c.Logger.Error(err.Error())
	}
	return ExitCode(err)
}

// fanout sends every event to each of its hooks.
type fanout []guardcache.Hooks

func (f fanout) Hit(ns string) {
	for _, h := range f {
		h.Hit(ns)
	}
}

func (f fanout) Miss(ns string) {
	for _, h := range f {
		h.Miss(ns)
	}
}

func (f fanout) Corrupt(k, reason string) {
	for _, h := range f {
		h.Corrupt(k, reason)
	}
}

func (f fanout) BackendError(op string, err error) {
	for _, h := range f {
		h.BackendError(op, err)
	}
}

func (f fanout) LockFallback(k string, err error) {
	for _, h := range f {
		h.LockFallback(k, err)
	}
}

func (f fanout) Degraded(backend string) {
	for _, h := range f {
		h.Degraded(backend)
	}
}

func (f fanout) Stored(k string, null bool, ttl time.Duration) {
	for _, h := range f {
		h.Stored(k, null, ttl)
	}
}
