package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sandwichfarm/syncstr/internal/backup"
	"github.com/sandwichfarm/syncstr/internal/config"
	"github.com/sandwichfarm/syncstr/internal/identity"
	"github.com/sandwichfarm/syncstr/internal/kinds"
	internalnostr "github.com/sandwichfarm/syncstr/internal/nostr"
	"github.com/sandwichfarm/syncstr/internal/ops"
	"github.com/sandwichfarm/syncstr/internal/profile"
	"github.com/sandwichfarm/syncstr/internal/session"
	"github.com/sandwichfarm/syncstr/internal/sync"
)

// commonFlags are accepted by every command that talks to relays
type commonFlags struct {
	configPath string
	pubkey     string
	logLevel   string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&cf.pubkey, "pubkey", "", "Profile owner (npub, nprofile or hex); overrides identity.pubkey")
	fs.StringVar(&cf.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	return cf
}

// app holds the components built from configuration for one command run
type app struct {
	cfg     *config.Config
	logger  *ops.Logger
	metrics ops.Metrics
	table   kinds.Table
	client  *internalnostr.Client
	codec   *backup.Codec
	session *session.Session
	store   *ops.SnapshotStore
}

func newApp(ctx context.Context, cf *commonFlags, command string) (*app, error) {
	cfg, err := config.LoadOrDefault(cf.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cf.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(cf.logLevel)
	}

	logger := ops.NewLogger(&cfg.Logging)
	ops.SetDefault(logger)
	logger.LogStartup(version, command)

	table, err := kinds.Default.WithSlots(cfg.Fetch.ExtraKinds)
	if err != nil {
		return nil, fmt.Errorf("invalid fetch.extra_kinds: %w", err)
	}

	metrics := ops.NewMetrics(&cfg.Metrics)
	client := internalnostr.New(ctx, &cfg.Relays)
	codec := backup.NewCodec(table, cfg.Backup.Product)

	aggregator := profile.NewAggregator(client, cfg, table, logger, metrics)
	executor := sync.NewExecutor(client, cfg, logger, metrics)

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		table:   table,
		client:  client,
		codec:   codec,
		session: session.New(aggregator, executor, codec, logger),
		store:   ops.NewSnapshotStore(cfg.Backup.Dir, cfg.Backup.Product, logger),
	}, nil
}

func (a *app) Close() {
	a.client.Close()
	if err := a.metrics.Flush(); err != nil {
		a.logger.Warn("failed to write metrics", "error", err)
	}
}

// identity resolves the profile owner from the flag or the config
func (a *app) identity(flagValue string) (*identity.Identity, error) {
	input := flagValue
	if input == "" {
		input = a.cfg.Identity.Pubkey
	}
	id, err := identity.Parse(input)
	if err != nil {
		if errors.Is(err, identity.ErrEmpty) {
			return nil, fmt.Errorf("no identity given (use --pubkey or identity.pubkey)")
		}
		return nil, err
	}
	return id, nil
}

// source picks the relay to fetch from: the flag, then a relay hint carried
// by an nprofile, then the first shared relay.
func (a *app) source(flagValue string, id *identity.Identity) (string, error) {
	candidates := []string{flagValue}
	if id != nil {
		candidates = append(candidates, id.Relays...)
	}
	candidates = append(candidates, a.cfg.Relays.Shared...)

	for _, c := range candidates {
		url := internalnostr.NormalizeRelayURL(c)
		if url == "" {
			continue
		}
		if err := internalnostr.CheckRelayURL(url, a.cfg.Relays.Policy.AllowInsecure); err != nil {
			return "", err
		}
		return url, nil
	}
	return "", fmt.Errorf("no source relay given (use --source)")
}

// targets resolves sync targets from a comma separated list and, with
// outbox, from the write relays of the viewed relay list.
func (a *app) targets(list string, outbox bool) ([]string, error) {
	allowInsecure := a.cfg.Relays.Policy.AllowInsecure
	seen := make(map[string]bool)
	var out []string

	for _, t := range splitList(list) {
		url := internalnostr.NormalizeRelayURL(t)
		if url == "" || seen[url] {
			continue
		}
		if err := internalnostr.CheckRelayURL(url, allowInsecure); err != nil {
			return nil, err
		}
		seen[url] = true
		out = append(out, url)
	}

	if outbox {
		data, _ := a.session.State().View()
		hints, err := internalnostr.ParseRelayHints(data.Get(kinds.RelayList))
		if err != nil {
			return nil, fmt.Errorf("cannot derive outbox relays: %w", err)
		}
		for _, url := range internalnostr.OutboxRelays(hints, allowInsecure) {
			if !seen[url] {
				seen[url] = true
				out = append(out, url)
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no target relay given (use --target or --outbox)")
	}
	return out, nil
}

// selectEvents selects the listed event ids, the listed kinds, or every
// viewed event when both lists are empty.
func (a *app) selectEvents(kindList, idList string) error {
	ks, err := kinds.ParseKinds(kindList)
	if err != nil {
		return err
	}
	ids := splitList(idList)
	if len(ks) > 0 && len(ids) > 0 {
		return fmt.Errorf("use either --kinds or --ids, not both")
	}

	var st session.State
	switch {
	case len(ids) > 0:
		data, _ := a.session.State().View()
		for _, id := range ids {
			if _, ok := data.ByID(id); !ok {
				return fmt.Errorf("event %s is not in the profile data", identity.Short(id))
			}
		}
		st = a.session.Select(ids...)
	case len(ks) > 0:
		st = a.session.SelectKinds(ks...)
	default:
		st = a.session.SelectAll()
	}

	if len(st.Selected()) == 0 {
		return session.ErrNothingSelected
	}
	return nil
}

// syncTargets syncs the selection to each target in turn
func (a *app) syncTargets(ctx context.Context, targets []string) error {
	var failed, partial int
	for _, target := range targets {
		outcome, err := a.session.Sync(ctx, target)
		if err != nil {
			return err
		}
		printOutcome(a.table, outcome)

		switch outcome.Status() {
		case sync.StatusFailed:
			failed++
		case sync.StatusPartial:
			partial++
		}
	}

	if failed == len(targets) {
		return fmt.Errorf("sync failed on every target")
	}
	if failed+partial > 0 {
		return fmt.Errorf("%w: %d of %d target(s) incomplete", errPartial, failed+partial, len(targets))
	}
	return nil
}

// splitList splits a comma separated flag value, dropping empty items
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// fileArg returns the --file flag or the first positional argument
func fileArg(fs *flag.FlagSet, file string) (string, error) {
	if file == "" && fs.NArg() > 0 {
		file = fs.Arg(0)
	}
	if file == "" {
		return "", fmt.Errorf("no snapshot file given (use --file)")
	}
	return file, nil
}
