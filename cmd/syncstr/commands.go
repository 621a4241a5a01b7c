package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/nbd-wtf/go-nostr"

	"github.com/sandwichfarm/syncstr/internal/identity"
	"github.com/sandwichfarm/syncstr/internal/kinds"
	internalnostr "github.com/sandwichfarm/syncstr/internal/nostr"
	"github.com/sandwichfarm/syncstr/internal/ops"
	"github.com/sandwichfarm/syncstr/internal/profile"
	"github.com/sandwichfarm/syncstr/internal/storage"
	"github.com/sandwichfarm/syncstr/internal/sync"
)

func runFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	source := fs.String("source", "", "Relay to fetch from (defaults to the first shared relay)")
	asJSON := fs.Bool("json", false, "Print the raw events as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cf, "fetch")
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.identity(cf.pubkey)
	if err != nil {
		return err
	}
	src, err := a.source(*source, id)
	if err != nil {
		return err
	}

	data, err := a.session.Fetch(ctx, id.Pubkey, src)
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(data.Events())
	}

	fmt.Printf("Profile data for %s from %s\n", id.Npub, src)
	printProfile(a.table, data)
	return nil
}

func runSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	source := fs.String("source", "", "Relay to fetch from (defaults to the first shared relay)")
	target := fs.String("target", "", "Comma separated relays to publish to")
	kindList := fs.String("kinds", "", "Comma separated kinds to sync (default: all found)")
	idList := fs.String("ids", "", "Comma separated event ids to sync")
	outbox := fs.Bool("outbox", false, "Also publish to the write relays of the fetched relay list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cf, "sync")
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.identity(cf.pubkey)
	if err != nil {
		return err
	}
	src, err := a.source(*source, id)
	if err != nil {
		return err
	}

	data, err := a.session.Fetch(ctx, id.Pubkey, src)
	if err != nil {
		return err
	}
	if data.Len() == 0 {
		return fmt.Errorf("no profile data found for %s on %s", id.Npub, src)
	}
	fmt.Printf("Fetched %d events for %s from %s\n", data.Len(), id.Npub, src)

	targets, err := a.targets(*target, *outbox)
	if err != nil {
		return err
	}
	if err := a.selectEvents(*kindList, *idList); err != nil {
		return err
	}
	return a.syncTargets(ctx, targets)
}

func runBackup(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	source := fs.String("source", "", "Relay to fetch from (defaults to the first shared relay)")
	compress := fs.Bool("compress", false, "Write a zstd compressed snapshot (default from backup.compress)")
	dir := fs.String("dir", "", "Directory to write to (default from backup.dir)")
	list := fs.Bool("list", false, "List existing snapshots instead of taking one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cf, "backup")
	if err != nil {
		return err
	}
	defer a.Close()

	if *dir != "" {
		a.cfg.Backup.Dir = *dir
		a.store = ops.NewSnapshotStore(*dir, a.cfg.Backup.Product, a.logger)
	}
	if *list {
		return printSnapshots(a.store)
	}
	compressed := *compress || a.cfg.Backup.Compress

	id, err := a.identity(cf.pubkey)
	if err != nil {
		return err
	}
	src, err := a.source(*source, id)
	if err != nil {
		return err
	}

	if _, err := a.session.Fetch(ctx, id.Pubkey, src); err != nil {
		return err
	}

	snap, err := a.session.Export(id.Pubkey)
	if err != nil {
		return err
	}
	raw, err := a.codec.Marshal(snap, compressed)
	if err != nil {
		return err
	}

	name := a.codec.Filename(snap.Npub, time.UnixMilli(snap.Timestamp), compressed)
	path, err := a.store.Save(name, raw)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d events to %s\n", snap.Metadata.TotalEvents, path)

	if days := a.cfg.Backup.KeepDays; days > 0 {
		removed, err := a.store.Clean(time.Duration(days) * 24 * time.Hour)
		if err != nil {
			a.logger.Warn("snapshot cleanup failed", "error", err)
		} else if removed > 0 {
			fmt.Printf("Removed %d snapshots older than %d days\n", removed, days)
		}
	}
	return nil
}

func runRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	file := fs.String("file", "", "Snapshot file to publish")
	target := fs.String("target", "", "Comma separated relays to publish to")
	kindList := fs.String("kinds", "", "Comma separated kinds to publish (default: all in the snapshot)")
	idList := fs.String("ids", "", "Comma separated event ids to publish")
	outbox := fs.Bool("outbox", false, "Also publish to the write relays of the snapshot's relay list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := fileArg(fs, *file)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cf, "restore")
	if err != nil {
		return err
	}
	defer a.Close()

	raw, err := a.store.Load(path)
	if err != nil {
		return err
	}
	snap, err := a.session.Restore(raw)
	if err != nil {
		return fmt.Errorf("invalid snapshot %s: %w", path, err)
	}
	fmt.Printf("Loaded %d events for %s (created %s)\n",
		len(a.session.State().RestoredEvents()), snap.Npub, snap.Metadata.CreatedAt)

	targets, err := a.targets(*target, *outbox)
	if err != nil {
		return err
	}
	if err := a.selectEvents(*kindList, *idList); err != nil {
		return err
	}
	return a.syncTargets(ctx, targets)
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	file := fs.String("file", "", "Snapshot file to inspect")
	asJSON := fs.Bool("json", false, "Print the events as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := fileArg(fs, *file)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cf, "inspect")
	if err != nil {
		return err
	}
	defer a.Close()

	raw, err := a.store.Load(path)
	if err != nil {
		return err
	}
	data, snap, err := a.codec.Import(raw)
	if err != nil {
		return fmt.Errorf("invalid snapshot %s: %w", path, err)
	}

	if *asJSON {
		return printJSON(snap.Events)
	}

	fmt.Printf("Snapshot: %s\n", path)
	fmt.Printf("  Version:  %s\n", snap.Version)
	fmt.Printf("  Owner:    %s\n", snap.Npub)
	fmt.Printf("  Created:  %s\n", snap.Metadata.CreatedAt)
	fmt.Printf("  Events:   %d\n", len(snap.Events))
	if untracked := len(snap.Events) - data.Len(); untracked > 0 {
		fmt.Printf("  Untracked: %d events of kinds this table does not map\n", untracked)
	}
	fmt.Println()
	printProfile(a.table, data)
	return nil
}

func runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cf, "probe")
	if err != nil {
		return err
	}
	defer a.Close()

	relays := fs.Args()
	if len(relays) == 0 {
		relays = a.cfg.Relays.Shared
	}
	if len(relays) == 0 {
		return fmt.Errorf("no relays to probe")
	}

	timeout := internalnostr.PolicyTimeouts(a.cfg.Relays.Policy).Probe
	failed := 0
	for _, r := range relays {
		result := internalnostr.Probe(ctx, internalnostr.NormalizeRelayURL(r), timeout, nil)
		a.logger.LogRelayConnection(result.URL, result.Connected, result.Err)

		if !result.Connected {
			failed++
			fmt.Printf("  ✗ %-40s %s\n", result.URL, result.Message())
			continue
		}

		line := fmt.Sprintf("  ✓ %-40s %s (%dms)", result.URL, result.Message(), result.Latency.Milliseconds())
		if result.Software != "" {
			line += fmt.Sprintf(" [%s %s]", result.Software, result.Version)
		}
		fmt.Println(line)
	}

	if failed == len(relays) {
		return fmt.Errorf("no relay reachable")
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d relay(s) unreachable", errPartial, failed, len(relays))
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	file := fs.String("file", "", "Snapshot file to serve")
	writable := fs.Bool("writable", false, "Accept new events from clients")
	bind := fs.String("bind", "", "Address to listen on (default from serve.bind)")
	port := fs.Int("port", 0, "Port to listen on (default from serve.port)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cf, "serve")
	if err != nil {
		return err
	}
	defer a.Close()

	if *bind != "" {
		a.cfg.Serve.Bind = *bind
	}
	if *port != 0 {
		a.cfg.Serve.Port = *port
	}

	st, err := storage.New(&a.cfg.Serve, *writable)
	if err != nil {
		return fmt.Errorf("failed to initialize relay: %w", err)
	}
	defer st.Close()

	if *file != "" || fs.NArg() > 0 {
		path, _ := fileArg(fs, *file)
		raw, err := a.store.Load(path)
		if err != nil {
			return err
		}
		_, snap, err := a.codec.Import(raw)
		if err != nil {
			return fmt.Errorf("invalid snapshot %s: %w", path, err)
		}
		loaded, skipped, err := st.Load(ctx, snap.Events)
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d events from %s (%d skipped)\n", loaded, path, skipped)
	} else if !*writable {
		return fmt.Errorf("nothing to serve: give --file or --writable")
	}

	mode := "read-only"
	if *writable {
		mode = "writable"
	}
	fmt.Printf("Serving %s relay on ws://%s\n", mode, st.Address())
	fmt.Println("Press Ctrl+C to stop")

	if err := st.ListenAndServe(ctx); err != nil {
		return err
	}
	fmt.Println("Shutting down...")
	return nil
}

func printSnapshots(store *ops.SnapshotStore) error {
	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("No snapshots in %s\n", store.Dir())
		return nil
	}
	fmt.Printf("Snapshots in %s (oldest first):\n", store.Dir())
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func printProfile(table kinds.Table, data profile.Data) {
	for _, kind := range table.Kinds() {
		slot, _ := table.Slot(kind)
		ev := data.Get(slot)
		if ev == nil {
			fmt.Printf("  %-18s -\n", table.Label(kind))
			continue
		}
		desc := table.Describe(ev)
		if desc == "" {
			desc = "present"
		}
		fmt.Printf("  %-18s %s  (%s, %s)\n", table.Label(kind), desc,
			identity.Short(ev.ID), ev.CreatedAt.Time().UTC().Format(time.DateTime))
	}
}

func printOutcome(table kinds.Table, outcome *sync.Outcome) {
	fmt.Printf("\n%s:\n", outcome.Target)
	for _, r := range outcome.Results {
		if r.Succeeded {
			fmt.Printf("  ✓ %-18s via %s\n", table.Label(r.Event.Kind), r.Route)
			continue
		}
		fmt.Printf("  ✗ %-18s %v\n", table.Label(r.Event.Kind), r.Err)
	}
	fmt.Println(outcome.Summary())
}

func printJSON(events []*nostr.Event) error {
	if events == nil {
		events = []*nostr.Event{}
	}
	out, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
