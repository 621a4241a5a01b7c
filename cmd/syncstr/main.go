package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/sandwichfarm/syncstr/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "manual"
)

// Exit codes
const (
	exitOK      = 0
	exitFailed  = 1
	exitPartial = 2
)

// errPartial marks a sync that left some events behind
var errPartial = errors.New("partial sync")

type command struct {
	name    string
	summary string
	run     func(args []string) error
}

var commands = []command{
	{"init", "Print an example configuration", runInit},
	{"fetch", "Fetch profile data from a relay", runFetch},
	{"sync", "Copy profile data from one relay to another", runSync},
	{"backup", "Save profile data from a relay to a snapshot file", runBackup},
	{"restore", "Publish a snapshot file to a relay", runRestore},
	{"inspect", "Validate a snapshot file and show its contents", runInspect},
	{"probe", "Test relay connectivity", runProbe},
	{"serve", "Serve a snapshot file as a local relay", runServe},
}

func main() {
	if len(os.Args) > 1 {
		for _, c := range commands {
			if os.Args[1] == c.name {
				os.Exit(exitCode(c.run(os.Args[2:])))
			}
		}
	}

	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("syncstr %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		fmt.Printf("  by:     %s\n", builtBy)
		os.Exit(exitOK)
	}

	usage()
	os.Exit(exitFailed)
}

func usage() {
	fmt.Println("syncstr - copy Nostr profile data between relays and snapshot files")
	fmt.Println()
	fmt.Println("Commands:")
	for _, c := range commands {
		fmt.Printf("  syncstr %-8s %s\n", c.name, c.summary)
	}
	fmt.Println("  syncstr --version  Show version information")
	fmt.Println()
	fmt.Println("Run 'syncstr <command> -h' for command options.")
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errPartial):
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return exitPartial
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailed
	}
}

func runInit(args []string) error {
	exampleConfig, err := config.GetExampleConfig()
	if err != nil {
		return fmt.Errorf("failed to read example config: %w", err)
	}

	// Write to stdout
	fmt.Print(string(exampleConfig))
	return nil
}
