// Package main is the entry point for the flowstore repository lifecycle tool.
//
// It binds a profile from a profiles file to its repository backend and runs
// the lifecycle operations the host application would otherwise drive:
// setup, status, list, reset.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/flowstore/flowstore/internal/logging"
	"github.com/flowstore/flowstore/internal/metrics"
	"github.com/flowstore/flowstore/internal/migrator"
	"github.com/flowstore/flowstore/internal/profile"
)

const usage = "Usage: flowstore <setup|status|list|reset> [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	metrics.Register()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "setup":
		os.Exit(runSetup(args))
	case "status":
		os.Exit(runStatus(args))
	case "list":
		os.Exit(runList(args))
	case "reset":
		os.Exit(runReset(args))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s\n", command, usage)
		os.Exit(1)
	}
}

// commonFlags registers the flags shared by every subcommand on fs.
func commonFlags(fs *flag.FlagSet) (profilesPath, profileName, logLevel, logFormat *string) {
	profilesPath = fs.String("profiles", "profiles.yaml", "path to the profiles file")
	profileName = fs.String("profile", "", "profile name (default: the default profile)")
	logLevel = fs.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat = fs.String("log-format", "text", "log format: text, json")
	return
}

// loadMigrator parses the shared flags, loads the requested profile, and
// returns its migrator.
func loadMigrator(name string, args []string) (migrator.Migrator, *profile.Profile, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	profilesPath, profileName, logLevel, logFormat := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	logging.Setup(*logLevel, *logFormat, os.Stderr)

	file, err := profile.Load(*profilesPath)
	if err != nil {
		return nil, nil, err
	}
	p, err := file.Get(*profileName)
	if err != nil {
		return nil, nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}

	m, err := migrator.ForProfile(p)
	if err != nil {
		return nil, nil, err
	}
	return m, p, nil
}

// runSetup initialises the profile's repository, creating its bucket or
// container if absent.
func runSetup(args []string) int {
	m, p, err := loadMigrator("setup", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		return 1
	}

	ctx := context.Background()
	if err := m.InitialiseRepository(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "setup: initialising repository: %v\n", err)
		return 1
	}

	uuid, err := m.GetRepositoryUUID(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		return 1
	}
	fmt.Printf("Profile %s: repository %s initialised\n", p.Name, uuid)
	return 0
}

// runStatus reports whether the profile's repository is initialised and, when
// it is, how many objects it holds.
func runStatus(args []string) int {
	m, p, err := loadMigrator("status", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		return 1
	}

	ctx := context.Background()
	uuid, err := m.GetRepositoryUUID(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		return 1
	}

	initialised, err := m.IsRepositoryInitialised(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: probing repository: %v\n", err)
		return 1
	}

	fmt.Printf("Profile:     %s\n", p.Name)
	fmt.Printf("Backend:     %s\n", p.Storage.Backend)
	fmt.Printf("Repository:  %s\n", uuid)
	fmt.Printf("Initialised: %t\n", initialised)
	if !initialised {
		return 0
	}

	backend, err := m.GetRepository(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		return 1
	}
	keys, err := backend.ListObjects(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: listing objects: %v\n", err)
		return 1
	}
	fmt.Printf("Objects:     %d\n", len(keys))
	return 0
}

// runList prints every object key in the profile's repository.
func runList(args []string) int {
	m, _, err := loadMigrator("list", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list: %v\n", err)
		return 1
	}

	ctx := context.Background()
	backend, err := m.GetRepository(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list: %v\n", err)
		return 1
	}
	keys, err := backend.ListObjects(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list: listing objects: %v\n", err)
		return 1
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return 0
}

// runReset empties the profile's repository via its migrator's reset
// strategy. Destructive, so it requires -force.
func runReset(args []string) int {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	profilesPath, profileName, logLevel, logFormat := commonFlags(fs)
	force := fs.Bool("force", false, "actually reset the repository")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "reset: %v\n", err)
		return 1
	}

	logging.Setup(*logLevel, *logFormat, os.Stderr)

	if !*force {
		fmt.Fprintln(os.Stderr, "reset: refusing to reset without -force")
		return 1
	}

	file, err := profile.Load(*profilesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reset: %v\n", err)
		return 1
	}
	p, err := file.Get(*profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reset: %v\n", err)
		return 1
	}
	if err := p.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "reset: %v\n", err)
		return 1
	}
	m, err := migrator.ForProfile(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reset: %v\n", err)
		return 1
	}

	if err := m.ResetRepository(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "reset: resetting repository: %v\n", err)
		return 1
	}
	fmt.Printf("Profile %s: repository reset\n", p.Name)
	return 0
}
