// Command ipoctl records IPO subscriptions and cash movements against the
// tracker's ledger database from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/aristath/ipotracker/internal/config"
	"github.com/aristath/ipotracker/internal/di"
	"github.com/aristath/ipotracker/pkg/logger"
)

var (
	// Version is set via ldflags when building
	Version = ""

	// CommitSHA is set via ldflags when building
	CommitSHA = ""
)

// Globals are the flags shared by every command
type Globals struct {
	DataDir  string `help:"Directory holding ledger.db (overrides DATA_DIR)." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"warn" enum:"debug,info,warn,error"`
}

// CLI is the root command
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Globals
	Commands
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Vars{"version": buildVersion()},
		kong.Name("ipoctl"),
		kong.Description("Track Hong Kong IPO subscriptions and account balances."),
		kong.UsageOnError(),
	)

	container, err := cli.Globals.open()
	ctx.FatalIfErrorf(err)

	err = ctx.Run(container)
	container.Close()
	ctx.FatalIfErrorf(err)
}

// open loads configuration and wires the services against ledger.db
func (g *Globals) open() (*di.Container, error) {
	if g.DataDir != "" {
		if err := os.Setenv("DATA_DIR", g.DataDir); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{Level: g.LogLevel, Pretty: true, Output: os.Stderr})
	log.Debug().Str("ledger", cfg.LedgerPath()).Msg("Opening ledger")

	container, _, err := di.Wire(cfg, log)
	return container, err
}

func buildVersion() string {
	if Version == "" {
		Version = "dev"
	}
	if CommitSHA == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, CommitSHA)
}
