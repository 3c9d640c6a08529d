// stselect - selective sync for Syncthing folders
//
// Chooses which files and directories of a Syncthing folder are synced by
// maintaining a managed block in the folder's ignore patterns.
//
// Sub-commands:
//
//	stselect folders [-status]                    List folders
//	stselect ls [-levels n] [-sizes] <folder> [prefix]
//	                                              Show the tree with sync states
//	stselect ignores [-block] <folder>            Print the ignore patterns
//	stselect enable <folder>                      Install the managed block
//	stselect select [-n] <folder> <path>          Sync path and everything below it
//	stselect unselect [-n] <folder> <path>        Stop syncing path
//	stselect state <folder> <path>                Show the sync state of one path
//	stselect watch [-folder id]                   Follow index events
//	stselect login [-host h] [-port p] [-https]   Store the daemon address and API key
//
// Every sub-command accepts -config, -v and -metrics-file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/stselect/stselect/internal/config"
	"github.com/stselect/stselect/internal/logging"
	"github.com/stselect/stselect/internal/metrics"
	"github.com/stselect/stselect/pkg/client"
	"github.com/stselect/stselect/pkg/ignores"
	"github.com/stselect/stselect/pkg/selective"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "folders":
		cmdFolders(args)
	case "ls":
		cmdLs(args)
	case "ignores":
		cmdIgnores(args)
	case "enable":
		cmdEnable(args)
	case "select":
		cmdSelect(args, true)
	case "unselect":
		cmdSelect(args, false)
	case "state":
		cmdState(args)
	case "watch":
		cmdWatch(args)
	case "login":
		cmdLogin(args)
	case "help", "-h", "-help", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: stselect <command> [flags] [args]

Commands:
  folders    List folders
  ls         Show a folder tree with sync states
  ignores    Print a folder's ignore patterns
  enable     Install the selective sync block in a folder
  select     Sync a path
  unselect   Stop syncing a path
  state      Show the sync state of a path
  watch      Follow index events
  login      Store the daemon address and API key

Run 'stselect <command> -h' for command flags.
`)
}

// globalFlags are shared by every sub-command.
type globalFlags struct {
	configPath  *string
	verbosity   *int
	metricsFile *string
}

func newFlagSet(name string) (*flag.FlagSet, *globalFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	g := &globalFlags{
		configPath:  fs.String("config", config.DefaultPath(), "Config file"),
		verbosity:   fs.Int("v", -1, "Verbosity: 0=warn, 1=info, 2=debug (default from config)"),
		metricsFile: fs.String("metrics-file", "", "Write Prometheus metrics to this file on exit"),
	}
	return fs, g
}

// env is what a command needs to talk to the daemon.
type env struct {
	cfg       *config.Config
	client    *client.Client
	session   *selective.Session
	collector *metrics.Collector
	log       *zap.Logger

	metricsFile string
}

func setup(g *globalFlags) *env {
	cfg, err := config.Load(*g.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: logging: %v\n", err)
		os.Exit(1)
	}
	switch *g.verbosity {
	case -1:
	case 0:
		logging.SetLevel("warn")
	case 1:
		logging.SetLevel("info")
	default:
		logging.SetLevel("debug")
	}
	log := logging.L()

	if cfg.APIKey == "" {
		log.Warn("no API key configured or found in Syncthing's config.xml; run 'stselect login'")
	}

	collector := metrics.New()
	c := client.New(cfg.ClientConfig(log.Named("client"), collector))
	session := selective.New(c, selective.Options{
		Codec:     cfg.Codec(),
		CacheSize: cfg.CacheSize,
		Logger:    log.Named("session"),
	})

	log.Debug("configured",
		zap.String("daemon", c.BaseURL()),
		zap.String("config", *g.configPath))

	return &env{
		cfg:         cfg,
		client:      c,
		session:     session,
		collector:   collector,
		log:         log,
		metricsFile: *g.metricsFile,
	}
}

// close flushes logs and writes the metrics file.
func (e *env) close() {
	if e.metricsFile != "" {
		if err := e.collector.WriteTextfile(e.metricsFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write metrics: %v\n", err)
		}
	}
	logging.Sync()
}

// fail reports err with a hint for the common cases and exits.
func (e *env) fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		fmt.Fprintf(os.Stderr, "Check the API key, or run 'stselect login'.\n")
	case errors.Is(err, ignores.ErrNoBlock):
		fmt.Fprintf(os.Stderr, "Run 'stselect enable <folder>' first.\n")
	}
	e.close()
	os.Exit(1)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
