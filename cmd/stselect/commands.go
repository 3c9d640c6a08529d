package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/stselect/stselect/internal/config"
	"github.com/stselect/stselect/internal/logging"
	"github.com/stselect/stselect/pkg/client"
	"github.com/stselect/stselect/pkg/models"
	"github.com/stselect/stselect/pkg/selective"
	"github.com/stselect/stselect/pkg/tree"
)

func cmdFolders(args []string) {
	fs, g := newFlagSet("folders")
	withStatus := fs.Bool("status", false, "Include byte and file counts from db/status")
	fs.Parse(args)

	e := setup(g)
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()

	folders, err := e.session.Folders(ctx, *withStatus)
	if err != nil {
		e.fail(err)
	}
	if len(folders) == 0 {
		fmt.Println("No folders.")
		return
	}
	printFolders(os.Stdout, folders, *withStatus)
}

func cmdLs(args []string) {
	fs, g := newFlagSet("ls")
	levels := fs.Int("levels", -1, "Depth below prefix (-1 for the whole subtree)")
	sizes := fs.Bool("sizes", false, "Look up missing file sizes through db/file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: stselect ls [-levels n] [-sizes] <folder> [prefix]\n")
		os.Exit(1)
	}
	folder, prefix := fs.Arg(0), fs.Arg(1)

	e := setup(g)
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()
	ctx = logging.WithFolder(ctx, folder)

	nodes, err := e.session.Tree(ctx, folder, prefix, *levels)
	if err != nil {
		e.fail(err)
	}
	if *sizes {
		if _, _, err := e.session.FillSizes(ctx, folder, prefix, nodes); err != nil {
			e.fail(err)
		}
	}
	e.collector.SetTreeNodes(folder, tree.CountNodes(nodes))

	if len(nodes) == 0 {
		fmt.Println("Empty.")
		return
	}
	printTree(os.Stdout, nodes)
}

func cmdIgnores(args []string) {
	fs, g := newFlagSet("ignores")
	block := fs.Bool("block", false, "Print only the managed block")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: stselect ignores [-block] <folder>\n")
		os.Exit(1)
	}
	folder := fs.Arg(0)

	e := setup(g)
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()
	ctx = logging.WithFolder(ctx, folder)

	lines, err := e.client.IgnoreList(ctx, folder)
	if err != nil {
		e.fail(err)
	}
	if *block {
		lines = e.cfg.Codec().Read(lines)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
}

func cmdEnable(args []string) {
	fs, g := newFlagSet("enable")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: stselect enable <folder>\n")
		os.Exit(1)
	}
	folder := fs.Arg(0)

	e := setup(g)
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()
	ctx = logging.WithFolder(ctx, folder)

	changed, err := e.session.Enable(ctx, folder)
	if err != nil {
		e.fail(err)
	}
	if !changed {
		fmt.Printf("Selective sync already enabled for %s\n", folder)
		return
	}
	e.collector.RecordSelectionChange(folder, "enable")
	fmt.Printf("Selective sync enabled for %s. Nothing is synced until you select paths.\n", folder)
}

func cmdSelect(args []string, include bool) {
	name := "unselect"
	if include {
		name = "select"
	}
	fs, g := newFlagSet(name)
	dryRun := fs.Bool("n", false, "Show the block change without writing it")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "Usage: stselect %s [-n] <folder> <path>\n", name)
		os.Exit(1)
	}
	folder, path := fs.Arg(0), fs.Arg(1)

	e := setup(g)
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()
	ctx = logging.WithFolder(ctx, folder)

	m := selective.Include(path)
	if !include {
		m = selective.Exclude(path, e.session.Children(ctx, folder))
	}

	var (
		change *selective.Change
		err    error
	)
	if *dryRun {
		change, err = e.session.Preview(ctx, folder, m)
	} else {
		change, err = e.session.Apply(ctx, folder, m)
	}
	if err != nil {
		e.fail(err)
	}

	if !change.Changed() {
		fmt.Println("No change.")
		return
	}
	fmt.Print(change.Diff())
	if !*dryRun {
		e.collector.RecordSelectionChange(folder, name)
		logging.WithContext(ctx, e.log).Debug("selection written",
			zap.String("command", name),
			zap.String("path", path),
			zap.Int("lines", len(change.New)))
	}
}

func cmdState(args []string) {
	fs, g := newFlagSet("state")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "Usage: stselect state <folder> <path>\n")
		os.Exit(1)
	}
	folder, path := fs.Arg(0), fs.Arg(1)

	e := setup(g)
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()
	ctx = logging.WithFolder(ctx, folder)

	state, err := e.session.FileState(ctx, folder, path)
	if err != nil {
		e.fail(err)
	}
	fmt.Printf("%s %s\n", stateMark(state), state)
}

func cmdWatch(args []string) {
	fs, g := newFlagSet("watch")
	folder := fs.String("folder", "", "Only report events for this folder")
	fs.Parse(args)

	e := setup(g)
	defer e.close()
	ctx, cancel := signalContext()
	defer cancel()
	ctx = logging.WithFolder(ctx, *folder)

	fmt.Fprintf(os.Stderr, "Watching %s, press Ctrl+C to stop\n", e.client.BaseURL())
	err := e.session.Watch(ctx, *folder, func(ev models.Event) {
		fmt.Printf("%s  %-20s %s\n", ev.Time.Local().Format(time.DateTime), ev.Type, ev.Folder())
	})
	if err != nil {
		e.fail(err)
	}
}

func cmdLogin(args []string) {
	fs, g := newFlagSet("login")
	host := fs.String("host", "", "Daemon host (default from config)")
	port := fs.Int("port", 0, "Daemon GUI port (default from config)")
	https := fs.Bool("https", false, "Use HTTPS and accept the daemon's self-signed certificate")
	fs.Parse(args)

	cfg, err := config.Load(*g.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *https {
		cfg.Protocol = "https"
		cfg.InsecureSkipVerify = true
	}

	key, err := promptAPIKey(cfg.APIKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading API key: %v\n", err)
		os.Exit(1)
	}
	cfg.APIKey = key

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c := client.New(cfg.ClientConfig(nil, nil))
	if err := c.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Save(*g.configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Connected to %s. Settings saved to %s\n", c.BaseURL(), *g.configPath)
}

// promptAPIKey reads the key without echo. An empty answer keeps current.
func promptAPIKey(current string) (string, error) {
	hint := ""
	if current != "" {
		hint = " (empty keeps the discovered key)"
	}
	fmt.Printf("API key%s: ", hint)

	var key string
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		key = string(b)
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		key = line
	}

	key = strings.TrimSpace(key)
	if key == "" {
		key = current
	}
	if key == "" {
		return "", fmt.Errorf("an API key is required")
	}
	return key, nil
}
