// Command krxd is the keyboard remapping daemon: it captures raw input
// from every attached keyboard, resolves it against the active compiled
// profile, and injects the result back into the OS (spec.md §4.9, §6).
//
// Usage:
//
//	krxd [-config path] [-activate name]
//	krxd monitor [-config path]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/keyrx-dev/krx/internal/daemon"
	"github.com/keyrx-dev/krx/internal/daemonconfig"
	"github.com/keyrx-dev/krx/internal/monitor"
	"github.com/keyrx-dev/krx/internal/platform"
)

// newDebugLogger builds a *log.Logger to os.Stderr when enabled, or one
// that discards everything otherwise.
func newDebugLogger(enabled bool, prefix string) *log.Logger {
	if enabled {
		return log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
	return log.New(io.Discard, "", 0)
}

func run() error {
	if len(os.Args) > 1 && os.Args[1] == "monitor" {
		return runMonitor(os.Args[2:])
	}
	return runDaemon(os.Args[1:])
}

func runDaemon(args []string) error {
	fs := flag.NewFlagSet("krxd", flag.ExitOnError)
	configPath := fs.String("config", daemonconfig.DefaultPath(), "path to daemon config TOML")
	activate := fs.String("activate", "", "profile name to activate on startup")
	debug := fs.Bool("debug", false, "enable debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := daemonconfig.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbg := newDebugLogger(*debug, "[DEBUG] ")

	capture := platform.NewCapture(dbg)
	inject, err := platform.NewInjector(dbg)
	if err != nil {
		return fmt.Errorf("create injector: %w", err)
	}
	defer inject.Close()

	d := daemon.New(cfg, capture, inject, dbg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *activate != "" {
		if err := d.Activate(ctx, *activate); err != nil {
			return fmt.Errorf("activate %q: %w", *activate, err)
		}
		log.Printf("activated profile %q", *activate)
	}

	log.Printf("krxd running (config=%s)", *configPath)
	return d.Run(ctx)
}

func runMonitor(args []string) error {
	fs := flag.NewFlagSet("krxd monitor", flag.ExitOnError)
	configPath := fs.String("config", daemonconfig.DefaultPath(), "path to daemon config TOML")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := daemonconfig.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// A live alt-screen program can't share stderr with a *log.Logger
	// without corrupting the view, so debug logging here is quiet; the
	// monitor's own EventError rows carry the same information.
	dbg := newDebugLogger(false, "")

	capture := platform.NewCapture(dbg)
	inject, err := platform.NewInjector(dbg)
	if err != nil {
		return fmt.Errorf("create injector: %w", err)
	}
	defer inject.Close()

	d := daemon.New(cfg, capture, inject, dbg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := d.Run(ctx); err != nil {
			log.Printf("daemon run error: %v", err)
		}
	}()

	p := tea.NewProgram(monitor.New(d), tea.WithAltScreen())
	_, err = p.Run()
	cancel()
	return err
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
