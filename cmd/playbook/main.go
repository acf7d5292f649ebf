package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hpungsan/playbook/internal/config"
	"github.com/hpungsan/playbook/internal/logging"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "mcp": true,
	"new": true, "list": true, "library": true, "show": true,
	"approve": true, "publish": true, "unpublish": true, "delete": true,
	"export": true, "import": true, "industry": true,
	"help": true,
}

// isCLIMode determines if we should run a CLI command vs the MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___  _            _              _
  | _ \| | __ _ _  _| |__  ___  ___| |__
  |  _/| |/ _' | || | '_ \/ _ \/ _ \ / /
  |_|  |_|\__,_|\_, |_.__/\___/\___/_\_\
                |__/

  Incident lessons, turned into playbooks

  Usage: playbook <command> [options]
         playbook serve       start the web UI
         playbook --help

  MCP server mode requires piped input.`)
}

// baseDir returns $PLAYBOOK_HOME or ~/.playbook.
func baseDir() (string, error) {
	if dir := os.Getenv("PLAYBOOK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".playbook"), nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before any storage is opened
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	if !isCLIMode(os.Args) && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'playbook --help' for usage.\n")
		os.Exit(1)
	}

	dir, err := baseDir()
	if err != nil {
		fail("%v", err)
	}

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(dir, cwd)
	if err != nil {
		fail("failed to load config: %v", err)
	}
	if err := config.ApplyEnv(cfg, os.Getenv); err != nil {
		fail("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		fail("invalid config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fail("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := openEnv(ctx, dir, cfg, logger)
	if err != nil {
		fail("failed to open storage: %v", err)
	}
	defer env.Close()

	// No subcommand and piped stdin → MCP server
	args := os.Args
	if !isCLIMode(args) {
		args = []string{args[0], "mcp"}
	}

	app := newCLIApp(env)
	if err := app.RunContext(ctx, args); err != nil {
		// Command errors are already formatted as JSON.
		fmt.Fprintln(os.Stderr, err)
		stop()
		env.Close()
		os.Exit(1)
	}
}
