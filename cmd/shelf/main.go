package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/hpungsan/shelf/internal/config"
	"github.com/hpungsan/shelf/internal/db"
	"github.com/hpungsan/shelf/internal/library"
	"github.com/hpungsan/shelf/internal/logging"
	"github.com/hpungsan/shelf/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// shutdownTimeout bounds the final drain and flush on exit.
const shutdownTimeout = 10 * time.Second

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"sync": true, "status": true, "count": true, "config": true,
	"managed": true, "unmanaged": true, "removed": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--json" && len(os.Args) > 2 && cliCommands[os.Args[2]] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
       _          _  __
   ___| |__   ___| |/ _|
  / __| '_ \ / _ \ | |_
  \__ \ | | |  __/ |  _|
  |___/_| |_|\___|_|_|

  Game library sync engine

  Usage: shelf <command> [options]
         shelf --help

  MCP server mode requires piped input.`)
}

func main() {
	os.Exit(run())
}

func run() int {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return 0
	}

	// Handle --help/--version before opening the store
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	cliMode := isCLIMode()

	// Unknown argument + terminal → show error (don't start MCP server)
	if !cliMode && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'shelf --help' for usage.\n")
		return 1
	}

	baseDir, err := config.BaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine base directory: %v\n", err)
		return 1
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}

	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to set up logging: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
		_ = logCloser.Close()
	}()

	eng, err := library.Open(cfg, baseDir, logger)
	if err != nil {
		if !stderrors.Is(err, db.ErrLocked) {
			err = fmt.Errorf("failed to initialize store: %w", err)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := 0
	if cliMode {
		app := newCLIApp(eng, logger)
		if err := app.RunContext(ctx, os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			code = 1
		}
	} else {
		if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
			logger.Warn("ignoring unknown disabled tools",
				zap.Strings("tools", unknown),
				zap.Strings("valid", mcp.AllToolNames()))
		}
		logger.Info("starting MCP server", zap.String("version", Version), zap.String("base_dir", baseDir))
		if err := mcp.Run(ctx, eng, cfg, logger, Version); err != nil && !stderrors.Is(err, context.Canceled) {
			logger.Error("MCP server stopped", zap.Error(err))
			code = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := eng.Close(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
		code = 1
	}
	return code
}
