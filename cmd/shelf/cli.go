package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/shelf/internal/db"
	"github.com/hpungsan/shelf/internal/errors"
	"github.com/hpungsan/shelf/internal/library"
	"github.com/hpungsan/shelf/internal/ops"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(eng *library.Engine, logger *zap.Logger) *cli.App {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &cli.App{
		Name:    "shelf",
		Usage:   "Game library sync engine",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Always print JSON, even on a terminal"},
		},
		Commands: []*cli.Command{
			syncCmd(eng, logger),
			statusCmd(eng),
			countCmd(eng),
			configCmd(eng),
			managedCmd(eng),
			unmanagedCmd(eng, logger),
			removedCmd(eng, logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

var pageFlag = &cli.IntFlag{Name: "page", Aliases: []string{"p"}, Value: 0, Usage: "Zero-based page index"}

// syncCmd creates the sync command.
func syncCmd(eng *library.Engine, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Scan the library and diff it against managed records",
		Action: func(c *cli.Context) error {
			result, err := ops.Sync(c.Context, eng, logger)
			if err != nil {
				return outputError(err)
			}
			if !result.Success {
				_ = render(c, result, nil)
				return cli.Exit(fmt.Sprintf("[%s] library scan failed", result.Error), 1)
			}
			return render(c, result, func(w io.Writer) {
				fmt.Fprintf(w, "generation %s: %s games, %s unmanaged, %s removed\n",
					result.GenerationID,
					humanize.Comma(int64(result.Games)),
					humanize.Comma(int64(result.Unmanaged)),
					humanize.Comma(int64(result.Removed)))
			})
		},
	}
}

// statusCmd creates the status command.
func statusCmd(eng *library.Engine) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show library root, scan state and store health",
		Action: func(c *cli.Context) error {
			result, err := ops.Status(c.Context, eng)
			if err != nil {
				return outputError(err)
			}
			return render(c, result, func(w io.Writer) {
				s := result.Status
				scanned := "never"
				if !s.ScannedAt.IsZero() {
					scanned = humanize.Time(s.ScannedAt)
				}
				lastFlush := "never"
				if !s.Queue.LastFlushAt.IsZero() {
					lastFlush = humanize.Time(s.Queue.LastFlushAt)
				}
				pairs := [][2]string{
					{"library root", s.LibraryRoot},
					{"scanning", strconv.FormatBool(s.Scanning)},
					{"last scan", scanned},
					{"games", humanize.Comma(int64(s.Games))},
					{"unmanaged", humanize.Comma(int64(s.Unmanaged))},
					{"removed", humanize.Comma(int64(s.Removed))},
					{"managed", humanize.Comma(int64(s.Managed))},
					{"queue pending", strconv.Itoa(s.Queue.Pending)},
					{"store dirty", strconv.FormatBool(s.Queue.Dirty)},
					{"last flush", lastFlush},
				}
				if s.LastScanError != "" {
					pairs = append(pairs, [2]string{"last scan error", s.LastScanError})
				}
				if s.Queue.LastFlushError != "" {
					pairs = append(pairs, [2]string{"last flush error", s.Queue.LastFlushError})
				}
				fmt.Fprintln(w, keyValueTable(pairs))
			})
		},
	}
}

// countCmd creates the count command.
func countCmd(eng *library.Engine) *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "Count games found by a scan (managed records if no scan ran)",
		Action: func(c *cli.Context) error {
			result, err := ops.GameCount(c.Context, eng)
			if err != nil {
				return outputError(err)
			}
			return render(c, result, func(w io.Writer) {
				fmt.Fprintln(w, humanize.Comma(int64(result.Count)))
			})
		},
	}
}

// configCmd creates the config command group.
func configCmd(eng *library.Engine) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Read or write stored config entries",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Read a config entry",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return outputError(errors.NewInvalidRequest("usage: shelf config get <name>"))
					}
					result, err := ops.GetConfig(c.Context, eng, ops.GetConfigInput{Name: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					if !result.Found {
						return outputError(errors.NewNotFound("config " + result.Name))
					}
					return render(c, result, func(w io.Writer) {
						fmt.Fprintln(w, result.Value)
					})
				},
			},
			{
				Name:      "set",
				Usage:     "Write a config entry",
				ArgsUsage: "<name> <value>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return outputError(errors.NewInvalidRequest("usage: shelf config set <name> <value>"))
					}
					result, err := ops.SetConfig(c.Context, eng, ops.SetConfigInput{
						Name:  c.Args().Get(0),
						Value: c.Args().Get(1),
					})
					if err != nil {
						return outputError(err)
					}
					return render(c, result, func(w io.Writer) {
						fmt.Fprintf(w, "%s = %s\n", result.Name, result.Value)
					})
				},
			},
		},
	}
}

// managedCmd creates the managed command group.
func managedCmd(eng *library.Engine) *cli.Command {
	return &cli.Command{
		Name:  "managed",
		Usage: "Inspect and edit managed records",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List managed records ordered by key",
				Flags: []cli.Flag{pageFlag},
				Action: func(c *cli.Context) error {
					result, err := ops.ListManaged(c.Context, eng, ops.PageInput{Page: c.Int("page")})
					if err != nil {
						return outputError(err)
					}
					return render(c, result, func(w io.Writer) {
						printRecords(w, result.Items, result.Pagination)
					})
				},
			},
			{
				Name:  "count",
				Usage: "Count managed records",
				Action: func(c *cli.Context) error {
					result, err := ops.CountManaged(c.Context, eng)
					if err != nil {
						return outputError(err)
					}
					return render(c, result, func(w io.Writer) {
						fmt.Fprintln(w, humanize.Comma(int64(result.Count)))
					})
				},
			},
			{
				Name:      "add",
				Usage:     "Record that a game was imported under an app id",
				ArgsUsage: "<key> <app_id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return outputError(errors.NewInvalidRequest("usage: shelf managed add <key> <app_id>"))
					}
					appID, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
					if err != nil {
						return outputError(errors.NewInvalidRequest(fmt.Sprintf("app_id must be an integer: %q", c.Args().Get(1))))
					}
					result, err := ops.AddManaged(c.Context, eng, ops.AddManagedInput{
						Key:   c.Args().Get(0),
						AppID: appID,
					})
					if err != nil {
						return outputError(err)
					}
					return render(c, result, func(w io.Writer) {
						fmt.Fprintf(w, "added %s as %d\n", shortKey(result.Key), result.AppID)
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "Delete a managed record",
				ArgsUsage: "<key>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return outputError(errors.NewInvalidRequest("usage: shelf managed remove <key>"))
					}
					result, err := ops.RemoveManaged(c.Context, eng, ops.RemoveManagedInput{Key: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return render(c, result, func(w io.Writer) {
						if result.Removed {
							fmt.Fprintf(w, "removed %s\n", shortKey(result.Key))
						} else {
							fmt.Fprintf(w, "no record for %s\n", shortKey(result.Key))
						}
					})
				},
			},
		},
	}
}

// unmanagedCmd creates the unmanaged command. Scan results live in process
// memory, so the command scans before listing.
func unmanagedCmd(eng *library.Engine, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "unmanaged",
		Usage: "Scan, then list games that have no managed record",
		Flags: []cli.Flag{pageFlag},
		Action: func(c *cli.Context) error {
			if err := syncFirst(c, eng, logger); err != nil {
				return err
			}
			result, err := ops.ListUnmanaged(eng, ops.PageInput{Page: c.Int("page")})
			if err != nil {
				return outputError(err)
			}
			return render(c, result, func(w io.Writer) {
				g := newGrid("Key", "Title", "Executable", "Artwork")
				for _, item := range result.Items {
					g.row(shortKey(item.Key), item.Game.Title, item.Game.Executable, artworkRoles(item.Game.Artwork))
				}
				g.caption("%s", pageCaption(result.Pagination))
				fmt.Fprintln(w, g.render())
			})
		},
	}
}

// removedCmd creates the removed command.
func removedCmd(eng *library.Engine, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "removed",
		Usage: "Scan, then list managed records whose game is gone",
		Flags: []cli.Flag{pageFlag},
		Action: func(c *cli.Context) error {
			if err := syncFirst(c, eng, logger); err != nil {
				return err
			}
			result, err := ops.ListRemoved(eng, ops.PageInput{Page: c.Int("page")})
			if err != nil {
				return outputError(err)
			}
			return render(c, result, func(w io.Writer) {
				printRecords(w, result.Items, result.Pagination)
			})
		},
	}
}

func syncFirst(c *cli.Context, eng *library.Engine, logger *zap.Logger) error {
	result, err := ops.Sync(c.Context, eng, logger)
	if err != nil {
		return outputError(err)
	}
	if !result.Success {
		return cli.Exit(fmt.Sprintf("[%s] library scan failed", result.Error), 1)
	}
	return nil
}

// Output helpers

// render prints v as JSON when --json is set or stdout is not a terminal,
// otherwise it calls human. A nil human always prints JSON.
func render(c *cli.Context, v any, human func(io.Writer)) error {
	w := c.App.Writer
	if w == nil {
		w = os.Stdout
	}
	if human == nil || c.Bool("json") || !isTTY(w) {
		return outputJSON(w, v)
	}
	human(w)
	return nil
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if shelfErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", shelfErr.Code, shelfErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func printRecords(w io.Writer, items []db.ManagedGame, p ops.Pagination) {
	g := recordsTable(items)
	g.caption("%s", pageCaption(p))
	fmt.Fprintln(w, g.render())
}

func pageCaption(p ops.Pagination) string {
	more := ""
	if p.HasMore {
		more = fmt.Sprintf(", next: --page %d", p.Page+1)
	}
	return fmt.Sprintf("page %d, %s total%s", p.Page, humanize.Comma(int64(p.Total)), more)
}

func artworkRoles(art map[string]string) string {
	roles := make([]string, 0, len(library.Roles))
	for _, role := range library.Roles {
		if _, ok := art[string(role)]; ok {
			roles = append(roles, string(role))
		}
	}
	if len(roles) == 0 {
		return "-"
	}
	return strings.Join(roles, ",")
}
