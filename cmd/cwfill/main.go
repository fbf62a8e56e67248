// Command cwfill fills cursor windows from SQLite queries and inspects
// saved window images.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/sqlcipher/cursorwindow"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	LogLevel string `name:"log-level" enum:"debug,info,warn,error" default:"warn" env:"CWFILL_LOG_LEVEL" help:"Minimum log level (${enum})"`
	LogJSON  bool   `name:"log-json" env:"CWFILL_LOG_JSON" help:"Log JSON instead of console text"`
}

// CLI defines the command-line interface for cwfill.
var CLI struct {
	Globals

	Query   QueryCmd   `cmd:"" help:"Fill a window from a query and print it"`
	Inspect InspectCmd `cmd:"" help:"Print a saved window image"`
	Images  ImagesCmd  `cmd:"" help:"List saved window images"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// env carries what commands need at run time.
type env struct {
	ctx    context.Context
	logger *cursorwindow.Logger
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(ctx *kong.Context) error {
	_, err := ctx.Stdout.Write([]byte("cwfill " + version + "\n"))
	return err
}

func newLogger(g *Globals) *cursorwindow.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(g.LogLevel))
	if g.LogJSON {
		return cursorwindow.NewJSONLogger(level)
	}
	return cursorwindow.NewLogger(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("cwfill"),
		kong.Description("Fill and inspect cursor windows"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := kctx.Run(&env{ctx: ctx, logger: newLogger(&CLI.Globals)})
	kctx.FatalIfErrorf(err)
}
