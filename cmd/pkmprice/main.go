package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/guarzo/pkmprice/internal/cards"
	"github.com/guarzo/pkmprice/internal/config"
)

const usage = `usage: pkmprice <command> [flags]

commands:
  price <file>              price every card listed in file
  card <id>                 look up one card, e.g. sv1-123
  sets                      list sets known to the catalog
  config <path>             validate a config file and print it
  watch <file>              price file on a cron schedule
  history <card-id>         show stored prices for a card
  export                    export stored prices as csv or xlsx

Run 'pkmprice <command> --help' for the flags of a command.
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "pkmprice: %v\n", err)
		os.Exit(1)
	}
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]struct {
	run        command
	requireKey bool
	flags      func(*pflag.FlagSet)
}{
	"price":   {run: runPrice, requireKey: true},
	"card":    {run: runCard, requireKey: true},
	"sets":    {run: runSets, requireKey: true, flags: setsFlags},
	"config":  {run: runConfig},
	"watch":   {run: runWatch, requireKey: true, flags: watchFlags},
	"history": {run: runHistory, flags: historyFlags},
	"export":  {run: runExport, flags: exportFlags},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	// config <path> validates that file instead of the usual sources.
	opts := config.Options{Flags: fs}
	if name == "config" {
		if fs.NArg() != 1 {
			return fmt.Errorf("%w: config takes one path", errUsage)
		}
		opts.ConfigFile = fs.Arg(0)
	}

	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(cmd.requireKey); err != nil {
		return err
	}

	a := &app{
		cfg:    cfg,
		flags:  fs,
		log:    newLogger(cfg, stderr),
		stdout: stdout,
		stderr: stderr,
	}
	return cmd.run(ctx, a, fs.Args())
}

// app carries what every command needs.
type app struct {
	cfg    *config.Config
	flags  *pflag.FlagSet
	log    zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	lvl, _ := cfg.Level()
	if cfg.Quiet && lvl < zerolog.WarnLevel {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().Timestamp().Str("app", "pkmprice").
		Logger()
}

func (a *app) client() *cards.Client {
	return cards.New(
		cards.WithBaseURL(a.cfg.BaseURL),
		cards.WithAPIKey(a.cfg.APIKey),
		cards.WithUserAgent(a.cfg.UserAgent),
		cards.WithTimeout(a.cfg.Timeout),
		cards.WithRetries(a.cfg.Retries, a.cfg.RetryWait, a.cfg.RetryMaxWait),
		cards.WithLogger(a.log),
	)
}
