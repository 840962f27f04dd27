// Command logictl is the command-line front end of the logistics order tool.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/and161185/logistics-keeper/internal/config"
	"github.com/and161185/logistics-keeper/internal/errs"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage(w io.Writer) {
	fmt.Fprintf(w, `logictl CLI
Usage:
  logictl [-config file] [-data-dir dir] [-store file|postgres|memory] [-dsn DSN] <cmd> [args]

Commands:
  version
  login      -u <id> -p <password>
  logout
  whoami
  order add     -qty <n> [-project-code c] [-project-name n] [-pickup-date d] [-delivery-date d]
                [-from wh] [-to wh] [-vehicle v] [-goods g] [-supplier s] [-notes n] [-urgent] [-for user]
  order assign  -id <order> -supplier <name>
  order rm      -id <order>
  order list    [-requester name] [-supplier s] [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-q text]
  user add      -id <id> -p <password> -role Admin|Manager|Requester [-name n] [-email e] [-address a]
  user edit     -id <id> [-name n] [-email e] [-address a]
  user rm       -id <id>
  user list
  supplier list
  backup     [-out dir | -out -]
  restore    -file <path|-> [-yes]
  sync push  [-token t] [-doc id] [-remember]
  sync pull  [-token t] -doc <id> [-remember] [-yes]
  sync status
  store migrate | store reset                      (postgres store only)
  shell                                            (interactive, keeps auto-sync running)

Global flags:
`)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses global flags, loads the configuration and dispatches one command.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("logictl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "config file (default "+config.DefaultPath()+")")
	config.RegisterFlags(fs)
	fs.Usage = func() {
		usage(stderr)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(stdout, "logictl %s (%s)\n", version, buildDate)
		return 0
	}

	cfg, err := config.Load(*cfgPath, fs)
	if err != nil {
		return fail(stderr, fmt.Errorf("config: %w", err))
	}
	log, err := newLogger(cfg, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	defer func() { _ = log.Sync() }()

	if cmd == "store" {
		err = cmdStore(ctx, cfg, log, rest, stdout)
	} else {
		err = runApp(ctx, cfg, log, cmd, rest, stdin, stdout, stderr)
	}
	if errors.Is(err, errUsage) {
		usage(stderr)
		fs.PrintDefaults()
		return 2
	}
	return fail(stderr, err)
}

func runApp(ctx context.Context, cfg config.Config, log *zap.Logger, cmd string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	e, err := wire(ctx, cfg, log, bufio.NewReader(stdin), stdout, stderr)
	if err != nil {
		return err
	}
	err = e.dispatch(ctx, cmd, args)
	if cerr := e.close(ctx); err == nil {
		err = cerr
	}
	return err
}

var errUsage = errors.New("usage")

// fail prints err in user-facing form and returns the exit code.
func fail(w io.Writer, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 2
	}
	fmt.Fprintln(w, "error:", errs.Message(err))
	return 1
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
