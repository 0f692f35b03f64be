// Command budgetr categorizes bank statement exports with a learned keyword rule set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArionMiles/budgetr/pkg/config"
	"github.com/ArionMiles/budgetr/pkg/logging"
)

// errUsage marks errors caused by bad command line input.
var errUsage = errors.New("usage error")

const usage = `Usage: budgetr [-config FILE] [-env FILE] <command> [flags] [args]

Commands:
  categorize   Ingest statements, categorize them and print the table and report
  learn        Set the category of one transaction and learn a rule from it
  rules        List, add, update, remove, import or export rules
  report       Print spending by category, daily flow and top merchants
  setup        Authorize Google Sheets export
  status       Check configuration, rule storage and authorization

Run 'budgetr <command> -h' for command flags.
`

func main() {
	logCfg := logging.DefaultConfig()
	if os.Getenv("LOG_LEVEL") == "" {
		logCfg = logging.Quiet(logCfg)
	}
	logger := logging.Setup(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) error {
	global := flag.NewFlagSet("budgetr", flag.ContinueOnError)
	global.SetOutput(out)
	global.Usage = func() { fmt.Fprint(out, usage) }
	configFile := global.String("config", "", "JSON config file")
	envFile := global.String("env", ".env", "dotenv file")
	if err := global.Parse(args); err != nil {
		return err
	}

	if global.NArg() == 0 {
		global.Usage()
		return fmt.Errorf("%w: no command given", errUsage)
	}

	cfg, err := config.Load(config.Sources{EnvFile: *envFile, ConfigFile: *configFile})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, out: out}
	defer a.close()

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "categorize":
		return a.runCategorize(ctx, rest)
	case "learn":
		return a.runLearn(ctx, rest)
	case "rules":
		return a.runRules(ctx, rest)
	case "report":
		return a.runReport(ctx, rest)
	case "setup":
		return a.runSetup(ctx, rest)
	case "status":
		return a.runStatus(ctx, rest)
	case "help":
		global.Usage()
		return nil
	default:
		global.Usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}
