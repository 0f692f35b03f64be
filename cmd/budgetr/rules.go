package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ArionMiles/budgetr/pkg/api"
	"github.com/ArionMiles/budgetr/pkg/ruleio"
	"github.com/ArionMiles/budgetr/pkg/session"
)

const rulesUsage = `Usage: budgetr rules <subcommand> [flags]

Subcommands:
  list                                  Show rules in match order
  add -keyword K -category C            Append a rule
  update -index N -keyword K -category C
                                        Replace the rule at N
  remove -index N                       Delete the rule at N
  import FILE                           Replace all rules with FILE (.json, .yaml)
  export FILE                           Write all rules to FILE (.json, .yaml)
`

func (a *app) runRules(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, rulesUsage)
		return fmt.Errorf("%w: no rules subcommand given", errUsage)
	}

	s, err := a.newSession(ctx)
	if err != nil {
		return err
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		printRules(a.out, s.Rules())
		return nil

	case "add":
		fs := a.flagSet("rules add", "")
		keyword := fs.String("keyword", "", "case-insensitive substring to match")
		category := fs.String("category", "", "category to assign")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := s.AddRule(api.Rule{Keyword: *keyword, Category: *category}); err != nil {
			return err
		}

	case "update":
		fs := a.flagSet("rules update", "")
		index := fs.Int("index", -1, "rule number (see 'rules list')")
		keyword := fs.String("keyword", "", "case-insensitive substring to match")
		category := fs.String("category", "", "category to assign")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := s.UpdateRule(*index, api.Rule{Keyword: *keyword, Category: *category}); err != nil {
			return err
		}

	case "remove":
		fs := a.flagSet("rules remove", "")
		index := fs.Int("index", -1, "rule number (see 'rules list')")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := s.RemoveRule(*index); err != nil {
			return err
		}

	case "import":
		if len(rest) != 1 {
			return fmt.Errorf("%w: rules import takes exactly one file", errUsage)
		}
		f, err := os.Open(rest[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", rest[0], err)
		}
		defer f.Close()

		if err := s.ImportRules(f, ruleio.FormatFromPath(rest[0])); err != nil {
			return err
		}

	case "export":
		if len(rest) != 1 {
			return fmt.Errorf("%w: rules export takes exactly one file", errUsage)
		}
		return a.exportRules(s, rest[0])

	default:
		fmt.Fprint(a.out, rulesUsage)
		return fmt.Errorf("%w: unknown rules subcommand %q", errUsage, sub)
	}

	printRules(a.out, s.Rules())
	return nil
}

func (a *app) exportRules(s *session.Session, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := s.ExportRules(f, ruleio.FormatFromPath(path)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	fmt.Fprintf(a.out, "Rules exported to %s\n", path)
	return nil
}
