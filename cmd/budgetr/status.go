package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/budgetr/pkg/client"
	"github.com/ArionMiles/budgetr/pkg/rules"
)

// runStatus checks the configuration, rule storage and authentication status.
func (a *app) runStatus(ctx context.Context, args []string) error {
	fs := a.flagSet("status", "")
	online := fs.Bool("online", false, "also check Google Sheets API connectivity")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "=== budgetr Status ===")
	fmt.Fprintln(a.out)

	allGood := true
	a.checkRuleStorage(ctx, &allGood)

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Sheets export (optional):")
	hasSecret := a.checkCredentials()
	hasToken := a.checkTokenStatus()
	if *online && hasSecret && hasToken {
		a.checkSheetsAPI(ctx, &allGood)
	}

	a.printFinalStatus(allGood)
	return nil
}

func (a *app) checkRuleStorage(ctx context.Context, allGood *bool) {
	fmt.Fprintf(a.out, "Rule backend (%s): ", a.cfg.RulesBackend)
	storage, err := a.openStorage(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "✗ %v\n", err)
		*allGood = false
		return
	}

	loaded, err := storage.Load(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "✗ %v\n", err)
		*allGood = false
		return
	}
	fmt.Fprintf(a.out, "✓ %d rules\n", len(loaded))

	for _, i := range rules.Shadowed(loaded) {
		fmt.Fprintf(a.out, "  ⚠ rule %d (%q) never matches, an earlier keyword already covers it\n", i, loaded[i].Keyword)
	}
}

func (a *app) checkCredentials() bool {
	fmt.Fprintf(a.out, "  Credentials file (%s): ", a.cfg.ClientSecretFile)
	if _, err := os.Stat(a.cfg.ClientSecretFile); err != nil {
		fmt.Fprintln(a.out, "✗ Not found")
		return false
	}
	fmt.Fprintln(a.out, "✓ Found")
	return true
}

func (a *app) checkTokenStatus() bool {
	fmt.Fprintf(a.out, "  OAuth token (%s): ", a.cfg.TokenFile)
	token, err := client.LoadToken(a.cfg.TokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(a.out, "✗ Not found (run 'budgetr setup')")
		} else {
			fmt.Fprintln(a.out, "✗ Invalid format")
		}
		return false
	}

	if token.Expiry.Before(time.Now()) {
		fmt.Fprintln(a.out, "⚠ Expired (will refresh on next run)")
	} else {
		fmt.Fprintf(a.out, "✓ Valid (expires: %s)\n", token.Expiry.Format(time.RFC3339))
	}
	return true
}

func (a *app) checkSheetsAPI(ctx context.Context, allGood *bool) {
	fmt.Fprint(a.out, "  Sheets API: ")

	httpClient, err := client.New(ctx, client.Config{
		SecretFile: a.cfg.ClientSecretFile,
		TokenFile:  a.cfg.TokenFile,
	}, sheets.SpreadsheetsScope)
	if err != nil {
		fmt.Fprintf(a.out, "✗ %v\n", err)
		*allGood = false
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		fmt.Fprintf(a.out, "✗ creating service: %v\n", err)
		*allGood = false
		return
	}

	if a.cfg.GSheetsID == "" {
		fmt.Fprintln(a.out, "✓ Client ready (GSHEETS_ID not set, a new spreadsheet will be created)")
		return
	}

	sheet, err := svc.Spreadsheets.Get(a.cfg.GSheetsID).Context(ctx).Do()
	if err != nil {
		fmt.Fprintf(a.out, "✗ API call failed: %v\n", err)
		*allGood = false
		return
	}
	fmt.Fprintf(a.out, "✓ Connected (%s)\n", sheet.Properties.Title)
}

func (a *app) printFinalStatus(allGood bool) {
	fmt.Fprintln(a.out)
	if allGood {
		fmt.Fprintln(a.out, "Status: ✓ Ready")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Run 'budgetr categorize FILE...' to categorize a statement.")
	} else {
		fmt.Fprintln(a.out, "Status: ✗ Configuration issues detected")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Fix the issues above, then run 'budgetr status' again.")
	}
}
