package main

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/budgetr/pkg/client"
)

// runSetup handles the OAuth setup flow for Sheets export.
func (a *app) runSetup(ctx context.Context, args []string) error {
	fs := a.flagSet("setup", "")
	force := fs.Bool("force", false, "re-authenticate even if a token exists")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secretsPath := a.cfg.ClientSecretFile
	tokenFile := a.cfg.TokenFile

	fmt.Fprintln(a.out, "=== budgetr Setup ===")
	fmt.Fprintln(a.out)

	// Check if credentials file exists
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", secretsPath, secretsPath)
	}

	if !*force && client.HasToken(tokenFile) {
		fmt.Fprintf(a.out, "Already authenticated! Token file exists: %s\n", tokenFile)
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "To re-authenticate, run: budgetr setup -force")
		return nil
	}

	if *force {
		fmt.Fprintln(a.out, "Forcing re-authentication...")
		fmt.Fprintln(a.out)
	}

	fmt.Fprintln(a.out, "This will set up OAuth authentication with Google.")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Required permissions:")
	fmt.Fprintln(a.out, "  - Sheets: Read and write spreadsheets (to export categorized transactions)")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Starting authentication...")
	fmt.Fprintln(a.out)

	_, err := client.New(ctx, client.Config{
		SecretFile: secretsPath,
		TokenFile:  tokenFile,
		ForceAuth:  *force,
	}, sheets.SpreadsheetsScope)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "=== Setup Complete ===")
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "Token saved to: %s\n", tokenFile)
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Next steps:")
	fmt.Fprintln(a.out, "  1. Set GSHEETS_TITLE (new spreadsheet) or GSHEETS_ID (existing one)")
	fmt.Fprintln(a.out, "  2. Run 'budgetr categorize -sheets FILE...' to export")
	fmt.Fprintln(a.out)

	return nil
}
