package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/iabouzeid/gmailscreener/pkg/client"
	"github.com/iabouzeid/gmailscreener/pkg/config"
)

// runSetup handles the OAuth setup flow.
func runSetup(logger *slog.Logger, force bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println("=== Screener Setup ===")
	fmt.Println()

	if _, err := os.Stat(cfg.CredentialsFile); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", cfg.CredentialsFile, cfg.CredentialsFile)
	}

	if !force {
		if _, err := os.Stat(cfg.TokenFile); err == nil {
			fmt.Printf("Already authenticated! Token file exists: %s\n", cfg.TokenFile)
			fmt.Println()
			fmt.Println("To re-authenticate, run: screener setup --force")
			return nil
		}
	}

	if force {
		if err := os.Remove(cfg.TokenFile); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove existing token", "error", err)
		}
		fmt.Println("Forcing re-authentication...")
		fmt.Println()
	}

	fmt.Println("This will set up OAuth authentication with Google.")
	fmt.Println()
	fmt.Println("Required permissions:")
	fmt.Println("  - Gmail: Read emails (to search and fetch matching messages)")
	fmt.Println("  - Gmail: Send emails (to forward the generated report)")
	fmt.Println("  - Gmail: Modify emails (to mark processed messages as read)")
	fmt.Println()
	fmt.Println("Starting authentication...")
	fmt.Println()

	provider := client.Provider{SecretsPath: cfg.CredentialsFile, TokenPath: cfg.TokenFile}
	if _, err := provider.Client(context.Background(), scopes...); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Setup Complete ===")
	fmt.Println()
	fmt.Printf("Token saved to: %s\n", cfg.TokenFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Create a criteria file (default: %s)\n", config.DefaultCriteriaFile)
	fmt.Println("  2. Set SCREENER_FORWARD_TO to the report recipient")
	fmt.Println("  3. Run 'screener run' to screen and forward matching emails")
	fmt.Println()

	return nil
}
