package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/iabouzeid/gmailscreener/pkg/client"
	"github.com/iabouzeid/gmailscreener/pkg/config"
	"github.com/iabouzeid/gmailscreener/pkg/query"
)

// runStatus checks the configuration and authentication status.
func runStatus() error {
	fmt.Println("=== Screener Status ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	allGood := true

	checkForwardAddress(cfg, &allGood)
	checkCriteria(cfg, &allGood)
	credentialsOK := checkCredentials(cfg, &allGood)
	token := checkToken(cfg, &allGood)

	if credentialsOK && token != nil {
		checkAPIConnectivity(cfg, &allGood)
	}

	fmt.Println()
	if allGood {
		fmt.Println("Status: ready")
		fmt.Println()
		fmt.Println("Run 'screener run' to screen and forward matching emails.")
	} else {
		fmt.Println("Status: configuration issues detected")
		fmt.Println()
		fmt.Println("Fix the issues above, then run 'screener status' again.")
	}

	return nil
}

func checkForwardAddress(cfg config.Config, allGood *bool) {
	fmt.Print("Forward address (SCREENER_FORWARD_TO): ")
	if cfg.ForwardTo == "" {
		fmt.Println("MISSING")
		*allGood = false
	} else {
		fmt.Println(cfg.ForwardTo)
	}
}

func checkCriteria(cfg config.Config, allGood *bool) {
	fmt.Printf("Criteria file (%s): ", cfg.CriteriaFile)
	criteria, err := query.Load(cfg.CriteriaFile)
	if err != nil {
		fmt.Printf("INVALID: %v\n", err)
		*allGood = false
		return
	}

	compiled := query.Compile(criteria)
	if compiled == "" {
		fmt.Println("ok (empty criteria, matches everything)")
	} else {
		fmt.Printf("ok, query: %q\n", compiled)
	}
}

func checkCredentials(cfg config.Config, allGood *bool) bool {
	fmt.Printf("Credentials file (%s): ", cfg.CredentialsFile)
	if _, err := os.Stat(cfg.CredentialsFile); os.IsNotExist(err) {
		fmt.Println("NOT FOUND")
		*allGood = false
		return false
	}
	fmt.Println("found")
	return true
}

func checkToken(cfg config.Config, allGood *bool) *oauth2.Token {
	fmt.Printf("OAuth token (%s): ", cfg.TokenFile)

	data, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("NOT FOUND (run 'screener setup')")
		} else {
			fmt.Printf("UNREADABLE: %v\n", err)
		}
		*allGood = false
		return nil
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		fmt.Println("INVALID FORMAT")
		*allGood = false
		return nil
	}

	if token.Expiry.Before(time.Now()) {
		fmt.Println("expired (will refresh on next run)")
	} else {
		fmt.Printf("valid (expires: %s)\n", token.Expiry.Format(time.RFC3339))
	}
	return &token
}

func checkAPIConnectivity(cfg config.Config, allGood *bool) {
	fmt.Print("Gmail API: ")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	provider := client.Provider{SecretsPath: cfg.CredentialsFile, TokenPath: cfg.TokenFile}
	httpClient, err := provider.Client(ctx, scopes...)
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		*allGood = false
		return
	}

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		*allGood = false
		return
	}

	// Listing labels is a cheap connectivity probe.
	if _, err := svc.Users.Labels.List("me").Context(ctx).Do(); err != nil {
		fmt.Printf("FAILED: %v\n", err)
		*allGood = false
		return
	}

	fmt.Println("connected")
}
