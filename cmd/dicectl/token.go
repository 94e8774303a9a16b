package main

import (
	"errors"
	"flag"
	"os"
	"time"

	"github.com/pterm/pterm"

	"dicehouse/internal/server"
)

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sender := fs.String("sender", "", "address the token authenticates")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	tok, err := server.IssueToken([]byte(secret), *sender, *ttl, time.Now())
	if err != nil {
		return err
	}
	pterm.Info.Printfln("Token for %s, valid %s", *sender, *ttl)
	pterm.Println(tok)
	return nil
}
