package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/geocoder89/authgate/internal/client"
	"github.com/geocoder89/authgate/internal/client/cli"
	"github.com/geocoder89/authgate/internal/client/session"
	"github.com/geocoder89/authgate/internal/client/storage"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)

	baseURL := fs.String("url", envOr("AUTHGATE_URL", "http://localhost:8080"), "API base URL")
	sessionPath := fs.String("session", "", "session database (default: user config dir)")
	verbose := fs.Bool("v", false, "log session state changes to stderr")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := *sessionPath
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, "session path:", err)
			return 1
		}
		path = p
	}

	api, err := client.New(*baseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "session store:", err)
		return 1
	}
	defer db.Close()

	store := session.NewStore(api, db)

	if *verbose {
		log := slog.New(slog.NewTextHandler(os.Stderr, nil))
		store.Subscribe(func(s session.State) {
			log.Info("session", "status", s.Status, "error", s.Error)
		})
	}

	app := cli.New(store, os.Stdin, os.Stdout, cli.StdinTerminal()...)

	if err := app.Run(ctx, fs.Args()); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}

	return 0
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
