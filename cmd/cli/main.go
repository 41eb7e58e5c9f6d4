package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/wadjakorntonsri/shortlink/pkg/app"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const usage = "expected 'migrate', 'links' or 'stats' subcommands"

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	linksCmd := flag.NewFlagSet("links", flag.ExitOnError)
	email := linksCmd.String("email", "", "owner email")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	switch os.Args[1] {
	case "migrate":
		// opening the store applies pending migrations
		log.Printf("Store %q is up to date", cfg.StorageDriver)
	case "links":
		linksCmd.Parse(os.Args[2:])
		if *email == "" {
			linksCmd.PrintDefaults()
			os.Exit(1)
		}
		if err := doExportLinks(ctx, store, *email); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
	case "stats":
		stats, err := services.NewStatsService(store, services.NewLedger(store, slog.Default())).Snapshot(ctx)
		if err != nil {
			log.Fatalf("Stats failed: %v", err)
		}
		fmt.Printf("users: %d\nlinks: %d\nclicks: %d\n", stats.Users, stats.Links, stats.Clicks)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func doExportLinks(ctx context.Context, store ports.Store, email string) error {
	user, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	links, err := store.ListLinksByOwner(ctx, user.ID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(links)
}
