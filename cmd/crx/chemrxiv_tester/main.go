package main

import (
	"context"
	"log"

	"github.com/crxbot/crx_agent/internal/config"
	"github.com/crxbot/crx_agent/pkg/chemrxiv"
)

func main() {
	cfg := config.Load()

	keys, err := config.LoadKeys(cfg.KeysPath)
	if err != nil {
		log.Fatalln("Unable to load credential bundle:", err)
	}

	client, err := chemrxiv.NewClient(keys.ChemrxivToken)
	if err != nil {
		log.Fatalf("Failed to authenticate with figshare: %v", err)
	}
	log.Println("Authenticated with figshare.")

	ctx := context.Background()

	// 1. Walk the first few entries of the listing.
	pager := client.ListAll()
	var firstID string
	for i := 0; i < 5; i++ {
		summary, err := pager.Next(ctx)
		if err != nil {
			log.Fatalf("Failed to list preprints: %v", err)
		}
		if summary == nil {
			log.Println("Listing exhausted.")
			break
		}
		if firstID == "" {
			firstID = summary.ID.String()
		}
		log.Printf("Summary %s: %s\n", summary.ID.String(), summary.Title)
	}
	if firstID == "" {
		log.Println("No preprints found.")
		return
	}

	// 2. Fetch full detail for the first one.
	log.Printf("\n--- Fetching detail for %s ---\n", firstID)
	pre, err := client.Preprint(ctx, firstID)
	if err != nil {
		log.Fatalf("Failed to fetch detail: %v", err)
	}
	log.Printf("Title: %s\n", pre.Title)
	log.Printf("Canonical URL: %s\n", pre.CanonicalURL())
	log.Printf("Thumb: %s\n", pre.Thumb)
	for _, author := range pre.Authors {
		log.Printf("Author: %s\n", author.FullName)
	}
	for name, value := range pre.CustomFieldMap() {
		log.Printf("Custom field %q: %s\n", name, value)
	}
}
