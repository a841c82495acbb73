package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/crxbot/crx_agent/internal/config"
	"github.com/crxbot/crx_agent/internal/pipeline"
	"github.com/crxbot/crx_agent/pkg/announce"
	"github.com/crxbot/crx_agent/pkg/chemrxiv"
	"github.com/crxbot/crx_agent/pkg/idlog"
	"github.com/crxbot/crx_agent/pkg/publish"
	"github.com/crxbot/crx_agent/pkg/runlog"
	"github.com/crxbot/crx_agent/pkg/twitter"
)

// dryRunPublisher logs what would have been posted instead of posting it.
type dryRunPublisher struct {
	logger *slog.Logger
}

func (p dryRunPublisher) Publish(ctx context.Context, imageURL, message string) (string, error) {
	p.logger.Info("Announcement posted (but not for real)", "image", imageURL, "message", message)
	return "dry-run", nil
}

func main() {
	cfg := config.Load()

	logger, closer, err := runlog.Open(cfg.ActivityLogPath)
	if err != nil {
		log.Fatalln("Unable to open activity log:", err)
	}
	defer closer.Close()

	keys, err := config.LoadKeys(cfg.KeysPath)
	if err != nil {
		logger.Error("Unable to load credential bundle", "error", err)
		os.Exit(1)
	}
	logger.Info("Keys, tokens and secrets successfully loaded")

	ctx := context.Background()

	twitterClient, err := twitter.NewClientWithCredentials(
		keys.TwitterAPIKey, keys.TwitterAPISecret,
		keys.TwitterAccessToken, keys.TwitterAccessSecret)
	if err != nil {
		logger.Error("Unable to create Twitter client", "error", err)
		os.Exit(1)
	}
	screenName, err := twitterClient.Verify(ctx)
	if err != nil {
		logger.Error("Twitter authentication did not succeed", "error", err)
		os.Exit(1)
	}
	logger.Info("Authenticated with Twitter", "screenName", screenName)

	crxClient, err := chemrxiv.NewClient(keys.ChemrxivToken)
	if err != nil {
		logger.Error("chemRxiv authentication did not succeed", "error", err)
		os.Exit(1)
	}
	logger.Info("Authenticated with figshare")

	idLog, err := idlog.Open(cfg.IDLogPath)
	if err != nil {
		logger.Error("Unable to load id log", "error", err)
		os.Exit(1)
	}
	defer idLog.Close()
	logger.Info("ID log successfully loaded", "entries", idLog.Len())

	var publisher pipeline.Publisher = &publish.Publisher{Poster: twitterClient}
	if !cfg.PostForReal {
		publisher = dryRunPublisher{logger: logger}
	}

	p := &pipeline.Pipeline{
		Source:       pipeline.ClientSource{Client: crxClient},
		Publisher:    publisher,
		Log:          idLog,
		AuthorPolicy: announce.PolicyByName(cfg.AuthorPolicy),
		Pause:        cfg.PostInterval,
		Logger:       logger,
	}

	counters, err := p.Run(ctx)
	if err != nil {
		logger.Error("Run aborted", "error", err,
			"discovered", counters.Discovered,
			"posted", counters.Posted,
			"failed", counters.Failed)
		os.Exit(1)
	}
}
