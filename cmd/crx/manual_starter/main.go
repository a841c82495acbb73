package main

import (
	"context"
	"log"
	"time"

	"github.com/crxbot/crx_agent/internal/config"
	"github.com/crxbot/crx_agent/internal/pipeline"
	"github.com/crxbot/crx_agent/internal/workflows/crx"
	"go.temporal.io/sdk/client"
)

func main() {
	cfg := config.Load()

	keys, err := config.LoadKeys(cfg.KeysPath)
	if err != nil {
		log.Fatalln("Unable to load credential bundle:", err)
	}

	workflowParams := crx.WorkflowParams{
		IDLogPath:     cfg.IDLogPath,
		ChemrxivToken: keys.ChemrxivToken,
		AuthorPolicy:  cfg.AuthorPolicy,

		TwitterAPIKey:       keys.TwitterAPIKey,
		TwitterAPISecret:    keys.TwitterAPISecret,
		TwitterAccessToken:  keys.TwitterAccessToken,
		TwitterAccessSecret: keys.TwitterAccessSecret,

		PauseSeconds: int(cfg.PostInterval.Seconds()),
		PostForReal:  cfg.PostForReal,
	}

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalln("Unable to create Temporal client", err)
	}
	defer c.Close()

	workflowOptions := client.StartWorkflowOptions{
		ID:        "announce-new-preprints-" + time.Now().Format("20060102-150405"),
		TaskQueue: cfg.TaskQueue,
	}

	log.Println("Starting AnnounceNewPreprintsWorkflow...")
	we, err := c.ExecuteWorkflow(context.Background(), workflowOptions, crx.AnnounceNewPreprintsWorkflow, workflowParams)
	if err != nil {
		log.Fatalln("Unable to execute AnnounceNewPreprintsWorkflow", err)
	}

	log.Printf("Started AnnounceNewPreprintsWorkflow: %s, RunID: %s\n", we.GetID(), we.GetRunID())

	// Wait for workflow completion
	var counters pipeline.Counters
	if err := we.Get(context.Background(), &counters); err != nil {
		log.Fatalln("AnnounceNewPreprintsWorkflow execution failed", err)
	}

	log.Printf("Run complete: discovered %d, posted %d, failed %d\n",
		counters.Discovered, counters.Posted, counters.Failed)
}
