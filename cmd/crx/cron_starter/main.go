package main

import (
	"context"
	"log"
	"time"

	"github.com/crxbot/crx_agent/internal/config"
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

	// Create schedule ID with timestamp to make it unique
	scheduleID := "announce-new-preprints-cron-" + time.Now().Format("20060102-150405")

	log.Println("Creating announcement cron schedule...")
	_, err = c.ScheduleClient().Create(context.Background(), client.ScheduleOptions{
		ID: scheduleID,
		Spec: client.ScheduleSpec{
			// Check for new preprints every six hours.
			CronExpressions: []string{"0 */6 * * *"},
			TimeZoneName:    "UTC",
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        "announce-new-preprints-scheduled",
			TaskQueue: cfg.TaskQueue,
			Workflow:  crx.AnnounceNewPreprintsWorkflow,
			Args:      []interface{}{workflowParams},
		},
	})
	if err != nil {
		log.Fatalln("Unable to create schedule", err)
	}

	log.Printf("Successfully created announcement cron schedule: %s\n", scheduleID)
	log.Println("The workflow will run every six hours")
}
