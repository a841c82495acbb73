package crx

import (
	"time"

	"github.com/crxbot/crx_agent/internal/pipeline"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// WorkflowParams contains everything AnnounceNewPreprintsWorkflow needs.
type WorkflowParams struct {
	IDLogPath     string `json:"id_log_path"`
	ChemrxivToken string `json:"chemrxiv_token"`
	AuthorPolicy  string `json:"author_policy"`

	// Twitter credentials
	TwitterAPIKey       string `json:"twitter_api_key"`
	TwitterAPISecret    string `json:"twitter_api_secret"`
	TwitterAccessToken  string `json:"twitter_access_token"`
	TwitterAccessSecret string `json:"twitter_access_token_secret"`

	// PauseSeconds is the advisory delay between processed preprints.
	PauseSeconds int `json:"pause_seconds"`

	// Post For Real
	PostForReal bool `json:"post_for_real"`
}

// AnnounceNewPreprintsWorkflow announces every preprint that is not yet in
// the identifier log. The workflow owns control flow and counters; all IO
// (listing, id log, detail fetch, posting) happens in activities. Per-item
// failures are recorded and the run continues; only listing and id-log
// failures abort it.
func AnnounceNewPreprintsWorkflow(ctx workflow.Context, params WorkflowParams) (pipeline.Counters, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 600 * time.Second,
		// A failed post is recorded as a failure and the run moves on;
		// there is no per-item retry policy.
		RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	var counters pipeline.Counters

	var processed []string
	err := workflow.ExecuteActivity(ctx, LoadProcessedIDsActivity, params.IDLogPath).Get(ctx, &processed)
	if err != nil {
		return counters, err
	}
	seen := make(map[string]struct{}, len(processed))
	for _, id := range processed {
		seen[id] = struct{}{}
	}

	var ids []string
	err = workflow.ExecuteActivity(ctx, ListPreprintIDsActivity, params.ChemrxivToken).Get(ctx, &ids)
	if err != nil {
		return counters, err
	}
	workflow.GetLogger(ctx).Info("Retrieved preprint listing", "count", len(ids), "alreadyProcessed", len(seen))

	pause := time.Duration(params.PauseSeconds) * time.Second
	if pause <= 0 {
		pause = 30 * time.Second
	}

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		workflow.GetLogger(ctx).Info("New preprint found", "id", id)

		// Pace the posting API; we wait on the timer at the end of the item.
		timer := workflow.NewTimer(ctx, pause)

		var ann Announcement
		err := workflow.ExecuteActivity(ctx, PrepareAnnouncementActivity, params.ChemrxivToken, params.AuthorPolicy, id).Get(ctx, &ann)
		if err != nil {
			// Detail fetch failed: leave the id unlogged so the next run
			// retries it, and continue with the other preprints.
			workflow.GetLogger(ctx).Warn("Failed to prepare announcement, will retry next run", "id", id, "error", err)
			continue
		}

		if ann.Unpostable != "" {
			workflow.GetLogger(ctx).Warn("NOTICE: cannot post announcement, please check manually",
				"id", id, "url", ann.URL, "reason", ann.Unpostable)
			counters.Failed++
		} else {
			err = workflow.ExecuteActivity(ctx, PublishAnnouncementActivity, PublishParams{
				TwitterAPIKey:       params.TwitterAPIKey,
				TwitterAPISecret:    params.TwitterAPISecret,
				TwitterAccessToken:  params.TwitterAccessToken,
				TwitterAccessSecret: params.TwitterAccessSecret,
				ImageURL:            ann.Thumb,
				Message:             ann.Message,
				ForReal:             params.PostForReal,
			}).Get(ctx, nil)
			if err != nil {
				workflow.GetLogger(ctx).Warn("Failed to publish announcement", "id", id, "error", err)
				counters.Failed++
			} else {
				counters.Posted++
			}
		}

		// Processing, not posting, gates the log: the id is committed for
		// every terminal outcome above.
		err = workflow.ExecuteActivity(ctx, AppendProcessedIDActivity, params.IDLogPath, id).Get(ctx, nil)
		if err != nil {
			return counters, err
		}
		counters.Discovered++

		timer.Get(ctx, nil)
	}

	workflow.GetLogger(ctx).Info("All preprints checked",
		"discovered", counters.Discovered,
		"posted", counters.Posted,
		"failed", counters.Failed)
	return counters, nil
}
