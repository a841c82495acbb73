package crx

import (
	"context"
	"errors"
	"fmt"

	"github.com/crxbot/crx_agent/pkg/announce"
	"github.com/crxbot/crx_agent/pkg/chemrxiv"
	"github.com/crxbot/crx_agent/pkg/idlog"
	"github.com/crxbot/crx_agent/pkg/publish"
	"github.com/crxbot/crx_agent/pkg/twitter"
	"go.temporal.io/sdk/activity"
)

// Announcement is the prepared, not-yet-posted content for one preprint.
// An item that cannot be posted (over-length message, no creditable author,
// no thumbnail) is expected data, not an activity error, so the workflow can
// count it as failed and still commit the id.
type Announcement struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Thumb   string `json:"thumb"`
	URL     string `json:"url"`

	// Unpostable holds the reason the item cannot be announced; empty
	// means the announcement is ready to post.
	Unpostable string `json:"unpostable,omitempty"`
}

// PublishParams carries the credentials and content for one post.
type PublishParams struct {
	TwitterAPIKey       string `json:"twitter_api_key"`
	TwitterAPISecret    string `json:"twitter_api_secret"`
	TwitterAccessToken  string `json:"twitter_access_token"`
	TwitterAccessSecret string `json:"twitter_access_token_secret"`
	ImageURL            string `json:"image_url"`
	Message             string `json:"message"`
	ForReal             bool   `json:"for_real"`
}

// LoadProcessedIDsActivity reads the identifier log and returns every id
// processed by previous runs.
func LoadProcessedIDsActivity(ctx context.Context, path string) ([]string, error) {
	activity.GetLogger(ctx).Info("Executing LoadProcessedIDsActivity", "path", path)

	log, err := idlog.Open(path)
	if err != nil {
		activity.GetLogger(ctx).Error("LoadProcessedIDsActivity failed", "error", err)
		return nil, fmt.Errorf("failed to load id log: %w", err)
	}
	defer log.Close()

	ids := log.IDs()
	activity.GetLogger(ctx).Info("LoadProcessedIDsActivity completed successfully", "idsLoaded", len(ids))
	return ids, nil
}

// AppendProcessedIDActivity durably records one id as processed.
func AppendProcessedIDActivity(ctx context.Context, path, id string) error {
	activity.GetLogger(ctx).Info("Executing AppendProcessedIDActivity", "path", path, "id", id)

	log, err := idlog.Open(path)
	if err != nil {
		activity.GetLogger(ctx).Error("AppendProcessedIDActivity failed", "error", err)
		return fmt.Errorf("failed to open id log: %w", err)
	}
	defer log.Close()

	// The workflow may retry this activity after a partial failure, so an
	// already-present id is simply left alone.
	if log.Contains(id) {
		return nil
	}
	if err := log.Append(id); err != nil {
		activity.GetLogger(ctx).Error("AppendProcessedIDActivity failed", "error", err)
		return fmt.Errorf("failed to append id: %w", err)
	}

	activity.GetLogger(ctx).Info("AppendProcessedIDActivity completed successfully", "id", id)
	return nil
}

// ListPreprintIDsActivity drains the paginated chemRxiv listing and returns
// every summary id.
func ListPreprintIDsActivity(ctx context.Context, token string) ([]string, error) {
	activity.GetLogger(ctx).Info("Executing ListPreprintIDsActivity")

	client, err := chemrxiv.NewClient(token)
	if err != nil {
		activity.GetLogger(ctx).Error("ListPreprintIDsActivity failed to create client", "error", err)
		return nil, fmt.Errorf("failed to create chemrxiv client: %w", err)
	}

	var ids []string
	pager := client.ListAll()
	for {
		summary, err := pager.Next(ctx)
		if err != nil {
			activity.GetLogger(ctx).Error("ListPreprintIDsActivity failed", "error", err)
			return nil, fmt.Errorf("failed to list preprints: %w", err)
		}
		if summary == nil {
			break
		}
		ids = append(ids, summary.ID.String())
	}

	activity.GetLogger(ctx).Info("ListPreprintIDsActivity completed successfully", "idsFound", len(ids))
	return ids, nil
}

// PrepareAnnouncementActivity fetches a preprint's detail and builds its
// announcement message and thumbnail.
func PrepareAnnouncementActivity(ctx context.Context, token, authorPolicy, id string) (*Announcement, error) {
	activity.GetLogger(ctx).Info("Executing PrepareAnnouncementActivity", "id", id)

	client, err := chemrxiv.NewClient(token)
	if err != nil {
		activity.GetLogger(ctx).Error("PrepareAnnouncementActivity failed to create client", "error", err)
		return nil, fmt.Errorf("failed to create chemrxiv client: %w", err)
	}

	pre, err := client.Preprint(ctx, id)
	if err != nil {
		activity.GetLogger(ctx).Error("PrepareAnnouncementActivity failed", "error", err)
		return nil, fmt.Errorf("failed to fetch preprint detail: %w", err)
	}

	ann := &Announcement{ID: id, URL: pre.CanonicalURL(), Thumb: pre.Thumb}

	author, err := announce.PolicyByName(authorPolicy)(pre.Authors)
	if err != nil {
		ann.Unpostable = "cannot credit an author: " + err.Error()
		return ann, nil
	}

	if ann.Thumb == "" && pre.URLPublicHTML != "" {
		thumb, err := chemrxiv.FallbackThumbnail(ctx, pre.URLPublicHTML)
		if err != nil {
			activity.GetLogger(ctx).Warn("Failed to scrape fallback thumbnail", "id", id, "error", err)
		} else {
			ann.Thumb = thumb
		}
	}
	if ann.Thumb == "" {
		ann.Unpostable = "no thumbnail available"
		return ann, nil
	}

	message, err := announce.Build(pre.Title, author, pre.CanonicalURL())
	if errors.Is(err, announce.ErrTooLong) {
		ann.Unpostable = "announcement too long"
		activity.GetLogger(ctx).Info("PrepareAnnouncementActivity completed: announcement too long", "id", id)
		return ann, nil
	}
	if err != nil {
		return nil, err
	}
	ann.Message = message

	activity.GetLogger(ctx).Info("PrepareAnnouncementActivity completed successfully",
		"id", id, "messageLength", len(message))
	return ann, nil
}

// PublishAnnouncementActivity downloads the thumbnail and posts the
// announcement to Twitter.
func PublishAnnouncementActivity(ctx context.Context, params PublishParams) error {
	if !params.ForReal {
		activity.GetLogger(ctx).Info("PublishAnnouncementActivity completed successfully (but not for real)",
			"message", params.Message)
		return nil
	}

	activity.GetLogger(ctx).Info("Executing PublishAnnouncementActivity", "messageLength", len(params.Message))

	client, err := twitter.NewClientWithCredentials(
		params.TwitterAPIKey, params.TwitterAPISecret,
		params.TwitterAccessToken, params.TwitterAccessSecret)
	if err != nil {
		activity.GetLogger(ctx).Error("PublishAnnouncementActivity failed to create Twitter client", "error", err)
		return fmt.Errorf("failed to create Twitter client: %w", err)
	}

	publisher := &publish.Publisher{Poster: client}
	tweetID, err := publisher.Publish(ctx, params.ImageURL, params.Message)
	if err != nil {
		activity.GetLogger(ctx).Error("PublishAnnouncementActivity failed", "error", err)
		return fmt.Errorf("failed to publish announcement: %w", err)
	}

	activity.GetLogger(ctx).Info("PublishAnnouncementActivity completed successfully", "tweetID", tweetID)
	return nil
}
