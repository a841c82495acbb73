// Package publish posts an announcement with its thumbnail attached. The
// thumbnail is downloaded to a scoped temporary file which never outlives
// the publish call.
package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Stage identifies which step of publishing failed, so callers can tell a
// thumbnail-download failure apart from a posting failure.
type Stage string

const (
	StageDownload Stage = "download"
	StagePost     Stage = "post"
)

// Error wraps a publish failure with the stage it occurred in.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("publish: %s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Poster is the slice of the Twitter client that publishing needs.
type Poster interface {
	UploadMedia(ctx context.Context, path string) (string, error)
	PostTweet(ctx context.Context, text string, mediaIDs []string) (string, error)
}

// Publisher downloads a thumbnail and posts it with a message.
type Publisher struct {
	Poster Poster

	// HTTPClient is used for the thumbnail download. Defaults to a client
	// with a 15 second timeout.
	HTTPClient *http.Client

	// TempDir is where the downloaded thumbnail briefly lives. Defaults to
	// the system temp directory.
	TempDir string
}

// Publish downloads the resource at imageURL, posts message with it attached
// and returns the new post's id. The posting API is never invoked when the
// download fails, and the temporary file is removed on every exit path.
func (p *Publisher) Publish(ctx context.Context, imageURL, message string) (string, error) {
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", &Error{Stage: StageDownload, Err: err}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", &Error{Stage: StageDownload, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Stage: StageDownload, Err: fmt.Errorf("bad status from %s: %s", imageURL, resp.Status)}
	}

	f, err := os.CreateTemp(p.TempDir, "crx-thumb-*.jpg")
	if err != nil {
		return "", &Error{Stage: StageDownload, Err: err}
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	_, err = io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", &Error{Stage: StageDownload, Err: fmt.Errorf("failed to save thumbnail: %w", err)}
	}

	mediaID, err := p.Poster.UploadMedia(ctx, tmp)
	if err != nil {
		return "", &Error{Stage: StagePost, Err: err}
	}

	tweetID, err := p.Poster.PostTweet(ctx, message, []string{mediaID})
	if err != nil {
		return "", &Error{Stage: StagePost, Err: err}
	}

	return tweetID, nil
}
