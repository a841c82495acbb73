// Package twitter wraps the Twitter/X API v2 client with the v1.1 endpoints
// the bot still needs: credential verification and media upload.
package twitter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/dghubble/oauth1"
	twitterv2 "github.com/g8rswimmer/go-twitter/v2"
	"github.com/tidwall/gjson"
)

const (
	defaultAPIHost    = "https://api.twitter.com"
	defaultUploadHost = "https://upload.twitter.com"
)

// Client encapsulates the authenticated Twitter clients. Tweet creation goes
// through the v2 API; verification and media upload use the v1.1 endpoints,
// signed by the same oauth1 http.Client.
type Client struct {
	*twitterv2.Client
	httpClient *http.Client
	apiHost    string
	uploadHost string
}

// authorizer is a dummy struct to satisfy the go-twitter client interface.
// Authorization is already handled by the underlying oauth1 http.Client.
type authorizer struct{}

func (a *authorizer) Add(req *http.Request) {
	// No-op: the oauth1 http.Client signs every request itself.
}

// NewClientWithCredentials configures and returns a new Twitter client using
// the provided credentials.
func NewClientWithCredentials(consumerKey, consumerSecret, accessToken, accessTokenSecret string) (*Client, error) {
	if consumerKey == "" || consumerSecret == "" || accessToken == "" || accessTokenSecret == "" {
		return nil, fmt.Errorf("all credentials must be provided")
	}

	config := oauth1.NewConfig(consumerKey, consumerSecret)
	token := oauth1.NewToken(accessToken, accessTokenSecret)

	// An http.Client that automatically signs requests.
	httpClient := config.Client(context.Background(), token)

	client := &Client{
		Client: &twitterv2.Client{
			Authorizer: &authorizer{},
			Client:     httpClient,
			Host:       defaultAPIHost,
		},
		httpClient: httpClient,
		apiHost:    defaultAPIHost,
		uploadHost: defaultUploadHost,
	}

	return client, nil
}

// setHosts points the client at alternate API hosts. Used by tests.
func (c *Client) setHosts(api, upload string) {
	c.apiHost = api
	c.uploadHost = upload
	c.Client.Host = api
}

// Verify checks the credentials against the v1.1 verify_credentials endpoint
// and returns the authenticated account's screen name.
func (c *Client) Verify(ctx context.Context) (string, error) {
	url := c.apiHost + "/1.1/account/verify_credentials.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to verify credentials: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read verify response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("credential verification rejected: %s: %s", resp.Status, body)
	}

	screenName := gjson.GetBytes(body, "screen_name").String()
	if screenName == "" {
		return "", fmt.Errorf("verify response carried no screen_name")
	}
	return screenName, nil
}

// UploadMedia uploads the file at path to the v1.1 media endpoint and
// returns the media id to attach to a tweet.
func (c *Client) UploadMedia(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open media file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("media", "media")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to read media file: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	url := c.uploadHost + "/1.1/media/upload.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("media upload rejected: %s: %s", resp.Status, body)
	}

	mediaID := gjson.GetBytes(body, "media_id_string").String()
	if mediaID == "" {
		return "", fmt.Errorf("upload response carried no media_id_string")
	}
	return mediaID, nil
}

// PostTweet posts a single tweet, optionally with attached media. It returns
// the new tweet's ID on success.
func (c *Client) PostTweet(ctx context.Context, text string, mediaIDs []string) (string, error) {
	req := twitterv2.CreateTweetRequest{
		Text: text,
	}
	if len(mediaIDs) > 0 {
		req.Media = &twitterv2.CreateTweetMedia{
			IDs: mediaIDs,
		}
	}

	res, err := c.CreateTweet(ctx, req)
	if err != nil {
		// The library might wrap the original error, so keep the whole chain.
		return "", fmt.Errorf("error posting tweet: %w", err)
	}

	if res.Tweet == nil {
		return "", fmt.Errorf("twitter API returned an empty tweet object")
	}

	return res.Tweet.ID, nil
}
