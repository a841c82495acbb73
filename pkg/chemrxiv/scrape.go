package chemrxiv

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// FallbackThumbnail scrapes the og:image URL from a preprint's public page.
// Some records come back from the API without a thumb field, but the public
// page always carries a preview image in its Open Graph metadata.
func FallbackThumbnail(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", &RemoteError{URL: pageURL, StatusCode: res.StatusCode, Status: res.Status}
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	image, ok := doc.Find(`meta[property="og:image"]`).Attr("content")
	if !ok || image == "" {
		return "", fmt.Errorf("no og:image found at %s", pageURL)
	}

	return image, nil
}
