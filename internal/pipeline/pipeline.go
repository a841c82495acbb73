// Package pipeline runs one announcement batch: walk the preprint listing,
// skip everything already in the identifier log, and announce the rest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crxbot/crx_agent/pkg/announce"
	"github.com/crxbot/crx_agent/pkg/chemrxiv"
	"github.com/crxbot/crx_agent/pkg/idlog"
	"github.com/crxbot/crx_agent/pkg/publish"
)

// Iterator yields preprint summaries lazily; (nil, nil) ends the sequence.
type Iterator interface {
	Next(ctx context.Context) (*chemrxiv.PreprintSummary, error)
}

// Source is the slice of the chemRxiv client the pipeline depends on.
type Source interface {
	ListAll() Iterator
	Preprint(ctx context.Context, id string) (*chemrxiv.Preprint, error)
}

// Publisher posts one announcement with its thumbnail attached.
type Publisher interface {
	Publish(ctx context.Context, imageURL, message string) (string, error)
}

// ClientSource adapts a *chemrxiv.Client to the Source interface.
type ClientSource struct {
	Client *chemrxiv.Client
}

func (s ClientSource) ListAll() Iterator {
	return s.Client.ListAll()
}

func (s ClientSource) Preprint(ctx context.Context, id string) (*chemrxiv.Preprint, error) {
	return s.Client.Preprint(ctx, id)
}

// Counters are the per-run tallies reported in the end-of-run summary.
// Discovered = Posted + Failed for any run without a fatal error.
type Counters struct {
	Discovered int
	Posted     int
	Failed     int
}

// Pipeline processes each preprint sequentially: membership test against the
// id log, detail fetch, message build, publish, and an unconditional log
// append once the item has been processed.
type Pipeline struct {
	Source    Source
	Publisher Publisher
	Log       *idlog.Log

	// AuthorPolicy picks the credited author. Defaults to announce.LastAuthor.
	AuthorPolicy announce.AuthorPolicy

	// Pause is an advisory delay between processed items to stay inside the
	// posting API's rate limits. Zero disables it.
	Pause time.Duration

	Logger *slog.Logger
}

// Run walks the full listing once and returns the run counters. A listing
// page failure aborts the run; all per-item failures are recorded and the
// run continues with the next item.
func (p *Pipeline) Run(ctx context.Context) (Counters, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var counters Counters
	it := p.Source.ListAll()
	for {
		summary, err := it.Next(ctx)
		if err != nil {
			return counters, fmt.Errorf("listing fetch failed: %w", err)
		}
		if summary == nil {
			break
		}

		id := summary.ID.String()
		if p.Log.Contains(id) {
			continue
		}
		logger.Info("New preprint found", "id", id)

		pre, err := p.Source.Preprint(ctx, id)
		if err != nil {
			// Left unlogged on purpose: a transient detail failure should
			// not permanently suppress the announcement. The item is
			// re-seen as new on the next run.
			logger.Warn("Failed to fetch preprint detail, will retry next run", "id", id, "error", err)
			continue
		}

		p.processOne(ctx, logger, id, pre, &counters)

		logger.Info("Committing id to log", "id", id)
		if err := p.Log.Append(id); err != nil {
			return counters, fmt.Errorf("failed to record %s as processed: %w", id, err)
		}
		counters.Discovered++

		if p.Pause > 0 {
			select {
			case <-time.After(p.Pause):
			case <-ctx.Done():
				return counters, ctx.Err()
			}
		}
	}

	logger.Info("All preprints checked",
		"discovered", counters.Discovered,
		"posted", counters.Posted,
		"failed", counters.Failed)
	return counters, nil
}

// processOne runs the announce-and-post step for a single new preprint,
// incrementing exactly one of Posted or Failed.
func (p *Pipeline) processOne(ctx context.Context, logger *slog.Logger, id string, pre *chemrxiv.Preprint, counters *Counters) {
	policy := p.AuthorPolicy
	if policy == nil {
		policy = announce.LastAuthor
	}

	author, err := policy(pre.Authors)
	if err != nil {
		logger.Warn("NOTICE: cannot credit an author, please check manually",
			"id", id, "url", pre.CanonicalURL(), "error", err)
		counters.Failed++
		return
	}

	message, err := announce.Build(pre.Title, author, pre.CanonicalURL())
	if errors.Is(err, announce.ErrTooLong) {
		logger.Warn("NOTICE: announcement too long, please check manually",
			"id", id, "url", pre.CanonicalURL())
		counters.Failed++
		return
	}
	if err != nil {
		logger.Warn("Failed to build announcement", "id", id, "error", err)
		counters.Failed++
		return
	}

	thumb := pre.Thumb
	if thumb == "" && pre.URLPublicHTML != "" {
		thumb, err = chemrxiv.FallbackThumbnail(ctx, pre.URLPublicHTML)
		if err != nil {
			logger.Warn("Failed to scrape fallback thumbnail", "id", id, "error", err)
		}
	}
	if thumb == "" {
		logger.Warn("NOTICE: no thumbnail available, please check manually", "id", id)
		counters.Failed++
		return
	}

	logger.Info("Submitting announcement", "id", id)
	tweetID, err := p.Publisher.Publish(ctx, thumb, message)
	if err != nil {
		var pubErr *publish.Error
		if errors.As(err, &pubErr) {
			logger.Warn("Failed to publish announcement", "id", id, "stage", string(pubErr.Stage), "error", err)
		} else {
			logger.Warn("Failed to publish announcement", "id", id, "error", err)
		}
		counters.Failed++
		return
	}

	logger.Info("Announcement posted", "id", id, "tweetID", tweetID, "message", message)
	counters.Posted++
}
