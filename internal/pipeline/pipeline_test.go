package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crxbot/crx_agent/pkg/chemrxiv"
	"github.com/crxbot/crx_agent/pkg/idlog"
	"github.com/crxbot/crx_agent/pkg/publish"
)

type fakeIterator struct {
	items []chemrxiv.PreprintSummary
	pos   int
	err   error // returned once the items are drained
}

func (it *fakeIterator) Next(ctx context.Context) (*chemrxiv.PreprintSummary, error) {
	if it.pos < len(it.items) {
		s := &it.items[it.pos]
		it.pos++
		return s, nil
	}
	if it.err != nil {
		return nil, it.err
	}
	return nil, nil
}

type fakeSource struct {
	ids         []string
	listErr     error
	details     map[string]*chemrxiv.Preprint
	detailErrs  map[string]error
	detailCalls []string
}

func (s *fakeSource) ListAll() Iterator {
	items := make([]chemrxiv.PreprintSummary, len(s.ids))
	for i, id := range s.ids {
		items[i] = chemrxiv.PreprintSummary{ID: json.Number(id)}
	}
	return &fakeIterator{items: items, err: s.listErr}
}

func (s *fakeSource) Preprint(ctx context.Context, id string) (*chemrxiv.Preprint, error) {
	s.detailCalls = append(s.detailCalls, id)
	if err, ok := s.detailErrs[id]; ok {
		return nil, err
	}
	pre, ok := s.details[id]
	if !ok {
		return nil, fmt.Errorf("no detail stubbed for %s", id)
	}
	return pre, nil
}

type publishCall struct {
	imageURL string
	message  string
}

type fakePublisher struct {
	err   error
	calls []publishCall
}

func (p *fakePublisher) Publish(ctx context.Context, imageURL, message string) (string, error) {
	p.calls = append(p.calls, publishCall{imageURL: imageURL, message: message})
	if p.err != nil {
		return "", p.err
	}
	return "tweet-1", nil
}

func detail(id, title, author, doi, thumb string) *chemrxiv.Preprint {
	return &chemrxiv.Preprint{
		ID:      json.Number(id),
		Title:   title,
		DOI:     doi,
		Thumb:   thumb,
		Authors: []chemrxiv.Author{{FullName: author}},
	}
}

func openLog(t *testing.T, seeded ...string) *idlog.Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "id_log.txt")
	if len(seeded) > 0 {
		if err := os.WriteFile(path, []byte(strings.Join(seeded, "\n")+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	log, err := idlog.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestRunEndToEnd(t *testing.T) {
	src := &fakeSource{
		ids: []string{"1", "2", "3"},
		details: map[string]*chemrxiv.Preprint{
			"3": detail("3", "Foo", "Bar", "10.1/abc", "https://img.example.org/3.jpg"),
		},
	}
	pub := &fakePublisher{}
	log := openLog(t, "1", "2")

	p := &Pipeline{Source: src, Publisher: pub, Log: log}
	counters, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	want := Counters{Discovered: 1, Posted: 1, Failed: 0}
	if counters != want {
		t.Errorf("Run() counters = %+v, want %+v", counters, want)
	}

	// Only the new item gets a detail fetch.
	if len(src.detailCalls) != 1 || src.detailCalls[0] != "3" {
		t.Errorf("Detail fetched for %v, want [3]", src.detailCalls)
	}

	if len(pub.calls) != 1 {
		t.Fatalf("Publisher invoked %d times, want 1", len(pub.calls))
	}
	wantMsg := "Foo by Bar & co-workers\n\nhttps://doi.org/10.1/abc"
	if pub.calls[0].message != wantMsg {
		t.Errorf("Published message %q, want %q", pub.calls[0].message, wantMsg)
	}
	if pub.calls[0].imageURL != "https://img.example.org/3.jpg" {
		t.Errorf("Published image %q, want the detail thumb", pub.calls[0].imageURL)
	}

	for _, id := range []string{"1", "2", "3"} {
		if !log.Contains(id) {
			t.Errorf("Expected id log to contain %q after the run", id)
		}
	}
}

func TestRunIdempotency(t *testing.T) {
	src := &fakeSource{ids: []string{"1", "2"}}
	pub := &fakePublisher{}
	log := openLog(t, "1", "2")

	p := &Pipeline{Source: src, Publisher: pub, Log: log}
	counters, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	if counters != (Counters{}) {
		t.Errorf("Expected zero counters for an all-seen run, got %+v", counters)
	}
	if len(src.detailCalls) != 0 {
		t.Errorf("Detail must not be fetched for logged ids, fetched %v", src.detailCalls)
	}
	if len(pub.calls) != 0 {
		t.Errorf("Publisher must not be invoked for logged ids, invoked %d times", len(pub.calls))
	}
}

func TestRunTooLongMessageIsLoggedAsFailed(t *testing.T) {
	longTitle := strings.Repeat("x", 300)
	src := &fakeSource{
		ids: []string{"9"},
		details: map[string]*chemrxiv.Preprint{
			"9": detail("9", longTitle, "Bar", "10.1/long", "https://img.example.org/9.jpg"),
		},
	}
	pub := &fakePublisher{}
	log := openLog(t)

	p := &Pipeline{Source: src, Publisher: pub, Log: log}
	counters, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	want := Counters{Discovered: 1, Posted: 0, Failed: 1}
	if counters != want {
		t.Errorf("Run() counters = %+v, want %+v", counters, want)
	}
	if len(pub.calls) != 0 {
		t.Error("Publisher must not be invoked for an over-length message")
	}
	// Logged anyway, so the item is never reprocessed.
	if !log.Contains("9") {
		t.Error("Expected the over-length item to be recorded as processed")
	}
}

func TestRunPublishFailureStillLogs(t *testing.T) {
	src := &fakeSource{
		ids: []string{"5"},
		details: map[string]*chemrxiv.Preprint{
			"5": detail("5", "T", "A", "10.1/x", "https://img.example.org/5.jpg"),
		},
	}
	pub := &fakePublisher{err: &publish.Error{Stage: publish.StageDownload, Err: errors.New("404")}}
	log := openLog(t)

	p := &Pipeline{Source: src, Publisher: pub, Log: log}
	counters, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	want := Counters{Discovered: 1, Posted: 0, Failed: 1}
	if counters != want {
		t.Errorf("Run() counters = %+v, want %+v", counters, want)
	}
	if !log.Contains("5") {
		t.Error("Expected the failed item to be recorded as processed")
	}
}

func TestRunDetailFailureLeavesUnlogged(t *testing.T) {
	src := &fakeSource{
		ids:        []string{"7", "8"},
		detailErrs: map[string]error{"7": errors.New("detail boom")},
		details: map[string]*chemrxiv.Preprint{
			"8": detail("8", "T", "A", "10.1/y", "https://img.example.org/8.jpg"),
		},
	}
	pub := &fakePublisher{}
	log := openLog(t)

	p := &Pipeline{Source: src, Publisher: pub, Log: log}
	counters, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	// The failed item is skipped entirely and stays out of the log so the
	// next run retries it; the run continues with the remaining items.
	want := Counters{Discovered: 1, Posted: 1, Failed: 0}
	if counters != want {
		t.Errorf("Run() counters = %+v, want %+v", counters, want)
	}
	if log.Contains("7") {
		t.Error("A detail-fetch failure must leave the id unlogged")
	}
	if !log.Contains("8") {
		t.Error("Expected the following item to be processed and logged")
	}
}

func TestRunListingFailureAbortsRun(t *testing.T) {
	src := &fakeSource{
		ids:     []string{"1"},
		listErr: errors.New("page fetch boom"),
		details: map[string]*chemrxiv.Preprint{
			"1": detail("1", "T", "A", "10.1/z", "https://img.example.org/1.jpg"),
		},
	}
	log := openLog(t)

	p := &Pipeline{Source: src, Publisher: &fakePublisher{}, Log: log}
	counters, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("Expected a listing failure to abort the run, but got nil")
	}
	// Items processed before the failing page stay processed.
	if counters.Discovered != 1 {
		t.Errorf("Expected 1 discovered before the abort, got %d", counters.Discovered)
	}
}

func TestRunCounterConsistency(t *testing.T) {
	longTitle := strings.Repeat("x", 300)
	src := &fakeSource{
		ids: []string{"1", "2", "3", "4"},
		details: map[string]*chemrxiv.Preprint{
			"1": detail("1", "A", "AA", "10.1/1", "https://img.example.org/1.jpg"),
			"2": detail("2", longTitle, "BB", "10.1/2", "https://img.example.org/2.jpg"),
			"3": detail("3", "C", "CC", "10.1/3", "https://img.example.org/3.jpg"),
			// No authors: cannot credit anyone, counted as failed.
			"4": {ID: json.Number("4"), Title: "D", DOI: "10.1/4", Thumb: "https://img.example.org/4.jpg"},
		},
	}
	pub := &fakePublisher{}
	log := openLog(t)

	p := &Pipeline{Source: src, Publisher: pub, Log: log}
	counters, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	if counters.Discovered != counters.Posted+counters.Failed {
		t.Errorf("Counter invariant violated: %+v", counters)
	}
	want := Counters{Discovered: 4, Posted: 2, Failed: 2}
	if counters != want {
		t.Errorf("Run() counters = %+v, want %+v", counters, want)
	}
}
