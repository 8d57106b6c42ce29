// internal/artifact/sink.go

// Package artifact persists the extracted JSON documents alongside each load:
// one object per extraction run per entity type. The copies exist for replay
// and audit, not for correctness of the load itself.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valpere/TikTokIngester/internal/blob"
	"github.com/valpere/TikTokIngester/internal/extract"
)

// Sink records the canonical output of one extraction run.
type Sink interface {
	WriteProfile(ctx context.Context, profile extract.Profile) error
	WriteVideos(ctx context.Context, username string, videos []extract.Video) error
}

// runStamp derives a filesystem-friendly stamp from the run's scrape
// timestamp so replaying the same raw document overwrites its own artifacts
// instead of accumulating near-duplicates.
func runStamp(scrapeTimestamp string) string {
	if t, err := time.Parse(time.RFC3339, scrapeTimestamp); err == nil {
		return t.UTC().Format("20060102-150405")
	}
	return time.Now().UTC().Format("20060102-150405")
}

// BlobSink writes artifacts into a processed-documents bucket.
type BlobSink struct {
	store  blob.Store
	bucket string
}

// NewBlobSink creates a sink writing to the given bucket.
func NewBlobSink(store blob.Store, bucket string) *BlobSink {
	return &BlobSink{store: store, bucket: bucket}
}

// WriteProfile stores the profile as one JSON object.
func (s *BlobSink) WriteProfile(ctx context.Context, profile extract.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("artifact: marshal profile: %w", err)
	}
	object := fmt.Sprintf("profiles/%s/%s.json", profile.Username, runStamp(profile.ScrapeTimestamp))
	if err := s.store.WriteText(ctx, s.bucket, object, string(data)); err != nil {
		return fmt.Errorf("artifact: write profile: %w", err)
	}
	return nil
}

// WriteVideos stores the batch as newline-delimited JSON, one video per line.
func (s *BlobSink) WriteVideos(ctx context.Context, username string, videos []extract.Video) error {
	if len(videos) == 0 {
		return nil
	}
	var b strings.Builder
	for _, v := range videos {
		line, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("artifact: marshal video: %w", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	object := fmt.Sprintf("videos/%s/%s.json", username, runStamp(videos[0].ScrapeTimestamp))
	if err := s.store.WriteText(ctx, s.bucket, object, b.String()); err != nil {
		return fmt.Errorf("artifact: write videos: %w", err)
	}
	return nil
}
