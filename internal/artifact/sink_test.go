// internal/artifact/sink_test.go
package artifact

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/valpere/TikTokIngester/internal/blob"
	"github.com/valpere/TikTokIngester/internal/extract"
)

func TestBlobSink_WriteProfile(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	sink := NewBlobSink(store, "processed")

	profile := extract.NewProfile()
	profile.Username = "demo"
	profile.FollowerCount = 100
	profile.ScrapeTimestamp = "2024-03-01T12:30:00Z"

	if err := sink.WriteProfile(ctx, profile); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	content, err := store.ReadText(ctx, "processed", "profiles/demo/20240301-123000.json")
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var decoded extract.Profile
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if decoded.Username != "demo" || decoded.FollowerCount != 100 {
		t.Errorf("artifact round trip = %+v", decoded)
	}
}

func TestBlobSink_WriteVideosNDJSON(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	sink := NewBlobSink(store, "processed")

	v1 := extract.NewVideo()
	v1.URL = "https://www.tiktok.com/@demo/video/1"
	v1.ScrapeTimestamp = "2024-03-01T12:30:00Z"
	v2 := extract.NewVideo()
	v2.URL = "https://www.tiktok.com/@demo/video/2"
	v2.ScrapeTimestamp = "2024-03-01T12:30:00Z"

	if err := sink.WriteVideos(ctx, "demo", []extract.Video{v1, v2}); err != nil {
		t.Fatalf("write videos: %v", err)
	}

	content, err := store.ReadText(ctx, "processed", "videos/demo/20240301-123000.json")
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 NDJSON lines, got %d", len(lines))
	}
	for i, line := range lines {
		var decoded extract.Video
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("line %d not valid JSON: %v", i, err)
		}
	}
}

func TestBlobSink_EmptyVideoBatch(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	sink := NewBlobSink(store, "processed")

	if err := sink.WriteVideos(ctx, "demo", nil); err != nil {
		t.Fatalf("empty batch should be a no-op, got %v", err)
	}
	objects, _ := store.List(ctx, "processed", "")
	if len(objects) != 0 {
		t.Errorf("no artifact expected for an empty batch, got %v", objects)
	}
}

// Replaying the same run must overwrite its own artifact, not add another.
func TestBlobSink_ReplayOverwrites(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	sink := NewBlobSink(store, "processed")

	profile := extract.NewProfile()
	profile.Username = "demo"
	profile.ScrapeTimestamp = "2024-03-01T12:30:00Z"

	for i := 0; i < 2; i++ {
		if err := sink.WriteProfile(ctx, profile); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	objects, _ := store.List(ctx, "processed", "profiles/demo/")
	if len(objects) != 1 {
		t.Errorf("expected exactly one artifact after replay, got %v", objects)
	}
}
