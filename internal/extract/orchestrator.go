// internal/extract/orchestrator.go
package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/TikTokIngester/internal/utils"
)

// Orchestrator runs the extraction strategies against one document and
// produces the canonical records. Profile and video sourcing are decided
// independently: a document can carry a rich JSON profile next to an empty
// JSON video list, and coupling the fallbacks would drop good data.
type Orchestrator struct {
	structured *StructuredExtractor
	markup     *MarkupExtractor
	logger     utils.Logger
}

// NewOrchestrator creates an orchestrator with both strategies wired.
func NewOrchestrator(logger utils.Logger) *Orchestrator {
	if logger == nil {
		logger = utils.NewLogger()
	}
	return &Orchestrator{
		structured: NewStructuredExtractor(logger),
		markup:     NewMarkupExtractor(logger),
		logger:     logger,
	}
}

// profileResult is one strategy's optional contribution.
type profileResult struct {
	profile *Profile
	videos  []Video
}

// Extract parses the raw document once, resolves profile and videos through
// the strategy order, and stamps a single scrape timestamp (the triggering
// event's creation time) onto everything produced.
func (o *Orchestrator) Extract(html string, scrapedAt time.Time) (Profile, []Video, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Profile{}, nil, fmt.Errorf("parse document: %w", err)
	}

	structuredProfile, structuredVideos := o.structured.Extract(doc)

	// Strategy order for the profile: structured first, markup as the
	// last-resort source that always yields a record.
	strategies := []struct {
		name string
		run  func() profileResult
	}{
		{"structured", func() profileResult {
			return profileResult{profile: structuredProfile, videos: structuredVideos}
		}},
		{"markup", func() profileResult {
			p := o.markup.ExtractProfile(doc)
			return profileResult{profile: &p}
		}},
	}

	var profile Profile
	for _, s := range strategies {
		res := s.run()
		if res.profile == nil || !res.profile.HasUsername() {
			o.logger.Infof("orchestrator: %s strategy yielded no usable profile, falling back", s.name)
			continue
		}
		profile = *res.profile
		o.logger.Infof("orchestrator: profile sourced from %s strategy", s.name)
		break
	}
	if !profile.HasUsername() {
		// All strategies exhausted; keep the sentinel-filled record so the
		// caller can decide how to surface the failure.
		profile = NewProfile()
		if structuredProfile != nil {
			profile = *structuredProfile
		}
		o.logger.Warn("orchestrator: no strategy produced a usable username")
	}

	videos := structuredVideos
	if len(videos) == 0 {
		o.logger.Info("orchestrator: structured video list empty, using markup video path")
		videos = o.markup.ExtractVideos(doc, profile.Username)
	}

	// Structured video URLs are built with the username known at decode
	// time. When the profile came from a later strategy those URLs still
	// carry the sentinel and would never join their profile in the rollup,
	// so rebuild them under the resolved username.
	if profile.HasUsername() {
		sentinelPrefix := profileBaseURL + "/@" + Unknown + "/video/"
		for i := range videos {
			if id, ok := strings.CutPrefix(videos[i].URL, sentinelPrefix); ok {
				videos[i].URL = VideoURL(profile.Username, id)
			}
		}
	}

	stamp := scrapedAt.UTC().Format(time.RFC3339)
	profile.ScrapeTimestamp = stamp
	for i := range videos {
		videos[i].ScrapeTimestamp = stamp
	}

	return profile, videos, nil
}
