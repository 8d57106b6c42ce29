// internal/extract/markup.go
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/TikTokIngester/internal/numeric"
	"github.com/valpere/TikTokIngester/internal/utils"
)

// videoURLPattern matches canonical profile-scoped video addresses, absolute
// or relative.
var videoURLPattern = regexp.MustCompile(`/@[^/]+/video/\d+`)

// MarkupExtractor derives canonical records by probing the rendered HTML
// directly. It is the last-resort strategy: it always yields a Profile, even
// a mostly-default one.
type MarkupExtractor struct {
	logger utils.Logger
}

// NewMarkupExtractor creates a markup extractor.
func NewMarkupExtractor(logger utils.Logger) *MarkupExtractor {
	if logger == nil {
		logger = utils.NewLogger()
	}
	return &MarkupExtractor{logger: logger}
}

// Extract probes the document for profile fields and video containers.
func (e *MarkupExtractor) Extract(doc *goquery.Document) (Profile, []Video) {
	profile := e.ExtractProfile(doc)
	videos := e.ExtractVideos(doc, profile.Username)
	return profile, videos
}

// ExtractProfile reads profile fields from attribute-tagged elements. Any
// element not found leaves the field at its documented default.
func (e *MarkupExtractor) ExtractProfile(doc *goquery.Document) Profile {
	profile := NewProfile()

	if v := text(doc, `h2[data-e2e="user-subtitle"]`); v != "" {
		profile.Username = strings.TrimPrefix(v, "@")
	}
	if v := text(doc, `h1[data-e2e="user-title"]`); v != "" {
		profile.DisplayName = v
	}

	// The three summary statistics are positional: following, followers,
	// likes. Likes routinely arrive humanized ("1.2M").
	stats := doc.Find(`strong[data-e2e="user-stats"]`)
	if stats.Length() > 0 {
		profile.FollowingCount = numeric.NormalizeCount(strings.TrimSpace(stats.Eq(0).Text()))
	}
	if stats.Length() > 1 {
		profile.FollowerCount = numeric.NormalizeCount(strings.TrimSpace(stats.Eq(1).Text()))
	}
	if stats.Length() > 2 {
		profile.TotalLikeCount = numeric.NormalizeCount(strings.TrimSpace(stats.Eq(2).Text()))
	}

	if v := text(doc, `h2[data-e2e="user-bio"]`); v != "" {
		profile.Bio = v
		profile.Caption = v
	}
	if v, ok := doc.Find(`a[data-e2e="user-link"]`).First().Attr("href"); ok && v != "" {
		profile.BioLink = v
	}
	if v, ok := doc.Find(`img[data-e2e="user-avatar"]`).First().Attr("src"); ok && v != "" {
		profile.ProfilePicURL = v
	}
	profile.IsVerified = doc.Find(`svg[data-e2e="verify-badge"]`).Length() > 0

	return profile
}

// ExtractVideos discovers video containers with three probes, each only
// running if the previous one yielded nothing: tagged post items, anchors
// whose address matches the canonical video pattern, then a structural
// container class.
func (e *MarkupExtractor) ExtractVideos(doc *goquery.Document, username string) []Video {
	containers := doc.Find(`div[data-e2e="user-post-item"]`)
	if containers.Length() == 0 {
		containers = doc.Find(`a[href]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			return videoURLPattern.MatchString(href)
		})
	}
	if containers.Length() == 0 {
		containers = doc.Find(`div[class*="DivItemContainer"]`)
	}
	if containers.Length() == 0 {
		e.logger.Info("markup: no video containers found")
		return nil
	}

	videos := make([]Video, 0, containers.Length())
	containers.Each(func(i int, container *goquery.Selection) {
		video, ok := e.extractVideo(container, username)
		if !ok {
			e.logger.Warnf("markup: skipping video container %d", i)
			return
		}
		videos = append(videos, video)
	})
	e.logger.Infof("markup: extracted %d videos", len(videos))
	return videos
}

// extractVideo pulls best-effort details from one container. Only the URL is
// mandatory; everything else defaults. Creation time is not recoverable from
// markup and stays at the unknown sentinel.
func (e *MarkupExtractor) extractVideo(container *goquery.Selection, username string) (Video, bool) {
	video := NewVideo()

	href, ok := container.Attr("href")
	if !ok {
		href, _ = container.Find("a[href]").First().Attr("href")
	}
	href = strings.TrimSpace(href)
	if !videoURLPattern.MatchString(href) {
		return video, false
	}
	video.URL = canonicalVideoURL(href, username)

	if v := strings.TrimSpace(container.Find(`strong[data-e2e="video-views"]`).First().Text()); v != "" {
		video.Views = numeric.NormalizeCount(v)
	}
	if src, ok := container.Find("img").First().Attr("src"); ok && src != "" {
		video.ThumbnailURL = src
	}
	if v := strings.TrimSpace(container.Find(`div[data-e2e="video-desc"]`).First().Text()); v != "" {
		video.Description = v
	} else if alt, ok := container.Find("img").First().Attr("alt"); ok && strings.TrimSpace(alt) != "" {
		video.Description = strings.TrimSpace(alt)
	}

	return video, true
}

// canonicalVideoURL normalizes relative or partial hrefs to the absolute
// profile-scoped form.
func canonicalVideoURL(href, username string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	match := videoURLPattern.FindString(href)
	if match != "" {
		return profileBaseURL + match
	}
	return profileBaseURL + "/@" + username + "/" + strings.TrimPrefix(href, "/")
}

func text(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}
