// internal/extract/markup_test.go
package extract

import (
	"testing"
)

const profileMarkup = `<html><body>
<h1 data-e2e="user-title">Demo Account</h1>
<h2 data-e2e="user-subtitle">demo</h2>
<div data-e2e="user-stats-wrapper">
	<strong data-e2e="user-stats">12</strong>
	<strong data-e2e="user-stats">100</strong>
	<strong data-e2e="user-stats">2.3M</strong>
</div>
<h2 data-e2e="user-bio">just demos</h2>
<a data-e2e="user-link" href="https://example.com">example.com</a>
<img data-e2e="user-avatar" src="https://cdn.example.com/avatar.jpg"/>
<svg data-e2e="verify-badge"></svg>
</body></html>`

func TestMarkupExtractor_Profile(t *testing.T) {
	doc := parseDoc(t, profileMarkup)
	profile := NewMarkupExtractor(nil).ExtractProfile(doc)

	if profile.Username != "demo" {
		t.Errorf("username = %q, want demo", profile.Username)
	}
	if profile.DisplayName != "Demo Account" {
		t.Errorf("display_name = %q", profile.DisplayName)
	}
	if profile.FollowingCount != 12 {
		t.Errorf("following_count = %d, want 12", profile.FollowingCount)
	}
	if profile.FollowerCount != 100 {
		t.Errorf("follower_count = %d, want 100", profile.FollowerCount)
	}
	if profile.TotalLikeCount != 2300000 {
		t.Errorf("total_like_count = %d, want 2300000 from humanized stat", profile.TotalLikeCount)
	}
	if profile.Bio != "just demos" || profile.Caption != "just demos" {
		t.Errorf("bio/caption = %q/%q", profile.Bio, profile.Caption)
	}
	if profile.BioLink != "https://example.com" {
		t.Errorf("bio_link = %q", profile.BioLink)
	}
	if profile.ProfilePicURL != "https://cdn.example.com/avatar.jpg" {
		t.Errorf("profile_pic_url = %q", profile.ProfilePicURL)
	}
	if !profile.IsVerified {
		t.Error("expected verified badge to be detected")
	}
}

func TestMarkupExtractor_EmptyDocumentDefaults(t *testing.T) {
	doc := parseDoc(t, `<html><body><p>nothing useful</p></body></html>`)
	profile := NewMarkupExtractor(nil).ExtractProfile(doc)

	// Last-resort path: a Profile always comes back, default-filled.
	if profile.Username != Unknown {
		t.Errorf("username = %q, want unknown sentinel", profile.Username)
	}
	if profile.DisplayName != DefaultDisplayName {
		t.Errorf("display_name = %q, want %q", profile.DisplayName, DefaultDisplayName)
	}
	if profile.BioLink != DefaultBioLink {
		t.Errorf("bio_link = %q, want %q", profile.BioLink, DefaultBioLink)
	}
	if profile.FollowerCount != 0 || profile.TotalLikeCount != 0 {
		t.Error("counts must default to zero")
	}
	if profile.IsVerified {
		t.Error("verified must default to false")
	}
}

func TestMarkupExtractor_PostItems(t *testing.T) {
	doc := parseDoc(t, `<html><body>
<div data-e2e="user-post-item">
	<a href="https://www.tiktok.com/@demo/video/111"></a>
	<strong data-e2e="video-views">10</strong>
	<img src="https://cdn.example.com/111.jpg" alt=""/>
	<div data-e2e="video-desc">first clip</div>
</div>
<div data-e2e="user-post-item">
	<a href="/@demo/video/222"></a>
	<strong data-e2e="video-views">1.5K</strong>
</div>
<div data-e2e="user-post-item">
	<span>container without a link is skipped</span>
</div>
</body></html>`)

	videos := NewMarkupExtractor(nil).ExtractVideos(doc, "demo")
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos (bad container skipped), got %d", len(videos))
	}

	if videos[0].URL != "https://www.tiktok.com/@demo/video/111" {
		t.Errorf("url = %q", videos[0].URL)
	}
	if videos[0].Views != 10 {
		t.Errorf("views = %d, want 10", videos[0].Views)
	}
	if videos[0].Description != "first clip" {
		t.Errorf("description = %q", videos[0].Description)
	}
	if videos[0].CreateTime != Unknown {
		t.Errorf("create_time = %q, markup path must use the unknown sentinel", videos[0].CreateTime)
	}
	if videos[0].LikeCount != 0 || videos[0].CommentCount != 0 || videos[0].ShareCount != 0 {
		t.Error("engagement counts are not recoverable from markup, want zeros")
	}

	// Relative href normalized to the absolute profile-scoped form.
	if videos[1].URL != "https://www.tiktok.com/@demo/video/222" {
		t.Errorf("relative url normalized to %q", videos[1].URL)
	}
	if videos[1].Views != 1500 {
		t.Errorf("views = %d, want 1500", videos[1].Views)
	}
}

func TestMarkupExtractor_AnchorFallback(t *testing.T) {
	// No tagged post items: discovery falls back to scanning anchors whose
	// address matches the canonical video pattern.
	doc := parseDoc(t, `<html><body>
<a href="/@demo/video/333"><img src="https://cdn.example.com/333.jpg"/></a>
<a href="/@demo/video/444"></a>
<a href="/about">not a video</a>
</body></html>`)

	videos := NewMarkupExtractor(nil).ExtractVideos(doc, "demo")
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos from anchor scan, got %d", len(videos))
	}
	if videos[0].URL != "https://www.tiktok.com/@demo/video/333" {
		t.Errorf("url = %q", videos[0].URL)
	}
	if videos[0].ThumbnailURL != "https://cdn.example.com/333.jpg" {
		t.Errorf("thumbnail = %q", videos[0].ThumbnailURL)
	}
}

func TestMarkupExtractor_ContainerFallback(t *testing.T) {
	doc := parseDoc(t, `<html><body>
<div class="css-x1 DivItemContainerV2 css-y2">
	<a href="/@demo/video/555"></a>
</div>
</body></html>`)

	videos := NewMarkupExtractor(nil).ExtractVideos(doc, "demo")
	if len(videos) != 1 {
		t.Fatalf("expected 1 video from structural container probe, got %d", len(videos))
	}
	if videos[0].URL != "https://www.tiktok.com/@demo/video/555" {
		t.Errorf("url = %q", videos[0].URL)
	}
}

func TestMarkupExtractor_NoVideos(t *testing.T) {
	doc := parseDoc(t, `<html><body><p>profile without posts</p></body></html>`)
	if videos := NewMarkupExtractor(nil).ExtractVideos(doc, "demo"); len(videos) != 0 {
		t.Errorf("expected no videos, got %d", len(videos))
	}
}
