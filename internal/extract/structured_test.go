// internal/extract/structured_test.go
package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func ssrDocument(blob string) string {
	return fmt.Sprintf(`<html><head>
<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">%s</script>
</head><body></body></html>`, blob)
}

const userInfoBlob = `{
	"user": {
		"id": "6745191554350760966",
		"uniqueId": "demo",
		"nickname": "Demo Account",
		"signature": "just demos",
		"bioLink": {"link": "https://example.com"},
		"avatarLarger": "https://cdn.example.com/avatar.jpg",
		"verified": true
	},
	"stats": {
		"followingCount": 12,
		"followerCount": 100,
		"heartCount": "2.3M"
	}
}`

func TestStructuredExtractor_Profile(t *testing.T) {
	blob := fmt.Sprintf(`{"__DEFAULT_SCOPE__":{"webapp.user-detail":{"userInfo":%s}}}`, userInfoBlob)
	doc := parseDoc(t, ssrDocument(blob))

	profile, videos := NewStructuredExtractor(nil).Extract(doc)
	if profile == nil {
		t.Fatal("expected a profile")
	}
	if profile.Username != "demo" {
		t.Errorf("username = %q, want demo", profile.Username)
	}
	if profile.UserID != "6745191554350760966" {
		t.Errorf("user_id = %q", profile.UserID)
	}
	if profile.DisplayName != "Demo Account" {
		t.Errorf("display_name = %q", profile.DisplayName)
	}
	if profile.FollowingCount != 12 || profile.FollowerCount != 100 {
		t.Errorf("counts = %d/%d, want 12/100", profile.FollowingCount, profile.FollowerCount)
	}
	if profile.TotalLikeCount != 2300000 {
		t.Errorf("total_like_count = %d, want 2300000 (humanized input)", profile.TotalLikeCount)
	}
	if profile.Caption != "just demos" {
		t.Errorf("caption = %q", profile.Caption)
	}
	if profile.BioLink != "https://example.com" {
		t.Errorf("bio_link = %q", profile.BioLink)
	}
	if !profile.IsVerified {
		t.Error("expected verified profile")
	}
	if len(videos) != 0 {
		t.Errorf("expected no videos, got %d", len(videos))
	}
}

func TestStructuredExtractor_MissingBlob(t *testing.T) {
	doc := parseDoc(t, `<html><body><h1>nothing embedded</h1></body></html>`)
	profile, videos := NewStructuredExtractor(nil).Extract(doc)
	if profile != nil || videos != nil {
		t.Errorf("expected (nil, nil) for a document without the blob, got (%v, %v)", profile, videos)
	}
}

func TestStructuredExtractor_MalformedBlob(t *testing.T) {
	doc := parseDoc(t, ssrDocument(`{"__DEFAULT_SCOPE__": not json`))
	profile, videos := NewStructuredExtractor(nil).Extract(doc)
	if profile != nil || videos != nil {
		t.Error("expected (nil, nil) for an unparseable blob")
	}
}

func TestStructuredExtractor_PostsList(t *testing.T) {
	blob := fmt.Sprintf(`{"__DEFAULT_SCOPE__":{"webapp.user-detail":{
		"userInfo":%s,
		"posts":[
			{"id":"111","desc":"first","createTime":1700000000,
			 "video":{"cover":"https://cdn.example.com/111.jpg"},
			 "stats":{"playCount":10,"diggCount":2,"commentCount":1,"shareCount":0}},
			{"id":"222","desc":"second","createTime":"1700000100",
			 "video":{"cover":"https://cdn.example.com/222.jpg"},
			 "stats":{"playCount":"1.5K","diggCount":0,"commentCount":0,"shareCount":0}}
		]}}}`, userInfoBlob)
	doc := parseDoc(t, ssrDocument(blob))

	_, videos := NewStructuredExtractor(nil).Extract(doc)
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(videos))
	}

	first := videos[0]
	if first.URL != "https://www.tiktok.com/@demo/video/111" {
		t.Errorf("url = %q", first.URL)
	}
	if first.Views != 10 || first.LikeCount != 2 || first.CommentCount != 1 {
		t.Errorf("metrics = %d/%d/%d", first.Views, first.LikeCount, first.CommentCount)
	}
	if first.CreateTime != "2023-11-14T22:13:20Z" {
		t.Errorf("create_time = %q, want epoch-derived RFC3339", first.CreateTime)
	}
	if first.ThumbnailURL != "https://cdn.example.com/111.jpg" {
		t.Errorf("thumbnail = %q", first.ThumbnailURL)
	}

	// Epoch as numeric string and a humanized play count.
	second := videos[1]
	if second.Views != 1500 {
		t.Errorf("second views = %d, want 1500", second.Views)
	}
	if second.CreateTime != "2023-11-14T22:15:00Z" {
		t.Errorf("second create_time = %q", second.CreateTime)
	}
}

func TestStructuredExtractor_MalformedPostIsolated(t *testing.T) {
	// One of five posts lacks its identifying key; exactly four must survive.
	blob := fmt.Sprintf(`{"__DEFAULT_SCOPE__":{"webapp.user-detail":{
		"userInfo":%s,
		"posts":[
			{"id":"1","stats":{"playCount":1}},
			{"id":"2","stats":{"playCount":2}},
			{"desc":"no id here","stats":{"playCount":99}},
			{"id":"4","stats":{"playCount":4}},
			{"id":"5","stats":{"playCount":5}}
		]}}}`, userInfoBlob)
	doc := parseDoc(t, ssrDocument(blob))

	_, videos := NewStructuredExtractor(nil).Extract(doc)
	if len(videos) != 4 {
		t.Fatalf("expected 4 videos after skipping the malformed post, got %d", len(videos))
	}
	for _, v := range videos {
		if v.Views == 99 {
			t.Error("malformed post leaked into the batch")
		}
	}
}

func TestStructuredExtractor_SourcePriority(t *testing.T) {
	tests := []struct {
		name     string
		listings string
		wantURL  string
	}{
		{
			name:     "itemList when posts empty",
			listings: `"posts":[],"itemList":[{"id":"700","stats":{"playCount":7}}]`,
			wantURL:  "https://www.tiktok.com/@demo/video/700",
		},
		{
			name:     "posts wins over itemList",
			listings: `"posts":[{"id":"100"}],"itemList":[{"id":"700"}]`,
			wantURL:  "https://www.tiktok.com/@demo/video/100",
		},
		{
			name:     "itemModule map flattened last",
			listings: `"itemModule":{"901":{"id":"901"},"900":{"id":"900"}}`,
			wantURL:  "https://www.tiktok.com/@demo/video/900",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := fmt.Sprintf(`{"__DEFAULT_SCOPE__":{"webapp.user-detail":{"userInfo":%s,%s}}}`,
				userInfoBlob, tt.listings)
			doc := parseDoc(t, ssrDocument(blob))

			_, videos := NewStructuredExtractor(nil).Extract(doc)
			if len(videos) == 0 {
				t.Fatal("expected videos")
			}
			if videos[0].URL != tt.wantURL {
				t.Errorf("first url = %q, want %q", videos[0].URL, tt.wantURL)
			}
		})
	}
}

func TestStructuredExtractor_VideoListUnderStats(t *testing.T) {
	userInfo := `{
		"user": {"uniqueId": "demo"},
		"stats": {"followerCount": 1, "videoList": [{"id":"300","stats":{"playCount":3}}]}
	}`
	blob := fmt.Sprintf(`{"__DEFAULT_SCOPE__":{"webapp.user-detail":{"userInfo":%s}}}`, userInfo)
	doc := parseDoc(t, ssrDocument(blob))

	_, videos := NewStructuredExtractor(nil).Extract(doc)
	if len(videos) != 1 {
		t.Fatalf("expected 1 video from stats.videoList, got %d", len(videos))
	}
	if videos[0].URL != "https://www.tiktok.com/@demo/video/300" {
		t.Errorf("url = %q", videos[0].URL)
	}
	if videos[0].CreateTime != Unknown {
		t.Errorf("create_time = %q, want the unknown sentinel when absent", videos[0].CreateTime)
	}
}
