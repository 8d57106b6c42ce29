// internal/extract/types.go

// Package extract turns a raw TikTok profile page into canonical Profile and
// Video records. Two extraction strategies exist: the structured path reads
// the embedded rehydration JSON, the markup path probes data-e2e attributes
// in the rendered HTML. The orchestrator decides per document which strategy
// feeds which record type.
package extract

import "fmt"

// Documented placeholder values. Unknown means the field could not be
// determined in any representation; it is distinct from a genuine empty value.
const (
	Unknown            = "N/A"
	DefaultDisplayName = "Unknown"
	DefaultBioLink     = "No link"
)

// profileBaseURL is the canonical profile URL prefix videos are scoped under.
const profileBaseURL = "https://www.tiktok.com"

// Profile is the canonical per-username record. One is produced per
// extraction run; the loader keys it by Username.
type Profile struct {
	Username       string `json:"username"`
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	FollowingCount int64  `json:"following_count"`
	FollowerCount  int64  `json:"follower_count"`
	TotalLikeCount int64  `json:"total_like_count"`
	Bio            string `json:"bio"`
	Caption        string `json:"caption"`
	BioLink        string `json:"bio_link"`
	ProfilePicURL  string `json:"profile_pic_url"`
	IsVerified     bool   `json:"is_verified"`

	// RFC3339; assigned exactly once per run by the orchestrator and shared
	// with every sibling Video.
	ScrapeTimestamp string `json:"scrape_timestamp"`
}

// Video is a canonical per-post record, keyed by URL.
type Video struct {
	URL          string `json:"url"`
	Views        int64  `json:"views"`
	ThumbnailURL string `json:"thumbnail_url"`
	Description  string `json:"description"`

	// RFC3339 derived from the source epoch, or Unknown. Never silently
	// coerced to the current time.
	CreateTime string `json:"create_time"`

	LikeCount       int64  `json:"like_count"`
	CommentCount    int64  `json:"comment_count"`
	ShareCount      int64  `json:"share_count"`
	ScrapeTimestamp string `json:"scrape_timestamp"`
}

// NewProfile returns a Profile with every field at its documented default.
// Extractors overwrite only the fields they can source.
func NewProfile() Profile {
	return Profile{
		Username:      Unknown,
		UserID:        Unknown,
		DisplayName:   DefaultDisplayName,
		Bio:           Unknown,
		Caption:       Unknown,
		BioLink:       DefaultBioLink,
		ProfilePicURL: Unknown,
	}
}

// NewVideo returns a Video with every field at its documented default.
func NewVideo() Video {
	return Video{
		URL:          Unknown,
		ThumbnailURL: Unknown,
		Description:  Unknown,
		CreateTime:   Unknown,
	}
}

// HasUsername reports whether the profile carries a real username rather
// than the unknown sentinel.
func (p Profile) HasUsername() bool {
	return p.Username != "" && p.Username != Unknown
}

// VideoURL builds the canonical fully-qualified video URL for a profile.
func VideoURL(username, videoID string) string {
	return fmt.Sprintf("%s/@%s/video/%s", profileBaseURL, username, videoID)
}
