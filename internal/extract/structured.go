// internal/extract/structured.go
package extract

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/TikTokIngester/internal/numeric"
	"github.com/valpere/TikTokIngester/internal/utils"
)

// rehydrationMarker identifies the script element carrying the embedded
// server-side state blob.
const rehydrationMarker = "__UNIVERSAL_DATA_FOR_REHYDRATION__"

// Raw structs matching the rehydration JSON exactly. Count fields are typed
// as interface{} because the source flips between numbers and humanized
// strings across page versions; everything routes through numeric.NormalizeCount.

type rawUniversalData struct {
	DefaultScope rawDefaultScope `json:"__DEFAULT_SCOPE__"`
}

type rawDefaultScope struct {
	UserDetail rawUserDetailWrapper `json:"webapp.user-detail"`
}

type rawUserDetailWrapper struct {
	UserInfo rawUserInfo `json:"userInfo"`

	// Video listings appear under several alternative keys depending on the
	// page version. Entries stay raw so one malformed post cannot fail the
	// whole batch.
	Posts      []json.RawMessage          `json:"posts"`
	ItemList   []json.RawMessage          `json:"itemList"`
	ItemModule map[string]json.RawMessage `json:"itemModule"`
}

type rawUserInfo struct {
	User  rawUser  `json:"user"`
	Stats rawStats `json:"stats"`
}

type rawUser struct {
	ID           string     `json:"id"`
	UniqueID     string     `json:"uniqueId"`
	Nickname     string     `json:"nickname"`
	Signature    string     `json:"signature"`
	Bio          string     `json:"bio"`
	BioLink      rawBioLink `json:"bioLink"`
	AvatarLarger string     `json:"avatarLarger"`
	Verified     bool       `json:"verified"`
}

type rawBioLink struct {
	Link string `json:"link"`
}

type rawStats struct {
	FollowingCount interface{}       `json:"followingCount"`
	FollowerCount  interface{}       `json:"followerCount"`
	HeartCount     interface{}       `json:"heartCount"`
	VideoList      []json.RawMessage `json:"videoList"`
}

type rawPost struct {
	ID         string       `json:"id"`
	Desc       string       `json:"desc"`
	CreateTime interface{}  `json:"createTime"`
	Video      rawPostVideo `json:"video"`
	Stats      rawPostStats `json:"stats"`
}

type rawPostVideo struct {
	Cover string `json:"cover"`
}

type rawPostStats struct {
	PlayCount    interface{} `json:"playCount"`
	DiggCount    interface{} `json:"diggCount"`
	CommentCount interface{} `json:"commentCount"`
	ShareCount   interface{} `json:"shareCount"`
}

// StructuredExtractor derives canonical records from the embedded
// rehydration JSON.
type StructuredExtractor struct {
	logger utils.Logger
}

// NewStructuredExtractor creates a structured extractor.
func NewStructuredExtractor(logger utils.Logger) *StructuredExtractor {
	if logger == nil {
		logger = utils.NewLogger()
	}
	return &StructuredExtractor{logger: logger}
}

// Extract locates the state blob inside the parsed document and maps it to a
// Profile and its Videos. A document without the blob yields (nil, nil) — the
// markup path is the fallback, so absence is not an error here.
func (e *StructuredExtractor) Extract(doc *goquery.Document) (*Profile, []Video) {
	payload := doc.Find("script#" + rehydrationMarker).First().Text()
	if strings.TrimSpace(payload) == "" {
		e.logger.Debug("structured: rehydration blob not present")
		return nil, nil
	}

	var data rawUniversalData
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		e.logger.Warnf("structured: unmarshal rehydration blob: %v", err)
		return nil, nil
	}

	profile := e.extractProfile(data.DefaultScope.UserDetail.UserInfo)
	videos := e.extractVideos(data.DefaultScope.UserDetail, profile.Username)
	return &profile, videos
}

// extractProfile maps the nested user/stats section onto a default-filled
// Profile. Every field is default-on-missing; no absence aborts the rest.
func (e *StructuredExtractor) extractProfile(info rawUserInfo) Profile {
	profile := NewProfile()

	user := info.User
	if user.UniqueID != "" {
		profile.Username = user.UniqueID
	}
	if user.ID != "" {
		profile.UserID = user.ID
	}
	if user.Nickname != "" {
		profile.DisplayName = user.Nickname
	}
	if user.Signature != "" {
		profile.Caption = user.Signature
	}
	if user.Bio != "" {
		profile.Bio = user.Bio
	}
	if user.BioLink.Link != "" {
		profile.BioLink = user.BioLink.Link
	}
	if user.AvatarLarger != "" {
		profile.ProfilePicURL = user.AvatarLarger
	}
	profile.IsVerified = user.Verified

	stats := info.Stats
	profile.FollowingCount = numeric.NormalizeCount(stats.FollowingCount)
	profile.FollowerCount = numeric.NormalizeCount(stats.FollowerCount)
	profile.TotalLikeCount = numeric.NormalizeCount(stats.HeartCount)

	return profile
}

// extractVideos searches the alternative listing locations in priority order
// and converts the first non-empty source exclusively. Sources are never
// merged: mixing page versions produced duplicate posts in practice.
func (e *StructuredExtractor) extractVideos(wrapper rawUserDetailWrapper, username string) []Video {
	for _, source := range []struct {
		name  string
		posts []json.RawMessage
	}{
		{"posts", wrapper.Posts},
		{"itemList", wrapper.ItemList},
		{"stats.videoList", wrapper.UserInfo.Stats.VideoList},
		{"itemModule", flattenItemModule(wrapper.ItemModule)},
	} {
		if len(source.posts) == 0 {
			continue
		}
		videos := e.convertPosts(source.posts, username)
		if len(videos) > 0 {
			e.logger.Infof("structured: extracted %d videos from %s", len(videos), source.name)
			return videos
		}
	}
	e.logger.Info("structured: no video listing found in rehydration blob")
	return nil
}

// convertPosts maps raw post entries to Videos. A post that fails to decode
// or lacks its identifying key is skipped without dropping its siblings.
func (e *StructuredExtractor) convertPosts(posts []json.RawMessage, username string) []Video {
	videos := make([]Video, 0, len(posts))
	for i, raw := range posts {
		var post rawPost
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.UseNumber()
		if err := dec.Decode(&post); err != nil {
			e.logger.Warnf("structured: skipping post %d: %v", i, err)
			continue
		}
		if post.ID == "" {
			e.logger.Warnf("structured: skipping post %d: missing id", i)
			continue
		}

		video := NewVideo()
		video.URL = VideoURL(username, post.ID)
		video.Views = numeric.NormalizeCount(post.Stats.PlayCount)
		video.LikeCount = numeric.NormalizeCount(post.Stats.DiggCount)
		video.CommentCount = numeric.NormalizeCount(post.Stats.CommentCount)
		video.ShareCount = numeric.NormalizeCount(post.Stats.ShareCount)
		if post.Video.Cover != "" {
			video.ThumbnailURL = post.Video.Cover
		}
		if post.Desc != "" {
			video.Description = post.Desc
		}
		video.CreateTime = epochToISO(post.CreateTime)

		videos = append(videos, video)
	}
	return videos
}

// flattenItemModule converts the flat id->post map into a list, ordered by
// key so extraction output stays deterministic.
func flattenItemModule(items map[string]json.RawMessage) []json.RawMessage {
	if len(items) == 0 {
		return nil
	}
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	posts := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		posts = append(posts, items[k])
	}
	return posts
}

// epochToISO converts a source epoch value (number or numeric string) to an
// RFC3339 instant. Anything absent or unparseable maps to the unknown
// sentinel rather than the current time.
func epochToISO(raw interface{}) string {
	var epoch int64
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return Unknown
		}
		epoch = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return Unknown
		}
		epoch = n
	case float64:
		epoch = int64(v)
	default:
		return Unknown
	}
	if epoch <= 0 {
		return Unknown
	}
	return time.Unix(epoch, 0).UTC().Format(time.RFC3339)
}
