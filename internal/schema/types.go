// internal/schema/types.go
package schema

// VideoMetadata is the published metadata shape. Field names are part of the
// wire contract and must stay stable. Every field is always present in the
// serialized output; defaults are empty string, 0, or an empty list.
type VideoMetadata struct {
	Platform    string     `json:"platform"`
	VideoID     string     `json:"video_id"`
	OriginalURL string     `json:"original_url"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	Tags        []string   `json:"tags"`
	Type        string     `json:"type"` // "video" or "image"
	Author      Author     `json:"author"`
	Statistics  Statistics `json:"statistics"`
	Media       Media      `json:"media"`
	PublishTime string     `json:"publish_time"` // YYYY-MM-DD_HH:MM:SS
	UpdateTime  *string    `json:"update_time"`  // not provided upstream, always null
}

// Author describes the work's creator. Fields beyond id and nickname are not
// served by the detail page and keep their defaults.
type Author struct {
	ID             string `json:"id"`
	SecUID         string `json:"sec_uid"`
	Nickname       string `json:"nickname"`
	Avatar         string `json:"avatar"`
	Signature      string `json:"signature"`
	Verified       bool   `json:"verified"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	Region         string `json:"region"`
}

// Statistics holds normalized engagement counts, all non-negative and
// defaulting to 0.
type Statistics struct {
	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	ShareCount   int64 `json:"share_count"`
	CollectCount int64 `json:"collect_count"`
	PlayCount    int64 `json:"play_count"`
}

// Media carries the downloadable media references. Exactly one of VideoURL
// and ImageURLs is populated, governed by the inferred content type.
type Media struct {
	CoverURL  string   `json:"cover_url"`
	VideoURL  string   `json:"video_url"`
	ImageURLs []string `json:"image_urls"`
	Duration  int64    `json:"duration"` // seconds
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Quality   *string  `json:"quality"`
}
