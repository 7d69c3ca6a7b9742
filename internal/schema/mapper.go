// internal/schema/mapper.go
package schema

import (
	"time"

	"github.com/kuaigrab/kuaigrab/internal/extract"
	"github.com/kuaigrab/kuaigrab/internal/normalize"
)

// PublishTimeLayout is the fixed textual format of VideoMetadata.PublishTime.
const PublishTimeLayout = "2006-01-02_15:04:05"

// Platform tags metadata produced by this pipeline.
const Platform = "kuaishou"

// Map converts an extraction record into the published metadata shape. It is
// pure and deterministic: normalizers are applied here, nil counts collapse
// to 0 here and nowhere earlier, and the video/image exclusivity is enforced
// by the record's content type.
func Map(rec *extract.Record, originalURL string) *VideoMetadata {
	meta := &VideoMetadata{
		Platform:    Platform,
		VideoID:     rec.ContentID,
		OriginalURL: originalURL,
		Title:       rec.Caption,
		Description: rec.Caption,
		Tags:        []string{},
		Type:        string(rec.ContentType),
		Author: Author{
			ID:       rec.AuthorID,
			Nickname: rec.AuthorName,
		},
		Statistics: Statistics{
			LikeCount:    countOrZero(rec.LikeCount),
			CommentCount: countOrZero(rec.CommentCount),
			ShareCount:   countOrZero(rec.ShareCount),
			PlayCount:    countOrZero(rec.ViewCount),
		},
		Media: Media{
			CoverURL:  rec.CoverURL,
			ImageURLs: []string{},
			Duration:  durationOrZero(rec.Duration),
			Width:     rec.Width,
			Height:    rec.Height,
		},
		PublishTime: formatPublishTime(rec.PublishedAt),
	}

	switch rec.ContentType {
	case extract.ContentTypeImage:
		meta.Media.ImageURLs = append(meta.Media.ImageURLs, rec.DownloadURLs...)
	default:
		if len(rec.DownloadURLs) > 0 {
			meta.Media.VideoURL = rec.DownloadURLs[0]
		}
	}

	return meta
}

func countOrZero(raw interface{}) int64 {
	if n := normalize.ParseCount(raw); n != nil {
		return *n
	}
	return 0
}

func durationOrZero(raw interface{}) int64 {
	if n := normalize.ParseDuration(raw); n != nil {
		return *n
	}
	return 0
}

func formatPublishTime(epochMillis int64) string {
	if epochMillis <= 0 {
		return ""
	}
	return time.UnixMilli(epochMillis).Format(PublishTimeLayout)
}
