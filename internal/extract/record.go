// internal/extract/record.go
package extract

// ContentType discriminates a single video stream from an image gallery.
type ContentType string

const (
	ContentTypeVideo ContentType = "video"
	ContentTypeImage ContentType = "image"
)

// Record is the intermediate extraction result pulled from a detail page.
// Count and duration fields keep the raw upstream representation (display
// string or number); normalization happens at the schema mapping boundary,
// never earlier. A Record lives for one request and is never persisted.
type Record struct {
	ContentID  string
	AuthorID   string
	AuthorName string
	Caption    string

	ContentType  ContentType
	DownloadURLs []string // one entry for a video, many for a gallery
	CoverURL     string

	LikeCount    interface{}
	CommentCount interface{}
	ShareCount   interface{}
	ViewCount    interface{}

	Duration interface{} // milliseconds or clock string
	Width    int
	Height   int

	PublishedAt int64 // epoch milliseconds, 0 when absent
}
