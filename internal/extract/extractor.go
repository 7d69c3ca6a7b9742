// internal/extract/extractor.go
package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/kuaigrab/kuaigrab/internal/errors"
	"github.com/kuaigrab/kuaigrab/internal/monitoring"
	"github.com/kuaigrab/kuaigrab/internal/utils"
)

// stateMarker introduces the embedded state blob the web detail page ships
// inside a script tag. Everything below that walks its layout is coupled to
// the upstream page shape and is the first place to look when extraction
// starts failing wholesale.
const stateMarker = "window.__APOLLO_STATE__"

const (
	photoKeyPrefix  = "VisionVideoDetailPhoto:"
	authorKeyPrefix = "VisionVideoDetailAuthor:"
)

// Extractor parses raw detail-page markup into a Record.
type Extractor struct {
	logger  utils.Logger
	metrics *monitoring.Metrics
}

// New creates an extractor.
func New(logger utils.Logger, metrics *monitoring.Metrics) *Extractor {
	return &Extractor{logger: logger, metrics: metrics}
}

// Extract locates the embedded state blob in the markup and walks it for the
// given content. Missing optional fields produce zero values; a missing
// state block or a state block without the content itself is an extraction
// error (page drift, or the work is private/deleted).
func (e *Extractor) Extract(markup, contentID, siteVariant string) (*Record, error) {
	rec, err := e.extract(markup, contentID)
	e.metrics.ObserveExtraction(err == nil)
	if err != nil {
		return nil, err
	}
	e.logger.Debugf("extracted %s work %s by %s from %s page (%d media urls)",
		rec.ContentType, rec.ContentID, rec.AuthorName, siteVariant, len(rec.DownloadURLs))
	return rec, nil
}

func (e *Extractor) extract(markup, contentID string) (*Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &apperrors.ExtractionError{ContentID: contentID, Reason: "failed to parse markup"}
	}

	var stateText string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := s.Text(); strings.Contains(text, stateMarker) {
			stateText = text
			return false
		}
		return true
	})
	if stateText == "" {
		return nil, &apperrors.ExtractionError{ContentID: contentID, Reason: "embedded state block not found"}
	}

	blob, ok := sliceStateJSON(stateText)
	if !ok {
		return nil, &apperrors.ExtractionError{ContentID: contentID, Reason: "embedded state block has no JSON payload"}
	}

	var state struct {
		DefaultClient map[string]json.RawMessage `json:"defaultClient"`
	}
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, &apperrors.ExtractionError{ContentID: contentID, Reason: "embedded state block is not valid JSON"}
	}

	rawPhoto, ok := state.DefaultClient[photoKeyPrefix+contentID]
	if !ok {
		return nil, &apperrors.ExtractionError{ContentID: contentID, Reason: "work not present in state block"}
	}

	var photo photoNode
	if err := json.Unmarshal(rawPhoto, &photo); err != nil {
		return nil, &apperrors.ExtractionError{ContentID: contentID, Reason: "work entry has unexpected shape"}
	}

	rec := &Record{
		ContentID:    contentID,
		Caption:      strings.TrimSpace(photo.Caption),
		CoverURL:     photo.CoverURL,
		LikeCount:    firstNonNil(photo.RealLikeCount, photo.LikeCount),
		CommentCount: photo.CommentCount,
		ShareCount:   photo.ShareCount,
		ViewCount:    photo.ViewCount,
		Duration:     photo.Duration,
		Width:        photo.Width,
		Height:       photo.Height,
		PublishedAt:  photo.Timestamp,
	}

	rec.AuthorID, rec.AuthorName = resolveAuthor(state.DefaultClient, photo.Author)

	atlasURLs := photo.ExtParams.Atlas.urls()
	rec.ContentType = inferContentType(photo.PhotoType, atlasURLs)
	if rec.ContentType == ContentTypeImage {
		rec.DownloadURLs = atlasURLs
	} else if u := firstNonEmpty(photo.PhotoURL, photo.PhotoH265URL); u != "" {
		rec.DownloadURLs = []string{u}
	}

	return rec, nil
}

// inferContentType is the gallery-versus-video discriminator. The upstream
// type field plus a populated atlas URL list means gallery; everything else,
// including an unknown type value, falls back to video.
func inferContentType(photoType string, atlasURLs []string) ContentType {
	t := strings.ToUpper(strings.TrimSpace(photoType))
	isAtlas := strings.Contains(t, "ATLAS") || photoType == "图片"
	if isAtlas && len(atlasURLs) > 0 {
		return ContentTypeImage
	}
	return ContentTypeVideo
}

// sliceStateJSON cuts the JSON object out of the script text: everything
// between the first '=' after the marker and the IIFE that follows the
// assignment (or the end of the script when absent).
func sliceStateJSON(scriptText string) (string, bool) {
	start := strings.Index(scriptText, stateMarker)
	if start < 0 {
		return "", false
	}
	rest := scriptText[start+len(stateMarker):]
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return "", false
	}
	rest = rest[eq+1:]

	if end := strings.Index(rest, ";(function()"); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), ";"))
	if !strings.HasPrefix(rest, "{") {
		return "", false
	}
	return rest, true
}

// photoNode mirrors the fields of a detail-photo entry we care about. Counts
// are deliberately untyped; the platform serves them as display strings or
// numbers depending on magnitude.
type photoNode struct {
	ID            string          `json:"id"`
	Caption       string          `json:"caption"`
	CoverURL      string          `json:"coverUrl"`
	PhotoURL      string          `json:"photoUrl"`
	PhotoH265URL  string          `json:"photoH265Url"`
	PhotoType     string          `json:"photoType"`
	Duration      interface{}     `json:"duration"`
	RealLikeCount interface{}     `json:"realLikeCount"`
	LikeCount     interface{}     `json:"likeCount"`
	CommentCount  interface{}     `json:"commentCount"`
	ShareCount    interface{}     `json:"shareCount"`
	ViewCount     interface{}     `json:"viewCount"`
	Timestamp     int64           `json:"timestamp"`
	Width         int             `json:"width"`
	Height        int             `json:"height"`
	Author        json.RawMessage `json:"author"`
	ExtParams     struct {
		Atlas atlasNode `json:"atlas"`
	} `json:"ext_params"`
}

// atlasNode is the gallery manifest: CDN hosts plus image paths.
type atlasNode struct {
	CDN  []string `json:"cdn"`
	List []string `json:"list"`
}

func (a atlasNode) urls() []string {
	if len(a.CDN) == 0 || len(a.List) == 0 {
		return nil
	}
	host := a.CDN[0]
	urls := make([]string, 0, len(a.List))
	for _, path := range a.List {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		urls = append(urls, "https://"+host+path)
	}
	return urls
}

// resolveAuthor follows the author reference out of the photo entry. The
// state block stores either an inline author object or a cache reference
// ("VisionVideoDetailAuthor:<uid>") into defaultClient.
func resolveAuthor(client map[string]json.RawMessage, raw json.RawMessage) (id, name string) {
	if len(raw) == 0 {
		return "", ""
	}

	var ref struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", ""
	}

	if target, ok := client[ref.ID]; ok {
		var author struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(target, &author); err == nil {
			return author.ID, author.Name
		}
	}

	// Inline author object.
	return strings.TrimPrefix(ref.ID, authorKeyPrefix), ref.Name
}

func firstNonNil(values ...interface{}) interface{} {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
