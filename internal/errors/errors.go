// internal/errors/errors.go - typed failure taxonomy for the resolve/extract/download pipeline
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a pipeline failure so the API layer can map it onto a
// transport status without inspecting concrete error types.
type Kind int

const (
	KindInternal Kind = iota
	KindResolution
	KindFetch
	KindAuth
	KindExtraction
	KindDownload
	KindDuplicateTask
)

func (k Kind) String() string {
	switch k {
	case KindResolution:
		return "resolution"
	case KindFetch:
		return "fetch"
	case KindAuth:
		return "auth"
	case KindExtraction:
		return "extraction"
	case KindDownload:
		return "download"
	case KindDuplicateTask:
		return "duplicate_task"
	default:
		return "internal"
	}
}

// ResolutionError reports that no content identifier could be derived from
// the caller-supplied share text. Err carries the underlying cause when
// resolution failed mid-way, such as a short link whose redirects could not
// be followed.
type ResolutionError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot resolve share link: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot resolve share link: %s", e.Reason)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// FetchError reports a transport or HTTP failure after the retry budget was
// exhausted. Code carries the last HTTP status, or 0 for pure transport
// failures.
type FetchError struct {
	URL  string
	Code int
	Err  error
}

func (e *FetchError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("fetch failed with HTTP %d: %s", e.Code, e.URL)
	}
	return fmt.Sprintf("fetch failed: %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AuthRequiredError reports that response heuristics indicate a missing or
// expired session credential.
type AuthRequiredError struct {
	Reason string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("authentication required: %s", e.Reason)
}

// ExtractionError reports that the embedded state block could not be located
// or parsed, or that the expected content was absent from it.
type ExtractionError struct {
	ContentID string
	Reason    string
}

func (e *ExtractionError) Error() string {
	if e.ContentID != "" {
		return fmt.Sprintf("extraction failed for %s: %s", e.ContentID, e.Reason)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

// DownloadError reports a media retrieval failure after per-file retries were
// exhausted.
type DownloadError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed after %d attempts: %s: %v", e.Attempts, e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// DuplicateTaskError reports a task identifier collision. With uuid-generated
// identifiers this is an internal invariant violation.
type DuplicateTaskError struct {
	TaskID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %s already exists", e.TaskID)
}

// KindOf classifies an error anywhere in a wrapped chain.
func KindOf(err error) Kind {
	var (
		resolution *ResolutionError
		fetch      *FetchError
		auth       *AuthRequiredError
		extraction *ExtractionError
		download   *DownloadError
		duplicate  *DuplicateTaskError
	)
	switch {
	case errors.As(err, &auth):
		return KindAuth
	case errors.As(err, &resolution):
		return KindResolution
	case errors.As(err, &extraction):
		return KindExtraction
	case errors.As(err, &fetch):
		return KindFetch
	case errors.As(err, &download):
		return KindDownload
	case errors.As(err, &duplicate):
		return KindDuplicateTask
	default:
		return KindInternal
	}
}

// LooksAuthRelated is the substring fallback for failures that lost their
// type on the way up but read like a credential problem. Typed
// AuthRequiredError is preferred wherever the fetch layer can detect it.
func LooksAuthRelated(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"cookie", "login", "登录", "credential"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// UserMessage renders a failure as a message suitable for task records and
// API responses.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindAuth:
		return fmt.Sprintf("a valid session cookie is required: %v", err)
	case KindResolution:
		return fmt.Sprintf("could not recognize a supported share link: %v", err)
	case KindExtraction:
		return fmt.Sprintf("could not extract work details, the content may be private or deleted: %v", err)
	case KindFetch:
		return fmt.Sprintf("upstream page request failed: %v", err)
	case KindDownload:
		return fmt.Sprintf("media download failed: %v", err)
	default:
		if LooksAuthRelated(err) {
			return fmt.Sprintf("request failed, the session cookie may be missing or expired: %v", err)
		}
		return err.Error()
	}
}
